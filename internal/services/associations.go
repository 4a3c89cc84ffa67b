package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/tagfiler/backend/internal/database"
	"github.com/tagfiler/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GroupLogic string

const (
	GroupLogicAnd GroupLogic = "AND"
	GroupLogicOr  GroupLogic = "OR"
)

// TagGroup is one search primitive: a set of tag ids combined with AND
// (file must carry every tag) or OR (any tag).
type TagGroup struct {
	TagIDs []uint     `json:"tagIds"`
	Logic  GroupLogic `json:"logic"`
}

// AssociationService owns the file-tag link table and, exclusively, the
// usage counters that describe it. Nothing else may touch usage_count, which
// is what keeps the counter from drifting against the table.
type AssociationService struct {
	db    *database.Database
	files *FileService
}

func NewAssociationService(db *database.Database, files *FileService) *AssociationService {
	return &AssociationService{db: db, files: files}
}

// Attach links a file to a tag. Attaching an already-present pair is a
// no-op: no duplicate row, no double counter increment.
func (s *AssociationService) Attach(ctx context.Context, fileID, tagID uint, confidence float64) error {
	if confidence <= 0 || confidence > 1 {
		confidence = 1.0
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureLive(tx, &models.FileRecord{}, fileID); err != nil {
			return err
		}
		if err := ensureLive(tx, &models.Tag{}, tagID); err != nil {
			return err
		}

		_, err := attachOne(tx, fileID, tagID, confidence)
		return err
	})
}

// Detach removes the link if present and decrements the tag's usage count;
// absent pairs are a no-op.
func (s *AssociationService) Detach(ctx context.Context, fileID, tagID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("file_id = ? AND tag_id = ?", fileID, tagID).Delete(&models.FileTag{})
		if result.Error != nil {
			return fmt.Errorf("detaching tag: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return nil
		}

		err := tx.Model(&models.Tag{}).Where("id = ?", tagID).
			Update("usage_count", gorm.Expr("usage_count - 1")).Error
		if err != nil {
			return fmt.Errorf("decrementing usage count: %w", err)
		}
		return nil
	})
}

// CopyAll copies every active association from one file to another,
// preserving confidence but assigning fresh timestamps. Each copy counts as
// a new usage. Returns the number copied.
func (s *AssociationService) CopyAll(ctx context.Context, fromFileID, toFileID uint) (int, error) {
	var copied int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		copied, err = copyAssociations(tx, fromFileID, toFileID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return copied, nil
}

// ListForFile returns the live tags attached to a file, stable by id.
func (s *AssociationService) ListForFile(ctx context.Context, fileID uint) ([]models.Tag, error) {
	if err := ensureLive(s.db.WithContext(ctx), &models.FileRecord{}, fileID); err != nil {
		return nil, err
	}

	tags := []models.Tag{}
	err := s.db.WithContext(ctx).
		Joins("JOIN file_tags ON file_tags.tag_id = tags.id").
		Where("file_tags.file_id = ?", fileID).
		Order("tags.id ASC").
		Find(&tags).Error
	if err != nil {
		return nil, fmt.Errorf("listing tags for file: %w", err)
	}
	return tags, nil
}

// TagPaths applies one tag to many paths, creating file records lazily. Each
// path commits alone; a bad path is reported in the aggregate instead of
// blocking the rest.
func (s *AssociationService) TagPaths(ctx context.Context, paths []string, tagID uint) (*BatchResult, error) {
	if err := ensureLive(s.db.WithContext(ctx), &models.Tag{}, tagID); err != nil {
		return nil, err
	}

	result := newBatchResult()
	for _, path := range paths {
		if err := s.tagOnePath(ctx, path, tagID); err != nil {
			result.fail(path, err)
			continue
		}
		result.ok(path)
	}
	return result, nil
}

func (s *AssociationService) tagOnePath(ctx context.Context, path string, tagID uint) error {
	// Stat outside the transaction; filesystem latency must not extend it.
	fileType, size := StatPath(path)

	record, err := s.files.CreateIfAbsent(ctx, path, fileType, size)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, err := attachOne(tx, record.ID, tagID, 1.0)
		return err
	})
}

// SearchByTagGroups evaluates grouped tag criteria as set intersection and
// union over per-tag file-id sets, then materializes the matching live
// records ordered by id. One big join would degrade as tag counts grow.
func (s *AssociationService) SearchByTagGroups(ctx context.Context, groups []TagGroup, logic GroupLogic) ([]models.FileRecord, error) {
	var combined map[uint]struct{}

	for _, group := range groups {
		groupSet, err := s.evaluateGroup(ctx, group)
		if err != nil {
			return nil, err
		}

		if combined == nil {
			combined = groupSet
			continue
		}
		if logic == GroupLogicOr {
			combined = unionSets(combined, groupSet)
		} else {
			combined = intersectSets(combined, groupSet)
		}
	}

	if len(combined) == 0 {
		return []models.FileRecord{}, nil
	}

	ids := make([]uint, 0, len(combined))
	for id := range combined {
		ids = append(ids, id)
	}

	records := []models.FileRecord{}
	err := s.db.WithContext(ctx).
		Preload("Tags", "tags.deleted_at IS NULL").
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("loading matched records: %w", err)
	}
	return records, nil
}

func (s *AssociationService) evaluateGroup(ctx context.Context, group TagGroup) (map[uint]struct{}, error) {
	var groupSet map[uint]struct{}

	for _, tagID := range group.TagIDs {
		tagSet, err := s.fileIDsForTag(ctx, tagID)
		if err != nil {
			return nil, err
		}

		if groupSet == nil {
			groupSet = tagSet
			continue
		}
		if group.Logic == GroupLogicOr {
			groupSet = unionSets(groupSet, tagSet)
		} else {
			groupSet = intersectSets(groupSet, tagSet)
		}
	}

	if groupSet == nil {
		groupSet = map[uint]struct{}{}
	}
	return groupSet, nil
}

func (s *AssociationService) fileIDsForTag(ctx context.Context, tagID uint) (map[uint]struct{}, error) {
	var ids []uint
	err := s.db.WithContext(ctx).Table("file_tags").
		Joins("JOIN file_records ON file_records.id = file_tags.file_id").
		Where("file_tags.tag_id = ? AND file_records.deleted_at IS NULL", tagID).
		Pluck("file_tags.file_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("collecting files for tag: %w", err)
	}

	set := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// attachOne inserts the pair and bumps the usage counter only when the
// insert actually landed, so a repeated attach can never double-count.
// Reports whether a new row was created.
func attachOne(tx *gorm.DB, fileID, tagID uint, confidence float64) (bool, error) {
	link := models.FileTag{
		FileID:     fileID,
		TagID:      tagID,
		Confidence: confidence,
	}

	result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&link)
	if result.Error != nil && !errors.Is(result.Error, gorm.ErrDuplicatedKey) {
		return false, fmt.Errorf("%w: attaching tag: %v", ErrConstraint, result.Error)
	}
	if result.Error != nil || result.RowsAffected == 0 {
		return false, nil
	}

	err := tx.Model(&models.Tag{}).Where("id = ?", tagID).
		Update("usage_count", gorm.Expr("usage_count + 1")).Error
	if err != nil {
		return false, fmt.Errorf("incrementing usage count: %w", err)
	}
	return true, nil
}

func copyAssociations(tx *gorm.DB, fromFileID, toFileID uint) (int, error) {
	var links []models.FileTag
	err := tx.Where("file_id = ?", fromFileID).Find(&links).Error
	if err != nil {
		return 0, fmt.Errorf("listing source associations: %w", err)
	}

	copied := 0
	for _, link := range links {
		inserted, err := attachOne(tx, toFileID, link.TagID, link.Confidence)
		if err != nil {
			return copied, err
		}
		if inserted {
			copied++
		}
	}
	return copied, nil
}

// ensureLive fails with ErrNotFound unless a non-deleted row with id exists.
func ensureLive(tx *gorm.DB, model interface{}, id uint) error {
	var count int64
	if err := tx.Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("checking row liveness: %w", err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}

func intersectSets(a, b map[uint]struct{}) map[uint]struct{} {
	if len(b) < len(a) {
		a, b = b, a
	}
	out := make(map[uint]struct{})
	for id := range a {
		if _, ok := b[id]; ok {
			out[id] = struct{}{}
		}
	}
	return out
}

func unionSets(a, b map[uint]struct{}) map[uint]struct{} {
	out := make(map[uint]struct{}, len(a)+len(b))
	for id := range a {
		out[id] = struct{}{}
	}
	for id := range b {
		out[id] = struct{}{}
	}
	return out
}
