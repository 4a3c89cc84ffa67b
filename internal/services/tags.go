package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tagfiler/backend/internal/database"
	"github.com/tagfiler/backend/internal/models"
	"github.com/tagfiler/backend/pkg/utils"
	"gorm.io/gorm"
)

type ListMode string

const (
	ListModeMostUsed   ListMode = "most_used"
	ListModeRecentUsed ListMode = "recent_used"
)

const (
	defaultListLimit   = 10
	defaultSearchLimit = 50
)

// TagUpdate carries tri-state fields for Modify: absent leaves a field
// unchanged, explicit null clears it, a value sets it.
type TagUpdate struct {
	Name      utils.OptionalString `json:"name"`
	Color     utils.OptionalString `json:"color"`
	FontColor utils.OptionalString `json:"fontColor"`
	ParentID  utils.OptionalUint   `json:"parentID"`
}

type TagService struct {
	db *database.Database
}

func NewTagService(db *database.Database) *TagService {
	return &TagService{db: db}
}

// Create makes a root tag with the default colors. (Name, parent) collisions
// among live tags fail with ErrDuplicateTag.
func (s *TagService) Create(ctx context.Context, name string) (*models.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}

	color := models.DefaultTagColor
	fontColor := models.DefaultTagFontColor
	tag := models.Tag{
		Name:      name,
		Color:     &color,
		FontColor: &fontColor,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureNameFree(tx, name, nil, 0); err != nil {
			return err
		}
		if err := tx.Create(&tag).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateTag
			}
			return fmt.Errorf("creating tag: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &tag, nil
}

// Modify applies a tri-state update. Reparenting onto the tag itself or any
// of its descendants fails with ErrCycleDetected; the ancestor chain of the
// requested parent is walked explicitly before anything commits.
func (s *TagService) Modify(ctx context.Context, id uint, update TagUpdate) (*models.Tag, error) {
	var modified models.Tag

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tag models.Tag
		err := tx.First(&tag, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("finding tag: %w", err)
		}

		changes := map[string]interface{}{}

		name := tag.Name
		if update.Name.Present {
			if update.Name.Value == nil {
				return ErrEmptyName
			}
			name = strings.TrimSpace(*update.Name.Value)
			if name == "" {
				return ErrEmptyName
			}
			changes["name"] = name
		}

		parentID := tag.ParentID
		if update.ParentID.Present {
			if update.ParentID.Value == nil {
				changes["parent_id"] = nil
				parentID = nil
			} else {
				target := *update.ParentID.Value
				if err := ensureNoCycle(tx, id, target); err != nil {
					return err
				}
				changes["parent_id"] = target
				parentID = &target
			}
		}

		if update.Name.Present || update.ParentID.Present {
			if err := ensureNameFree(tx, name, parentID, id); err != nil {
				return err
			}
		}

		if update.Color.Present {
			if update.Color.Value == nil {
				changes["color"] = nil
			} else {
				changes["color"] = *update.Color.Value
			}
		}
		if update.FontColor.Present {
			if update.FontColor.Value == nil {
				changes["font_color"] = nil
			} else {
				changes["font_color"] = *update.FontColor.Value
			}
		}

		if len(changes) > 0 {
			if err := tx.Model(&tag).Updates(changes).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return ErrDuplicateTag
				}
				return fmt.Errorf("updating tag: %w", err)
			}
		}

		return tx.First(&modified, "id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}
	return &modified, nil
}

// Search matches live tags whose name contains keyword, case-insensitively,
// ordered by usage then id. An empty keyword yields an empty result, not
// "match all".
func (s *TagService) Search(ctx context.Context, keyword string, limit int) ([]models.Tag, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return []models.Tag{}, nil
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	pattern := "%" + escapeLike(keyword) + "%"
	query := s.db.WithContext(ctx).Model(&models.Tag{})
	if s.db.Caps.FuzzySearch {
		query = query.Where("name ILIKE ? ESCAPE '\\'", pattern)
	} else {
		query = query.Where("LOWER(name) LIKE LOWER(?) ESCAPE '\\'", pattern)
	}

	tags := []models.Tag{}
	err := query.Order("usage_count DESC, id ASC").Limit(limit).Find(&tags).Error
	if err != nil {
		return nil, fmt.Errorf("searching tags: %w", err)
	}
	return tags, nil
}

// List returns live tags ordered by the requested mode; unknown modes fall
// back to most_used.
func (s *TagService) List(ctx context.Context, mode ListMode, limit int) ([]models.Tag, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	order := "usage_count DESC, id ASC"
	if mode == ListModeRecentUsed {
		order = "updated_at DESC, id ASC"
	}

	tags := []models.Tag{}
	err := s.db.WithContext(ctx).Order(order).Limit(limit).Find(&tags).Error
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	return tags, nil
}

// Delete soft-deletes the tag and every descendant, removing all of their
// associations. Unrelated tags and associations are untouched.
func (s *TagService) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tag models.Tag
		err := tx.First(&tag, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("finding tag: %w", err)
		}

		ids, err := collectSubtree(tx, id)
		if err != nil {
			return err
		}

		if err := tx.Where("tag_id IN ?", ids).Delete(&models.FileTag{}).Error; err != nil {
			return fmt.Errorf("removing associations: %w", err)
		}
		if err := tx.Where("id IN ?", ids).Delete(&models.Tag{}).Error; err != nil {
			return fmt.Errorf("soft-deleting tags: %w", err)
		}
		return nil
	})
}

// collectSubtree gathers id and every live descendant breadth-first.
func collectSubtree(tx *gorm.DB, id uint) ([]uint, error) {
	all := []uint{id}
	frontier := []uint{id}

	for len(frontier) > 0 {
		var next []uint
		err := tx.Model(&models.Tag{}).Where("parent_id IN ?", frontier).Pluck("id", &next).Error
		if err != nil {
			return nil, fmt.Errorf("walking tag subtree: %w", err)
		}
		all = append(all, next...)
		frontier = next
	}
	return all, nil
}

// ensureNoCycle rejects parent chains that lead back to id. The walk is
// bounded by the total live tag count so a corrupted chain cannot loop
// forever.
func ensureNoCycle(tx *gorm.DB, id, parentID uint) error {
	if parentID == id {
		return ErrCycleDetected
	}

	var total int64
	if err := tx.Model(&models.Tag{}).Count(&total).Error; err != nil {
		return fmt.Errorf("counting tags: %w", err)
	}

	current := parentID
	for steps := int64(0); steps <= total; steps++ {
		var tag models.Tag
		err := tx.Select("id", "parent_id").First(&tag, "id = ?", current).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("walking parent chain: %w", err)
		}
		if tag.ParentID == nil {
			return nil
		}
		if *tag.ParentID == id {
			return ErrCycleDetected
		}
		current = *tag.ParentID
	}
	return ErrCycleDetected
}

// ensureNameFree enforces (name, parent) uniqueness among live tags,
// excluding the tag being modified. The unique index backs this up against
// races; the explicit check gives the caller a typed error.
func ensureNameFree(tx *gorm.DB, name string, parentID *uint, excludeID uint) error {
	var count int64
	err := tx.Model(&models.Tag{}).
		Where("name = ? AND COALESCE(parent_id, 0) = COALESCE(?, 0) AND id <> ?", name, parentID, excludeID).
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("checking name uniqueness: %w", err)
	}
	if count > 0 {
		return ErrDuplicateTag
	}
	return nil
}
