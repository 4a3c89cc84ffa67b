package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tagfiler/backend/internal/database"
	"github.com/tagfiler/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FileService is the identity store: every filesystem mutation the engine is
// told about is translated into one of its path-keyed intents before anything
// touches the association graph.
type FileService struct {
	db *database.Database
}

func NewFileService(db *database.Database) *FileService {
	return &FileService{db: db}
}

// FindByPath returns the live record at path, or ErrNotFound.
func (s *FileService) FindByPath(ctx context.Context, path string) (*models.FileRecord, error) {
	var record models.FileRecord
	err := s.db.WithContext(ctx).Where("current_path = ?", path).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding record by path: %w", err)
	}
	return &record, nil
}

// CreateIfAbsent returns the live record at path, creating it when missing.
// Insert-on-conflict plus re-select keeps it race-safe against a concurrent
// identical call; the loser of the insert race reads the winner's row.
func (s *FileService) CreateIfAbsent(ctx context.Context, path string, fileType models.FileType, size int64) (*models.FileRecord, error) {
	record := models.FileRecord{
		CurrentPath: path,
		FileType:    fileType,
		Size:        size,
	}

	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&record)
	if result.Error != nil && !errors.Is(result.Error, gorm.ErrDuplicatedKey) {
		return nil, fmt.Errorf("creating record: %w", result.Error)
	}
	if result.Error == nil && result.RowsAffected == 1 {
		return &record, nil
	}

	return s.FindByPath(ctx, path)
}

// Move rewrites the live record at oldPath to newPath in place, keeping its
// id and associations. When the record is a folder, tracked records beneath
// it are rewritten to the matching paths under newPath. An untracked oldPath
// is a silent no-op beyond the history row.
func (s *FileService) Move(ctx context.Context, oldPath, newPath string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record models.FileRecord
		err := tx.Where("current_path = ?", oldPath).First(&record).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return appendHistory(tx, oldPath, &newPath, models.ChangeTypeMove, models.ChangeStatusUntracked)
		}
		if err != nil {
			return fmt.Errorf("finding record to move: %w", err)
		}

		if err := tx.Model(&record).Update("current_path", newPath).Error; err != nil {
			return fmt.Errorf("rewriting path: %w", err)
		}

		if record.IsFolder() {
			if err := rewriteDescendants(tx, oldPath, newPath); err != nil {
				return err
			}
		}

		return appendHistory(tx, oldPath, &newPath, models.ChangeTypeMove, models.ChangeStatusApplied)
	})
}

// Copy duplicates the tracked identity at oldPath to newPath. A record is
// created only when the source carries at least one association; its
// associations are deep-copied with fresh timestamps, each copy counting as
// a new usage. Tagged records under a copied folder are duplicated the same
// way. Returns nil without error when nothing needed copying.
func (s *FileService) Copy(ctx context.Context, oldPath, newPath string) (*models.FileRecord, error) {
	var copied *models.FileRecord

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var source models.FileRecord
		err := tx.Where("current_path = ?", oldPath).First(&source).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return appendHistory(tx, oldPath, &newPath, models.ChangeTypeCopy, models.ChangeStatusUntracked)
		}
		if err != nil {
			return fmt.Errorf("finding record to copy: %w", err)
		}

		copied, err = copyTaggedRecord(tx, &source, newPath)
		if err != nil {
			return err
		}

		if source.IsFolder() {
			if err := copyTaggedDescendants(tx, oldPath, newPath); err != nil {
				return err
			}
		}

		status := models.ChangeStatusApplied
		if copied == nil {
			status = models.ChangeStatusUntracked
		}
		return appendHistory(tx, oldPath, &newPath, models.ChangeTypeCopy, status)
	})
	if err != nil {
		return nil, err
	}
	return copied, nil
}

// SoftDelete retires the live record at path, and under a folder every
// tracked record beneath it. Rows and associations are retained for history;
// only the deleted_at marker changes.
func (s *FileService) SoftDelete(ctx context.Context, path string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record models.FileRecord
		err := tx.Where("current_path = ?", path).First(&record).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return appendHistory(tx, path, nil, models.ChangeTypeDelete, models.ChangeStatusUntracked)
		}
		if err != nil {
			return fmt.Errorf("finding record to delete: %w", err)
		}

		if err := tx.Delete(&record).Error; err != nil {
			return fmt.Errorf("soft-deleting record: %w", err)
		}

		if record.IsFolder() {
			prefix := childPrefix(path)
			err := tx.Where("current_path LIKE ? ESCAPE '\\'", escapeLike(prefix)+"%").
				Delete(&models.FileRecord{}).Error
			if err != nil {
				return fmt.Errorf("soft-deleting descendants: %w", err)
			}
		}

		return appendHistory(tx, path, nil, models.ChangeTypeDelete, models.ChangeStatusApplied)
	})
}

// MoveMany applies Move for every path into targetDir, one transaction per
// item; a failure on one path never blocks or rolls back its siblings.
func (s *FileService) MoveMany(ctx context.Context, paths []string, targetDir string) *BatchResult {
	result := newBatchResult()
	for _, path := range paths {
		newPath := filepath.Join(targetDir, filepath.Base(path))
		if err := s.Move(ctx, path, newPath); err != nil {
			result.fail(path, err)
			continue
		}
		result.ok(path)
	}
	return result
}

// CopyMany applies Copy for every path into targetDir, one transaction per
// item.
func (s *FileService) CopyMany(ctx context.Context, paths []string, targetDir string) *BatchResult {
	result := newBatchResult()
	for _, path := range paths {
		newPath := filepath.Join(targetDir, filepath.Base(path))
		if _, err := s.Copy(ctx, path, newPath); err != nil {
			result.fail(path, err)
			continue
		}
		result.ok(path)
	}
	return result
}

// DeleteMany applies SoftDelete for every path, one transaction per item.
func (s *FileService) DeleteMany(ctx context.Context, paths []string) *BatchResult {
	result := newBatchResult()
	for _, path := range paths {
		if err := s.SoftDelete(ctx, path); err != nil {
			result.fail(path, err)
			continue
		}
		result.ok(path)
	}
	return result
}

// Rename moves the record at oldPath to the same directory under newName.
func (s *FileService) Rename(ctx context.Context, oldPath, newName string) error {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return fmt.Errorf("%w: empty name", ErrConstraint)
	}
	return s.Move(ctx, oldPath, filepath.Join(filepath.Dir(oldPath), newName))
}

// History returns the most recent change-history rows, newest first.
func (s *FileService) History(ctx context.Context, limit int) ([]models.ChangeHistory, error) {
	if limit <= 0 {
		limit = 100
	}
	var entries []models.ChangeHistory
	err := s.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("listing change history: %w", err)
	}
	return entries, nil
}

// StatPath inspects the real file to seed record metadata. It runs outside
// any transaction; when the path cannot be inspected the record defaults to
// a plain zero-size file.
func StatPath(path string) (models.FileType, int64) {
	info, err := os.Stat(path)
	if err != nil {
		return models.FileTypeFile, 0
	}
	if info.IsDir() {
		return models.FileTypeFolder, 0
	}
	return models.FileTypeFile, info.Size()
}

func rewriteDescendants(tx *gorm.DB, oldPath, newPath string) error {
	prefix := childPrefix(oldPath)

	var descendants []models.FileRecord
	err := tx.Where("current_path LIKE ? ESCAPE '\\'", escapeLike(prefix)+"%").
		Find(&descendants).Error
	if err != nil {
		return fmt.Errorf("listing descendants: %w", err)
	}

	for i := range descendants {
		rewritten := childPrefix(newPath) + strings.TrimPrefix(descendants[i].CurrentPath, prefix)
		if err := tx.Model(&descendants[i]).Update("current_path", rewritten).Error; err != nil {
			return fmt.Errorf("rewriting descendant path: %w", err)
		}
	}
	return nil
}

func copyTaggedDescendants(tx *gorm.DB, oldPath, newPath string) error {
	prefix := childPrefix(oldPath)

	var descendants []models.FileRecord
	err := tx.Where("current_path LIKE ? ESCAPE '\\'", escapeLike(prefix)+"%").
		Find(&descendants).Error
	if err != nil {
		return fmt.Errorf("listing descendants: %w", err)
	}

	for i := range descendants {
		target := childPrefix(newPath) + strings.TrimPrefix(descendants[i].CurrentPath, prefix)
		if _, err := copyTaggedRecord(tx, &descendants[i], target); err != nil {
			return err
		}
	}
	return nil
}

// copyTaggedRecord duplicates source at newPath when it carries at least one
// association; an untagged source needs no record at the copy destination.
func copyTaggedRecord(tx *gorm.DB, source *models.FileRecord, newPath string) (*models.FileRecord, error) {
	var assocCount int64
	err := tx.Model(&models.FileTag{}).Where("file_id = ?", source.ID).Count(&assocCount).Error
	if err != nil {
		return nil, fmt.Errorf("counting source associations: %w", err)
	}
	if assocCount == 0 {
		return nil, nil
	}

	target := models.FileRecord{
		CurrentPath: newPath,
		FileType:    source.FileType,
		Size:        source.Size,
	}
	result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&target)
	if result.Error != nil && !errors.Is(result.Error, gorm.ErrDuplicatedKey) {
		return nil, fmt.Errorf("creating copy target: %w", result.Error)
	}
	if result.Error != nil || result.RowsAffected == 0 {
		// A live record already exists at the destination (overwrite copy);
		// reuse it and merge the associations into it.
		err := tx.Where("current_path = ?", newPath).First(&target).Error
		if err != nil {
			return nil, fmt.Errorf("finding existing copy target: %w", err)
		}
	}

	if _, err := copyAssociations(tx, source.ID, target.ID); err != nil {
		return nil, err
	}
	return &target, nil
}

func appendHistory(tx *gorm.DB, oldPath string, newPath *string, changeType models.ChangeType, status models.ChangeStatus) error {
	entry := models.ChangeHistory{
		OldPath:    oldPath,
		NewPath:    newPath,
		ChangeType: changeType,
		Status:     status,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return fmt.Errorf("appending change history: %w", err)
	}
	return nil
}

// childPrefix normalizes a folder path into the prefix all its descendants
// share.
func childPrefix(path string) string {
	sep := string(os.PathSeparator)
	return strings.TrimSuffix(path, sep) + sep
}

// escapeLike protects literal %, _ and \ so user paths cannot act as LIKE
// wildcards.
func escapeLike(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(s)
}
