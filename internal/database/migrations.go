package database

import (
	"fmt"
	"time"

	"github.com/tagfiler/backend/internal/models"
	"github.com/tagfiler/backend/pkg/logger"
	"gorm.io/gorm"
)

// Migration is one versioned, idempotent schema change. Condition gates
// scripts that only apply to backends with a given capability; a migration
// whose condition fails is skipped without being recorded, so a later run
// against a capable backend still applies it.
type Migration struct {
	Version     int
	Description string
	Condition   func(*Database) bool
	Up          func(*gorm.DB) error
}

type migrationHistory struct {
	ID          uint      `gorm:"primaryKey"`
	Version     int       `gorm:"uniqueIndex;not null"`
	Description string    `gorm:"type:text"`
	AppliedAt   time.Time `gorm:"autoCreateTime"`
}

func (migrationHistory) TableName() string {
	return "schema_migrations"
}

// Migrate applies all pending migrations in version order, each inside its
// own transaction together with its history row.
func Migrate(db *Database) error {
	if err := db.AutoMigrate(&migrationHistory{}); err != nil {
		return fmt.Errorf("creating migration history table: %w", err)
	}

	var applied []migrationHistory
	if err := db.Find(&applied).Error; err != nil {
		return fmt.Errorf("querying migration history: %w", err)
	}

	appliedVersions := make(map[int]bool, len(applied))
	for _, a := range applied {
		appliedVersions[a.Version] = true
	}

	for _, migration := range allMigrations() {
		if appliedVersions[migration.Version] {
			continue
		}

		if migration.Condition != nil && !migration.Condition(db) {
			logger.Info("migration_skipped", map[string]interface{}{
				"version":     migration.Version,
				"description": migration.Description,
				"driver":      string(db.Driver),
			})
			continue
		}

		if err := runMigration(db, migration); err != nil {
			return fmt.Errorf("migration %d (%s): %w", migration.Version, migration.Description, err)
		}

		logger.Info("migration_applied", map[string]interface{}{
			"version":     migration.Version,
			"description": migration.Description,
		})
	}

	return nil
}

func runMigration(db *Database, migration Migration) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := migration.Up(tx); err != nil {
			return err
		}
		return tx.Create(&migrationHistory{
			Version:     migration.Version,
			Description: migration.Description,
		}).Error
	})
}

func allMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "base tables",
			Up: func(db *gorm.DB) error {
				return db.AutoMigrate(
					&models.FileRecord{},
					&models.Tag{},
					&models.FileTag{},
					&models.ChangeHistory{},
				)
			},
		},
		{
			Version:     2,
			Description: "live-row uniqueness indexes",
			Up: func(db *gorm.DB) error {
				// Partial indexes: uniqueness holds among non-deleted rows
				// only. COALESCE folds NULL parents into one bucket, since
				// both backends otherwise treat NULLs as pairwise distinct.
				statements := []string{
					`CREATE UNIQUE INDEX IF NOT EXISTS ux_file_records_live_path
						ON file_records (current_path) WHERE deleted_at IS NULL`,
					`CREATE UNIQUE INDEX IF NOT EXISTS ux_tags_live_name_parent
						ON tags (name, (COALESCE(parent_id, 0))) WHERE deleted_at IS NULL`,
				}
				for _, stmt := range statements {
					if err := db.Exec(stmt).Error; err != nil {
						return err
					}
				}
				return nil
			},
		},
		{
			Version:     3,
			Description: "trigram indexes for fuzzy search",
			Condition: func(db *Database) bool {
				return db.Caps.FuzzySearch
			},
			Up: func(db *gorm.DB) error {
				statements := []string{
					`CREATE EXTENSION IF NOT EXISTS pg_trgm`,
					`CREATE INDEX IF NOT EXISTS ix_tags_name_trgm
						ON tags USING gin (name gin_trgm_ops)`,
					`CREATE INDEX IF NOT EXISTS ix_file_records_path_trgm
						ON file_records USING gin (current_path gin_trgm_ops)`,
				}
				for _, stmt := range statements {
					if err := db.Exec(stmt).Error; err != nil {
						return err
					}
				}
				return nil
			},
		},
	}
}
