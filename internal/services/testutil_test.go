package services

import (
	"context"
	"database/sql/driver"
	"sync"
	"testing"
	"time"

	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/tagfiler/backend/internal/config"
	"github.com/tagfiler/backend/internal/database"
	"github.com/tagfiler/backend/internal/models"
	"github.com/tagfiler/backend/pkg/logger"
)

var testSetupOnce sync.Once

func setupTestDB(t *testing.T) *database.Database {
	t.Helper()

	testSetupOnce.Do(func() {
		gosqlite.MustRegisterScalarFunction("NOW", 0, func(ctx *gosqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
			return time.Now().UTC(), nil
		})
		logger.Init()
	})

	db, err := database.Connect(config.DatabaseConfig{
		Driver:       config.DriverSQLite,
		Path:         ":memory:",
		MaxOpenConns: 1,
		ConnTimeout:  5 * time.Second,
	})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Close()
	})

	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed migrating schema: %v", err)
	}

	return db
}

func createTestFile(t *testing.T, files *FileService, path string) *models.FileRecord {
	t.Helper()

	record, err := files.CreateIfAbsent(context.Background(), path, models.FileTypeFile, 100)
	if err != nil {
		t.Fatalf("failed creating file record %q: %v", path, err)
	}
	return record
}

func createTestFolder(t *testing.T, files *FileService, path string) *models.FileRecord {
	t.Helper()

	record, err := files.CreateIfAbsent(context.Background(), path, models.FileTypeFolder, 0)
	if err != nil {
		t.Fatalf("failed creating folder record %q: %v", path, err)
	}
	return record
}

func createTestTag(t *testing.T, tags *TagService, name string) *models.Tag {
	t.Helper()

	tag, err := tags.Create(context.Background(), name)
	if err != nil {
		t.Fatalf("failed creating tag %q: %v", name, err)
	}
	return tag
}

func reloadTag(t *testing.T, db *database.Database, id uint) *models.Tag {
	t.Helper()

	var tag models.Tag
	if err := db.First(&tag, "id = ?", id).Error; err != nil {
		t.Fatalf("failed reloading tag %d: %v", id, err)
	}
	return &tag
}

func countAssociations(t *testing.T, db *database.Database, fileID uint) int64 {
	t.Helper()

	var count int64
	err := db.Model(&models.FileTag{}).Where("file_id = ?", fileID).Count(&count).Error
	if err != nil {
		t.Fatalf("failed counting associations: %v", err)
	}
	return count
}
