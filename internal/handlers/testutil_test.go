package handlers

import (
	"bytes"
	"context"
	"database/sql/driver"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/tagfiler/backend/internal/config"
	"github.com/tagfiler/backend/internal/database"
	"github.com/tagfiler/backend/internal/middleware"
	"github.com/tagfiler/backend/internal/models"
	"github.com/tagfiler/backend/internal/services"
	"github.com/tagfiler/backend/pkg/logger"
)

type testEnv struct {
	app *fiber.App
	db  *database.Database

	files  *services.FileService
	assocs *services.AssociationService
}

var testSetupOnce sync.Once

func setupTestEnv(t *testing.T) *testEnv {
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

	fileService := services.NewFileService(db)
	tagService := services.NewTagService(db)
	associationService := services.NewAssociationService(db, fileService)
	searchService := services.NewSearchService(db)

	tagsHandler := NewTagsHandler(tagService, searchService)
	filesHandler := NewFilesHandler(fileService, associationService, searchService)
	eventsHandler := NewEventsHandler(fileService)

	app := fiber.New(fiber.Config{BodyLimit: 4 * 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.RequestLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		if err := db.Health(); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unreachable"})
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	tagRoutes := api.Group("/tags")
	tagRoutes.Get("/", tagsHandler.List)
	tagRoutes.Get("/search", tagsHandler.SearchByName)
	tagRoutes.Post("/", tagsHandler.Create)
	tagRoutes.Put("/:id", tagsHandler.Modify)
	tagRoutes.Delete("/:id", tagsHandler.Delete)
	tagRoutes.Get("/:id/files", tagsHandler.Files)

	fileRoutes := api.Group("/files")
	fileRoutes.Get("/", filesHandler.List)
	fileRoutes.Post("/search", filesHandler.SearchByTags)
	fileRoutes.Post("/tags", filesHandler.TagPaths)
	fileRoutes.Get("/:id/tags", filesHandler.ListTags)
	fileRoutes.Delete("/:id/tags/:tagId", filesHandler.Untag)

	eventRoutes := api.Group("/events")
	eventRoutes.Post("/moved", eventsHandler.Moved)
	eventRoutes.Post("/copied", eventsHandler.Copied)
	eventRoutes.Post("/deleted", eventsHandler.Deleted)

	fsRoutes := api.Group("/fs")
	fsRoutes.Post("/move", eventsHandler.BatchMove)
	fsRoutes.Post("/copy", eventsHandler.BatchCopy)
	fsRoutes.Post("/delete", eventsHandler.BatchDelete)
	fsRoutes.Post("/rename", eventsHandler.Rename)

	api.Get("/history", eventsHandler.History)

	return &testEnv{
		app:    app,
		db:     db,
		files:  fileService,
		assocs: associationService,
	}
}

func seedTestFile(t *testing.T, env *testEnv, path string) *models.FileRecord {
	t.Helper()

	record, err := env.files.CreateIfAbsent(context.Background(), path, models.FileTypeFile, 100)
	if err != nil {
		t.Fatalf("failed seeding file record %q: %v", path, err)
	}
	return record
}

func performRequest(t *testing.T, app *fiber.App, method, path string, body io.Reader, headers map[string]string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := app.Test(req, int((10 * time.Second).Milliseconds()))
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}

	return resp
}

func performJSONRequest(t *testing.T, app *fiber.App, method, path string, payload any) *http.Response {
	t.Helper()

	var body io.Reader
	headers := map[string]string{}
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(encoded)
		headers["Content-Type"] = "application/json"
	}

	return performRequest(t, app, method, path, body, headers)
}

func decodeJSONMap(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed reading response body: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("failed decoding JSON response: %v body=%q", err, string(raw))
	}

	return payload
}

func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Fatalf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

func assertEnvelopeError(t *testing.T, body map[string]any) {
	t.Helper()
	if success, _ := body["success"].(bool); success {
		t.Fatalf("expected success=false, got %+v", body)
	}
	if msg, _ := body["error"].(string); msg == "" {
		t.Fatalf("expected an error message, got %+v", body)
	}
}

func envelopeData(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected object data in envelope, got %+v", body)
	}
	return data
}

func envelopeList(t *testing.T, body map[string]any) []any {
	t.Helper()
	data, ok := body["data"].([]any)
	if !ok {
		t.Fatalf("expected array data in envelope, got %+v", body)
	}
	return data
}
