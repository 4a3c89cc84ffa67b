package handlers

import (
	"context"
	"net/http"
	"testing"
)

func TestEventEndpoints(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/tags/", map[string]any{"name": "work"})
	assertStatus(t, resp, http.StatusCreated)
	tagID := uint(envelopeData(t, decodeJSONMap(t, resp))["id"].(float64))

	record := seedTestFile(t, env, "/docs/report.pdf")
	if err := env.assocs.Attach(ctx, record.ID, tagID, 1.0); err != nil {
		t.Fatalf("failed attaching tag: %v", err)
	}

	t.Run("POST /api/events/moved rewrites the record", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/events/moved", map[string]any{
			"oldPath": "/docs/report.pdf",
			"newPath": "/archive/report.pdf",
		})
		assertStatus(t, resp, http.StatusOK)

		moved, err := env.files.FindByPath(ctx, "/archive/report.pdf")
		if err != nil {
			t.Fatalf("expected record at new path: %v", err)
		}
		if moved.ID != record.ID {
			t.Fatalf("expected move to keep id %d, got %d", record.ID, moved.ID)
		}
	})

	t.Run("POST /api/events/moved missing fields", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/events/moved", map[string]any{
			"oldPath": "/only-old.txt",
		})
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusBadRequest)
		assertEnvelopeError(t, body)
	})

	t.Run("POST /api/events/copied duplicates tagged source", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/events/copied", map[string]any{
			"oldPath": "/archive/report.pdf",
			"newPath": "/backup/report.pdf",
		})
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)
		data := envelopeData(t, body)
		if data["currentPath"] != "/backup/report.pdf" {
			t.Fatalf("expected copied record in response, got %+v", data)
		}
	})

	t.Run("POST /api/events/copied untagged source yields null", func(t *testing.T) {
		seedTestFile(t, env, "/docs/plain.txt")

		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/events/copied", map[string]any{
			"oldPath": "/docs/plain.txt",
			"newPath": "/backup/plain.txt",
		})
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)
		if body["data"] != nil {
			t.Fatalf("expected null data for untagged copy, got %+v", body["data"])
		}
	})

	t.Run("POST /api/events/deleted retires the record", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/events/deleted", map[string]any{
			"path": "/backup/report.pdf",
		})
		assertStatus(t, resp, http.StatusOK)

		if _, err := env.files.FindByPath(ctx, "/backup/report.pdf"); err == nil {
			t.Fatal("expected record to be retired")
		}
	})

	t.Run("POST /api/fs/move batches into target dir", func(t *testing.T) {
		seedTestFile(t, env, "/inbox/a.txt")
		seedTestFile(t, env, "/inbox/b.txt")

		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/fs/move", map[string]any{
			"paths":     []string{"/inbox/a.txt", "/inbox/b.txt"},
			"targetDir": "/sorted",
		})
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)
		data := envelopeData(t, body)
		if succeeded := data["succeeded"].([]any); len(succeeded) != 2 {
			t.Fatalf("expected two moved paths, got %+v", data)
		}

		if _, err := env.files.FindByPath(ctx, "/sorted/a.txt"); err != nil {
			t.Fatalf("expected moved record: %v", err)
		}
	})

	t.Run("POST /api/fs/move without target rejected", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/fs/move", map[string]any{
			"paths": []string{"/sorted/a.txt"},
		})
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusBadRequest)
		assertEnvelopeError(t, body)
	})

	t.Run("POST /api/fs/copy batches into target dir", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/fs/copy", map[string]any{
			"paths":     []string{"/archive/report.pdf"},
			"targetDir": "/mirror",
		})
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)
		data := envelopeData(t, body)
		if succeeded := data["succeeded"].([]any); len(succeeded) != 1 {
			t.Fatalf("expected one copied path, got %+v", data)
		}
		if _, err := env.files.FindByPath(ctx, "/mirror/report.pdf"); err != nil {
			t.Fatalf("expected copied record: %v", err)
		}
	})

	t.Run("POST /api/fs/delete batches", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/fs/delete", map[string]any{
			"paths": []string{"/sorted/a.txt", "/sorted/b.txt"},
		})
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)
		data := envelopeData(t, body)
		if succeeded := data["succeeded"].([]any); len(succeeded) != 2 {
			t.Fatalf("expected two deleted paths, got %+v", data)
		}
	})

	t.Run("POST /api/fs/rename renames in place", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/fs/rename", map[string]any{
			"oldPath": "/archive/report.pdf",
			"newName": "final.pdf",
		})
		assertStatus(t, resp, http.StatusOK)

		if _, err := env.files.FindByPath(ctx, "/archive/final.pdf"); err != nil {
			t.Fatalf("expected renamed record: %v", err)
		}
	})

	t.Run("POST /api/fs/rename blank name rejected", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/fs/rename", map[string]any{
			"oldPath": "/archive/final.pdf",
			"newName": "   ",
		})
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusBadRequest)
		assertEnvelopeError(t, body)
	})

	t.Run("GET /api/history returns newest first", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/history?limit=5", nil, nil)
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)
		data := envelopeList(t, body)
		if len(data) == 0 {
			t.Fatal("expected history entries")
		}
		first := data[0].(map[string]any)
		if first["changeType"] != "move" {
			t.Fatalf("expected newest entry to be the rename move, got %+v", first)
		}
	})

	t.Run("GET /health reports ok", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/health", nil, nil)
		assertStatus(t, resp, http.StatusOK)
	})
}
