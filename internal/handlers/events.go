package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/tagfiler/backend/internal/services"
	"github.com/tagfiler/backend/pkg/logger"
	"github.com/tagfiler/backend/pkg/utils"
)

// EventsHandler receives filesystem-change notifications. The caller reports
// each event after the underlying filesystem operation already succeeded;
// the engine only reconciles its records.
type EventsHandler struct {
	Files *services.FileService
}

func NewEventsHandler(files *services.FileService) *EventsHandler {
	return &EventsHandler{Files: files}
}

func (h *EventsHandler) Moved(c *fiber.Ctx) error {
	var req struct {
		OldPath string `json:"oldPath"`
		NewPath string `json:"newPath"`
	}
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.OldPath == "" || req.NewPath == "" {
		return utils.Error(c, fiber.StatusBadRequest, "oldPath and newPath are required")
	}

	if err := h.Files.Move(c.Context(), req.OldPath, req.NewPath); err != nil {
		return respondServiceError(c, err)
	}

	logger.Info("file_moved", map[string]interface{}{
		"old_path": req.OldPath,
		"new_path": req.NewPath,
	})
	return utils.Success(c, fiber.StatusOK, fiber.Map{"moved": true})
}

func (h *EventsHandler) Copied(c *fiber.Ctx) error {
	var req struct {
		OldPath string `json:"oldPath"`
		NewPath string `json:"newPath"`
	}
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.OldPath == "" || req.NewPath == "" {
		return utils.Error(c, fiber.StatusBadRequest, "oldPath and newPath are required")
	}

	record, err := h.Files.Copy(c.Context(), req.OldPath, req.NewPath)
	if err != nil {
		return respondServiceError(c, err)
	}

	logger.Info("file_copied", map[string]interface{}{
		"old_path": req.OldPath,
		"new_path": req.NewPath,
		"tracked":  record != nil,
	})
	// record is nil when the source carried no tags; nothing was created.
	return utils.Success(c, fiber.StatusOK, record)
}

func (h *EventsHandler) Deleted(c *fiber.Ctx) error {
	var req struct {
		Path string `json:"path"`
	}
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.Path == "" {
		return utils.Error(c, fiber.StatusBadRequest, "path is required")
	}

	if err := h.Files.SoftDelete(c.Context(), req.Path); err != nil {
		return respondServiceError(c, err)
	}

	logger.Info("file_deleted", map[string]interface{}{
		"path": req.Path,
	})
	return utils.Success(c, fiber.StatusOK, fiber.Map{"deleted": true})
}

// BatchMove reconciles many moved paths into a target directory. Items
// succeed or fail independently; the aggregate is always a 200.
func (h *EventsHandler) BatchMove(c *fiber.Ctx) error {
	paths, targetDir, err := parseBatchTarget(c)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, err.Error())
	}

	result := h.Files.MoveMany(c.Context(), paths, targetDir)
	logBatch("files_batch_moved", result)
	return utils.Success(c, fiber.StatusOK, result)
}

func (h *EventsHandler) BatchCopy(c *fiber.Ctx) error {
	paths, targetDir, err := parseBatchTarget(c)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, err.Error())
	}

	result := h.Files.CopyMany(c.Context(), paths, targetDir)
	logBatch("files_batch_copied", result)
	return utils.Success(c, fiber.StatusOK, result)
}

func (h *EventsHandler) BatchDelete(c *fiber.Ctx) error {
	var req struct {
		Paths []string `json:"paths"`
	}
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if len(req.Paths) == 0 {
		return utils.Error(c, fiber.StatusBadRequest, "paths is required")
	}

	result := h.Files.DeleteMany(c.Context(), req.Paths)
	logBatch("files_batch_deleted", result)
	return utils.Success(c, fiber.StatusOK, result)
}

func (h *EventsHandler) Rename(c *fiber.Ctx) error {
	var req struct {
		OldPath string `json:"oldPath"`
		NewName string `json:"newName"`
	}
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.OldPath == "" || strings.TrimSpace(req.NewName) == "" {
		return utils.Error(c, fiber.StatusBadRequest, "oldPath and newName are required")
	}

	if err := h.Files.Rename(c.Context(), req.OldPath, req.NewName); err != nil {
		return respondServiceError(c, err)
	}

	logger.Info("file_renamed", map[string]interface{}{
		"old_path": req.OldPath,
		"new_name": req.NewName,
	})
	return utils.Success(c, fiber.StatusOK, fiber.Map{"renamed": true})
}

// History exposes the append-only change log for diagnostics.
func (h *EventsHandler) History(c *fiber.Ctx) error {
	entries, err := h.Files.History(c.Context(), c.QueryInt("limit", 0))
	if err != nil {
		return respondServiceError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, entries)
}

func parseBatchTarget(c *fiber.Ctx) ([]string, string, error) {
	var req struct {
		Paths     []string `json:"paths"`
		TargetDir string   `json:"targetDir"`
	}
	if err := c.BodyParser(&req); err != nil {
		return nil, "", errInvalidBody
	}
	if len(req.Paths) == 0 {
		return nil, "", errPathsRequired
	}
	if req.TargetDir == "" {
		return nil, "", errTargetRequired
	}
	return req.Paths, req.TargetDir, nil
}

func logBatch(action string, result *services.BatchResult) {
	logger.Info(action, map[string]interface{}{
		"succeeded": len(result.Succeeded),
		"failed":    len(result.Failed),
	})
}
