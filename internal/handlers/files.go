package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/tagfiler/backend/internal/services"
	"github.com/tagfiler/backend/pkg/logger"
	"github.com/tagfiler/backend/pkg/utils"
)

type FilesHandler struct {
	Files        *services.FileService
	Associations *services.AssociationService
	Search       *services.SearchService
}

func NewFilesHandler(files *services.FileService, associations *services.AssociationService, search *services.SearchService) *FilesHandler {
	return &FilesHandler{Files: files, Associations: associations, Search: search}
}

// List is the general query surface: keyword, tag set, size range, date
// range, sorting and pagination in one call.
func (h *FilesHandler) List(c *fiber.Ctx) error {
	params := utils.ParsePagination(c)

	query := services.FileQuery{
		Keyword:  c.Query("keyword"),
		SortBy:   services.SortKey(c.Query("sortBy", string(services.SortByName))),
		Desc:     strings.EqualFold(c.Query("order"), "desc"),
		Page:     params.Page,
		PageSize: params.PageSize,
	}

	if raw := c.Query("tagIds"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			id, err := parseID(part)
			if err != nil {
				return utils.Error(c, fiber.StatusBadRequest, "invalid tagIds")
			}
			query.TagIDs = append(query.TagIDs, id)
		}
	}

	if raw := c.Query("minSize"); raw != "" {
		size, err := parseSize(raw)
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid minSize")
		}
		query.MinSize = &size
	}
	if raw := c.Query("maxSize"); raw != "" {
		size, err := parseSize(raw)
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid maxSize")
		}
		query.MaxSize = &size
	}

	if raw := c.Query("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid from timestamp")
		}
		query.From = &from
	}
	if raw := c.Query("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid to timestamp")
		}
		query.To = &to
	}

	page, err := h.Search.ListFiles(c.Context(), query)
	if err != nil {
		return respondServiceError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, page)
}

// SearchByTags evaluates grouped tag criteria with AND/OR logic.
func (h *FilesHandler) SearchByTags(c *fiber.Ctx) error {
	var req struct {
		TagGroups  []services.TagGroup `json:"tagGroups"`
		GroupLogic services.GroupLogic `json:"groupLogic"`
	}
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.GroupLogic == "" {
		req.GroupLogic = services.GroupLogicAnd
	}

	records, err := h.Associations.SearchByTagGroups(c.Context(), req.TagGroups, req.GroupLogic)
	if err != nil {
		return respondServiceError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, records)
}

// TagPaths applies one tag to many paths, creating records lazily and
// reporting per-path outcomes.
func (h *FilesHandler) TagPaths(c *fiber.Ctx) error {
	var req struct {
		Paths []string `json:"paths"`
		TagID uint     `json:"tagId"`
	}
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if len(req.Paths) == 0 {
		return utils.Error(c, fiber.StatusBadRequest, "paths is required")
	}

	result, err := h.Associations.TagPaths(c.Context(), req.Paths, req.TagID)
	if err != nil {
		return respondServiceError(c, err)
	}

	logger.Info("files_tagged", map[string]interface{}{
		"tag_id":    req.TagID,
		"succeeded": len(result.Succeeded),
		"failed":    len(result.Failed),
	})
	return utils.Success(c, fiber.StatusOK, result)
}

// ListTags returns the tags attached to one record.
func (h *FilesHandler) ListTags(c *fiber.Ctx) error {
	id, err := parseID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid file id")
	}

	tags, err := h.Associations.ListForFile(c.Context(), id)
	if err != nil {
		return respondServiceError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, tags)
}

// Untag detaches one tag from one record; an absent pair is a no-op.
func (h *FilesHandler) Untag(c *fiber.Ctx) error {
	fileID, err := parseID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid file id")
	}
	tagID, err := parseID(c.Params("tagId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid tag id")
	}

	if err := h.Associations.Detach(c.Context(), fileID, tagID); err != nil {
		return respondServiceError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"detached": true})
}

func parseSize(value string) (int64, error) {
	parsed, err := parseID(value)
	if err != nil {
		return 0, err
	}
	return int64(parsed), nil
}
