package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/tagfiler/backend/internal/services"
	"github.com/tagfiler/backend/pkg/logger"
	"github.com/tagfiler/backend/pkg/utils"
)

type TagsHandler struct {
	Tags   *services.TagService
	Search *services.SearchService
}

func NewTagsHandler(tags *services.TagService, search *services.SearchService) *TagsHandler {
	return &TagsHandler{Tags: tags, Search: search}
}

// List returns tags ordered by mode: most_used (default) or recent_used.
func (h *TagsHandler) List(c *fiber.Ctx) error {
	mode := services.ListMode(c.Query("mode", string(services.ListModeMostUsed)))
	limit := c.QueryInt("limit", 0)

	tags, err := h.Tags.List(c.Context(), mode, limit)
	if err != nil {
		return respondServiceError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, tags)
}

// SearchByName matches tag names against a keyword; an empty keyword yields
// an empty list.
func (h *TagsHandler) SearchByName(c *fiber.Ctx) error {
	keyword := c.Query("keyword")
	limit := c.QueryInt("limit", 0)

	tags, err := h.Tags.Search(c.Context(), keyword, limit)
	if err != nil {
		return respondServiceError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, tags)
}

func (h *TagsHandler) Create(c *fiber.Ctx) error {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	tag, err := h.Tags.Create(c.Context(), req.Name)
	if err != nil {
		return respondServiceError(c, err)
	}

	logger.Info("tag_created", map[string]interface{}{
		"tag_id": tag.ID,
		"name":   tag.Name,
	})
	return utils.Success(c, fiber.StatusCreated, tag)
}

// Modify applies a tri-state update: absent fields stay, null fields clear,
// valued fields set.
func (h *TagsHandler) Modify(c *fiber.Ctx) error {
	id, err := parseID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid tag id")
	}

	var update services.TagUpdate
	if err := c.BodyParser(&update); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	tag, err := h.Tags.Modify(c.Context(), id, update)
	if err != nil {
		return respondServiceError(c, err)
	}

	logger.Info("tag_modified", map[string]interface{}{
		"tag_id": tag.ID,
	})
	return utils.Success(c, fiber.StatusOK, tag)
}

// Delete removes the tag, its descendants and all of their associations.
func (h *TagsHandler) Delete(c *fiber.Ctx) error {
	id, err := parseID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid tag id")
	}

	if err := h.Tags.Delete(c.Context(), id); err != nil {
		return respondServiceError(c, err)
	}

	logger.Info("tag_deleted", map[string]interface{}{
		"tag_id": id,
	})
	return utils.Success(c, fiber.StatusOK, fiber.Map{"deleted": id})
}

// Files pages through the records carrying this tag.
func (h *TagsHandler) Files(c *fiber.Ctx) error {
	id, err := parseID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid tag id")
	}

	params := utils.ParsePagination(c)
	page, err := h.Search.FilesByTag(c.Context(), id, params.Page, params.PageSize)
	if err != nil {
		return respondServiceError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, page)
}
