package handlers

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/tagfiler/backend/internal/services"
	"github.com/tagfiler/backend/pkg/utils"
)

var (
	errInvalidBody    = errors.New("invalid request body")
	errPathsRequired  = errors.New("paths is required")
	errTargetRequired = errors.New("targetDir is required")
)

func parseID(value string) (uint, error) {
	parsed, err := strconv.ParseUint(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(parsed), nil
}

// respondServiceError translates the store-level failure taxonomy into HTTP
// statuses; anything unclassified is an internal error.
func respondServiceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return utils.Error(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrEmptyName):
		return utils.Error(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrDuplicateTag), errors.Is(err, services.ErrCycleDetected):
		return utils.Error(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, services.ErrConstraint):
		return utils.Error(c, fiber.StatusUnprocessableEntity, err.Error())
	default:
		return utils.Error(c, fiber.StatusInternalServerError, err.Error())
	}
}
