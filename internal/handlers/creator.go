package handlers

import (
	"github.com/gofiber/fiber/v2"

	"personachat/internal/models"
)

// CreatorLister lists the active creator personas
type CreatorLister interface {
	List() []models.Creator
}

// CreatorHandler exposes the creator registry
type CreatorHandler struct {
	creators CreatorLister
}

// NewCreatorHandler creates a new creator handler
func NewCreatorHandler(creators CreatorLister) *CreatorHandler {
	return &CreatorHandler{creators: creators}
}

// List returns the active creators
// GET /api/v1/creators
func (h *CreatorHandler) List(c *fiber.Ctx) error {
	creators := h.creators.List()
	return c.JSON(fiber.Map{
		"creators": creators,
		"count":    len(creators),
	})
}
