package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"personachat/internal/health"
)

// HealthHandler handles liveness and readiness checks
type HealthHandler struct {
	health *health.Service
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(svc *health.Service) *HealthHandler {
	return &HealthHandler{health: svc}
}

// Handle responds with process liveness
func (h *HealthHandler) Handle(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// Ready reports the last dependency probe. Before the first probe it checks inline.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	report := h.health.Last()
	if report.Status == health.StatusUnknown {
		report = h.health.CheckAll(c.UserContext())
	}

	status := fiber.StatusOK
	if !report.Ready() {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(report)
}
