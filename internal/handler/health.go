package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/orbitlabs/orbit-api/internal/model"
	"github.com/orbitlabs/orbit-api/internal/service"
	"github.com/orbitlabs/orbit-api/pkg/response"
)

// HealthHandler reports aggregated component health.
type HealthHandler struct {
	svc *service.HealthService
}

func NewHealthHandler(svc *service.HealthService) *HealthHandler {
	return &HealthHandler{svc: svc}
}

// HandleHealth runs all component probes.
// GET /health
func (h *HealthHandler) HandleHealth(c *fiber.Ctx) error {
	report := h.svc.Report(c.Context())
	if report.Overall == model.HealthUnhealthy {
		return c.Status(fiber.StatusServiceUnavailable).JSON(report)
	}
	return response.OK(c, report)
}
