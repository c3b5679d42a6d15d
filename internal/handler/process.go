package handler

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/orbitlabs/orbit-api/internal/model"
	"github.com/orbitlabs/orbit-api/internal/repository"
	"github.com/orbitlabs/orbit-api/pkg/response"
)

// WorkflowService is the surface of the process service the handler uses.
type WorkflowService interface {
	Process(ctx context.Context, req *model.ProcessRequest) *model.ProcessResponse
	Discovery(ctx context.Context) (*model.DiscoveryResult, error)
	OrderStatus(ctx context.Context, orderID string) (*model.Order, []model.Image, map[model.ImageStatus]int, error)
}

// ProcessHandler exposes the workflow trigger and order status endpoints.
type ProcessHandler struct {
	svc      WorkflowService
	validate *validator.Validate
}

func NewProcessHandler(svc WorkflowService) *ProcessHandler {
	return &ProcessHandler{
		svc:      svc,
		validate: validator.New(),
	}
}

// HandleProcess triggers a workflow run for one order.
// POST /internal/orders/process
func (h *ProcessHandler) HandleProcess(c *fiber.Ctx) error {
	var req model.ProcessRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validate.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	resp := h.svc.Process(c.Context(), &req)
	return response.OK(c, resp)
}

// HandleStatus returns the current order and per-image state.
// GET /internal/orders/:orderId/status
func (h *ProcessHandler) HandleStatus(c *fiber.Ctx) error {
	orderID := c.Params("orderId")
	if orderID == "" {
		return response.ValidationError(c, "orderId is required", nil)
	}

	order, images, counts, err := h.svc.OrderStatus(c.Context(), orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return response.NotFound(c, "Order not found")
		}
		return response.ServiceError(c, "Failed to load order status")
	}

	return response.OK(c, fiber.Map{
		"order":        order,
		"images":       images,
		"statusCounts": counts,
	})
}

// HandleDiscovery lists orders awaiting processing, sweeping stuck ones
// first.
// GET /internal/orders/pending
func (h *ProcessHandler) HandleDiscovery(c *fiber.Ctx) error {
	result, err := h.svc.Discovery(c.Context())
	if err != nil {
		return response.ServiceError(c, "Discovery failed")
	}
	return response.OK(c, result)
}

func formatValidationErrors(err error) []string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(ve))
	for _, fe := range ve {
		switch fe.Tag() {
		case "required":
			out = append(out, fmt.Sprintf("%s is required", fe.Field()))
		case "oneof":
			out = append(out, fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param()))
		default:
			out = append(out, fmt.Sprintf("%s is invalid", fe.Field()))
		}
	}
	return out
}
