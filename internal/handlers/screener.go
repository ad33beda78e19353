package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/mmamdouhshahin/EGYstock/internal/models"
	"github.com/mmamdouhshahin/EGYstock/internal/services"
)

type ScreenerHandler struct {
	screener     *services.ScreenerService
	defaultIndex string
	fetchTimeout time.Duration
}

func NewScreenerHandler(screener *services.ScreenerService, defaultIndex string, fetchTimeout time.Duration) *ScreenerHandler {
	return &ScreenerHandler{
		screener:     screener,
		defaultIndex: defaultIndex,
		fetchTimeout: fetchTimeout,
	}
}

// Refresh handles POST /v1/screen/refresh
func (h *ScreenerHandler) Refresh(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), h.fetchTimeout)
	defer cancel()

	// An empty body means "refresh the default index".
	var req models.RefreshRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(models.ErrorResponse{
				Error:   "Invalid request body",
				Message: err.Error(),
				Code:    400,
			})
		}
	}
	if req.Index == "" {
		req.Index = h.defaultIndex
	}

	if err := h.screener.Refresh(ctx, req.Index); err != nil {
		if errors.Is(err, services.ErrFetchInFlight) {
			return c.Status(409).JSON(models.ErrorResponse{
				Error:   "Fetch already in progress",
				Message: "Wait for the current fetch to finish, then retry",
				Code:    409,
			})
		}
		// Retryable; any previously fetched data is still served.
		return c.Status(502).JSON(models.ErrorResponse{
			Error:   "Screening fetch failed",
			Message: err.Error(),
			Code:    502,
		})
	}

	return c.JSON(h.screener.View(models.ScreeningCriteria{}))
}

// View handles POST /v1/screen/view
func (h *ScreenerHandler) View(c *fiber.Ctx) error {
	var req models.ViewRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(models.ErrorResponse{
			Error:   "Invalid request body",
			Message: err.Error(),
			Code:    400,
		})
	}

	if req.Index != "" {
		h.screener.Recall(req.Index)
	}

	return c.JSON(h.screener.View(req.Criteria))
}

// Sort handles POST /v1/screen/sort
func (h *ScreenerHandler) Sort(c *fiber.Ctx) error {
	var req models.SortRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(models.ErrorResponse{
			Error:   "Invalid request body",
			Message: err.Error(),
			Code:    400,
		})
	}
	if req.Key == "" {
		return c.Status(400).JSON(models.ErrorResponse{
			Error: "Sort key is required",
			Code:  400,
		})
	}

	return c.JSON(h.screener.ToggleSort(req.Key))
}
