package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/mmamdouhshahin/EGYstock/internal/models"
	"github.com/mmamdouhshahin/EGYstock/internal/services"
)

type HealthHandler struct {
	startTime time.Time
	watchlist *services.WatchlistService
}

func NewHealthHandler(watchlist *services.WatchlistService) *HealthHandler {
	return &HealthHandler{
		startTime: time.Now(),
		watchlist: watchlist,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "healthy",
		"service": "egystock-api",
		"version": "1.0.0",
		"uptime":  time.Since(h.startTime).String(),
		"time":    time.Now(),
	})
}

// Ready handles GET /health/ready
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	watchlist := "degraded"
	if h.watchlist.Configured() {
		watchlist = "ok"
	}

	return c.JSON(fiber.Map{
		"status": "ready",
		"checks": fiber.Map{
			"api":       "ok",
			"watchlist": watchlist,
		},
	})
}

// CustomErrorHandler handles Fiber errors
func CustomErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	return c.Status(code).JSON(models.ErrorResponse{
		Error:   "Request failed",
		Message: err.Error(),
		Code:    code,
	})
}
