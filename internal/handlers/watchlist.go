package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/mmamdouhshahin/EGYstock/internal/models"
	"github.com/mmamdouhshahin/EGYstock/internal/services"
)

type WatchlistHandler struct {
	watchlist *services.WatchlistService
}

func NewWatchlistHandler(watchlist *services.WatchlistService) *WatchlistHandler {
	return &WatchlistHandler{
		watchlist: watchlist,
	}
}

// List handles GET /v1/watchlist
func (h *WatchlistHandler) List(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"configured": h.watchlist.Configured(),
		"entries":    h.watchlist.Entries(),
	})
}

// Toggle handles POST /v1/watchlist/toggle
func (h *WatchlistHandler) Toggle(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 10*time.Second)
	defer cancel()

	var req models.ToggleRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(models.ErrorResponse{
			Error:   "Invalid request body",
			Message: err.Error(),
			Code:    400,
		})
	}
	if req.Symbol == "" {
		return c.Status(400).JSON(models.ErrorResponse{
			Error: "Symbol is required",
			Code:  400,
		})
	}

	record := models.StockRecord{
		Symbol:       req.Symbol,
		Name:         req.Name,
		CurrentPrice: req.CurrentPrice,
	}

	member, err := h.watchlist.Toggle(ctx, record)
	if err != nil {
		if errors.Is(err, services.ErrUnconfigured) {
			return c.Status(503).JSON(models.ErrorResponse{
				Error:   "Watchlist unavailable",
				Message: "No persistence store is configured",
				Code:    503,
			})
		}
		// The toggle did not happen; screen data stays valid.
		return c.Status(502).JSON(models.ErrorResponse{
			Error:   "Watchlist update failed",
			Message: err.Error(),
			Code:    502,
		})
	}

	return c.JSON(fiber.Map{
		"symbol":      req.Symbol,
		"inWatchlist": member,
	})
}
