package services

import "errors"

// Sentinel conditions surfaced by the screening and watchlist services.
// Everything else arrives as a wrapped provider or persistence error.
var (
	// ErrFetchInFlight rejects a refresh while one is already running.
	// The request is neither queued nor does it cancel anything; callers
	// retry once the current fetch resolves.
	ErrFetchInFlight = errors.New("screener: fetch already in progress")

	// ErrEmptyResult marks a structurally valid provider response with
	// no stocks. An empty batch is never a valid success in this domain.
	ErrEmptyResult = errors.New("screener: provider returned no stocks")

	// ErrUnconfigured is the soft failure of every watchlist operation
	// when no persistence store was configured.
	ErrUnconfigured = errors.New("watchlist: store not configured")
)
