package models

import "time"

// StockRecord is one instrument snapshot from a screening run.
// Symbol is the record's identity within a single result; the provider
// owns de-duplication. PERatio and FairValue use zero as "unavailable".
type StockRecord struct {
	Symbol       string    `json:"symbol"`
	Name         string    `json:"name"`
	CurrentPrice float64   `json:"currentPrice"`
	Change6M     float64   `json:"change6m"`
	Change1M     float64   `json:"change1m"`
	Change1W     float64   `json:"change1w"`
	PERatio      float64   `json:"peRatio,omitempty"`
	FairValue    float64   `json:"fairValue,omitempty"`
	Sector       string    `json:"sector,omitempty"`
	LastUpdated  time.Time `json:"lastUpdated"`
}

// Source is one grounding citation attached to a screening result.
type Source struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// ScreeningResult is the outcome of one successful fetch. It is built
// atomically by the screener service and never mutated afterwards; the
// next successful fetch replaces it wholesale.
type ScreeningResult struct {
	ID        string        `json:"id"`
	Index     string        `json:"index"`
	AllStocks []StockRecord `json:"allStocks"`
	Analysis  string        `json:"analysis"`
	Sources   []Source      `json:"sources"`
	FetchedAt time.Time     `json:"fetchedAt"`
}

// WindowFilter is the bound configuration for one performance window.
type WindowFilter struct {
	Enabled bool    `json:"enabled"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}

// ScreeningCriteria is the operator-owned filter configuration. The
// evaluator reads it and never mutates it.
//
// UseAbsolute1M switches the 1-month window from a one-sided floor
// (change1m >= min, max ignored) to a two-sided OR that catches large
// moves in either direction (change1m >= min OR change1m <= max).
type ScreeningCriteria struct {
	Window6M        WindowFilter `json:"window6m"`
	Window1M        WindowFilter `json:"window1m"`
	Window1W        WindowFilter `json:"window1w"`
	UseAbsolute1M   bool         `json:"useAbsolute1m"`
	UndervaluedOnly bool         `json:"undervaluedOnly"`
	WatchlistOnly   bool         `json:"watchlistOnly"`
}

// Sort directions.
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// SortState names the active sort column and direction. A nil state
// means no sort is applied and provider order is retained.
type SortState struct {
	Key       string `json:"key"`
	Direction string `json:"direction"`
}

// WatchlistEntry is one persisted symbol of interest. PriceAtSave is a
// snapshot of the price at the moment the symbol was added.
type WatchlistEntry struct {
	Symbol      string    `json:"symbol" firestore:"symbol"`
	Name        string    `json:"name" firestore:"name"`
	PriceAtSave float64   `json:"priceAtSave" firestore:"price_at_save"`
	SavedAt     time.Time `json:"savedAt" firestore:"saved_at"`
}

// RefreshRequest asks the screener to run a fresh provider fetch.
type RefreshRequest struct {
	Index string `json:"index"`
}

// ViewRequest asks for the current result filtered and sorted for
// display. Index optionally switches to the retained result of an
// earlier refresh without touching the provider.
type ViewRequest struct {
	Index    string            `json:"index,omitempty"`
	Criteria ScreeningCriteria `json:"criteria"`
}

// ViewResponse is the curated view over the current screening result.
type ViewResponse struct {
	Index     string        `json:"index,omitempty"`
	Stocks    []StockRecord `json:"stocks"`
	Analysis  string        `json:"analysis,omitempty"`
	Sources   []Source      `json:"sources,omitempty"`
	Sort      *SortState    `json:"sort,omitempty"`
	Fetching  bool          `json:"fetching"`
	LastError string        `json:"lastError,omitempty"`
	FetchedAt *time.Time    `json:"fetchedAt,omitempty"`
}

// SortRequest advances the sort toggle machine for one column.
type SortRequest struct {
	Key string `json:"key"`
}

// ToggleRequest flips watchlist membership for one symbol.
type ToggleRequest struct {
	Symbol       string  `json:"symbol"`
	Name         string  `json:"name"`
	CurrentPrice float64 `json:"currentPrice"`
}

// ErrorResponse represents API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}
