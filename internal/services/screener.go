package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phuslu/log"

	"github.com/mmamdouhshahin/EGYstock/internal/models"
	"github.com/mmamdouhshahin/EGYstock/internal/screener"
	"github.com/mmamdouhshahin/EGYstock/pkg/gemini"
)

// Placeholders substituted when a grounding citation is missing a
// title or uri. Citations with neither are dropped entirely.
const (
	placeholderTitle = "Market Source"
	placeholderURI   = "#"
)

// Provider is the external data source for one screening run.
type Provider interface {
	Screen(ctx context.Context, index string) (*gemini.ScreenPayload, error)
}

// MembershipSource supplies the current watchlist symbol set for the
// "watchlist only" filter.
type MembershipSource interface {
	Membership() map[string]struct{}
}

// ScreenerService coordinates provider fetches and serves curated views
// over the latest result. Fetches are single-flight: the fetching flag
// is checked and set before the provider call, and a refresh issued
// while one is running is rejected, never queued.
//
// A failed refresh keeps the previous result intact; the operator sees
// stale data plus the error, never an empty screen.
type ScreenerService struct {
	provider  Provider
	watchlist MembershipSource
	results   *Cache[string, *models.ScreeningResult]

	mu       sync.Mutex
	fetching bool
	current  *models.ScreeningResult
	lastErr  error
	sort     *models.SortState
}

// NewScreenerService wires the orchestrator to its collaborators.
func NewScreenerService(provider Provider, watchlist MembershipSource) *ScreenerService {
	return &ScreenerService{
		provider:  provider,
		watchlist: watchlist,
		results:   NewCache[string, *models.ScreeningResult](0),
	}
}

// Refresh runs one provider fetch for the given index. It returns
// ErrFetchInFlight when a fetch is already running, ErrEmptyResult when
// the provider answers with no stocks, or the provider error otherwise.
// On any failure the previously held result is left untouched.
func (s *ScreenerService) Refresh(ctx context.Context, index string) error {
	s.mu.Lock()
	if s.fetching {
		s.mu.Unlock()
		return ErrFetchInFlight
	}
	s.fetching = true
	s.mu.Unlock()

	log.Info().Str("index", index).Msg("screener: fetch started")
	payload, err := s.provider.Screen(ctx, index)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetching = false

	if err != nil {
		s.lastErr = fmt.Errorf("screener: provider: %w", err)
		log.Warn().Err(err).Str("index", index).Msg("screener: fetch failed, keeping prior result")
		return s.lastErr
	}

	// Validate after normalization: a batch where no record carries a
	// symbol is as empty as no batch at all.
	var result *models.ScreeningResult
	if payload != nil {
		result = buildResult(index, payload, time.Now().UTC())
	}
	if result == nil || len(result.AllStocks) == 0 {
		s.lastErr = ErrEmptyResult
		log.Warn().Str("index", index).Msg("screener: provider returned no usable stocks")
		return ErrEmptyResult
	}

	s.current = result
	s.lastErr = nil
	s.results.Set(index, result)

	log.Info().
		Str("index", index).
		Str("result_id", result.ID).
		Int("stocks", len(result.AllStocks)).
		Int("sources", len(result.Sources)).
		Msg("screener: fetch complete")

	return nil
}

// Recall switches the current view to the retained result for index, if
// one exists from an earlier refresh. It never touches the provider.
func (s *ScreenerService) Recall(index string) bool {
	result, ok := s.results.Get(index)
	if !ok {
		return false
	}

	s.mu.Lock()
	s.current = result
	s.mu.Unlock()
	return true
}

// ToggleSort advances the sort toggle machine for the given column and
// returns the new state.
func (s *ScreenerService) ToggleSort(key string) models.SortState {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := screener.Next(s.sort, key)
	s.sort = &next
	return next
}

// View filters and sorts the current result for display. With no data
// yet it returns an empty view carrying the fetch state and last error.
func (s *ScreenerService) View(criteria models.ScreeningCriteria) models.ViewResponse {
	s.mu.Lock()
	result := s.current
	lastErr := s.lastErr
	fetching := s.fetching
	sortState := s.sort
	s.mu.Unlock()

	view := models.ViewResponse{
		Stocks:   []models.StockRecord{},
		Sort:     sortState,
		Fetching: fetching,
	}
	if lastErr != nil {
		view.LastError = lastErr.Error()
	}
	if result == nil {
		return view
	}

	var membership map[string]struct{}
	if s.watchlist != nil {
		membership = s.watchlist.Membership()
	}

	filtered := screener.Evaluate(result.AllStocks, criteria, membership)

	view.Index = result.Index
	view.Stocks = screener.Apply(filtered, sortState)
	view.Analysis = result.Analysis
	view.Sources = result.Sources
	view.FetchedAt = &result.FetchedAt
	return view
}

// buildResult maps the provider payload into an immutable screening
// result, stamping receipt time on every record because the provider
// carries no timestamps of its own.
func buildResult(index string, payload *gemini.ScreenPayload, now time.Time) *models.ScreeningResult {
	stocks := make([]models.StockRecord, 0, len(payload.Stocks))
	for _, raw := range payload.Stocks {
		if raw.Symbol == "" {
			continue
		}
		stocks = append(stocks, models.StockRecord{
			Symbol:       raw.Symbol,
			Name:         raw.Name,
			CurrentPrice: raw.CurrentPrice,
			Change6M:     raw.Change6M,
			Change1M:     raw.Change1M,
			Change1W:     raw.Change1W,
			PERatio:      raw.PERatio,
			FairValue:    raw.FairValue,
			Sector:       raw.Sector,
			LastUpdated:  now,
		})
	}

	return &models.ScreeningResult{
		ID:        uuid.NewString(),
		Index:     index,
		AllStocks: stocks,
		Analysis:  payload.Analysis,
		Sources:   extractSources(payload.Citations),
		FetchedAt: now,
	}
}

// extractSources defensively flattens grounding citations. Either half
// of the pair may be missing from the provider payload; a citation with
// no usable data at all is omitted rather than emitted empty.
func extractSources(citations []gemini.Citation) []models.Source {
	sources := make([]models.Source, 0, len(citations))
	for _, citation := range citations {
		if citation.Web == nil {
			continue
		}
		title := citation.Web.Title
		uri := citation.Web.URI
		if title == "" && uri == "" {
			continue
		}
		if title == "" {
			title = placeholderTitle
		}
		if uri == "" {
			uri = placeholderURI
		}
		sources = append(sources, models.Source{Title: title, URI: uri})
	}
	return sources
}
