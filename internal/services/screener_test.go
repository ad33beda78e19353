package services

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"testing"

	"github.com/mmamdouhshahin/EGYstock/internal/models"
	"github.com/mmamdouhshahin/EGYstock/internal/screener"
	"github.com/mmamdouhshahin/EGYstock/pkg/gemini"
)

type fakeProvider struct {
	mu      sync.Mutex
	calls   int
	payload *gemini.ScreenPayload
	err     error
	block   chan struct{} // when set, Screen waits until closed
}

func (f *fakeProvider) Screen(ctx context.Context, index string) (*gemini.ScreenPayload, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.payload, nil
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func goodPayload() *gemini.ScreenPayload {
	return &gemini.ScreenPayload{
		Stocks: []gemini.RawStock{
			{Symbol: "COMI", Name: "CIB", CurrentPrice: 82.5, Change6M: 20, FairValue: 95},
			{Symbol: "ABUK", Name: "Abu Qir", CurrentPrice: 55.1, Change6M: 5},
		},
		Analysis: "Banks lead the index.",
		Citations: []gemini.Citation{
			{Web: &gemini.WebSource{Title: "EGX Daily", URI: "https://example.com/egx"}},
		},
	}
}

func TestRefreshBuildsResult(t *testing.T) {
	provider := &fakeProvider{payload: goodPayload()}
	service := NewScreenerService(provider, nil)

	if err := service.Refresh(context.Background(), "EGX30"); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	view := service.View(models.ScreeningCriteria{})
	if len(view.Stocks) != 2 {
		t.Fatalf("expected 2 stocks, got %d", len(view.Stocks))
	}
	if view.Stocks[0].LastUpdated.IsZero() {
		t.Fatalf("records must be stamped at receipt time")
	}
	if view.Analysis != "Banks lead the index." {
		t.Fatalf("unexpected analysis: %q", view.Analysis)
	}
	if view.Index != "EGX30" {
		t.Fatalf("unexpected index: %q", view.Index)
	}
	if view.LastError != "" {
		t.Fatalf("unexpected error on success: %q", view.LastError)
	}
}

func TestRefreshSingleFlight(t *testing.T) {
	block := make(chan struct{})
	provider := &fakeProvider{payload: goodPayload(), block: block}
	service := NewScreenerService(provider, nil)

	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		close(started)
		done <- service.Refresh(context.Background(), "EGX30")
	}()
	<-started

	// Wait until the first fetch reaches the provider.
	for provider.callCount() == 0 {
		runtime.Gosched()
	}

	if err := service.Refresh(context.Background(), "EGX30"); !errors.Is(err, ErrFetchInFlight) {
		t.Fatalf("expected ErrFetchInFlight, got %v", err)
	}
	if provider.callCount() != 1 {
		t.Fatalf("second refresh must not reach the provider, calls=%d", provider.callCount())
	}

	close(block)
	if err := <-done; err != nil {
		t.Fatalf("first refresh: %v", err)
	}

	// Gate reopens once the fetch resolves.
	if err := service.Refresh(context.Background(), "EGX30"); err != nil {
		t.Fatalf("refresh after resolve: %v", err)
	}
}

func TestRefreshEmptyResultIsFailure(t *testing.T) {
	provider := &fakeProvider{payload: &gemini.ScreenPayload{Analysis: "nothing found"}}
	service := NewScreenerService(provider, nil)

	err := service.Refresh(context.Background(), "EGX30")
	if !errors.Is(err, ErrEmptyResult) {
		t.Fatalf("expected ErrEmptyResult, got %v", err)
	}

	view := service.View(models.ScreeningCriteria{})
	if view.LastError == "" {
		t.Fatalf("empty result should surface as an error")
	}
}

func TestRefreshUnkeyedBatchKeepsPriorResult(t *testing.T) {
	provider := &fakeProvider{payload: goodPayload()}
	service := NewScreenerService(provider, nil)

	if err := service.Refresh(context.Background(), "EGX30"); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	before := service.View(models.ScreeningCriteria{})

	// Records without a symbol are dropped at the boundary; a batch made
	// only of them must count as empty, not as a success.
	provider.payload = &gemini.ScreenPayload{
		Stocks:   []gemini.RawStock{{Name: "Unkeyed Co", CurrentPrice: 12}},
		Analysis: "nothing usable",
	}

	err := service.Refresh(context.Background(), "EGX30")
	if !errors.Is(err, ErrEmptyResult) {
		t.Fatalf("expected ErrEmptyResult for all-unkeyed batch, got %v", err)
	}

	after := service.View(models.ScreeningCriteria{})
	if len(after.Stocks) != len(before.Stocks) {
		t.Fatalf("unkeyed batch displaced prior result: before=%d after=%d", len(before.Stocks), len(after.Stocks))
	}
	if after.Analysis != before.Analysis {
		t.Fatalf("analysis changed across rejected refresh")
	}
	if after.LastError == "" {
		t.Fatalf("rejected refresh must surface an error")
	}
}

func TestRefreshNilPayloadIsFailure(t *testing.T) {
	provider := &fakeProvider{}
	service := NewScreenerService(provider, nil)

	err := service.Refresh(context.Background(), "EGX30")
	if !errors.Is(err, ErrEmptyResult) {
		t.Fatalf("expected ErrEmptyResult for nil payload, got %v", err)
	}
}

func TestRefreshFailureKeepsPriorResult(t *testing.T) {
	provider := &fakeProvider{payload: goodPayload()}
	service := NewScreenerService(provider, nil)

	if err := service.Refresh(context.Background(), "EGX30"); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	before := service.View(models.ScreeningCriteria{})

	provider.err = errors.New("provider unreachable")
	if err := service.Refresh(context.Background(), "EGX30"); err == nil {
		t.Fatalf("expected provider error")
	}

	after := service.View(models.ScreeningCriteria{})
	if len(after.Stocks) != len(before.Stocks) {
		t.Fatalf("failed refresh must keep prior stocks: before=%d after=%d", len(before.Stocks), len(after.Stocks))
	}
	for i := range after.Stocks {
		if after.Stocks[i] != before.Stocks[i] {
			t.Fatalf("stock %d changed across failed refresh", i)
		}
	}
	if after.Analysis != before.Analysis {
		t.Fatalf("analysis changed across failed refresh")
	}
	if after.LastError == "" {
		t.Fatalf("failure must be visible next to the stale data")
	}

	// A later success clears the error.
	provider.err = nil
	if err := service.Refresh(context.Background(), "EGX30"); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if view := service.View(models.ScreeningCriteria{}); view.LastError != "" {
		t.Fatalf("successful refresh should clear the error, got %q", view.LastError)
	}
}

func TestRecallSwitchesRetainedResult(t *testing.T) {
	provider := &fakeProvider{payload: goodPayload()}
	service := NewScreenerService(provider, nil)

	if err := service.Refresh(context.Background(), "EGX30"); err != nil {
		t.Fatalf("refresh EGX30: %v", err)
	}

	provider.payload = &gemini.ScreenPayload{
		Stocks:   []gemini.RawStock{{Symbol: "ORWE", Name: "Oriental Weavers", CurrentPrice: 28}},
		Analysis: "Broader market snapshot.",
	}
	if err := service.Refresh(context.Background(), "EGX70"); err != nil {
		t.Fatalf("refresh EGX70: %v", err)
	}

	if !service.Recall("EGX30") {
		t.Fatalf("EGX30 result should be retained")
	}
	if view := service.View(models.ScreeningCriteria{}); view.Index != "EGX30" {
		t.Fatalf("expected EGX30 view after recall, got %q", view.Index)
	}

	if service.Recall("EGX100") {
		t.Fatalf("EGX100 was never fetched")
	}
}

func TestToggleSortDrivesViewOrder(t *testing.T) {
	provider := &fakeProvider{payload: goodPayload()}
	service := NewScreenerService(provider, nil)

	if err := service.Refresh(context.Background(), "EGX30"); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	state := service.ToggleSort(screener.KeyCurrentPrice)
	if state.Direction != models.SortDesc {
		t.Fatalf("first toggle should be desc, got %+v", state)
	}
	view := service.View(models.ScreeningCriteria{})
	if view.Stocks[0].Symbol != "COMI" {
		t.Fatalf("price desc should place COMI first, got %s", view.Stocks[0].Symbol)
	}

	state = service.ToggleSort(screener.KeyCurrentPrice)
	if state.Direction != models.SortAsc {
		t.Fatalf("second toggle should be asc, got %+v", state)
	}
	view = service.View(models.ScreeningCriteria{})
	if view.Stocks[0].Symbol != "ABUK" {
		t.Fatalf("price asc should place ABUK first, got %s", view.Stocks[0].Symbol)
	}
}

func TestViewAppliesWatchlistFilter(t *testing.T) {
	provider := &fakeProvider{payload: goodPayload()}
	store := &fakeStore{remote: map[string]models.WatchlistEntry{
		"ABUK": {Symbol: "ABUK", Name: "Abu Qir"},
	}}
	watchlist := NewWatchlistService(store)
	if err := watchlist.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	service := NewScreenerService(provider, watchlist)
	if err := service.Refresh(context.Background(), "EGX30"); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	view := service.View(models.ScreeningCriteria{WatchlistOnly: true})
	if len(view.Stocks) != 1 || view.Stocks[0].Symbol != "ABUK" {
		t.Fatalf("expected watchlist-only view [ABUK], got %d stocks", len(view.Stocks))
	}
}

func TestExtractSources(t *testing.T) {
	citations := []gemini.Citation{
		{Web: &gemini.WebSource{Title: "EGX Daily", URI: "https://example.com/a"}},
		{Web: &gemini.WebSource{URI: "https://example.com/b"}},
		{Web: &gemini.WebSource{Title: "Untracked report"}},
		{Web: &gemini.WebSource{}},
		{},
	}

	sources := extractSources(citations)

	if len(sources) != 3 {
		t.Fatalf("expected 3 usable sources, got %d", len(sources))
	}
	if sources[0].Title != "EGX Daily" {
		t.Fatalf("unexpected first source: %+v", sources[0])
	}
	if sources[1].Title != placeholderTitle {
		t.Fatalf("missing title should use placeholder, got %q", sources[1].Title)
	}
	if sources[2].URI != placeholderURI {
		t.Fatalf("missing uri should use placeholder, got %q", sources[2].URI)
	}
}
