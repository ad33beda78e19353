package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/phuslu/log"
	"google.golang.org/api/iterator"

	"github.com/mmamdouhshahin/EGYstock/internal/models"
)

const watchlistCollection = "watchlist"

// Store is the remote watchlist table: one row per symbol.
type Store interface {
	List(ctx context.Context) ([]models.WatchlistEntry, error)
	Insert(ctx context.Context, entry models.WatchlistEntry) error
	Delete(ctx context.Context, symbol string) error
}

// WatchlistService mirrors the remote symbol set locally for cheap
// membership tests. Writes are remote-first: the mirror only changes
// after the store confirms, so the UI never sees an unconfirmed toggle
// as fact. Without a configured store every operation degrades to
// ErrUnconfigured instead of probing.
//
// Toggles are not serialized here; overlapping toggles on one symbol
// are the caller's responsibility to prevent.
type WatchlistService struct {
	store Store

	mu      sync.RWMutex
	entries map[string]models.WatchlistEntry
}

// NewWatchlistService wraps the given store. A nil store puts the
// service in degraded mode permanently.
func NewWatchlistService(store Store) *WatchlistService {
	return &WatchlistService{
		store:   store,
		entries: make(map[string]models.WatchlistEntry),
	}
}

// Configured reports whether a remote store is available.
func (s *WatchlistService) Configured() bool {
	return s.store != nil
}

// Load replaces the local mirror with the full remote symbol set. It is
// called once at startup; there is no incremental sync afterwards.
func (s *WatchlistService) Load(ctx context.Context) error {
	if s.store == nil {
		return ErrUnconfigured
	}

	remote, err := s.store.List(ctx)
	if err != nil {
		return fmt.Errorf("watchlist: load: %w", err)
	}

	entries := make(map[string]models.WatchlistEntry, len(remote))
	for _, entry := range remote {
		if entry.Symbol == "" {
			continue
		}
		entries[entry.Symbol] = entry
	}

	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()

	log.Info().Int("symbols", len(entries)).Msg("watchlist: loaded from store")
	return nil
}

// Membership returns a snapshot of the watched symbol set. In degraded
// mode the set is always empty.
func (s *WatchlistService) Membership() map[string]struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	membership := make(map[string]struct{}, len(s.entries))
	for symbol := range s.entries {
		membership[symbol] = struct{}{}
	}
	return membership
}

// Entries returns the watched entries ordered by symbol.
func (s *WatchlistService) Entries() []models.WatchlistEntry {
	s.mu.RLock()
	entries := make([]models.WatchlistEntry, 0, len(s.entries))
	for _, entry := range s.entries {
		entries = append(entries, entry)
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Symbol < entries[j].Symbol
	})
	return entries
}

// Toggle flips membership for the record's symbol, remote store first.
// On remote failure the mirror is left exactly as it was and the error
// surfaces to the caller. It reports whether the symbol is a member
// after the toggle.
func (s *WatchlistService) Toggle(ctx context.Context, record models.StockRecord) (bool, error) {
	if s.store == nil {
		return false, ErrUnconfigured
	}

	s.mu.RLock()
	_, member := s.entries[record.Symbol]
	s.mu.RUnlock()

	if member {
		if err := s.store.Delete(ctx, record.Symbol); err != nil {
			return true, fmt.Errorf("watchlist: remove %s: %w", record.Symbol, err)
		}

		s.mu.Lock()
		delete(s.entries, record.Symbol)
		s.mu.Unlock()

		log.Info().Str("symbol", record.Symbol).Msg("watchlist: removed")
		return false, nil
	}

	entry := models.WatchlistEntry{
		Symbol:      record.Symbol,
		Name:        record.Name,
		PriceAtSave: record.CurrentPrice,
		SavedAt:     time.Now().UTC(),
	}
	if err := s.store.Insert(ctx, entry); err != nil {
		return false, fmt.Errorf("watchlist: add %s: %w", record.Symbol, err)
	}

	s.mu.Lock()
	s.entries[record.Symbol] = entry
	s.mu.Unlock()

	log.Info().Str("symbol", record.Symbol).Msg("watchlist: added")
	return true, nil
}

// FirestoreStore keeps the watchlist in a Firestore collection keyed by
// symbol.
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore connects to Firestore for the given project.
func NewFirestoreStore(ctx context.Context, projectID string) (*FirestoreStore, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("watchlist: firestore client: %w", err)
	}
	return &FirestoreStore{client: client}, nil
}

func (f *FirestoreStore) List(ctx context.Context) ([]models.WatchlistEntry, error) {
	iter := f.client.Collection(watchlistCollection).Documents(ctx)
	defer iter.Stop()

	var entries []models.WatchlistEntry
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}

		var entry models.WatchlistEntry
		if err := doc.DataTo(&entry); err != nil {
			log.Warn().Err(err).Str("doc", doc.Ref.ID).Msg("watchlist: skipping malformed entry")
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (f *FirestoreStore) Insert(ctx context.Context, entry models.WatchlistEntry) error {
	_, err := f.client.Collection(watchlistCollection).Doc(entry.Symbol).Set(ctx, entry)
	return err
}

func (f *FirestoreStore) Delete(ctx context.Context, symbol string) error {
	_, err := f.client.Collection(watchlistCollection).Doc(symbol).Delete(ctx)
	return err
}

// Close releases the underlying Firestore client.
func (f *FirestoreStore) Close() error {
	return f.client.Close()
}
