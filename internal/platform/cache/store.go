package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/riskibarqy/streakwatch/internal/domain/match"
	"github.com/riskibarqy/streakwatch/internal/platform/resilience"
)

// Snapshot is one league's cached result set. Snapshots are replaced
// wholesale on refresh, never mutated in place.
type Snapshot struct {
	LeagueID  string
	FetchedAt time.Time
	Rows      []match.Result
}

// Age reports how long ago the snapshot was fetched.
func (s Snapshot) Age(now time.Time) time.Duration {
	if s.FetchedAt.IsZero() {
		return 0
	}
	return now.Sub(s.FetchedAt)
}

// Store is a per-league snapshot cache with a freshness window. Concurrent
// misses for the same league collapse into a single load; concurrent refreshes
// are last-writer-wins. A failed load never touches other leagues' entries.
type Store struct {
	mu      sync.RWMutex
	entries map[string]Snapshot
	ttl     time.Duration
	flight  resilience.SingleFlight
	now     func() time.Time
}

func NewStore(ttl time.Duration) *Store {
	return &Store{
		entries: make(map[string]Snapshot),
		ttl:     ttl,
		now:     time.Now,
	}
}

// WithClock overrides the store's clock. Test hook.
func (s *Store) WithClock(now func() time.Time) *Store {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *Store) Get(_ context.Context, leagueID string) (Snapshot, bool) {
	if leagueID == "" {
		return Snapshot{}, false
	}

	now := s.now()
	s.mu.RLock()
	entry, ok := s.entries[leagueID]
	s.mu.RUnlock()
	if !ok {
		return Snapshot{}, false
	}
	if s.ttl > 0 && now.Sub(entry.FetchedAt) >= s.ttl {
		s.mu.Lock()
		// Recheck under the write lock: a refresh may have landed meanwhile.
		if current, still := s.entries[leagueID]; still && current.FetchedAt.Equal(entry.FetchedAt) {
			delete(s.entries, leagueID)
		}
		s.mu.Unlock()
		return Snapshot{}, false
	}

	return entry, true
}

func (s *Store) Set(_ context.Context, leagueID string, rows []match.Result) Snapshot {
	if leagueID == "" {
		return Snapshot{}
	}

	entry := Snapshot{
		LeagueID:  leagueID,
		FetchedAt: s.now(),
		Rows:      rows,
	}

	s.mu.Lock()
	s.entries[leagueID] = entry
	s.mu.Unlock()

	return entry
}

func (s *Store) Delete(_ context.Context, leagueID string) {
	if leagueID == "" {
		return
	}

	s.mu.Lock()
	delete(s.entries, leagueID)
	s.mu.Unlock()
}

// GetOrLoad returns the fresh snapshot for a league, invoking loader on a
// miss. Loader results are stored before being returned, so a subsequent call
// inside the freshness window performs no load.
func (s *Store) GetOrLoad(ctx context.Context, leagueID string, loader func(context.Context) ([]match.Result, error)) (Snapshot, error) {
	if loader == nil {
		return Snapshot{}, fmt.Errorf("loader is required")
	}
	if leagueID == "" {
		return Snapshot{}, fmt.Errorf("league id is required")
	}

	if entry, ok := s.Get(ctx, leagueID); ok {
		return entry, nil
	}

	value, err, _ := s.flight.Do(leagueID, func() (any, error) {
		if cached, ok := s.Get(ctx, leagueID); ok {
			return cached, nil
		}

		rows, loadErr := loader(ctx)
		if loadErr != nil {
			return Snapshot{}, loadErr
		}
		return s.Set(ctx, leagueID, rows), nil
	})
	if err != nil {
		return Snapshot{}, err
	}

	entry, ok := value.(Snapshot)
	if !ok {
		return Snapshot{}, fmt.Errorf("unexpected cache payload type %T", value)
	}
	return entry, nil
}
