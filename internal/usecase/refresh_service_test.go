package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/riskibarqy/streakwatch/internal/domain/match"
	"github.com/riskibarqy/streakwatch/internal/platform/cache"
	"github.com/riskibarqy/streakwatch/internal/platform/logging"
)

func newTestRefreshService(source *fakeSource, store *cache.Store) *RefreshService {
	registry := &fakeRegistry{leagues: []match.League{
		{ID: "premier-league", Name: "Premier League", CompID: 9},
		{ID: "serie-a", Name: "Serie A", CompID: 11},
	}}
	return NewRefreshService(RefreshServiceConfig{
		Registry: registry,
		Source:   source,
		Cache:    store,
		Logger:   logging.NewNop(),
	})
}

func TestRefreshService_RefreshAll(t *testing.T) {
	t.Parallel()

	source := newFakeSource()
	source.rows["premier-league"] = []match.Result{resultOn("Arsenal", 22, match.OutcomeWin)}
	source.rows["serie-a"] = []match.Result{
		{LeagueID: "serie-a", Team: "Inter", Outcome: match.OutcomeWin, Date: time.Date(2026, 8, 22, 0, 0, 0, 0, time.UTC)},
	}
	store := cache.NewStore(time.Hour)
	service := newTestRefreshService(source, store)

	result, err := service.RefreshAll(context.Background(), RefreshInput{MaxWorkers: 2})
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if result.LeagueCount != 2 || result.SuccessCount != 2 || result.FailedCount != 0 {
		t.Fatalf("unexpected counts: %+v", result)
	}
	if len(result.Tasks) != 2 || result.Tasks[0].LeagueID != "premier-league" || result.Tasks[1].LeagueID != "serie-a" {
		t.Fatalf("tasks not sorted by league: %+v", result.Tasks)
	}
	if result.Tasks[0].Records != 1 {
		t.Fatalf("unexpected record count: %+v", result.Tasks[0])
	}

	entry, ok := store.Get(context.Background(), "serie-a")
	if !ok || len(entry.Rows) != 1 || entry.Rows[0].Team != "Inter" {
		t.Fatalf("cache not refreshed: ok=%v entry=%+v", ok, entry)
	}
}

func TestRefreshService_RefreshAll_BypassesFreshSnapshot(t *testing.T) {
	t.Parallel()

	source := newFakeSource()
	source.rows["premier-league"] = []match.Result{resultOn("Arsenal", 22, match.OutcomeWin)}
	store := cache.NewStore(time.Hour)
	store.Set(context.Background(), "premier-league", []match.Result{resultOn("Stale", 1, match.OutcomeLoss)})
	service := newTestRefreshService(source, store)

	if _, err := service.RefreshAll(context.Background(), RefreshInput{Leagues: []string{"premier-league"}}); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	if got := source.callCount("premier-league"); got != 1 {
		t.Fatalf("source fetched %d times, want 1", got)
	}
	entry, _ := store.Get(context.Background(), "premier-league")
	if len(entry.Rows) != 1 || entry.Rows[0].Team != "Arsenal" {
		t.Fatalf("stale snapshot not replaced: %+v", entry.Rows)
	}
}

func TestRefreshService_RefreshAll_ReportsFailedLeague(t *testing.T) {
	t.Parallel()

	source := newFakeSource()
	source.rows["premier-league"] = []match.Result{resultOn("Arsenal", 22, match.OutcomeWin)}
	source.errs["serie-a"] = errors.New("upstream down")
	store := cache.NewStore(time.Hour)
	service := newTestRefreshService(source, store)

	result, err := service.RefreshAll(context.Background(), RefreshInput{})
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if result.SuccessCount != 1 || result.FailedCount != 1 {
		t.Fatalf("unexpected counts: %+v", result)
	}
	for _, task := range result.Tasks {
		if task.LeagueID == "serie-a" {
			if task.Status != refreshStatusFailed || task.Message == "" {
				t.Fatalf("failed task not reported: %+v", task)
			}
		}
	}
	if _, ok := store.Get(context.Background(), "serie-a"); ok {
		t.Fatal("failed refresh must not populate the cache")
	}
}

func TestRefreshService_RefreshAll_UnknownLeague(t *testing.T) {
	t.Parallel()

	service := newTestRefreshService(newFakeSource(), cache.NewStore(time.Hour))
	_, err := service.RefreshAll(context.Background(), RefreshInput{Leagues: []string{"mls"}})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRefreshService_RefreshAll_ConfiguredWorkerLimit(t *testing.T) {
	t.Parallel()

	source := newFakeSource()
	source.rows["premier-league"] = []match.Result{resultOn("Arsenal", 22, match.OutcomeWin)}
	source.rows["serie-a"] = []match.Result{
		{LeagueID: "serie-a", Team: "Inter", Outcome: match.OutcomeWin, Date: time.Date(2026, 8, 22, 0, 0, 0, 0, time.UTC)},
	}
	registry := &fakeRegistry{leagues: []match.League{
		{ID: "premier-league", Name: "Premier League", CompID: 9},
		{ID: "serie-a", Name: "Serie A", CompID: 11},
	}}
	service := NewRefreshService(RefreshServiceConfig{
		Registry:   registry,
		Source:     source,
		Cache:      cache.NewStore(time.Hour),
		Logger:     logging.NewNop(),
		MaxWorkers: 1,
	})

	result, err := service.RefreshAll(context.Background(), RefreshInput{MaxWorkers: 8})
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if result.WorkerCount != 1 {
		t.Fatalf("request exceeded the configured worker limit: %+v", result)
	}

	result, err = service.RefreshAll(context.Background(), RefreshInput{})
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if result.WorkerCount != 1 {
		t.Fatalf("unset request must use the configured worker limit: %+v", result)
	}
}

func TestNormalizeRefreshWorkerCount(t *testing.T) {
	t.Parallel()

	cases := []struct {
		requested, limit, tasks, want int
	}{
		{0, 0, 5, 2},
		{1, 0, 5, 1},
		{8, 0, 5, 2},
		{0, 1, 5, 1},
		{8, 4, 5, 4},
		{3, 4, 1, 1},
		{3, 4, 0, 1},
	}
	for _, tc := range cases {
		if got := normalizeRefreshWorkerCount(tc.requested, tc.limit, tc.tasks); got != tc.want {
			t.Fatalf("normalizeRefreshWorkerCount(%d, %d, %d) = %d, want %d", tc.requested, tc.limit, tc.tasks, got, tc.want)
		}
	}
}
