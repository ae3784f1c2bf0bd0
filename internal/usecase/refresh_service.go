package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/riskibarqy/streakwatch/internal/domain/match"
	"github.com/riskibarqy/streakwatch/internal/platform/cache"
	"github.com/riskibarqy/streakwatch/internal/platform/logging"
)

const (
	refreshStatusSuccess = "success"
	refreshStatusFailed  = "failed"

	defaultRefreshWorkerLimit = 2
)

type RefreshInput struct {
	// Leagues narrows the refresh to the given slugs; empty means all.
	Leagues []string
	// MaxWorkers requests a pool size for this run. Zero uses the service's
	// configured limit; larger values are clamped to it.
	MaxWorkers int
}

type RefreshResult struct {
	LeagueCount  int                 `json:"league_count"`
	SuccessCount int                 `json:"success_count"`
	FailedCount  int                 `json:"failed_count"`
	WorkerCount  int                 `json:"worker_count"`
	Tasks        []RefreshTaskResult `json:"tasks"`
}

type RefreshTaskResult struct {
	LeagueID   string `json:"league_id"`
	Status     string `json:"status"`
	Records    int    `json:"records"`
	DurationMs int64  `json:"duration_ms"`
	Message    string `json:"message,omitempty"`
}

type RefreshServiceConfig struct {
	Registry LeagueRegistry
	Source   MatchSource
	Cache    *cache.Store
	Logger   *logging.Logger
	// MaxWorkers bounds the pool size regardless of what a request asks for.
	// Values below 1 fall back to the built-in limit.
	MaxWorkers int
	// FetchDelay staggers task submissions to avoid hammering the source.
	FetchDelay time.Duration
}

// RefreshService force-refetches league snapshots, bypassing the freshness
// window. Invoked by the internal refresh job endpoint.
type RefreshService struct {
	registry   LeagueRegistry
	source     MatchSource
	cache      *cache.Store
	logger     *logging.Logger
	maxWorkers int
	fetchDelay time.Duration
}

func NewRefreshService(cfg RefreshServiceConfig) *RefreshService {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &RefreshService{
		registry:   cfg.Registry,
		source:     cfg.Source,
		cache:      cfg.Cache,
		logger:     logger,
		maxWorkers: cfg.MaxWorkers,
		fetchDelay: cfg.FetchDelay,
	}
}

func (s *RefreshService) RefreshAll(ctx context.Context, input RefreshInput) (RefreshResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.RefreshService.RefreshAll")
	defer span.End()

	if s.registry == nil || s.source == nil || s.cache == nil {
		return RefreshResult{}, fmt.Errorf("%w: refresh service is not fully configured", ErrDependencyUnavailable)
	}

	targets, err := s.resolveTargets(input.Leagues)
	if err != nil {
		return RefreshResult{}, err
	}

	workerCount := normalizeRefreshWorkerCount(input.MaxWorkers, s.maxWorkers, len(targets))
	result := RefreshResult{
		LeagueCount: len(targets),
		WorkerCount: workerCount,
		Tasks:       make([]RefreshTaskResult, 0, len(targets)),
	}
	if len(targets) == 0 {
		return result, nil
	}

	results := make(chan RefreshTaskResult, len(targets))

	var successCount atomic.Int32
	var failedCount atomic.Int32

	pool, err := ants.NewPool(workerCount)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	var workers sync.WaitGroup
	for i, target := range targets {
		if i > 0 && s.fetchDelay > 0 {
			timer := time.NewTimer(s.fetchDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				workers.Wait()
				return RefreshResult{}, ctx.Err()
			case <-timer.C:
			}
		}

		target := target
		workers.Add(1)
		if err := pool.Submit(func() {
			defer workers.Done()

			start := time.Now()
			row := RefreshTaskResult{LeagueID: target.ID}

			records, refreshErr := s.refreshLeague(ctx, target)
			row.Records = records
			row.DurationMs = time.Since(start).Milliseconds()
			if refreshErr != nil {
				row.Status = refreshStatusFailed
				row.Message = refreshErr.Error()
				failedCount.Add(1)
			} else {
				row.Status = refreshStatusSuccess
				successCount.Add(1)
			}

			results <- row
		}); err != nil {
			workers.Done()
			return RefreshResult{}, fmt.Errorf("submit task to worker pool: %w", err)
		}
	}

	workers.Wait()
	close(results)

	for row := range results {
		result.Tasks = append(result.Tasks, row)
	}
	sort.SliceStable(result.Tasks, func(i, j int) bool {
		return result.Tasks[i].LeagueID < result.Tasks[j].LeagueID
	})

	result.SuccessCount = int(successCount.Load())
	result.FailedCount = int(failedCount.Load())
	return result, nil
}

func (s *RefreshService) refreshLeague(ctx context.Context, league match.League) (int, error) {
	rows, err := s.source.FetchResults(ctx, league)
	if err != nil {
		s.logger.WarnContext(ctx, "league refresh failed", "league_id", league.ID, "error", err)
		return 0, fmt.Errorf("refresh league=%s: %w", league.ID, err)
	}
	s.cache.Set(ctx, league.ID, rows)
	s.logger.InfoContext(ctx, "league refreshed", "league_id", league.ID, "rows", len(rows))
	return len(rows), nil
}

func (s *RefreshService) resolveTargets(slugs []string) ([]match.League, error) {
	if len(slugs) == 0 {
		return s.registry.List(), nil
	}

	seen := make(map[string]struct{}, len(slugs))
	out := make([]match.League, 0, len(slugs))
	for _, slug := range slugs {
		slug = strings.ToLower(strings.TrimSpace(slug))
		if slug == "" {
			continue
		}
		if _, dup := seen[slug]; dup {
			continue
		}
		league, ok := s.registry.Lookup(slug)
		if !ok {
			return nil, fmt.Errorf("%w: unknown league %s", ErrNotFound, slug)
		}
		seen[slug] = struct{}{}
		out = append(out, league)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no leagues selected", ErrInvalidInput)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func normalizeRefreshWorkerCount(requested, limit, taskCount int) int {
	if taskCount <= 0 {
		return 1
	}
	if limit < 1 {
		limit = defaultRefreshWorkerLimit
	}
	value := requested
	if value <= 0 || value > limit {
		value = limit
	}
	if value > taskCount {
		value = taskCount
	}
	return value
}
