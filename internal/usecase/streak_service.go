package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/riskibarqy/streakwatch/internal/domain/match"
	"github.com/riskibarqy/streakwatch/internal/domain/streak"
	"github.com/riskibarqy/streakwatch/internal/platform/cache"
	"github.com/riskibarqy/streakwatch/internal/platform/logging"
)

const allLeaguesMaxConcurrent = 4

// MatchSource provides completed results for a league. Implementations are
// expected to be safe for concurrent use.
type MatchSource interface {
	FetchResults(ctx context.Context, league match.League) ([]match.Result, error)
	ScheduleURL(league match.League) string
}

// LeagueRegistry resolves configured competitions.
type LeagueRegistry interface {
	Lookup(leagueID string) (match.League, bool)
	List() []match.League
}

type StreakServiceConfig struct {
	Registry LeagueRegistry
	Source   MatchSource
	Cache    *cache.Store
	Logger   *logging.Logger
}

// StreakService answers match and streak queries, serving results from the
// snapshot cache and falling through to the source on expiry.
type StreakService struct {
	registry LeagueRegistry
	source   MatchSource
	cache    *cache.Store
	logger   *logging.Logger
}

func NewStreakService(cfg StreakServiceConfig) *StreakService {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &StreakService{
		registry: cfg.Registry,
		source:   cfg.Source,
		cache:    cfg.Cache,
		logger:   logger,
	}
}

type MatchReport struct {
	League    match.League
	Results   []match.Result
	FetchedAt time.Time
	CacheAge  time.Duration
	FromCache bool
}

type QueryStreaksInput struct {
	LeagueID   string
	MinLength  int
	StreakType string
	Debug      bool
}

type StreakDebug struct {
	SourceURL       string
	FetchDurationMs int64
	RowCount        int
	TeamCount       int
}

type StreakReport struct {
	League    match.League
	Streaks   []match.TeamStreak
	MinLength int
	FetchedAt time.Time
	CacheAge  time.Duration
	FromCache bool
	Debug     *StreakDebug
}

type AllLeaguesReport struct {
	Streaks   []match.TeamStreak
	MinLength int
	Failures  []LeagueFailure
}

type LeagueFailure struct {
	LeagueID string
	Message  string
}

// Leagues lists the configured competitions.
func (s *StreakService) Leagues(ctx context.Context) ([]match.League, error) {
	_, span := startUsecaseSpan(ctx, "usecase.StreakService.Leagues")
	defer span.End()

	if s.registry == nil {
		return nil, fmt.Errorf("%w: league registry is not configured", ErrDependencyUnavailable)
	}
	return s.registry.List(), nil
}

// GetMatches returns a league's completed results, fetching from the source
// only when the cached snapshot has expired.
func (s *StreakService) GetMatches(ctx context.Context, leagueID string) (MatchReport, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.StreakService.GetMatches")
	defer span.End()

	report, _, err := s.loadMatches(ctx, leagueID)
	return report, err
}

func (s *StreakService) loadMatches(ctx context.Context, leagueID string) (MatchReport, time.Duration, error) {
	if s.registry == nil || s.source == nil || s.cache == nil {
		return MatchReport{}, 0, fmt.Errorf("%w: streak service is not fully configured", ErrDependencyUnavailable)
	}

	leagueID = strings.ToLower(strings.TrimSpace(leagueID))
	if leagueID == "" {
		return MatchReport{}, 0, fmt.Errorf("%w: league id is required", ErrInvalidInput)
	}

	league, ok := s.registry.Lookup(leagueID)
	if !ok {
		return MatchReport{}, 0, fmt.Errorf("%w: unknown league %s", ErrNotFound, leagueID)
	}

	var fetchDuration time.Duration
	loaded := false
	snapshot, err := s.cache.GetOrLoad(ctx, league.ID, func(ctx context.Context) ([]match.Result, error) {
		loaded = true
		start := time.Now()
		rows, fetchErr := s.source.FetchResults(ctx, league)
		fetchDuration = time.Since(start)
		if fetchErr != nil {
			return nil, fetchErr
		}
		s.logger.InfoContext(ctx, "league results refreshed", "league_id", league.ID, "rows", len(rows), "duration_ms", fetchDuration.Milliseconds())
		return rows, nil
	})
	if err != nil {
		return MatchReport{}, 0, err
	}

	return MatchReport{
		League:    league,
		Results:   snapshot.Rows,
		FetchedAt: snapshot.FetchedAt,
		CacheAge:  snapshot.Age(time.Now()),
		FromCache: !loaded,
	}, fetchDuration, nil
}

// QueryStreaks computes active win and loss runs for one league.
func (s *StreakService) QueryStreaks(ctx context.Context, input QueryStreaksInput) (StreakReport, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.StreakService.QueryStreaks")
	defer span.End()

	streakType, err := normalizeStreakType(input.StreakType)
	if err != nil {
		return StreakReport{}, err
	}

	matches, fetchDuration, err := s.loadMatches(ctx, input.LeagueID)
	if err != nil {
		return StreakReport{}, err
	}

	minLength := streak.ClampMinLength(input.MinLength)
	streaks := streak.Compute(matches.Results, minLength)
	if streakType != "" {
		streaks = streak.Filter(streaks, streakType)
	}

	report := StreakReport{
		League:    matches.League,
		Streaks:   streaks,
		MinLength: minLength,
		FetchedAt: matches.FetchedAt,
		CacheAge:  matches.CacheAge,
		FromCache: matches.FromCache,
	}
	if input.Debug {
		report.Debug = &StreakDebug{
			SourceURL:       s.source.ScheduleURL(matches.League),
			FetchDurationMs: fetchDuration.Milliseconds(),
			RowCount:        len(matches.Results),
			TeamCount:       countTeams(matches.Results),
		}
	}
	return report, nil
}

// QueryAllLeagues fans out across every configured league. A league that
// fails to load is reported in Failures without failing the whole query.
func (s *StreakService) QueryAllLeagues(ctx context.Context, input QueryStreaksInput) (AllLeaguesReport, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.StreakService.QueryAllLeagues")
	defer span.End()

	if s.registry == nil {
		return AllLeaguesReport{}, fmt.Errorf("%w: league registry is not configured", ErrDependencyUnavailable)
	}
	if _, err := normalizeStreakType(input.StreakType); err != nil {
		return AllLeaguesReport{}, err
	}

	leagues := s.registry.List()
	minLength := streak.ClampMinLength(input.MinLength)

	type leagueOutcome struct {
		leagueID string
		streaks  []match.TeamStreak
		err      error
	}

	workers := pool.NewWithResults[leagueOutcome]().WithMaxGoroutines(allLeaguesMaxConcurrent)
	for _, league := range leagues {
		league := league
		workers.Go(func() leagueOutcome {
			report, err := s.QueryStreaks(ctx, QueryStreaksInput{
				LeagueID:   league.ID,
				MinLength:  minLength,
				StreakType: input.StreakType,
			})
			if err != nil {
				return leagueOutcome{leagueID: league.ID, err: err}
			}
			return leagueOutcome{leagueID: league.ID, streaks: report.Streaks}
		})
	}

	out := AllLeaguesReport{MinLength: minLength}
	for _, outcome := range workers.Wait() {
		if outcome.err != nil {
			s.logger.WarnContext(ctx, "league streak query failed", "league_id", outcome.leagueID, "error", outcome.err)
			out.Failures = append(out.Failures, LeagueFailure{LeagueID: outcome.leagueID, Message: outcome.err.Error()})
			continue
		}
		out.Streaks = append(out.Streaks, outcome.streaks...)
	}

	sort.SliceStable(out.Streaks, func(i, j int) bool {
		if out.Streaks[i].Length != out.Streaks[j].Length {
			return out.Streaks[i].Length > out.Streaks[j].Length
		}
		if out.Streaks[i].Team != out.Streaks[j].Team {
			return out.Streaks[i].Team < out.Streaks[j].Team
		}
		return out.Streaks[i].LeagueID < out.Streaks[j].LeagueID
	})
	sort.SliceStable(out.Failures, func(i, j int) bool {
		return out.Failures[i].LeagueID < out.Failures[j].LeagueID
	})
	return out, nil
}

func normalizeStreakType(raw string) (match.Outcome, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", nil
	}
	outcome, ok := match.ParseOutcome(value)
	if !ok {
		return "", fmt.Errorf("%w: unsupported streak type %q", ErrInvalidInput, raw)
	}
	return outcome, nil
}

func countTeams(results []match.Result) int {
	seen := make(map[string]struct{}, len(results))
	for _, row := range results {
		seen[row.Team] = struct{}{}
	}
	return len(seen)
}
