package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"

	"github.com/riskibarqy/streakwatch/internal/domain/match"
	"github.com/riskibarqy/streakwatch/internal/platform/logging"
	"github.com/riskibarqy/streakwatch/internal/usecase"
)

type Handler struct {
	streakService  *usecase.StreakService
	refreshService *usecase.RefreshService
	logger         *logging.Logger
	validator      *validator.Validate
}

func NewHandler(
	streakService *usecase.StreakService,
	refreshService *usecase.RefreshService,
	logger *logging.Logger,
) *Handler {
	if logger == nil {
		logger = logging.Default()
	}

	return &Handler{
		streakService:  streakService,
		refreshService: refreshService,
		logger:         logger,
		validator:      validator.New(),
	}
}

func (h *Handler) validateRequest(ctx context.Context, payload any) error {
	ctx, span := startSpan(ctx, "httpapi.Handler.validateRequest")
	defer span.End()

	if err := h.validator.StructCtx(ctx, payload); err != nil {
		return fmt.Errorf("%w: validation failed: %v", usecase.ErrInvalidInput, err)
	}

	return nil
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.Healthz")
	defer span.End()

	writeSuccess(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) ListLeagues(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListLeagues")
	defer span.End()

	leagues, err := h.streakService.Leagues(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "list leagues failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	items := make([]leagueDTO, 0, len(leagues))
	for _, l := range leagues {
		items = append(items, leagueToDTO(l))
	}

	writeSuccess(ctx, w, http.StatusOK, items)
}

func (h *Handler) GetMatchesByLeague(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetMatchesByLeague")
	defer span.End()

	leagueID := r.PathValue("leagueID")
	report, err := h.streakService.GetMatches(ctx, leagueID)
	if err != nil {
		h.logger.WarnContext(ctx, "get matches failed", "league_id", leagueID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, matchReportToDTO(report))
}

func (h *Handler) GetStreaksByLeague(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetStreaksByLeague")
	defer span.End()

	leagueID := r.PathValue("leagueID")
	input, err := parseStreakQuery(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	input.LeagueID = leagueID

	report, err := h.streakService.QueryStreaks(ctx, input)
	if err != nil {
		h.logger.WarnContext(ctx, "streak query failed", "league_id", leagueID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, streakReportToDTO(report))
}

func (h *Handler) GetAllStreaks(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetAllStreaks")
	defer span.End()

	input, err := parseStreakQuery(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	report, err := h.streakService.QueryAllLeagues(ctx, input)
	if err != nil {
		h.logger.WarnContext(ctx, "all-league streak query failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, allLeaguesReportToDTO(report))
}

func (h *Handler) RunRefreshJob(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RunRefreshJob")
	defer span.End()

	var req refreshJobRequest
	if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(ctx, w, fmt.Errorf("%w: malformed request body: %v", usecase.ErrInvalidInput, err))
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	result, err := h.refreshService.RefreshAll(ctx, usecase.RefreshInput{
		Leagues:    req.Leagues,
		MaxWorkers: req.MaxWorkers,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "refresh job failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, result)
}

func parseStreakQuery(r *http.Request) (usecase.QueryStreaksInput, error) {
	query := r.URL.Query()
	input := usecase.QueryStreaksInput{
		StreakType: strings.TrimSpace(query.Get("type")),
	}

	if raw := strings.TrimSpace(query.Get("min_length")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil {
			return usecase.QueryStreaksInput{}, fmt.Errorf("%w: min_length must be an integer", usecase.ErrInvalidInput)
		}
		input.MinLength = value
	}

	if raw := strings.TrimSpace(query.Get("debug")); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			return usecase.QueryStreaksInput{}, fmt.Errorf("%w: debug must be a boolean", usecase.ErrInvalidInput)
		}
		input.Debug = value
	}

	return input, nil
}

type refreshJobRequest struct {
	Leagues []string `json:"leagues" validate:"omitempty,dive,required"`
	// MaxWorkers above the service's configured limit are clamped, not rejected.
	MaxWorkers int `json:"max_workers" validate:"omitempty,gte=0,lte=16"`
}

type leagueDTO struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	CompID int64  `json:"compId"`
}

type matchResultDTO struct {
	Team         string   `json:"team"`
	Opponent     string   `json:"opponent"`
	Date         string   `json:"date"`
	Venue        string   `json:"venue"`
	Outcome      string   `json:"outcome"`
	GoalsFor     int      `json:"goalsFor"`
	GoalsAgainst int      `json:"goalsAgainst"`
	XGFor        *float64 `json:"xgFor,omitempty"`
	XGAgainst    *float64 `json:"xgAgainst,omitempty"`
}

type matchesResponseDTO struct {
	League          leagueDTO        `json:"league"`
	Results         []matchResultDTO `json:"results"`
	FetchedAt       string           `json:"fetchedAt"`
	CacheAgeSeconds int64            `json:"cacheAgeSeconds"`
	FromCache       bool             `json:"fromCache"`
}

type streakDTO struct {
	Team     string           `json:"team"`
	LeagueID string           `json:"leagueId"`
	Type     string           `json:"type"`
	Length   int              `json:"length"`
	Matches  []matchResultDTO `json:"matches"`
}

type streakDebugDTO struct {
	SourceURL       string `json:"sourceUrl"`
	FetchDurationMs int64  `json:"fetchDurationMs"`
	RowCount        int    `json:"rowCount"`
	TeamCount       int    `json:"teamCount"`
}

type streaksResponseDTO struct {
	League          leagueDTO       `json:"league"`
	MinLength       int             `json:"minLength"`
	Streaks         []streakDTO     `json:"streaks"`
	FetchedAt       string          `json:"fetchedAt"`
	CacheAgeSeconds int64           `json:"cacheAgeSeconds"`
	FromCache       bool            `json:"fromCache"`
	Debug           *streakDebugDTO `json:"debug,omitempty"`
}

type leagueFailureDTO struct {
	LeagueID string `json:"leagueId"`
	Message  string `json:"message"`
}

type allStreaksResponseDTO struct {
	MinLength int                `json:"minLength"`
	Streaks   []streakDTO        `json:"streaks"`
	Failures  []leagueFailureDTO `json:"failures,omitempty"`
}

func leagueToDTO(v match.League) leagueDTO {
	return leagueDTO{
		ID:     v.ID,
		Name:   v.Name,
		CompID: v.CompID,
	}
}

func resultToDTO(v match.Result) matchResultDTO {
	return matchResultDTO{
		Team:         v.Team,
		Opponent:     v.Opponent,
		Date:         v.Date.UTC().Format("2006-01-02"),
		Venue:        string(v.Venue),
		Outcome:      string(v.Outcome),
		GoalsFor:     v.GoalsFor,
		GoalsAgainst: v.GoalsAgainst,
		XGFor:        v.XGFor,
		XGAgainst:    v.XGAgainst,
	}
}

func matchReportToDTO(v usecase.MatchReport) matchesResponseDTO {
	results := make([]matchResultDTO, 0, len(v.Results))
	for _, row := range v.Results {
		results = append(results, resultToDTO(row))
	}

	return matchesResponseDTO{
		League:          leagueToDTO(v.League),
		Results:         results,
		FetchedAt:       v.FetchedAt.UTC().Format(time.RFC3339),
		CacheAgeSeconds: int64(v.CacheAge.Seconds()),
		FromCache:       v.FromCache,
	}
}

func streakToDTO(v match.TeamStreak) streakDTO {
	matches := make([]matchResultDTO, 0, len(v.Matches))
	for _, row := range v.Matches {
		matches = append(matches, resultToDTO(row))
	}

	return streakDTO{
		Team:     v.Team,
		LeagueID: v.LeagueID,
		Type:     string(v.Type),
		Length:   v.Length,
		Matches:  matches,
	}
}

func streakReportToDTO(v usecase.StreakReport) streaksResponseDTO {
	streaks := make([]streakDTO, 0, len(v.Streaks))
	for _, row := range v.Streaks {
		streaks = append(streaks, streakToDTO(row))
	}

	out := streaksResponseDTO{
		League:          leagueToDTO(v.League),
		MinLength:       v.MinLength,
		Streaks:         streaks,
		FetchedAt:       v.FetchedAt.UTC().Format(time.RFC3339),
		CacheAgeSeconds: int64(v.CacheAge.Seconds()),
		FromCache:       v.FromCache,
	}
	if v.Debug != nil {
		out.Debug = &streakDebugDTO{
			SourceURL:       v.Debug.SourceURL,
			FetchDurationMs: v.Debug.FetchDurationMs,
			RowCount:        v.Debug.RowCount,
			TeamCount:       v.Debug.TeamCount,
		}
	}
	return out
}

func allLeaguesReportToDTO(v usecase.AllLeaguesReport) allStreaksResponseDTO {
	streaks := make([]streakDTO, 0, len(v.Streaks))
	for _, row := range v.Streaks {
		streaks = append(streaks, streakToDTO(row))
	}

	failures := make([]leagueFailureDTO, 0, len(v.Failures))
	for _, row := range v.Failures {
		failures = append(failures, leagueFailureDTO{
			LeagueID: row.LeagueID,
			Message:  row.Message,
		})
	}

	return allStreaksResponseDTO{
		MinLength: v.MinLength,
		Streaks:   streaks,
		Failures:  failures,
	}
}
