package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sonic "github.com/bytedance/sonic"

	"github.com/riskibarqy/streakwatch/external/fbref"
	"github.com/riskibarqy/streakwatch/internal/domain/match"
	"github.com/riskibarqy/streakwatch/internal/platform/cache"
	"github.com/riskibarqy/streakwatch/internal/platform/logging"
	"github.com/riskibarqy/streakwatch/internal/usecase"
)

type stubRegistry struct {
	leagues []match.League
}

func (s *stubRegistry) Lookup(leagueID string) (match.League, bool) {
	for _, league := range s.leagues {
		if league.ID == strings.ToLower(strings.TrimSpace(leagueID)) {
			return league, true
		}
	}
	return match.League{}, false
}

func (s *stubRegistry) List() []match.League {
	return s.leagues
}

type stubSource struct {
	rows map[string][]match.Result
	errs map[string]error
}

func (s *stubSource) FetchResults(_ context.Context, league match.League) ([]match.Result, error) {
	if err := s.errs[league.ID]; err != nil {
		return nil, err
	}
	return s.rows[league.ID], nil
}

func (s *stubSource) ScheduleURL(league match.League) string {
	return fmt.Sprintf("https://example.test/en/comps/%d/schedule/", league.CompID)
}

func newTestRouter(source *stubSource, internalJobToken string) http.Handler {
	registry := &stubRegistry{leagues: []match.League{
		{ID: "premier-league", Name: "Premier League", CompID: 9},
	}}
	store := cache.NewStore(time.Hour)
	logger := logging.NewNop()

	streakService := usecase.NewStreakService(usecase.StreakServiceConfig{
		Registry: registry,
		Source:   source,
		Cache:    store,
		Logger:   logger,
	})
	refreshService := usecase.NewRefreshService(usecase.RefreshServiceConfig{
		Registry: registry,
		Source:   source,
		Cache:    store,
		Logger:   logger,
	})

	handler := NewHandler(streakService, refreshService, logger)
	return NewRouter(handler, logger, []string{"*"}, internalJobToken)
}

func winOn(team string, day int) match.Result {
	return match.Result{
		LeagueID: "premier-league",
		Team:     team,
		Opponent: "Opponent",
		Date:     time.Date(2026, 8, day, 0, 0, 0, 0, time.UTC),
		Outcome:  match.OutcomeWin,
	}
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) googleResponseEnvelope {
	t.Helper()
	var envelope googleResponseEnvelope
	if err := sonic.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v body=%s", err, rec.Body.String())
	}
	return envelope
}

func TestHandler_Healthz(t *testing.T) {
	t.Parallel()

	router := newTestRouter(&stubSource{}, "")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	envelope := decodeEnvelope(t, rec)
	if envelope.APIVersion != "2.0" || envelope.Error != nil {
		t.Fatalf("unexpected envelope: %+v", envelope)
	}
}

func TestHandler_ListLeagues(t *testing.T) {
	t.Parallel()

	router := newTestRouter(&stubSource{}, "")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/leagues", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "premier-league") {
		t.Fatalf("league missing from body: %s", rec.Body.String())
	}
}

func TestHandler_GetStreaksByLeague(t *testing.T) {
	t.Parallel()

	source := &stubSource{rows: map[string][]match.Result{
		"premier-league": {winOn("Arsenal", 22), winOn("Arsenal", 15), winOn("Arsenal", 8)},
	}}
	router := newTestRouter(source, "")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/leagues/premier-league/streaks?min_length=2&debug=true", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"team":"Arsenal"`) || !strings.Contains(body, `"length":3`) {
		t.Fatalf("streak missing from body: %s", body)
	}
	if !strings.Contains(body, `"sourceUrl":"https://example.test/en/comps/9/schedule/"`) {
		t.Fatalf("debug block missing from body: %s", body)
	}
}

func TestHandler_GetStreaksByLeague_UnknownLeague(t *testing.T) {
	t.Parallel()

	router := newTestRouter(&stubSource{}, "")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/leagues/mls/streaks", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	envelope := decodeEnvelope(t, rec)
	if envelope.Error == nil || envelope.Error.Status != "NOT_FOUND" {
		t.Fatalf("unexpected envelope: %+v", envelope)
	}
}

func TestHandler_GetStreaksByLeague_InvalidMinLength(t *testing.T) {
	t.Parallel()

	router := newTestRouter(&stubSource{}, "")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/leagues/premier-league/streaks?min_length=abc", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	envelope := decodeEnvelope(t, rec)
	if envelope.Error == nil || envelope.Error.Status != "INVALID_ARGUMENT" {
		t.Fatalf("unexpected envelope: %+v", envelope)
	}
}

func TestHandler_GetStreaksByLeague_RateLimited(t *testing.T) {
	t.Parallel()

	source := &stubSource{errs: map[string]error{
		"premier-league": &fbref.RateLimitError{RetryAfter: 90 * time.Second},
	}}
	router := newTestRouter(source, "")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/leagues/premier-league/streaks", nil))

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Retry-After"); got != "90" {
		t.Fatalf("unexpected Retry-After header: %q", got)
	}
	envelope := decodeEnvelope(t, rec)
	if envelope.Error == nil || envelope.Error.Status != "RESOURCE_EXHAUSTED" {
		t.Fatalf("unexpected envelope: %+v", envelope)
	}
}

func TestHandler_GetMatchesByLeague(t *testing.T) {
	t.Parallel()

	source := &stubSource{rows: map[string][]match.Result{
		"premier-league": {winOn("Arsenal", 22)},
	}}
	router := newTestRouter(source, "")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/leagues/premier-league/matches", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"date":"2026-08-22"`) || !strings.Contains(body, `"fromCache":false`) {
		t.Fatalf("unexpected body: %s", body)
	}
}

func TestHandler_RunRefreshJob_RequiresToken(t *testing.T) {
	t.Parallel()

	router := newTestRouter(&stubSource{}, "secret")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/internal/jobs/refresh", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestHandler_RunRefreshJob(t *testing.T) {
	t.Parallel()

	source := &stubSource{rows: map[string][]match.Result{
		"premier-league": {winOn("Arsenal", 22)},
	}}
	router := newTestRouter(source, "secret")

	req := httptest.NewRequest(http.MethodPost, "/v1/internal/jobs/refresh", strings.NewReader(`{"max_workers":1}`))
	req.Header.Set("X-Internal-Job-Token", "secret")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"success_count":1`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}
