package fbref

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/riskibarqy/streakwatch/internal/domain/match"
	"github.com/riskibarqy/streakwatch/internal/platform/logging"
	"github.com/riskibarqy/streakwatch/internal/platform/resilience"
)

func testLeague() match.League {
	return match.League{ID: "premier-league", Name: "Premier League", CompID: CompIDPremierLeague}
}

func newTestClient(baseURL string, maxRetries int) *Client {
	return NewClient(ClientConfig{
		BaseURL:    baseURL,
		Timeout:    2 * time.Second,
		MaxRetries: maxRetries,
		Logger:     logging.NewNop(),
	})
}

func TestClient_FetchSchedule(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		require.Equal(t, "/en/comps/9/schedule/", r.URL.Path)
		require.Contains(t, r.UserAgent(), "Mozilla/5.0")
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(scheduleHTML))
	}))
	defer server.Close()

	client := newTestClient(server.URL, 0)
	fixtures, err := client.FetchSchedule(context.Background(), testLeague())
	require.NoError(t, err)
	require.Len(t, fixtures, 2)
	require.Equal(t, int32(1), hits.Load())
}

func TestClient_FetchSchedule_RetriesTransientStatus(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(scheduleHTML))
	}))
	defer server.Close()

	client := newTestClient(server.URL, 2)
	fixtures, err := client.FetchSchedule(context.Background(), testLeague())
	require.NoError(t, err)
	require.Len(t, fixtures, 2)
	require.Equal(t, int32(2), hits.Load())
}

func TestClient_FetchSchedule_RateLimited(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "120")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestClient(server.URL, 3)
	_, err := client.FetchSchedule(context.Background(), testLeague())
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrRateLimited))

	var rateErr *RateLimitError
	require.True(t, errors.As(err, &rateErr))
	require.Equal(t, 2*time.Minute, rateErr.RetryAfter)
}

func TestClient_FetchSchedule_NonRetryableStatusFailsFast(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(server.URL, 3)
	_, err := client.FetchSchedule(context.Background(), testLeague())
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrFetch))
	require.False(t, errors.Is(err, ErrRateLimited))
	require.Equal(t, int32(1), hits.Load(), "client must not retry a non-transient status")
}

func TestClient_FetchSchedule_ParseFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html><body>blocked</body></html>"))
	}))
	defer server.Close()

	client := newTestClient(server.URL, 0)
	_, err := client.FetchSchedule(context.Background(), testLeague())
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrParse))
}

func TestClient_FetchSchedule_CircuitOpensAfterRepeatedFailures(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{
		BaseURL: server.URL,
		Timeout: 2 * time.Second,
		Logger:  logging.NewNop(),
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          true,
			FailureThreshold: 2,
			OpenTimeout:      time.Minute,
			HalfOpenMaxReq:   1,
		},
	})

	for i := 0; i < 2; i++ {
		_, err := client.FetchSchedule(context.Background(), testLeague())
		require.Error(t, err)
	}
	upstreamHits := hits.Load()

	_, err := client.FetchSchedule(context.Background(), testLeague())
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrFetch))
	require.Equal(t, upstreamHits, hits.Load(), "open breaker must short-circuit upstream calls")
}

func TestClient_FetchSchedule_RejectsInvalidCompetition(t *testing.T) {
	t.Parallel()

	client := newTestClient("http://127.0.0.1:0", 0)
	_, err := client.FetchSchedule(context.Background(), match.League{ID: "x"})
	require.Error(t, err)
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	registry := NewRegistry(nil)

	league, ok := registry.Lookup("Premier-League")
	require.True(t, ok)
	require.Equal(t, int64(CompIDPremierLeague), league.CompID)

	_, ok = registry.Lookup("mls")
	require.False(t, ok)

	names := make([]string, 0, 5)
	for _, item := range registry.List() {
		names = append(names, item.Name)
	}
	require.Equal(t, []string{"Bundesliga", "La Liga", "Ligue 1", "Premier League", "Serie A"}, names)
}
