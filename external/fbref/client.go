package fbref

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	crerr "github.com/cockroachdb/errors"
	"github.com/valyala/bytebufferpool"
	"github.com/valyala/fasthttp"

	"github.com/riskibarqy/streakwatch/internal/domain/match"
	"github.com/riskibarqy/streakwatch/internal/platform/logging"
	"github.com/riskibarqy/streakwatch/internal/platform/resilience"
)

const (
	defaultBaseURL   = "https://fbref.com"
	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
	defaultTimeout   = 20 * time.Second
	maxBodyBytes     = 8 << 20
)

var errTransient = crerr.New("fbref transient failure")

type ClientConfig struct {
	HTTPClient     *fasthttp.Client
	BaseURL        string
	Timeout        time.Duration
	MaxRetries     int
	UserAgent      string
	Logger         *logging.Logger
	CircuitBreaker resilience.CircuitBreakerConfig
}

// Client fetches and parses league schedule pages. One upstream request per
// URL is in flight at a time; repeated upstream failures trip the breaker.
type Client struct {
	httpClient     *fasthttp.Client
	baseURL        string
	userAgent      string
	timeout        time.Duration
	maxRetries     int
	logger         *logging.Logger
	breaker        *resilience.CircuitBreaker
	circuitEnabled bool
	flight         resilience.SingleFlight
}

func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &fasthttp.Client{
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxResponseBodySize: maxBodyBytes,
		}
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	breakerCfg := resilience.NormalizeCircuitBreakerConfig(cfg.CircuitBreaker)

	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		userAgent:      userAgent,
		timeout:        timeout,
		maxRetries:     maxInt(cfg.MaxRetries, 0),
		logger:         logger,
		breaker:        resilience.NewCircuitBreaker(breakerCfg.FailureThreshold, breakerCfg.OpenTimeout, breakerCfg.HalfOpenMaxReq),
		circuitEnabled: breakerCfg.Enabled,
	}
}

// ScheduleURL returns the scores-and-fixtures page address for a competition.
func (c *Client) ScheduleURL(compID int64) string {
	return fmt.Sprintf("%s/en/comps/%d/schedule/", c.baseURL, compID)
}

// FetchSchedule downloads and parses a league's completed fixtures.
func (c *Client) FetchSchedule(ctx context.Context, league match.League) ([]match.Fixture, error) {
	if league.CompID <= 0 {
		return nil, fmt.Errorf("competition id must be greater than zero")
	}

	if c.circuitEnabled {
		if err := c.breaker.Allow(); err != nil {
			c.logger.WarnContext(ctx, "fbref circuit breaker rejected request", "league_id", league.ID, "state", c.breaker.State())
			return nil, fmt.Errorf("%w: schedule source is temporarily unavailable", ErrFetch)
		}
	}

	fullURL := c.ScheduleURL(league.CompID)
	out, err, _ := c.flight.Do(fullURL, func() (any, error) {
		body, reqErr := c.executeRequest(ctx, fullURL)
		if c.circuitEnabled {
			if reqErr != nil && isCircuitFailure(reqErr) {
				c.breaker.RecordFailure()
			} else {
				c.breaker.RecordSuccess()
			}
		}
		if reqErr != nil {
			return nil, reqErr
		}
		defer bytebufferpool.Put(body)

		return parseSchedule(league.ID, body.B)
	})
	if err != nil {
		return nil, err
	}

	fixtures, ok := out.([]match.Fixture)
	if !ok {
		return nil, fmt.Errorf("unexpected schedule payload type %T", out)
	}
	return fixtures, nil
}

func (c *Client) executeRequest(ctx context.Context, fullURL string) (*bytebufferpool.ByteBuffer, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req := fasthttp.AcquireRequest()
		resp := fasthttp.AcquireResponse()

		req.SetRequestURI(fullURL)
		req.Header.SetMethod(fasthttp.MethodGet)
		req.Header.SetUserAgent(c.userAgent)
		req.Header.Set("Accept", "text/html")

		err := c.httpClient.DoTimeout(req, resp, c.timeout)
		if err != nil {
			lastErr = fmt.Errorf("%w: %w: send request: %v", ErrFetch, errTransient, err)
		} else {
			status := resp.StatusCode()
			switch {
			case status >= 200 && status < 300:
				body := bytebufferpool.Get()
				_, _ = body.Write(resp.Body())
				fasthttp.ReleaseRequest(req)
				fasthttp.ReleaseResponse(resp)
				return body, nil
			case status == http.StatusTooManyRequests:
				retryAfter := parseRetryAfter(string(resp.Header.Peek(fasthttp.HeaderRetryAfter)), time.Now())
				fasthttp.ReleaseRequest(req)
				fasthttp.ReleaseResponse(resp)
				return nil, &RateLimitError{RetryAfter: retryAfter}
			case status >= http.StatusInternalServerError:
				lastErr = fmt.Errorf("%w: %w: provider status=%d", ErrFetch, errTransient, status)
			default:
				lastErr = fmt.Errorf("%w: provider status=%d body=%s", ErrFetch, status, abbreviateBody(resp.Body()))
				fasthttp.ReleaseRequest(req)
				fasthttp.ReleaseResponse(resp)
				return nil, lastErr
			}
		}
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)

		if attempt == c.maxRetries {
			break
		}
		backoff := time.Duration(attempt+1) * time.Second
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("%w: provider request failed", ErrFetch)
	}
	c.logger.WarnContext(ctx, "fbref request failed", "url", fullURL, "error", lastErr)
	return nil, lastErr
}

func isCircuitFailure(err error) bool {
	if err == nil {
		return false
	}
	return stderrors.Is(err, errTransient) || stderrors.Is(err, ErrRateLimited)
}

// parseRetryAfter accepts both delay-seconds and HTTP-date forms.
func parseRetryAfter(raw string, now time.Time) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(raw); err == nil {
		if seconds < 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(raw); err == nil {
		if delta := at.Sub(now); delta > 0 {
			return delta
		}
	}
	return 0
}

func abbreviateBody(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) <= 240 {
		return text
	}
	return text[:240] + "..."
}

func maxInt(left, right int) int {
	if left > right {
		return left
	}
	return right
}
