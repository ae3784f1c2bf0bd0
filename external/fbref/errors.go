package fbref

import (
	"fmt"
	"time"

	crerr "github.com/cockroachdb/errors"
)

// Sentinel failure classes for schedule retrieval. Callers branch on these
// with errors.Is; RateLimitError additionally carries the upstream backoff
// hint and is reachable through errors.As.
var (
	ErrFetch       = crerr.New("fbref fetch failed")
	ErrRateLimited = crerr.New("fbref rate limited")
	ErrParse       = crerr.New("fbref parse failed")
)

// RateLimitError reports an upstream 429 together with the Retry-After hint
// when the response carried one. RetryAfter is zero when the header was
// missing or unparsable.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("fbref rate limited, retry after %s", e.RetryAfter)
	}
	return "fbref rate limited"
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }
