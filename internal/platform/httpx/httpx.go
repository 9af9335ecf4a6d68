// Package httpx classifies transient upstream failures and computes how long
// to wait before trying again.
package httpx

import (
	"context"
	"errors"
	"math/rand/v2"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// MaxBackoff caps every computed wait, including server-provided hints.
const MaxBackoff = time.Minute

type HTTPStatusCoder interface {
	HTTPStatusCode() int
}

// RetryAfterHinter is implemented by errors that carry a server Retry-After.
type RetryAfterHinter interface {
	RetryAfterHint() time.Duration
}

func IsRetryableHTTPStatus(code int) bool {
	switch {
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return true
	case code >= 500 && code <= 599:
		return code != http.StatusNotImplemented
	}
	return false
}

// IsRetryableError reports transient failures: timeouts, network errors and
// retryable upstream statuses. Caller cancellation is never retryable.
func IsRetryableError(err error) bool {
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, context.DeadlineExceeded):
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var sc HTTPStatusCoder
	if errors.As(err, &sc) {
		return IsRetryableHTTPStatus(sc.HTTPStatusCode())
	}
	return false
}

// ParseRetryAfter reads a Retry-After header given in seconds or as an HTTP
// date. Unparseable or past values yield 0.
func ParseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}

// Backoff doubles base per attempt (attempt 0 waits about base) with ±20%
// jitter, capped at MaxBackoff.
func Backoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	d := base
	for i := 0; i < attempt && d < MaxBackoff; i++ {
		d *= 2
	}
	d = time.Duration(float64(d) * (0.8 + 0.4*rand.Float64()))
	return min(d, MaxBackoff)
}

// RetryDelay prefers the error's Retry-After hint over computed backoff.
func RetryDelay(err error, base time.Duration, attempt int) time.Duration {
	var h RetryAfterHinter
	if errors.As(err, &h) {
		if hint := h.RetryAfterHint(); hint > 0 {
			return min(hint, MaxBackoff)
		}
	}
	return Backoff(base, attempt)
}

// Sleep waits for d or until ctx is done, returning ctx.Err() in the latter case.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
