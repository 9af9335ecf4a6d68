package httpx

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

type statusErr int

func (s statusErr) Error() string       { return fmt.Sprintf("status %d", int(s)) }
func (s statusErr) HTTPStatusCode() int { return int(s) }

func TestIsRetryableError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limited", statusErr(429), true},
		{"server error wrapped", fmt.Errorf("call: %w", statusErr(503)), true},
		{"bad request", statusErr(400), false},
		{"deadline", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tc := range cases {
		if got := IsRetryableError(tc.err); got != tc.want {
			t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
}

func TestSleepHonorsCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	if err := Sleep(ctx, time.Minute); !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("sleep ignored cancellation")
	}
}

type hintedErr struct {
	statusErr
	after time.Duration
}

func (h hintedErr) RetryAfterHint() time.Duration { return h.after }

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	cases := map[string]time.Duration{
		"":                              0,
		"7":                             7 * time.Second,
		"-3":                            0,
		"soon":                          0,
		"Mon, 19 Oct 2026 12:00:30 GMT": 30 * time.Second,
		"Mon, 19 Oct 2026 11:00:00 GMT": 0,
	}
	for in, want := range cases {
		if got := ParseRetryAfter(in, now); got != want {
			t.Fatalf("%q: got %v want %v", in, got, want)
		}
	}
}

func TestBackoffGrowsWithinJitterAndCap(t *testing.T) {
	for attempt, want := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second} {
		got := Backoff(time.Second, attempt)
		if got < want*8/10 || got > want*12/10 {
			t.Fatalf("attempt %d: %v outside ±20%% of %v", attempt, got, want)
		}
	}
	if got := Backoff(time.Second, 30); got > MaxBackoff {
		t.Fatalf("uncapped: %v", got)
	}
	if Backoff(0, 3) != 0 {
		t.Fatalf("zero base should not wait")
	}
}

func TestRetryDelayPrefersHint(t *testing.T) {
	err := fmt.Errorf("call: %w", hintedErr{statusErr: 429, after: 3 * time.Second})
	if got := RetryDelay(err, time.Millisecond, 0); got != 3*time.Second {
		t.Fatalf("hint ignored: %v", got)
	}
	if got := RetryDelay(hintedErr{statusErr: 429, after: time.Hour}, time.Millisecond, 0); got != MaxBackoff {
		t.Fatalf("hint not capped: %v", got)
	}
	if got := RetryDelay(statusErr(503), 10*time.Millisecond, 0); got <= 0 || got > 12*time.Millisecond {
		t.Fatalf("backoff fallback: %v", got)
	}
}
