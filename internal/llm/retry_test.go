package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"NewsSentinel/internal/logging"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("Error 429, Status: RESOURCE_EXHAUSTED"), true},
		{errors.New("529 overloaded_error"), true},
		{errors.New("invalid api key"), false},
	}
	for _, tt := range tests {
		if got := IsRetryable(tt.err); got != tt.want {
			t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestExtractRetryDelay(t *testing.T) {
	err := errors.New("Error 429, Message: quota. Please retry in 12.5s., Status: RESOURCE_EXHAUSTED")
	if got := ExtractRetryDelay(err); got != 12500*time.Millisecond {
		t.Errorf("got %v, want 12.5s", got)
	}
	if got := ExtractRetryDelay(errors.New("boom")); got != 0 {
		t.Errorf("got %v, want 0", got)
	}
}

func TestBackoff(t *testing.T) {
	rc := RetryConfig{InitialBackoff: time.Second, MaxBackoff: 5 * time.Second, BackoffMultiplier: 2}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second}
	for i, w := range want {
		if got := rc.Backoff(i, 0); got != w {
			t.Errorf("attempt %d: got %v, want %v", i, got, w)
		}
	}
	if got := rc.Backoff(0, 2*time.Second); got != 3*time.Second {
		t.Errorf("api delay should be honoured, got %v", got)
	}
}

func TestWithRetry(t *testing.T) {
	rc := RetryConfig{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, BackoffMultiplier: 1}
	log := logging.Discard()

	calls := 0
	out, err := withRetry(context.Background(), rc, log, "test", func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("503 unavailable")
		}
		return "ok", nil
	})
	if err != nil || out != "ok" || calls != 3 {
		t.Fatalf("got %q, %v after %d calls", out, err, calls)
	}

	calls = 0
	_, err = withRetry(context.Background(), rc, log, "test", func(context.Context) (string, error) {
		calls++
		return "", errors.New("invalid request")
	})
	if err == nil || calls != 1 {
		t.Fatalf("non-retryable error should stop after one call, calls=%d err=%v", calls, err)
	}
}
