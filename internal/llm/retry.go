package llm

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
)

// RetryConfig is the capped exponential backoff applied to completion calls.
type RetryConfig struct {
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

func DefaultRetryConfig(maxRetries int) RetryConfig {
	return RetryConfig{
		MaxRetries:        maxRetries,
		InitialBackoff:    2 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2,
	}
}

// IsRetryable matches quota, overload and transient gateway failures.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	for _, marker := range []string{"429", "RESOURCE_EXHAUSTED", "quota", "overloaded", "529", "503", "502", "UNAVAILABLE"} {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

var retryDelayRegex = regexp.MustCompile(`(?i)(?:Please retry in |retryDelay[:\s]+)(\d+(?:\.\d+)?)\s*s`)

// ExtractRetryDelay parses an API-suggested delay such as "Please retry in 12.5s".
func ExtractRetryDelay(err error) time.Duration {
	if err == nil {
		return 0
	}
	m := retryDelayRegex.FindStringSubmatch(err.Error())
	if len(m) < 2 {
		return 0
	}
	seconds, perr := strconv.ParseFloat(m[1], 64)
	if perr != nil {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}

// Backoff returns the wait before retry number attempt (0-based), capped at MaxBackoff.
func (c RetryConfig) Backoff(attempt int, apiDelay time.Duration) time.Duration {
	base := c.InitialBackoff
	if apiDelay > 0 {
		base = apiDelay + time.Second
	}
	mult := 1.0
	for i := 0; i < attempt; i++ {
		mult *= c.BackoffMultiplier
	}
	d := time.Duration(float64(base) * mult)
	if d > c.MaxBackoff {
		d = c.MaxBackoff
	}
	return d
}

// withRetry runs fn until it succeeds, returns a non-retryable error, or retries run out.
func withRetry(ctx context.Context, rc RetryConfig, logger arbor.ILogger, provider string, fn func(context.Context) (string, error)) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= rc.MaxRetries; attempt++ {
		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !IsRetryable(err) || attempt == rc.MaxRetries {
			break
		}

		wait := rc.Backoff(attempt, ExtractRetryDelay(err))
		logger.Warn().
			Err(err).
			Str("provider", provider).
			Int("attempt", attempt+1).
			Dur("backoff", wait).
			Msg("LLM call failed, retrying")

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(wait):
		}
	}
	return "", lastErr
}
