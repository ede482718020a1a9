package ratelimit

import (
	"context"
	"sync"
	"time"

	"NewsSentinel/internal/model"

	"github.com/ternarybob/arbor"
)

const (
	DefaultQuota              = 20
	DefaultWindow             = 60 * time.Second
	DefaultSafetyMargin       = time.Second
	DefaultNearLimitThreshold = 5
)

// Gate is a sliding-window admission controller for a quota-limited upstream.
// It never rejects a call; Admit only delays the caller until one more call fits the window.
//
// The pipeline drives it from a single sequential flow. The mutex only keeps Snapshot and
// Reset safe while a pass is running; it does not give concurrent callers FIFO fairness.
type Gate struct {
	mu        sync.Mutex
	quota     int
	window    time.Duration
	margin    time.Duration
	nearLimit int
	calls     []time.Time // oldest first

	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	logger arbor.ILogger
}

// Option configures a Gate.
type Option func(*Gate)

func WithQuota(n int) Option { return func(g *Gate) { g.quota = n } }

func WithWindow(d time.Duration) Option { return func(g *Gate) { g.window = d } }

func WithSafetyMargin(d time.Duration) Option { return func(g *Gate) { g.margin = d } }

// WithNearLimitThreshold sets the remaining-call count at or below which the gate reports near_limit.
func WithNearLimitThreshold(n int) Option { return func(g *Gate) { g.nearLimit = n } }

func WithLogger(l arbor.ILogger) Option { return func(g *Gate) { g.logger = l } }

// WithClock replaces the time source and the suspension function. Used by tests.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(g *Gate) {
		g.now = now
		g.sleep = sleep
	}
}

// New creates a Gate with the reference policy (20 calls per 60s, 1s margin) unless overridden.
func New(opts ...Option) *Gate {
	g := &Gate{
		quota:     DefaultQuota,
		window:    DefaultWindow,
		margin:    DefaultSafetyMargin,
		nearLimit: DefaultNearLimitThreshold,
		now:       time.Now,
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.quota <= 0 {
		g.quota = DefaultQuota
	}
	if g.window <= 0 {
		g.window = DefaultWindow
	}
	g.calls = make([]time.Time, 0, g.quota)
	return g
}

// Admit blocks until one more upstream call fits in the window, then records it.
// It returns an error only when ctx is cancelled while waiting.
func (g *Gate) Admit(ctx context.Context) error {
	for {
		g.mu.Lock()
		now := g.now()
		g.evict(now)
		if len(g.calls) < g.quota {
			g.calls = append(g.calls, now)
			g.mu.Unlock()
			return nil
		}
		wait := g.window - now.Sub(g.calls[0]) + g.margin
		inWindow := len(g.calls)
		g.mu.Unlock()

		if wait <= 0 {
			continue
		}
		if g.logger != nil {
			g.logger.Info().
				Int("in_window", inWindow).
				Int("quota", g.quota).
				Dur("wait", wait).
				Msg("Rate limit reached, waiting")
		}
		if err := g.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Snapshot returns the current window occupancy.
func (g *Gate) Snapshot() model.GateSnapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.evict(g.now())
	remaining := g.quota - len(g.calls)
	health := model.GateHealthy
	if remaining <= g.nearLimit {
		health = model.GateNearLimit
	}
	return model.GateSnapshot{
		CallsInWindow: len(g.calls),
		Quota:         g.quota,
		Window:        g.window,
		Remaining:     remaining,
		Health:        health,
	}
}

// Reset forgets all recorded calls.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = g.calls[:0]
}

// evict drops timestamps that have left the window. Caller holds mu.
func (g *Gate) evict(now time.Time) {
	i := 0
	for i < len(g.calls) && now.Sub(g.calls[i]) >= g.window {
		i++
	}
	if i > 0 {
		g.calls = append(g.calls[:0], g.calls[i:]...)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
