package ratelimit

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"NewsSentinel/internal/model"
)

// fakeClock advances only when the gate sleeps or the test says so.
type fakeClock struct {
	t     time.Time
	waits []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) sleep(_ context.Context, d time.Duration) error {
	c.waits = append(c.waits, d)
	c.t = c.t.Add(d)
	return nil
}

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestAdmit_TwentyFiveSequentialCalls(t *testing.T) {
	clk := newFakeClock()
	g := New(WithQuota(20), WithWindow(60*time.Second), WithSafetyMargin(time.Second), WithClock(clk.now, clk.sleep))

	var admitted []time.Time
	for i := 0; i < 25; i++ {
		if err := g.Admit(context.Background()); err != nil {
			t.Fatalf("admit %d: %v", i+1, err)
		}
		admitted = append(admitted, clk.now())
		if i == 19 && len(clk.waits) != 0 {
			t.Fatalf("expected no wait for the first 20 calls, got %v", clk.waits)
		}
	}

	if len(clk.waits) == 0 || clk.waits[0] <= 0 {
		t.Fatalf("expected a positive wait before the 21st call, got %v", clk.waits)
	}
	if gap := admitted[24].Sub(admitted[0]); gap < 59*time.Second {
		t.Errorf("25th call only %v after the 1st, want >= 59s", gap)
	}
	if clk.waits[0] != 61*time.Second {
		t.Errorf("expected wait of window+margin (61s), got %v", clk.waits[0])
	}
}

func TestAdmit_NeverExceedsQuotaInAnyWindow(t *testing.T) {
	const quota = 5
	window := 10 * time.Second

	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 20; round++ {
		clk := newFakeClock()
		g := New(WithQuota(quota), WithWindow(window), WithSafetyMargin(0), WithClock(clk.now, clk.sleep))

		var admitted []time.Time
		for i := 0; i < 60; i++ {
			clk.advance(time.Duration(rng.Intn(3000)) * time.Millisecond)
			if err := g.Admit(context.Background()); err != nil {
				t.Fatal(err)
			}
			admitted = append(admitted, clk.now())
		}

		for i := range admitted {
			count := 0
			for j := i; j < len(admitted) && admitted[j].Sub(admitted[i]) < window; j++ {
				count++
			}
			if count > quota {
				t.Fatalf("round %d: %d calls within %v starting at call %d", round, count, window, i)
			}
		}
	}
}

func TestAdmit_SlowCallerNeverWaits(t *testing.T) {
	clk := newFakeClock()
	g := New(WithQuota(3), WithWindow(time.Minute), WithClock(clk.now, clk.sleep))
	for i := 0; i < 10; i++ {
		if err := g.Admit(context.Background()); err != nil {
			t.Fatal(err)
		}
		clk.advance(30 * time.Second)
	}
	if len(clk.waits) != 0 {
		t.Errorf("expected no waits at 2 calls/minute with quota 3, got %v", clk.waits)
	}
}

func TestAdmit_ContextCancelled(t *testing.T) {
	g := New(WithQuota(1), WithWindow(time.Hour))
	if err := g.Admit(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := g.Admit(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("cancelled admit should return promptly")
	}
}

func TestSnapshot(t *testing.T) {
	clk := newFakeClock()
	g := New(WithQuota(20), WithWindow(time.Minute), WithNearLimitThreshold(5), WithClock(clk.now, clk.sleep))

	snap := g.Snapshot()
	if snap.CallsInWindow != 0 || snap.Remaining != 20 || snap.Health != model.GateHealthy {
		t.Errorf("fresh snapshot = %+v", snap)
	}

	for i := 0; i < 15; i++ {
		_ = g.Admit(context.Background())
	}
	snap = g.Snapshot()
	if snap.Remaining != 5 || snap.Health != model.GateNearLimit {
		t.Errorf("remaining 5 should be near_limit, got %+v", snap)
	}

	clk.advance(time.Minute)
	snap = g.Snapshot()
	if snap.CallsInWindow != 0 || snap.Health != model.GateHealthy {
		t.Errorf("calls should age out of the window, got %+v", snap)
	}
}

func TestReset(t *testing.T) {
	clk := newFakeClock()
	g := New(WithQuota(2), WithClock(clk.now, clk.sleep))
	_ = g.Admit(context.Background())
	_ = g.Admit(context.Background())
	g.Reset()
	if err := g.Admit(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(clk.waits) != 0 {
		t.Errorf("reset gate should admit without waiting, waits=%v", clk.waits)
	}
}
