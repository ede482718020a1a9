package calculator

import (
	"math"
	"testing"
	"time"

	"NewsSentinel/internal/model"
)

func bars(closes ...float64) []model.PriceBar {
	out := make([]model.PriceBar, len(closes))
	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		out[i] = model.PriceBar{Time: start.AddDate(0, 0, i), Open: c, High: c * 1.01, Low: c * 0.99, Close: c}
	}
	return out
}

func TestSMA(t *testing.T) {
	got, err := SMA([]float64{1, 2, 3, 4, 5}, 3)
	if err != nil || got != 4 {
		t.Errorf("SMA = %v, %v; want 4", got, err)
	}
	if _, err := SMA([]float64{1, 2}, 3); err == nil {
		t.Error("expected error with too few prices")
	}
	if _, err := SMA([]float64{1}, 0); err == nil {
		t.Error("expected error for zero period")
	}
}

func TestChangePercent(t *testing.T) {
	got, err := ChangePercent(bars(100, 102))
	if err != nil || math.Abs(got-2) > 1e-9 {
		t.Errorf("ChangePercent = %v, %v; want 2", got, err)
	}
	if _, err := ChangePercent(bars(100)); err == nil {
		t.Error("expected error with one bar")
	}
}

func TestRSI(t *testing.T) {
	up := make([]float64, 20)
	for i := range up {
		up[i] = float64(100 + i)
	}
	got, err := RSI(bars(up...), 14)
	if err != nil || got != 100 {
		t.Errorf("monotonic rise RSI = %v, %v; want 100", got, err)
	}

	if _, err := RSI(bars(1, 2, 3), 14); err != ErrInsufficientData {
		t.Errorf("expected ErrInsufficientData, got %v", err)
	}

	mixed := []float64{44, 44.3, 44.1, 43.6, 44.3, 44.8, 45.1, 45.4, 45.8, 46.1, 45.9, 46.3, 46.0, 46.4, 46.2, 45.6}
	got, err = RSI(bars(mixed...), 14)
	if err != nil || got <= 0 || got >= 100 {
		t.Errorf("mixed RSI out of range: %v, %v", got, err)
	}
}

func TestRange(t *testing.T) {
	b := bars(10, 30, 20, 15)
	high, low, err := Range(b, 2)
	if err != nil {
		t.Fatal(err)
	}
	if !near(high, 20.2) || !near(low, 14.85) {
		t.Errorf("Range(2) = %v/%v", high, low)
	}
	high, _, _ = Range(b, 100)
	if !near(high, 30.3) {
		t.Errorf("Range(100) high = %v", high)
	}
	if _, _, err := Range(nil, 5); err == nil {
		t.Error("expected error for no bars")
	}
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }
