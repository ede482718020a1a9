package calculator

import (
	"errors"
	"math"

	"NewsSentinel/internal/model"
)

// Range returns the high and low over the most recent n bars (all bars if fewer).
func Range(bars []model.PriceBar, n int) (high, low float64, err error) {
	if len(bars) == 0 {
		return 0, 0, errors.New("no bars provided")
	}
	start := len(bars) - n
	if start < 0 || n <= 0 {
		start = 0
	}
	high = math.Inf(-1)
	low = math.Inf(1)
	for _, b := range bars[start:] {
		if b.High > high {
			high = b.High
		}
		if b.Low < low {
			low = b.Low
		}
	}
	return high, low, nil
}
