package calculator

import (
	"errors"

	"NewsSentinel/internal/model"
)

// ErrInsufficientData is returned when there are fewer than period+1 bars.
var ErrInsufficientData = errors.New("not enough bars")

// RSI computes the Wilder-smoothed relative strength index.
func RSI(bars []model.PriceBar, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(bars) < period+1 {
		return 0, ErrInsufficientData
	}

	closes := Closes(bars)
	n := float64(period)

	// seed with the simple mean of the first period moves
	var up, down float64
	for i := 1; i <= period; i++ {
		g, l := move(closes[i-1], closes[i])
		up += g
		down += l
	}
	up /= n
	down /= n

	for i := period + 1; i < len(closes); i++ {
		g, l := move(closes[i-1], closes[i])
		up += (g - up) / n
		down += (l - down) / n
	}

	if down == 0 {
		return 100, nil
	}
	return 100 - 100/(1+up/down), nil
}

// move splits a close-to-close change into its gain and loss parts.
func move(prev, cur float64) (gain, loss float64) {
	if d := cur - prev; d > 0 {
		return d, 0
	}
	return 0, prev - cur
}
