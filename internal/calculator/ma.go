package calculator

import (
	"errors"

	"NewsSentinel/internal/model"
)

// SMA computes the simple moving average of the last period prices.
func SMA(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(prices) < period {
		return 0, ErrInsufficientData
	}
	var sum float64
	for _, p := range prices[len(prices)-period:] {
		sum += p
	}
	return sum / float64(period), nil
}

// SMA20 is the 20-session moving average of daily closes.
func SMA20(daily []model.PriceBar) (float64, error) {
	return SMA(Closes(daily), 20)
}

// ChangePercent is the last close relative to the one before it.
func ChangePercent(daily []model.PriceBar) (float64, error) {
	if len(daily) < 2 {
		return 0, errors.New("need at least two bars")
	}
	prev := daily[len(daily)-2].Close
	if prev == 0 {
		return 0, errors.New("previous close is zero")
	}
	return (daily[len(daily)-1].Close - prev) / prev * 100, nil
}

func Closes(bars []model.PriceBar) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}
