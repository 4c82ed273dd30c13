package indicator

import (
	"errors"

	"IndexPilot/internal/model"
)

// CalculateSMA computes the simple moving average of the given prices
// over the specified period. Returns 0 when there is not enough data.
func CalculateSMA(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(prices) < period {
		return 0, nil // neutral: indicator unavailable
	}
	sum := 0.0
	for i := len(prices) - period; i < len(prices); i++ {
		sum += prices[i]
	}
	return sum / float64(period), nil
}

// CalculateEMA computes the exponential moving average series over the
// given period, seeded with the SMA of the first period values.
// Returns nil when there is not enough data.
func CalculateEMA(prices []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, errors.New("period must be positive")
	}
	if len(prices) < period {
		return nil, nil
	}
	k := 2.0 / float64(period+1)
	ema := make([]float64, len(prices))
	seed := 0.0
	for i := 0; i < period; i++ {
		seed += prices[i]
	}
	seed /= float64(period)
	ema[period-1] = seed
	for i := period; i < len(prices); i++ {
		ema[i] = prices[i]*k + ema[i-1]*(1-k)
	}
	return ema[period-1:], nil
}

// LastEMA returns the final value of the EMA series, or 0 when the
// series is too short.
func LastEMA(prices []float64, period int) (float64, error) {
	series, err := CalculateEMA(prices, period)
	if err != nil {
		return 0, err
	}
	if len(series) == 0 {
		return 0, nil
	}
	return series[len(series)-1], nil
}

// Closes extracts closing prices from a candle series.
func Closes(bars []model.Candle) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}
