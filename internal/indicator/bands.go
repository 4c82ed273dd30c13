package indicator

import (
	"errors"
	"math"

	"IndexPilot/internal/model"
)

// BollingerResult holds the three Bollinger bands.
type BollingerResult struct {
	Upper  float64
	Middle float64
	Lower  float64
}

// CalculateBollinger computes Bollinger bands over the given period
// with stdDev standard deviations. Returns the zero result when data
// is insufficient.
func CalculateBollinger(bars []model.Candle, period int, stdDev float64) (BollingerResult, error) {
	if period <= 0 {
		return BollingerResult{}, errors.New("period must be positive")
	}
	if len(bars) < period {
		return BollingerResult{}, nil
	}

	closes := Closes(bars)
	mid, err := CalculateSMA(closes, period)
	if err != nil {
		return BollingerResult{}, err
	}

	variance := 0.0
	for i := len(closes) - period; i < len(closes); i++ {
		d := closes[i] - mid
		variance += d * d
	}
	sigma := math.Sqrt(variance / float64(period))

	return BollingerResult{
		Upper:  mid + stdDev*sigma,
		Middle: mid,
		Lower:  mid - stdDev*sigma,
	}, nil
}

// CalculateATR computes the Wilder-smoothed average true range over
// the given period. Requires period+1 bars; returns 0 when data is
// insufficient.
func CalculateATR(bars []model.Candle, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(bars) < period+1 {
		return 0, nil
	}

	trueRange := func(cur, prev model.Candle) float64 {
		hl := cur.High - cur.Low
		hc := math.Abs(cur.High - prev.Close)
		lc := math.Abs(cur.Low - prev.Close)
		return math.Max(hl, math.Max(hc, lc))
	}

	atr := 0.0
	for i := 1; i <= period; i++ {
		atr += trueRange(bars[i], bars[i-1])
	}
	atr /= float64(period)

	for i := period + 1; i < len(bars); i++ {
		atr = (atr*float64(period-1) + trueRange(bars[i], bars[i-1])) / float64(period)
	}
	return atr, nil
}
