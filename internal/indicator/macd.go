package indicator

import "IndexPilot/internal/model"

// MACDResult holds the MACD line, signal line and histogram.
type MACDResult struct {
	Line      float64
	Signal    float64
	Histogram float64
	// PrevHistogram allows callers to detect a fresh cross.
	PrevHistogram float64
}

// CalculateMACD computes MACD(12,26,9) from the candle closes.
// Returns the zero result when data is insufficient; callers must
// treat an all-zero result as "indicator unavailable".
func CalculateMACD(bars []model.Candle) (MACDResult, error) {
	const fast, slow, signal = 12, 26, 9

	closes := Closes(bars)
	if len(closes) < slow+signal {
		return MACDResult{}, nil
	}

	fastEMA, err := CalculateEMA(closes, fast)
	if err != nil {
		return MACDResult{}, err
	}
	slowEMA, err := CalculateEMA(closes, slow)
	if err != nil {
		return MACDResult{}, err
	}

	// Align: slowEMA starts (slow-fast) samples later than fastEMA.
	offset := slow - fast
	macd := make([]float64, len(slowEMA))
	for i := range slowEMA {
		macd[i] = fastEMA[i+offset] - slowEMA[i]
	}

	signalSeries, err := CalculateEMA(macd, signal)
	if err != nil || len(signalSeries) == 0 {
		return MACDResult{}, err
	}

	last := len(macd) - 1
	res := MACDResult{
		Line:      macd[last],
		Signal:    signalSeries[len(signalSeries)-1],
		Histogram: macd[last] - signalSeries[len(signalSeries)-1],
	}
	if len(signalSeries) >= 2 {
		res.PrevHistogram = macd[last-1] - signalSeries[len(signalSeries)-2]
	}
	return res, nil
}
