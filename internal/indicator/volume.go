package indicator

import "IndexPilot/internal/model"

// CalculateOBV computes the on-balance volume series. Returns nil for
// fewer than 2 bars.
func CalculateOBV(bars []model.Candle) []float64 {
	if len(bars) < 2 {
		return nil
	}
	obv := make([]float64, len(bars))
	for i := 1; i < len(bars); i++ {
		switch {
		case bars[i].Close > bars[i-1].Close:
			obv[i] = obv[i-1] + bars[i].Volume
		case bars[i].Close < bars[i-1].Close:
			obv[i] = obv[i-1] - bars[i].Volume
		default:
			obv[i] = obv[i-1]
		}
	}
	return obv
}

// OBVDivergence reports whether price and OBV disagree over the last
// `window` bars: +1 bullish divergence (price down, OBV up), -1
// bearish, 0 none/unavailable.
func OBVDivergence(bars []model.Candle, window int) int {
	obv := CalculateOBV(bars)
	if obv == nil || len(bars) < window || window < 2 {
		return 0
	}
	n := len(bars)
	priceDelta := bars[n-1].Close - bars[n-window].Close
	obvDelta := obv[n-1] - obv[n-window]
	switch {
	case priceDelta < 0 && obvDelta > 0:
		return 1
	case priceDelta > 0 && obvDelta < 0:
		return -1
	}
	return 0
}

// AverageVolume returns the mean volume of the trailing `period` bars,
// or 0 when data is insufficient.
func AverageVolume(bars []model.Candle, period int) float64 {
	if period <= 0 || len(bars) < period {
		return 0
	}
	sum := 0.0
	for i := len(bars) - period; i < len(bars); i++ {
		sum += bars[i].Volume
	}
	return sum / float64(period)
}

// AggressionRatio weighs candle bodies by volume to estimate buyer vs
// seller initiative over the last `window` bars. Returns a value in
// [-1, 1]; 0 when unavailable.
func AggressionRatio(bars []model.Candle, window int) float64 {
	if len(bars) < window || window <= 0 {
		return 0
	}
	var buyVol, sellVol float64
	for _, b := range bars[len(bars)-window:] {
		rng := b.High - b.Low
		if rng <= 0 {
			continue
		}
		bodyShare := b.Body() / rng
		if b.Bullish() {
			buyVol += b.Volume * bodyShare
		} else {
			sellVol += b.Volume * bodyShare
		}
	}
	total := buyVol + sellVol
	if total == 0 {
		return 0
	}
	return (buyVol - sellVol) / total
}
