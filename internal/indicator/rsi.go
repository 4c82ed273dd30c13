package indicator

import (
	"errors"

	"IndexPilot/internal/model"
)

// CalculateRSI computes the Wilder-smoothed RSI over the given period.
// Requires at least period+1 bars; returns the neutral midpoint 50.0
// when data is insufficient.
func CalculateRSI(bars []model.Candle, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(bars) < period+1 {
		return 50.0, nil // default when data insufficient
	}

	closes := Closes(bars)

	// Initial average gain/loss over the first `period` changes
	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change // make positive
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	// Wilder smoothing for remaining bars
	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 100.0, nil
	}
	rs := avgGain / avgLoss
	return 100.0 - 100.0/(1.0+rs), nil
}

// CalculateStochastic computes the %K/%D stochastic oscillator over
// kPeriod with a dPeriod SMA of %K. Returns the 50/50 midpoint when
// data is insufficient.
func CalculateStochastic(bars []model.Candle, kPeriod, dPeriod int) (k, d float64, err error) {
	if kPeriod <= 0 || dPeriod <= 0 {
		return 0, 0, errors.New("periods must be positive")
	}
	if len(bars) < kPeriod+dPeriod-1 {
		return 50.0, 50.0, nil
	}

	kValues := make([]float64, 0, dPeriod)
	for off := dPeriod - 1; off >= 0; off-- {
		end := len(bars) - off
		window := bars[end-kPeriod : end]
		hi, lo := window[0].High, window[0].Low
		for _, b := range window[1:] {
			if b.High > hi {
				hi = b.High
			}
			if b.Low < lo {
				lo = b.Low
			}
		}
		if hi == lo {
			kValues = append(kValues, 50.0)
			continue
		}
		kValues = append(kValues, (window[kPeriod-1].Close-lo)/(hi-lo)*100.0)
	}

	k = kValues[len(kValues)-1]
	sum := 0.0
	for _, v := range kValues {
		sum += v
	}
	return k, sum / float64(len(kValues)), nil
}
