package indicator

import (
	"errors"
	"math"

	"IndexPilot/internal/model"
)

// ADXResult holds the ADX value and both directional indicators.
type ADXResult struct {
	ADX     float64
	PlusDI  float64
	MinusDI float64
}

// CalculateADX computes the Wilder ADX over the given period. Requires
// 2*period+1 bars; returns the zero result (read as "no trend
// information") when data is insufficient.
func CalculateADX(bars []model.Candle, period int) (ADXResult, error) {
	if period <= 0 {
		return ADXResult{}, errors.New("period must be positive")
	}
	if len(bars) < 2*period+1 {
		return ADXResult{}, nil
	}

	n := len(bars)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	tr := make([]float64, n)

	for i := 1; i < n; i++ {
		up := bars[i].High - bars[i-1].High
		down := bars[i-1].Low - bars[i].Low
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
		hl := bars[i].High - bars[i].Low
		hc := math.Abs(bars[i].High - bars[i-1].Close)
		lc := math.Abs(bars[i].Low - bars[i-1].Close)
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}

	// Wilder-smoothed sums seeded over the first `period` values.
	var smPlus, smMinus, smTR float64
	for i := 1; i <= period; i++ {
		smPlus += plusDM[i]
		smMinus += minusDM[i]
		smTR += tr[i]
	}

	var dxSum float64
	var dxCount int
	var adx, plusDI, minusDI float64

	for i := period + 1; i < n; i++ {
		smPlus = smPlus - smPlus/float64(period) + plusDM[i]
		smMinus = smMinus - smMinus/float64(period) + minusDM[i]
		smTR = smTR - smTR/float64(period) + tr[i]

		if smTR == 0 {
			continue
		}
		plusDI = 100.0 * smPlus / smTR
		minusDI = 100.0 * smMinus / smTR

		sum := plusDI + minusDI
		if sum == 0 {
			continue
		}
		dx := 100.0 * math.Abs(plusDI-minusDI) / sum

		dxCount++
		if dxCount <= period {
			dxSum += dx
			adx = dxSum / float64(dxCount)
		} else {
			adx = (adx*float64(period-1) + dx) / float64(period)
		}
	}

	return ADXResult{ADX: adx, PlusDI: plusDI, MinusDI: minusDI}, nil
}
