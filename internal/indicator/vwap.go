package indicator

import (
	"math"

	"IndexPilot/internal/model"
)

// VWAPResult holds the session VWAP and its 1σ/2σ bands.
type VWAPResult struct {
	VWAP   float64
	Upper1 float64
	Lower1 float64
	Upper2 float64
	Lower2 float64
}

// CalculateVWAP computes the volume-weighted average price of the
// given session bars with standard-deviation bands. Returns the zero
// result when there is no volume.
func CalculateVWAP(bars []model.Candle) VWAPResult {
	var pvSum, volSum float64
	for _, b := range bars {
		typical := (b.High + b.Low + b.Close) / 3.0
		pvSum += typical * b.Volume
		volSum += b.Volume
	}
	if volSum == 0 {
		return VWAPResult{}
	}
	vwap := pvSum / volSum

	var varSum float64
	for _, b := range bars {
		typical := (b.High + b.Low + b.Close) / 3.0
		varSum += b.Volume * (typical - vwap) * (typical - vwap)
	}
	sigma := math.Sqrt(varSum / volSum)

	return VWAPResult{
		VWAP:   vwap,
		Upper1: vwap + sigma,
		Lower1: vwap - sigma,
		Upper2: vwap + 2*sigma,
		Lower2: vwap - 2*sigma,
	}
}

// PivotLevels holds the classic floor-trader pivot points.
type PivotLevels struct {
	P  float64
	R1 float64
	R2 float64
	R3 float64
	S1 float64
	S2 float64
	S3 float64
}

// CalculatePivots derives classic pivots from the prior session's
// high, low and close. Returns the zero result when references are
// missing.
func CalculatePivots(prevHigh, prevLow, prevClose float64) PivotLevels {
	if prevHigh == 0 || prevLow == 0 || prevClose == 0 {
		return PivotLevels{}
	}
	p := (prevHigh + prevLow + prevClose) / 3.0
	rng := prevHigh - prevLow
	return PivotLevels{
		P:  p,
		R1: 2*p - prevLow,
		R2: p + rng,
		R3: prevHigh + 2*(p-prevLow),
		S1: 2*p - prevHigh,
		S2: p - rng,
		S3: prevLow - 2*(prevHigh-p),
	}
}
