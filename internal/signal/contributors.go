package signal

import (
	"fmt"
	"math"

	"IndexPilot/internal/model"
)

// contributor computes one named, independently bounded micro
// sub-score. The micro score is the plain sum of all contributor
// outputs, each logged individually for auditability.
type contributor struct {
	name string
	eval func(in Inputs) (int, string)
}

var contributors = []contributor{
	{"structure-bias", scoreStructureBias},
	{"structure-break", scoreStructureBreak},
	{"equilibrium", scoreEquilibrium},
	{"fvg", scoreFVG},
	{"vwap-band", scoreVWAPBand},
	{"rsi", scoreRSI},
	{"stochastic", scoreStochastic},
	{"macd-cross", scoreMACDCross},
	{"bollinger", scoreBollinger},
	{"adx-trend", scoreADXTrend},
	{"ema-distance", scoreEMADistance},
	{"volume", scoreVolume},
	{"obv-divergence", scoreOBVDivergence},
	{"candle-at-region", scoreCandleAtRegion},
	{"aggression", scoreAggression},
}

// scoreStructureBias: ±2 from which side of the structural range the
// price trades on.
func scoreStructureBias(in Inputs) (int, string) {
	switch in.Structure.Bias {
	case model.Buy:
		return 2, "price above equilibrium"
	case model.Sell:
		return -2, "price below equilibrium"
	}
	return 0, "no structural bias"
}

// scoreStructureBreak: ±2 on a break of the last confirmed swing.
func scoreStructureBreak(in Inputs) (int, string) {
	switch in.Structure.LastBreak {
	case model.Buy:
		return 2, "bullish break of structure"
	case model.Sell:
		return -2, "bearish break of structure"
	}
	return 0, "structure intact"
}

// scoreEquilibrium: ±1 for discount/premium positioning. Buying is
// cheaper in discount, selling richer in premium.
func scoreEquilibrium(in Inputs) (int, string) {
	if in.Structure.Equilibrium == 0 {
		return 0, "equilibrium unavailable"
	}
	if in.Structure.Discount {
		return 1, "discount zone"
	}
	return -1, "premium zone"
}

// scoreFVG: ±1 when price sits inside an unfilled fair value gap.
func scoreFVG(in Inputs) (int, string) {
	for _, gap := range in.FVGs {
		if in.Price >= gap.Bottom && in.Price <= gap.Top {
			if gap.Bullish {
				return 1, fmt.Sprintf("inside bullish FVG %.0f-%.0f", gap.Bottom, gap.Top)
			}
			return -1, fmt.Sprintf("inside bearish FVG %.0f-%.0f", gap.Bottom, gap.Top)
		}
	}
	return 0, "no FVG at price"
}

// scoreVWAPBand: ±2 by position within the VWAP sigma bands.
func scoreVWAPBand(in Inputs) (int, string) {
	v := in.VWAP
	if v.VWAP == 0 {
		return 0, "vwap unavailable"
	}
	switch {
	case in.Price <= v.Lower2:
		return 2, "below vwap -2 sigma"
	case in.Price <= v.Lower1:
		return 1, "below vwap -1 sigma"
	case in.Price >= v.Upper2:
		return -2, "above vwap +2 sigma"
	case in.Price >= v.Upper1:
		return -1, "above vwap +1 sigma"
	}
	return 0, "inside vwap bands"
}

// scoreRSI: ±2 at oscillator extremes.
func scoreRSI(in Inputs) (int, string) {
	rsi := in.RSI
	comment := fmt.Sprintf("RSI=%.0f", rsi)
	switch {
	case rsi <= 30:
		return 2, comment
	case rsi <= 40:
		return 1, comment
	case rsi >= 70:
		return -2, comment
	case rsi >= 60:
		return -1, comment
	}
	return 0, comment
}

// scoreStochastic: ±1 at %K extremes.
func scoreStochastic(in Inputs) (int, string) {
	comment := fmt.Sprintf("K=%.0f D=%.0f", in.StochK, in.StochD)
	switch {
	case in.StochK <= 20:
		return 1, comment
	case in.StochK >= 80:
		return -1, comment
	}
	return 0, comment
}

// scoreMACDCross: ±2 on a fresh histogram sign flip, ±1 while the
// histogram holds its sign.
func scoreMACDCross(in Inputs) (int, string) {
	m := in.MACD
	if m.Line == 0 && m.Signal == 0 && m.Histogram == 0 {
		return 0, "macd unavailable"
	}
	switch {
	case m.Histogram > 0 && m.PrevHistogram <= 0:
		return 2, "bullish macd cross"
	case m.Histogram < 0 && m.PrevHistogram >= 0:
		return -2, "bearish macd cross"
	case m.Histogram > 0:
		return 1, "macd above signal"
	case m.Histogram < 0:
		return -1, "macd below signal"
	}
	return 0, "macd flat"
}

// scoreBollinger: ±1 outside the bands (mean-reversion pressure).
func scoreBollinger(in Inputs) (int, string) {
	b := in.Bollinger
	if b.Middle == 0 {
		return 0, "bollinger unavailable"
	}
	switch {
	case in.Price <= b.Lower:
		return 1, "below lower band"
	case in.Price >= b.Upper:
		return -1, "above upper band"
	}
	return 0, "inside bands"
}

// scoreADXTrend: ±1 when a trend is established (ADX >= 25) in the
// dominant DI direction.
func scoreADXTrend(in Inputs) (int, string) {
	a := in.ADX
	comment := fmt.Sprintf("ADX=%.0f", a.ADX)
	if a.ADX < 25 {
		return 0, comment
	}
	if a.PlusDI > a.MinusDI {
		return 1, comment + " +DI dominant"
	}
	return -1, comment + " -DI dominant"
}

// scoreEMADistance: ±1 when price is stretched more than 0.5% from the
// 21-EMA, scoring the snap-back direction.
func scoreEMADistance(in Inputs) (int, string) {
	if in.EMA21 == 0 {
		return 0, "ema unavailable"
	}
	distPct := (in.Price - in.EMA21) / in.EMA21 * 100
	comment := fmt.Sprintf("%.2f%% from EMA21", distPct)
	switch {
	case distPct <= -0.5:
		return 1, comment
	case distPct >= 0.5:
		return -1, comment
	}
	return 0, comment
}

// scoreVolume: ±1 when the latest candle prints on elevated volume in
// its own direction.
func scoreVolume(in Inputs) (int, string) {
	bars := in.Candles
	if len(bars) == 0 || in.AvgVolume == 0 {
		return 0, "volume unavailable"
	}
	last := bars[len(bars)-1]
	ratio := last.Volume / in.AvgVolume
	comment := fmt.Sprintf("%.1fx avg volume", ratio)
	if ratio < 1.5 {
		return 0, comment
	}
	if last.Bullish() {
		return 1, comment + " bullish"
	}
	return -1, comment + " bearish"
}

// scoreOBVDivergence: ±2 on price/OBV disagreement.
func scoreOBVDivergence(in Inputs) (int, string) {
	switch in.OBVDiv {
	case 1:
		return 2, "bullish obv divergence"
	case -1:
		return -2, "bearish obv divergence"
	}
	return 0, "obv confirms price"
}

// scoreCandleAtRegion: ±2 for a rejection candle printed at the
// nearest mapped region (long lower wick at support, mirror at
// resistance).
func scoreCandleAtRegion(in Inputs) (int, string) {
	if len(in.Regions) == 0 || len(in.Candles) == 0 {
		return 0, "no region context"
	}
	nearest := in.Regions[0]
	if math.Abs(nearest.DistancePct) > 0.15 {
		return 0, "no region at price"
	}
	last := in.Candles[len(in.Candles)-1]
	rng := last.High - last.Low
	if rng <= 0 {
		return 0, "flat candle"
	}
	lowerWick := math.Min(last.Open, last.Close) - last.Low
	upperWick := last.High - math.Max(last.Open, last.Close)

	if nearest.Kind == model.RegionSupport && lowerWick/rng > 0.5 {
		return 2, fmt.Sprintf("rejection at %s", nearest.Label)
	}
	if nearest.Kind == model.RegionResistance && upperWick/rng > 0.5 {
		return -2, fmt.Sprintf("rejection at %s", nearest.Label)
	}
	return 0, "no rejection pattern"
}

// scoreAggression: ±2 from volume-weighted candle body initiative.
func scoreAggression(in Inputs) (int, string) {
	r := in.Aggression
	comment := fmt.Sprintf("aggression=%.2f", r)
	switch {
	case r >= 0.5:
		return 2, comment
	case r >= 0.25:
		return 1, comment
	case r <= -0.5:
		return -2, comment
	case r <= -0.25:
		return -1, comment
	}
	return 0, comment
}
