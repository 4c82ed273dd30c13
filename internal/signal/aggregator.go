package signal

import (
	"time"

	"IndexPilot/internal/indicator"
	"IndexPilot/internal/model"

	"github.com/rs/zerolog"
)

const (
	macroSmoothingAlpha = 0.3
	adxConsolidation    = 15.0
)

// Thresholds are the score levels past which a side is considered
// armed, used for trend classification.
type Thresholds struct {
	MacroBuy  int
	MacroSell int // negative
	MicroBuy  int
	MicroSell int // negative
}

// Inputs carries the pre-computed indicator state one aggregation
// pass reads. Candles are the primary (decision) timeframe.
type Inputs struct {
	Price      float64
	Candles    []model.Candle
	Structure  indicator.StructureSnapshot
	FVGs       []indicator.FairValueGap
	VWAP       indicator.VWAPResult
	RSI        float64
	StochK     float64
	StochD     float64
	MACD       indicator.MACDResult
	Bollinger  indicator.BollingerResult
	ADX        indicator.ADXResult
	EMA21      float64
	AvgVolume  float64
	OBVDiv     int
	Aggression float64
	Regions    []model.Region
}

// Result is the combined macro/micro signal for one cycle.
type Result struct {
	MacroRaw      int
	MacroSmoothed float64
	MacroSignal   model.Direction
	MacroConf     int
	MicroScore    int
	Contributions []model.ScoreContribution
	Trend         model.TrendClass
}

// Aggregator combines the external macro reading with the locally
// computed micro score. It owns the cross-cycle macro EMA, which
// resets whenever the calendar day changes.
type Aggregator struct {
	thresholds Thresholds
	log        zerolog.Logger

	smoothed  float64
	havePrior bool
	lastDay   string
}

// NewAggregator creates an Aggregator with the given trend thresholds.
func NewAggregator(th Thresholds, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		thresholds: th,
		log:        logger.With().Str("component", "signal").Logger(),
	}
}

// Aggregate computes the cycle signal. The macro score is smoothed
// with an EMA (alpha 0.3) on the raw value; the first observation of a
// new calendar day discards the prior smoothed value entirely.
func (a *Aggregator) Aggregate(macro model.MacroReading, now time.Time, in Inputs) Result {
	day := now.Format("2006-01-02")
	if day != a.lastDay {
		a.havePrior = false
		a.lastDay = day
	}

	raw := float64(macro.Score)
	if a.havePrior {
		a.smoothed = macroSmoothingAlpha*raw + (1-macroSmoothingAlpha)*a.smoothed
	} else {
		a.smoothed = raw
		a.havePrior = true
	}

	micro := 0
	contributions := make([]model.ScoreContribution, 0, len(contributors))
	for _, c := range contributors {
		score, comment := c.eval(in)
		micro += score
		contributions = append(contributions, model.ScoreContribution{
			Name: c.name, Score: score, Commentary: comment,
		})
		if score != 0 {
			a.log.Debug().Str("contributor", c.name).Int("score", score).Str("detail", comment).Msg("micro sub-score")
		}
	}

	res := Result{
		MacroRaw:      macro.Score,
		MacroSmoothed: a.smoothed,
		MacroSignal:   macro.Signal,
		MacroConf:     macro.Confidence,
		MicroScore:    micro,
		Contributions: contributions,
		Trend:         a.classify(a.smoothed, micro, in.ADX.ADX),
	}
	a.log.Info().
		Int("macro_raw", res.MacroRaw).
		Float64("macro_smoothed", res.MacroSmoothed).
		Int("micro", res.MicroScore).
		Str("trend", string(res.Trend)).
		Msg("signals aggregated")
	return res
}

// classify maps macro/micro score alignment into the micro-trend
// classification.
func (a *Aggregator) classify(macro float64, micro int, adx float64) model.TrendClass {
	if adx < adxConsolidation {
		return model.TrendConsolidation
	}
	macroBuy := macro >= float64(a.thresholds.MacroBuy)
	macroSell := macro <= float64(a.thresholds.MacroSell)
	microBuy := micro >= a.thresholds.MicroBuy
	microSell := micro <= a.thresholds.MicroSell

	switch {
	case macroBuy && microBuy, macroSell && microSell:
		return model.TrendContinuation
	case macroBuy && microSell, macroSell && microBuy:
		return model.TrendReversal
	}
	return model.TrendConsolidation
}

// Smoothed exposes the current smoothed macro value (for the guardian
// shift comparison and reporting).
func (a *Aggregator) Smoothed() float64 { return a.smoothed }
