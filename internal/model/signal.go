package model

import "time"

// Direction is a trade or bias direction.
type Direction string

const (
	Buy     Direction = "BUY"
	Sell    Direction = "SELL"
	Neutral Direction = "NEUTRAL"
)

// Opposite returns the opposing direction; NEUTRAL maps to itself.
func (d Direction) Opposite() Direction {
	switch d {
	case Buy:
		return Sell
	case Sell:
		return Buy
	}
	return Neutral
}

// TrendClass is the micro-trend classification for one cycle.
type TrendClass string

const (
	TrendContinuation  TrendClass = "continuation"
	TrendReversal      TrendClass = "reversal"
	TrendConsolidation TrendClass = "consolidation"
)

// ScoreContribution is one named sub-score in the micro aggregate.
// Each contributor is bounded independently; the micro score is their
// plain sum.
type ScoreContribution struct {
	Name       string
	Score      int
	Commentary string
}

// MacroReading is the output of the external macro score engine.
type MacroReading struct {
	Score      int
	Signal     Direction
	Confidence int // 0..100
}

// CycleResult is the record of one analysis cycle. After synthesis the
// engine only appends entry rejections; the recorder assigns ID.
type CycleResult struct {
	ID            int64
	Time          time.Time
	Price         float64
	MacroRaw      int
	MacroSmoothed float64
	MacroSignal   Direction
	MacroConf     int
	MicroScore    int
	Contributions []ScoreContribution
	Trend         TrendClass
	VWAP          float64
	ATR           float64
	Regions       []Region
	Opportunities []Opportunity
	Rejections    []string
}
