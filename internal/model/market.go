package model

import "time"

// Timeframe identifies a candle aggregation interval.
type Timeframe string

const (
	TF1m  Timeframe = "M1"
	TF5m  Timeframe = "M5"
	TF15m Timeframe = "M15"
	TF1h  Timeframe = "H1"
)

// Candle represents a single candlestick bar.
type Candle struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Body returns the absolute size of the candle body.
func (c Candle) Body() float64 {
	if c.Close >= c.Open {
		return c.Close - c.Open
	}
	return c.Open - c.Close
}

// Bullish reports whether the candle closed above its open.
func (c Candle) Bullish() bool { return c.Close > c.Open }

// Tick is the latest quote for the instrument.
type Tick struct {
	Bid  float64
	Ask  float64
	Last float64
	Time time.Time
}

// DayReferences holds prior/current session reference prices used as
// fixed regions.
type DayReferences struct {
	PrevHigh  float64
	PrevLow   float64
	PrevClose float64
	DayOpen   float64
	DayHigh   float64
	DayLow    float64
}

// MarketData bundles everything one analysis cycle reads from the
// adapter: the latest tick and ascending candle series per timeframe.
// Series may be short or missing when history is unavailable.
type MarketData struct {
	Symbol    string
	Tick      Tick
	Candles   map[Timeframe][]Candle
	DayRefs   DayReferences
	FetchedAt time.Time
}
