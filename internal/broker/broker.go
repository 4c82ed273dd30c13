package broker

import "IndexPilot/internal/model"

// Order is an entry request sent to the execution venue.
type Order struct {
	Symbol    string
	Direction model.Direction
	Quantity  float64
	Price     float64
	Stop      float64
	Target    float64
	Comment   string
}

// Position is a broker-side open position as the venue reports it.
type Position struct {
	BrokerID  string
	Symbol    string
	Direction model.Direction
	Quantity  float64
	Entry     float64
	Stop      float64
	Target    float64
}

// MarketData fetches quotes and candles. All calls may fail; the core
// treats failure as "no data this cycle", never as fatal. Candle
// series are ascending and may be short when history is unavailable.
type MarketData interface {
	GetTick(symbol string) (model.Tick, error)
	GetCandles(symbol string, tf model.Timeframe, count int) ([]model.Candle, error)
	GetDayReferences(symbol string) (model.DayReferences, error)
	// GetReferencePrice serves the guardian's cross-asset watches
	// (currency pair, foreign index proxy).
	GetReferencePrice(symbol string) (float64, error)
}

// Execution submits and manages orders. SendOrder returns an empty id
// when the venue does not acknowledge; the caller must not record a
// position in that case.
type Execution interface {
	SendOrder(o Order) (string, error)
	ClosePositionByTicket(brokerID string) error
	GetPositions(symbol string) ([]Position, error)
	ResolveOpenPositionTicket(symbol string) (string, error)
}

// Adapter is the full market-data plus execution surface.
type Adapter interface {
	MarketData
	Execution
	Name() string
}
