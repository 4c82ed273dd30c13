package model

import "time"

// ExitReason explains why a position was closed.
type ExitReason string

const (
	ExitStopLoss   ExitReason = "STOP_LOSS"
	ExitTakeProfit ExitReason = "TAKE_PROFIT"
	ExitManual     ExitReason = "MANUAL"
	ExitSessionEnd ExitReason = "SESSION_END"
	ExitOrphan     ExitReason = "ORPHAN_FORCE_CLOSE"
)

// OpenTrade is a live position tracked by the trading manager.
type OpenTrade struct {
	Ticket        string
	BrokerID      string
	Direction     Direction
	Entry         float64
	Stop          float64
	Target        float64
	Quantity      float64
	OpenedAt      time.Time
	TrailingStop  float64
	HighWater     float64
	LowWater      float64
	TrailingLive  bool
	UnrealizedPnL float64
	Rationale     string
	Tags          OppTag
}

// ClosedTrade is the ledger entry for a finished position.
type ClosedTrade struct {
	Ticket      string
	Direction   Direction
	Entry       float64
	Exit        float64
	Quantity    float64
	RealizedPnL float64
	OpenedAt    time.Time
	ClosedAt    time.Time
	Reason      ExitReason
	Rationale   string
}

// Duration returns how long the trade was held.
func (c ClosedTrade) Duration() time.Duration { return c.ClosedAt.Sub(c.OpenedAt) }
