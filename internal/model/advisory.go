package model

import "time"

// Aggressiveness tiers for the head directive.
const (
	AggrLow    = "low"
	AggrNormal = "normal"
	AggrHigh   = "high"
)

// Directive is the externally supplied daily advisory. At most one is
// active per calendar day; absence is valid.
type Directive struct {
	Date            string    `json:"date"` // YYYY-MM-DD
	Bias            Direction `json:"bias"`
	ConfidenceFloor int       `json:"confidence_floor"`
	Aggressiveness  string    `json:"aggressiveness"`
	PositionSizePct float64   `json:"position_size_pct"`
	StopOverride    float64   `json:"stop_override"` // points; 0 means none
	RSICeiling      float64   `json:"rsi_ceiling"`   // no buys above; 0 means unset
	RSIFloor        float64   `json:"rsi_floor"`     // no sells below; 0 means unset
	AvoidZoneLow    float64   `json:"avoid_zone_low"`
	AvoidZoneHigh   float64   `json:"avoid_zone_high"`
	IdealZoneLow    float64   `json:"ideal_zone_low"`
	IdealZoneHigh   float64   `json:"ideal_zone_high"`
	EventTime       string    `json:"event_time"` // HH:MM local; "" means none
	MaxTrades       int       `json:"max_trades"`
}

// ActiveOn reports whether the directive applies to the given day.
func (d *Directive) ActiveOn(t time.Time) bool {
	return d != nil && d.Date == t.Format("2006-01-02")
}

// Feedback is the periodically recomputed diary advisory. Latest wins;
// the core only ever writes the NeutralOverride flag (directive
// divergence auto-suspend).
type Feedback struct {
	BuyThreshold    int            `json:"buy_threshold"`
	SellThreshold   int            `json:"sell_threshold"` // negative
	SMCBypass       bool           `json:"smc_bypass"`
	TrendFollowing  bool           `json:"trend_following"`
	StrongRegions   []float64      `json:"strong_regions"`
	TrapRegions     []float64      `json:"trap_regions"`
	NeutralOverride bool           `json:"neutral_override"`
	Guardian        GuardianAdvice `json:"guardian"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// GuardianAdvice is the consolidated advisory the scenario guardian
// publishes for the synthesizer and the trading manager. Published as
// an immutable snapshot, replaced wholesale each guardian cycle.
type GuardianAdvice struct {
	KillSwitch        bool      `json:"kill_switch"`
	ReducedExposure   bool      `json:"reduced_exposure"`
	ConfidencePenalty int       `json:"confidence_penalty"` // 0..30
	BiasOverride      Direction `json:"bias_override"`      // "" means none
	Reasons           []string  `json:"reasons"`
	GeneratedAt       time.Time `json:"generated_at"`
}
