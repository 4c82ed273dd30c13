package synth

import (
	"fmt"
	"math"
	"time"

	"IndexPilot/internal/indicator"
	"IndexPilot/internal/model"
	"IndexPilot/internal/signal"

	"github.com/rs/zerolog"
)

// Config holds the synthesizer tuning knobs.
type Config struct {
	BuyThreshold    int     // base macro threshold for buy-side arming
	SellThreshold   int     // base macro threshold for sell-side arming (negative)
	MicroBuy        int     // micro confirmation threshold
	MicroSell       int     // negative
	TickSize        float64
	MinConfluence   int     // trend-follow entries need a region this strong
	MaxRegionDist   float64 // ... within this % band of price
	DivergenceGap   int     // directive-vs-macro margin before a divergence counts
	DivergenceAfter int     // consecutive divergent cycles before auto-suspend
	EventAvoidMin   int     // minutes before a directive event to stand down
	StrongMacro     int     // |macro| past this is "strongly directional"
}

// Context is everything one synthesis pass reads. The synthesizer is
// stateless across cycles except for the divergence streak counter.
type Context struct {
	Now       time.Time
	Price     float64
	ATR       float64
	RSI       float64
	Signal    signal.Result
	Regions   []model.Region
	Structure indicator.StructureSnapshot // primary timeframe
	HigherTF  indicator.StructureSnapshot // confirmation timeframe
	VWAP      indicator.VWAPResult
	Directive *model.Directive
	Feedback  *model.Feedback
	Guardian  model.GuardianAdvice
}

// Output is the synthesis result. NeutralOverride is set on the cycle
// the divergence auto-suspend fires; the engine persists it into the
// feedback store (the core's only advisory write path).
type Output struct {
	Opportunities   []model.Opportunity
	Rejections      []string
	NeutralOverride bool
}

// Synthesizer turns aggregated signals plus advisory overlays into
// candidate trades.
type Synthesizer struct {
	cfg Config
	log zerolog.Logger

	divergenceStreak int
}

// NewSynthesizer creates a Synthesizer.
func NewSynthesizer(cfg Config, logger zerolog.Logger) *Synthesizer {
	return &Synthesizer{cfg: cfg, log: logger.With().Str("component", "synth").Logger()}
}

// Synthesize runs the per-cycle decision flow. Every rejected path
// appends a human-readable reason; absence of opportunities is always
// explainable.
func (s *Synthesizer) Synthesize(ctx Context) Output {
	out := Output{}

	// Kill-switch check runs before anything else.
	if ctx.Guardian.KillSwitch {
		out.Rejections = append(out.Rejections,
			fmt.Sprintf("guardian kill-switch active: %v", ctx.Guardian.Reasons))
		s.log.Warn().Msg("synthesis vetoed by guardian kill-switch")
		return out
	}

	if reason, blocked := s.eventGuard(ctx); blocked {
		out.Rejections = append(out.Rejections, reason)
		return out
	}

	reduced := s.reducedExposure(ctx)
	buyTh, sellTh := s.thresholds(ctx, reduced)

	if s.checkDivergence(ctx) {
		out.NeutralOverride = true
		out.Rejections = append(out.Rejections,
			"directive divergence auto-suspend: neutral override issued")
	}

	for _, arch := range archetypes {
		opp, rejections := arch.build(s, ctx, buyTh, sellTh, reduced)
		out.Rejections = append(out.Rejections, rejections...)
		if opp != nil {
			out.Opportunities = append(out.Opportunities, *opp)
		}
	}

	s.log.Info().
		Int("opportunities", len(out.Opportunities)).
		Int("rejections", len(out.Rejections)).
		Int("buy_threshold", buyTh).
		Int("sell_threshold", sellTh).
		Msg("synthesis complete")
	return out
}

// eventGuard stands down within EventAvoidMin minutes before a
// directive-stated economic event.
func (s *Synthesizer) eventGuard(ctx Context) (string, bool) {
	d := ctx.Directive
	if d == nil || !d.ActiveOn(ctx.Now) || d.EventTime == "" {
		return "", false
	}
	evt, err := time.ParseInLocation("15:04", d.EventTime, ctx.Now.Location())
	if err != nil {
		return "", false
	}
	evt = time.Date(ctx.Now.Year(), ctx.Now.Month(), ctx.Now.Day(),
		evt.Hour(), evt.Minute(), 0, 0, ctx.Now.Location())
	until := evt.Sub(ctx.Now)
	if until > 0 && until <= time.Duration(s.cfg.EventAvoidMin)*time.Minute {
		return fmt.Sprintf("directive event window: %s in %s", d.EventTime, until.Round(time.Minute)), true
	}
	return "", false
}

// reducedExposure holds when the macro is strongly directional but the
// higher-timeframe structure does not confirm, or when the guardian
// says so.
func (s *Synthesizer) reducedExposure(ctx Context) bool {
	if ctx.Guardian.ReducedExposure {
		return true
	}
	macro := ctx.Signal.MacroSmoothed
	if macro >= float64(s.cfg.StrongMacro) && ctx.HigherTF.Bias != model.Buy {
		return true
	}
	if macro <= -float64(s.cfg.StrongMacro) && ctx.HigherTF.Bias != model.Sell {
		return true
	}
	return false
}

// thresholds computes the effective macro arming thresholds for this
// cycle: config base, tightened under reduced exposure, overridden by
// non-default feedback suggestions, widened further by guardian flags.
func (s *Synthesizer) thresholds(ctx Context, reduced bool) (buyTh, sellTh int) {
	buyTh, sellTh = s.cfg.BuyThreshold, s.cfg.SellThreshold

	if fb := ctx.Feedback; fb != nil {
		if fb.BuyThreshold != 0 && fb.BuyThreshold != s.cfg.BuyThreshold {
			buyTh = fb.BuyThreshold
		}
		if fb.SellThreshold != 0 && fb.SellThreshold != s.cfg.SellThreshold {
			sellTh = fb.SellThreshold
		}
	}

	if reduced {
		buyTh++
		sellTh--
	}
	if ctx.Guardian.ReducedExposure {
		buyTh += 2
		sellTh -= 2
	}

	switch ctx.Guardian.BiasOverride {
	case model.Neutral:
		// Effectively unreachable on both sides.
		buyTh, sellTh = 1000, -1000
	case model.Buy:
		sellTh = -1000
	case model.Sell:
		buyTh = 1000
	}
	return buyTh, sellTh
}

// checkDivergence tracks how long the directive's stated bias has
// contradicted the live macro score. After DivergenceAfter consecutive
// divergent cycles it requests a neutral override so directional
// directive filters stop vetoing trades that agree with live data.
func (s *Synthesizer) checkDivergence(ctx Context) bool {
	d := ctx.Directive
	if d == nil || !d.ActiveOn(ctx.Now) || (d.Bias != model.Buy && d.Bias != model.Sell) {
		s.divergenceStreak = 0
		return false
	}
	if ctx.Feedback != nil && ctx.Feedback.NeutralOverride {
		return false // already suspended
	}

	macro := ctx.Signal.MacroSmoothed
	gap := float64(s.cfg.DivergenceGap)
	divergent := (d.Bias == model.Sell && macro >= gap) ||
		(d.Bias == model.Buy && macro <= -gap)

	if !divergent {
		s.divergenceStreak = 0
		return false
	}
	s.divergenceStreak++
	s.log.Warn().
		Int("streak", s.divergenceStreak).
		Str("directive_bias", string(d.Bias)).
		Float64("macro", macro).
		Msg("directive diverges from live macro")

	if s.divergenceStreak >= s.cfg.DivergenceAfter {
		s.divergenceStreak = 0
		return true
	}
	return false
}

// directiveVetoed reports whether the directive blocks this direction
// outright (and the override has not fired).
func (s *Synthesizer) directiveVetoed(ctx Context, dir model.Direction) bool {
	d := ctx.Directive
	if d == nil || !d.ActiveOn(ctx.Now) {
		return false
	}
	if ctx.Feedback != nil && ctx.Feedback.NeutralOverride {
		return false
	}
	return (d.Bias == model.Buy && dir == model.Sell) ||
		(d.Bias == model.Sell && dir == model.Buy)
}

// directiveFilters applies RSI and forbidden-zone filters. Returns a
// reason when blocked.
func (s *Synthesizer) directiveFilters(ctx Context, dir model.Direction, entry float64) (string, bool) {
	d := ctx.Directive
	if d == nil || !d.ActiveOn(ctx.Now) {
		return "", false
	}
	if dir == model.Buy && d.RSICeiling > 0 && ctx.RSI > d.RSICeiling {
		return fmt.Sprintf("directive RSI ceiling: %.0f > %.0f", ctx.RSI, d.RSICeiling), true
	}
	if dir == model.Sell && d.RSIFloor > 0 && ctx.RSI < d.RSIFloor {
		return fmt.Sprintf("directive RSI floor: %.0f < %.0f", ctx.RSI, d.RSIFloor), true
	}
	if d.AvoidZoneLow > 0 && d.AvoidZoneHigh > d.AvoidZoneLow &&
		entry >= d.AvoidZoneLow && entry <= d.AvoidZoneHigh {
		return fmt.Sprintf("entry %.0f inside directive avoid zone %.0f-%.0f",
			entry, d.AvoidZoneLow, d.AvoidZoneHigh), true
	}
	return "", false
}

// nextTarget finds the next valid region in the trade's favor, falling
// back to VWAP and finally an ATR projection.
func (s *Synthesizer) nextTarget(ctx Context, dir model.Direction, entry, minDist float64) float64 {
	for _, r := range ctx.Regions {
		if dir == model.Buy && r.Price >= entry+minDist {
			return r.Price
		}
		if dir == model.Sell && r.Price <= entry-minDist {
			return r.Price
		}
	}
	if v := ctx.VWAP.VWAP; v > 0 {
		if dir == model.Buy && v >= entry+minDist {
			return v
		}
		if dir == model.Sell && v <= entry-minDist {
			return v
		}
	}
	if dir == model.Buy {
		return entry + 2*ctx.ATR
	}
	return entry - 2*ctx.ATR
}

// riskReward computes reward/risk for the proposed levels; 0 when the
// geometry is invalid.
func riskReward(dir model.Direction, entry, stop, target float64) float64 {
	risk := entry - stop
	reward := target - entry
	if dir == model.Sell {
		risk = stop - entry
		reward = entry - target
	}
	if risk <= 0 || reward <= 0 {
		return 0
	}
	return reward / risk
}

// nearLevel reports whether price is within tolPct percent of any of
// the given levels.
func nearLevel(price float64, levels []float64, tolPct float64) bool {
	for _, l := range levels {
		if l > 0 && math.Abs(price-l)/l*100 <= tolPct {
			return true
		}
	}
	return false
}
