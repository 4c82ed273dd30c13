package synth

import (
	"fmt"
	"math"

	"IndexPilot/internal/indicator"
	"IndexPilot/internal/model"
)

// Archetype risk parameters. Stop distances are ATR multiples; a
// directive stop override (in points) replaces them.
const (
	mrStopATR = 1.5
	tfStopATR = 1.2
	exStopATR = 1.0

	mrMinRR       = 1.5
	tfMinRR       = 1.2
	tfMinRRConfrm = 1.5
	exMinRR       = 2.0

	highConvictionConf = 85
	trapBlockDistPct   = 0.10
	trapPenaltyDistPct = 0.25
	strongBoostDistPct = 0.15
)

type archetype struct {
	name  string
	tag   model.OppTag
	build func(s *Synthesizer, ctx Context, buyTh, sellTh int, reduced bool) (*model.Opportunity, []string)
}

var archetypes = []archetype{
	{"mean-reversion-buy", model.TagMeanReversion, buildMeanReversionBuy},
	{"mean-reversion-sell", model.TagMeanReversion, buildMeanReversionSell},
	{"trend-follow-buy", model.TagTrendFollow, buildTrendFollowBuy},
	{"trend-follow-sell", model.TagTrendFollow, buildTrendFollowSell},
	{"exhaustion-buy", model.TagExhaustionReversal, buildExhaustionBuy},
	{"exhaustion-sell", model.TagExhaustionReversal, buildExhaustionSell},
}

// candidate carries an archetype's proposed trade through the common
// gate pipeline.
type candidate struct {
	name      string
	dir       model.Direction
	tag       model.OppTag
	stopATR   float64
	minRR     float64
	rationale string
}

func buildMeanReversionBuy(s *Synthesizer, ctx Context, buyTh, sellTh int, reduced bool) (*model.Opportunity, []string) {
	name := "mean-reversion-buy"
	if ctx.Signal.MacroSmoothed < float64(buyTh) {
		return nil, []string{fmt.Sprintf("%s: macro %.1f below threshold %d", name, ctx.Signal.MacroSmoothed, buyTh)}
	}
	stretched := ctx.VWAP.VWAP > 0 && ctx.Price <= ctx.VWAP.Lower1
	if !stretched {
		return nil, []string{fmt.Sprintf("%s: price not stretched below vwap band", name)}
	}
	return s.gate(ctx, candidate{
		name: name, dir: model.Buy, tag: model.TagMeanReversion,
		stopATR: mrStopATR, minRR: mrMinRR,
		rationale: "stretched below vwap band with bullish macro",
	}, reduced)
}

func buildMeanReversionSell(s *Synthesizer, ctx Context, buyTh, sellTh int, reduced bool) (*model.Opportunity, []string) {
	name := "mean-reversion-sell"
	if ctx.Signal.MacroSmoothed > float64(sellTh) {
		return nil, []string{fmt.Sprintf("%s: macro %.1f above threshold %d", name, ctx.Signal.MacroSmoothed, sellTh)}
	}
	stretched := ctx.VWAP.VWAP > 0 && ctx.Price >= ctx.VWAP.Upper1
	if !stretched {
		return nil, []string{fmt.Sprintf("%s: price not stretched above vwap band", name)}
	}
	return s.gate(ctx, candidate{
		name: name, dir: model.Sell, tag: model.TagMeanReversion,
		stopATR: mrStopATR, minRR: mrMinRR,
		rationale: "stretched above vwap band with bearish macro",
	}, reduced)
}

func buildTrendFollowBuy(s *Synthesizer, ctx Context, buyTh, sellTh int, reduced bool) (*model.Opportunity, []string) {
	name := "trend-follow-buy"
	if ctx.Signal.MacroSmoothed < float64(buyTh) {
		return nil, []string{fmt.Sprintf("%s: macro %.1f below threshold %d", name, ctx.Signal.MacroSmoothed, buyTh)}
	}
	if ctx.Signal.MicroScore < s.cfg.MicroBuy {
		return nil, []string{fmt.Sprintf("%s: micro %d below %d", name, ctx.Signal.MicroScore, s.cfg.MicroBuy)}
	}
	if !trendingDay(ctx) {
		if reason, ok := s.pullbackRegion(ctx, model.Buy); !ok {
			return nil, []string{fmt.Sprintf("%s: %s", name, reason)}
		}
	}
	minRR := tfMinRR
	if ctx.Signal.Trend == model.TrendContinuation {
		minRR = tfMinRRConfrm
	}
	return s.gate(ctx, candidate{
		name: name, dir: model.Buy, tag: model.TagTrendFollow,
		stopATR: tfStopATR, minRR: minRR,
		rationale: "pullback to support in bullish trend",
	}, reduced)
}

func buildTrendFollowSell(s *Synthesizer, ctx Context, buyTh, sellTh int, reduced bool) (*model.Opportunity, []string) {
	name := "trend-follow-sell"
	if ctx.Signal.MacroSmoothed > float64(sellTh) {
		return nil, []string{fmt.Sprintf("%s: macro %.1f above threshold %d", name, ctx.Signal.MacroSmoothed, sellTh)}
	}
	if ctx.Signal.MicroScore > s.cfg.MicroSell {
		return nil, []string{fmt.Sprintf("%s: micro %d above %d", name, ctx.Signal.MicroScore, s.cfg.MicroSell)}
	}
	if !trendingDay(ctx) {
		if reason, ok := s.pullbackRegion(ctx, model.Sell); !ok {
			return nil, []string{fmt.Sprintf("%s: %s", name, reason)}
		}
	}
	minRR := tfMinRR
	if ctx.Signal.Trend == model.TrendContinuation {
		minRR = tfMinRRConfrm
	}
	return s.gate(ctx, candidate{
		name: name, dir: model.Sell, tag: model.TagTrendFollow,
		stopATR: tfStopATR, minRR: minRR,
		rationale: "pullback to resistance in bearish trend",
	}, reduced)
}

func buildExhaustionBuy(s *Synthesizer, ctx Context, buyTh, sellTh int, reduced bool) (*model.Opportunity, []string) {
	name := "exhaustion-buy"
	if reason, ok := exhaustionArmed(ctx, model.Buy); !ok {
		return nil, []string{fmt.Sprintf("%s: %s", name, reason)}
	}
	return s.gate(ctx, candidate{
		name: name, dir: model.Buy, tag: model.TagExhaustionReversal,
		stopATR: exStopATR, minRR: exMinRR,
		rationale: "oversold extremes with neutral macro",
	}, reduced)
}

func buildExhaustionSell(s *Synthesizer, ctx Context, buyTh, sellTh int, reduced bool) (*model.Opportunity, []string) {
	name := "exhaustion-sell"
	if reason, ok := exhaustionArmed(ctx, model.Sell); !ok {
		return nil, []string{fmt.Sprintf("%s: %s", name, reason)}
	}
	return s.gate(ctx, candidate{
		name: name, dir: model.Sell, tag: model.TagExhaustionReversal,
		stopATR: exStopATR, minRR: exMinRR,
		rationale: "overbought extremes with neutral macro",
	}, reduced)
}

// trendingDay reports whether the diary feedback flags the session as
// trending. Trend-follow entries then skip the pullback-region
// requirement and exhaustion fades are disabled.
func trendingDay(ctx Context) bool {
	return ctx.Feedback != nil && ctx.Feedback.TrendFollowing
}

// exhaustionArmed requires a near-neutral macro plus band/oscillator
// extremes in the fade direction.
func exhaustionArmed(ctx Context, dir model.Direction) (string, bool) {
	if trendingDay(ctx) {
		return "diary flags a trending session, fades disabled", false
	}
	if math.Abs(ctx.Signal.MacroSmoothed) > 5 {
		return fmt.Sprintf("macro %.1f not near neutral", ctx.Signal.MacroSmoothed), false
	}
	if dir == model.Buy {
		if ctx.RSI > 30 {
			return fmt.Sprintf("RSI %.0f not oversold", ctx.RSI), false
		}
		if ctx.VWAP.VWAP == 0 || ctx.Price > ctx.VWAP.Lower2 {
			return "price not at lower band extreme", false
		}
	} else {
		if ctx.RSI < 70 {
			return fmt.Sprintf("RSI %.0f not overbought", ctx.RSI), false
		}
		if ctx.VWAP.VWAP == 0 || ctx.Price < ctx.VWAP.Upper2 {
			return "price not at upper band extreme", false
		}
	}
	return "", true
}

// pullbackRegion requires a region of sufficient confluence on the
// entry side within the configured distance band.
func (s *Synthesizer) pullbackRegion(ctx Context, dir model.Direction) (string, bool) {
	for _, r := range ctx.Regions {
		if math.Abs(r.DistancePct) > s.cfg.MaxRegionDist {
			break // sorted by distance; nothing closer remains
		}
		if r.Confluence < s.cfg.MinConfluence {
			continue
		}
		if dir == model.Buy && r.Price <= ctx.Price {
			return "", true
		}
		if dir == model.Sell && r.Price >= ctx.Price {
			return "", true
		}
	}
	return fmt.Sprintf("no region with confluence >= %d within %.2f%%", s.cfg.MinConfluence, s.cfg.MaxRegionDist), false
}

// gate runs the common checks for a candidate and produces the final
// opportunity or the rejection reasons.
func (s *Synthesizer) gate(ctx Context, c candidate, reduced bool) (*model.Opportunity, []string) {
	var rejections []string

	if s.directiveVetoed(ctx, c.dir) {
		return nil, []string{fmt.Sprintf("%s: directive direction veto (%s)", c.name, ctx.Directive.Bias)}
	}

	entry := indicator.SnapToTick(ctx.Price, s.cfg.TickSize)
	if reason, blocked := s.directiveFilters(ctx, c.dir, entry); blocked {
		return nil, []string{fmt.Sprintf("%s: %s", c.name, reason)}
	}

	if reason, ok := s.structureAligned(ctx, c.dir); !ok {
		return nil, []string{fmt.Sprintf("%s: %s", c.name, reason)}
	}

	if ctx.ATR <= 0 {
		return nil, []string{fmt.Sprintf("%s: ATR unavailable", c.name)}
	}

	stopDist := ctx.ATR * c.stopATR
	if d := ctx.Directive; d != nil && d.ActiveOn(ctx.Now) && d.StopOverride > 0 {
		stopDist = d.StopOverride
	}
	var stop float64
	if c.dir == model.Buy {
		stop = indicator.SnapToTick(entry-stopDist, s.cfg.TickSize)
	} else {
		stop = indicator.SnapToTick(entry+stopDist, s.cfg.TickSize)
	}

	target := indicator.SnapToTick(s.nextTarget(ctx, c.dir, entry, stopDist*0.5), s.cfg.TickSize)
	rr := riskReward(c.dir, entry, stop, target)
	if rr < c.minRR {
		return nil, []string{fmt.Sprintf("%s: risk:reward %.2f below minimum %.2f", c.name, rr, c.minRR)}
	}

	opp := &model.Opportunity{
		Direction:  c.dir,
		Entry:      entry,
		Stop:       stop,
		Target:     target,
		RiskReward: rr,
		Tags:       c.tag,
		Rationale:  c.rationale,
	}
	if reduced {
		opp.Tags |= model.TagReducedExposure
	}
	if ctx.Feedback != nil && ctx.Feedback.SMCBypass {
		opp.Tags |= model.TagSMCBypass
	}
	if len(ctx.Regions) > 0 {
		opp.Region = ctx.Regions[0].Label
	}

	if reason, blocked := s.confidence(ctx, opp); blocked {
		rejections = append(rejections, fmt.Sprintf("%s: %s", c.name, reason))
		return nil, rejections
	}
	return opp, rejections
}

// structureAligned requires structural agreement (bias or discount
// positioning) unless conviction is high enough to bypass or the diary
// feedback disabled the structure gate.
func (s *Synthesizer) structureAligned(ctx Context, dir model.Direction) (string, bool) {
	if ctx.Feedback != nil && ctx.Feedback.SMCBypass {
		return "", true
	}
	if ctx.Signal.MacroConf >= highConvictionConf {
		return "", true
	}
	if dir == model.Buy {
		if ctx.Structure.Bias == model.Buy || ctx.Structure.Discount {
			return "", true
		}
		return "structure not aligned for buy (premium, bearish bias)", false
	}
	if ctx.Structure.Bias == model.Sell || !ctx.Structure.Discount {
		return "", true
	}
	return "structure not aligned for sell (discount, bullish bias)", false
}

// confidence builds the 0-100 confidence score: macro confidence plus
// micro magnitude, floored by the directive, boosted for ideal-zone
// hits and flagged strong regions, penalized near trap regions and by
// the guardian's numeric penalty. Returns blocked=true when a trap
// region forbids the trade outright.
func (s *Synthesizer) confidence(ctx Context, opp *model.Opportunity) (string, bool) {
	conf := ctx.Signal.MacroConf
	microBoost := ctx.Signal.MicroScore
	if microBoost < 0 {
		microBoost = -microBoost
	}
	microBoost *= 2
	if microBoost > 20 {
		microBoost = 20
	}
	conf += microBoost

	d := ctx.Directive
	if d != nil && d.ActiveOn(ctx.Now) {
		if conf < d.ConfidenceFloor {
			conf = d.ConfidenceFloor
		}
		if (d.Bias == opp.Direction) && d.Bias != model.Neutral {
			opp.Tags |= model.TagDirectiveAligned
		}
		if d.IdealZoneLow > 0 && d.IdealZoneHigh > d.IdealZoneLow &&
			opp.Entry >= d.IdealZoneLow && opp.Entry <= d.IdealZoneHigh {
			conf += 10
			opp.Tags |= model.TagIdealZone
		}
	}

	if fb := ctx.Feedback; fb != nil {
		if nearLevel(opp.Entry, fb.TrapRegions, trapBlockDistPct) {
			if conf < highConvictionConf {
				return fmt.Sprintf("entry %.0f at flagged trap region", opp.Entry), true
			}
			conf -= 15
			opp.Tags |= model.TagTrapRegionNear
		} else if nearLevel(opp.Entry, fb.TrapRegions, trapPenaltyDistPct) {
			conf -= 10
			opp.Tags |= model.TagTrapRegionNear
		}
		if nearLevel(opp.Entry, fb.StrongRegions, strongBoostDistPct) {
			conf += 8
			opp.Tags |= model.TagStrongRegion
		}
	}

	conf -= ctx.Guardian.ConfidencePenalty

	if conf > 100 {
		conf = 100
	}
	if conf < 0 {
		conf = 0
	}
	if conf >= highConvictionConf {
		opp.Tags |= model.TagHighConviction
	}
	opp.Confidence = conf
	return "", false
}
