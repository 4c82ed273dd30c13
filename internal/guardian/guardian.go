package guardian

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"IndexPilot/internal/broker"
	"IndexPilot/internal/model"

	"github.com/rs/zerolog"
)

// Severity grades a guardian alert.
type Severity string

const (
	SevInfo     Severity = "INFO"
	SevWarning  Severity = "WARNING"
	SevCritical Severity = "CRITICAL"
)

// Alert is one observation raised by a guardian cycle.
type Alert struct {
	Time     time.Time
	Severity Severity
	Kind     string
	Message  string
	Pause    bool // pause-worthy on its own when sustained
}

// Config holds the guardian thresholds and cadences.
type Config struct {
	CurrencySymbol   string
	IndexSymbol      string
	InstrumentSymbol string

	CurrencyDeltaPct   float64 // CRITICAL past this 10-min move
	IndexDeltaPct      float64
	InstrumentDeltaPts float64 // points, 10-min move or drawdown from session high

	ShortWindow     time.Duration // delta lookback
	HistoryLen      int           // rolling samples kept per symbol
	AlertRetention  time.Duration // alert log window
	ConsolidateOver time.Duration // window consolidated into advice

	MacroShiftPts    int // alert when macro moves this much between cycles
	CalendarEvery    int // poll calendar every Nth cycle
	SentimentEvery   int // poll sentiment every Nth cycle
	CriticalsForKill int
}

// DefaultConfig returns the reference thresholds.
func DefaultConfig(currency, index, instrument string) Config {
	return Config{
		CurrencySymbol:     currency,
		IndexSymbol:        index,
		InstrumentSymbol:   instrument,
		CurrencyDeltaPct:   0.5,
		IndexDeltaPct:      0.8,
		InstrumentDeltaPts: 500,
		ShortWindow:        10 * time.Minute,
		HistoryLen:         30,
		AlertRetention:     2 * time.Hour,
		ConsolidateOver:    15 * time.Minute,
		MacroShiftPts:      15,
		CalendarEvery:      10,
		SentimentEvery:     15,
		CriticalsForKill:   3,
	}
}

type sample struct {
	t     time.Time
	price float64
}

// history is a bounded rolling price buffer. Session-open deltas are
// computed against the first sample still in the buffer; buffers are
// deliberately NOT reset at calendar-day boundaries (see DESIGN.md,
// cross-midnight monitoring quirk carried from the reference
// behavior).
type history struct {
	samples []sample
}

func (h *history) push(s sample, max int) {
	h.samples = append(h.samples, s)
	if len(h.samples) > max {
		h.samples = h.samples[len(h.samples)-max:]
	}
}

// at returns the sample closest to (but not after) the cutoff, falling
// back to the oldest sample.
func (h *history) at(cutoff time.Time) (sample, bool) {
	if len(h.samples) == 0 {
		return sample{}, false
	}
	best := h.samples[0]
	for _, s := range h.samples {
		if s.t.After(cutoff) {
			break
		}
		best = s
	}
	return best, true
}

func (h *history) latest() (sample, bool) {
	if len(h.samples) == 0 {
		return sample{}, false
	}
	return h.samples[len(h.samples)-1], true
}

func (h *history) high() float64 {
	hi := 0.0
	for _, s := range h.samples {
		if s.price > hi {
			hi = s.price
		}
	}
	return hi
}

// Guardian is the independently scheduled scenario monitor. It is the
// sole writer of the published advice; readers get immutable snapshots
// via an atomic pointer swap.
type Guardian struct {
	cfg       Config
	md        broker.MarketData
	calendar  Calendar  // may be nil
	sentiment Sentiment // may be nil
	lastMacro func() (model.MacroReading, bool)
	log       zerolog.Logger

	advice atomic.Pointer[model.GuardianAdvice]

	mu              sync.Mutex
	histories       map[string]*history
	alerts          []Alert
	prevMacro       int
	prevSignal      model.Direction
	havePrev        bool
	scenarioChanges int
	cycle           int
}

// New creates a Guardian. lastMacro exposes the engine's most recent
// macro reading; calendar and sentiment may be nil, which skips those
// checks.
func New(cfg Config, md broker.MarketData, calendar Calendar, sentiment Sentiment,
	lastMacro func() (model.MacroReading, bool), logger zerolog.Logger) *Guardian {
	g := &Guardian{
		cfg:       cfg,
		md:        md,
		calendar:  calendar,
		sentiment: sentiment,
		lastMacro: lastMacro,
		log:       logger.With().Str("component", "guardian").Logger(),
		histories: map[string]*history{
			cfg.CurrencySymbol:   {},
			cfg.IndexSymbol:      {},
			cfg.InstrumentSymbol: {},
		},
	}
	g.advice.Store(&model.GuardianAdvice{BiasOverride: "", GeneratedAt: time.Now()})
	return g
}

// Advice returns the latest published advisory snapshot.
func (g *Guardian) Advice() model.GuardianAdvice {
	return *g.advice.Load()
}

// AlertsSince returns alerts raised strictly after the given time, for
// persistence and reporting.
func (g *Guardian) AlertsSince(t time.Time) []Alert {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []Alert
	for _, a := range g.alerts {
		if a.Time.After(t) {
			out = append(out, a)
		}
	}
	return out
}

// RunCycle executes one guardian pass. Any individual data source
// failing is swallowed and only skips that check; the guardian never
// stops running due to a single source outage.
func (g *Guardian) RunCycle(now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cycle++

	g.collectPrices(now)
	g.checkDeltas(now)
	g.checkMacroShift(now)
	g.checkDivergences(now)
	if g.calendar != nil && g.cycle%g.cfg.CalendarEvery == 0 {
		g.checkCalendar(now)
	}
	if g.sentiment != nil && g.cycle%g.cfg.SentimentEvery == 0 {
		g.checkSentiment(now)
	}

	g.pruneAlerts(now)
	g.publish(now)
}

func (g *Guardian) collectPrices(now time.Time) {
	for symbol, h := range g.histories {
		price, err := g.md.GetReferencePrice(symbol)
		if err != nil {
			g.log.Debug().Err(err).Str("symbol", symbol).Msg("reference price unavailable, skipping")
			continue
		}
		h.push(sample{t: now, price: price}, g.cfg.HistoryLen)
	}
}

// checkDeltas raises alerts when short-window or session-open moves
// exceed the configured thresholds.
func (g *Guardian) checkDeltas(now time.Time) {
	cutoff := now.Add(-g.cfg.ShortWindow)

	g.pctDelta(now, cutoff, g.cfg.CurrencySymbol, g.cfg.CurrencyDeltaPct, "currency aggression")
	g.pctDelta(now, cutoff, g.cfg.IndexSymbol, g.cfg.IndexDeltaPct, "index shock")

	h := g.histories[g.cfg.InstrumentSymbol]
	latest, ok := h.latest()
	if !ok {
		return
	}
	if ref, ok := h.at(cutoff); ok {
		delta := latest.price - ref.price
		if math.Abs(delta) >= g.cfg.InstrumentDeltaPts {
			g.raise(now, SevCritical, "instrument shock",
				fmt.Sprintf("%s moved %+.0f points in %s", g.cfg.InstrumentSymbol, delta, g.cfg.ShortWindow), true)
		}
	}
	if hi := h.high(); hi > 0 && hi-latest.price >= g.cfg.InstrumentDeltaPts {
		g.raise(now, SevCritical, "session drawdown",
			fmt.Sprintf("%s down %.0f points from session high %.0f", g.cfg.InstrumentSymbol, hi-latest.price, hi), true)
	}
}

func (g *Guardian) pctDelta(now, cutoff time.Time, symbol string, threshold float64, kind string) {
	h := g.histories[symbol]
	latest, ok := h.latest()
	if !ok {
		return
	}
	check := func(ref sample, label string) {
		if ref.price == 0 {
			return
		}
		deltaPct := (latest.price - ref.price) / ref.price * 100
		if math.Abs(deltaPct) >= threshold {
			g.raise(now, SevCritical, kind,
				fmt.Sprintf("%s %s move %+.3f%% (%.4f -> %.4f)", symbol, label, deltaPct, ref.price, latest.price), false)
		} else if math.Abs(deltaPct) >= threshold*0.6 {
			g.raise(now, SevWarning, kind,
				fmt.Sprintf("%s %s move %+.3f%% approaching threshold", symbol, label, deltaPct), false)
		}
	}
	if ref, ok := h.at(cutoff); ok {
		check(ref, "short-window")
	}
	if len(h.samples) > 0 {
		check(h.samples[0], "session-open")
	}
}

// checkMacroShift compares the engine's latest macro reading against
// the previous guardian cycle.
func (g *Guardian) checkMacroShift(now time.Time) {
	if g.lastMacro == nil {
		return
	}
	reading, ok := g.lastMacro()
	if !ok {
		return
	}
	if g.havePrev {
		shift := reading.Score - g.prevMacro
		if shift < 0 {
			shift = -shift
		}
		if shift >= g.cfg.MacroShiftPts {
			g.scenarioChanges++
			g.raise(now, SevWarning, "macro shift",
				fmt.Sprintf("macro score moved %d -> %d", g.prevMacro, reading.Score), false)
		}
		if g.prevSignal != reading.Signal && g.prevSignal != model.Neutral && reading.Signal != model.Neutral {
			g.scenarioChanges++
			g.raise(now, SevCritical, "signal flip",
				fmt.Sprintf("macro signal flipped %s -> %s", g.prevSignal, reading.Signal), true)
		}
	}
	g.prevMacro = reading.Score
	g.prevSignal = reading.Signal
	g.havePrev = true
}

// checkDivergences cross-checks normally inverse-correlated series
// moving together, and a long bias contradicted by a spiking currency
// (capital outflow).
func (g *Guardian) checkDivergences(now time.Time) {
	cutoff := now.Add(-g.cfg.ShortWindow)
	curDelta, okC := g.windowDeltaPct(g.cfg.CurrencySymbol, cutoff)
	instDelta, okI := g.windowDeltaPct(g.cfg.InstrumentSymbol, cutoff)
	if !okC || !okI {
		return
	}
	if curDelta > 0.2 && instDelta > 0.2 {
		g.raise(now, SevWarning, "correlation divergence",
			fmt.Sprintf("currency +%.2f%% and instrument +%.2f%% moving together", curDelta, instDelta), false)
	}
	if g.lastMacro != nil {
		if reading, ok := g.lastMacro(); ok && reading.Signal == model.Buy && curDelta >= g.cfg.CurrencyDeltaPct*0.6 {
			g.raise(now, SevCritical, "capital outflow",
				fmt.Sprintf("buy bias while currency spikes +%.2f%%", curDelta), false)
		}
	}
}

func (g *Guardian) windowDeltaPct(symbol string, cutoff time.Time) (float64, bool) {
	h := g.histories[symbol]
	latest, ok := h.latest()
	if !ok {
		return 0, false
	}
	ref, ok := h.at(cutoff)
	if !ok || ref.price == 0 {
		return 0, false
	}
	return (latest.price - ref.price) / ref.price * 100, true
}

func (g *Guardian) checkCalendar(now time.Time) {
	events, err := g.calendar.HighImpact(now)
	if err != nil {
		g.log.Debug().Err(err).Msg("calendar unavailable, skipping")
		return
	}
	for _, e := range events {
		until := e.Time.Sub(now)
		switch {
		case until > 0 && until <= 30*time.Minute:
			g.raise(now, SevCritical, "calendar event",
				fmt.Sprintf("%s in %s", e.Name, until.Round(time.Minute)), true)
		case until <= 0 && until >= -15*time.Minute:
			g.raise(now, SevWarning, "calendar event",
				fmt.Sprintf("%s released %s ago", e.Name, (-until).Round(time.Minute)), false)
		}
	}
}

func (g *Guardian) checkSentiment(now time.Time) {
	extreme, err := g.sentiment.Extreme()
	if err != nil {
		g.log.Debug().Err(err).Msg("sentiment unavailable, skipping")
		return
	}
	if extreme != "" {
		g.raise(now, SevWarning, "sentiment extreme", extreme, false)
	}
}

func (g *Guardian) raise(now time.Time, sev Severity, kind, msg string, pause bool) {
	g.alerts = append(g.alerts, Alert{Time: now, Severity: sev, Kind: kind, Message: msg, Pause: pause})
	evt := g.log.Warn()
	if sev == SevCritical {
		evt = g.log.Error()
	}
	evt.Str("kind", kind).Str("severity", string(sev)).Msg(msg)
}

func (g *Guardian) pruneAlerts(now time.Time) {
	cutoff := now.Add(-g.cfg.AlertRetention)
	kept := g.alerts[:0]
	for _, a := range g.alerts {
		if a.Time.After(cutoff) {
			kept = append(kept, a)
		}
	}
	g.alerts = kept
}

// publish consolidates the recent alert window into the advisory
// snapshot and swaps it in atomically.
func (g *Guardian) publish(now time.Time) {
	cutoff := now.Add(-g.cfg.ConsolidateOver)
	var criticals, warnings, pauses int
	var reasons []string
	for _, a := range g.alerts {
		if !a.Time.After(cutoff) {
			continue
		}
		switch a.Severity {
		case SevCritical:
			criticals++
		case SevWarning:
			warnings++
		}
		if a.Pause {
			pauses++
		}
		reasons = append(reasons, a.Kind+": "+a.Message)
	}

	penalty := 5*warnings + 10*criticals
	if penalty > 30 {
		penalty = 30
	}

	advice := &model.GuardianAdvice{
		KillSwitch:        pauses >= 2 || criticals >= g.cfg.CriticalsForKill,
		ReducedExposure:   criticals >= 1,
		ConfidencePenalty: penalty,
		BiasOverride:      "",
		Reasons:           reasons,
		GeneratedAt:       now,
	}
	if g.scenarioChanges >= 2 {
		advice.BiasOverride = model.Neutral
		if reading, ok := g.lastMacroReading(); ok && reading.Signal != model.Neutral {
			advice.BiasOverride = reading.Signal
		}
		g.scenarioChanges = 0
	}

	g.advice.Store(advice)
	g.log.Info().
		Bool("kill_switch", advice.KillSwitch).
		Bool("reduced_exposure", advice.ReducedExposure).
		Int("confidence_penalty", advice.ConfidencePenalty).
		Int("alerts_window", len(reasons)).
		Msg("guardian advice published")
}

func (g *Guardian) lastMacroReading() (model.MacroReading, bool) {
	if g.lastMacro == nil {
		return model.MacroReading{}, false
	}
	return g.lastMacro()
}
