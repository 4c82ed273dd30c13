package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"IndexPilot/internal/broker"
	"IndexPilot/internal/config"
	"IndexPilot/internal/guardian"
	"IndexPilot/internal/indicator"
	"IndexPilot/internal/macro"
	"IndexPilot/internal/metrics"
	"IndexPilot/internal/model"
	"IndexPilot/internal/notifier"
	"IndexPilot/internal/recorder"
	"IndexPilot/internal/region"
	"IndexPilot/internal/signal"
	"IndexPilot/internal/store"
	"IndexPilot/internal/synth"
	"IndexPilot/internal/trading"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Candle history depth fetched per timeframe.
var candleCounts = map[model.Timeframe]int{
	model.TF1m:  120,
	model.TF5m:  100,
	model.TF15m: 60,
	model.TF1h:  50,
}

// Primary decision timeframe; H1 confirms structure.
const (
	primaryTF = model.TF5m
	higherTF  = model.TF1h
)

// Engine wires the full per-cycle pipeline and owns the schedule.
type Engine struct {
	cfg        *config.Config
	adapter    broker.Adapter
	macro      macro.Engine
	aggregator *signal.Aggregator
	mapper     *region.Mapper
	synth      *synth.Synthesizer
	manager    *trading.Manager
	guard      *guardian.Guardian
	directives *store.DirectiveStore
	feedback   *store.FeedbackStore
	rec        recorder.Recorder
	notify     notifier.Notifier
	log        zerolog.Logger

	mu         sync.Mutex
	lastResult *model.CycleResult
	lastMacro  model.MacroReading
	haveMacro  bool
	lastAlert  time.Time
	paused     bool
	sessionEnd bool
}

// Deps bundles the engine's collaborators.
type Deps struct {
	Adapter    broker.Adapter
	Macro      macro.Engine
	Aggregator *signal.Aggregator
	Mapper     *region.Mapper
	Synth      *synth.Synthesizer
	Manager    *trading.Manager
	Directives *store.DirectiveStore
	Feedback   *store.FeedbackStore
	Recorder   recorder.Recorder
	Notifier   notifier.Notifier
}

// New creates an Engine. The guardian is attached afterwards via
// SetGuardian because it needs the engine's macro reading callback.
func New(cfg *config.Config, d Deps, logger zerolog.Logger) *Engine {
	return &Engine{
		cfg:        cfg,
		adapter:    d.Adapter,
		macro:      d.Macro,
		aggregator: d.Aggregator,
		mapper:     d.Mapper,
		synth:      d.Synth,
		manager:    d.Manager,
		directives: d.Directives,
		feedback:   d.Feedback,
		rec:        d.Recorder,
		notify:     d.Notifier,
		log:        logger.With().Str("component", "engine").Logger(),
	}
}

// SetGuardian attaches the scenario guardian.
func (e *Engine) SetGuardian(g *guardian.Guardian) { e.guard = g }

// LastMacro exposes the most recent macro reading for the guardian's
// shift comparison.
func (e *Engine) LastMacro() (model.MacroReading, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastMacro, e.haveMacro
}

// Start registers the cron jobs and blocks until ctx is cancelled, then
// closes any open positions.
func (e *Engine) Start(ctx context.Context) error {
	c := cron.New(cron.WithSeconds())
	if _, err := c.AddFunc(e.cfg.Schedule.AnalysisCron, func() { e.RunCycle(time.Now()) }); err != nil {
		return fmt.Errorf("register analysis cron: %w", err)
	}
	if e.guard != nil {
		if _, err := c.AddFunc(e.cfg.Schedule.GuardianCron, func() { e.runGuardian(time.Now()) }); err != nil {
			return fmt.Errorf("register guardian cron: %w", err)
		}
	}

	if e.cfg.Schedule.RunOnStart {
		e.log.Info().Msg("run-on-start enabled, executing first cycle now")
		if e.guard != nil {
			e.runGuardian(time.Now())
		}
		e.RunCycle(time.Now())
	}

	c.Start()
	e.log.Info().
		Str("analysis", e.cfg.Schedule.AnalysisCron).
		Str("guardian", e.cfg.Schedule.GuardianCron).
		Msg("engine started")

	<-ctx.Done()
	stopCtx := c.Stop()
	<-stopCtx.Done()

	e.shutdown(time.Now())
	return nil
}

// shutdown force-closes open positions at process exit.
func (e *Engine) shutdown(now time.Time) {
	price, err := e.currentPrice()
	if err != nil {
		e.log.Error().Err(err).Msg("shutdown: no price, leaving positions to the broker's server-side stops")
		return
	}
	closed := e.manager.CloseAll(now, price, model.ExitSessionEnd)
	for i := range closed {
		e.recordClose(&closed[i])
	}
	e.log.Info().Int("closed", len(closed)).Msg("engine stopped")
}

// RunCycle executes one full analysis cycle. Data-source failures
// degrade the cycle (skip or neutral) rather than aborting the process.
func (e *Engine) RunCycle(now time.Time) {
	metrics.CyclesTotal.Inc()

	md, err := e.fetchMarketData()
	if err != nil {
		metrics.CycleErrors.Inc()
		e.log.Error().Err(err).Msg("cycle skipped: market data unavailable")
		return
	}
	price := md.Tick.Last
	if price <= 0 {
		metrics.CycleErrors.Inc()
		e.log.Error().Msg("cycle skipped: no last price")
		return
	}

	if e.inSession(now) {
		e.sessionEndOnce(false)
	} else {
		e.endSession(now, price)
		return
	}

	reading := e.fetchMacro()
	primary := md.Candles[primaryTF]
	higher := md.Candles[higherTF]

	ind := e.computeIndicators(primary)
	pivots := indicator.CalculatePivots(md.DayRefs.PrevHigh, md.DayRefs.PrevLow, md.DayRefs.PrevClose)
	regions := e.mapper.MapRegions(region.Inputs{
		Price:   price,
		VWAP:    ind.vwap,
		Pivots:  pivots,
		Candles: md.Candles,
		DayRefs: md.DayRefs,
	})

	sigRes := e.aggregator.Aggregate(reading, now, signal.Inputs{
		Price:      price,
		Candles:    primary,
		Structure:  ind.structure,
		FVGs:       ind.fvgs,
		VWAP:       ind.vwap,
		RSI:        ind.rsi,
		StochK:     ind.stochK,
		StochD:     ind.stochD,
		MACD:       ind.macd,
		Bollinger:  ind.bollinger,
		ADX:        ind.adx,
		EMA21:      ind.ema21,
		AvgVolume:  ind.avgVolume,
		OBVDiv:     ind.obvDiv,
		Aggression: ind.aggression,
		Regions:    regions,
	})
	metrics.MacroScore.Set(sigRes.MacroSmoothed)
	metrics.MicroScore.Set(float64(sigRes.MicroScore))

	reloadEvery := time.Duration(e.cfg.Advisory.ReloadMin) * time.Minute
	directive := e.directives.Active(now, reloadEvery)
	feedback := e.feedback.Latest(now, reloadEvery)
	var advice model.GuardianAdvice
	if e.guard != nil {
		advice = e.guard.Advice()
	}
	if advice.KillSwitch {
		metrics.KillSwitchActive.Set(1)
	} else {
		metrics.KillSwitchActive.Set(0)
	}

	synthOut := e.synth.Synthesize(synth.Context{
		Now:       now,
		Price:     price,
		ATR:       ind.atr,
		RSI:       ind.rsi,
		Signal:    sigRes,
		Regions:   regions,
		Structure: ind.structure,
		HigherTF:  indicator.AnalyzeStructure(higher, 3),
		VWAP:      ind.vwap,
		Directive: directive,
		Feedback:  feedback,
		Guardian:  advice,
	})
	if synthOut.NeutralOverride {
		if err := e.feedback.SetNeutralOverride(now); err != nil {
			e.log.Error().Err(err).Msg("persist neutral override")
		}
	}
	for _, o := range synthOut.Opportunities {
		metrics.OpportunitiesTotal.WithLabelValues(string(o.Direction)).Inc()
	}

	res := &model.CycleResult{
		Time:          now,
		Price:         price,
		MacroRaw:      sigRes.MacroRaw,
		MacroSmoothed: sigRes.MacroSmoothed,
		MacroSignal:   sigRes.MacroSignal,
		MacroConf:     sigRes.MacroConf,
		MicroScore:    sigRes.MicroScore,
		Contributions: sigRes.Contributions,
		Trend:         sigRes.Trend,
		VWAP:          ind.vwap.VWAP,
		ATR:           ind.atr,
		Regions:       regions,
		Opportunities: synthOut.Opportunities,
		Rejections:    synthOut.Rejections,
	}

	e.managePositions(now, price, ind.atr)
	e.tryEnter(now, res, directive)
	e.manager.MonitorHedgeOrphans(now)

	if err := e.rec.RecordCycle(res); err != nil {
		e.log.Error().Err(err).Msg("record cycle")
	}

	e.mu.Lock()
	e.lastResult = res
	e.mu.Unlock()

	trades, pnl := e.manager.DailyStats(now)
	metrics.DailyPnL.Set(pnl)
	metrics.OpenPositions.Set(float64(len(e.manager.OpenTrades())))
	e.log.Info().
		Int64("cycle", res.ID).
		Float64("price", price).
		Int("regions", len(regions)).
		Int("opportunities", len(synthOut.Opportunities)).
		Int("daily_trades", trades).
		Msg("cycle complete")
}

// indicatorSet is the per-cycle indicator computation result.
type indicatorSet struct {
	rsi        float64
	stochK     float64
	stochD     float64
	macd       indicator.MACDResult
	bollinger  indicator.BollingerResult
	adx        indicator.ADXResult
	atr        float64
	ema21      float64
	vwap       indicator.VWAPResult
	structure  indicator.StructureSnapshot
	fvgs       []indicator.FairValueGap
	avgVolume  float64
	obvDiv     int
	aggression float64
}

// computeIndicators runs the full battery on the primary timeframe.
// Short series produce neutral values from the calculators; errors are
// logged at debug and never abort the cycle.
func (e *Engine) computeIndicators(bars []model.Candle) indicatorSet {
	var out indicatorSet
	var err error

	if out.rsi, err = indicator.CalculateRSI(bars, 14); err != nil {
		e.log.Debug().Err(err).Msg("rsi degraded")
	}
	if out.stochK, out.stochD, err = indicator.CalculateStochastic(bars, 14, 3); err != nil {
		e.log.Debug().Err(err).Msg("stochastic degraded")
	}
	if out.macd, err = indicator.CalculateMACD(bars); err != nil {
		e.log.Debug().Err(err).Msg("macd degraded")
	}
	if out.bollinger, err = indicator.CalculateBollinger(bars, 20, 2.0); err != nil {
		e.log.Debug().Err(err).Msg("bollinger degraded")
	}
	if out.adx, err = indicator.CalculateADX(bars, 14); err != nil {
		e.log.Debug().Err(err).Msg("adx degraded")
	}
	if out.atr, err = indicator.CalculateATR(bars, 14); err != nil {
		e.log.Debug().Err(err).Msg("atr degraded")
	}
	if out.ema21, err = indicator.LastEMA(indicator.Closes(bars), 21); err != nil {
		e.log.Debug().Err(err).Msg("ema degraded")
	}
	out.vwap = indicator.CalculateVWAP(bars)
	out.structure = indicator.AnalyzeStructure(bars, 3)
	out.fvgs = indicator.FindFairValueGaps(bars, 0.05)
	out.avgVolume = indicator.AverageVolume(bars, 50)
	out.obvDiv = indicator.OBVDivergence(bars, 14)
	out.aggression = indicator.AggressionRatio(bars, 10)
	return out
}

// fetchMarketData pulls the tick, all candle series and the day
// references. Individual candle series may come back empty; only a
// missing tick fails the fetch.
func (e *Engine) fetchMarketData() (*model.MarketData, error) {
	symbol := e.cfg.Broker.Symbol
	tick, err := e.adapter.GetTick(symbol)
	if err != nil {
		return nil, fmt.Errorf("get tick: %w", err)
	}

	candles := make(map[model.Timeframe][]model.Candle, len(candleCounts))
	for tf, count := range candleCounts {
		bars, err := e.adapter.GetCandles(symbol, tf, count)
		if err != nil {
			e.log.Warn().Err(err).Str("timeframe", string(tf)).Msg("candles unavailable")
			continue
		}
		candles[tf] = bars
	}

	refs, err := e.adapter.GetDayReferences(symbol)
	if err != nil {
		e.log.Warn().Err(err).Msg("day references unavailable")
	}

	return &model.MarketData{
		Symbol:    symbol,
		Tick:      tick,
		Candles:   candles,
		DayRefs:   refs,
		FetchedAt: time.Now(),
	}, nil
}

// fetchMacro reads the external engine, degrading to a neutral reading
// on failure so the cycle continues on micro signals alone.
func (e *Engine) fetchMacro() model.MacroReading {
	reading, err := e.macro.Analyze()
	if err != nil {
		e.log.Warn().Err(err).Msg("macro engine unavailable, using neutral reading")
		reading = model.MacroReading{Score: 0, Signal: model.Neutral, Confidence: 0}
	}
	e.mu.Lock()
	e.lastMacro = reading
	e.haveMacro = true
	e.mu.Unlock()
	return reading
}

// managePositions runs the exit logic and records any closes.
func (e *Engine) managePositions(now time.Time, price, atr float64) {
	closed := e.manager.ManagePositions(now, price, atr)
	for i := range closed {
		e.recordClose(&closed[i])
		e.notifyBestEffort(notifier.FormatTradeClosed(&closed[i]))
	}
}

// tryEnter picks the best opportunity (highest confidence, risk:reward
// breaking ties) and walks it through the trading manager's gates.
func (e *Engine) tryEnter(now time.Time, res *model.CycleResult, directive *model.Directive) {
	if len(res.Opportunities) == 0 {
		return
	}
	best := res.Opportunities[0]
	for _, o := range res.Opportunities[1:] {
		if o.Confidence > best.Confidence ||
			(o.Confidence == best.Confidence && o.RiskReward > best.RiskReward) {
			best = o
		}
	}

	if ok, reason := e.manager.CanTrade(now); !ok {
		res.Rejections = append(res.Rejections, "entry blocked: "+reason)
		return
	}
	if ok, reason := e.manager.EvaluateOpportunity(now, best, directive); !ok {
		res.Rejections = append(res.Rejections, "entry rejected: "+reason)
		return
	}
	trade, err := e.manager.ExecuteEntry(now, best, directive)
	if err != nil {
		res.Rejections = append(res.Rejections, "entry failed: "+err.Error())
		e.log.Error().Err(err).Msg("entry execution failed")
		return
	}
	e.notifyBestEffort(fmt.Sprintf("🟢 <b>Entered %s</b> @ %.1f\nstop %.1f | target %.1f | conf %d\n%s",
		trade.Direction, trade.Entry, trade.Stop, trade.Target, best.Confidence, best.Rationale))
}

func (e *Engine) recordClose(ct *model.ClosedTrade) {
	metrics.TradesTotal.WithLabelValues(string(ct.Reason)).Inc()
	if err := e.rec.RecordClosedTrade(ct); err != nil {
		e.log.Error().Err(err).Msg("record closed trade")
	}
}

// runGuardian executes one guardian pass and persists new alerts.
func (e *Engine) runGuardian(now time.Time) {
	e.guard.RunCycle(now)

	e.mu.Lock()
	since := e.lastAlert
	e.lastAlert = now
	e.mu.Unlock()

	for _, a := range e.guard.AlertsSince(since) {
		metrics.GuardianAlertsTotal.WithLabelValues(string(a.Severity)).Inc()
		if err := e.rec.RecordGuardianAlert(&a); err != nil {
			e.log.Error().Err(err).Msg("record guardian alert")
		}
		if a.Severity == guardian.SevCritical {
			e.notifyBestEffort(fmt.Sprintf("⚠️ <b>%s</b>\n%s", a.Kind, a.Message))
		}
	}
}

// inSession reports whether now is inside the trading session.
func (e *Engine) inSession(now time.Time) bool {
	open, err1 := clockOn(now, e.cfg.Trading.SessionOpen)
	closeAt, err2 := clockOn(now, e.cfg.Trading.SessionClose)
	if err1 != nil || err2 != nil {
		return true
	}
	return !now.Before(open) && now.Before(closeAt)
}

// endSession closes everything once per out-of-session stretch and
// sends the daily recap.
func (e *Engine) endSession(now time.Time, price float64) {
	if e.sessionEndOnce(true) {
		return
	}
	closed := e.manager.CloseAll(now, price, model.ExitSessionEnd)
	for i := range closed {
		e.recordClose(&closed[i])
	}
	_, pnl := e.manager.DailyStats(now)
	e.notifyBestEffort(notifier.FormatSessionSummary(e.manager.ClosedTrades(), pnl))
	e.log.Info().Int("closed", len(closed)).Float64("daily_pnl", pnl).Msg("session ended")
}

// sessionEndOnce swaps the session-end latch, returning its previous
// value.
func (e *Engine) sessionEndOnce(v bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	prev := e.sessionEnd
	e.sessionEnd = v
	return prev
}

func (e *Engine) currentPrice() (float64, error) {
	tick, err := e.adapter.GetTick(e.cfg.Broker.Symbol)
	if err != nil {
		return 0, err
	}
	return tick.Last, nil
}

func (e *Engine) notifyBestEffort(text string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := e.notify.SendWithRetry(ctx, text, 2); err != nil {
		e.log.Warn().Err(err).Msg("notification failed")
	}
}

// clockOn parses HH:MM onto the given day in its location.
func clockOn(now time.Time, hhmm string) (time.Time, error) {
	t, err := time.ParseInLocation("15:04", hhmm, now.Location())
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(now.Year(), now.Month(), now.Day(),
		t.Hour(), t.Minute(), 0, 0, now.Location()), nil
}
