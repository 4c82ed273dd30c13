package engine

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"IndexPilot/internal/broker"
	"IndexPilot/internal/config"
	"IndexPilot/internal/guardian"
	"IndexPilot/internal/macro"
	"IndexPilot/internal/model"
	"IndexPilot/internal/region"
	"IndexPilot/internal/signal"
	"IndexPilot/internal/store"
	"IndexPilot/internal/synth"
	"IndexPilot/internal/trading"

	"github.com/rs/zerolog"
)

type captureRecorder struct {
	cycles []*model.CycleResult
	trades []*model.ClosedTrade
	alerts []*guardian.Alert
}

func (r *captureRecorder) RecordCycle(res *model.CycleResult) error {
	r.cycles = append(r.cycles, res)
	return nil
}

func (r *captureRecorder) RecordClosedTrade(ct *model.ClosedTrade) error {
	r.trades = append(r.trades, ct)
	return nil
}

func (r *captureRecorder) RecordGuardianAlert(a *guardian.Alert) error {
	r.alerts = append(r.alerts, a)
	return nil
}

func (r *captureRecorder) Close() error { return nil }

type captureNotifier struct {
	msgs []string
}

func (n *captureNotifier) Send(text string) error {
	n.msgs = append(n.msgs, text)
	return nil
}

func (n *captureNotifier) SendWithRetry(_ context.Context, text string, _ int) error {
	n.msgs = append(n.msgs, text)
	return nil
}

type harness struct {
	eng    *Engine
	mock   *broker.MockAdapter
	macro  *macro.StaticEngine
	rec    *captureRecorder
	notify *captureNotifier
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv("MOCK_MODE", "1")
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()

	mock := broker.NewMockAdapter(137000)
	mock.DayRefs = model.DayReferences{
		PrevHigh: 138200, PrevLow: 135800, PrevClose: 137100,
		DayOpen: 136900, DayHigh: 137300, DayLow: 136500,
	}
	static := &macro.StaticEngine{Reading: model.MacroReading{Signal: model.Neutral}}
	rec := &captureRecorder{}
	notify := &captureNotifier{}
	log := zerolog.Nop()

	eng := New(cfg, Deps{
		Adapter: mock,
		Macro:   static,
		Aggregator: signal.NewAggregator(signal.Thresholds{
			MacroBuy: cfg.Analysis.MacroBuy, MacroSell: cfg.Analysis.MacroSell,
			MicroBuy: cfg.Analysis.MicroBuy, MicroSell: cfg.Analysis.MicroSell,
		}, log),
		Mapper: region.NewMapper(cfg.Analysis.TickSize, log),
		Synth: synth.NewSynthesizer(synth.Config{
			BuyThreshold:    cfg.Analysis.MacroBuy,
			SellThreshold:   cfg.Analysis.MacroSell,
			MicroBuy:        cfg.Analysis.MicroBuy,
			MicroSell:       cfg.Analysis.MicroSell,
			TickSize:        cfg.Analysis.TickSize,
			MinConfluence:   cfg.Analysis.MinConfluence,
			MaxRegionDist:   cfg.Analysis.MaxRegionDist,
			DivergenceGap:   cfg.Analysis.DivergenceGap,
			DivergenceAfter: cfg.Analysis.DivergenceN,
			EventAvoidMin:   cfg.Analysis.EventAvoidMin,
			StrongMacro:     cfg.Analysis.StrongMacro,
		}, log),
		Manager: trading.NewManager(trading.Config{
			Symbol:           cfg.Broker.Symbol,
			MaxPositions:     cfg.Trading.MaxPositions,
			MaxDailyTrades:   cfg.Trading.MaxDailyTrades,
			MaxDailyLoss:     cfg.Trading.MaxDailyLoss,
			CooldownMin:      cfg.Trading.CooldownMin,
			ConfidenceFloor:  cfg.Trading.ConfidenceFloor,
			MinRiskReward:    cfg.Trading.MinRiskReward,
			ReducedConfFloor: cfg.Trading.ReducedConfFloor,
			ReducedMinRR:     cfg.Trading.ReducedMinRR,
			Quantity:         cfg.Trading.Quantity,
			PointValue:       cfg.Trading.PointValue,
			SessionClose:     cfg.Trading.SessionClose,
			EntryFreezeMin:   cfg.Trading.EntryFreezeMin,
			TrailATRMult:     cfg.Trading.TrailATRMult,
			TrailActivateATR: cfg.Trading.TrailActivateATR,
		}, mock, log),
		Directives: store.NewDirectiveStore(filepath.Join(dir, "directive.json"), log),
		Feedback:   store.NewFeedbackStore(filepath.Join(dir, "feedback.json"), log),
		Recorder:   rec,
		Notifier:   notify,
	}, log)

	return &harness{eng: eng, mock: mock, macro: static, rec: rec, notify: notify}
}

func inSessionClock() time.Time {
	return time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC)
}

func TestRunCycle_RecordsResult(t *testing.T) {
	h := newHarness(t)
	h.eng.RunCycle(inSessionClock())

	if len(h.rec.cycles) != 1 {
		t.Fatalf("expected one recorded cycle, got %d", len(h.rec.cycles))
	}
	res := h.rec.cycles[0]
	if res.Price != 137000 {
		t.Errorf("expected tick price 137000, got %.1f", res.Price)
	}
	if len(res.Regions) == 0 {
		t.Error("day references should produce regions")
	}
	if res.ATR <= 0 {
		t.Errorf("synthetic bars should produce a positive ATR, got %.2f", res.ATR)
	}
}

func TestRunCycle_SkipsWithoutTick(t *testing.T) {
	h := newHarness(t)
	h.mock.TickErr = errors.New("gateway down")

	h.eng.RunCycle(inSessionClock())
	if len(h.rec.cycles) != 0 {
		t.Errorf("cycle without a tick must be skipped, recorded %d", len(h.rec.cycles))
	}
}

func TestRunCycle_MacroOutageDegradesToNeutral(t *testing.T) {
	h := newHarness(t)
	h.macro.Err = errors.New("aggregator down")

	h.eng.RunCycle(inSessionClock())
	if len(h.rec.cycles) != 1 {
		t.Fatalf("macro outage must not skip the cycle, recorded %d", len(h.rec.cycles))
	}
	res := h.rec.cycles[0]
	if res.MacroRaw != 0 || res.MacroSignal != model.Neutral {
		t.Errorf("expected neutral macro fallback, got raw=%d signal=%s", res.MacroRaw, res.MacroSignal)
	}

	reading, ok := h.eng.LastMacro()
	if !ok || reading.Signal != model.Neutral {
		t.Errorf("guardian callback should see the neutral fallback, got %+v ok=%v", reading, ok)
	}
}

func TestRunCycle_OutOfSessionSummaryOnce(t *testing.T) {
	h := newHarness(t)
	evening := time.Date(2026, 3, 2, 18, 30, 0, 0, time.UTC)

	h.eng.RunCycle(evening)
	h.eng.RunCycle(evening.Add(2 * time.Minute))

	if len(h.rec.cycles) != 0 {
		t.Errorf("out-of-session cycles must not be recorded, got %d", len(h.rec.cycles))
	}
	summaries := 0
	for _, m := range h.notify.msgs {
		if strings.Contains(m, "Session summary") {
			summaries++
		}
	}
	if summaries != 1 {
		t.Errorf("expected exactly one session summary, got %d (%v)", summaries, h.notify.msgs)
	}
}

func TestRunCycle_SessionReopensAfterEnd(t *testing.T) {
	h := newHarness(t)
	evening := time.Date(2026, 3, 2, 18, 30, 0, 0, time.UTC)
	h.eng.RunCycle(evening)

	nextMorning := time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)
	h.eng.RunCycle(nextMorning)
	if len(h.rec.cycles) != 1 {
		t.Errorf("next morning's cycle should run, recorded %d", len(h.rec.cycles))
	}
}

func TestHandleCommand_PauseBlocksEntries(t *testing.T) {
	h := newHarness(t)

	reply := h.eng.HandleCommand("/pause")
	if !strings.Contains(reply, "paused") {
		t.Errorf("unexpected pause reply: %s", reply)
	}
	h.eng.RunCycle(inSessionClock())
	if len(h.rec.cycles) != 1 {
		t.Fatal("paused engine still analyzes")
	}

	reply = h.eng.HandleCommand("/resume")
	if !strings.Contains(reply, "resumed") {
		t.Errorf("unexpected resume reply: %s", reply)
	}
}

func TestHandleCommand_ReportBeforeFirstCycle(t *testing.T) {
	h := newHarness(t)
	if got := h.eng.HandleCommand("/report"); got != "No cycle has run yet." {
		t.Errorf("unexpected reply: %s", got)
	}
	h.eng.RunCycle(inSessionClock())
	if got := h.eng.HandleCommand("/report"); !strings.Contains(got, "137") {
		t.Errorf("report after a cycle should carry the price, got: %s", got)
	}
}

func TestHandleCommand_UnknownIsDropped(t *testing.T) {
	h := newHarness(t)
	if got := h.eng.HandleCommand("/bogus"); got != "" {
		t.Errorf("unknown command should yield an empty reply, got %q", got)
	}
	if got := h.eng.HandleCommand("   "); got != "" {
		t.Errorf("blank input should yield an empty reply, got %q", got)
	}
}

func TestHandleCommand_StatusReflectsState(t *testing.T) {
	h := newHarness(t)
	h.eng.RunCycle(inSessionClock())
	got := h.eng.HandleCommand("/status")
	if !strings.Contains(got, "Trades today") {
		t.Errorf("unexpected status: %s", got)
	}
}
