package trading

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"IndexPilot/internal/broker"
	"IndexPilot/internal/model"

	"github.com/rs/zerolog"
)

func testManagerConfig() Config {
	return Config{
		Symbol:           "WIN$",
		MaxPositions:     3,
		MaxDailyTrades:   2,
		MaxDailyLoss:     1500,
		CooldownMin:      30,
		ConfidenceFloor:  60,
		MinRiskReward:    1.2,
		ReducedConfFloor: 75,
		ReducedMinRR:     2.0,
		Quantity:         1,
		PointValue:       0.2,
		SessionClose:     "17:55",
		EntryFreezeMin:   30,
		TrailATRMult:     1.0,
		TrailActivateATR: 1.0,
	}
}

func testOpportunity(dir model.Direction) model.Opportunity {
	entry, stop, target := 137000.0, 136880.0, 137400.0
	if dir == model.Sell {
		stop, target = 137120.0, 136600.0
	}
	return model.Opportunity{
		Direction: dir, Entry: entry, Stop: stop, Target: target,
		RiskReward: 3.3, Confidence: 80, Tags: model.TagTrendFollow,
	}
}

func tradingClock() time.Time {
	return time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC)
}

func TestExecuteEntry_RecordsOnAck(t *testing.T) {
	mock := broker.NewMockAdapter(137000)
	m := NewManager(testManagerConfig(), mock, zerolog.Nop())

	trade, err := m.ExecuteEntry(tradingClock(), testOpportunity(model.Buy), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if trade.Ticket == "" || trade.BrokerID != "MOCK-1" {
		t.Errorf("trade not wired to broker ack: %+v", trade)
	}
	if len(m.OpenTrades()) != 1 {
		t.Errorf("expected 1 open trade, got %d", len(m.OpenTrades()))
	}
}

func TestExecuteEntry_NoAckLeavesStateUnchanged(t *testing.T) {
	mock := broker.NewMockAdapter(137000)
	mock.OrderAck = ""
	m := NewManager(testManagerConfig(), mock, zerolog.Nop())

	if _, err := m.ExecuteEntry(tradingClock(), testOpportunity(model.Buy), nil); err == nil {
		t.Fatal("expected error for unacknowledged order")
	}
	if len(m.OpenTrades()) != 0 {
		t.Errorf("unacknowledged order must not create a position")
	}
	if ok, _ := m.CanTrade(tradingClock()); !ok {
		t.Error("failed entry should not consume trading capacity")
	}
}

func TestExecuteEntry_DirectiveScalesQuantity(t *testing.T) {
	cfg := testManagerConfig()
	cfg.Quantity = 4
	mock := broker.NewMockAdapter(137000)
	m := NewManager(cfg, mock, zerolog.Nop())
	now := tradingClock()

	d := &model.Directive{Date: now.Format("2006-01-02"), PositionSizePct: 50}
	trade, err := m.ExecuteEntry(now, testOpportunity(model.Buy), d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if trade.Quantity != 2 {
		t.Errorf("expected half size 2, got %.0f", trade.Quantity)
	}
	if len(mock.SentOrders) != 1 || mock.SentOrders[0].Quantity != 2 {
		t.Errorf("scaled quantity must reach the broker order: %+v", mock.SentOrders)
	}
}

func TestExecuteEntry_SizingFloorsAtOneContract(t *testing.T) {
	mock := broker.NewMockAdapter(137000)
	m := NewManager(testManagerConfig(), mock, zerolog.Nop())
	now := tradingClock()

	// 25% of a single contract rounds to zero; the floor keeps one.
	d := &model.Directive{Date: now.Format("2006-01-02"), PositionSizePct: 25}
	trade, err := m.ExecuteEntry(now, testOpportunity(model.Buy), d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if trade.Quantity != 1 {
		t.Errorf("expected floor of one contract, got %.0f", trade.Quantity)
	}
}

func TestExecuteEntry_StaleDirectiveDoesNotResize(t *testing.T) {
	cfg := testManagerConfig()
	cfg.Quantity = 4
	mock := broker.NewMockAdapter(137000)
	m := NewManager(cfg, mock, zerolog.Nop())
	now := tradingClock()

	stale := &model.Directive{Date: now.AddDate(0, 0, -1).Format("2006-01-02"), PositionSizePct: 50}
	trade, err := m.ExecuteEntry(now, testOpportunity(model.Buy), stale)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if trade.Quantity != 4 {
		t.Errorf("yesterday's directive must not resize, got %.0f", trade.Quantity)
	}
}

func TestCanTrade_DailyCap(t *testing.T) {
	mock := broker.NewMockAdapter(137000)
	m := NewManager(testManagerConfig(), mock, zerolog.Nop())
	now := tradingClock()

	for i := 0; i < 2; i++ {
		mock.OrderAck = fmt.Sprintf("MOCK-%d", i+1)
		if _, err := m.ExecuteEntry(now, testOpportunity(model.Buy), nil); err != nil {
			t.Fatalf("entry %d failed: %v", i+1, err)
		}
	}
	ok, reason := m.CanTrade(now)
	if ok {
		t.Fatal("expected daily cap to block the third trade")
	}
	if !strings.Contains(reason, "daily trade cap") {
		t.Errorf("unexpected reason: %s", reason)
	}
}

func TestCanTrade_DailyCapResetsNextDay(t *testing.T) {
	mock := broker.NewMockAdapter(137000)
	m := NewManager(testManagerConfig(), mock, zerolog.Nop())
	now := tradingClock()

	m.ExecuteEntry(now, testOpportunity(model.Buy), nil)
	mock.OrderAck = "MOCK-2"
	m.ExecuteEntry(now, testOpportunity(model.Buy), nil)
	if ok, _ := m.CanTrade(now); ok {
		t.Fatal("cap should be hit")
	}

	nextDay := now.Add(24 * time.Hour)
	trades, _ := m.DailyStats(nextDay)
	if trades != 0 {
		t.Errorf("daily counters must rotate lazily on first touch, got %d trades", trades)
	}
}

func TestCanTrade_EntryFreeze(t *testing.T) {
	m := NewManager(testManagerConfig(), broker.NewMockAdapter(137000), zerolog.Nop())
	late := time.Date(2026, 3, 2, 17, 40, 0, 0, time.UTC) // 15 min before close
	ok, reason := m.CanTrade(late)
	if ok {
		t.Fatal("expected entry freeze near session close")
	}
	if !strings.Contains(reason, "freeze") {
		t.Errorf("unexpected reason: %s", reason)
	}
}

func TestEvaluateOpportunity_NoHedging(t *testing.T) {
	mock := broker.NewMockAdapter(137000)
	m := NewManager(testManagerConfig(), mock, zerolog.Nop())
	now := tradingClock()

	if _, err := m.ExecuteEntry(now, testOpportunity(model.Buy), nil); err != nil {
		t.Fatalf("entry failed: %v", err)
	}
	ok, reason := m.EvaluateOpportunity(now, testOpportunity(model.Sell), nil)
	if ok {
		t.Fatal("opposite-direction entry must be rejected while a position is open")
	}
	if !strings.Contains(reason, "opposite-direction") {
		t.Errorf("unexpected reason: %s", reason)
	}
}

func TestEvaluateOpportunity_CooldownAfterStopLoss(t *testing.T) {
	mock := broker.NewMockAdapter(137000)
	m := NewManager(testManagerConfig(), mock, zerolog.Nop())
	now := tradingClock()

	if _, err := m.ExecuteEntry(now, testOpportunity(model.Buy), nil); err != nil {
		t.Fatalf("entry failed: %v", err)
	}
	closed := m.ManagePositions(now.Add(5*time.Minute), 136880, 100)
	if len(closed) != 1 || closed[0].Reason != model.ExitStopLoss {
		t.Fatalf("expected stop-loss close, got %+v", closed)
	}

	ok, reason := m.EvaluateOpportunity(now.Add(10*time.Minute), testOpportunity(model.Buy), nil)
	if ok {
		t.Fatal("same-direction entry must be rejected inside the cooldown")
	}
	if !strings.Contains(reason, "cooldown") {
		t.Errorf("unexpected reason: %s", reason)
	}

	// The opposite direction is not bound by the cooldown.
	if ok, reason := m.EvaluateOpportunity(now.Add(10*time.Minute), testOpportunity(model.Sell), nil); !ok {
		t.Errorf("opposite direction should pass, got: %s", reason)
	}
}

func TestEvaluateOpportunity_ReducedExposureFloors(t *testing.T) {
	m := NewManager(testManagerConfig(), broker.NewMockAdapter(137000), zerolog.Nop())
	now := tradingClock()

	opp := testOpportunity(model.Buy)
	opp.Tags |= model.TagReducedExposure
	opp.Confidence = 70 // above the normal floor, below the reduced floor
	if ok, _ := m.EvaluateOpportunity(now, opp, nil); ok {
		t.Error("reduced-exposure opportunity below the stricter floor must be rejected")
	}

	opp.Confidence = 80
	opp.RiskReward = 1.5 // below the reduced 2.0 floor
	if ok, _ := m.EvaluateOpportunity(now, opp, nil); ok {
		t.Error("reduced-exposure opportunity below the stricter R:R floor must be rejected")
	}
}

func TestEvaluateOpportunity_DirectiveTradeCap(t *testing.T) {
	mock := broker.NewMockAdapter(137000)
	m := NewManager(testManagerConfig(), mock, zerolog.Nop())
	now := tradingClock()

	m.ExecuteEntry(now, testOpportunity(model.Buy), nil)
	d := &model.Directive{Date: now.Format("2006-01-02"), MaxTrades: 1}
	if ok, reason := m.EvaluateOpportunity(now, testOpportunity(model.Buy), d); ok {
		t.Error("directive trade cap must be enforced")
	} else if !strings.Contains(reason, "directive trade cap") {
		t.Errorf("unexpected reason: %s", reason)
	}
}

func TestManagePositions_TakeProfit(t *testing.T) {
	mock := broker.NewMockAdapter(137000)
	m := NewManager(testManagerConfig(), mock, zerolog.Nop())
	now := tradingClock()

	m.ExecuteEntry(now, testOpportunity(model.Buy), nil)
	closed := m.ManagePositions(now.Add(time.Hour), 137400, 100)
	if len(closed) != 1 || closed[0].Reason != model.ExitTakeProfit {
		t.Fatalf("expected take-profit close, got %+v", closed)
	}
	if closed[0].RealizedPnL <= 0 {
		t.Errorf("take-profit close should realize a gain, got %.2f", closed[0].RealizedPnL)
	}
	if len(mock.ClosedIDs) != 1 {
		t.Errorf("broker close not submitted")
	}
}

func TestTrailingStop_MonotoneAdvance(t *testing.T) {
	mock := broker.NewMockAdapter(137000)
	m := NewManager(testManagerConfig(), mock, zerolog.Nop())
	now := tradingClock()

	m.ExecuteEntry(now, testOpportunity(model.Buy), nil)

	// +150 points with ATR 100 activates the trail at HWM - 1.0*ATR.
	m.ManagePositions(now.Add(time.Minute), 137150, 100)
	open := m.OpenTrades()
	if len(open) != 1 {
		t.Fatalf("position should still be open, got %d", len(open))
	}
	if !open[0].TrailingLive {
		t.Fatal("trail should be active after a 1.5 ATR excursion")
	}
	if open[0].TrailingStop != 137050 {
		t.Fatalf("expected trail at 137050, got %.1f", open[0].TrailingStop)
	}

	// A pullback that stays above the trail never loosens it.
	m.ManagePositions(now.Add(2*time.Minute), 137080, 100)
	open = m.OpenTrades()
	if len(open) != 1 {
		t.Fatalf("pullback above trail must not close, got %d open", len(open))
	}
	if open[0].TrailingStop != 137050 {
		t.Errorf("trail must never loosen, got %.1f", open[0].TrailingStop)
	}

	// Touching the trail closes as a stop-loss.
	closed := m.ManagePositions(now.Add(3*time.Minute), 137050, 100)
	if len(closed) != 1 || closed[0].Reason != model.ExitStopLoss {
		t.Fatalf("expected trail exit as stop-loss, got %+v", closed)
	}
	if closed[0].RealizedPnL <= 0 {
		t.Errorf("trail exit above entry should still realize a gain, got %.2f", closed[0].RealizedPnL)
	}
}

func TestCloseAll_SessionEnd(t *testing.T) {
	mock := broker.NewMockAdapter(137000)
	m := NewManager(testManagerConfig(), mock, zerolog.Nop())
	now := tradingClock()

	m.ExecuteEntry(now, testOpportunity(model.Buy), nil)
	closed := m.CloseAll(now.Add(time.Hour), 137100, model.ExitSessionEnd)
	if len(closed) != 1 || closed[0].Reason != model.ExitSessionEnd {
		t.Fatalf("expected session-end close, got %+v", closed)
	}
	if len(m.OpenTrades()) != 0 {
		t.Error("positions should be flat after CloseAll")
	}
}

func TestPause_BlocksEntries(t *testing.T) {
	m := NewManager(testManagerConfig(), broker.NewMockAdapter(137000), zerolog.Nop())
	m.Pause()
	if ok, reason := m.CanTrade(tradingClock()); ok || !strings.Contains(reason, "paused") {
		t.Errorf("expected paused rejection, got ok=%v reason=%s", ok, reason)
	}
	m.Resume()
	if ok, _ := m.CanTrade(tradingClock()); !ok {
		t.Error("resume should restore trading")
	}
}

func TestMonitorHedgeOrphans_ForceClose(t *testing.T) {
	mock := broker.NewMockAdapter(137000)
	mock.Positions = []broker.Position{
		{BrokerID: "GHOST-1", Symbol: "WIN$", Direction: model.Buy, Quantity: 1, Entry: 136500},
	}
	cfg := testManagerConfig()
	cfg.OrphanForceClose = true
	m := NewManager(cfg, mock, zerolog.Nop())

	m.MonitorHedgeOrphans(tradingClock())
	if len(mock.ClosedIDs) != 1 || mock.ClosedIDs[0] != "GHOST-1" {
		t.Fatalf("expected orphan force-close, closed: %v", mock.ClosedIDs)
	}
	ledger := m.ClosedTrades()
	if len(ledger) != 1 || ledger[0].Reason != model.ExitOrphan {
		t.Errorf("orphan close must land in the ledger, got %+v", ledger)
	}
}

func TestMonitorHedgeOrphans_TrackedPositionsUntouched(t *testing.T) {
	mock := broker.NewMockAdapter(137000)
	cfg := testManagerConfig()
	cfg.OrphanForceClose = true
	m := NewManager(cfg, mock, zerolog.Nop())

	m.ExecuteEntry(tradingClock(), testOpportunity(model.Buy), nil)
	m.MonitorHedgeOrphans(tradingClock())
	if len(mock.ClosedIDs) != 0 {
		t.Errorf("tracked position with protection must not be closed, closed: %v", mock.ClosedIDs)
	}
}
