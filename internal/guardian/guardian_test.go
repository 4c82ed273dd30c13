package guardian

import (
	"strings"
	"testing"
	"time"

	"IndexPilot/internal/broker"
	"IndexPilot/internal/model"

	"github.com/rs/zerolog"
)

func testGuardianConfig() Config {
	return DefaultConfig("USDBRL", "IBOV", "WIN$")
}

func guardianClock() time.Time {
	return time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
}

func TestRunCycle_CurrencyAggressionReducesExposure(t *testing.T) {
	mock := broker.NewMockAdapter(137000)
	mock.RefPrices["USDBRL"] = 5.2000
	g := New(testGuardianConfig(), mock, nil, nil, nil, zerolog.Nop())

	t0 := guardianClock()
	g.RunCycle(t0)

	// +0.58% in five minutes, past the 0.5% currency threshold. The
	// move trips both the short-window and the session-open check.
	mock.RefPrices["USDBRL"] = 5.2300
	g.RunCycle(t0.Add(5 * time.Minute))

	advice := g.Advice()
	if advice.KillSwitch {
		t.Error("two criticals must not trip the kill switch on their own")
	}
	if !advice.ReducedExposure {
		t.Error("a critical alert must demand reduced exposure")
	}
	if advice.ConfidencePenalty != 20 {
		t.Errorf("expected penalty 20 for two criticals, got %d", advice.ConfidencePenalty)
	}
	found := false
	for _, r := range advice.Reasons {
		if strings.HasPrefix(r, "currency aggression") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a currency aggression reason, got %v", advice.Reasons)
	}
}

func TestRunCycle_WarningBandBelowCritical(t *testing.T) {
	mock := broker.NewMockAdapter(137000)
	mock.RefPrices["USDBRL"] = 5.2000
	g := New(testGuardianConfig(), mock, nil, nil, nil, zerolog.Nop())

	t0 := guardianClock()
	g.RunCycle(t0)

	// +0.38%: above 0.6x the threshold but below the threshold itself.
	mock.RefPrices["USDBRL"] = 5.2200
	g.RunCycle(t0.Add(5 * time.Minute))

	advice := g.Advice()
	if advice.ReducedExposure {
		t.Error("warnings alone must not reduce exposure")
	}
	if advice.ConfidencePenalty != 10 {
		t.Errorf("expected penalty 10 for two warnings, got %d", advice.ConfidencePenalty)
	}
}

func TestRunCycle_SustainedInstrumentShockKillsSwitch(t *testing.T) {
	mock := broker.NewMockAdapter(137000)
	mock.RefPrices["WIN$"] = 137000
	g := New(testGuardianConfig(), mock, nil, nil, nil, zerolog.Nop())

	t0 := guardianClock()
	g.RunCycle(t0)

	mock.RefPrices["WIN$"] = 137600 // +600 points, past the 500-point threshold
	g.RunCycle(t0.Add(5 * time.Minute))
	if g.Advice().KillSwitch {
		t.Fatal("a single pause-worthy alert must not trip the kill switch")
	}

	g.RunCycle(t0.Add(10 * time.Minute))
	if !g.Advice().KillSwitch {
		t.Error("a sustained instrument shock must trip the kill switch")
	}
}

func TestRunCycle_MacroSignalFlipIsCritical(t *testing.T) {
	mock := broker.NewMockAdapter(137000)
	signal := model.Buy
	macro := func() (model.MacroReading, bool) {
		return model.MacroReading{Score: 40, Signal: signal}, true
	}
	g := New(testGuardianConfig(), mock, nil, nil, macro, zerolog.Nop())

	t0 := guardianClock()
	g.RunCycle(t0)

	signal = model.Sell
	g.RunCycle(t0.Add(5 * time.Minute))

	alerts := g.AlertsSince(t0)
	flip := false
	for _, a := range alerts {
		if a.Kind == "signal flip" && a.Severity == SevCritical && a.Pause {
			flip = true
		}
	}
	if !flip {
		t.Errorf("expected a pause-worthy signal-flip critical, got %+v", alerts)
	}
	if !g.Advice().ReducedExposure {
		t.Error("a signal flip must reduce exposure")
	}
}

func TestRunCycle_MacroShiftWarns(t *testing.T) {
	mock := broker.NewMockAdapter(137000)
	score := 40
	macro := func() (model.MacroReading, bool) {
		return model.MacroReading{Score: score, Signal: model.Buy}, true
	}
	g := New(testGuardianConfig(), mock, nil, nil, macro, zerolog.Nop())

	t0 := guardianClock()
	g.RunCycle(t0)

	score = 20 // 20-point move, past the 15-point shift threshold
	g.RunCycle(t0.Add(5 * time.Minute))

	advice := g.Advice()
	if advice.ReducedExposure {
		t.Error("a macro shift warning alone must not reduce exposure")
	}
	if advice.ConfidencePenalty != 5 {
		t.Errorf("expected penalty 5 for one warning, got %d", advice.ConfidencePenalty)
	}
}

func TestRunCycle_PenaltyCapped(t *testing.T) {
	mock := broker.NewMockAdapter(137000)
	mock.RefPrices["USDBRL"] = 5.2000
	mock.RefPrices["IBOV"] = 131000
	g := New(testGuardianConfig(), mock, nil, nil, nil, zerolog.Nop())

	t0 := guardianClock()
	g.RunCycle(t0)

	mock.RefPrices["USDBRL"] = 5.2400 // +0.77%
	mock.RefPrices["IBOV"] = 129500   // -1.15%
	g.RunCycle(t0.Add(5 * time.Minute))

	if p := g.Advice().ConfidencePenalty; p != 30 {
		t.Errorf("penalty must cap at 30, got %d", p)
	}
}

func TestAlertsSince_Watermark(t *testing.T) {
	mock := broker.NewMockAdapter(137000)
	mock.RefPrices["USDBRL"] = 5.2000
	g := New(testGuardianConfig(), mock, nil, nil, nil, zerolog.Nop())

	t0 := guardianClock()
	g.RunCycle(t0)
	mock.RefPrices["USDBRL"] = 5.2300
	t1 := t0.Add(5 * time.Minute)
	g.RunCycle(t1)

	if n := len(g.AlertsSince(t0)); n == 0 {
		t.Fatal("expected alerts after the first cycle")
	}
	if n := len(g.AlertsSince(t1)); n != 0 {
		t.Errorf("watermark at the alert time must exclude it, got %d", n)
	}
}

func TestRunCycle_ImminentCalendarEventPauses(t *testing.T) {
	cfg := testGuardianConfig()
	cfg.CalendarEvery = 1
	t0 := guardianClock()
	cal := &StaticCalendar{Events: []Event{
		{Name: "FOMC rate decision", Time: t0.Add(20 * time.Minute), Impact: "high"},
	}}
	g := New(cfg, broker.NewMockAdapter(137000), cal, nil, nil, zerolog.Nop())

	g.RunCycle(t0)

	alerts := g.AlertsSince(t0.Add(-time.Second))
	found := false
	for _, a := range alerts {
		if a.Kind == "calendar event" && a.Severity == SevCritical && a.Pause {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a pause-worthy calendar critical, got %+v", alerts)
	}
	if !g.Advice().ReducedExposure {
		t.Error("an imminent high-impact event must reduce exposure")
	}
}

func TestRunCycle_SentimentExtremeWarns(t *testing.T) {
	cfg := testGuardianConfig()
	cfg.SentimentEvery = 1
	g := New(cfg, broker.NewMockAdapter(137000),
		nil, &StaticSentiment{Value: "extreme greed"}, nil, zerolog.Nop())

	g.RunCycle(guardianClock())

	advice := g.Advice()
	if advice.ConfidencePenalty != 5 {
		t.Errorf("expected penalty 5 for the sentiment warning, got %d", advice.ConfidencePenalty)
	}
	if advice.ReducedExposure {
		t.Error("a sentiment warning alone must not reduce exposure")
	}
}

func TestRunCycle_MissingSourcesNeverFatal(t *testing.T) {
	// No reference prices, no macro callback, no calendar or sentiment.
	g := New(testGuardianConfig(), broker.NewMockAdapter(137000), nil, nil, nil, zerolog.Nop())
	g.RunCycle(guardianClock())

	advice := g.Advice()
	if advice.KillSwitch || advice.ReducedExposure || advice.ConfidencePenalty != 0 {
		t.Errorf("empty cycle should publish clean advice, got %+v", advice)
	}
}
