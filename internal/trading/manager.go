package trading

import (
	"fmt"
	"math"
	"sync"
	"time"

	"IndexPilot/internal/broker"
	"IndexPilot/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// State is the manager's lifecycle state for the single instrument.
type State string

const (
	StateIdle       State = "idle"
	StateEvaluating State = "evaluating"
	StateOpen       State = "open"
	StateClosing    State = "closing"
)

// Config holds the trading manager limits.
type Config struct {
	Symbol           string
	MaxPositions     int
	MaxDailyTrades   int
	MaxDailyLoss     float64 // points of realized loss per day
	CooldownMin      int     // same-direction cooldown after a stop-loss
	ConfidenceFloor  int
	MinRiskReward    float64
	ReducedConfFloor int     // stricter floor for reduced-exposure opportunities
	ReducedMinRR     float64
	Quantity         float64 // contracts per entry
	PointValue       float64 // currency per point per contract
	SessionClose     string  // HH:MM
	EntryFreezeMin   int     // no entries this close to session end
	TrailATRMult     float64
	TrailActivateATR float64
	OrphanForceClose bool
}

// Manager gates, opens, tracks, trails and closes positions. Daily
// counters rotate lazily: tradingDay is checked at the top of every
// entry point rather than by a scheduled job, which is intentional.
type Manager struct {
	mu   sync.Mutex
	cfg  Config
	exec broker.Execution
	log  zerolog.Logger

	tradingDay   string
	dailyTrades  int
	dailyPnL     float64
	paused       bool
	open         []*model.OpenTrade
	closed       []model.ClosedTrade
	lastStopLoss map[model.Direction]time.Time
	orphanSeen   map[string]bool
}

// NewManager creates a Manager bound to an execution venue.
func NewManager(cfg Config, exec broker.Execution, logger zerolog.Logger) *Manager {
	return &Manager{
		cfg:          cfg,
		exec:         exec,
		log:          logger.With().Str("component", "trading").Logger(),
		lastStopLoss: make(map[model.Direction]time.Time),
		orphanSeen:   make(map[string]bool),
	}
}

// rotateDay resets the daily counters on the first call of a new
// calendar day. Callers must hold mu.
func (m *Manager) rotateDay(now time.Time) {
	day := now.Format("2006-01-02")
	if day == m.tradingDay {
		return
	}
	if m.tradingDay != "" {
		m.log.Info().
			Int("trades", m.dailyTrades).
			Float64("pnl", m.dailyPnL).
			Msg("rotating trading day, counters reset")
	}
	m.tradingDay = day
	m.dailyTrades = 0
	m.dailyPnL = 0
}

// State reports the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.open) > 0 {
		return StateOpen
	}
	return StateIdle
}

// CanTrade reports whether a new entry is allowed right now, with the
// blocking reason when it is not.
func (m *Manager) CanTrade(now time.Time) (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rotateDay(now)

	if m.paused {
		return false, "manager paused by operator"
	}
	if len(m.open) >= m.cfg.MaxPositions {
		return false, fmt.Sprintf("max positions reached (%d/%d)", len(m.open), m.cfg.MaxPositions)
	}
	if m.dailyTrades >= m.cfg.MaxDailyTrades {
		return false, fmt.Sprintf("daily trade cap reached (%d/%d)", m.dailyTrades, m.cfg.MaxDailyTrades)
	}
	if m.dailyPnL <= -m.cfg.MaxDailyLoss {
		return false, fmt.Sprintf("daily loss limit reached (%.0f)", m.dailyPnL)
	}
	if m.inEntryFreeze(now) {
		return false, "inside end-of-session entry freeze"
	}
	return true, ""
}

// inEntryFreeze reports whether now is within EntryFreezeMin minutes
// of session close. Callers must hold mu.
func (m *Manager) inEntryFreeze(now time.Time) bool {
	closeAt, err := time.ParseInLocation("15:04", m.cfg.SessionClose, now.Location())
	if err != nil {
		return false
	}
	closeAt = time.Date(now.Year(), now.Month(), now.Day(),
		closeAt.Hour(), closeAt.Minute(), 0, 0, now.Location())
	until := closeAt.Sub(now)
	return until >= 0 && until <= time.Duration(m.cfg.EntryFreezeMin)*time.Minute
}

// EvaluateOpportunity applies the per-trade gates to a synthesized
// opportunity: confidence and risk:reward floors (stricter under
// reduced exposure), the same-direction stop-loss cooldown, directive
// trade-count and aggressiveness floors, and the no-hedging rule.
func (m *Manager) EvaluateOpportunity(now time.Time, opp model.Opportunity, d *model.Directive) (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rotateDay(now)

	confFloor := m.cfg.ConfidenceFloor
	minRR := m.cfg.MinRiskReward
	if opp.Tags.Has(model.TagReducedExposure) {
		confFloor = m.cfg.ReducedConfFloor
		minRR = m.cfg.ReducedMinRR
	}
	if d != nil && d.ActiveOn(now) {
		if d.MaxTrades > 0 && m.dailyTrades >= d.MaxTrades {
			return false, fmt.Sprintf("directive trade cap reached (%d/%d)", m.dailyTrades, d.MaxTrades)
		}
		if d.Aggressiveness == model.AggrLow && confFloor < m.cfg.ConfidenceFloor+10 {
			confFloor = m.cfg.ConfidenceFloor + 10
		}
	}

	if opp.Confidence < confFloor {
		return false, fmt.Sprintf("confidence %d below floor %d", opp.Confidence, confFloor)
	}
	if opp.RiskReward < minRR {
		return false, fmt.Sprintf("risk:reward %.2f below floor %.2f", opp.RiskReward, minRR)
	}

	if last, ok := m.lastStopLoss[opp.Direction]; ok {
		cooldown := time.Duration(m.cfg.CooldownMin) * time.Minute
		if now.Sub(last) < cooldown {
			return false, fmt.Sprintf("%s cooldown after stop-loss, %s remaining",
				opp.Direction, (cooldown - now.Sub(last)).Round(time.Second))
		}
	}

	for _, t := range m.open {
		if t.Direction == opp.Direction.Opposite() {
			return false, "opposite-direction position already open"
		}
	}
	return true, ""
}

// ExecuteEntry submits the entry order and records the open trade only
// on a non-empty acknowledgment. A failed or unacknowledged order
// leaves the state machine unchanged. An active directive may shrink
// the contract count through its position-size percentage.
func (m *Manager) ExecuteEntry(now time.Time, opp model.Opportunity, d *model.Directive) (*model.OpenTrade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rotateDay(now)

	qty := m.entryQuantity(now, d)
	order := broker.Order{
		Symbol:    m.cfg.Symbol,
		Direction: opp.Direction,
		Quantity:  qty,
		Price:     opp.Entry,
		Stop:      opp.Stop,
		Target:    opp.Target,
		Comment:   opp.Tags.String(),
	}
	brokerID, err := m.exec.SendOrder(order)
	if err != nil {
		return nil, fmt.Errorf("send entry order: %w", err)
	}
	if brokerID == "" {
		return nil, fmt.Errorf("entry order not acknowledged")
	}

	trade := &model.OpenTrade{
		Ticket:       uuid.NewString(),
		BrokerID:     brokerID,
		Direction:    opp.Direction,
		Entry:        opp.Entry,
		Stop:         opp.Stop,
		Target:       opp.Target,
		Quantity:     qty,
		OpenedAt:     now,
		TrailingStop: opp.Stop,
		HighWater:    opp.Entry,
		LowWater:     opp.Entry,
		Rationale:    opp.Rationale,
		Tags:         opp.Tags,
	}
	m.open = append(m.open, trade)
	m.dailyTrades++

	m.log.Info().
		Str("ticket", trade.Ticket).
		Str("broker_id", brokerID).
		Str("direction", string(opp.Direction)).
		Float64("entry", opp.Entry).
		Float64("stop", opp.Stop).
		Float64("target", opp.Target).
		Int("confidence", opp.Confidence).
		Msg("position opened")
	return trade, nil
}

// entryQuantity scales the configured contract count by an active
// directive's position-size percentage, floored to whole contracts and
// never below one. Percentages at or above 100 leave the size alone;
// the directive can only shrink exposure. Callers must hold mu.
func (m *Manager) entryQuantity(now time.Time, d *model.Directive) float64 {
	qty := m.cfg.Quantity
	if d != nil && d.ActiveOn(now) && d.PositionSizePct > 0 && d.PositionSizePct < 100 {
		qty = math.Floor(qty * d.PositionSizePct / 100)
		if qty < 1 {
			qty = 1
		}
	}
	return qty
}

// ManagePositions recomputes unrealized P&L for every open trade,
// closes on stop or target touch and otherwise advances the trailing
// stop. Returns the trades closed this pass.
func (m *Manager) ManagePositions(now time.Time, price, atr float64) []model.ClosedTrade {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rotateDay(now)

	var closedNow []model.ClosedTrade
	remaining := m.open[:0]
	for _, t := range m.open {
		t.UnrealizedPnL = m.pointsPnL(t, price) * m.cfg.PointValue * t.Quantity

		if reason, hit := stopOrTarget(t, price); hit {
			if ct, err := m.closeTrade(t, price, now, reason); err != nil {
				m.log.Error().Err(err).Str("ticket", t.Ticket).Msg("close failed, keeping position")
				remaining = append(remaining, t)
			} else {
				closedNow = append(closedNow, ct)
			}
			continue
		}

		m.advanceTrailing(t, price, atr)
		remaining = append(remaining, t)
	}
	m.open = remaining
	return closedNow
}

// CloseAll force-closes every open position (operator stop or session
// end). Best-effort: a close failure is logged and the trade stays.
func (m *Manager) CloseAll(now time.Time, price float64, reason model.ExitReason) []model.ClosedTrade {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rotateDay(now)

	var closedNow []model.ClosedTrade
	remaining := m.open[:0]
	for _, t := range m.open {
		if ct, err := m.closeTrade(t, price, now, reason); err != nil {
			m.log.Error().Err(err).Str("ticket", t.Ticket).Msg("force close failed")
			remaining = append(remaining, t)
		} else {
			closedNow = append(closedNow, ct)
		}
	}
	m.open = remaining
	return closedNow
}

// closeTrade submits the broker close and appends the ledger entry.
// Callers must hold mu.
func (m *Manager) closeTrade(t *model.OpenTrade, price float64, now time.Time, reason model.ExitReason) (model.ClosedTrade, error) {
	if err := m.exec.ClosePositionByTicket(t.BrokerID); err != nil {
		return model.ClosedTrade{}, err
	}
	pnl := m.pointsPnL(t, price) * m.cfg.PointValue * t.Quantity
	ct := model.ClosedTrade{
		Ticket:      t.Ticket,
		Direction:   t.Direction,
		Entry:       t.Entry,
		Exit:        price,
		Quantity:    t.Quantity,
		RealizedPnL: pnl,
		OpenedAt:    t.OpenedAt,
		ClosedAt:    now,
		Reason:      reason,
		Rationale:   t.Rationale,
	}
	m.closed = append(m.closed, ct)
	m.dailyPnL += pnl
	if reason == model.ExitStopLoss {
		m.lastStopLoss[t.Direction] = now
	}
	m.log.Info().
		Str("ticket", t.Ticket).
		Str("reason", string(reason)).
		Float64("pnl", pnl).
		Dur("held", ct.Duration()).
		Msg("position closed")
	return ct, nil
}

// pointsPnL is the favorable excursion in points, signed.
func (m *Manager) pointsPnL(t *model.OpenTrade, price float64) float64 {
	if t.Direction == model.Buy {
		return price - t.Entry
	}
	return t.Entry - price
}

// stopOrTarget reports a touched exit level.
func stopOrTarget(t *model.OpenTrade, price float64) (model.ExitReason, bool) {
	if t.Direction == model.Buy {
		if price <= t.TrailingStop {
			return model.ExitStopLoss, true
		}
		if price >= t.Target {
			return model.ExitTakeProfit, true
		}
	} else {
		if price >= t.TrailingStop {
			return model.ExitStopLoss, true
		}
		if price <= t.Target {
			return model.ExitTakeProfit, true
		}
	}
	return "", false
}

// Pause stops new entries until Resume; open positions keep being
// managed.
func (m *Manager) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = true
	m.log.Warn().Msg("trading paused")
}

// Resume lifts an operator pause.
func (m *Manager) Resume() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = false
	m.log.Info().Msg("trading resumed")
}

// OpenTrades returns copies of the open positions.
func (m *Manager) OpenTrades() []model.OpenTrade {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.OpenTrade, len(m.open))
	for i, t := range m.open {
		out[i] = *t
	}
	return out
}

// ClosedTrades returns the closed-trade ledger.
func (m *Manager) ClosedTrades() []model.ClosedTrade {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.ClosedTrade, len(m.closed))
	copy(out, m.closed)
	return out
}

// DailyStats returns today's trade count and realized P&L.
func (m *Manager) DailyStats(now time.Time) (trades int, pnl float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rotateDay(now)
	return m.dailyTrades, m.dailyPnL
}
