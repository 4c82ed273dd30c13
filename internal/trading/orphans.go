package trading

import (
	"time"

	"IndexPilot/internal/model"
)

// MonitorHedgeOrphans scans broker-side positions for entries the
// local state machine never recorded, or that carry no stop or target.
// Each orphan is logged once per broker id; when configured, orphans
// are force-closed. This covers the partial-failure window where the
// broker acknowledged an order but the process died before recording
// it.
func (m *Manager) MonitorHedgeOrphans(now time.Time) {
	positions, err := m.exec.GetPositions(m.cfg.Symbol)
	if err != nil {
		m.log.Warn().Err(err).Msg("orphan scan: positions unavailable, skipping")
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.rotateDay(now)

	tracked := make(map[string]bool, len(m.open))
	for _, t := range m.open {
		tracked[t.BrokerID] = true
	}

	for _, p := range positions {
		missingProtection := p.Stop == 0 || p.Target == 0
		if tracked[p.BrokerID] && !missingProtection {
			continue
		}
		if !tracked[p.BrokerID] || missingProtection {
			if !m.orphanSeen[p.BrokerID] {
				m.orphanSeen[p.BrokerID] = true
				m.log.Warn().
					Str("broker_id", p.BrokerID).
					Bool("tracked", tracked[p.BrokerID]).
					Bool("missing_protection", missingProtection).
					Msg("hedge orphan detected")
			}
			if m.cfg.OrphanForceClose && !tracked[p.BrokerID] {
				if err := m.exec.ClosePositionByTicket(p.BrokerID); err != nil {
					m.log.Error().Err(err).Str("broker_id", p.BrokerID).Msg("orphan force-close failed")
					continue
				}
				m.log.Warn().Str("broker_id", p.BrokerID).Msg("orphan force-closed")
				m.closed = append(m.closed, model.ClosedTrade{
					Ticket:    "orphan-" + p.BrokerID,
					Direction: p.Direction,
					Entry:     p.Entry,
					Exit:      p.Entry,
					Quantity:  p.Quantity,
					ClosedAt:  now,
					Reason:    model.ExitOrphan,
					Rationale: "untracked broker position",
				})
			}
		}
	}
}
