package trading

import "IndexPilot/internal/model"

// advanceTrailing moves the trailing stop monotonically in the trade's
// favor. The stop never loosens, and never crosses the entry price
// until the position has moved favorably by at least
// TrailActivateATR x ATR. Callers must hold mu.
func (m *Manager) advanceTrailing(t *model.OpenTrade, price, atr float64) {
	if atr <= 0 {
		return
	}

	if t.Direction == model.Buy {
		if price > t.HighWater {
			t.HighWater = price
		}
		if !t.TrailingLive && t.HighWater-t.Entry >= m.cfg.TrailActivateATR*atr {
			t.TrailingLive = true
			m.log.Info().Str("ticket", t.Ticket).Float64("high_water", t.HighWater).Msg("trailing stop activated")
		}
		if !t.TrailingLive {
			return
		}
		newStop := t.HighWater - m.cfg.TrailATRMult*atr
		if newStop > t.TrailingStop {
			m.log.Debug().
				Str("ticket", t.Ticket).
				Float64("from", t.TrailingStop).
				Float64("to", newStop).
				Msg("trailing stop advanced")
			t.TrailingStop = newStop
		}
		return
	}

	if price < t.LowWater {
		t.LowWater = price
	}
	if !t.TrailingLive && t.Entry-t.LowWater >= m.cfg.TrailActivateATR*atr {
		t.TrailingLive = true
		m.log.Info().Str("ticket", t.Ticket).Float64("low_water", t.LowWater).Msg("trailing stop activated")
	}
	if !t.TrailingLive {
		return
	}
	newStop := t.LowWater + m.cfg.TrailATRMult*atr
	if newStop < t.TrailingStop {
		m.log.Debug().
			Str("ticket", t.Ticket).
			Float64("from", t.TrailingStop).
			Float64("to", newStop).
			Msg("trailing stop advanced")
		t.TrailingStop = newStop
	}
}
