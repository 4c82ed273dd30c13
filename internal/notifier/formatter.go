package notifier

import (
	"fmt"
	"strings"
	"time"

	"IndexPilot/internal/model"
)

// Regions shown in a cycle report before truncation.
const reportRegions = 6

// FormatCycleReport formats one analysis cycle into a Telegram message.
func FormatCycleReport(res *model.CycleResult) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("📊 <b>Cycle %d</b> | %s\n\n", res.ID, res.Time.Format("15:04:05")))
	b.WriteString(fmt.Sprintf("Price: %.1f | VWAP: %.1f | ATR: %.1f\n", res.Price, res.VWAP, res.ATR))
	b.WriteString(fmt.Sprintf("Macro: %+d (smoothed %+.1f, %s conf %d)\n",
		res.MacroRaw, res.MacroSmoothed, res.MacroSignal, res.MacroConf))
	b.WriteString(fmt.Sprintf("Micro: %+d | Trend: %s\n\n", res.MicroScore, res.Trend))

	if len(res.Contributions) > 0 {
		b.WriteString("📈 <b>Score breakdown:</b>\n")
		for _, c := range res.Contributions {
			if c.Score == 0 {
				continue
			}
			b.WriteString(fmt.Sprintf("  %s: %+d (%s)\n", c.Name, c.Score, c.Commentary))
		}
		b.WriteString("\n")
	}

	if len(res.Regions) > 0 {
		b.WriteString("🗺 <b>Nearest regions:</b>\n")
		regions := res.Regions
		if len(regions) > reportRegions {
			regions = regions[:reportRegions]
		}
		for _, r := range regions {
			b.WriteString(fmt.Sprintf("  %.1f %s (x%d, %+.2f%%)\n",
				r.Price, r.Label, r.Confluence, r.DistancePct))
		}
		b.WriteString("\n")
	}

	if len(res.Opportunities) > 0 {
		b.WriteString("🎯 <b>Opportunities:</b>\n")
		for _, o := range res.Opportunities {
			b.WriteString(fmt.Sprintf("  %s @ %.1f | stop %.1f | target %.1f | R:R %.2f | conf %d\n",
				o.Direction, o.Entry, o.Stop, o.Target, o.RiskReward, o.Confidence))
			b.WriteString(fmt.Sprintf("    %s\n", o.Rationale))
		}
	} else {
		b.WriteString("No opportunities this cycle.\n")
	}

	if len(res.Rejections) > 0 {
		b.WriteString("\n🚫 <b>Rejections:</b>\n")
		for _, r := range res.Rejections {
			b.WriteString(fmt.Sprintf("  %s\n", r))
		}
	}

	return b.String()
}

// FormatStatus formats the live position and daily P&L block for the
// /status command.
func FormatStatus(open []model.OpenTrade, dailyTrades int, dailyPnL float64, paused bool) string {
	var b strings.Builder
	b.WriteString("📦 <b>Status</b>\n\n")
	if paused {
		b.WriteString("⏸ Trading PAUSED\n")
	}
	b.WriteString(fmt.Sprintf("Trades today: %d\n", dailyTrades))
	b.WriteString(fmt.Sprintf("Realized P&amp;L today: %+.2f\n\n", dailyPnL))

	if len(open) == 0 {
		b.WriteString("No open positions.\n")
		return b.String()
	}
	b.WriteString("<b>Open positions:</b>\n")
	for _, t := range open {
		stop := t.Stop
		if t.TrailingLive {
			stop = t.TrailingStop
		}
		b.WriteString(fmt.Sprintf("  %s %.0f @ %.1f | stop %.1f | target %.1f | uPnL %+.2f\n",
			t.Direction, t.Quantity, t.Entry, stop, t.Target, t.UnrealizedPnL))
	}
	return b.String()
}

// FormatTradeClosed formats a single closed-trade notification.
func FormatTradeClosed(t *model.ClosedTrade) string {
	icon := "✅"
	if t.RealizedPnL < 0 {
		icon = "🔻"
	}
	// UUID tickets are shortened; orphan-ledger tickets can be shorter
	// than the cut.
	ticket := t.Ticket
	if len(ticket) > 8 {
		ticket = ticket[:8]
	}
	return fmt.Sprintf("%s <b>%s closed</b> (%s)\n%s %.0f @ %.1f → %.1f\nP&amp;L: %+.2f | held %s",
		icon, ticket, t.Reason, t.Direction, t.Quantity, t.Entry, t.Exit,
		t.RealizedPnL, t.Duration().Round(time.Second))
}

// FormatSessionSummary formats the end-of-day recap.
func FormatSessionSummary(closed []model.ClosedTrade, dailyPnL float64) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📅 <b>Session summary</b>\n\nTrades: %d\n", len(closed)))
	wins := 0
	for _, t := range closed {
		if t.RealizedPnL > 0 {
			wins++
		}
	}
	if len(closed) > 0 {
		b.WriteString(fmt.Sprintf("Wins: %d (%.0f%%)\n", wins, float64(wins)/float64(len(closed))*100))
	}
	b.WriteString(fmt.Sprintf("Realized P&amp;L: %+.2f\n", dailyPnL))
	return b.String()
}
