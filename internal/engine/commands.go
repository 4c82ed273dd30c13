package engine

import (
	"strings"
	"time"

	"IndexPilot/internal/notifier"
)

// HandleCommand serves the operator surface. Unknown input yields an
// empty reply, which the poller drops.
func (e *Engine) HandleCommand(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ""
	}
	switch strings.ToLower(fields[0]) {
	case "/status":
		now := time.Now()
		trades, pnl := e.manager.DailyStats(now)
		e.mu.Lock()
		paused := e.paused
		e.mu.Unlock()
		return notifier.FormatStatus(e.manager.OpenTrades(), trades, pnl, paused)

	case "/report":
		e.mu.Lock()
		res := e.lastResult
		e.mu.Unlock()
		if res == nil {
			return "No cycle has run yet."
		}
		return notifier.FormatCycleReport(res)

	case "/pause":
		e.manager.Pause()
		e.mu.Lock()
		e.paused = true
		e.mu.Unlock()
		return "⏸ Trading paused. Open positions keep being managed."

	case "/resume":
		e.manager.Resume()
		e.mu.Lock()
		e.paused = false
		e.mu.Unlock()
		return "▶️ Trading resumed."

	case "/help", "/start":
		return "Commands:\n/status - positions and daily P&L\n/report - last cycle report\n/pause - stop new entries\n/resume - allow entries again"
	}
	return ""
}
