package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	CyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "indexpilot_cycles_total",
		Help: "Analysis cycles completed.",
	})
	CycleErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "indexpilot_cycle_errors_total",
		Help: "Analysis cycles that degraded or failed.",
	})
	OpportunitiesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "indexpilot_opportunities_total",
		Help: "Opportunities emitted, by direction.",
	}, []string{"direction"})
	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "indexpilot_trades_total",
		Help: "Trades closed, by exit reason.",
	}, []string{"reason"})
	GuardianAlertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "indexpilot_guardian_alerts_total",
		Help: "Guardian alerts raised, by severity.",
	}, []string{"severity"})

	MacroScore = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "indexpilot_macro_score",
		Help: "Smoothed macro score of the latest cycle.",
	})
	MicroScore = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "indexpilot_micro_score",
		Help: "Micro score of the latest cycle.",
	})
	OpenPositions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "indexpilot_open_positions",
		Help: "Currently open positions.",
	})
	DailyPnL = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "indexpilot_daily_pnl",
		Help: "Realized P&L for the current trading day.",
	})
	KillSwitchActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "indexpilot_kill_switch_active",
		Help: "1 while the guardian kill switch is engaged.",
	})
)

// Serve exposes /metrics on addr. Runs until the listener fails;
// intended to be launched in its own goroutine.
func Serve(addr string, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info().Str("addr", addr).Msg("metrics listener started")
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error().Err(err).Msg("metrics listener stopped")
	}
}
