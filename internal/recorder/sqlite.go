package recorder

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"IndexPilot/internal/guardian"
	"IndexPilot/internal/model"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// Top regions persisted per cycle. The full set can be reconstructed
// from the inputs; storage keeps only the ones a reviewer looks at.
const regionsPerCycle = 10

// SQLiteRecorder persists cycle history to a SQLite database.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	log zerolog.Logger
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, logger zerolog.Logger) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode for better concurrent read performance (dashboards read while the bot writes).
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, log: logger.With().Str("component", "recorder").Logger()}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	r.log.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS cycles (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp      INTEGER NOT NULL,
			price          REAL,
			macro_raw      INTEGER,
			macro_smoothed REAL,
			macro_signal   TEXT,
			macro_conf     INTEGER,
			micro_score    INTEGER,
			trend          TEXT,
			vwap           REAL,
			atr            REAL,
			contributions  TEXT,
			rejections     TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cycles_ts ON cycles(timestamp)`,

		`CREATE TABLE IF NOT EXISTS cycle_regions (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			cycle_id     INTEGER NOT NULL,
			price        REAL,
			label        TEXT,
			kind         TEXT,
			confluence   INTEGER,
			distance_pct REAL,
			timeframe    TEXT,
			volume_tier  INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_regions_cycle ON cycle_regions(cycle_id)`,

		`CREATE TABLE IF NOT EXISTS cycle_opportunities (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			cycle_id    INTEGER NOT NULL,
			direction   TEXT,
			entry       REAL,
			stop        REAL,
			target      REAL,
			risk_reward REAL,
			confidence  INTEGER,
			tags        TEXT,
			rationale   TEXT,
			region      TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_opps_cycle ON cycle_opportunities(cycle_id)`,

		`CREATE TABLE IF NOT EXISTS closed_trades (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			ticket       TEXT,
			direction    TEXT,
			entry        REAL,
			exit         REAL,
			quantity     REAL,
			realized_pnl REAL,
			opened_at    INTEGER,
			closed_at    INTEGER,
			reason       TEXT,
			rationale    TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_closed ON closed_trades(closed_at)`,

		`CREATE TABLE IF NOT EXISTS guardian_alerts (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL,
			severity  TEXT,
			kind      TEXT,
			message   TEXT,
			pause     INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_ts ON guardian_alerts(timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// RecordCycle inserts one cycle row plus its top regions and every
// opportunity, and sets res.ID to the assigned cycle id.
func (r *SQLiteRecorder) RecordCycle(res *model.CycleResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	contributions, err := json.Marshal(res.Contributions)
	if err != nil {
		return fmt.Errorf("marshal contributions: %w", err)
	}
	rejections, err := json.Marshal(res.Rejections)
	if err != nil {
		return fmt.Errorf("marshal rejections: %w", err)
	}

	result, err := r.db.Exec(`INSERT INTO cycles
		(timestamp, price, macro_raw, macro_smoothed, macro_signal, macro_conf,
		 micro_score, trend, vwap, atr, contributions, rejections)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		res.Time.Unix(), res.Price, res.MacroRaw, res.MacroSmoothed,
		string(res.MacroSignal), res.MacroConf, res.MicroScore,
		string(res.Trend), res.VWAP, res.ATR,
		string(contributions), string(rejections),
	)
	if err != nil {
		return fmt.Errorf("insert cycle: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("cycle id: %w", err)
	}
	res.ID = id

	regions := res.Regions
	if len(regions) > regionsPerCycle {
		regions = regions[:regionsPerCycle]
	}
	for _, reg := range regions {
		if _, err := r.db.Exec(`INSERT INTO cycle_regions
			(cycle_id, price, label, kind, confluence, distance_pct, timeframe, volume_tier)
			VALUES (?,?,?,?,?,?,?,?)`,
			id, reg.Price, reg.Label, string(reg.Kind), reg.Confluence,
			reg.DistancePct, string(reg.Timeframe), reg.VolumeTier,
		); err != nil {
			return fmt.Errorf("insert region: %w", err)
		}
	}

	for _, opp := range res.Opportunities {
		if _, err := r.db.Exec(`INSERT INTO cycle_opportunities
			(cycle_id, direction, entry, stop, target, risk_reward, confidence, tags, rationale, region)
			VALUES (?,?,?,?,?,?,?,?,?,?)`,
			id, string(opp.Direction), opp.Entry, opp.Stop, opp.Target,
			opp.RiskReward, opp.Confidence, opp.Tags.String(), opp.Rationale, opp.Region,
		); err != nil {
			return fmt.Errorf("insert opportunity: %w", err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordClosedTrade(trade *model.ClosedTrade) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO closed_trades
		(ticket, direction, entry, exit, quantity, realized_pnl, opened_at, closed_at, reason, rationale)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		trade.Ticket, string(trade.Direction), trade.Entry, trade.Exit,
		trade.Quantity, trade.RealizedPnL,
		trade.OpenedAt.Unix(), trade.ClosedAt.Unix(),
		string(trade.Reason), trade.Rationale,
	)
	return err
}

func (r *SQLiteRecorder) RecordGuardianAlert(alert *guardian.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	pause := 0
	if alert.Pause {
		pause = 1
	}
	_, err := r.db.Exec(`INSERT INTO guardian_alerts
		(timestamp, severity, kind, message, pause)
		VALUES (?,?,?,?,?)`,
		alert.Time.Unix(), string(alert.Severity), alert.Kind, alert.Message, pause,
	)
	return err
}

func (r *SQLiteRecorder) Close() error {
	r.log.Info().Msg("closing sqlite recorder")
	return r.db.Close()
}
