package config

import (
	"fmt"
	"os"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Broker   BrokerConfig   `yaml:"broker"`
	Macro    MacroConfig    `yaml:"macro"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Trading  TradingConfig  `yaml:"trading"`
	Guardian GuardianConfig `yaml:"guardian"`
	Advisory AdvisoryConfig `yaml:"advisory"`
	Telegram TelegramConfig `yaml:"telegram"`
	Database DatabaseConfig `yaml:"database"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Proxy    string         `yaml:"proxy"`
	LogLevel string         `yaml:"log_level" default:"info"`
	MockMode bool           `yaml:"mock_mode"`
}

// BrokerConfig is the execution and market-data gateway.
type BrokerConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Symbol  string `yaml:"symbol" default:"WIN$"`
}

// MacroConfig points at the external macro score engine.
type MacroConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

// AnalysisConfig holds the scoring and synthesis knobs.
type AnalysisConfig struct {
	TickSize      float64 `yaml:"tick_size" default:"5.0" validate:"gt=0"`
	MacroBuy      int     `yaml:"macro_buy" default:"30"`
	MacroSell     int     `yaml:"macro_sell" default:"-30"`
	MicroBuy      int     `yaml:"micro_buy" default:"4"`
	MicroSell     int     `yaml:"micro_sell" default:"-4"`
	MinConfluence int     `yaml:"min_confluence" default:"2"`
	MaxRegionDist float64 `yaml:"max_region_dist_pct" default:"0.35"`
	DivergenceGap int     `yaml:"divergence_gap" default:"10"`
	DivergenceN   int     `yaml:"divergence_cycles" default:"3"`
	EventAvoidMin int     `yaml:"event_avoid_min" default:"30"`
	StrongMacro   int     `yaml:"strong_macro" default:"50"`
}

// TradingConfig holds the position state machine limits.
type TradingConfig struct {
	MaxPositions     int     `yaml:"max_positions" default:"1" validate:"gte=1"`
	MaxDailyTrades   int     `yaml:"max_daily_trades" default:"5" validate:"gte=1"`
	MaxDailyLoss     float64 `yaml:"max_daily_loss" default:"1500" validate:"gt=0"`
	CooldownMin      int     `yaml:"cooldown_min" default:"30"`
	ConfidenceFloor  int     `yaml:"confidence_floor" default:"60"`
	MinRiskReward    float64 `yaml:"min_risk_reward" default:"1.2"`
	ReducedConfFloor int     `yaml:"reduced_conf_floor" default:"75"`
	ReducedMinRR     float64 `yaml:"reduced_min_rr" default:"2.0"`
	Quantity         float64 `yaml:"quantity" default:"1"`
	PointValue       float64 `yaml:"point_value" default:"0.2"`
	SessionOpen      string  `yaml:"session_open" default:"09:00"`
	SessionClose     string  `yaml:"session_close" default:"17:55"`
	EntryFreezeMin   int     `yaml:"entry_freeze_min" default:"30"`
	TrailATRMult     float64 `yaml:"trail_atr_mult" default:"1.0"`
	TrailActivateATR float64 `yaml:"trail_activate_atr" default:"1.0"`
	OrphanForceClose bool    `yaml:"orphan_force_close"`
}

// GuardianConfig holds the scenario monitor thresholds.
type GuardianConfig struct {
	CurrencySymbol     string  `yaml:"currency_symbol" default:"USDBRL"`
	IndexSymbol        string  `yaml:"index_symbol" default:"IBOV"`
	CurrencyDeltaPct   float64 `yaml:"currency_delta_pct" default:"0.5"`
	IndexDeltaPct      float64 `yaml:"index_delta_pct" default:"0.8"`
	InstrumentDeltaPts float64 `yaml:"instrument_delta_pts" default:"500"`
	CalendarURL        string  `yaml:"calendar_url"`
	SentimentURL       string  `yaml:"sentiment_url"`
}

// AdvisoryConfig locates the directive and feedback files.
type AdvisoryConfig struct {
	DirectivePath string `yaml:"directive_path" default:"data/directive.json"`
	FeedbackPath  string `yaml:"feedback_path" default:"data/feedback.json"`
	ReloadMin     int    `yaml:"reload_min" default:"5"`
}

// TelegramConfig is the operator channel; empty token disables it.
type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

// DatabaseConfig locates the SQLite history; empty path disables it.
type DatabaseConfig struct {
	SQLitePath string `yaml:"sqlite_path" default:"data/indexpilot.db"`
}

// MetricsConfig exposes Prometheus; empty addr disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr" default:":9090"`
}

// ScheduleConfig holds the cron cadences.
type ScheduleConfig struct {
	AnalysisCron string `yaml:"analysis_cron" default:"0 */2 * * * *"`
	GuardianCron string `yaml:"guardian_cron" default:"30 */2 * * * *"`
	RunOnStart   bool   `yaml:"run_on_start"`
}

// Load reads config from a YAML file, applies defaults, then applies
// environment variable overrides and validates.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("BROKER_BASE_URL"); v != "" {
		cfg.Broker.BaseURL = v
	}
	if v := os.Getenv("BROKER_API_KEY"); v != "" {
		cfg.Broker.APIKey = v
	}
	if v := os.Getenv("MACRO_BASE_URL"); v != "" {
		cfg.Macro.BaseURL = v
	}
	if v := os.Getenv("MACRO_API_KEY"); v != "" {
		cfg.Macro.APIKey = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if os.Getenv("MOCK_MODE") == "1" {
		cfg.MockMode = true
	}
	if os.Getenv("RUN_ON_START") == "1" {
		cfg.Schedule.RunOnStart = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks structural constraints and the cross-field rules the
// tag syntax cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	if !c.MockMode && c.Broker.BaseURL == "" {
		return fmt.Errorf("broker.base_url is required outside mock mode")
	}
	if c.Analysis.MacroBuy <= c.Analysis.MacroSell {
		return fmt.Errorf("analysis.macro_buy must exceed analysis.macro_sell")
	}
	if c.Trading.ReducedConfFloor < c.Trading.ConfidenceFloor {
		return fmt.Errorf("trading.reduced_conf_floor must not be below trading.confidence_floor")
	}
	return nil
}
