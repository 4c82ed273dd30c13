package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"IndexPilot/internal/broker"
	"IndexPilot/internal/config"
	"IndexPilot/internal/engine"
	"IndexPilot/internal/guardian"
	"IndexPilot/internal/macro"
	"IndexPilot/internal/metrics"
	"IndexPilot/internal/model"
	"IndexPilot/internal/notifier"
	"IndexPilot/internal/recorder"
	"IndexPilot/internal/region"
	sigscore "IndexPilot/internal/signal"
	"IndexPilot/internal/store"
	"IndexPilot/internal/synth"
	"IndexPilot/internal/trading"

	"github.com/rs/zerolog"
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(lvl)
	}
	logger.Info().Str("config", cfgPath).Msg("IndexPilot starting")

	// Adapter: real broker gateway, or the mock for dry runs.
	var adapter broker.Adapter
	if cfg.MockMode {
		mock := broker.NewMockAdapter(135000)
		mock.RefPrices[cfg.Guardian.CurrencySymbol] = 5.20
		mock.RefPrices[cfg.Guardian.IndexSymbol] = 44000
		mock.RefPrices[cfg.Broker.Symbol] = 135000
		adapter = mock
	} else {
		adapter = broker.NewRESTAdapter(cfg.Broker.BaseURL, cfg.Broker.APIKey, cfg.Proxy)
	}
	logger.Info().Str("adapter", adapter.Name()).Str("symbol", cfg.Broker.Symbol).Msg("broker ready")

	var macroEngine macro.Engine
	if cfg.Macro.BaseURL != "" {
		macroEngine = macro.NewRESTEngine(cfg.Macro.BaseURL, cfg.Macro.APIKey)
	} else {
		logger.Warn().Msg("no macro engine configured, using neutral static reading")
		macroEngine = &macro.StaticEngine{Reading: model.MacroReading{Signal: model.Neutral}}
	}

	var notify notifier.Notifier
	var telegram *notifier.TelegramNotifier
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "" {
		telegram = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, logger)
		notify = telegram
	} else {
		logger.Warn().Msg("telegram not configured, notifications disabled")
		notify = notifier.NoopNotifier{}
	}

	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("sqlite recorder unavailable, using noop")
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
			defer sr.Close()
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}

	aggregator := sigscore.NewAggregator(sigscore.Thresholds{
		MacroBuy:  cfg.Analysis.MacroBuy,
		MacroSell: cfg.Analysis.MacroSell,
		MicroBuy:  cfg.Analysis.MicroBuy,
		MicroSell: cfg.Analysis.MicroSell,
	}, logger)

	synthesizer := synth.NewSynthesizer(synth.Config{
		BuyThreshold:    cfg.Analysis.MacroBuy,
		SellThreshold:   cfg.Analysis.MacroSell,
		MicroBuy:        cfg.Analysis.MicroBuy,
		MicroSell:       cfg.Analysis.MicroSell,
		TickSize:        cfg.Analysis.TickSize,
		MinConfluence:   cfg.Analysis.MinConfluence,
		MaxRegionDist:   cfg.Analysis.MaxRegionDist,
		DivergenceGap:   cfg.Analysis.DivergenceGap,
		DivergenceAfter: cfg.Analysis.DivergenceN,
		EventAvoidMin:   cfg.Analysis.EventAvoidMin,
		StrongMacro:     cfg.Analysis.StrongMacro,
	}, logger)

	manager := trading.NewManager(trading.Config{
		Symbol:           cfg.Broker.Symbol,
		MaxPositions:     cfg.Trading.MaxPositions,
		MaxDailyTrades:   cfg.Trading.MaxDailyTrades,
		MaxDailyLoss:     cfg.Trading.MaxDailyLoss,
		CooldownMin:      cfg.Trading.CooldownMin,
		ConfidenceFloor:  cfg.Trading.ConfidenceFloor,
		MinRiskReward:    cfg.Trading.MinRiskReward,
		ReducedConfFloor: cfg.Trading.ReducedConfFloor,
		ReducedMinRR:     cfg.Trading.ReducedMinRR,
		Quantity:         cfg.Trading.Quantity,
		PointValue:       cfg.Trading.PointValue,
		SessionClose:     cfg.Trading.SessionClose,
		EntryFreezeMin:   cfg.Trading.EntryFreezeMin,
		TrailATRMult:     cfg.Trading.TrailATRMult,
		TrailActivateATR: cfg.Trading.TrailActivateATR,
		OrphanForceClose: cfg.Trading.OrphanForceClose,
	}, adapter, logger)

	eng := engine.New(cfg, engine.Deps{
		Adapter:    adapter,
		Macro:      macroEngine,
		Aggregator: aggregator,
		Mapper:     region.NewMapper(cfg.Analysis.TickSize, logger),
		Synth:      synthesizer,
		Manager:    manager,
		Directives: store.NewDirectiveStore(cfg.Advisory.DirectivePath, logger),
		Feedback:   store.NewFeedbackStore(cfg.Advisory.FeedbackPath, logger),
		Recorder:   rec,
		Notifier:   notify,
	}, logger)

	guardCfg := guardian.DefaultConfig(cfg.Guardian.CurrencySymbol, cfg.Guardian.IndexSymbol, cfg.Broker.Symbol)
	guardCfg.CurrencyDeltaPct = cfg.Guardian.CurrencyDeltaPct
	guardCfg.IndexDeltaPct = cfg.Guardian.IndexDeltaPct
	guardCfg.InstrumentDeltaPts = cfg.Guardian.InstrumentDeltaPts
	var calendar guardian.Calendar
	if cfg.Guardian.CalendarURL != "" {
		calendar = guardian.NewRESTCalendar(cfg.Guardian.CalendarURL)
	}
	var sentiment guardian.Sentiment
	if cfg.Guardian.SentimentURL != "" {
		sentiment = guardian.NewRESTSentiment(cfg.Guardian.SentimentURL)
	}
	eng.SetGuardian(guardian.New(guardCfg, adapter, calendar, sentiment, eng.LastMacro, logger))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Metrics.Addr != "" {
		go metrics.Serve(cfg.Metrics.Addr, logger)
	}
	if telegram != nil {
		go telegram.StartPolling(ctx, eng.HandleCommand)
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info().Msg("shutdown signal received, stopping")
		cancel()
	}()

	if err := eng.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("engine start")
	}
	logger.Info().Msg("IndexPilot stopped")
}
