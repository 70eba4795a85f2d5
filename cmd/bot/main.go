package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vikar/fx_cascade_trader/internal/config"
	"github.com/vikar/fx_cascade_trader/internal/domain"
	"github.com/vikar/fx_cascade_trader/internal/infrastructure/advisor"
	"github.com/vikar/fx_cascade_trader/internal/infrastructure/logger"
	"github.com/vikar/fx_cascade_trader/internal/infrastructure/metrics"
	"github.com/vikar/fx_cascade_trader/internal/infrastructure/storage"
	"github.com/vikar/fx_cascade_trader/internal/infrastructure/tradelog"
	"github.com/vikar/fx_cascade_trader/internal/infrastructure/venue"
	"github.com/vikar/fx_cascade_trader/internal/usecase"
	"github.com/vikar/fx_cascade_trader/internal/web"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the configuration file")
	flag.Parse()

	// 1. Load Config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Init Logger
	log, err := logger.NewLogger(cfg.Logging.Level)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// 3. Init Storage
	store, err := storage.NewSQLiteStore(cfg.Storage.DBPath)
	if err != nil {
		log.Fatal("Failed to init sqlite", zap.Error(err))
	}
	defer store.Close()

	sink := tradelog.NewJSONLSink(cfg.Storage.TradeLogPath)
	defer sink.Close()

	// 4. Init Venue
	var mkt domain.Venue
	switch cfg.Venue.Adapter {
	case "", "paper":
		mkt = venue.NewPaperVenue(cfg.Venue.StartingBalance, "USD", cfg.Venue.Seed)
	default:
		log.Fatal("Unknown venue adapter", zap.String("adapter", cfg.Venue.Adapter))
	}

	// 5. Init Metrics
	promSet := metrics.NewSet()

	// 6. Init Services
	trades := usecase.NewTradeLog(store, sink, log)

	strategyCfg := usecase.DefaultStrategyConfig()
	strategyCfg.DebugMode = cfg.Trading.DebugMode
	strategy, err := usecase.NewStrategy(cfg.Trading.Strategy, strategyCfg)
	if err != nil {
		log.Fatal("Failed to init strategy", zap.Error(err))
	}

	sizer := usecase.NewRiskSizer(cfg.Trading.RiskPct)

	cascade := usecase.NewCascadeEngine(mkt, trades, log, usecase.CascadeConfig{
		Multipliers: cfg.Trading.Multipliers,
		MaxLevels:   cfg.Trading.MaxCascadeLevels,
	})

	var adv domain.Advisor
	exitCfg := usecase.DefaultExitMonitorConfig()
	exitCfg.DrawdownFloor = cfg.Exits.DrawdownFloor
	exitCfg.ProfitTargetMult = cfg.Exits.ProfitTargetMult
	exitCfg.DivergenceLookback = cfg.Exits.DivergenceLookback
	exitCfg.LevelTolerancePips = cfg.Exits.LevelTolerancePips
	if cfg.Advisor.Enabled && cfg.Advisor.Endpoint != "" {
		adv = advisor.NewHTTPAdvisor(cfg.Advisor.Endpoint, time.Duration(cfg.Advisor.TimeoutMs)*time.Millisecond)
		exitCfg.AdvisorEnabled = true
		exitCfg.AdvisorMinConfidence = cfg.Advisor.MinConfidence
	}
	exits := usecase.NewExitMonitor(exitCfg, adv, log)

	scheduler := usecase.NewScheduler(mkt, strategy, sizer, cascade, exits, store, promSet, log, usecase.SchedulerConfig{
		Instruments:     cfg.Trading.Instruments,
		Timeframe:       cfg.Trading.Timeframe,
		CandleCount:     cfg.Trading.CandleCount,
		Cooldown:        cfg.Cooldown(),
		InstrumentPause: cfg.InstrumentPause(),
		CyclePause:      cfg.CyclePause(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 7. Re-verify persisted plans against venue state
	if err := scheduler.Restore(ctx); err != nil {
		log.Error("Failed to restore plan snapshots", zap.Error(err))
	}

	// 8. Start Web Server
	srv := web.NewServer(cfg.Server.Port, scheduler, mkt, store, promSet.Handler(), log)
	trades.OnRecord(srv.Hub().Broadcast)
	go func() {
		if err := srv.Start(); err != nil {
			log.Error("Web server stopped", zap.Error(err))
		}
	}()

	// 9. Run the control loop
	go func() {
		if err := scheduler.Run(ctx); err != nil && err != context.Canceled {
			log.Error("Scheduler stopped", zap.Error(err))
		}
	}()

	log.Info("Bot started",
		zap.Strings("instruments", cfg.Trading.Instruments),
		zap.String("timeframe", cfg.Trading.Timeframe),
		zap.Float64("risk_pct", cfg.Trading.RiskPct),
	)

	// 10. Wait for Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("Shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Web server shutdown failed", zap.Error(err))
	}
}
