// Command tradingengine runs the ICT signal and execution engine: it
// wires the event bus, candle store, historical loader, multi-timeframe
// engine, strategy pipeline, risk validator, order executor/tracker, and
// position manager/monitor/emergency manager into a single orchestrated
// process (§4.13).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ictengine/internal/candle"
	"ictengine/internal/config"
	"ictengine/internal/core"
	"ictengine/internal/eventbus"
	"ictengine/internal/exchange"
	"ictengine/internal/historical"
	"ictengine/internal/mtf"
	"ictengine/internal/order"
	"ictengine/internal/orchestrator"
	"ictengine/internal/position"
	"ictengine/internal/risk"
	"ictengine/internal/strategy"
	"ictengine/pkg/logging"
	"ictengine/pkg/telemetry"

	"github.com/shopspring/decimal"
)

func main() {
	configPath := flag.String("config", "configs/tradingengine.yaml", "Path to configuration file")
	dbPath := flag.String("db", "", "Path to SQLite position store (empty disables persistence)")
	flag.Parse()

	cfg, err := loadConfigOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewZapLogger(cfg.System.LogLevel)
	logger.Info("starting tradingengine", "active_exchanges", cfg.App.ActiveExchanges, "symbols", cfg.App.Symbols)

	if err := run(cfg, *dbPath, logger); err != nil {
		logger.Error("tradingengine exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("tradingengine stopped")
}

func loadConfigOrDefault(path string) (*config.Config, error) {
	if _, err := os.Stat(path); err != nil {
		return config.DefaultConfig(), nil
	}
	return config.LoadConfig(path)
}

func run(cfg *config.Config, dbPath string, logger core.ILogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	telem, err := telemetry.Setup("tradingengine")
	if err != nil {
		return fmt.Errorf("telemetry setup: %w", err)
	}
	defer func() {
		if shutdownErr := telem.Shutdown(context.Background()); shutdownErr != nil {
			logger.Warn("telemetry shutdown failed", "error", shutdownErr)
		}
	}()

	exch := exchange.NewMockExchange(cfg.App.CurrentExchange)
	exch.SetBalance("USDT", decimal.NewFromInt(10000))

	bus := eventbus.New(cfg.EventBus.WorkerCount, cfg.EventBus.MaxQueueSize, logger)

	timeframes := make([]core.Timeframe, 0, len(cfg.CandleStore.Timeframes))
	for _, s := range cfg.CandleStore.Timeframes {
		tf, err := core.ParseTimeframe(s)
		if err != nil {
			return fmt.Errorf("candle_store.timeframes: %w", err)
		}
		timeframes = append(timeframes, tf)
	}

	store := candle.NewStore(cfg.CandleStore.MaxCandlesPerStorage)
	for _, symbol := range cfg.App.Symbols {
		store.AddSymbol(symbol, timeframes, candle.Replace)
	}

	processor := candle.NewRealtimeProcessor(store, bus, cfg.CandleStore.OutlierFraction, logger)
	loader := historical.NewLoader(exch, store, bus, 0, 0, logger)
	engine := mtf.NewEngine(store, bus, timeframes, mtf.DefaultParams(), logger)
	pipeline := strategy.NewPipeline(engine, store, bus, logger)

	dailyLoss := risk.NewDailyLossMonitor(decimal.NewFromFloat(cfg.Risk.DailyLossLimitPct), bus, logger)
	riskParams := risk.DefaultParams()
	riskParams.RiskPerTradePct = decimal.NewFromFloat(cfg.Risk.RiskPerTradePct)
	riskParams.Leverage = cfg.Risk.Leverage
	validator := risk.NewValidator(riskParams, dailyLoss, bus, logger)

	retryManager := order.DefaultRetryManager()
	tracker := order.NewTracker(1000, logger)
	executor := order.NewExecutor(exch, bus, retryManager, nil, logger)

	var posStore position.Store
	if dbPath != "" {
		sqliteStore, err := position.NewSQLiteStore(dbPath)
		if err != nil {
			return fmt.Errorf("open position store: %w", err)
		}
		defer sqliteStore.Close()
		posStore = sqliteStore
	}
	posManager := position.NewManager(bus, posStore, logger)
	posMonitor := position.NewMonitor(posManager, exch, cfg.App.Symbols, bus, logger)
	emergency := position.NewEmergencyManager(posManager, executor, dailyLoss, bus, logger)

	orch := orchestrator.New(time.Duration(cfg.System.ShutdownDeadlineSeconds)*time.Second, logger)

	orch.Register(orchestrator.Component{
		Name: "event_bus",
		Run:  func(ctx context.Context) error { return bus.Start(ctx) },
		Stop: func(ctx context.Context) error { return bus.Stop(5 * time.Second) },
	})
	orch.Register(orchestrator.Component{
		Name: "historical_loader",
		Run: func(ctx context.Context) error {
			for _, symbol := range cfg.App.Symbols {
				for _, tf := range timeframes {
					if err := loader.Backfill(ctx, symbol, tf, historical.DefaultLoadCount); err != nil {
						logger.Warn("historical backfill failed", "symbol", symbol, "timeframe", tf.String(), "error", err)
					}
				}
			}
			<-ctx.Done()
			return nil
		},
	})
	onCandle := func(c core.Candle) {
		upd := candle.KlineUpdate{
			Symbol: c.Symbol, Timeframe: c.Timeframe, OpenTime: c.OpenTime,
			Open: c.Open, High: c.High, Low: c.Low, Close: c.Close, Volume: c.Volume, Closed: true,
		}
		if err := processor.Process(context.Background(), upd); err != nil {
			logger.Warn("realtime process failed", "symbol", c.Symbol, "error", err)
		}
	}

	if wsURL := cfg.Exchanges[cfg.App.CurrentExchange].BaseURL; cfg.App.CurrentExchange != "mock" && wsURL != "" {
		feed := exchange.NewWebSocketFeed(wsURL, onCandle, logger)
		orch.Register(orchestrator.Component{
			Name: "realtime_feed",
			Run: func(ctx context.Context) error {
				feed.Start()
				<-ctx.Done()
				return nil
			},
			Stop: func(ctx context.Context) error {
				feed.Stop()
				return nil
			},
		})
	} else {
		orch.Register(orchestrator.Component{
			Name: "realtime_feed",
			Run: func(ctx context.Context) error {
				return exch.StreamCandles(ctx, cfg.App.Symbols, core.M1, onCandle)
			},
		})
	}
	orch.Register(orchestrator.Component{
		Name: "mtf_engine",
		Run: func(ctx context.Context) error {
			unsub := engine.Start()
			<-ctx.Done()
			unsub()
			return nil
		},
	})
	orch.Register(orchestrator.Component{
		Name: "strategy_pipeline",
		Run: func(ctx context.Context) error {
			stop := pipeline.Start()
			<-ctx.Done()
			stop()
			return nil
		},
	})
	orch.Register(orchestrator.Component{
		Name: "position_monitor",
		Run:  posMonitor.Run,
		Stop: posMonitor.Shutdown,
	})
	orch.Register(orchestrator.Component{
		Name: "order_tracker",
		Run: func(ctx context.Context) error {
			return exch.StreamOrderUpdates(ctx, func(o *core.Order) {
				tracker.ApplyUpdate(o.ClientID, o.Status, time.Now(), o.FilledQty, o.AvgFillPrice, "")
			})
		},
	})

	execPipeline := orchestrator.NewExecutionPipeline(bus, validator, executor, posManager, func() decimal.Decimal {
		bal, err := exch.GetBalance(context.Background(), "USDT")
		if err != nil {
			return decimal.Zero
		}
		return bal
	}, logger)
	orch.Register(orchestrator.Component{
		Name: "execution_pipeline",
		Run: func(ctx context.Context) error {
			stop := execPipeline.Start()
			<-ctx.Done()
			stop()
			return nil
		},
	})
	orch.Register(orchestrator.Component{
		Name: "emergency_manager",
		Healthy: func() bool { return emergency.Status() != position.SystemPaused },
	})

	if cfg.Telemetry.EnableMetrics {
		metricsSrv := telemetry.NewServer(cfg.Telemetry.MetricsPort, logger)
		orch.Register(orchestrator.Component{
			Name: "metrics_server",
			Run: func(ctx context.Context) error {
				metricsSrv.Start()
				<-ctx.Done()
				return nil
			},
			Stop: metricsSrv.Stop,
		})
	}

	if err := orch.Start(ctx); err != nil {
		return err
	}

	waitErr := orch.Wait()
	shutdownErr := orch.Shutdown(context.Background())
	if waitErr != nil && ctx.Err() == nil {
		return waitErr
	}
	return shutdownErr
}
