package main

import (
	"context"
	"errors"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"candleflow/config"
	"candleflow/internal/adapters/binanceclient"
	"candleflow/internal/adapters/logger"
	"candleflow/internal/adapters/sqlite"
	"candleflow/internal/aggregator"
	"candleflow/internal/backtest"
	"candleflow/internal/candlestore"
	"candleflow/internal/distributor"
	"candleflow/internal/domain"
	"candleflow/internal/server"
	"candleflow/internal/strategy"
	"candleflow/internal/subscription"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Candle Cache (Database Adapter)
	cache, err := sqlite.NewCandleCache(sqlite.Config{
		DBPath: cfg.CacheDBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize candle cache")
		log.Fatalf("FATAL: Failed to initialize candle cache: %v", err)
	}
	defer func() {
		if err := cache.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing candle cache")
		}
	}()
	appLogger.Info(context.Background(), "Candle cache initialized")

	// 4. Initialize Exchange Client (Binance Adapter)
	binanceClient, err := binanceclient.New(binanceclient.Config{
		APIKey:     cfg.APIKey,
		SecretKey:  cfg.SecretKey,
		UseTestnet: cfg.IsTestnet,
		Logger:     appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize Binance client")
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}
	appLogger.Info(context.Background(), "Binance client initialized")

	// 5. Initialize Candle Store
	store, err := candlestore.New(candlestore.Config{
		Upstream:   binanceClient,
		Cache:      cache,
		Logger:     appLogger,
		MaxRetries: cfg.FetchRetries,
		RetryBase:  cfg.RetryBaseWait,
		RetryMax:   cfg.RetryMaxWait,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize candle store")
		log.Fatalf("FATAL: Failed to initialize candle store: %v", err)
	}

	// 6. Initialize Realtime Pipeline (Registry, Distributor, Aggregation)
	registry := subscription.NewRegistry()
	dist, err := distributor.New(distributor.Config{Registry: registry, Logger: appLogger})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize distributor")
		log.Fatalf("FATAL: Failed to initialize distributor: %v", err)
	}

	manager := aggregator.NewManager(aggregator.ManagerConfig{
		Emit:   dist.Publish,
		Logger: appLogger,
	})
	for _, symbol := range cfg.FeedSymbols {
		for _, interval := range domain.SupportedIntervals() {
			manager.EnsureGroup(symbol, interval)
		}
	}
	appLogger.Info(context.Background(), "Aggregation groups started", map[string]interface{}{
		"symbols": cfg.FeedSymbols, "intervals": len(domain.SupportedIntervals()),
	})

	// 7. Initialize Backtest Service
	backtests, err := backtest.NewService(backtest.ServiceConfig{
		Source:     store,
		Strategies: strategy.NewDefaultRegistry(appLogger),
		Runs:       backtest.NewRunStore(),
		Logger:     appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize backtest service")
		log.Fatalf("FATAL: Failed to initialize backtest service: %v", err)
	}

	// 8. Initialize API Server
	apiServer, err := server.NewServer(server.Config{
		Addr:        cfg.ListenAddr,
		Candles:     store,
		Backtests:   backtests,
		Registry:    registry,
		Distributor: dist,
		Logger:      appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize API server")
		log.Fatalf("FATAL: Failed to initialize API server: %v", err)
	}

	// 9. Run until interrupted
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return apiServer.Start(gctx)
	})
	g.Go(func() error {
		err := binanceClient.StreamTicks(gctx, cfg.FeedSymbols, manager.Dispatch, func(err error) {
			appLogger.Warn(gctx, "Live feed error", map[string]interface{}{"error": err.Error()})
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		manager.Close()
		appLogger.Error(context.Background(), err, "Service exited with error")
		log.Fatalf("FATAL: Service exited with error: %v", err)
	}

	manager.Close()
	appLogger.Info(context.Background(), "Application finished gracefully.")
}
