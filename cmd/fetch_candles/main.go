package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"candleflow/config"
	"candleflow/internal/adapters/binanceclient"
	"candleflow/internal/adapters/logger"
	"candleflow/internal/adapters/sqlite"
	"candleflow/internal/candlestore"
	"candleflow/internal/utils"
)

// Prefetches a historical range into the SQLite cache and optionally dumps it
// to CSV for offline analysis.
func main() {
	var (
		symbol   = flag.String("symbol", "BTCUSDT", "trading symbol")
		interval = flag.String("interval", "1h", "candle interval")
		startStr = flag.String("start", "", "range start (RFC3339); defaults to 3 months ago")
		endStr   = flag.String("end", "", "range end (RFC3339); defaults to now")
		csvPath  = flag.String("csv", "", "optional CSV output path")
	)
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	appLogger := logger.NewStdLogger(cfg.LogLevel)

	end := time.Now().UTC()
	if *endStr != "" {
		if end, err = time.Parse(time.RFC3339, *endStr); err != nil {
			log.Fatalf("FATAL: invalid -end: %v", err)
		}
	}
	start := end.AddDate(0, -3, 0)
	if *startStr != "" {
		if start, err = time.Parse(time.RFC3339, *startStr); err != nil {
			log.Fatalf("FATAL: invalid -start: %v", err)
		}
	}

	cache, err := sqlite.NewCandleCache(sqlite.Config{DBPath: cfg.CacheDBPath, Logger: appLogger})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize candle cache: %v", err)
	}
	defer cache.Close()

	binanceClient, err := binanceclient.New(binanceclient.Config{
		APIKey:     cfg.APIKey,
		SecretKey:  cfg.SecretKey,
		UseTestnet: cfg.IsTestnet,
		Logger:     appLogger,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}

	store, err := candlestore.New(candlestore.Config{
		Upstream:   binanceClient,
		Cache:      cache,
		Logger:     appLogger,
		MaxRetries: cfg.FetchRetries,
		RetryBase:  cfg.RetryBaseWait,
		RetryMax:   cfg.RetryMaxWait,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize candle store: %v", err)
	}

	fmt.Printf("Fetching %s %s from %s to %s...\n", *symbol, *interval, start.Format(time.RFC3339), end.Format(time.RFC3339))
	candles, err := store.FetchHistoricalCandles(context.Background(), *symbol, *interval, start, end)
	if err != nil {
		log.Fatalf("FATAL: Fetch failed: %v", err)
	}
	appLogger.Info(context.Background(), "Fetched candles", map[string]interface{}{"count": len(candles)})

	if *csvPath != "" {
		if err := utils.WriteCandlesToCSV(candles, *csvPath); err != nil {
			log.Fatalf("FATAL: Writing CSV failed: %v", err)
		}
		appLogger.Info(context.Background(), "Saved CSV", map[string]interface{}{"filename": *csvPath, "count": len(candles)})
	}
}
