package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"candleflow/config"
	"candleflow/internal/adapters/binanceclient"
	"candleflow/internal/adapters/logger"
	"candleflow/internal/adapters/sqlite"
	"candleflow/internal/backtest"
	"candleflow/internal/candlestore"
	"candleflow/internal/domain"
	"candleflow/internal/strategy"
	"candleflow/internal/utils"
)

// csvSource serves a preloaded series; the requested range is ignored since
// the file already delimits it.
type csvSource []*domain.Candle

func (s csvSource) FetchHistoricalCandles(ctx context.Context, symbol, interval string, start, end time.Time) ([]*domain.Candle, error) {
	return s, nil
}

// One-shot backtest runner: fetches the requested range (through the shared
// SQLite cache), replays it through the chosen strategy and prints the report.
func main() {
	var (
		strategyID = flag.String("strategy", "sma-cross", "strategy identifier")
		symbol     = flag.String("symbol", "BTCUSDT", "trading symbol")
		interval   = flag.String("interval", "1h", "candle interval")
		startStr   = flag.String("start", "", "range start (RFC3339, e.g. 2024-01-01T00:00:00Z)")
		endStr     = flag.String("end", "", "range end (RFC3339)")
		capital    = flag.Float64("capital", 10000, "initial capital")
		paramsStr  = flag.String("params", "", "strategy params as key=value pairs, comma separated")
		csvPath    = flag.String("csv", "", "replay candles from a CSV file instead of the exchange")
	)
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	appLogger := logger.NewStdLogger(cfg.LogLevel)

	params, err := parseParams(*paramsStr)
	if err != nil {
		log.Fatalf("FATAL: invalid -params: %v", err)
	}

	var source backtest.CandleSource
	var start, end time.Time

	if *csvPath != "" {
		candles, err := utils.ReadCandlesFromCSV(*csvPath)
		if err != nil {
			log.Fatalf("FATAL: Failed to load CSV: %v", err)
		}
		if len(candles) == 0 {
			log.Fatalf("FATAL: CSV %s contains no candles", *csvPath)
		}
		source = csvSource(candles)
		start = candles[0].OpenTime
		end = candles[len(candles)-1].CloseTime
		appLogger.Info(context.Background(), "Loaded candles from CSV", map[string]interface{}{"filename": *csvPath, "count": len(candles)})
	} else {
		if start, err = time.Parse(time.RFC3339, *startStr); err != nil {
			log.Fatalf("FATAL: invalid -start: %v", err)
		}
		if end, err = time.Parse(time.RFC3339, *endStr); err != nil {
			log.Fatalf("FATAL: invalid -end: %v", err)
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
		source = store
	}

	runner, err := backtest.NewRunner(source, strategy.NewDefaultRegistry(appLogger), appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize backtest runner: %v", err)
	}

	result, err := runner.Run(context.Background(), backtest.Request{
		StrategyID:     *strategyID,
		Symbol:         *symbol,
		Interval:       *interval,
		Start:          start,
		End:            end,
		InitialCapital: *capital,
		Params:         params,
	})
	if err != nil {
		log.Fatalf("FATAL: Backtest failed: %v", err)
	}

	printReport(result)
}

func parseParams(raw string) (strategy.Params, error) {
	if raw == "" {
		return nil, nil
	}
	params := make(strategy.Params)
	for _, pair := range strings.Split(raw, ",") {
		key, valueStr, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			return nil, fmt.Errorf("expected key=value, got %q", pair)
		}
		var value float64
		if _, err := fmt.Sscanf(valueStr, "%g", &value); err != nil {
			return nil, fmt.Errorf("parsing value of %q: %w", key, err)
		}
		params[key] = value
	}
	return params, nil
}

func printReport(r *backtest.Result) {
	fmt.Printf("\n=== Backtest %s ===\n", r.RunID)
	fmt.Printf("Strategy:        %s %v\n", r.Request.StrategyID, r.Request.Params)
	fmt.Printf("Symbol/Interval: %s %s\n", r.Request.Symbol, r.Request.Interval)
	fmt.Printf("Range:           %s .. %s\n", r.Request.Start.Format(time.RFC3339), r.Request.End.Format(time.RFC3339))
	fmt.Printf("Initial Capital: %.2f\n", r.Request.InitialCapital)
	fmt.Printf("Final Equity:    %.2f\n", r.FinalEquity)
	fmt.Printf("Total Return:    %.2f%%\n", r.Metrics.TotalReturn*100)
	fmt.Printf("Max Drawdown:    %.2f%%\n", r.Metrics.MaxDrawdown*100)
	fmt.Printf("Round Trips:     %d (win rate %.1f%%)\n", r.Metrics.RoundTrips, r.Metrics.WinRate*100)
	fmt.Printf("Profit Factor:   %.2f\n", r.Metrics.ProfitFactor)
	fmt.Printf("Avg Win/Loss:    %.2f / %.2f\n", r.Metrics.AverageWin, r.Metrics.AverageLoss)
	fmt.Printf("Rejected Orders: %d\n", r.Metrics.RejectedOrders)

	fmt.Printf("\nTrades (%d):\n", len(r.Trades))
	for _, tr := range r.Trades {
		status := ""
		if tr.Rejected {
			status = "  [REJECTED]"
		}
		fmt.Printf("  %s  %-4s %10.4f @ %.4f%s\n", tr.Time.Format(time.RFC3339), tr.Side, tr.Quantity, tr.Price, status)
	}
}
