package candlestore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"candleflow/internal/domain"
	"candleflow/internal/ports"

	"github.com/jpillora/backoff"
)

// Store serves historical candle series, caching fetched ranges so repeated
// requests never hit the upstream exchange twice.
type Store struct {
	upstream ports.MarketDataProvider
	cache    ports.CandleCache
	logger   ports.Logger

	maxRetries int
	retryBase  time.Duration
	retryMax   time.Duration
}

// Config holds configuration for the candle store.
type Config struct {
	Upstream   ports.MarketDataProvider
	Cache      ports.CandleCache
	Logger     ports.Logger
	MaxRetries int           // Upstream attempts beyond the first
	RetryBase  time.Duration // Initial backoff delay
	RetryMax   time.Duration // Backoff ceiling
}

// New creates a candle store.
func New(cfg Config) (*Store, error) {
	if cfg.Upstream == nil {
		return nil, fmt.Errorf("upstream market data provider is required")
	}
	if cfg.Cache == nil {
		return nil, fmt.Errorf("candle cache is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	retryBase := cfg.RetryBase
	if retryBase <= 0 {
		retryBase = 250 * time.Millisecond
	}
	retryMax := cfg.RetryMax
	if retryMax <= 0 {
		retryMax = 10 * time.Second
	}
	return &Store{
		upstream:   cfg.Upstream,
		cache:      cfg.Cache,
		logger:     cfg.Logger,
		maxRetries: maxRetries,
		retryBase:  retryBase,
		retryMax:   retryMax,
	}, nil
}

// FetchHistoricalCandles returns the candle series for (symbol, interval)
// covering [start, end], ascending by open time. Cache hits return without any
// upstream call; misses fetch with a bounded retry budget, persist, then return.
func (s *Store) FetchHistoricalCandles(ctx context.Context, symbol string, intervalCode string, start, end time.Time) ([]*domain.Candle, error) {
	interval, ok := domain.ParseInterval(intervalCode)
	if !ok {
		return nil, fmt.Errorf("interval %q: %w", intervalCode, ports.ErrInvalidInterval)
	}
	if symbol == "" {
		return nil, fmt.Errorf("symbol must not be empty: %w", ports.ErrInvalidRequest)
	}
	if start.After(end) {
		return nil, fmt.Errorf("range [%s, %s]: %w", start, end, ports.ErrInvalidRange)
	}

	cached, hit, err := s.cache.Get(ctx, symbol, interval, start, end)
	if err != nil {
		// A broken cache read degrades to an upstream fetch rather than failing.
		s.logger.Warn(ctx, "Candle cache read failed, falling back to upstream", map[string]interface{}{"symbol": symbol, "interval": interval, "error": err.Error()})
	} else if hit {
		return cached, nil
	}

	candles, err := s.fetchWithRetry(ctx, symbol, interval, start, end)
	if err != nil {
		return nil, err
	}

	// Upstream ordering is not trusted; the returned series must be strictly
	// ascending by open time.
	sort.Slice(candles, func(i, j int) bool {
		return candles[i].OpenTime.Before(candles[j].OpenTime)
	})

	if err := s.cache.Put(ctx, symbol, interval, start, end, candles); err != nil {
		// Cache write failure is not fatal: the caller still gets the data.
		s.logger.Warn(ctx, "Failed to persist fetched candles", map[string]interface{}{"symbol": symbol, "interval": interval, "error": err.Error()})
	}
	return candles, nil
}

func (s *Store) fetchWithRetry(ctx context.Context, symbol string, interval domain.Interval, start, end time.Time) ([]*domain.Candle, error) {
	retry := &backoff.Backoff{
		Min:    s.retryBase,
		Max:    s.retryMax,
		Factor: 2,
		Jitter: true,
	}

	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			d := retry.Duration()
			s.logger.Warn(ctx, "Upstream fetch failed, retrying", map[string]interface{}{"symbol": symbol, "interval": interval, "attempt": attempt, "delay": d.String()})
			select {
			case <-time.After(d):
			case <-ctx.Done():
				return nil, fmt.Errorf("fetch canceled: %w: %w", ports.ErrContextCanceled, ctx.Err())
			}
		}

		candles, err := s.upstream.GetKlinesRange(ctx, symbol, interval, start, end)
		if err == nil {
			return candles, nil
		}
		lastErr = err

		// User errors will not heal with retries.
		if errors.Is(err, ports.ErrInvalidRequest) || errors.Is(err, ports.ErrContextCanceled) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("upstream fetch for %s/%s failed after %d attempts: %w: %w",
		symbol, interval, s.maxRetries+1, ports.ErrUpstreamUnavailable, lastErr)
}
