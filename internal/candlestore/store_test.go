package candlestore

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"candleflow/internal/adapters/logger"
	"candleflow/internal/domain"
	"candleflow/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeUpstream counts calls and optionally fails the first N of them.
type fakeUpstream struct {
	calls    int
	failures int
	err      error
	series   []*domain.Candle
}

func (f *fakeUpstream) GetKlinesRange(ctx context.Context, symbol string, interval domain.Interval, start, end time.Time) ([]*domain.Candle, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, f.err
	}
	return f.series, nil
}

func (f *fakeUpstream) StreamTicks(ctx context.Context, symbols []string, handler func(domain.Tick), errHandler func(error)) error {
	return errors.New("not implemented")
}

// memCache is an in-memory ports.CandleCache.
type memCache struct {
	entries map[string][]*domain.Candle
	puts    int
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string][]*domain.Candle)}
}

func cacheKey(symbol string, interval domain.Interval, start, end time.Time) string {
	return fmt.Sprintf("%s|%s|%d|%d", symbol, interval, start.UnixMilli(), end.UnixMilli())
}

func (m *memCache) Get(ctx context.Context, symbol string, interval domain.Interval, start, end time.Time) ([]*domain.Candle, bool, error) {
	series, ok := m.entries[cacheKey(symbol, interval, start, end)]
	return series, ok, nil
}

func (m *memCache) Put(ctx context.Context, symbol string, interval domain.Interval, start, end time.Time, candles []*domain.Candle) error {
	m.puts++
	m.entries[cacheKey(symbol, interval, start, end)] = candles
	return nil
}

func makeSeries(start time.Time, interval domain.Interval, n int) []*domain.Candle {
	series := make([]*domain.Candle, 0, n)
	for i := 0; i < n; i++ {
		open := start.Add(time.Duration(i) * interval.Duration())
		series = append(series, &domain.Candle{
			OpenTime:  open,
			CloseTime: open.Add(interval.Duration() - time.Millisecond),
			Symbol:    "BTCUSDT",
			Interval:  interval,
			Open:      100 + float64(i),
			High:      101 + float64(i),
			Low:       99 + float64(i),
			Close:     100.5 + float64(i),
			Volume:    10,
		})
	}
	return series
}

func newTestStore(t *testing.T, upstream *fakeUpstream, cache *memCache) *Store {
	t.Helper()
	store, err := New(Config{
		Upstream:   upstream,
		Cache:      cache,
		Logger:     logger.NewStdLogger(logger.LevelError),
		MaxRetries: 2,
		RetryBase:  time.Millisecond,
		RetryMax:   2 * time.Millisecond,
	})
	require.NoError(t, err)
	return store
}

func TestFetchHistoricalCandles_Validation(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	tests := []struct {
		name     string
		symbol   string
		interval string
		start    time.Time
		end      time.Time
		wantErr  error
	}{
		{name: "unsupported interval", symbol: "BTCUSDT", interval: "2h", start: start, end: end, wantErr: ports.ErrInvalidInterval},
		{name: "empty interval", symbol: "BTCUSDT", interval: "", start: start, end: end, wantErr: ports.ErrInvalidInterval},
		{name: "inverted range", symbol: "BTCUSDT", interval: "1h", start: end, end: start, wantErr: ports.ErrInvalidRange},
		{name: "empty symbol", symbol: "", interval: "1h", start: start, end: end, wantErr: ports.ErrInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			upstream := &fakeUpstream{}
			store := newTestStore(t, upstream, newMemCache())

			_, err := store.FetchHistoricalCandles(context.Background(), tt.symbol, tt.interval, tt.start, tt.end)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Zero(t, upstream.calls, "validation failures must not reach the upstream")
		})
	}
}

func TestFetchHistoricalCandles_CacheRoundTrip(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(10 * time.Hour)
	series := makeSeries(start, domain.Interval1h, 10)

	upstream := &fakeUpstream{series: series}
	cache := newMemCache()
	store := newTestStore(t, upstream, cache)

	first, err := store.FetchHistoricalCandles(context.Background(), "BTCUSDT", "1h", start, end)
	require.NoError(t, err)
	require.Len(t, first, 10)
	assert.Equal(t, 1, upstream.calls)
	assert.Equal(t, 1, cache.puts)

	// Second identical call: byte-identical series, zero upstream requests.
	second, err := store.FetchHistoricalCandles(context.Background(), "BTCUSDT", "1h", start, end)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, upstream.calls, "cache hit must not call upstream")
}

func TestFetchHistoricalCandles_SortsAscending(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	series := makeSeries(start, domain.Interval1h, 3)
	// Deliver out of order from upstream.
	shuffled := []*domain.Candle{series[2], series[0], series[1]}

	upstream := &fakeUpstream{series: shuffled}
	store := newTestStore(t, upstream, newMemCache())

	got, err := store.FetchHistoricalCandles(context.Background(), "BTCUSDT", "1h", start, start.Add(3*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i := 1; i < len(got); i++ {
		assert.True(t, got[i-1].OpenTime.Before(got[i].OpenTime), "series must ascend by open time")
	}
}

func TestFetchHistoricalCandles_RetriesThenSucceeds(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	series := makeSeries(start, domain.Interval1h, 2)

	upstream := &fakeUpstream{series: series, failures: 2, err: fmt.Errorf("boom: %w", ports.ErrConnectionFailed)}
	store := newTestStore(t, upstream, newMemCache())

	got, err := store.FetchHistoricalCandles(context.Background(), "BTCUSDT", "1h", start, start.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 3, upstream.calls)
}

func TestFetchHistoricalCandles_RetryBudgetExhausted(t *testing.T) {
	upstream := &fakeUpstream{failures: 10, err: fmt.Errorf("boom: %w", ports.ErrConnectionFailed)}
	store := newTestStore(t, upstream, newMemCache())

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := store.FetchHistoricalCandles(context.Background(), "BTCUSDT", "1h", start, start.Add(time.Hour))
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrUpstreamUnavailable)
	assert.Equal(t, 3, upstream.calls, "MaxRetries=2 means three attempts total")
}

func TestFetchHistoricalCandles_NoRetryOnUserError(t *testing.T) {
	upstream := &fakeUpstream{failures: 10, err: fmt.Errorf("bad symbol: %w", ports.ErrInvalidRequest)}
	store := newTestStore(t, upstream, newMemCache())

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := store.FetchHistoricalCandles(context.Background(), "BTCUSDT", "1h", start, start.Add(time.Hour))
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrInvalidRequest)
	assert.Equal(t, 1, upstream.calls)
}
