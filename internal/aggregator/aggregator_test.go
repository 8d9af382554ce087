package aggregator

import (
	"sync"
	"testing"
	"time"

	"candleflow/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tickAt(ts time.Time, price, qty float64) domain.Tick {
	return domain.Tick{Symbol: "BTCUSDT", Price: price, Quantity: qty, Timestamp: ts}
}

func TestAggregator_SingleBucketOHLCV(t *testing.T) {
	agg := New("BTCUSDT", domain.Interval1m)
	t0 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	require.Nil(t, agg.Apply(tickAt(t0, 100, 1)))
	require.Nil(t, agg.Apply(tickAt(t0.Add(time.Second), 105, 2)))
	require.Nil(t, agg.Apply(tickAt(t0.Add(2*time.Second), 98, 3)))

	// First tick past the boundary closes the bucket.
	closed := agg.Apply(tickAt(t0.Add(time.Minute), 99, 1))
	require.NotNil(t, closed)

	assert.Equal(t, 100.0, closed.Open)
	assert.Equal(t, 105.0, closed.High)
	assert.Equal(t, 98.0, closed.Low)
	assert.Equal(t, 98.0, closed.Close)
	assert.Equal(t, 6.0, closed.Volume)
	assert.Equal(t, t0, closed.OpenTime)
	assert.Equal(t, t0.Add(time.Minute-time.Millisecond), closed.CloseTime)
}

func TestAggregator_BoundaryTickOpensNextBucket(t *testing.T) {
	agg := New("BTCUSDT", domain.Interval1m)
	t0 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	agg.Apply(tickAt(t0, 100, 1))
	closed := agg.Apply(tickAt(t0.Add(time.Minute), 200, 5))
	require.NotNil(t, closed)

	// The boundary tick belongs to the new bucket.
	next := agg.Apply(tickAt(t0.Add(2*time.Minute), 201, 1))
	require.NotNil(t, next)
	assert.Equal(t, t0.Add(time.Minute), next.OpenTime)
	assert.Equal(t, 200.0, next.Open)
	assert.Equal(t, 5.0, next.Volume)
}

func TestAggregator_EpochAlignedBuckets(t *testing.T) {
	agg := New("BTCUSDT", domain.Interval5m)

	// First tick arrives mid-bucket; the bucket still opens on the grid.
	ts := time.Date(2024, 3, 1, 10, 3, 27, 0, time.UTC)
	agg.Apply(tickAt(ts, 100, 1))
	closed := agg.Apply(tickAt(time.Date(2024, 3, 1, 10, 5, 0, 0, time.UTC), 101, 1))
	require.NotNil(t, closed)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), closed.OpenTime)
}

func TestAggregator_LateTickDropped(t *testing.T) {
	agg := New("BTCUSDT", domain.Interval1m)
	t0 := time.Date(2024, 3, 1, 10, 1, 0, 0, time.UTC)

	agg.Apply(tickAt(t0, 100, 1))
	agg.Apply(tickAt(t0.Add(time.Second), 105, 1))

	// A tick from before the bucket start must not alter the accumulating candle.
	require.Nil(t, agg.Apply(tickAt(t0.Add(-time.Second), 50, 10)))

	closed := agg.Apply(tickAt(t0.Add(time.Minute), 99, 1))
	require.NotNil(t, closed)
	assert.Equal(t, 100.0, closed.Open)
	assert.Equal(t, 105.0, closed.High)
	assert.Equal(t, 100.0, closed.Low)
	assert.Equal(t, 105.0, closed.Close)
	assert.Equal(t, 2.0, closed.Volume)
}

func TestAggregator_GapSkipsBuckets(t *testing.T) {
	agg := New("BTCUSDT", domain.Interval1m)
	t0 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	agg.Apply(tickAt(t0, 100, 1))
	// Next tick is three buckets later: the first bucket closes, empty
	// buckets in between are not synthesized.
	closed := agg.Apply(tickAt(t0.Add(3*time.Minute+10*time.Second), 110, 1))
	require.NotNil(t, closed)
	assert.Equal(t, t0, closed.OpenTime)

	next := agg.Apply(tickAt(t0.Add(4*time.Minute), 111, 1))
	require.NotNil(t, next)
	assert.Equal(t, t0.Add(3*time.Minute), next.OpenTime)
}

func TestManager_RoutesTicksToSymbolGroups(t *testing.T) {
	var mu sync.Mutex
	emitted := make(map[string][]domain.Candle)

	mgr := NewManager(ManagerConfig{
		Emit: func(groupKey string, candle domain.Candle) {
			mu.Lock()
			emitted[groupKey] = append(emitted[groupKey], candle)
			mu.Unlock()
		},
	})
	mgr.EnsureGroup("BTCUSDT", domain.Interval1m)
	mgr.EnsureGroup("BTCUSDT", domain.Interval5m)
	mgr.EnsureGroup("ETHUSDT", domain.Interval1m)

	t0 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	mgr.Dispatch(tickAt(t0, 100, 1))
	mgr.Dispatch(tickAt(t0.Add(time.Minute), 101, 1))
	mgr.Dispatch(tickAt(t0.Add(5*time.Minute), 102, 1))
	mgr.Close()

	// BTC 1m closed two buckets, BTC 5m closed one; ETH saw no ticks.
	assert.Len(t, emitted["btcusdt@1m"], 2)
	assert.Len(t, emitted["btcusdt@5m"], 1)
	assert.Empty(t, emitted["ethusdt@1m"])
}

func TestManager_DispatchConcurrentWithClose(t *testing.T) {
	mgr := NewManager(ManagerConfig{Emit: func(string, domain.Candle) {}})
	mgr.EnsureGroup("BTCUSDT", domain.Interval1m)
	mgr.EnsureGroup("BTCUSDT", domain.Interval5m)

	t0 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				mgr.Dispatch(tickAt(t0.Add(time.Duration(g*500+i)*time.Second), 100, 1))
			}
		}(g)
	}

	// Closing while dispatchers are in flight must never panic; late ticks are
	// simply ignored.
	mgr.Close()
	wg.Wait()

	mgr.Dispatch(tickAt(t0, 100, 1))
}

func TestManager_EnsureGroupIdempotent(t *testing.T) {
	var mu sync.Mutex
	var count int

	mgr := NewManager(ManagerConfig{
		Emit: func(string, domain.Candle) {
			mu.Lock()
			count++
			mu.Unlock()
		},
	})
	mgr.EnsureGroup("BTCUSDT", domain.Interval1m)
	mgr.EnsureGroup("btcusdt", domain.Interval1m) // same group, different case

	t0 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	mgr.Dispatch(tickAt(t0, 100, 1))
	mgr.Dispatch(tickAt(t0.Add(time.Minute), 101, 1))
	mgr.Close()

	assert.Equal(t, 1, count, "duplicate group must not double-emit")
}
