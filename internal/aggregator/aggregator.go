package aggregator

import (
	"time"

	"candleflow/internal/domain"
)

// Aggregator folds a tick stream into closed OHLCV candles for one
// (symbol, interval) pair. It is not safe for concurrent use: ticks for a
// group must be applied in arrival order by a single goroutine.
//
// Bucket lifecycle: Empty -> Accumulating -> Closed -> Accumulating -> ...
// Buckets are aligned to interval multiples of the Unix epoch, so a restart
// reproduces identical boundaries.
type Aggregator struct {
	symbol   string
	interval domain.Interval

	open        bool
	bucketStart time.Time
	bucketEnd   time.Time
	current     domain.Candle
}

// New creates an aggregator for one (symbol, interval) group.
func New(symbol string, interval domain.Interval) *Aggregator {
	return &Aggregator{symbol: symbol, interval: interval}
}

// GroupKey returns the group this aggregator feeds.
func (a *Aggregator) GroupKey() string {
	return domain.GroupKey(a.symbol, a.interval)
}

// Apply folds one tick into the current bucket and returns the finalized
// candle when the tick crosses the bucket's end boundary, nil otherwise.
//
// Ticks timestamped strictly before the current bucket's start are dropped:
// a closed candle is immutable and is never reopened or amended.
func (a *Aggregator) Apply(tick domain.Tick) *domain.Candle {
	if !a.open {
		a.startBucket(tick)
		return nil
	}

	if tick.Timestamp.Before(a.bucketStart) {
		return nil // late tick
	}

	if !tick.Timestamp.Before(a.bucketEnd) {
		closed := a.current
		a.startBucket(tick)
		return &closed
	}

	a.accumulate(tick)
	return nil
}

func (a *Aggregator) startBucket(tick domain.Tick) {
	start := a.interval.BucketStart(tick.Timestamp)
	a.bucketStart = start
	a.bucketEnd = start.Add(a.interval.Duration())
	a.open = true
	a.current = domain.Candle{
		OpenTime:  start,
		CloseTime: a.bucketEnd.Add(-time.Millisecond),
		Symbol:    a.symbol,
		Interval:  a.interval,
		Open:      tick.Price,
		High:      tick.Price,
		Low:       tick.Price,
		Close:     tick.Price,
		Volume:    tick.Quantity,
	}
}

func (a *Aggregator) accumulate(tick domain.Tick) {
	if tick.Price > a.current.High {
		a.current.High = tick.Price
	}
	if tick.Price < a.current.Low {
		a.current.Low = tick.Price
	}
	a.current.Close = tick.Price
	a.current.Volume += tick.Quantity
}
