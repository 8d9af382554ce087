package ports

import (
	"context"
	"time"

	"candleflow/internal/domain"
)

// CandleCache defines the persistence interface for historical candle series.
// Entries are keyed by (symbol, interval, range); a series written for a range
// is read-only from then on.
type CandleCache interface {
	// Get returns the cached series for the exact (symbol, interval, start, end)
	// key, or (nil, false, nil) on a miss.
	Get(ctx context.Context, symbol string, interval domain.Interval, start, end time.Time) ([]*domain.Candle, bool, error)

	// Put stores a series under the (symbol, interval, start, end) key,
	// replacing any previous entry for the same key.
	Put(ctx context.Context, symbol string, interval domain.Interval, start, end time.Time, candles []*domain.Candle) error
}
