package ports

import (
	"context"
	"time"

	"candleflow/internal/domain"
)

// MarketDataProvider defines the upstream exchange surface the core depends on:
// historical OHLCV series and the live trade feed. Implementations own their
// reconnect behavior; a feed disconnect must be retried by the adapter, not by
// the caller.
type MarketDataProvider interface {
	// GetKlinesRange fetches all candles for symbol/interval between start and
	// end (inclusive), ascending by open time. Gaps reported by the upstream
	// are passed through as-is.
	GetKlinesRange(ctx context.Context, symbol string, interval domain.Interval, start, end time.Time) ([]*domain.Candle, error)

	// StreamTicks subscribes to the live trade stream for the given symbols and
	// invokes handler for every tick in arrival order. It blocks until ctx is
	// canceled, reconnecting with backoff on transport failures.
	StreamTicks(ctx context.Context, symbols []string, handler func(tick domain.Tick), errHandler func(err error)) error
}
