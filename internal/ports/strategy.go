package ports

import (
	"context"

	"candleflow/internal/domain"
)

// Strategy defines the interface for trading strategies evaluated bar by bar.
type Strategy interface {
	// Name returns the strategy identifier.
	Name() string

	// WarmupPeriod returns the minimum number of bars the strategy must see
	// before its first non-Hold decision is meaningful.
	WarmupPeriod() int

	// Evaluate inspects a window of past bars, oldest first, where the last
	// element is the current bar, and returns a trade signal. The window never
	// contains bars past the current one.
	Evaluate(ctx context.Context, window []*domain.Candle) domain.Signal
}
