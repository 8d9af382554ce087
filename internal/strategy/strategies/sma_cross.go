package strategies

import (
	"context"
	"fmt"

	"candleflow/internal/domain"
	"candleflow/internal/ports"
	"candleflow/internal/strategy/indicators"
)

// SMACrossConfig holds configuration for the SMA crossover strategy.
type SMACrossConfig struct {
	FastPeriod int // e.g. 10
	SlowPeriod int // e.g. 30
	Logger     ports.Logger
}

// SMACross trades simple moving average crossovers: a buy when the fast
// average crosses above the slow one, a sell when it crosses back below.
type SMACross struct {
	config SMACrossConfig
	fastMA *indicators.MovingAverage
	slowMA *indicators.MovingAverage
}

// NewSMACross creates the strategy, validating periods.
func NewSMACross(cfg SMACrossConfig) (*SMACross, error) {
	if cfg.FastPeriod <= 0 || cfg.SlowPeriod <= 0 {
		return nil, fmt.Errorf("SMA periods must be positive (fast=%d, slow=%d)", cfg.FastPeriod, cfg.SlowPeriod)
	}
	if cfg.FastPeriod >= cfg.SlowPeriod {
		return nil, fmt.Errorf("fast period (%d) must be less than slow period (%d)", cfg.FastPeriod, cfg.SlowPeriod)
	}
	return &SMACross{
		config: cfg,
		fastMA: indicators.NewMovingAverage(indicators.MovingAverageConfig{
			IndicatorConfig: indicators.IndicatorConfig{Period: cfg.FastPeriod},
			Type:            indicators.SimpleMovingAverage,
		}),
		slowMA: indicators.NewMovingAverage(indicators.MovingAverageConfig{
			IndicatorConfig: indicators.IndicatorConfig{Period: cfg.SlowPeriod},
			Type:            indicators.SimpleMovingAverage,
		}),
	}, nil
}

// Name returns the strategy identifier.
func (s *SMACross) Name() string { return "sma-cross" }

// WarmupPeriod returns slow period + 1: the crossover needs the previous bar's
// averages as well.
func (s *SMACross) WarmupPeriod() int { return s.config.SlowPeriod + 1 }

// Evaluate emits Buy on an upward crossover and Sell on a downward one.
func (s *SMACross) Evaluate(ctx context.Context, window []*domain.Candle) domain.Signal {
	if len(window) < s.WarmupPeriod() {
		return domain.Hold()
	}

	fast, err := s.fastMA.Calculate(ctx, window)
	if err != nil {
		return domain.Hold()
	}
	slow, err := s.slowMA.Calculate(ctx, window)
	if err != nil {
		return domain.Hold()
	}
	prevFast, err := s.fastMA.Calculate(ctx, window[:len(window)-1])
	if err != nil {
		return domain.Hold()
	}
	prevSlow, err := s.slowMA.Calculate(ctx, window[:len(window)-1])
	if err != nil {
		return domain.Hold()
	}

	switch {
	case prevFast <= prevSlow && fast > slow:
		return domain.Signal{Action: domain.ActionBuy}
	case prevFast >= prevSlow && fast < slow:
		return domain.Signal{Action: domain.ActionSell}
	default:
		return domain.Hold()
	}
}
