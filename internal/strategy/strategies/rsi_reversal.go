package strategies

import (
	"context"
	"fmt"

	"candleflow/internal/domain"
	"candleflow/internal/ports"
	"candleflow/internal/strategy/indicators"
)

// RSIReversalConfig holds configuration for the RSI mean-reversion strategy.
type RSIReversalConfig struct {
	Period     int     // e.g. 14
	Overbought float64 // e.g. 70
	Oversold   float64 // e.g. 30
	Logger     ports.Logger
}

// RSIReversal buys oversold conditions and sells overbought ones.
type RSIReversal struct {
	config RSIReversalConfig
	rsi    *indicators.RSI
}

// NewRSIReversal creates the strategy, validating thresholds.
func NewRSIReversal(cfg RSIReversalConfig) (*RSIReversal, error) {
	if cfg.Period <= 0 {
		return nil, fmt.Errorf("RSI period must be positive, got %d", cfg.Period)
	}
	if cfg.Overbought <= cfg.Oversold || cfg.Overbought > 100 || cfg.Oversold < 0 {
		return nil, fmt.Errorf("invalid RSI thresholds (overbought=%v, oversold=%v)", cfg.Overbought, cfg.Oversold)
	}
	return &RSIReversal{
		config: cfg,
		rsi: indicators.NewRSI(indicators.RSIConfig{
			IndicatorConfig: indicators.IndicatorConfig{Period: cfg.Period},
			Overbought:      cfg.Overbought,
			Oversold:        cfg.Oversold,
		}),
	}, nil
}

// Name returns the strategy identifier.
func (s *RSIReversal) Name() string { return "rsi-reversal" }

// WarmupPeriod returns the bars needed for a stable Wilder RSI.
func (s *RSIReversal) WarmupPeriod() int { return s.config.Period + 1 }

// Evaluate emits Buy when the RSI drops to oversold and Sell when it reaches
// overbought.
func (s *RSIReversal) Evaluate(ctx context.Context, window []*domain.Candle) domain.Signal {
	if len(window) < s.WarmupPeriod() {
		return domain.Hold()
	}

	value, err := s.rsi.Calculate(ctx, window)
	if err != nil {
		return domain.Hold()
	}

	switch {
	case s.rsi.IsOversold(value):
		return domain.Signal{Action: domain.ActionBuy}
	case s.rsi.IsOverbought(value):
		return domain.Signal{Action: domain.ActionSell}
	default:
		return domain.Hold()
	}
}
