package backtest

import (
	"context"
	"fmt"

	"candleflow/internal/ports"
	"candleflow/internal/strategy"
)

// Service runs backtests on demand. It constructs a fresh Runner per run, so
// concurrent runs are fully isolated, and archives completed results.
type Service struct {
	source     CandleSource
	strategies *strategy.Registry
	runs       *RunStore
	logger     ports.Logger
}

// ServiceConfig holds configuration for the backtest service.
type ServiceConfig struct {
	Source     CandleSource
	Strategies *strategy.Registry
	Runs       *RunStore
	Logger     ports.Logger
}

// NewService creates a backtest service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("candle source is required")
	}
	if cfg.Strategies == nil {
		return nil, fmt.Errorf("strategy registry is required")
	}
	if cfg.Runs == nil {
		return nil, fmt.Errorf("run store is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Service{
		source:     cfg.Source,
		strategies: cfg.Strategies,
		runs:       cfg.Runs,
		logger:     cfg.Logger,
	}, nil
}

// Run executes one backtest and archives the result on success.
func (s *Service) Run(ctx context.Context, req Request) (*Result, error) {
	runner, err := NewRunner(s.source, s.strategies, s.logger)
	if err != nil {
		return nil, err
	}
	result, err := runner.Run(ctx, req)
	if err != nil {
		return nil, err
	}
	s.runs.Save(result)
	return result, nil
}

// GetRun returns an archived result by run ID.
func (s *Service) GetRun(runID string) (*Result, error) {
	return s.runs.Get(runID)
}

// ListRuns returns archived results, most recent first.
func (s *Service) ListRuns() []*Result {
	return s.runs.List()
}

// StrategyIDs returns the identifiers of the registered strategies.
func (s *Service) StrategyIDs() []string {
	return s.strategies.IDs()
}
