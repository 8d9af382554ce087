package backtest

import (
	"context"
	"fmt"
	"time"

	"candleflow/internal/domain"
	"candleflow/internal/ports"
	"candleflow/internal/strategy"

	"github.com/google/uuid"
)

// Status tracks the runner's lifecycle: Initialized -> Running ->
// {Completed, Failed}.
type Status string

const (
	StatusInitialized Status = "initialized"
	StatusRunning     Status = "running"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
)

// Request describes one backtest run. Immutable for the run's lifetime.
type Request struct {
	StrategyID     string          `json:"strategyId"`
	Symbol         string          `json:"symbol"`
	Interval       string          `json:"interval"`
	Start          time.Time       `json:"start"`
	End            time.Time       `json:"end"`
	InitialCapital float64         `json:"initialCapital"`
	Params         strategy.Params `json:"params,omitempty"`
}

// EquityPoint is one sample of the mark-to-market portfolio value.
type EquityPoint struct {
	Time   time.Time `json:"time"`
	Equity float64   `json:"equity"`
}

// Metrics summarizes a completed run.
type Metrics struct {
	TotalReturn    float64 `json:"totalReturn"` // (final - initial) / initial
	MaxDrawdown    float64 `json:"maxDrawdown"` // Largest peak-to-trough equity decline, as a fraction of the peak
	WinRate        float64 `json:"winRate"`     // Fraction of closed round-trips with positive PnL
	ProfitFactor   float64 `json:"profitFactor"`
	AverageWin     float64 `json:"averageWin"`
	AverageLoss    float64 `json:"averageLoss"`
	RoundTrips     int     `json:"roundTrips"`
	RejectedOrders int     `json:"rejectedOrders"`
}

// Result is the immutable outcome of one run, owned by the caller.
type Result struct {
	RunID       string         `json:"runId"`
	Request     Request        `json:"request"`
	Trades      []domain.Trade `json:"trades"`
	EquityCurve []EquityPoint  `json:"equityCurve"`
	Metrics     Metrics        `json:"metrics"`
	FinalEquity float64        `json:"finalEquity"`
	CompletedAt time.Time      `json:"completedAt"`
}

// CandleSource is the slice of the candle store the runner needs.
type CandleSource interface {
	FetchHistoricalCandles(ctx context.Context, symbol string, interval string, start, end time.Time) ([]*domain.Candle, error)
}

// Runner replays a historical series bar by bar through a strategy,
// maintaining a simulated portfolio. Each Runner serves exactly one run and
// shares no state with concurrent runs.
type Runner struct {
	source     CandleSource
	strategies *strategy.Registry
	logger     ports.Logger
	status     Status
}

// NewRunner creates a runner for a single run.
func NewRunner(source CandleSource, strategies *strategy.Registry, logger ports.Logger) (*Runner, error) {
	if source == nil {
		return nil, fmt.Errorf("candle source is required")
	}
	if strategies == nil {
		return nil, fmt.Errorf("strategy registry is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Runner{
		source:     source,
		strategies: strategies,
		logger:     logger,
		status:     StatusInitialized,
	}, nil
}

// Status returns the runner's current lifecycle state.
func (r *Runner) Status() Status { return r.status }

// Run executes the backtest. On any error the run transitions to Failed and
// no partial result is returned. Cancellation is honored between bars.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	r.status = StatusRunning

	result, err := r.run(ctx, req)
	if err != nil {
		r.status = StatusFailed
		return nil, err
	}
	r.status = StatusCompleted
	return result, nil
}

func (r *Runner) run(ctx context.Context, req Request) (*Result, error) {
	if req.InitialCapital <= 0 {
		return nil, fmt.Errorf("initial capital must be positive: %w", ports.ErrInvalidRequest)
	}

	strat, err := r.strategies.Create(req.StrategyID, req.Params)
	if err != nil {
		return nil, err
	}

	bars, err := r.source.FetchHistoricalCandles(ctx, req.Symbol, req.Interval, req.Start, req.End)
	if err != nil {
		return nil, err
	}

	warmup := strat.WarmupPeriod()
	if len(bars) < warmup {
		return nil, fmt.Errorf("strategy %q requires at least %d bars, got %d: %w",
			req.StrategyID, warmup, len(bars), ports.ErrInsufficientData)
	}

	r.logger.Info(ctx, "Backtest replay starting", map[string]interface{}{
		"strategy": req.StrategyID, "symbol": req.Symbol, "interval": req.Interval, "bars": len(bars),
	})

	p := newPortfolio(req.InitialCapital)
	var pending *domain.Signal

	for t := 0; t < len(bars); t++ {
		// Cooperative cancellation between bars: no partial result survives.
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("backtest canceled at bar %d: %w: %w", t, ports.ErrContextCanceled, err)
		}

		bar := bars[t]

		// A signal from bar t-1 fills at this bar's open, never at the close
		// of the bar that produced it.
		if pending != nil {
			p.execute(*pending, bar.OpenTime, bar.Open)
			pending = nil
		}

		p.markToMarket(bar.CloseTime, bar.Close)

		if t >= warmup {
			signal := strat.Evaluate(ctx, bars[:t+1])
			if signal.Action != domain.ActionHold {
				pending = &signal
			}
		}
	}
	// A signal from the final bar has no next open to fill at; it is discarded.

	result := &Result{
		RunID:       uuid.New().String(),
		Request:     req,
		Trades:      p.trades,
		EquityCurve: p.curve,
		Metrics:     p.metrics(),
		FinalEquity: p.equity(),
		CompletedAt: time.Now().UTC(),
	}

	r.logger.Info(ctx, "Backtest replay complete", map[string]interface{}{
		"runID": result.RunID, "trades": len(result.Trades), "finalEquity": result.FinalEquity,
	})
	return result, nil
}
