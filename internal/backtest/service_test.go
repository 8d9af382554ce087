package backtest

import (
	"context"
	"testing"

	"candleflow/internal/ports"
	"candleflow/internal/strategy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, source CandleSource) *Service {
	t.Helper()
	svc, err := NewService(ServiceConfig{
		Source:     source,
		Strategies: strategy.NewDefaultRegistry(testLogger()),
		Runs:       NewRunStore(),
		Logger:     testLogger(),
	})
	require.NoError(t, err)
	return svc
}

func TestService_RunArchivesResult(t *testing.T) {
	prices := make([]float64, 50)
	for i := range prices {
		prices[i] = 100 + float64(i%5)
	}
	svc := newTestService(t, &fixtureSource{bars: flatBars(prices)})

	result, err := svc.Run(context.Background(), Request{
		StrategyID: "sma-cross", Symbol: "BTCUSDT", Interval: "1h",
		InitialCapital: 10000,
		Params:         strategy.Params{"fastPeriod": 2, "slowPeriod": 4},
	})
	require.NoError(t, err)

	archived, err := svc.GetRun(result.RunID)
	require.NoError(t, err)
	assert.Equal(t, result, archived)

	runs := svc.ListRuns()
	require.Len(t, runs, 1)
	assert.Equal(t, result.RunID, runs[0].RunID)
}

func TestService_FailedRunIsNotArchived(t *testing.T) {
	svc := newTestService(t, &fixtureSource{bars: flatBars([]float64{1, 2})})

	_, err := svc.Run(context.Background(), Request{
		StrategyID: "sma-cross", Symbol: "BTCUSDT", Interval: "1h", InitialCapital: 1000,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrInsufficientData)
	assert.Empty(t, svc.ListRuns())
}

func TestService_StrategyIDs(t *testing.T) {
	svc := newTestService(t, &fixtureSource{})
	assert.ElementsMatch(t, []string{"sma-cross", "rsi-reversal"}, svc.StrategyIDs())
}
