package indicators

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRSI(period int) *RSI {
	return NewRSI(RSIConfig{
		IndicatorConfig: IndicatorConfig{Period: period},
		Overbought:      70,
		Oversold:        30,
	})
}

func TestRSI_AllGains(t *testing.T) {
	rsi := newTestRSI(3)

	value, err := rsi.Calculate(context.Background(), candlesFromCloses(1, 2, 3, 4, 5))
	require.NoError(t, err)
	assert.Equal(t, 100.0, value)
	assert.True(t, rsi.IsOverbought(value))
}

func TestRSI_AllLosses(t *testing.T) {
	rsi := newTestRSI(3)

	value, err := rsi.Calculate(context.Background(), candlesFromCloses(5, 4, 3, 2, 1))
	require.NoError(t, err)
	assert.Equal(t, 0.0, value)
	assert.True(t, rsi.IsOversold(value))
}

func TestRSI_FlatSeriesIsNeutral(t *testing.T) {
	rsi := newTestRSI(3)

	value, err := rsi.Calculate(context.Background(), candlesFromCloses(7, 7, 7, 7, 7))
	require.NoError(t, err)
	assert.Equal(t, 50.0, value)
	assert.False(t, rsi.IsOverbought(value))
	assert.False(t, rsi.IsOversold(value))
}

func TestRSI_BalancedMoves(t *testing.T) {
	rsi := newTestRSI(2)

	// Gains and losses of equal size over the seed window: RS = 1, RSI = 50.
	value, err := rsi.Calculate(context.Background(), candlesFromCloses(10, 12, 10))
	require.NoError(t, err)
	assert.InDelta(t, 50.0, value, 1e-9)
}

func TestRSI_NotEnoughData(t *testing.T) {
	rsi := newTestRSI(14)

	_, err := rsi.Calculate(context.Background(), candlesFromCloses(1, 2, 3))
	assert.Error(t, err)
	assert.Equal(t, 15, rsi.RequiredDataPoints())
}
