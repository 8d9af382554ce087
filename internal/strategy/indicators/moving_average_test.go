package indicators

import (
	"context"
	"testing"
	"time"

	"candleflow/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candlesFromCloses(closes ...float64) []*domain.Candle {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]*domain.Candle, 0, len(closes))
	for i, c := range closes {
		out = append(out, &domain.Candle{
			OpenTime: start.Add(time.Duration(i) * time.Minute),
			Close:    c,
		})
	}
	return out
}

func TestSMA_Calculate(t *testing.T) {
	ma := NewMovingAverage(MovingAverageConfig{
		IndicatorConfig: IndicatorConfig{Period: 3},
		Type:            SimpleMovingAverage,
	})

	// Only the last 3 closes count.
	value, err := ma.Calculate(context.Background(), candlesFromCloses(1, 2, 3, 4, 5))
	require.NoError(t, err)
	assert.InDelta(t, 4.0, value, 1e-9)

	value, err = ma.Calculate(context.Background(), candlesFromCloses(10, 20, 30))
	require.NoError(t, err)
	assert.InDelta(t, 20.0, value, 1e-9)
}

func TestSMA_NotEnoughData(t *testing.T) {
	ma := NewMovingAverage(MovingAverageConfig{
		IndicatorConfig: IndicatorConfig{Period: 5},
		Type:            SimpleMovingAverage,
	})

	_, err := ma.Calculate(context.Background(), candlesFromCloses(1, 2, 3))
	assert.Error(t, err)
}

func TestEMA_Calculate(t *testing.T) {
	ma := NewMovingAverage(MovingAverageConfig{
		IndicatorConfig: IndicatorConfig{Period: 3},
		Type:            ExponentialMovingAverage,
	})

	// Seed = SMA(2,4,6) = 4, multiplier = 0.5:
	// after 8 -> 6, after 10 -> 8.
	value, err := ma.Calculate(context.Background(), candlesFromCloses(2, 4, 6, 8, 10))
	require.NoError(t, err)
	assert.InDelta(t, 8.0, value, 1e-9)
}

func TestMovingAverage_UnsupportedType(t *testing.T) {
	ma := NewMovingAverage(MovingAverageConfig{
		IndicatorConfig: IndicatorConfig{Period: 2},
		Type:            MovingAverageType("WMA"),
	})

	_, err := ma.Calculate(context.Background(), candlesFromCloses(1, 2, 3))
	assert.Error(t, err)
}
