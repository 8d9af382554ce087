package strategies

import (
	"context"
	"testing"
	"time"

	"candleflow/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func windowFromCloses(closes ...float64) []*domain.Candle {
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

func newCross(t *testing.T, fast, slow int) *SMACross {
	t.Helper()
	s, err := NewSMACross(SMACrossConfig{FastPeriod: fast, SlowPeriod: slow})
	require.NoError(t, err)
	return s
}

func TestNewSMACross_Validation(t *testing.T) {
	tests := []struct {
		name string
		fast int
		slow int
	}{
		{"zero fast", 0, 30},
		{"negative slow", 10, -1},
		{"fast equals slow", 10, 10},
		{"fast above slow", 30, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSMACross(SMACrossConfig{FastPeriod: tt.fast, SlowPeriod: tt.slow})
			assert.Error(t, err)
		})
	}
}

func TestSMACross_BuyOnUpwardCross(t *testing.T) {
	s := newCross(t, 1, 2)

	// Falling then one rising close: fast(1) moves above slow(2) on the last bar.
	signal := s.Evaluate(context.Background(), windowFromCloses(10, 9, 8, 9))
	assert.Equal(t, domain.ActionBuy, signal.Action)
}

func TestSMACross_SellOnDownwardCross(t *testing.T) {
	s := newCross(t, 1, 2)

	signal := s.Evaluate(context.Background(), windowFromCloses(8, 9, 10, 9))
	assert.Equal(t, domain.ActionSell, signal.Action)
}

func TestSMACross_HoldWithoutCross(t *testing.T) {
	s := newCross(t, 1, 2)

	// Steady uptrend: fast stays above slow the whole way.
	signal := s.Evaluate(context.Background(), windowFromCloses(1, 2, 3, 4, 5))
	assert.Equal(t, domain.ActionHold, signal.Action)

	// Steady downtrend: fast stays below slow.
	signal = s.Evaluate(context.Background(), windowFromCloses(5, 4, 3, 2, 1))
	assert.Equal(t, domain.ActionHold, signal.Action)
}

func TestSMACross_HoldBelowWarmup(t *testing.T) {
	s := newCross(t, 10, 30)
	assert.Equal(t, 31, s.WarmupPeriod())

	signal := s.Evaluate(context.Background(), windowFromCloses(1, 2, 3))
	assert.Equal(t, domain.ActionHold, signal.Action)
}
