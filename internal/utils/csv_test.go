package utils

import (
	"path/filepath"
	"testing"
	"time"

	"candleflow/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandleCSVRoundTrip(t *testing.T) {
	open := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	candles := []*domain.Candle{
		{
			OpenTime: open, CloseTime: open.Add(time.Hour - time.Millisecond),
			Symbol: "btcusdt", Interval: domain.Interval1h,
			Open: 100.5, High: 105.25, Low: 98.125, Close: 101, Volume: 42.5,
		},
		{
			OpenTime: open.Add(time.Hour), CloseTime: open.Add(2*time.Hour - time.Millisecond),
			Symbol: "btcusdt", Interval: domain.Interval1h,
			Open: 101, High: 102, Low: 99, Close: 99.75, Volume: 17,
		},
	}

	path := filepath.Join(t.TempDir(), "candles.csv")
	require.NoError(t, WriteCandlesToCSV(candles, path))

	loaded, err := ReadCandlesFromCSV(path)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	for i := range candles {
		assert.True(t, candles[i].OpenTime.Equal(loaded[i].OpenTime))
		assert.True(t, candles[i].CloseTime.Equal(loaded[i].CloseTime))
		assert.Equal(t, candles[i].Symbol, loaded[i].Symbol)
		assert.Equal(t, candles[i].Interval, loaded[i].Interval)
		assert.Equal(t, candles[i].Close, loaded[i].Close)
		assert.Equal(t, candles[i].Volume, loaded[i].Volume)
	}
}

func TestReadCandlesFromCSV_MissingFile(t *testing.T) {
	_, err := ReadCandlesFromCSV(filepath.Join(t.TempDir(), "absent.csv"))
	assert.Error(t, err)
}
