package domain

import (
	"strings"
	"time"
)

// Candle represents a single OHLCV bucket for a (symbol, interval) pair.
type Candle struct {
	OpenTime  time.Time `json:"openTime"`  // Start of the bucket (aligned to the interval grid)
	CloseTime time.Time `json:"closeTime"` // End of the bucket (OpenTime + interval - 1ms)
	Symbol    string    `json:"symbol"`
	Interval  Interval  `json:"interval"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Tick is a single trade event from the live feed. Ticks are transient:
// they exist only between the feed and the aggregator and are never persisted.
type Tick struct {
	Symbol    string
	Price     float64
	Quantity  float64
	Timestamp time.Time
}

// Interval is a candle bucket duration code (e.g. "1m", "1h").
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval3m  Interval = "3m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval30m Interval = "30m"
	Interval1h  Interval = "1h"
	Interval4h  Interval = "4h"
	Interval1d  Interval = "1d"
)

var intervalDurations = map[Interval]time.Duration{
	Interval1m:  time.Minute,
	Interval3m:  3 * time.Minute,
	Interval5m:  5 * time.Minute,
	Interval15m: 15 * time.Minute,
	Interval30m: 30 * time.Minute,
	Interval1h:  time.Hour,
	Interval4h:  4 * time.Hour,
	Interval1d:  24 * time.Hour,
}

// ParseInterval normalizes and validates an interval code.
// Returns false if the code is not one of the supported set.
func ParseInterval(s string) (Interval, bool) {
	iv := Interval(strings.ToLower(strings.TrimSpace(s)))
	_, ok := intervalDurations[iv]
	return iv, ok
}

// Duration returns the bucket duration for the interval.
// Returns 0 for an unknown interval.
func (i Interval) Duration() time.Duration {
	return intervalDurations[i]
}

// SupportedIntervals returns all valid interval codes in ascending duration order.
func SupportedIntervals() []Interval {
	return []Interval{Interval1m, Interval3m, Interval5m, Interval15m, Interval30m, Interval1h, Interval4h, Interval1d}
}

// GroupKey derives the deterministic subscription group identifier for a
// (symbol, interval) pair. Symbol case never affects the result.
func GroupKey(symbol string, interval Interval) string {
	return strings.ToLower(strings.TrimSpace(symbol)) + "@" + string(interval)
}

// BucketStart aligns ts down to the interval grid. Buckets are aligned to
// multiples of the interval duration since the Unix epoch (UTC), so boundaries
// are stable across restarts and independent of first-tick arrival time.
func (i Interval) BucketStart(ts time.Time) time.Time {
	d := i.Duration()
	if d <= 0 {
		return ts
	}
	return time.UnixMilli(ts.UnixMilli() - ts.UnixMilli()%d.Milliseconds()).UTC()
}
