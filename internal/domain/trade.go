package domain

import "time"

// Side represents the direction of a simulated order (BUY or SELL).
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// SignalAction is a strategy's decision for the current bar.
type SignalAction string

const (
	ActionBuy  SignalAction = "BUY"
	ActionSell SignalAction = "SELL"
	ActionHold SignalAction = "HOLD"
)

// Signal is the output of a strategy evaluation. Quantity is optional:
// zero means "as much as the portfolio allows".
type Signal struct {
	Action   SignalAction
	Quantity float64
}

// Hold is the neutral signal.
func Hold() Signal { return Signal{Action: ActionHold} }

// Trade is a single executed (or rejected) simulated order within a backtest.
type Trade struct {
	Time     time.Time `json:"time"` // Open time of the bar the order filled on
	Side     Side      `json:"side"`
	Price    float64   `json:"price"` // Fill price (open of the execution bar)
	Quantity float64   `json:"quantity"`
	Rejected bool      `json:"rejected,omitempty"` // Insufficient cash/holdings; not executed
}

// Subscription ties a user to a candle group.
type Subscription struct {
	UserID   string   `json:"userId"`
	Symbol   string   `json:"symbol"`
	Interval Interval `json:"interval"`
	GroupKey string   `json:"groupKey"`
}
