package backtest

import (
	"time"

	"candleflow/internal/domain"
)

// portfolio is the simulated account state for one run. Long-only: holdings
// never go negative and cash never goes below zero.
type portfolio struct {
	initial  float64
	cash     float64
	holdings float64
	avgEntry float64

	trades []domain.Trade
	curve  []EquityPoint

	peak        float64
	maxDrawdown float64

	roundTrips     int
	wins           int
	grossProfit    float64
	grossLoss      float64
	rejectedOrders int
}

func newPortfolio(initialCapital float64) *portfolio {
	return &portfolio{
		initial: initialCapital,
		cash:    initialCapital,
		peak:    initialCapital,
		trades:  make([]domain.Trade, 0),
		curve:   make([]EquityPoint, 0),
	}
}

// execute fills a signal at the given price. Orders the portfolio cannot
// cover are recorded as rejected and skipped, not treated as errors.
func (p *portfolio) execute(signal domain.Signal, at time.Time, price float64) {
	switch signal.Action {
	case domain.ActionBuy:
		qty := signal.Quantity
		cost := qty * price
		if qty <= 0 {
			// Full allocation. Charging exactly the cash on hand avoids the
			// rounding of (cash/price)*price drifting above cash.
			qty = p.cash / price
			cost = p.cash
		}
		if qty <= 0 || cost > p.cash {
			p.reject(at, domain.Buy, price, qty)
			return
		}
		// Weighted average entry across stacked buys.
		p.avgEntry = (p.avgEntry*p.holdings + cost) / (p.holdings + qty)
		p.holdings += qty
		p.cash -= cost
		p.trades = append(p.trades, domain.Trade{Time: at, Side: domain.Buy, Price: price, Quantity: qty})

	case domain.ActionSell:
		qty := signal.Quantity
		if qty <= 0 {
			qty = p.holdings
		}
		if qty <= 0 || qty > p.holdings {
			p.reject(at, domain.Sell, price, qty)
			return
		}
		pnl := (price - p.avgEntry) * qty
		p.roundTrips++
		if pnl > 0 {
			p.wins++
			p.grossProfit += pnl
		} else {
			p.grossLoss -= pnl
		}
		p.holdings -= qty
		p.cash += qty * price
		if p.holdings == 0 {
			p.avgEntry = 0
		}
		p.trades = append(p.trades, domain.Trade{Time: at, Side: domain.Sell, Price: price, Quantity: qty})
	}
}

func (p *portfolio) reject(at time.Time, side domain.Side, price, qty float64) {
	p.rejectedOrders++
	p.trades = append(p.trades, domain.Trade{Time: at, Side: side, Price: price, Quantity: qty, Rejected: true})
}

// markToMarket appends an equity sample and updates drawdown tracking.
func (p *portfolio) markToMarket(at time.Time, price float64) {
	eq := p.cash + p.holdings*price
	p.curve = append(p.curve, EquityPoint{Time: at, Equity: eq})

	if eq > p.peak {
		p.peak = eq
	} else if p.peak > 0 {
		dd := (p.peak - eq) / p.peak
		if dd > p.maxDrawdown {
			p.maxDrawdown = dd
		}
	}
}

func (p *portfolio) equity() float64 {
	if len(p.curve) == 0 {
		return p.initial
	}
	return p.curve[len(p.curve)-1].Equity
}

func (p *portfolio) metrics() Metrics {
	m := Metrics{
		MaxDrawdown:    p.maxDrawdown,
		RoundTrips:     p.roundTrips,
		RejectedOrders: p.rejectedOrders,
	}
	if p.initial > 0 {
		m.TotalReturn = (p.equity() - p.initial) / p.initial
	}
	if p.roundTrips > 0 {
		m.WinRate = float64(p.wins) / float64(p.roundTrips)
		if p.wins > 0 {
			m.AverageWin = p.grossProfit / float64(p.wins)
		}
		if losses := p.roundTrips - p.wins; losses > 0 {
			m.AverageLoss = p.grossLoss / float64(losses)
		}
	}
	if p.grossLoss > 0 {
		m.ProfitFactor = p.grossProfit / p.grossLoss
	}
	return m
}
