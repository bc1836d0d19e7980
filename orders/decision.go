// Package orders turns trading decisions into ledger mutations using a
// market-on-open price convention, and keeps the queue of next-open
// order intents.
package orders

import (
	"sort"

	"github.com/shopspring/decimal"

	"autofolio/journal"
)

// Decision is one buy or sell to execute. Shares may be zero on a buy,
// in which case the engine sizes it from AllocPct (fraction of total
// equity) bounded by the configured per-position cap.
type Decision struct {
	Ticker   string
	Side     string
	Shares   decimal.Decimal
	AllocPct decimal.Decimal
	StopLoss decimal.Decimal
	Reason   string
}

// rank fixes the execution order inside a cycle: stop-loss sells free
// cash first, then rebalancing sells, then everything else sells, and
// buys always last so sale proceeds can fund them.
func rank(d Decision) int {
	if d.Side == journal.SideSell {
		switch d.Reason {
		case journal.ReasonStopLoss:
			return 0
		case journal.ReasonRebal:
			return 1
		default:
			return 2
		}
	}
	return 3
}

// Arrange sorts decisions into execution order. Ties break by ticker
// ascending so identical inputs always execute identically.
func Arrange(ds []Decision) {
	sort.SliceStable(ds, func(i, j int) bool {
		ri, rj := rank(ds[i]), rank(ds[j])
		if ri != rj {
			return ri < rj
		}
		return ds[i].Ticker < ds[j].Ticker
	})
}
