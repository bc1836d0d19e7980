// Package risk evaluates open positions against their stop-loss
// thresholds.
package risk

import (
	"sort"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"autofolio/journal"
	"autofolio/market"
	"autofolio/orders"
	"autofolio/portfolio"
)

// StopLosses returns a full-liquidation sell for every position whose
// bar traded at or below its stop. The day's low is the trigger, so an
// intraday breach counts even if the close recovered; execution price
// is still the next pass's opening print.
//
// Output order is ticker ascending, always: repeated runs over the same
// inputs must produce the same decision sequence.
func StopLosses(positions []portfolio.Position, bars map[string]market.Bar) []orders.Decision {
	var out []orders.Decision

	for _, p := range positions {
		if !p.StopLoss.IsPositive() {
			continue
		}
		bar, ok := bars[p.Ticker]
		if !ok {
			continue
		}

		low := decimal.NewFromFloat(bar.Low)
		if low.GreaterThan(p.StopLoss) {
			continue
		}

		log.Info().Str("ticker", p.Ticker).Str("stop", p.StopLoss.String()).
			Float64("low", bar.Low).Msg("stop-loss triggered")

		// Stop-loss sells are always the whole position.
		out = append(out, orders.Decision{
			Ticker: p.Ticker,
			Side:   journal.SideSell,
			Shares: p.Shares,
			Reason: journal.ReasonStopLoss,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out
}

// Triggered reports the set of tickers named in decisions. The control
// loop uses it to exclude stop-sold positions from any other decision
// in the same cycle.
func Triggered(decisions []orders.Decision) map[string]bool {
	out := make(map[string]bool, len(decisions))
	for _, d := range decisions {
		out[d.Ticker] = true
	}
	return out
}
