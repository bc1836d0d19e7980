package orders

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"autofolio/journal"
	"autofolio/portfolio"
)

// DecisionError records one decision that could not be executed. These
// are recovered locally: the rest of the cycle continues.
type DecisionError struct {
	Decision Decision
	Err      error
}

func (e DecisionError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Decision.Side, e.Decision.Ticker, e.Err)
}

// Result is what one execution pass produced.
type Result struct {
	Executed []journal.TradeRecord
	Failed   []DecisionError
}

// Engine applies decisions to the ledger at day-D opening prices and
// journals every committed trade before reporting success.
type Engine struct {
	Ledger       *portfolio.Ledger
	Journal      journal.Journal
	MaxPositions int
	MaxAllocPct  decimal.Decimal // fraction of total equity per position
	StopLossPct  decimal.Decimal // default stop distance for buys without one
}

// Execute runs the decisions in fixed order (stop-loss sells, rebalance
// sells, remaining sells, buys). opens maps ticker to that date's
// opening price; a decision without an open price is skipped and
// reported. A journal write failure aborts execution and is returned as
// the error; trades committed before it stand as written.
func (e *Engine) Execute(date time.Time, decisions []Decision, opens map[string]decimal.Decimal) (Result, error) {
	Arrange(decisions)

	var res Result
	for _, d := range decisions {
		open, ok := opens[d.Ticker]
		if !ok || !open.IsPositive() {
			res.Failed = append(res.Failed, DecisionError{d, fmt.Errorf("no opening price")})
			continue
		}

		trade, err := e.buildTrade(date, d, open, opens)
		if err != nil {
			res.Failed = append(res.Failed, DecisionError{d, err})
			continue
		}

		rec, err := e.Ledger.Apply(trade)
		if err != nil {
			res.Failed = append(res.Failed, DecisionError{d, err})
			continue
		}

		seq, err := e.Journal.AppendTrade(rec)
		if err != nil {
			// Durable write failed: nothing after this point may be
			// treated as committed.
			return res, fmt.Errorf("journal trade %s %s: %w", rec.Side, rec.Ticker, err)
		}
		rec.Seq = seq

		log.Info().Str("ticker", rec.Ticker).Str("side", rec.Side).
			Str("shares", rec.Shares.String()).Str("price", rec.Price.String()).
			Str("reason", rec.Reason).Msg("trade executed")
		res.Executed = append(res.Executed, rec)
	}

	return res, nil
}

func (e *Engine) buildTrade(date time.Time, d Decision, open decimal.Decimal, opens map[string]decimal.Decimal) (portfolio.Trade, error) {
	trade := portfolio.Trade{
		Date:   date,
		Ticker: d.Ticker,
		Side:   d.Side,
		Shares: d.Shares,
		Price:  open,
		Reason: d.Reason,
	}

	if d.Side != journal.SideBuy {
		return trade, nil
	}

	shares, err := e.sizeBuy(d, open, opens)
	if err != nil {
		return portfolio.Trade{}, err
	}
	trade.Shares = shares

	trade.StopLoss = d.StopLoss
	if !trade.StopLoss.IsPositive() && e.StopLossPct.IsPositive() {
		trade.StopLoss = open.Mul(decimal.NewFromInt(1).Sub(e.StopLossPct))
	}
	return trade, nil
}

// sizeBuy bounds a buy by available cash, the open-position count limit
// and the per-position allocation cap. A buy that would violate a limit
// is skipped whole, never trimmed to fit the count limit; alloc-sized
// buys are budgeted under the cap to begin with. Sizing is whole-share.
func (e *Engine) sizeBuy(d Decision, open decimal.Decimal, opens map[string]decimal.Decimal) (decimal.Decimal, error) {
	if _, held := e.Ledger.Position(d.Ticker); !held {
		if e.MaxPositions > 0 && len(e.Ledger.Positions()) >= e.MaxPositions {
			return decimal.Zero, fmt.Errorf("position limit %d reached", e.MaxPositions)
		}
	}

	equity := e.Ledger.TotalEquity(opens)
	allocCap := equity
	if e.MaxAllocPct.IsPositive() {
		allocCap = equity.Mul(e.MaxAllocPct)
	}

	shares := d.Shares
	if shares.IsZero() {
		alloc := d.AllocPct
		if !alloc.IsPositive() || alloc.GreaterThan(e.MaxAllocPct) {
			alloc = e.MaxAllocPct
		}
		budget := decimal.Min(equity.Mul(alloc), e.Ledger.Cash())
		shares = budget.Div(open).Floor()
	}

	if !shares.IsPositive() {
		return decimal.Zero, fmt.Errorf("sized to zero shares at %s", open)
	}

	cost := shares.Mul(open)
	if cost.GreaterThan(allocCap) {
		return decimal.Zero, fmt.Errorf("cost %s exceeds allocation cap %s", cost, allocCap)
	}
	return shares, nil
}
