// Package portfolio holds the ledger: cash plus open positions, the
// single source of truth for account state. All mutation goes through
// Apply, which validates before touching anything, so a rejected trade
// leaves no partial state behind.
package portfolio

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Rejection conditions. Wrapped with detail by Apply; callers branch
// with errors.Is.
var (
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInsufficientShares = errors.New("insufficient shares")
	ErrBadTrade           = errors.New("invalid trade")
)

// Position is one open holding. Shares stays strictly positive while
// the position is open; a sell that drains it removes it from the
// ledger entirely.
type Position struct {
	Ticker    string
	Shares    decimal.Decimal
	CostBasis decimal.Decimal // average cost per share
	StopLoss  decimal.Decimal
	OpenedOn  time.Time
}

// MarketValue is Shares times the given mark price.
func (p Position) MarketValue(mark decimal.Decimal) decimal.Decimal {
	return p.Shares.Mul(mark)
}

// Trade is a validated intent to mutate the ledger. StopLoss is only
// meaningful on buys.
type Trade struct {
	Date     time.Time
	Ticker   string
	Side     string
	Shares   decimal.Decimal
	Price    decimal.Decimal
	StopLoss decimal.Decimal
	Reason   string
}
