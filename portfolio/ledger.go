package portfolio

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"autofolio/journal"
	"autofolio/pkg/id"
)

// Ledger owns cash and the open position set. It is a single-writer
// resource: the control loop serializes all mutation within a cycle,
// the mutex only guards concurrent readers (status queries) against
// that writer.
type Ledger struct {
	mu        sync.RWMutex
	cash      decimal.Decimal
	positions map[string]*Position
}

func NewLedger(startingCash decimal.Decimal) *Ledger {
	return &Ledger{
		cash:      startingCash,
		positions: make(map[string]*Position),
	}
}

// Restore rebuilds the ledger from the latest journaled snapshot. A nil
// snapshot means a fresh portfolio at startingCash.
func Restore(snap *journal.Snapshot, startingCash decimal.Decimal) *Ledger {
	if snap == nil {
		return NewLedger(startingCash)
	}

	l := NewLedger(snap.Cash)
	for _, p := range snap.Positions {
		l.positions[p.Ticker] = &Position{
			Ticker:    p.Ticker,
			Shares:    p.Shares,
			CostBasis: p.CostBasis,
			StopLoss:  p.StopLoss,
			OpenedOn:  p.OpenedOn,
		}
	}
	return l
}

func (l *Ledger) Cash() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cash
}

// Position returns a copy of the open position for ticker, if any.
func (l *Ledger) Position(ticker string) (Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	p, ok := l.positions[ticker]
	if !ok {
		return Position{}, false
	}
	return *p, true
}

// Positions returns copies of all open positions, ticker ascending.
func (l *Ledger) Positions() []Position {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Position, 0, len(l.positions))
	for _, p := range l.positions {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out
}

// TotalEquity is cash plus mark-to-market value of every position.
// Positions without a mark are valued at cost basis.
func (l *Ledger) TotalEquity(marks map[string]decimal.Decimal) decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()

	equity := l.cash
	for _, p := range l.positions {
		mark, ok := marks[p.Ticker]
		if !ok {
			mark = p.CostBasis
		}
		equity = equity.Add(p.MarketValue(mark))
	}
	return equity
}

// Apply validates t and, if it passes, commits the cash and position
// change together and returns the trade record for the journal. On any
// rejection the ledger is untouched.
func (l *Ledger) Apply(t Trade) (journal.TradeRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if t.Ticker == "" || !t.Shares.IsPositive() || !t.Price.IsPositive() {
		return journal.TradeRecord{}, fmt.Errorf("%s %s shares=%s price=%s: %w",
			t.Side, t.Ticker, t.Shares, t.Price, ErrBadTrade)
	}

	switch t.Side {
	case journal.SideBuy:
		if err := l.applyBuy(t); err != nil {
			return journal.TradeRecord{}, err
		}
	case journal.SideSell:
		if err := l.applySell(t); err != nil {
			return journal.TradeRecord{}, err
		}
	default:
		return journal.TradeRecord{}, fmt.Errorf("side %q: %w", t.Side, ErrBadTrade)
	}

	// Buys record the position's effective stop so a trade-log replay
	// can rebuild it.
	var stop decimal.Decimal
	if t.Side == journal.SideBuy {
		if p, ok := l.positions[t.Ticker]; ok {
			stop = p.StopLoss
		}
	}

	return journal.TradeRecord{
		TradeID:   id.New(),
		Date:      t.Date,
		Ticker:    t.Ticker,
		Side:      t.Side,
		Shares:    t.Shares,
		Price:     t.Price,
		CashAfter: l.cash,
		StopLoss:  stop,
		Reason:    t.Reason,
	}, nil
}

// Replay re-applies a journaled trade during restore. The record's
// cash_after is authoritative: after the position change the cash is
// set to exactly what the log says it was.
func (l *Ledger) Replay(rec journal.TradeRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	t := Trade{
		Date:     rec.Date,
		Ticker:   rec.Ticker,
		Side:     rec.Side,
		Shares:   rec.Shares,
		Price:    rec.Price,
		StopLoss: rec.StopLoss,
		Reason:   rec.Reason,
	}

	switch rec.Side {
	case journal.SideBuy:
		if err := l.applyBuy(t); err != nil {
			return err
		}
	case journal.SideSell:
		if err := l.applySell(t); err != nil {
			return err
		}
	default:
		return fmt.Errorf("side %q: %w", rec.Side, ErrBadTrade)
	}

	l.cash = rec.CashAfter
	return nil
}

func (l *Ledger) applyBuy(t Trade) error {
	cost := t.Shares.Mul(t.Price)
	if cost.GreaterThan(l.cash) {
		return fmt.Errorf("buy %s for %s with cash %s: %w",
			t.Ticker, cost, l.cash, ErrInsufficientFunds)
	}

	p, ok := l.positions[t.Ticker]
	if !ok {
		opened := t.Date
		if opened.IsZero() {
			opened = time.Now().UTC()
		}
		l.positions[t.Ticker] = &Position{
			Ticker:    t.Ticker,
			Shares:    t.Shares,
			CostBasis: t.Price,
			StopLoss:  t.StopLoss,
			OpenedOn:  opened,
		}
	} else {
		// Weighted-average basis across the old lot and the new one.
		total := p.Shares.Add(t.Shares)
		p.CostBasis = p.Shares.Mul(p.CostBasis).Add(cost).Div(total)
		p.Shares = total
		if t.StopLoss.IsPositive() {
			p.StopLoss = t.StopLoss
		}
	}

	l.cash = l.cash.Sub(cost)
	return nil
}

func (l *Ledger) applySell(t Trade) error {
	p, ok := l.positions[t.Ticker]
	if !ok || p.Shares.LessThan(t.Shares) {
		held := decimal.Zero
		if ok {
			held = p.Shares
		}
		return fmt.Errorf("sell %s of %s holding %s: %w",
			t.Shares, t.Ticker, held, ErrInsufficientShares)
	}

	// Partial sells keep the per-share basis; only quantity shrinks.
	p.Shares = p.Shares.Sub(t.Shares)
	if p.Shares.IsZero() {
		delete(l.positions, t.Ticker)
	}

	l.cash = l.cash.Add(t.Shares.Mul(t.Price))
	return nil
}

// Snapshot materializes the current state for date, marking positions
// with the given prices.
func (l *Ledger) Snapshot(date time.Time, marks map[string]decimal.Decimal) journal.Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	snap := journal.Snapshot{
		Date: date,
		Cash: l.cash,
	}

	tickers := make([]string, 0, len(l.positions))
	for t := range l.positions {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	equity := l.cash
	for _, ticker := range tickers {
		p := *l.positions[ticker]
		mark, ok := marks[p.Ticker]
		if !ok {
			mark = p.CostBasis
		}
		equity = equity.Add(p.MarketValue(mark))
		snap.Positions = append(snap.Positions, journal.PositionDetail{
			Ticker:    p.Ticker,
			Shares:    p.Shares,
			CostBasis: p.CostBasis,
			StopLoss:  p.StopLoss,
			Price:     mark,
			OpenedOn:  p.OpenedOn,
		})
	}
	snap.Equity = equity
	return snap
}
