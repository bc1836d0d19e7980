package portfolio

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autofolio/journal"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func buy(ticker, shares, price string) Trade {
	return Trade{
		Date:   time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC),
		Ticker: ticker,
		Side:   journal.SideBuy,
		Shares: d(shares),
		Price:  d(price),
		Reason: journal.ReasonManual,
	}
}

func sell(ticker, shares, price string) Trade {
	t := buy(ticker, shares, price)
	t.Side = journal.SideSell
	return t
}

func TestApplyBuyDebitsExactCost(t *testing.T) {
	t.Parallel()

	l := NewLedger(d("10000"))

	rec, err := l.Apply(buy("ABC", "10", "50"))
	require.NoError(t, err)

	assert.True(t, l.Cash().Equal(d("9500")), "cash: %s", l.Cash())
	assert.True(t, rec.CashAfter.Equal(d("9500")))

	p, ok := l.Position("ABC")
	require.True(t, ok)
	assert.True(t, p.Shares.Equal(d("10")))
	assert.True(t, p.CostBasis.Equal(d("50")))
}

func TestApplyBuyInsufficientFunds(t *testing.T) {
	t.Parallel()

	l := NewLedger(d("100"))

	_, err := l.Apply(buy("ABC", "10", "50"))
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	// Rejected trades leave no partial state.
	assert.True(t, l.Cash().Equal(d("100")))
	assert.Empty(t, l.Positions())
}

func TestApplyBuyWeightedAverageBasis(t *testing.T) {
	t.Parallel()

	l := NewLedger(d("10000"))

	_, err := l.Apply(buy("ABC", "10", "50"))
	require.NoError(t, err)
	_, err = l.Apply(buy("ABC", "10", "70"))
	require.NoError(t, err)

	p, ok := l.Position("ABC")
	require.True(t, ok)
	assert.True(t, p.Shares.Equal(d("20")))
	assert.True(t, p.CostBasis.Equal(d("60")), "basis: %s", p.CostBasis)
}

func TestApplySellPartialKeepsBasis(t *testing.T) {
	t.Parallel()

	l := NewLedger(d("10000"))

	_, err := l.Apply(buy("ABC", "10", "50"))
	require.NoError(t, err)
	_, err = l.Apply(sell("ABC", "4", "55"))
	require.NoError(t, err)

	p, ok := l.Position("ABC")
	require.True(t, ok)
	assert.True(t, p.Shares.Equal(d("6")))
	assert.True(t, p.CostBasis.Equal(d("50")))
	assert.True(t, l.Cash().Equal(d("9720")), "cash: %s", l.Cash())
}

func TestApplySellExhaustingClosesPosition(t *testing.T) {
	t.Parallel()

	l := NewLedger(d("10000"))

	_, err := l.Apply(buy("ABC", "10", "50"))
	require.NoError(t, err)
	_, err = l.Apply(sell("ABC", "10", "40"))
	require.NoError(t, err)

	_, ok := l.Position("ABC")
	assert.False(t, ok)
	assert.True(t, l.Cash().Equal(d("9900")), "cash: %s", l.Cash())
}

func TestApplySellInsufficientShares(t *testing.T) {
	t.Parallel()

	l := NewLedger(d("10000"))

	_, err := l.Apply(buy("ABC", "5", "50"))
	require.NoError(t, err)

	_, err = l.Apply(sell("ABC", "6", "50"))
	assert.ErrorIs(t, err, ErrInsufficientShares)

	_, err = l.Apply(sell("XYZ", "1", "50"))
	assert.ErrorIs(t, err, ErrInsufficientShares)

	p, ok := l.Position("ABC")
	require.True(t, ok)
	assert.True(t, p.Shares.Equal(d("5")))
	assert.True(t, l.Cash().Equal(d("9750")))
}

func TestApplyRejectsMalformedTrades(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		trade Trade
	}{
		{"no ticker", buy("", "10", "50")},
		{"zero shares", buy("ABC", "0", "50")},
		{"negative price", buy("ABC", "10", "-1")},
		{"bad side", Trade{Ticker: "ABC", Side: "hold", Shares: d("1"), Price: d("1")}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			l := NewLedger(d("10000"))
			_, err := l.Apply(tt.trade)
			assert.ErrorIs(t, err, ErrBadTrade)
			assert.True(t, l.Cash().Equal(d("10000")))
		})
	}
}

func TestCashNeverNegativeOverSequence(t *testing.T) {
	t.Parallel()

	l := NewLedger(d("1000"))

	trades := []Trade{
		buy("AAA", "5", "100"),  // -500
		buy("BBB", "4", "100"),  // -400
		buy("CCC", "2", "100"),  // rejected, only 100 left
		sell("AAA", "5", "120"), // +600
		buy("CCC", "6", "100"),  // -600
	}

	for _, tr := range trades {
		l.Apply(tr)
		assert.False(t, l.Cash().IsNegative(), "cash went negative: %s", l.Cash())
	}

	assert.True(t, l.Cash().Equal(d("100")), "cash: %s", l.Cash())
}

func TestTotalEquityMarksToMarket(t *testing.T) {
	t.Parallel()

	l := NewLedger(d("10000"))
	_, err := l.Apply(buy("ABC", "10", "50"))
	require.NoError(t, err)

	marks := map[string]decimal.Decimal{"ABC": d("60")}
	assert.True(t, l.TotalEquity(marks).Equal(d("10100")))

	// Without a mark the position is valued at basis.
	assert.True(t, l.TotalEquity(nil).Equal(d("10000")))
}

func TestReplayRebuildsPositionAndCash(t *testing.T) {
	t.Parallel()

	src := NewLedger(d("10000"))

	tr := buy("ABC", "10", "50")
	tr.StopLoss = d("45")
	buyRec, err := src.Apply(tr)
	require.NoError(t, err)
	assert.True(t, buyRec.StopLoss.Equal(d("45")), "recorded stop: %s", buyRec.StopLoss)

	sellRec, err := src.Apply(sell("ABC", "4", "60"))
	require.NoError(t, err)
	assert.True(t, sellRec.StopLoss.IsZero())

	// A fresh ledger replaying the log converges on the same state.
	dst := NewLedger(d("10000"))
	require.NoError(t, dst.Replay(buyRec))
	require.NoError(t, dst.Replay(sellRec))

	assert.True(t, dst.Cash().Equal(src.Cash()), "cash: %s vs %s", dst.Cash(), src.Cash())
	p, ok := dst.Position("ABC")
	require.True(t, ok)
	assert.True(t, p.Shares.Equal(d("6")))
	assert.True(t, p.CostBasis.Equal(d("50")))
	assert.True(t, p.StopLoss.Equal(d("45")))
}

func TestReplayCashFollowsRecord(t *testing.T) {
	t.Parallel()

	l := NewLedger(d("10000"))
	rec, err := l.Apply(buy("ABC", "10", "50"))
	require.NoError(t, err)

	// The journaled cash_after is authoritative on replay, so a replayed
	// ledger can never disagree with the trade log.
	rec.CashAfter = d("9499.99")
	fresh := NewLedger(d("10000"))
	require.NoError(t, fresh.Replay(rec))
	assert.True(t, fresh.Cash().Equal(d("9499.99")))
}

func TestSnapshotAndRestoreRoundTrip(t *testing.T) {
	t.Parallel()

	l := NewLedger(d("10000"))
	_, err := l.Apply(buy("ABC", "10", "50"))
	require.NoError(t, err)
	_, err = l.Apply(buy("XYZ", "5", "20"))
	require.NoError(t, err)

	date := time.Date(2026, 8, 4, 0, 0, 0, 0, time.UTC)
	snap := l.Snapshot(date, map[string]decimal.Decimal{"ABC": d("55"), "XYZ": d("25")})

	assert.True(t, snap.Cash.Equal(d("9400")))
	assert.True(t, snap.Equity.Equal(d("10075")), "equity: %s", snap.Equity)
	require.Len(t, snap.Positions, 2)
	assert.Equal(t, "ABC", snap.Positions[0].Ticker)
	assert.Equal(t, "XYZ", snap.Positions[1].Ticker)

	restored := Restore(&snap, d("0"))
	assert.True(t, restored.Cash().Equal(l.Cash()))
	assert.Equal(t, len(l.Positions()), len(restored.Positions()))

	fresh := Restore(nil, d("5000"))
	assert.True(t, fresh.Cash().Equal(d("5000")))
	assert.Empty(t, fresh.Positions())
}
