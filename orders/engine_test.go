package orders

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autofolio/journal"
	"autofolio/portfolio"
)

// memJournal records appended trades in memory. failAfter > 0 makes the
// nth append fail.
type memJournal struct {
	trades    []journal.TradeRecord
	failAfter int
}

func (m *memJournal) AppendTrade(rec journal.TradeRecord) (int64, error) {
	if m.failAfter > 0 && len(m.trades)+1 >= m.failAfter {
		return 0, errors.New("disk full")
	}
	m.trades = append(m.trades, rec)
	return int64(len(m.trades)), nil
}

func (m *memJournal) TradeHistory(from, to time.Time) ([]journal.TradeRecord, error) {
	return m.trades, nil
}

func (m *memJournal) TradesAfter(seq int64) ([]journal.TradeRecord, error) {
	if int(seq) >= len(m.trades) {
		return nil, nil
	}
	return m.trades[seq:], nil
}

func (m *memJournal) WriteSnapshot(journal.Snapshot) error { return nil }

func (m *memJournal) LatestSnapshot() (*journal.Snapshot, error) { return nil, nil }

func (m *memJournal) SnapshotHistory() ([]journal.Snapshot, error) { return nil, nil }

func (m *memJournal) Close() error { return nil }

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func testDate() time.Time {
	return time.Date(2026, 8, 4, 0, 0, 0, 0, time.UTC)
}

func newEngine(cash string) (*Engine, *memJournal) {
	j := &memJournal{}
	return &Engine{
		Ledger:       portfolio.NewLedger(d(cash)),
		Journal:      j,
		MaxPositions: 5,
		MaxAllocPct:  d("0.20"),
		StopLossPct:  d("0.10"),
	}, j
}

func TestExecuteBuyAtOpeningPrice(t *testing.T) {
	t.Parallel()

	e, j := newEngine("10000")

	ds := []Decision{{Ticker: "ABC", Side: journal.SideBuy, Shares: d("10"), Reason: journal.ReasonManual}}
	opens := map[string]decimal.Decimal{"ABC": d("50")}

	res, err := e.Execute(testDate(), ds, opens)
	require.NoError(t, err)
	require.Len(t, res.Executed, 1)
	assert.Empty(t, res.Failed)

	rec := res.Executed[0]
	assert.True(t, rec.Price.Equal(d("50")))
	assert.True(t, rec.CashAfter.Equal(d("9500")))
	assert.Equal(t, int64(1), rec.Seq)
	assert.Len(t, j.trades, 1)

	// Default stop applied from the open.
	p, ok := e.Ledger.Position("ABC")
	require.True(t, ok)
	assert.True(t, p.StopLoss.Equal(d("45")), "stop: %s", p.StopLoss)
}

func TestExecuteAllocSizedBuy(t *testing.T) {
	t.Parallel()

	e, _ := newEngine("10000")

	// 20% of 10000 equity is a 2000 budget; 2000/66 floors to 30 shares.
	ds := []Decision{{Ticker: "ABC", Side: journal.SideBuy, Reason: journal.ReasonAuto}}
	opens := map[string]decimal.Decimal{"ABC": d("66")}

	res, err := e.Execute(testDate(), ds, opens)
	require.NoError(t, err)
	require.Len(t, res.Executed, 1)
	assert.True(t, res.Executed[0].Shares.Equal(d("30")), "shares: %s", res.Executed[0].Shares)
}

func TestExecuteBuySkippedAtPositionLimit(t *testing.T) {
	t.Parallel()

	e, _ := newEngine("100000")
	e.MaxPositions = 2
	e.MaxAllocPct = d("1")

	opens := map[string]decimal.Decimal{"AAA": d("10"), "BBB": d("10"), "CCC": d("10")}
	for _, tk := range []string{"AAA", "BBB"} {
		_, err := e.Ledger.Apply(portfolio.Trade{
			Date: testDate(), Ticker: tk, Side: journal.SideBuy,
			Shares: d("1"), Price: d("10"), Reason: journal.ReasonManual,
		})
		require.NoError(t, err)
	}

	ds := []Decision{
		{Ticker: "CCC", Side: journal.SideBuy, Shares: d("1"), Reason: journal.ReasonAuto},
		{Ticker: "AAA", Side: journal.SideBuy, Shares: d("1"), Reason: journal.ReasonAuto},
	}

	res, err := e.Execute(testDate(), ds, opens)
	require.NoError(t, err)

	// Adding to a held position is fine; a third ticker is not.
	require.Len(t, res.Executed, 1)
	assert.Equal(t, "AAA", res.Executed[0].Ticker)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "CCC", res.Failed[0].Decision.Ticker)
}

func TestExecuteBuySkippedOverAllocationCap(t *testing.T) {
	t.Parallel()

	e, _ := newEngine("10000")

	// 50 shares at 50 is 2500, above the 2000 cap: skipped whole.
	ds := []Decision{{Ticker: "ABC", Side: journal.SideBuy, Shares: d("50"), Reason: journal.ReasonManual}}
	opens := map[string]decimal.Decimal{"ABC": d("50")}

	res, err := e.Execute(testDate(), ds, opens)
	require.NoError(t, err)
	assert.Empty(t, res.Executed)
	require.Len(t, res.Failed, 1)
	assert.True(t, e.Ledger.Cash().Equal(d("10000")))
}

func TestExecuteSellProceedsFundBuys(t *testing.T) {
	t.Parallel()

	e, _ := newEngine("100")
	e.MaxAllocPct = d("1")

	_, err := e.Ledger.Apply(portfolio.Trade{
		Date: testDate(), Ticker: "OLD", Side: journal.SideBuy,
		Shares: d("10"), Price: d("10"), Reason: journal.ReasonManual,
	})
	require.NoError(t, err)
	require.True(t, e.Ledger.Cash().Equal(d("0")))

	// The buy alone is unaffordable; the sell runs first and funds it.
	ds := []Decision{
		{Ticker: "NEW", Side: journal.SideBuy, Shares: d("5"), Reason: journal.ReasonManual},
		{Ticker: "OLD", Side: journal.SideSell, Shares: d("10"), Reason: journal.ReasonManual},
	}
	opens := map[string]decimal.Decimal{"OLD": d("12"), "NEW": d("20")}

	res, err := e.Execute(testDate(), ds, opens)
	require.NoError(t, err)
	require.Len(t, res.Executed, 2)
	assert.Equal(t, journal.SideSell, res.Executed[0].Side)
	assert.Equal(t, journal.SideBuy, res.Executed[1].Side)
	assert.True(t, e.Ledger.Cash().Equal(d("20")), "cash: %s", e.Ledger.Cash())
}

func TestExecuteSkipsDecisionWithoutOpen(t *testing.T) {
	t.Parallel()

	e, _ := newEngine("10000")

	ds := []Decision{
		{Ticker: "GONE", Side: journal.SideBuy, Shares: d("1"), Reason: journal.ReasonManual},
		{Ticker: "ABC", Side: journal.SideBuy, Shares: d("10"), Reason: journal.ReasonManual},
	}
	opens := map[string]decimal.Decimal{"ABC": d("50")}

	res, err := e.Execute(testDate(), ds, opens)
	require.NoError(t, err)
	assert.Len(t, res.Executed, 1)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "GONE", res.Failed[0].Decision.Ticker)
}

func TestExecuteAbortsOnJournalFailure(t *testing.T) {
	t.Parallel()

	e, j := newEngine("10000")
	j.failAfter = 2

	ds := []Decision{
		{Ticker: "AAA", Side: journal.SideBuy, Shares: d("10"), Reason: journal.ReasonManual},
		{Ticker: "BBB", Side: journal.SideBuy, Shares: d("10"), Reason: journal.ReasonManual},
	}
	opens := map[string]decimal.Decimal{"AAA": d("50"), "BBB": d("50")}

	res, err := e.Execute(testDate(), ds, opens)
	require.Error(t, err)

	// The first trade committed and stands; the second did not.
	assert.Len(t, res.Executed, 1)
	assert.Len(t, j.trades, 1)
}
