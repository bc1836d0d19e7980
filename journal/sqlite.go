package journal

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// SQLite implements Journal on a single sqlite database file.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

// AppendTrade inserts one trade record and returns its sequence number.
// The trades table is insert-only; nothing in this package updates or
// deletes from it.
func (j *SQLite) AppendTrade(t TradeRecord) (int64, error) {
	res, err := j.db.Exec(`
		INSERT INTO trades
		(trade_id, date, ticker, side, shares, price, cash_after, stop_loss, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TradeID, t.Date.Format(dateLayout), t.Ticker, t.Side,
		t.Shares.String(), t.Price.String(), t.CashAfter.String(),
		t.StopLoss.String(), t.Reason,
	)
	if err != nil {
		return 0, fmt.Errorf("append trade %s %s: %w", t.Side, t.Ticker, err)
	}
	return res.LastInsertId()
}

// WriteSnapshot writes the snapshot for its date, replacing whatever
// was there. The header upsert and the position detail rewrite commit
// in one transaction so a crash cannot leave a half-written date.
func (j *SQLite) WriteSnapshot(s Snapshot) error {
	tx, err := j.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	date := s.Date.Format(dateLayout)

	if _, err := tx.Exec(`
		INSERT INTO snapshots (date, cash, equity, through_seq)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			cash = excluded.cash, equity = excluded.equity,
			through_seq = excluded.through_seq`,
		date, s.Cash.String(), s.Equity.String(), s.ThroughSeq,
	); err != nil {
		return fmt.Errorf("write snapshot %s: %w", date, err)
	}

	if _, err := tx.Exec(`DELETE FROM snapshot_positions WHERE date = ?`, date); err != nil {
		return fmt.Errorf("write snapshot %s: %w", date, err)
	}

	for _, p := range s.Positions {
		if _, err := tx.Exec(`
			INSERT INTO snapshot_positions (date, ticker, shares, cost_basis, stop_loss, price, opened_on)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			date, p.Ticker, p.Shares.String(), p.CostBasis.String(),
			p.StopLoss.String(), p.Price.String(), p.OpenedOn.Format(dateLayout),
		); err != nil {
			return fmt.Errorf("write snapshot %s %s: %w", date, p.Ticker, err)
		}
	}

	return tx.Commit()
}

func (j *SQLite) Close() error {
	return j.db.Close()
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}

func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
