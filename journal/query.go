package journal

import (
	"database/sql"
	"fmt"
	"time"
)

// TradeHistory returns trades dated within [from, to], oldest first.
// Zero bounds widen the range to everything on that side.
func (j *SQLite) TradeHistory(from, to time.Time) ([]TradeRecord, error) {
	if from.IsZero() {
		from = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	if to.IsZero() {
		to = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
	}

	rows, err := j.db.Query(`
		SELECT seq, trade_id, date, ticker, side, shares, price, cash_after, stop_loss, reason
		FROM trades
		WHERE date >= ? AND date <= ?
		ORDER BY seq ASC`,
		from.Format(dateLayout), to.Format(dateLayout),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTrades(rows)
}

// TradesAfter returns every trade with a sequence number strictly above
// seq, oldest first. Restore uses it to replay trades journaled after
// the latest snapshot.
func (j *SQLite) TradesAfter(seq int64) ([]TradeRecord, error) {
	rows, err := j.db.Query(`
		SELECT seq, trade_id, date, ticker, side, shares, price, cash_after, stop_loss, reason
		FROM trades
		WHERE seq > ?
		ORDER BY seq ASC`,
		seq,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTrades(rows)
}

func collectTrades(rows *sql.Rows) ([]TradeRecord, error) {
	var out []TradeRecord
	for rows.Next() {
		rec, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// LatestSnapshot returns the most recent snapshot, or nil when the
// store is empty (fresh portfolio).
func (j *SQLite) LatestSnapshot() (*Snapshot, error) {
	row := j.db.QueryRow(`SELECT date, cash, equity, through_seq FROM snapshots ORDER BY date DESC LIMIT 1`)

	snap, err := scanSnapshotHeader(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := j.loadPositions(&snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// SnapshotHistory returns every snapshot ordered by date ascending,
// without position detail. Performance analytics only needs the equity
// curve, so the detail rows stay on disk.
func (j *SQLite) SnapshotHistory() ([]Snapshot, error) {
	rows, err := j.db.Query(`SELECT date, cash, equity, through_seq FROM snapshots ORDER BY date ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		snap, err := scanSnapshotHeader(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

func (j *SQLite) loadPositions(snap *Snapshot) error {
	rows, err := j.db.Query(`
		SELECT ticker, shares, cost_basis, stop_loss, price, opened_on
		FROM snapshot_positions
		WHERE date = ?
		ORDER BY ticker ASC`,
		snap.Date.Format(dateLayout),
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			p       PositionDetail
			raw     [4]string
			openedS string
		)
		if err := rows.Scan(&p.Ticker, &raw[0], &raw[1], &raw[2], &raw[3], &openedS); err != nil {
			return err
		}

		if p.Shares, err = parseDecimal(raw[0]); err != nil {
			return fmt.Errorf("snapshot position %s: %w", p.Ticker, err)
		}
		if p.CostBasis, err = parseDecimal(raw[1]); err != nil {
			return fmt.Errorf("snapshot position %s: %w", p.Ticker, err)
		}
		if p.StopLoss, err = parseDecimal(raw[2]); err != nil {
			return fmt.Errorf("snapshot position %s: %w", p.Ticker, err)
		}
		if p.Price, err = parseDecimal(raw[3]); err != nil {
			return fmt.Errorf("snapshot position %s: %w", p.Ticker, err)
		}
		if p.OpenedOn, err = parseDate(openedS); err != nil {
			return fmt.Errorf("snapshot position %s: %w", p.Ticker, err)
		}

		snap.Positions = append(snap.Positions, p)
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshotHeader(row rowScanner) (Snapshot, error) {
	var (
		snap  Snapshot
		dateS string
		cashS string
		eqS   string
	)
	if err := row.Scan(&dateS, &cashS, &eqS, &snap.ThroughSeq); err != nil {
		return Snapshot{}, err
	}

	var err error
	if snap.Date, err = parseDate(dateS); err != nil {
		return Snapshot{}, err
	}
	if snap.Cash, err = parseDecimal(cashS); err != nil {
		return Snapshot{}, err
	}
	if snap.Equity, err = parseDecimal(eqS); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func scanTrade(rows *sql.Rows) (TradeRecord, error) {
	var (
		rec   TradeRecord
		dateS string
		raw   [4]string
	)
	if err := rows.Scan(&rec.Seq, &rec.TradeID, &dateS, &rec.Ticker, &rec.Side,
		&raw[0], &raw[1], &raw[2], &raw[3], &rec.Reason); err != nil {
		return TradeRecord{}, err
	}

	var err error
	if rec.Date, err = parseDate(dateS); err != nil {
		return TradeRecord{}, err
	}
	if rec.Shares, err = parseDecimal(raw[0]); err != nil {
		return TradeRecord{}, err
	}
	if rec.Price, err = parseDecimal(raw[1]); err != nil {
		return TradeRecord{}, err
	}
	if rec.CashAfter, err = parseDecimal(raw[2]); err != nil {
		return TradeRecord{}, err
	}
	if rec.StopLoss, err = parseDecimal(raw[3]); err != nil {
		return TradeRecord{}, err
	}
	return rec, nil
}
