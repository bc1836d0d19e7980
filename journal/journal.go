// Package journal is the durable store for the trading loop: an
// append-only trade log plus a per-date portfolio snapshot table. The
// ledger reads it at startup and writes through it after every
// mutation; in-memory state that has not been journaled is never
// treated as authoritative.
package journal

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade sides.
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// Reason codes recorded with every trade.
const (
	ReasonManual   = "manual"
	ReasonAuto     = "auto"
	ReasonStopLoss = "stop-loss"
	ReasonRebal    = "rebalance"
)

// TradeRecord is one executed buy or sell. Records are append-only:
// once written they are never mutated or deleted. Seq is assigned by
// the store and increases monotonically, which fixes the order of
// same-day trades for the same ticker. StopLoss carries the effective
// stop on the position after a buy, so a restore that replays the log
// can rebuild stops; it is zero on sells.
type TradeRecord struct {
	Seq       int64
	TradeID   string
	Date      time.Time
	Ticker    string
	Side      string
	Shares    decimal.Decimal
	Price     decimal.Decimal
	CashAfter decimal.Decimal
	StopLoss  decimal.Decimal
	Reason    string
}

// PositionDetail is the per-position slice of a snapshot.
type PositionDetail struct {
	Ticker    string
	Shares    decimal.Decimal
	CostBasis decimal.Decimal
	StopLoss  decimal.Decimal
	Price     decimal.Decimal // mark price used for the snapshot
	OpenedOn  time.Time
}

// Snapshot is the materialized portfolio state for one calendar date:
// cash, mark-to-market equity and per-position detail. Exactly one
// snapshot exists per date; rewriting the same date overwrites it.
// ThroughSeq is the highest trade sequence the snapshot incorporates;
// a restore starts from the snapshot and replays every trade past it.
type Snapshot struct {
	Date       time.Time
	Cash       decimal.Decimal
	Equity     decimal.Decimal
	ThroughSeq int64
	Positions  []PositionDetail
}

// Journal is the persistence contract the ledger and control loop
// depend on.
type Journal interface {
	AppendTrade(TradeRecord) (int64, error)
	TradeHistory(from, to time.Time) ([]TradeRecord, error)
	TradesAfter(seq int64) ([]TradeRecord, error)

	WriteSnapshot(Snapshot) error
	LatestSnapshot() (*Snapshot, error)
	SnapshotHistory() ([]Snapshot, error)

	Close() error
}
