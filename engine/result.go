package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"autofolio/journal"
	"autofolio/perf"
)

// Stage is where the control loop currently is. Idle is both the
// initial and terminal stage of a cycle; Failed is passed through on an
// unrecoverable error before the loop settles back to Idle, with the
// failure recorded in the cycle result.
type Stage string

const (
	StageIdle       Stage = "idle"
	StageFetching   Stage = "fetching"
	StageRiskCheck  Stage = "risk-check"
	StageExecuting  Stage = "executing"
	StageValuating  Stage = "valuating"
	StagePersisting Stage = "persisting"
	StageFailed     Stage = "failed"
)

// Cycle outcome.
type Status string

const (
	StatusOK      Status = "ok"      // every decision executed
	StatusPartial Status = "partial" // cycle completed, some decisions skipped
	StatusFailed  Status = "failed"  // stage-level failure aborted the cycle
)

// CycleError is one recorded failure: either a skipped decision or a
// stage-level error. Nothing is silently dropped; everything that went
// wrong during a cycle shows up here.
type CycleError struct {
	Stage  Stage  `json:"stage"`
	Ticker string `json:"ticker,omitempty"`
	Detail string `json:"detail"`
}

// CycleResult is what one full fetch-decide-execute-persist pass
// returns to the caller.
type CycleResult struct {
	Date     time.Time
	Status   Status
	Executed []journal.TradeRecord
	Cash     decimal.Decimal
	Equity   decimal.Decimal
	Metrics  perf.Metrics
	Errors   []CycleError
}

// State is the read-only view of current ledger state.
type State struct {
	Cash        decimal.Decimal
	Positions   []PositionState
	TotalEquity decimal.Decimal
}

// PositionState is one open position as reported to callers.
type PositionState struct {
	Ticker    string
	Shares    decimal.Decimal
	CostBasis decimal.Decimal
	StopLoss  decimal.Decimal
	OpenedOn  time.Time
}
