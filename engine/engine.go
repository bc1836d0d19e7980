// Package engine runs the automated trading control loop: fetch market
// data, check stop-losses, execute decisions, valuate, persist, report.
// One engine owns one portfolio and runs at most one cycle at a time.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"autofolio/config"
	"autofolio/journal"
	"autofolio/market"
	"autofolio/orders"
	"autofolio/perf"
	"autofolio/portfolio"
	"autofolio/risk"
)

// ErrTradingInProgress rejects a cycle requested while one is already
// active. Requests are rejected, never queued.
var ErrTradingInProgress = errors.New("trading cycle already in progress")

// Engine orchestrates cycles for a single portfolio. The ledger is a
// cycle-exclusive resource: the running flag guarantees a single writer.
type Engine struct {
	cfg   *config.Config
	data  market.Provider
	store journal.Journal
	queue *orders.Queue

	running atomic.Bool

	mu         sync.RWMutex
	ledger     *portfolio.Ledger
	throughSeq int64 // highest trade seq the ledger reflects
	stage      Stage
	last       *CycleResult
}

// New validates the configuration, restores the ledger from the latest
// journaled snapshot and returns a ready engine.
func New(cfg *config.Config, data market.Provider, store journal.Journal, queue *orders.Queue) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}

	e := &Engine{
		cfg:   cfg,
		data:  data,
		store: store,
		queue: queue,
		stage: StageIdle,
	}
	if err := e.reloadLedger(); err != nil {
		return nil, err
	}
	return e, nil
}

// reloadLedger rebuilds in-memory state from durable storage: the last
// snapshot plus a replay of every trade journaled after it. Trades are
// journaled before they are reported, so a failure (or crash) between a
// trade append and its snapshot must never undo the trade; replaying
// the log keeps the ledger in agreement with the audit trail. Called at
// startup and after a persistence failure.
func (e *Engine) reloadLedger() error {
	snap, err := e.store.LatestSnapshot()
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	ledger := portfolio.Restore(snap, decimal.NewFromFloat(e.cfg.Account.StartingCash))

	var through int64
	if snap != nil {
		through = snap.ThroughSeq
	}
	trades, err := e.store.TradesAfter(through)
	if err != nil {
		return fmt.Errorf("load trades after seq %d: %w", through, err)
	}
	for _, rec := range trades {
		if err := ledger.Replay(rec); err != nil {
			return fmt.Errorf("replay trade seq %d: %w", rec.Seq, err)
		}
		through = rec.Seq
	}

	e.mu.Lock()
	e.ledger = ledger
	e.throughSeq = through
	e.mu.Unlock()
	return nil
}

// Stage reports where the loop currently is.
func (e *Engine) Stage() Stage {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stage
}

// LastResult returns the most recent cycle result, or nil before the
// first cycle.
func (e *Engine) LastResult() *CycleResult {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.last
}

func (e *Engine) setStage(s Stage) {
	e.mu.Lock()
	e.stage = s
	e.mu.Unlock()
	log.Debug().Str("stage", string(s)).Msg("cycle stage")
}

// RunCycle performs one full pass for the given date. It is the single
// entry point the presentation layer calls; concurrent calls for the
// same portfolio are rejected with ErrTradingInProgress.
func (e *Engine) RunCycle(ctx context.Context, date time.Time) (*CycleResult, error) {
	if !e.running.CompareAndSwap(false, true) {
		return nil, ErrTradingInProgress
	}
	defer e.running.Store(false)

	date = market.Day(date)
	res := &CycleResult{Date: date, Status: StatusOK}
	log.Info().Str("date", date.Format("2006-01-02")).Msg("cycle start")

	err := e.runStages(ctx, date, res)
	if err != nil {
		res.Status = StatusFailed
		e.setStage(StageFailed)
	} else if len(res.Errors) > 0 {
		res.Status = StatusPartial
	}

	// The loop always re-enters from Idle; a failure is carried by the
	// stored result, not by a stuck stage.
	e.mu.Lock()
	e.last = res
	e.stage = StageIdle
	e.mu.Unlock()

	log.Info().Str("status", string(res.Status)).Int("trades", len(res.Executed)).
		Int("errors", len(res.Errors)).Msg("cycle done")
	return res, err
}

func (e *Engine) runStages(ctx context.Context, date time.Time, res *CycleResult) error {
	// Fetching. A failure here aborts before any ledger mutation:
	// partial market data never triggers partial trading.
	e.setStage(StageFetching)

	// Peek, don't drain: a fetch abort must leave every pending intent
	// in the queue for the next cycle.
	pending, err := e.queue.Load()
	if err != nil {
		res.Errors = append(res.Errors, CycleError{Stage: StageFetching, Detail: err.Error()})
		return fmt.Errorf("load order queue: %w", err)
	}

	held := e.ledger.Positions()
	tickers := cycleTickers(held, pending)

	histDays := e.cfg.Market.HistoryDays
	if histDays <= 0 {
		histDays = 30
	}
	rng := market.LastDays(date, histDays)

	allBars, fails := market.FetchAll(ctx, e.data, tickers, rng)

	// Every held position needs a price for the stop-loss check and
	// valuation; missing any of them fails the whole stage.
	for _, p := range held {
		if ferr, ok := fails[p.Ticker]; ok {
			res.Errors = append(res.Errors, CycleError{Stage: StageFetching, Ticker: p.Ticker, Detail: ferr.Error()})
			return fmt.Errorf("market data for held position %s: %w", p.Ticker, ferr)
		}
	}
	// A queued ticker without data only loses its own decision.
	for ticker, ferr := range fails {
		res.Errors = append(res.Errors, CycleError{Stage: StageFetching, Ticker: ticker, Detail: ferr.Error()})
	}

	// Held data is in hand, the cycle will reach execution: take the
	// intents now. An intent enqueued since the peek simply misses its
	// price and is reported, never silently dropped.
	pending, err = e.queue.Drain()
	if err != nil {
		res.Errors = append(res.Errors, CycleError{Stage: StageFetching, Detail: err.Error()})
		return fmt.Errorf("drain order queue: %w", err)
	}

	latest := market.Latest(allBars)

	// RiskCheck: deterministic stop-loss sweep over fresh prices.
	e.setStage(StageRiskCheck)
	stops := risk.StopLosses(held, latest)
	triggered := risk.Triggered(stops)

	decisions := stops
	for _, o := range pending {
		if triggered[o.Ticker] {
			// A stop-sold position takes no further decisions this cycle.
			res.Errors = append(res.Errors, CycleError{Stage: StageRiskCheck, Ticker: o.Ticker,
				Detail: "order skipped: stop-loss already liquidated position"})
			continue
		}
		if _, ok := fails[o.Ticker]; ok {
			continue // already reported during fetch
		}
		decisions = append(decisions, o.Decision())
	}

	// Executing: per-decision failures are recovered and reported, a
	// journal failure aborts with whatever already committed standing.
	e.setStage(StageExecuting)
	exec := &orders.Engine{
		Ledger:       e.ledger,
		Journal:      e.store,
		MaxPositions: e.cfg.Trading.MaxPositions,
		MaxAllocPct:  decimal.NewFromFloat(e.cfg.Trading.MaxAllocPct),
		StopLossPct:  decimal.NewFromFloat(e.cfg.Trading.StopLossPct),
	}

	opens := make(map[string]decimal.Decimal, len(latest))
	closes := make(map[string]decimal.Decimal, len(latest))
	for ticker, bar := range latest {
		opens[ticker] = decimal.NewFromFloat(bar.Open)
		closes[ticker] = decimal.NewFromFloat(bar.Close)
	}

	execRes, execErr := exec.Execute(date, decisions, opens)
	res.Executed = execRes.Executed
	for _, f := range execRes.Failed {
		res.Errors = append(res.Errors, CycleError{Stage: StageExecuting, Ticker: f.Decision.Ticker, Detail: f.Err.Error()})
	}
	if execErr != nil {
		res.Errors = append(res.Errors, CycleError{Stage: StageExecuting, Detail: execErr.Error()})
		if rerr := e.reloadLedger(); rerr != nil {
			log.Error().Err(rerr).Msg("ledger reload after journal failure")
		}
		return execErr
	}

	// Valuating: mark the surviving book to the day's closes.
	e.setStage(StageValuating)

	e.mu.RLock()
	through := e.throughSeq
	e.mu.RUnlock()
	for _, rec := range execRes.Executed {
		if rec.Seq > through {
			through = rec.Seq
		}
	}

	snap := e.ledger.Snapshot(date, closes)
	snap.ThroughSeq = through
	res.Cash = snap.Cash
	res.Equity = snap.Equity

	// Persisting: one snapshot per date, rewriting the same date
	// overwrites it. Until this commits the cycle has not succeeded.
	e.setStage(StagePersisting)
	if err := e.store.WriteSnapshot(snap); err != nil {
		res.Errors = append(res.Errors, CycleError{Stage: StagePersisting, Detail: err.Error()})
		if rerr := e.reloadLedger(); rerr != nil {
			log.Error().Err(rerr).Msg("ledger reload after snapshot failure")
		}
		return fmt.Errorf("persist snapshot: %w", err)
	}

	e.mu.Lock()
	e.throughSeq = through
	e.mu.Unlock()

	// Metrics are best-effort: a benchmark outage degrades the report,
	// it does not fail a cycle that already traded and persisted.
	metrics, err := e.computePerformance(ctx, e.cfg.Market.Benchmarks)
	if err != nil {
		res.Errors = append(res.Errors, CycleError{Stage: StagePersisting, Detail: "performance: " + err.Error()})
	} else {
		res.Metrics = metrics
	}

	return nil
}

// cycleTickers collects every ticker the cycle needs prices for.
func cycleTickers(held []portfolio.Position, pending []orders.QueuedOrder) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range held {
		if !seen[p.Ticker] {
			seen[p.Ticker] = true
			out = append(out, p.Ticker)
		}
	}
	for _, o := range pending {
		if !seen[o.Ticker] {
			seen[o.Ticker] = true
			out = append(out, o.Ticker)
		}
	}
	sort.Strings(out)
	return out
}

// PortfolioState returns a read-only view of the ledger. Positions are
// valued at cost basis; callers wanting marked equity use the latest
// snapshot or run a cycle.
func (e *Engine) PortfolioState() State {
	e.mu.RLock()
	ledger := e.ledger
	e.mu.RUnlock()

	st := State{Cash: ledger.Cash()}
	for _, p := range ledger.Positions() {
		st.Positions = append(st.Positions, PositionState{
			Ticker:    p.Ticker,
			Shares:    p.Shares,
			CostBasis: p.CostBasis,
			StopLoss:  p.StopLoss,
			OpenedOn:  p.OpenedOn,
		})
	}
	st.TotalEquity = ledger.TotalEquity(nil)
	return st
}

// TradeHistory returns the chronological trade log for the range.
func (e *Engine) TradeHistory(from, to time.Time) ([]journal.TradeRecord, error) {
	return e.store.TradeHistory(from, to)
}

// Performance computes the metrics bundle from the journaled snapshot
// history against the given benchmarks (falling back to the configured
// ones when none are passed).
func (e *Engine) Performance(ctx context.Context, benchmarks []string) (perf.Metrics, error) {
	if len(benchmarks) == 0 {
		benchmarks = e.cfg.Market.Benchmarks
	}
	return e.computePerformance(ctx, benchmarks)
}

func (e *Engine) computePerformance(ctx context.Context, benchmarks []string) (perf.Metrics, error) {
	history, err := e.store.SnapshotHistory()
	if err != nil {
		return perf.Metrics{}, fmt.Errorf("snapshot history: %w", err)
	}
	if len(history) == 0 {
		return perf.Metrics{}, perf.ErrInsufficientData
	}

	equity := make([]float64, len(history))
	for i, s := range history {
		equity[i] = s.Equity.InexactFloat64()
	}

	// The benchmark series is fetched independently of the portfolio;
	// the first benchmark with data anchors the CAPM regression.
	var benchCloses []float64
	rng := market.Range{Start: history[0].Date, End: history[len(history)-1].Date}
	for _, ticker := range benchmarks {
		bars, err := e.data.GetBars(ctx, ticker, rng)
		if err != nil {
			log.Warn().Err(err).Str("ticker", ticker).Msg("benchmark fetch failed")
			continue
		}
		benchCloses = make([]float64, len(bars))
		for i, b := range bars {
			benchCloses[i] = b.Close
		}
		break
	}

	return perf.Compute(equity, benchCloses, e.cfg.Trading.RiskFreeRate), nil
}
