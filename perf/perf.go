// Package perf computes performance analytics over the snapshot
// history: total return, annualized Sharpe, maximum drawdown and a
// CAPM-style regression against a benchmark series.
package perf

import (
	"errors"
	"math"
)

// TradingDays is the annualization base for daily statistics.
const TradingDays = 252

// ErrInsufficientData is returned instead of NaN whenever a statistic
// has fewer than two points to work with, or a degenerate series
// (zero variance) that would divide by zero.
var ErrInsufficientData = errors.New("insufficient data")

// Metrics is the bundle handed back to callers. Beta and Alpha are only
// meaningful when BenchmarkOK is true.
type Metrics struct {
	TotalReturn float64
	Sharpe      float64
	SharpeOK    bool
	MaxDrawdown float64
	Beta        float64
	Alpha       float64
	BenchmarkOK bool
}

// Returns converts a value series into simple period-over-period
// percentage changes. Zero-valued points are skipped as a pair since a
// return from zero is undefined.
func Returns(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}

	out := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] == 0 {
			continue
		}
		out = append(out, values[i]/values[i-1]-1)
	}
	return out
}

// TotalReturn is the simple return from the first point to the last.
func TotalReturn(values []float64) (float64, error) {
	if len(values) < 2 || values[0] == 0 {
		return 0, ErrInsufficientData
	}
	return values[len(values)-1]/values[0] - 1, nil
}

// Sharpe is the annualized Sharpe ratio of daily returns against an
// annual risk-free rate: mean daily excess over sample stddev, scaled
// by sqrt(252).
func Sharpe(returns []float64, riskFree float64) (float64, error) {
	if len(returns) < 2 {
		return 0, ErrInsufficientData
	}

	dailyRF := riskFree / TradingDays
	excess := make([]float64, len(returns))
	for i, r := range returns {
		excess[i] = r - dailyRF
	}

	m := mean(excess)
	sd := stddev(excess, m)
	if sd == 0 {
		return 0, ErrInsufficientData
	}

	return m / sd * math.Sqrt(TradingDays), nil
}

// MaxDrawdown is the largest peak-to-trough decline over the series,
// expressed as a non-positive fraction. A monotonically non-decreasing
// curve has drawdown 0.
func MaxDrawdown(values []float64) float64 {
	var (
		peak float64
		dd   float64
	)
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if d := v/peak - 1; d < dd {
				dd = d
			}
		}
	}
	return dd
}

// CAPM regresses portfolio returns on benchmark returns and reports
// beta and annualized alpha. Both series must be the same length.
func CAPM(portfolio, benchmark []float64) (beta, alpha float64, err error) {
	n := len(portfolio)
	if n < 2 || len(benchmark) != n {
		return 0, 0, ErrInsufficientData
	}

	mp := mean(portfolio)
	mb := mean(benchmark)

	var cov, varB float64
	for i := 0; i < n; i++ {
		cov += (portfolio[i] - mp) * (benchmark[i] - mb)
		varB += (benchmark[i] - mb) * (benchmark[i] - mb)
	}
	if varB == 0 {
		return 0, 0, ErrInsufficientData
	}

	beta = cov / varB
	alpha = (mp - beta*mb) * TradingDays
	return beta, alpha, nil
}

// Compute fills a Metrics bundle from an equity curve and an optional
// benchmark price series. Statistics that lack data are flagged off
// rather than reported as NaN.
func Compute(equity, benchmark []float64, riskFree float64) Metrics {
	var m Metrics

	if tr, err := TotalReturn(equity); err == nil {
		m.TotalReturn = tr
	}
	m.MaxDrawdown = MaxDrawdown(equity)

	rets := Returns(equity)
	if s, err := Sharpe(rets, riskFree); err == nil {
		m.Sharpe = s
		m.SharpeOK = true
	}

	bRets := Returns(benchmark)
	if len(bRets) > len(rets) {
		// Align from the tail: the benchmark series may start earlier
		// than the portfolio history.
		bRets = bRets[len(bRets)-len(rets):]
	}
	if len(bRets) == len(rets) {
		if beta, alpha, err := CAPM(rets, bRets); err == nil {
			m.Beta = beta
			m.Alpha = alpha
			m.BenchmarkOK = true
		}
	}

	return m
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stddev(xs []float64, m float64) float64 {
	var ss float64
	for _, x := range xs {
		ss += (x - m) * (x - m)
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}
