package market

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// ErrNoData is returned by a provider that answered but had no bars for
// the requested ticker and range. The chain treats it like any other
// source failure and moves on to the next provider.
var ErrNoData = errors.New("no bars for requested range")

// Provider fetches daily bars for one ticker. Bars come back ordered
// chronologically ascending. Implementations must be safe for concurrent
// use; fetches are idempotent reads.
type Provider interface {
	Name() string
	GetBars(ctx context.Context, ticker string, rng Range) ([]Bar, error)
}

// UnavailableError reports that every source in the chain failed for a
// ticker. It keeps the per-source errors so the cycle result can show
// why each one was rejected.
type UnavailableError struct {
	Ticker string
	Causes map[string]error // provider name -> failure
}

func (e *UnavailableError) Error() string {
	parts := make([]string, 0, len(e.Causes))
	for name, err := range e.Causes {
		parts = append(parts, fmt.Sprintf("%s: %v", name, err))
	}
	return fmt.Sprintf("market data unavailable for %s (%s)", e.Ticker, strings.Join(parts, "; "))
}

// Chain tries each provider in order and returns the first successful
// result. One fallback hop per source, no retry loops: a request fails
// only when every provider has failed. Each attempt is bounded by the
// chain's per-source timeout so a dead source cannot stall a cycle.
type Chain struct {
	providers []Provider
	timeout   time.Duration
}

func NewChain(timeout time.Duration, providers ...Provider) *Chain {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Chain{providers: providers, timeout: timeout}
}

func (c *Chain) Name() string { return "chain" }

func (c *Chain) GetBars(ctx context.Context, ticker string, rng Range) ([]Bar, error) {
	causes := make(map[string]error, len(c.providers))

	for _, p := range c.providers {
		attempt, cancel := context.WithTimeout(ctx, c.timeout)
		bars, err := p.GetBars(attempt, ticker, rng)
		cancel()

		if err == nil && len(bars) == 0 {
			err = ErrNoData
		}
		if err != nil {
			log.Warn().Err(err).Str("source", p.Name()).Str("ticker", ticker).
				Msg("bar fetch failed, trying next source")
			causes[p.Name()] = err
			continue
		}
		return bars, nil
	}

	return nil, &UnavailableError{Ticker: ticker, Causes: causes}
}

// breakerProvider wraps a provider in a circuit breaker so a source that
// keeps failing is skipped immediately instead of burning its full
// timeout on every cycle.
type breakerProvider struct {
	inner Provider
	cb    *gobreaker.CircuitBreaker
}

// WithBreaker wraps p in a circuit breaker. The breaker opens after five
// consecutive failures and probes again after one minute.
func WithBreaker(p Provider) Provider {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    p.Name(),
		Timeout: time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("source", name).Str("from", from.String()).Str("to", to.String()).
				Msg("market data breaker state change")
		},
	})
	return &breakerProvider{inner: p, cb: cb}
}

func (b *breakerProvider) Name() string { return b.inner.Name() }

func (b *breakerProvider) GetBars(ctx context.Context, ticker string, rng Range) ([]Bar, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.GetBars(ctx, ticker, rng)
	})
	if err != nil {
		return nil, err
	}
	return out.([]Bar), nil
}
