package market

import (
	"context"
	"sync"
)

// FetchAll fetches bars for every ticker concurrently. The tickers are
// independent reads with no shared mutable state, so they fan out; each
// one still goes through the provider's own timeout and fallback. The
// returned maps are keyed by ticker: one holds the bars that came back,
// the other the per-ticker failures.
func FetchAll(ctx context.Context, p Provider, tickers []string, rng Range) (map[string][]Bar, map[string]error) {
	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		bars  = make(map[string][]Bar, len(tickers))
		fails = make(map[string]error)
	)

	seen := make(map[string]bool, len(tickers))
	for _, ticker := range tickers {
		if ticker == "" || seen[ticker] {
			continue
		}
		seen[ticker] = true

		wg.Add(1)
		go func(ticker string) {
			defer wg.Done()

			b, err := p.GetBars(ctx, ticker, rng)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				fails[ticker] = err
				return
			}
			bars[ticker] = b
		}(ticker)
	}

	wg.Wait()
	return bars, fails
}

// Latest returns the last bar of each series, keyed by ticker.
func Latest(all map[string][]Bar) map[string]Bar {
	out := make(map[string]Bar, len(all))
	for ticker, series := range all {
		if len(series) == 0 {
			continue
		}
		out[ticker] = series[len(series)-1]
	}
	return out
}
