package market

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider serves canned bars or a canned error.
type fakeProvider struct {
	name  string
	bars  map[string][]Bar
	err   error
	calls int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) GetBars(ctx context.Context, ticker string, rng Range) ([]Bar, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.bars[ticker], nil
}

func testBars(dates ...string) []Bar {
	out := make([]Bar, 0, len(dates))
	for _, ds := range dates {
		d, err := time.Parse("2006-01-02", ds)
		if err != nil {
			panic(err)
		}
		out = append(out, Bar{Date: d, Open: 50, High: 51, Low: 49, Close: 50.5, Volume: 1000})
	}
	return out
}

func testRange() Range {
	return Range{
		Start: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
	}
}

func TestChainUsesPrimaryWhenHealthy(t *testing.T) {
	t.Parallel()

	primary := &fakeProvider{name: "primary", bars: map[string][]Bar{"XYZ": testBars("2026-08-03")}}
	fallback := &fakeProvider{name: "fallback"}
	chain := NewChain(time.Second, primary, fallback)

	bars, err := chain.GetBars(context.Background(), "XYZ", testRange())
	require.NoError(t, err)
	assert.Len(t, bars, 1)
	assert.Equal(t, 0, fallback.calls)
}

func TestChainFallsBackOnPrimaryError(t *testing.T) {
	t.Parallel()

	primary := &fakeProvider{name: "primary", err: errors.New("connection refused")}
	fallback := &fakeProvider{name: "fallback", bars: map[string][]Bar{"XYZ": testBars("2026-08-03", "2026-08-04")}}
	chain := NewChain(time.Second, primary, fallback)

	bars, err := chain.GetBars(context.Background(), "XYZ", testRange())
	require.NoError(t, err)
	assert.Len(t, bars, 2)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, fallback.calls)
}

func TestChainFallsBackOnEmptyResult(t *testing.T) {
	t.Parallel()

	// An empty answer is a failure, not a success with no bars.
	primary := &fakeProvider{name: "primary", bars: map[string][]Bar{}}
	fallback := &fakeProvider{name: "fallback", bars: map[string][]Bar{"XYZ": testBars("2026-08-03")}}
	chain := NewChain(time.Second, primary, fallback)

	bars, err := chain.GetBars(context.Background(), "XYZ", testRange())
	require.NoError(t, err)
	assert.Len(t, bars, 1)
}

func TestChainFailsWhenAllSourcesFail(t *testing.T) {
	t.Parallel()

	primary := &fakeProvider{name: "primary", err: errors.New("timeout")}
	fallback := &fakeProvider{name: "fallback", err: errors.New("404")}
	chain := NewChain(time.Second, primary, fallback)

	_, err := chain.GetBars(context.Background(), "XYZ", testRange())
	require.Error(t, err)

	var unavail *UnavailableError
	require.ErrorAs(t, err, &unavail)
	assert.Equal(t, "XYZ", unavail.Ticker)
	assert.Len(t, unavail.Causes, 2)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	failing := &fakeProvider{name: "primary", err: errors.New("down")}
	wrapped := WithBreaker(failing)

	for i := 0; i < 10; i++ {
		_, err := wrapped.GetBars(context.Background(), "XYZ", testRange())
		assert.Error(t, err)
	}

	// Once open, the breaker rejects without touching the source.
	assert.Equal(t, 5, failing.calls)
}

func TestFetchAllSplitsResultsAndFailures(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{name: "p", bars: map[string][]Bar{
		"ABC": testBars("2026-08-03"),
		"DEF": testBars("2026-08-03", "2026-08-04"),
	}}
	chain := NewChain(time.Second, p)

	bars, fails := FetchAll(context.Background(), chain, []string{"ABC", "DEF", "GONE", "ABC", ""}, testRange())

	assert.Len(t, bars, 2)
	assert.Len(t, bars["DEF"], 2)
	require.Len(t, fails, 1)
	assert.Contains(t, fails, "GONE")
}

func TestLatestPicksLastBar(t *testing.T) {
	t.Parallel()

	all := map[string][]Bar{
		"ABC":   testBars("2026-08-03", "2026-08-04"),
		"EMPTY": nil,
	}

	latest := Latest(all)
	require.Contains(t, latest, "ABC")
	assert.NotContains(t, latest, "EMPTY")
	assert.Equal(t, time.Date(2026, 8, 4, 0, 0, 0, 0, time.UTC), latest["ABC"].Date)
}
