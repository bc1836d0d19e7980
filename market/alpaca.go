package market

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
)

// Alpaca serves daily bars from the Alpaca market data API. It reads
// APCA_API_KEY_ID / APCA_API_SECRET_KEY from the environment, the same
// way the official SDK expects.
type Alpaca struct {
	client *marketdata.Client
}

// NewAlpaca builds a client whose HTTP requests are bounded by timeout.
// The SDK call does not take a context mid-flight, so this timeout is
// what actually limits a slow request; the context is only honored
// between requests.
func NewAlpaca(timeout time.Duration) *Alpaca {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Alpaca{client: marketdata.NewClient(marketdata.ClientOpts{
		HTTPClient: &http.Client{Timeout: timeout},
	})}
}

func (a *Alpaca) Name() string { return "alpaca" }

func (a *Alpaca) GetBars(ctx context.Context, ticker string, rng Range) ([]Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := a.client.GetBars(ticker, marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     rng.Start,
		End:       rng.End,
	})
	if err != nil {
		return nil, fmt.Errorf("alpaca bars %s: %w", ticker, err)
	}

	bars := make([]Bar, 0, len(raw))
	for _, b := range raw {
		bars = append(bars, Bar{
			Date:   Day(b.Timestamp),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: int64(b.Volume),
		})
	}
	return bars, nil
}
