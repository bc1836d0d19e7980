package market

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// StooqURL is the public daily-history CSV endpoint.
const StooqURL = "https://stooq.com/q/d/l/"

// Stooq serves daily bars from stooq.com's CSV download endpoint. It is
// the fallback source: no API key, US tickers addressed as "spy.us".
type Stooq struct {
	baseURL    string
	httpClient *http.Client
}

func NewStooq() *Stooq {
	return &Stooq{
		baseURL:    StooqURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// NewStooqWithURL points the client at a different endpoint. Used by
// tests to stand in a local server.
func NewStooqWithURL(base string) *Stooq {
	s := NewStooq()
	s.baseURL = base
	return s
}

func (s *Stooq) Name() string { return "stooq" }

func (s *Stooq) GetBars(ctx context.Context, ticker string, rng Range) ([]Bar, error) {
	params := url.Values{}
	params.Set("s", strings.ToLower(ticker)+".us")
	params.Set("d1", rng.Start.Format("20060102"))
	params.Set("d2", rng.End.Format("20060102"))
	params.Set("i", "d")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stooq %s: %w", ticker, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("stooq %s: status %d", ticker, resp.StatusCode)
	}

	return parseStooqCSV(resp.Body, ticker)
}

// parseStooqCSV reads the Date,Open,High,Low,Close,Volume layout stooq
// serves. "N/D" rows (unknown ticker) and short rows are rejected.
func parseStooqCSV(r io.Reader, ticker string) ([]Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("stooq %s: malformed csv: %w", ticker, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("stooq %s: %w", ticker, ErrNoData)
	}

	bars := make([]Bar, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) < 5 || row[0] == "N/D" {
			return nil, fmt.Errorf("stooq %s: unexpected row %q", ticker, strings.Join(row, ","))
		}

		date, err := time.Parse("2006-01-02", row[0])
		if err != nil {
			return nil, fmt.Errorf("stooq %s: bad date %q: %w", ticker, row[0], err)
		}

		var ohlc [4]float64
		for i := 0; i < 4; i++ {
			v, err := strconv.ParseFloat(row[i+1], 64)
			if err != nil {
				return nil, fmt.Errorf("stooq %s: bad price %q: %w", ticker, row[i+1], err)
			}
			ohlc[i] = v
		}

		var volume int64
		if len(row) > 5 && row[5] != "" {
			v, err := strconv.ParseFloat(row[5], 64)
			if err != nil {
				return nil, fmt.Errorf("stooq %s: bad volume %q: %w", ticker, row[5], err)
			}
			volume = int64(v)
		}

		bars = append(bars, Bar{
			Date:   Day(date),
			Open:   ohlc[0],
			High:   ohlc[1],
			Low:    ohlc[2],
			Close:  ohlc[3],
			Volume: volume,
		})
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars, nil
}
