package market

import "time"

// Bar is one daily OHLCV bar.
type Bar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// Range is an inclusive calendar date range for a bar request.
type Range struct {
	Start time.Time
	End   time.Time
}

// LastDays returns a range covering the n calendar days ending at end.
func LastDays(end time.Time, n int) Range {
	return Range{Start: end.AddDate(0, 0, -n), End: end}
}

// Day truncates t to midnight UTC. Bars and snapshots are keyed by day,
// never by intraday timestamps.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
