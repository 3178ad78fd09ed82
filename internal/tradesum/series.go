// Package tradesum holds the investor-type trading-flow series model and the
// rolling-window aggregation used by the trade summary endpoints.
package tradesum

import (
	"sort"
	"time"
)

// Metric column suffixes shared by every investor category.
const (
	SuffixBuy  = "Buy"
	SuffixSell = "Sell"
	SuffixNet  = "Net"
	SuffixSum  = "Sum"
)

// Observation is one trading day's row of flow metrics for one market.
// Values maps metric name (e.g. "FundValNet") to its signed value. A
// scrape-derived observation carries only the metrics the page exposes.
type Observation struct {
	Date   time.Time
	Values map[string]float64
}

// Series is the ordered history of observations for one market, unique by
// date. Order is not implicit; call Sort after any mutation.
type Series []Observation

func (s Series) Sort() {
	sort.Slice(s, func(i, j int) bool { return s[i].Date.Before(s[j].Date) })
}

// Merge appends incoming to existing and deduplicates by date keeping the
// last occurrence, so a freshly scraped value wins over a stale stored row
// for the same day. A nil incoming returns existing unchanged. The result is
// sorted ascending.
func Merge(existing Series, incoming *Observation) Series {
	if incoming == nil {
		return existing
	}
	merged := make(Series, 0, len(existing)+1)
	merged = append(merged, existing...)
	merged = append(merged, *incoming)

	byDate := make(map[string]Observation, len(merged))
	for _, obs := range merged {
		byDate[obs.Date.Format("2006-01-02")] = obs
	}
	out := make(Series, 0, len(byDate))
	for _, obs := range byDate {
		out = append(out, obs)
	}
	out.Sort()
	return out
}

// Filter restricts the series to dates in [start, end] inclusive. A zero
// bound is open on that side. Filtering happens before any cumulative-sum
// computation so sums restart at the filtered window's first row.
func (s Series) Filter(start, end time.Time) Series {
	out := make(Series, 0, len(s))
	for _, obs := range s {
		if !start.IsZero() && obs.Date.Before(start) {
			continue
		}
		if !end.IsZero() && obs.Date.After(end) {
			continue
		}
		out = append(out, obs)
	}
	return out
}

// Tail returns the last n observations of an ascending series.
func (s Series) Tail(n int) Series {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
