package tradesum

import (
	"time"

	"github.com/shopspring/decimal"
)

// Period tokens accepted by the "recent" endpoints. Anything else falls
// through to the latest single row.
const (
	PeriodMTD = "MTD"
	PeriodQTD = "QTD"
	PeriodYTD = "YTD"
)

// Row is an observation augmented with running cumulative-sum columns, one
// "<metric>Sum" entry per requested metric.
type Row struct {
	Observation
	Sums map[string]float64
}

// WindowStart resolves a period token to its window start relative to now.
// The second return is false when the token is unrecognised, meaning the
// caller should keep only the most recent row instead of windowing.
func WindowStart(period string, now time.Time) (time.Time, bool) {
	y, m, _ := now.Date()
	switch period {
	case PeriodMTD:
		return time.Date(y, m, 1, 0, 0, 0, 0, now.Location()), true
	case PeriodQTD:
		qm := time.Month(3*((int(m)-1)/3) + 1)
		return time.Date(y, qm, 1, 0, 0, 0, 0, now.Location()), true
	case PeriodYTD:
		return time.Date(y, time.January, 1, 0, 0, 0, 0, now.Location()), true
	}
	return time.Time{}, false
}

// Aggregate computes, per requested metric, a running cumulative sum over the
// series in ascending date order. Each emitted sum is the prefix sum rounded
// to 2 decimal places; accumulation itself is exact decimal arithmetic.
// Metrics absent from a row contribute nothing to their sum on that row.
func Aggregate(s Series, metrics []string) []Row {
	sums := make(map[string]decimal.Decimal, len(metrics))
	for _, m := range metrics {
		sums[m] = decimal.Zero
	}
	rows := make([]Row, 0, len(s))
	for _, obs := range s {
		row := Row{Observation: obs, Sums: make(map[string]float64, len(metrics))}
		for _, m := range metrics {
			if v, ok := obs.Values[m]; ok {
				sums[m] = sums[m].Add(decimal.NewFromFloat(v))
			}
			row.Sums[m+SuffixSum] = sums[m].Round(2).InexactFloat64()
		}
		rows = append(rows, row)
	}
	return rows
}

// Recent applies period windowing against now, cumulates over the windowed
// subset (so MTD sums restart at the month boundary) and keeps only the final
// row. An unrecognised period token yields the latest row with its own values
// as the sums.
func Recent(s Series, period string, metrics []string, now time.Time) []Row {
	windowed := s
	if start, ok := WindowStart(period, now); ok {
		windowed = s.Filter(start, time.Time{})
	} else {
		windowed = s.Tail(1)
	}
	rows := Aggregate(windowed, metrics)
	if len(rows) > 1 {
		rows = rows[len(rows)-1:]
	}
	return rows
}
