// Package histstore persists the scraped TFEX flow history as a CSV blob in
// the remote object store and merges fresh observations into it.
package histstore

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"set-market-api/internal/tradesum"
)

// ErrStoreUnavailable reports an object store that could not be reached or a
// blob that is not the expected tabular format.
var ErrStoreUnavailable = errors.New("history store unavailable")

// DefaultColumns is the metric layout of the persisted TFEX history.
var DefaultColumns = []string{"FundValNet", "ForeignValNet", "CustomerValNet"}

// Store reads and writes the full observation series against an object
// store. The series is rewritten whole on every save; there is no
// incremental update.
type Store struct {
	store   ObjectStore
	columns []string
}

func New(store ObjectStore, columns []string) *Store {
	if len(columns) == 0 {
		columns = DefaultColumns
	}
	return &Store{store: store, columns: columns}
}

// Load downloads the history blob and parses it as a date-indexed table.
// The store owns all numeric coercion: values may carry thousands
// separators and explicit "+" signs.
func (s *Store) Load(ctx context.Context) (tradesum.Series, error) {
	data, err := s.store.Download(ctx)
	if err != nil {
		return nil, err
	}
	series, err := parseCSV(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return series, nil
}

// Save rewrites the whole history blob from the series.
func (s *Store) Save(ctx context.Context, series tradesum.Series) error {
	data, err := s.renderCSV(series)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return s.store.Upload(ctx, data)
}

// MergeAndSave loads the stored series, merges the incoming observation
// (incoming wins on duplicate dates), persists the result and returns it for
// immediate use so callers need not reload. A nil incoming is a plain load
// with no write.
func (s *Store) MergeAndSave(ctx context.Context, incoming *tradesum.Observation) (tradesum.Series, error) {
	existing, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	if incoming == nil {
		return existing, nil
	}
	merged := tradesum.Merge(existing, incoming)
	if err := s.Save(ctx, merged); err != nil {
		return nil, err
	}
	return merged, nil
}

func parseCSV(data []byte) (tradesum.Series, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse history csv: %v", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("history csv is empty")
	}
	header := records[0]
	if len(header) < 2 || strings.ToLower(strings.TrimSpace(header[0])) != "date" {
		return nil, fmt.Errorf("history csv missing date column")
	}

	series := make(tradesum.Series, 0, len(records)-1)
	for _, record := range records[1:] {
		if len(record) != len(header) {
			return nil, fmt.Errorf("history csv row has %d cells, want %d", len(record), len(header))
		}
		date, err := time.Parse("2006-01-02", strings.TrimSpace(record[0]))
		if err != nil {
			return nil, fmt.Errorf("history csv date %q: %v", record[0], err)
		}
		values := make(map[string]float64, len(header)-1)
		for i := 1; i < len(header); i++ {
			cell := strings.TrimSpace(record[i])
			if cell == "" {
				continue
			}
			v, err := parseNumber(cell)
			if err != nil {
				return nil, fmt.Errorf("history csv %s %s: %v", record[0], header[i], err)
			}
			values[strings.TrimSpace(header[i])] = v
		}
		series = append(series, tradesum.Observation{Date: date, Values: values})
	}
	series.Sort()
	return series, nil
}

func (s *Store) renderCSV(series tradesum.Series) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(append([]string{"date"}, s.columns...)); err != nil {
		return nil, err
	}
	for _, obs := range series {
		record := make([]string, 0, len(s.columns)+1)
		record = append(record, obs.Date.Format("2006-01-02"))
		for _, col := range s.columns {
			if v, ok := obs.Values[col]; ok {
				record = append(record, strconv.FormatFloat(v, 'f', -1, 64))
			} else {
				record = append(record, "")
			}
		}
		if err := writer.Write(record); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// parseNumber accepts plain and locale-formatted numbers ("+1,234.56").
func parseNumber(cell string) (float64, error) {
	cleaned := strings.TrimPrefix(strings.ReplaceAll(cell, ",", ""), "+")
	return strconv.ParseFloat(cleaned, 64)
}
