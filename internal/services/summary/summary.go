// Package summary orchestrates the trade summary endpoints: base series from
// the database, optional live scrape merged into the blob history, then
// rolling-window aggregation.
package summary

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"set-market-api/internal/models"
	"set-market-api/internal/repository"
	"set-market-api/internal/services/scraper"
	"set-market-api/internal/tradesum"
)

// Investor categories carried by each market's summary. TFEX has no
// proprietary (Trading) desk series.
var (
	setCategories  = []string{"FundVal", "ForeignVal", "TradingVal", "CustomerVal"}
	tfexCategories = []string{"FundVal", "ForeignVal", "CustomerVal"}
)

// Repo is the database query layer the service reads base series from.
type Repo interface {
	TradeSummary(ctx context.Context, market repository.Market, start, end time.Time) ([]models.TradeSummaryRow, error)
}

// FlowScraper produces today's investor flows from the live page.
type FlowScraper interface {
	FetchInvestorFlows(ctx context.Context) (*scraper.InvestorFlows, error)
}

// History merges observations into the persisted flow series.
type History interface {
	MergeAndSave(ctx context.Context, incoming *tradesum.Observation) (tradesum.Series, error)
}

// Record is one externally-visible row: ISO date plus plain numeric fields.
type Record map[string]any

type Service struct {
	repo    Repo
	scraper FlowScraper
	history History
	log     zerolog.Logger
	now     func() time.Time
}

func New(repo Repo, flows FlowScraper, history History, log zerolog.Logger) *Service {
	return &Service{repo: repo, scraper: flows, history: history, log: log, now: time.Now}
}

// WithClock pins the period-window reference date; tests use it.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// SETSummary returns the full SET flow history with running net sums per
// investor category, ascending by date.
func (s *Service) SETSummary(ctx context.Context, start, end time.Time) ([]Record, error) {
	series, err := s.dbSeries(ctx, repository.MarketSET, start, end)
	if err != nil {
		return nil, err
	}
	return records(tradesum.Aggregate(series, netMetrics(setCategories))), nil
}

// SETRecent returns a single row of period-to-date buy/sell/net sums per SET
// investor category. Unknown period tokens fall through to the latest row.
func (s *Service) SETRecent(ctx context.Context, period string, start, end time.Time) ([]Record, error) {
	series, err := s.dbSeries(ctx, repository.MarketSET, start, end)
	if err != nil {
		return nil, err
	}
	rows := tradesum.Recent(series, period, allMetrics(setCategories), s.now())
	return sumRecords(rows), nil
}

// TFEXDBSummary is the database-only TFEX history with running net sums.
func (s *Service) TFEXDBSummary(ctx context.Context, start, end time.Time) ([]Record, error) {
	series, err := s.dbSeries(ctx, repository.MarketTFEX, start, end)
	if err != nil {
		return nil, err
	}
	return records(tradesum.Aggregate(series, netMetrics(tfexCategories))), nil
}

// TFEXDBRecent is the database-only TFEX period-to-date single row.
func (s *Service) TFEXDBRecent(ctx context.Context, period string, start, end time.Time) ([]Record, error) {
	series, err := s.dbSeries(ctx, repository.MarketTFEX, start, end)
	if err != nil {
		return nil, err
	}
	rows := tradesum.Recent(series, period, allMetrics(tfexCategories), s.now())
	return sumRecords(rows), nil
}

// TFEXLiveSummary augments the TFEX history with today's scraped flows. The
// database contributes the index OHLC frame; flow metrics come from the blob
// history merged with the live observation. Scrape or store failure degrades
// to whatever is still available, never to an error.
func (s *Service) TFEXLiveSummary(ctx context.Context, start, end time.Time) ([]Record, error) {
	series, err := s.liveSeries(ctx, start, end)
	if err != nil {
		return nil, err
	}
	return records(tradesum.Aggregate(series, netMetrics(tfexCategories))), nil
}

// TFEXLiveRecent is the live-augmented period-to-date single row of net sums.
func (s *Service) TFEXLiveRecent(ctx context.Context, period string, start, end time.Time) ([]Record, error) {
	series, err := s.liveSeries(ctx, start, end)
	if err != nil {
		return nil, err
	}
	rows := tradesum.Recent(series, period, netMetrics(tfexCategories), s.now())
	return sumRecords(rows), nil
}

func (s *Service) dbSeries(ctx context.Context, market repository.Market, start, end time.Time) (tradesum.Series, error) {
	rows, err := s.repo.TradeSummary(ctx, market, start, end)
	if err != nil {
		return nil, err
	}
	return seriesFromRows(rows, market == repository.MarketSET, true), nil
}

// liveSeries builds the TFEX series for the live-augmented endpoints: DB
// rows stripped to their OHLC values, left-joined by date with the merged
// flow history.
func (s *Service) liveSeries(ctx context.Context, start, end time.Time) (tradesum.Series, error) {
	rows, err := s.repo.TradeSummary(ctx, repository.MarketTFEX, start, end)
	if err != nil {
		return nil, err
	}
	base := seriesFromRows(rows, false, false)

	flows := s.mergedFlows(ctx)
	if len(flows) == 0 {
		return base, nil
	}
	byDate := make(map[string]map[string]float64, len(flows))
	for _, obs := range flows {
		byDate[obs.Date.Format("2006-01-02")] = obs.Values
	}
	for i := range base {
		if values, ok := byDate[base[i].Date.Format("2006-01-02")]; ok {
			for k, v := range values {
				base[i].Values[k] = v
			}
		}
	}
	return base, nil
}

// mergedFlows scrapes today's observation and folds it into the stored
// history. Both steps are best-effort: a failed scrape still reads the
// stored series, a failed store read leaves the output database-only.
func (s *Service) mergedFlows(ctx context.Context) tradesum.Series {
	var incoming *tradesum.Observation
	flows, err := s.scraper.FetchInvestorFlows(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("investor table scrape failed, using stored history only")
	} else {
		incoming = flows.NetObservation()
	}
	merged, err := s.history.MergeAndSave(ctx, incoming)
	if err != nil {
		s.log.Warn().Err(err).Msg("history store unavailable, degrading to database series")
		return nil
	}
	return merged
}

func seriesFromRows(rows []models.TradeSummaryRow, withTrading, withFlows bool) tradesum.Series {
	series := make(tradesum.Series, 0, len(rows))
	for _, row := range rows {
		values := map[string]float64{
			"SETopen":  row.SETOpen,
			"SEThigh":  row.SETHigh,
			"SETlow":   row.SETLow,
			"SETclose": row.SETClose,
		}
		if withFlows {
			values["FundValBuy"] = row.FundValBuy
			values["FundValSell"] = row.FundValSell
			values["FundValNet"] = row.FundValNet
			values["ForeignValBuy"] = row.ForeignValBuy
			values["ForeignValSell"] = row.ForeignValSell
			values["ForeignValNet"] = row.ForeignValNet
			values["CustomerValBuy"] = row.CustomerValBuy
			values["CustomerValSell"] = row.CustomerValSell
			values["CustomerValNet"] = row.CustomerValNet
			if withTrading {
				values["TradingValBuy"] = row.TradingValBuy
				values["TradingValSell"] = row.TradingValSell
				values["TradingValNet"] = row.TradingValNet
			}
		}
		series = append(series, tradesum.Observation{Date: dateOnly(row.Date), Values: values})
	}
	series.Sort()
	return series
}

func netMetrics(categories []string) []string {
	out := make([]string, 0, len(categories))
	for _, c := range categories {
		out = append(out, c+tradesum.SuffixNet)
	}
	return out
}

func allMetrics(categories []string) []string {
	out := make([]string, 0, 3*len(categories))
	for _, suffix := range []string{tradesum.SuffixBuy, tradesum.SuffixSell, tradesum.SuffixNet} {
		for _, c := range categories {
			out = append(out, c+suffix)
		}
	}
	return out
}

// records shapes aggregated rows for the non-recent endpoints: every
// observation value plus the running sums, ascending date order.
func records(rows []tradesum.Row) []Record {
	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		record := Record{"date": row.Date.Format("2006-01-02")}
		for k, v := range row.Values {
			record[k] = v
		}
		for k, v := range row.Sums {
			record[k] = v
		}
		out = append(out, record)
	}
	return out
}

// sumRecords shapes the recent variants: date and sum columns only.
func sumRecords(rows []tradesum.Row) []Record {
	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		record := Record{"date": row.Date.Format("2006-01-02")}
		for k, v := range row.Sums {
			record[k] = v
		}
		out = append(out, record)
	}
	return out
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
