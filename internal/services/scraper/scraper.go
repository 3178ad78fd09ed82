// Package scraper extracts same-day market figures from the exchange's
// public market-data pages.
package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"set-market-api/internal/tradesum"
)

var (
	// ErrUpstreamParse reports a page whose table layout no longer matches
	// what the parser expects (missing row label, missing column, cell that
	// is not a number). Callers treat it as "no update available today".
	ErrUpstreamParse = errors.New("upstream table layout mismatch")

	// ErrUpstreamTimeout reports a fetch that hit the client deadline.
	ErrUpstreamTimeout = errors.New("upstream timeout")
)

// Investor flow metric names produced from the TFEX investor-type table.
// The page's institution / foreign / local columns map onto the Fund /
// Foreign / Customer series of the stored history.
const (
	categoryFund     = "FundVal"
	categoryForeign  = "ForeignVal"
	categoryCustomer = "CustomerVal"
)

type Config struct {
	MarketSummaryURL string // fmt template, %s = market token
	InvestorTableURL string
	RowLabel         string // label cell of the investor table row to extract
	Timeout          time.Duration
}

type Scraper struct {
	client *resty.Client
	cfg    Config
	now    func() time.Time
}

func New(cfg Config) *Scraper {
	client := resty.New()
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	} else {
		client.SetTimeout(15 * time.Second)
	}
	return &Scraper{client: client, cfg: cfg, now: time.Now}
}

// WithClock overrides the clock stamping scraped observations. Tests use it
// to pin "today".
func (s *Scraper) WithClock(now func() time.Time) *Scraper {
	s.now = now
	return s
}

// FetchMarketInfo scrapes the SET/mai market summary page and returns its
// name/value pairs. The IndexPerformance heading row is dropped, matching
// the published summary card.
func (s *Scraper) FetchMarketInfo(ctx context.Context, market string) (map[string]string, error) {
	url := fmt.Sprintf(s.cfg.MarketSummaryURL, market)
	doc, err := s.fetchDocument(ctx, url)
	if err != nil {
		return nil, err
	}

	info := make(map[string]string)
	doc.Find("div.row.info").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("div")
		if cells.Length() < 2 {
			return
		}
		name := normalizeCell(cells.Eq(0).Text())
		value := normalizeCell(cells.Eq(1).Text())
		if name == "" || name == "IndexPerformance" {
			return
		}
		info[name] = value
	})
	if len(info) == 0 {
		return nil, fmt.Errorf("%w: no summary rows on %s page", ErrUpstreamParse, market)
	}
	return info, nil
}

// InvestorFlows is today's buy/sell/net value per investor category, parsed
// from the TFEX investor-type trading table.
type InvestorFlows struct {
	Date time.Time
	// Buy/Sell/Net per category, keyed by metric prefix (FundVal, ...).
	Buy  map[string]float64
	Sell map[string]float64
	Net  map[string]float64
}

// NetObservation shapes the flows as a history observation carrying only the
// net metrics, which is all the persisted CSV stores.
func (f *InvestorFlows) NetObservation() *tradesum.Observation {
	values := make(map[string]float64, len(f.Net))
	for cat, v := range f.Net {
		values[cat+tradesum.SuffixNet] = v
	}
	return &tradesum.Observation{Date: f.Date, Values: values}
}

// FullObservation shapes the flows with buy, sell and net metrics per
// category.
func (f *InvestorFlows) FullObservation() *tradesum.Observation {
	values := make(map[string]float64, 3*len(f.Net))
	for cat, v := range f.Buy {
		values[cat+tradesum.SuffixBuy] = v
	}
	for cat, v := range f.Sell {
		values[cat+tradesum.SuffixSell] = v
	}
	for cat, v := range f.Net {
		values[cat+tradesum.SuffixNet] = v
	}
	return &tradesum.Observation{Date: f.Date, Values: values}
}

// FetchInvestorFlows scrapes the investor-type trading table. The row is
// selected by its configured label and the buy/sell/net cells are located
// through the table header, not by position, so a reordered or relabeled
// table fails loudly instead of returning someone else's figures.
func (s *Scraper) FetchInvestorFlows(ctx context.Context) (*InvestorFlows, error) {
	doc, err := s.fetchDocument(ctx, s.cfg.InvestorTableURL)
	if err != nil {
		return nil, err
	}
	layout, err := investorLayout(doc)
	if err != nil {
		return nil, err
	}

	var cells []string
	doc.Find("tbody tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		rowCells := rowText(row)
		if len(rowCells) > 0 && rowCells[0] == normalizeCell(s.cfg.RowLabel) {
			cells = rowCells
			return false
		}
		return true
	})
	if cells == nil {
		return nil, fmt.Errorf("%w: row %q not found in investor table", ErrUpstreamParse, s.cfg.RowLabel)
	}

	flows := &InvestorFlows{
		Date: s.today(),
		Buy:  make(map[string]float64, 3),
		Sell: make(map[string]float64, 3),
		Net:  make(map[string]float64, 3),
	}
	categories := []string{categoryFund, categoryForeign, categoryCustomer}
	for i, cat := range categories {
		cols := layout[i]
		if last := max(cols.buy, cols.sell, cols.net); last >= len(cells) {
			return nil, fmt.Errorf("%w: investor row has %d cells, header expects column %d", ErrUpstreamParse, len(cells), last)
		}
		buy, err := parseValue(cells[cols.buy])
		if err != nil {
			return nil, err
		}
		sell, err := parseValue(cells[cols.sell])
		if err != nil {
			return nil, err
		}
		net, err := parseValue(cells[cols.net])
		if err != nil {
			return nil, err
		}
		flows.Buy[cat] = buy
		flows.Sell[cat] = sell
		flows.Net[cat] = net
	}
	return flows, nil
}

// fieldColumns is one category group's resolved buy/sell/net cell indexes.
type fieldColumns struct {
	buy, sell, net int
}

// Header labels recognised per flow field, covering the page's Thai and
// English locales.
var fieldLabels = map[string]string{
	"Buy":    tradesum.SuffixBuy,
	"ซื้อ":    tradesum.SuffixBuy,
	"Sell":   tradesum.SuffixSell,
	"ขาย":    tradesum.SuffixSell,
	"Net":    tradesum.SuffixNet,
	"สุทธิ":   tradesum.SuffixNet,
}

// investorLayout resolves the investor table header into per-category column
// positions. Each run of buy/sell/net labels forms one category group; the
// first three groups are the institution, foreign and local series.
func investorLayout(doc *goquery.Document) ([]fieldColumns, error) {
	header := headerLabels(doc.Find("thead"))
	if len(header) == 0 {
		return nil, fmt.Errorf("%w: investor table has no header", ErrUpstreamParse)
	}

	var layout []fieldColumns
	current := map[string]int{}
	for _, cell := range header {
		field, ok := fieldLabels[cell.text]
		if !ok {
			continue
		}
		if _, dup := current[field]; dup {
			group, err := closeGroup(current)
			if err != nil {
				return nil, err
			}
			layout = append(layout, group)
			current = map[string]int{}
		}
		current[field] = cell.col
	}
	if len(current) > 0 {
		group, err := closeGroup(current)
		if err != nil {
			return nil, err
		}
		layout = append(layout, group)
	}
	if len(layout) < 3 {
		return nil, fmt.Errorf("%w: header resolves %d category groups, want 3", ErrUpstreamParse, len(layout))
	}
	return layout[:3], nil
}

func closeGroup(cols map[string]int) (fieldColumns, error) {
	buy, okBuy := cols[tradesum.SuffixBuy]
	sell, okSell := cols[tradesum.SuffixSell]
	net, okNet := cols[tradesum.SuffixNet]
	if !okBuy || !okSell || !okNet {
		return fieldColumns{}, fmt.Errorf("%w: header category group missing a buy/sell/net column", ErrUpstreamParse)
	}
	return fieldColumns{buy: buy, sell: sell, net: net}, nil
}

type headerCell struct {
	col  int
	text string
}

// headerLabels flattens the thead into one label per leaf column. Colspans
// expand across their columns and rowspans block theirs in later rows, so
// the deepest header row wins per column.
func headerLabels(thead *goquery.Selection) []headerCell {
	byCol := map[int]string{}
	spanned := map[int]int{}
	maxCol := -1
	thead.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		col := 0
		tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
			for spanned[col] > 0 {
				spanned[col]--
				col++
			}
			text := normalizeCell(cell.Text())
			rowspan := intAttr(cell, "rowspan")
			for i := 0; i < intAttr(cell, "colspan"); i++ {
				byCol[col] = text
				if rowspan > 1 {
					spanned[col] = rowspan - 1
				}
				if col > maxCol {
					maxCol = col
				}
				col++
			}
		})
	})
	out := make([]headerCell, 0, len(byCol))
	for col := 0; col <= maxCol; col++ {
		if text, ok := byCol[col]; ok {
			out = append(out, headerCell{col: col, text: text})
		}
	}
	return out
}

func intAttr(cell *goquery.Selection, name string) int {
	v, ok := cell.Attr(name)
	if !ok {
		return 1
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

func (s *Scraper) today() time.Time {
	y, m, d := s.now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (s *Scraper) fetchDocument(ctx context.Context, url string) (*goquery.Document, error) {
	resp, err := s.client.R().SetContext(ctx).Get(url)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, fmt.Errorf("%w: %s", ErrUpstreamTimeout, url)
		}
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	if resp.StatusCode() >= 400 {
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode())
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamParse, err)
	}
	return doc, nil
}

func rowText(row *goquery.Selection) []string {
	var cells []string
	row.Find("td").Each(func(_ int, cell *goquery.Selection) {
		cells = append(cells, normalizeCell(cell.Text()))
	})
	return cells
}

// normalizeCell strips the whitespace, newlines and footnote markers the
// page decorates cell text with.
func normalizeCell(s string) string {
	replacer := strings.NewReplacer(" ", "", "\r", "", "\n", "", "\t", "", "*", "")
	return replacer.Replace(s)
}

// parseValue turns a locale-formatted cell ("+1,234.56") into a signed float.
func parseValue(cell string) (float64, error) {
	cleaned := strings.TrimPrefix(strings.ReplaceAll(cell, ",", ""), "+")
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: cell %q is not numeric", ErrUpstreamParse, cell)
	}
	return v, nil
}
