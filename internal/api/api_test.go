package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"set-market-api/internal/models"
	"set-market-api/internal/repository"
	"set-market-api/internal/services/scraper"
	"set-market-api/internal/services/summary"
)

type fakeRepo struct {
	bars []models.PriceBar
}

func (f *fakeRepo) Symbols(ctx context.Context) ([]models.Symbol, error) {
	return []models.Symbol{{ID: 1024, Name: "SET"}}, nil
}

func (f *fakeRepo) SymbolByID(ctx context.Context, id int) (*models.Symbol, error) {
	if id != 1024 {
		return nil, repository.ErrNotFound
	}
	return &models.Symbol{ID: 1024, Name: "SET"}, nil
}

func (f *fakeRepo) SymbolByName(ctx context.Context, name string) (*models.Symbol, error) {
	if name != "SET" {
		return nil, repository.ErrNotFound
	}
	return &models.Symbol{ID: 1024, Name: "SET"}, nil
}

func (f *fakeRepo) Prices(ctx context.Context, name string) ([]models.PriceBar, error) {
	if name != "SET" {
		return nil, repository.ErrNotFound
	}
	return f.bars, nil
}

func (f *fakeRepo) RecentPrices(ctx context.Context, name string, n int) ([]models.PriceBar, error) {
	if name != "SET" {
		return nil, repository.ErrNotFound
	}
	if n > len(f.bars) {
		n = len(f.bars)
	}
	out := make([]models.PriceBar, n)
	for i := 0; i < n; i++ {
		out[i] = f.bars[len(f.bars)-1-i]
	}
	return out, nil
}

func (f *fakeRepo) Industries(ctx context.Context) ([]models.Industry, error) { return nil, nil }
func (f *fakeRepo) Sectors(ctx context.Context) ([]models.Sector, error)     { return nil, nil }

func (f *fakeRepo) SectorMembers(ctx context.Context, n int) ([]models.SectorMember, error) {
	return nil, repository.ErrNotFound
}

func (f *fakeRepo) BusinessInfo(ctx context.Context, name string) ([]models.BusinessInfo, error) {
	return nil, repository.ErrNotFound
}

func (f *fakeRepo) FinanceBySector(ctx context.Context, sectorID, featureID int, fiscal, quarter string) ([]models.FinanceRow, error) {
	return nil, repository.ErrNotFound
}

type fakeScraper struct {
	info  map[string]string
	flows *scraper.InvestorFlows
	err   error
}

func (f *fakeScraper) FetchMarketInfo(ctx context.Context, market string) (map[string]string, error) {
	return f.info, f.err
}

func (f *fakeScraper) FetchInvestorFlows(ctx context.Context) (*scraper.InvestorFlows, error) {
	return f.flows, f.err
}

type fakeSummaries struct {
	records []summary.Record
	err     error
	period  string
	start   time.Time
	end     time.Time
}

func (f *fakeSummaries) fetch(start, end time.Time) ([]summary.Record, error) {
	f.start, f.end = start, end
	return f.records, f.err
}

func (f *fakeSummaries) SETSummary(ctx context.Context, start, end time.Time) ([]summary.Record, error) {
	return f.fetch(start, end)
}

func (f *fakeSummaries) SETRecent(ctx context.Context, period string, start, end time.Time) ([]summary.Record, error) {
	f.period = period
	return f.fetch(start, end)
}

func (f *fakeSummaries) TFEXDBSummary(ctx context.Context, start, end time.Time) ([]summary.Record, error) {
	return f.fetch(start, end)
}

func (f *fakeSummaries) TFEXDBRecent(ctx context.Context, period string, start, end time.Time) ([]summary.Record, error) {
	f.period = period
	return f.fetch(start, end)
}

func (f *fakeSummaries) TFEXLiveSummary(ctx context.Context, start, end time.Time) ([]summary.Record, error) {
	return f.fetch(start, end)
}

func (f *fakeSummaries) TFEXLiveRecent(ctx context.Context, period string, start, end time.Time) ([]summary.Record, error) {
	f.period = period
	return f.fetch(start, end)
}

func day(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func newTestRouter(repo SymbolRepo, sc MarketScraper, sum TradeSummaries) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := SetupRoutes(r.Group("/"), repo, sc, sum, zerolog.Nop())
	handler.WithClock(func() time.Time {
		return time.Date(2024, time.June, 10, 12, 0, 0, 0, time.UTC)
	})
	return r
}

func get(t *testing.T, r *gin.Engine, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGetSymbolByName_NotFound(t *testing.T) {
	r := newTestRouter(&fakeRepo{}, &fakeScraper{}, &fakeSummaries{})
	w := get(t, r, "/symbol/name/UNKNOWN")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Symbol not found")
}

func TestGetSymbolByName_OK(t *testing.T) {
	r := newTestRouter(&fakeRepo{}, &fakeScraper{}, &fakeSummaries{})
	w := get(t, r, "/symbol/name/SET")
	assert.Equal(t, http.StatusOK, w.Code)

	var symbol models.Symbol
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &symbol))
	assert.Equal(t, 1024, symbol.ID)
}

func TestGetPricesPctChange(t *testing.T) {
	repo := &fakeRepo{bars: []models.PriceBar{
		{Date: day("2024-06-07"), Close: 100},
		{Date: day("2024-06-10"), Close: 103, Open: 101, High: 104, Low: 100, Volume: 10, Value: 5},
	}}
	r := newTestRouter(repo, &fakeScraper{}, &fakeSummaries{})
	w := get(t, r, "/prices/recent/SET")
	require.Equal(t, http.StatusOK, w.Code)

	var record map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &record))
	assert.Equal(t, "2024-06-10", record["date"])
	assert.Equal(t, 3.0, record["change"])
	assert.Equal(t, 3.0, record["pct_change"])
	assert.Equal(t, 5000.0, record["value"])
}

func TestGetPricesPctChange_ZeroPriorClose(t *testing.T) {
	repo := &fakeRepo{bars: []models.PriceBar{
		{Date: day("2024-06-07"), Close: 0},
		{Date: day("2024-06-10"), Close: 103},
	}}
	r := newTestRouter(repo, &fakeScraper{}, &fakeSummaries{})
	w := get(t, r, "/prices/recent/SET")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "not enough price history")
}

func TestGetOHLCVV_AscendingWindow(t *testing.T) {
	repo := &fakeRepo{bars: []models.PriceBar{
		{Date: day("2024-06-06"), Close: 99},
		{Date: day("2024-06-07"), Close: 100},
		{Date: day("2024-06-10"), Close: 103},
	}}
	r := newTestRouter(repo, &fakeScraper{}, &fakeSummaries{})
	w := get(t, r, "/ohlcvv/SET/2")
	require.Equal(t, http.StatusOK, w.Code)

	var payload struct {
		Symbol string           `json:"symbol"`
		Data   []map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.Equal(t, "SET", payload.Symbol)
	require.Len(t, payload.Data, 2)
	assert.Equal(t, "2024-06-07", payload.Data[0]["date"])
	assert.Equal(t, "2024-06-10", payload.Data[1]["date"])
}

func TestTradeSummary_DefaultBounds(t *testing.T) {
	sum := &fakeSummaries{records: []summary.Record{{"date": "2024-06-10"}}}
	r := newTestRouter(&fakeRepo{}, &fakeScraper{}, sum)
	w := get(t, r, "/tradesum_set/")
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, day("2015-01-01"), sum.start)
	assert.Equal(t, day("2024-06-10"), sum.end)
}

func TestTradeSummary_MalformedDates(t *testing.T) {
	r := newTestRouter(&fakeRepo{}, &fakeScraper{}, &fakeSummaries{})

	w := get(t, r, "/tradesum_set/?start=notadate")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = get(t, r, "/tradesum_set/?start=2024-06-10&end=2024-01-01")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTradeSummary_NotFound(t *testing.T) {
	r := newTestRouter(&fakeRepo{}, &fakeScraper{}, &fakeSummaries{err: repository.ErrNotFound})
	w := get(t, r, "/tradesum_tfex_db/")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTradeSummaryRecent_PeriodToken(t *testing.T) {
	sum := &fakeSummaries{records: []summary.Record{{"date": "2024-06-10"}}}
	r := newTestRouter(&fakeRepo{}, &fakeScraper{}, sum)

	w := get(t, r, "/tradesum_tfex/recent/QTD")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "QTD", sum.period)

	w = get(t, r, "/tradesum_set/recent/ANYTHING")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ANYTHING", sum.period)
}

func TestGetSETMaiInfo_FailurePayloadNot5xx(t *testing.T) {
	r := newTestRouter(&fakeRepo{}, &fakeScraper{err: scraper.ErrUpstreamParse}, &fakeSummaries{})
	w := get(t, r, "/setmaiinfo")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "FAILURE")
}

func TestGetRecentTFEXFlows(t *testing.T) {
	flows := &scraper.InvestorFlows{
		Date: day("2024-06-10"),
		Buy:  map[string]float64{"FundVal": 10},
		Sell: map[string]float64{"FundVal": 1},
		Net:  map[string]float64{"FundVal": 9},
	}
	r := newTestRouter(&fakeRepo{}, &fakeScraper{flows: flows}, &fakeSummaries{})
	w := get(t, r, "/recent_tradesum_tfex")
	require.Equal(t, http.StatusOK, w.Code)

	var record map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &record))
	assert.Equal(t, "2024-06-10", record["date"])
	assert.Equal(t, 10.0, record["FundValBuy"])
	assert.Equal(t, 9.0, record["FundValNet"])
}

func TestExportTFEXTradeSummary(t *testing.T) {
	sum := &fakeSummaries{records: []summary.Record{{
		"date": "2024-06-10", "SETclose": 102.0, "FundValNet": 9.0, "FundValNetSum": 14.0,
	}}}
	r := newTestRouter(&fakeRepo{}, &fakeScraper{}, sum)
	w := get(t, r, "/tradesum_tfex/export")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "tfex-trade-summary")
	assert.NotEmpty(t, w.Body.Bytes())
}
