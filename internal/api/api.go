// Package api wires the HTTP surface: symbol, price and taxonomy lookups
// plus the trade summary pipeline endpoints.
package api

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"set-market-api/internal/models"
	"set-market-api/internal/repository"
	"set-market-api/internal/services/scraper"
	"set-market-api/internal/services/summary"
)

// DefaultStart is the first date served when no start bound is given.
const DefaultStart = "2015-01-01"

// ErrInvalidRange reports malformed start/end query parameters.
var ErrInvalidRange = errors.New("invalid date range")

// SymbolRepo is the slice of the query layer the handlers read from.
type SymbolRepo interface {
	Symbols(ctx context.Context) ([]models.Symbol, error)
	SymbolByID(ctx context.Context, id int) (*models.Symbol, error)
	SymbolByName(ctx context.Context, name string) (*models.Symbol, error)
	Prices(ctx context.Context, symbolName string) ([]models.PriceBar, error)
	RecentPrices(ctx context.Context, symbolName string, n int) ([]models.PriceBar, error)
	Industries(ctx context.Context) ([]models.Industry, error)
	Sectors(ctx context.Context) ([]models.Sector, error)
	SectorMembers(ctx context.Context, sectorNumber int) ([]models.SectorMember, error)
	BusinessInfo(ctx context.Context, symbolName string) ([]models.BusinessInfo, error)
	FinanceBySector(ctx context.Context, sectorID, featureID int, fiscal, quarter string) ([]models.FinanceRow, error)
}

// MarketScraper provides the live-page lookups.
type MarketScraper interface {
	FetchMarketInfo(ctx context.Context, market string) (map[string]string, error)
	FetchInvestorFlows(ctx context.Context) (*scraper.InvestorFlows, error)
}

// TradeSummaries is the orchestrated trade summary pipeline.
type TradeSummaries interface {
	SETSummary(ctx context.Context, start, end time.Time) ([]summary.Record, error)
	SETRecent(ctx context.Context, period string, start, end time.Time) ([]summary.Record, error)
	TFEXDBSummary(ctx context.Context, start, end time.Time) ([]summary.Record, error)
	TFEXDBRecent(ctx context.Context, period string, start, end time.Time) ([]summary.Record, error)
	TFEXLiveSummary(ctx context.Context, start, end time.Time) ([]summary.Record, error)
	TFEXLiveRecent(ctx context.Context, period string, start, end time.Time) ([]summary.Record, error)
}

type APIHandler struct {
	repo    SymbolRepo
	scraper MarketScraper
	summary TradeSummaries
	log     zerolog.Logger
	now     func() time.Time
}

func SetupRoutes(r *gin.RouterGroup, repo SymbolRepo, sc MarketScraper, sum TradeSummaries, log zerolog.Logger) *APIHandler {
	handler := &APIHandler{
		repo:    repo,
		scraper: sc,
		summary: sum,
		log:     log,
		now:     time.Now,
	}

	r.GET("/symbols/", handler.ListSymbols)
	r.GET("/symbol/id/:symbol_id", handler.GetSymbolByID)
	r.GET("/symbol/name/:symbol_name", handler.GetSymbolByName)

	r.GET("/prices/:symbol_name", handler.GetPrices)
	r.GET("/prices/recent/:symbol_name", handler.GetPricesPctChange)
	r.GET("/ohlcvv/:symbol_name/:length", handler.GetOHLCVV)

	r.GET("/businessinfo/:symbol_name", handler.GetBusinessInfo)
	r.GET("/industry/", handler.ListIndustries)
	r.GET("/sector/", handler.ListSectors)
	r.GET("/sector/:sector_number", handler.GetSectorMembers)
	r.GET("/finance_by_sector", handler.GetFinanceBySector)

	r.GET("/setmaiinfo", handler.GetSETMaiInfo)
	r.GET("/recent_tradesum_tfex", handler.GetRecentTFEXFlows)

	r.GET("/tradesum_set/", handler.GetSETTradeSummary)
	r.GET("/tradesum_set/recent/:period", handler.GetSETTradeSummaryRecent)
	r.GET("/tradesum_tfex_db/", handler.GetTFEXDBTradeSummary)
	r.GET("/tradesum_tfex_db/recent/:period", handler.GetTFEXDBTradeSummaryRecent)
	r.GET("/tradesum_tfex/", handler.GetTFEXTradeSummary)
	r.GET("/tradesum_tfex/recent/:period", handler.GetTFEXTradeSummaryRecent)
	r.GET("/tradesum_tfex/export", handler.ExportTFEXTradeSummary)

	return handler
}

// WithClock pins "today" for the default end bound; tests use it.
func (h *APIHandler) WithClock(now func() time.Time) *APIHandler {
	h.now = now
	return h
}

// ---- symbols, prices, taxonomy ----

func (h *APIHandler) ListSymbols(c *gin.Context) {
	symbols, err := h.repo.Symbols(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, symbols)
}

func (h *APIHandler) GetSymbolByID(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("symbol_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "symbol_id must be an integer"})
		return
	}
	symbol, err := h.repo.SymbolByID(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, symbol)
}

func (h *APIHandler) GetSymbolByName(c *gin.Context) {
	symbol, err := h.repo.SymbolByName(c.Request.Context(), c.Param("symbol_name"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, symbol)
}

func (h *APIHandler) GetPrices(c *gin.Context) {
	name := c.Param("symbol_name")
	bars, err := h.repo.Prices(c.Request.Context(), name)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": name, "data": barRecords(bars)})
}

func (h *APIHandler) GetOHLCVV(c *gin.Context) {
	name := c.Param("symbol_name")
	length, err := strconv.Atoi(c.Param("length"))
	if err != nil || length <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "length must be a positive integer"})
		return
	}
	bars, err := h.repo.RecentPrices(c.Request.Context(), name, length)
	if err != nil {
		h.respondError(c, err)
		return
	}
	// RecentPrices returns newest first; the series endpoint serves ascending
	reverse(bars)
	c.JSON(http.StatusOK, gin.H{"symbol": name, "data": barRecords(bars)})
}

func (h *APIHandler) GetPricesPctChange(c *gin.Context) {
	name := c.Param("symbol_name")
	bars, err := h.repo.RecentPrices(c.Request.Context(), name, 2)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if len(bars) < 2 {
		c.JSON(http.StatusNotFound, gin.H{"detail": "not enough price history"})
		return
	}
	last, prev := bars[0], bars[1]
	if prev.Close == 0 {
		c.JSON(http.StatusNotFound, gin.H{"detail": "not enough price history"})
		return
	}
	record := barRecord(last)
	record["change"] = round2(last.Close - prev.Close)
	record["pct_change"] = round2((last.Close - prev.Close) / prev.Close * 100)
	c.JSON(http.StatusOK, record)
}

func (h *APIHandler) GetBusinessInfo(c *gin.Context) {
	info, err := h.repo.BusinessInfo(c.Request.Context(), c.Param("symbol_name"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *APIHandler) ListIndustries(c *gin.Context) {
	industries, err := h.repo.Industries(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, industries)
}

func (h *APIHandler) ListSectors(c *gin.Context) {
	sectors, err := h.repo.Sectors(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sectors)
}

func (h *APIHandler) GetSectorMembers(c *gin.Context) {
	number, err := strconv.Atoi(c.Param("sector_number"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "sector_number must be an integer"})
		return
	}
	members, err := h.repo.SectorMembers(c.Request.Context(), number)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, members)
}

func (h *APIHandler) GetFinanceBySector(c *gin.Context) {
	sectorID, err1 := strconv.Atoi(c.Query("sector_id"))
	featureID, err2 := strconv.Atoi(c.Query("feature_id"))
	if err1 != nil || err2 != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "sector_id and feature_id are required integers"})
		return
	}
	fiscal := c.DefaultQuery("fiscal", "2020")
	quarter := c.DefaultQuery("quarter", "3")
	rows, err := h.repo.FinanceBySector(c.Request.Context(), sectorID, featureID, fiscal, quarter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

// ---- live scrape endpoints ----

func (h *APIHandler) GetSETMaiInfo(c *gin.Context) {
	ctx := c.Request.Context()
	setInfo, err := h.scraper.FetchMarketInfo(ctx, "SET")
	if err == nil {
		var maiInfo map[string]string
		maiInfo, err = h.scraper.FetchMarketInfo(ctx, "mai")
		if err == nil {
			c.JSON(http.StatusOK, gin.H{"set": setInfo, "mai": maiInfo})
			return
		}
	}
	h.log.Warn().Err(err).Msg("market summary scrape failed")
	c.JSON(http.StatusOK, gin.H{"status": "FAILURE", "message": "Can't get data"})
}

func (h *APIHandler) GetRecentTFEXFlows(c *gin.Context) {
	flows, err := h.scraper.FetchInvestorFlows(c.Request.Context())
	if err != nil {
		h.log.Warn().Err(err).Msg("investor table scrape failed")
		c.JSON(http.StatusOK, gin.H{"status": "FAILURE", "message": err.Error()})
		return
	}
	obs := flows.FullObservation()
	record := summary.Record{"date": obs.Date.Format("2006-01-02")}
	for k, v := range obs.Values {
		record[k] = v
	}
	c.JSON(http.StatusOK, record)
}

// ---- trade summary pipeline ----

func (h *APIHandler) GetSETTradeSummary(c *gin.Context) {
	h.tradeSummary(c, h.summary.SETSummary)
}

func (h *APIHandler) GetSETTradeSummaryRecent(c *gin.Context) {
	h.tradeSummaryRecent(c, h.summary.SETRecent)
}

func (h *APIHandler) GetTFEXDBTradeSummary(c *gin.Context) {
	h.tradeSummary(c, h.summary.TFEXDBSummary)
}

func (h *APIHandler) GetTFEXDBTradeSummaryRecent(c *gin.Context) {
	h.tradeSummaryRecent(c, h.summary.TFEXDBRecent)
}

func (h *APIHandler) GetTFEXTradeSummary(c *gin.Context) {
	h.tradeSummary(c, h.summary.TFEXLiveSummary)
}

func (h *APIHandler) GetTFEXTradeSummaryRecent(c *gin.Context) {
	h.tradeSummaryRecent(c, h.summary.TFEXLiveRecent)
}

func (h *APIHandler) tradeSummary(c *gin.Context, fetch func(context.Context, time.Time, time.Time) ([]summary.Record, error)) {
	start, end, err := h.dateRange(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "FAILURE", "message": err.Error()})
		return
	}
	records, err := fetch(c.Request.Context(), start, end)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

func (h *APIHandler) tradeSummaryRecent(c *gin.Context, fetch func(context.Context, string, time.Time, time.Time) ([]summary.Record, error)) {
	start, end, err := h.dateRange(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "FAILURE", "message": err.Error()})
		return
	}
	records, err := fetch(c.Request.Context(), c.Param("period"), start, end)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

// ---- helpers ----

func (h *APIHandler) dateRange(c *gin.Context) (time.Time, time.Time, error) {
	start, err := time.Parse("2006-01-02", c.DefaultQuery("start", DefaultStart))
	if err != nil {
		return time.Time{}, time.Time{}, errInvalid("start", c.Query("start"))
	}
	endParam := c.Query("end")
	if endParam == "" {
		endParam = h.now().Format("2006-01-02")
	}
	end, err := time.Parse("2006-01-02", endParam)
	if err != nil {
		return time.Time{}, time.Time{}, errInvalid("end", endParam)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, errInvalid("end", endParam)
	}
	return start, end, nil
}

func errInvalid(param, value string) error {
	return errors.Join(ErrInvalidRange, errors.New(param+"="+value))
}

func (h *APIHandler) respondError(c *gin.Context, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Symbol not found"})
		return
	}
	h.log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"status": "FAILURE", "message": err.Error()})
}

func barRecords(bars []models.PriceBar) []summary.Record {
	records := make([]summary.Record, 0, len(bars))
	for _, bar := range bars {
		records = append(records, barRecord(bar))
	}
	return records
}

func barRecord(bar models.PriceBar) summary.Record {
	return summary.Record{
		"date":   bar.Date.Format("2006-01-02"),
		"open":   round2(bar.Open),
		"high":   round2(bar.High),
		"low":    round2(bar.Low),
		"close":  round2(bar.Close),
		"volume": round2(bar.Volume),
		"value":  round2(bar.Value) * 1000,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func reverse(bars []models.PriceBar) {
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
}
