// Package repository is the read-only query layer over the exchange
// market-watch database.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"set-market-api/internal/models"
)

// ErrNotFound reports an unknown symbol, sector or empty keyed lookup.
var ErrNotFound = errors.New("not found")

// Market selects which index security the trade summary join runs against.
type Market int

const (
	MarketSET  Market = iota // SET composite index
	MarketTFEX               // derivatives market
)

// Security numbers of the index rows in WatchOpenCloseSummary.
func (m Market) securityNumber() int {
	if m == MarketTFEX {
		return 1025
	}
	return 1024
}

type Repository struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Symbols(ctx context.Context) ([]models.Symbol, error) {
	var symbols []models.Symbol
	if err := r.db.WithContext(ctx).Find(&symbols).Error; err != nil {
		return nil, fmt.Errorf("query symbols: %w", err)
	}
	return symbols, nil
}

func (r *Repository) SymbolByID(ctx context.Context, id int) (*models.Symbol, error) {
	var symbol models.Symbol
	err := r.db.WithContext(ctx).Where("ID = ?", id).First(&symbol).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query symbol id %d: %w", id, err)
	}
	return &symbol, nil
}

func (r *Repository) SymbolByName(ctx context.Context, name string) (*models.Symbol, error) {
	var symbol models.Symbol
	err := r.db.WithContext(ctx).Where("Name = ?", name).First(&symbol).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query symbol %q: %w", name, err)
	}
	return &symbol, nil
}

// Prices returns the full daily OHLCV history for a symbol, ascending by
// date. Unknown symbols map to ErrNotFound.
func (r *Repository) Prices(ctx context.Context, symbolName string) ([]models.PriceBar, error) {
	symbol, err := r.SymbolByName(ctx, symbolName)
	if err != nil {
		return nil, err
	}
	var bars []models.PriceBar
	err = r.db.WithContext(ctx).
		Table("WatchOpenCloseSummary").
		Where("SecurityNumber = ?", symbol.ID).
		Order("WatchOCS_Date ASC").
		Find(&bars).Error
	if err != nil {
		return nil, fmt.Errorf("query prices for %q: %w", symbolName, err)
	}
	return bars, nil
}

// RecentPrices returns the latest n bars, descending by date.
func (r *Repository) RecentPrices(ctx context.Context, symbolName string, n int) ([]models.PriceBar, error) {
	symbol, err := r.SymbolByName(ctx, symbolName)
	if err != nil {
		return nil, err
	}
	var bars []models.PriceBar
	err = r.db.WithContext(ctx).
		Table("WatchOpenCloseSummary").
		Where("SecurityNumber = ?", symbol.ID).
		Order("WatchOCS_Date DESC").
		Limit(n).
		Find(&bars).Error
	if err != nil {
		return nil, fmt.Errorf("query recent prices for %q: %w", symbolName, err)
	}
	if len(bars) == 0 {
		return nil, ErrNotFound
	}
	return bars, nil
}

func (r *Repository) Industries(ctx context.Context) ([]models.Industry, error) {
	var industries []models.Industry
	if err := r.db.WithContext(ctx).Find(&industries).Error; err != nil {
		return nil, fmt.Errorf("query industries: %w", err)
	}
	return industries, nil
}

func (r *Repository) Sectors(ctx context.Context) ([]models.Sector, error) {
	var sectors []models.Sector
	if err := r.db.WithContext(ctx).Find(&sectors).Error; err != nil {
		return nil, fmt.Errorf("query sectors: %w", err)
	}
	return sectors, nil
}

// SectorMembers lists securities currently listed under a sector.
func (r *Repository) SectorMembers(ctx context.Context, sectorNumber int) ([]models.SectorMember, error) {
	var members []models.SectorMember
	err := r.db.WithContext(ctx).Raw(`
		SELECT c.SecurityID, c.SecuritySymbol, s.SectorNumber, s.SectorName, c.ListingStatus
		FROM d_Compsec c
		JOIN SectorNo s ON c.SectorNo = s.SectorNumber
		WHERE c.SectorNo = ? AND c.ListingStatus = 'L'`, sectorNumber).
		Scan(&members).Error
	if err != nil {
		return nil, fmt.Errorf("query sector %d members: %w", sectorNumber, err)
	}
	if len(members) == 0 {
		return nil, ErrNotFound
	}
	return members, nil
}

func (r *Repository) BusinessInfo(ctx context.Context, symbolName string) ([]models.BusinessInfo, error) {
	var info []models.BusinessInfo
	err := r.db.WithContext(ctx).Raw(`
		SELECT SecuritySymbol, CompanyName, BusinessType, URL
		FROM d_Business WHERE SecuritySymbol = ?`, symbolName).
		Scan(&info).Error
	if err != nil {
		return nil, fmt.Errorf("query business info for %q: %w", symbolName, err)
	}
	if len(info) == 0 {
		return nil, ErrNotFound
	}
	return info, nil
}

// FinanceBySector returns one account line item across every listed security
// of a sector for a fiscal period, unaudited statements only.
func (r *Repository) FinanceBySector(ctx context.Context, sectorID, featureID int, fiscal, quarter string) ([]models.FinanceRow, error) {
	var rows []models.FinanceRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT f.SecurityID, f.Fiscal, f.Quarter, f.AccountID, f.Amount, f.FinanceDate
		FROM d_Finance f
		WHERE f.SecurityID IN (
			SELECT c.SecurityID FROM d_Compsec c
			JOIN SectorNo s ON c.SectorNo = s.SectorNumber
			WHERE c.SectorNo = ? AND c.ListingStatus = 'L'
		)
		AND f.Fiscal = ? AND f.Quarter = ?
		AND f.AccountID = ?
		AND f.FinancialStatementType = 'U'`,
		sectorID, fiscal, quarter, featureID).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query finance for sector %d: %w", sectorID, err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rows, nil
}

// TradeSummary materializes the investor-type flow join for a market index
// within [start, end]. Net columns are computed in SQL as buy - sell. Rows
// come back descending and capped at 300, matching the upstream feed window.
func (r *Repository) TradeSummary(ctx context.Context, market Market, start, end time.Time) ([]models.TradeSummaryRow, error) {
	tradingCols := ""
	if market == MarketSET {
		tradingCols = `
			TradingValBuy, TradingValSell,
			TradingValBuy - TradingValSell AS TradingValNet,`
	}
	query := fmt.Sprintf(`
		SELECT WatchOCS_Date AS date,
			ROUND(OpenPrice, 2) AS SETopen,
			ROUND(HighestPrice, 2) AS SEThigh,
			ROUND(LowestPrice, 2) AS SETlow,
			ROUND(LastSalePrice, 2) AS SETclose,
			FundValBuy, FundValSell,
			ForeignValBuy, ForeignValSell,%s
			CustomerValBuy, CustomerValSell,
			FundValBuy - FundValSell AS FundValNet,
			ForeignValBuy - ForeignValSell AS ForeignValNet,
			CustomerValBuy - CustomerValSell AS CustomerValNet
		FROM WatchOpenCloseSummary w
		LEFT JOIN d_CustomerHistory h ON w.WatchOCS_Date = h.SeqDate AND h.SecurityNumber = ?
		WHERE w.SecurityNumber = ?
			AND WatchOCS_Date >= ? AND WatchOCS_Date <= ?
		ORDER BY WatchOCS_Date DESC
		LIMIT 300`, tradingCols)

	var rows []models.TradeSummaryRow
	err := r.db.WithContext(ctx).Raw(query,
		market.securityNumber(), market.securityNumber(),
		start.Format("2006-01-02"), end.Format("2006-01-02")).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query trade summary: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rows, nil
}
