// Package models declares the read-only row types materialized from the
// exchange market-watch database. Column names follow the upstream schema,
// which this service consumes as-is.
package models

import (
	"time"
)

// Symbol is one row of the vStockAndIndex view (stocks plus index symbols).
type Symbol struct {
	ID     int    `json:"id" gorm:"column:ID;primaryKey"`
	Name   string `json:"name" gorm:"column:Name"`
	Market string `json:"market" gorm:"column:Market"`
}

func (Symbol) TableName() string { return "vStockAndIndex" }

// PriceBar is one daily OHLCV row of WatchOpenCloseSummary for one security.
type PriceBar struct {
	Open   float64   `gorm:"column:OpenPrice"`
	High   float64   `gorm:"column:HighestPrice"`
	Low    float64   `gorm:"column:LowestPrice"`
	Close  float64   `gorm:"column:LastSalePrice"`
	Volume float64   `gorm:"column:TotalSharesTraded"`
	Value  float64   `gorm:"column:TotalValueTradedin1000"`
	Date   time.Time `gorm:"column:WatchOCS_Date"`
}

// Industry is one row of the IndustryNo taxonomy table.
type Industry struct {
	IndustryNumber int    `json:"industry_number" gorm:"column:IndustryNumber"`
	IndustryName   string `json:"industry_name" gorm:"column:IndustryName"`
}

func (Industry) TableName() string { return "IndustryNo" }

// Sector is one row of the SectorNo taxonomy table.
type Sector struct {
	SectorNumber   int    `json:"sector_number" gorm:"column:SectorNumber"`
	SectorName     string `json:"sector_name" gorm:"column:SectorName"`
	IndustryNumber int    `json:"industry_number" gorm:"column:IndustryNumber"`
}

func (Sector) TableName() string { return "SectorNo" }

// SectorMember is a listed security joined onto its sector (d_Compsec x
// SectorNo).
type SectorMember struct {
	SecurityID     int    `json:"security_id" gorm:"column:SecurityID"`
	SecuritySymbol string `json:"security_symbol" gorm:"column:SecuritySymbol"`
	SectorNumber   int    `json:"sector_number" gorm:"column:SectorNumber"`
	SectorName     string `json:"sector_name" gorm:"column:SectorName"`
	ListingStatus  string `json:"listing_status" gorm:"column:ListingStatus"`
}

// BusinessInfo is one row of d_Business for a listed company.
type BusinessInfo struct {
	SecuritySymbol string `json:"security_symbol" gorm:"column:SecuritySymbol"`
	CompanyName    string `json:"company_name" gorm:"column:CompanyName"`
	BusinessType   string `json:"business_type" gorm:"column:BusinessType"`
	URL            string `json:"url" gorm:"column:URL"`
}

// FinanceRow is one fundamental line item of d_Finance.
type FinanceRow struct {
	SecurityID  int       `json:"security_id" gorm:"column:SecurityID"`
	Fiscal      string    `json:"fiscal" gorm:"column:Fiscal"`
	Quarter     string    `json:"quarter" gorm:"column:Quarter"`
	AccountID   int       `json:"account_id" gorm:"column:AccountID"`
	Amount      float64   `json:"amount" gorm:"column:Amount"`
	FinanceDate time.Time `json:"finance_date" gorm:"column:FinanceDate"`
}

// TradeSummaryRow is one joined row of WatchOpenCloseSummary and
// d_CustomerHistory for a market index security. Net columns are computed in
// SQL as buy - sell; the Trading (proprietary) pair only exists for SET.
type TradeSummaryRow struct {
	Date     time.Time `gorm:"column:date"`
	SETOpen  float64   `gorm:"column:SETopen"`
	SETHigh  float64   `gorm:"column:SEThigh"`
	SETLow   float64   `gorm:"column:SETlow"`
	SETClose float64   `gorm:"column:SETclose"`

	FundValBuy      float64 `gorm:"column:FundValBuy"`
	FundValSell     float64 `gorm:"column:FundValSell"`
	FundValNet      float64 `gorm:"column:FundValNet"`
	ForeignValBuy   float64 `gorm:"column:ForeignValBuy"`
	ForeignValSell  float64 `gorm:"column:ForeignValSell"`
	ForeignValNet   float64 `gorm:"column:ForeignValNet"`
	TradingValBuy   float64 `gorm:"column:TradingValBuy"`
	TradingValSell  float64 `gorm:"column:TradingValSell"`
	TradingValNet   float64 `gorm:"column:TradingValNet"`
	CustomerValBuy  float64 `gorm:"column:CustomerValBuy"`
	CustomerValSell float64 `gorm:"column:CustomerValSell"`
	CustomerValNet  float64 `gorm:"column:CustomerValNet"`
}
