package config

import (
	"os"
	"strconv"
)

type Config struct {
	DatabaseURL string
	Port        string
	Environment string
	LogLevel    string

	// Object store holding the persisted TFEX flow history CSV.
	BlobBaseURL  string // e.g. https://alpharesearch.blob.core.windows.net/yongcontainer
	BlobName     string
	BlobSASToken string

	// Scrape sources on marketdata.set.or.th.
	MarketSummaryURL  string // %s is the market token (SET / mai)
	InvestorTableURL  string
	InvestorRowLabel  string // label cell of the table row to extract
	ScrapeTimeoutSecs int

	// Daily snapshot job; empty spec disables it.
	SnapshotCron string
	Timezone     string
}

func Load() *Config {
	return &Config{
		DatabaseURL: getEnv("DATABASE_URL", "root:password@tcp(127.0.0.1:3306)/marketwatch?charset=utf8mb4&parseTime=True&loc=Local"),
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		BlobBaseURL:  getEnv("BLOB_BASE_URL", "https://alpharesearch.blob.core.windows.net/yongcontainer"),
		BlobName:     getEnv("BLOB_NAME", "tfex-trade-history.csv"),
		BlobSASToken: getEnv("BLOB_SAS_TOKEN", ""),

		MarketSummaryURL:  getEnv("MARKET_SUMMARY_URL", "https://marketdata.set.or.th/mkt/marketsummary.do?market=%s&language=en&country=US"),
		InvestorTableURL:  getEnv("INVESTOR_TABLE_URL", "https://marketdata.set.or.th/tfx/tfexinvestortypetrading.do?locale=th_TH"),
		InvestorRowLabel:  getEnv("INVESTOR_ROW_LABEL", "สถาบัน"),
		ScrapeTimeoutSecs: getEnvInt("SCRAPE_TIMEOUT_SECS", 15),

		SnapshotCron: getEnv("SNAPSHOT_CRON", "0 30 18 * * 1-5"),
		Timezone:     getEnv("TIMEZONE", "Asia/Bangkok"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
