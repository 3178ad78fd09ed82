// One-shot TFEX history snapshot: scrape today's investor flows and merge
// them into the blob history. Useful for backfilling a missed trading day
// without waiting for the in-server cron job.
package main

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"set-market-api/internal/config"
	"set-market-api/internal/services/histstore"
	"set-market-api/internal/services/scraper"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	scrape := scraper.New(scraper.Config{
		MarketSummaryURL: cfg.MarketSummaryURL,
		InvestorTableURL: cfg.InvestorTableURL,
		RowLabel:         cfg.InvestorRowLabel,
		Timeout:          time.Duration(cfg.ScrapeTimeoutSecs) * time.Second,
	})
	blob := histstore.NewBlobStore(cfg.BlobBaseURL, cfg.BlobName, cfg.BlobSASToken,
		time.Duration(cfg.ScrapeTimeoutSecs)*time.Second)
	history := histstore.New(blob, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	flows, err := scrape.FetchInvestorFlows(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("scrape failed")
	}
	merged, err := history.MergeAndSave(ctx, flows.NetObservation())
	if err != nil {
		log.Fatal().Err(err).Msg("merge failed")
	}
	log.Info().
		Str("date", flows.Date.Format("2006-01-02")).
		Int("rows", len(merged)).
		Msg("history snapshot merged")
}
