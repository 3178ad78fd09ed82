package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"set-market-api/internal/api"
	"set-market-api/internal/config"
	"set-market-api/internal/database"
	"set-market-api/internal/repository"
	"set-market-api/internal/scheduler"
	"set-market-api/internal/services/histstore"
	"set-market-api/internal/services/scraper"
	"set-market-api/internal/services/summary"
	"set-market-api/internal/tradesum"
)

func main() {
	// .env is optional outside development; real environment wins
	_ = godotenv.Load()

	cfg := config.Load()
	log := newLogger(cfg.LogLevel)

	db, err := database.Initialize(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	repo := repository.New(db)
	scrape := scraper.New(scraper.Config{
		MarketSummaryURL: cfg.MarketSummaryURL,
		InvestorTableURL: cfg.InvestorTableURL,
		RowLabel:         cfg.InvestorRowLabel,
		Timeout:          time.Duration(cfg.ScrapeTimeoutSecs) * time.Second,
	})
	blob := histstore.NewBlobStore(cfg.BlobBaseURL, cfg.BlobName, cfg.BlobSASToken,
		time.Duration(cfg.ScrapeTimeoutSecs)*time.Second)
	history := histstore.New(blob, nil)
	summaries := summary.New(repo, scrape, history, log)

	if cfg.SnapshotCron != "" {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			log.Warn().Err(err).Str("tz", cfg.Timezone).Msg("unknown timezone, using UTC")
			loc = time.UTC
		}
		snap := scheduler.New(loc, history, func(ctx context.Context) (*tradesum.Observation, error) {
			flows, err := scrape.FetchInvestorFlows(ctx)
			if err != nil {
				return nil, err
			}
			return flows.NetObservation(), nil
		}, log)
		if err := snap.Register(cfg.SnapshotCron); err != nil {
			log.Fatal().Err(err).Msg("failed to register snapshot job")
		}
		snap.Start()
		defer snap.Stop()
	}

	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()

	// CORS middleware
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api.SetupRoutes(r.Group("/"), repo, scrape, summaries, log)

	log.Info().Str("port", cfg.Port).Msg("server starting")
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(output).Level(lvl).With().Timestamp().Logger()
}
