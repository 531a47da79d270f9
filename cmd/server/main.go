package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prismapp/prism/internal/clients/quotes"
	"github.com/prismapp/prism/internal/config"
	"github.com/prismapp/prism/internal/database"
	"github.com/prismapp/prism/internal/modules/ledger"
	"github.com/prismapp/prism/internal/modules/marketdata"
	"github.com/prismapp/prism/internal/modules/reports"
	"github.com/prismapp/prism/internal/modules/valuation"
	"github.com/prismapp/prism/internal/scheduler"
	"github.com/prismapp/prism/internal/server"
	"github.com/prismapp/prism/pkg/logger"
)

func main() {
	// Load configuration first so the logger honors LOG_LEVEL
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New(logger.Config{Level: "info", Pretty: true})
		fallback.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting Prism")

	// Initialize the ledger database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := db.Migrate(ledger.InitSchema); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	// Price history store (one sqlite file per ticker)
	prices, err := marketdata.NewRepository(cfg.HistoryDir, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize price history store")
	}

	// Ledger service replays open lots from disk on boot
	ledgerRepo := ledger.NewRepository(db.Conn(), log)
	ledgerSvc, err := ledger.NewService(ledgerRepo, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize ledger service")
	}

	valuationSvc := valuation.NewService(ledgerRepo, prices, cfg.CacheDir, log)
	reportsSvc := reports.NewService(ledgerSvc, prices, valuationSvc, log)

	// Background jobs
	sched := scheduler.New(log)
	jobs := []scheduler.Job{}

	snapshotJob := scheduler.NewSnapshotRefreshJob(valuationSvc, log)
	if err := sched.AddJob(cfg.SnapshotRefreshSchedule, snapshotJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register snapshot refresh job")
	}
	jobs = append(jobs, snapshotJob)

	if cfg.QuotesURL != "" {
		feed := quotes.NewClient(cfg.QuotesURL, log)
		priceJob := scheduler.NewPriceSyncJob(feed, ledgerSvc, prices, 30, log)
		if err := sched.AddJob(cfg.PriceSyncSchedule, priceJob); err != nil {
			log.Fatal().Err(err).Msg("Failed to register price sync job")
		}
		jobs = append(jobs, priceJob)
	} else {
		log.Info().Msg("QUOTES_URL not set, price sync disabled")
	}

	sched.Start()
	defer sched.Stop()

	// HTTP server
	srv := server.New(server.Config{
		Port:             cfg.Port,
		Log:              log,
		DB:               db,
		HistoryDir:       cfg.HistoryDir,
		DevMode:          cfg.DevMode,
		LedgerHandler:    ledger.NewHandler(ledgerSvc, log),
		ValuationHandler: valuation.NewHandler(valuationSvc, log),
		ReportsHandler:   reports.NewHandler(reportsSvc, log),
		Scheduler:        sched,
		Jobs:             jobs,
	})

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
