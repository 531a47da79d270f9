package scheduler

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/prismapp/prism/internal/modules/marketdata"
)

// QuoteFeed is the external daily-close source
type QuoteFeed interface {
	GetDailyCloses(ticker, start, end string) ([]marketdata.PricePoint, error)
}

// TickerSource lists the tickers whose prices are worth syncing
type TickerSource interface {
	HeldTickers() []string
}

// PriceSyncJob pulls recent daily closes for every held ticker into the
// price history store. Feed failures for one ticker do not stop the rest;
// the valuation layer treats whatever is missing as coverage gaps.
type PriceSyncJob struct {
	feed     QuoteFeed
	tickers  TickerSource
	prices   *marketdata.Repository
	lookback int // days of history to (re)fetch per run
	log      zerolog.Logger
}

// NewPriceSyncJob creates a price sync job
func NewPriceSyncJob(feed QuoteFeed, tickers TickerSource, prices *marketdata.Repository, lookbackDays int, log zerolog.Logger) *PriceSyncJob {
	if lookbackDays <= 0 {
		lookbackDays = 30
	}
	return &PriceSyncJob{
		feed:     feed,
		tickers:  tickers,
		prices:   prices,
		lookback: lookbackDays,
		log:      log.With().Str("job", "price_sync").Logger(),
	}
}

// Name returns the job name
func (j *PriceSyncJob) Name() string {
	return "price_sync"
}

// Run fetches and stores recent closes for all held tickers
func (j *PriceSyncJob) Run() error {
	held := j.tickers.HeldTickers()
	if len(held) == 0 {
		j.log.Debug().Msg("No held tickers, nothing to sync")
		return nil
	}

	end := time.Now().Format("2006-01-02")
	start := time.Now().AddDate(0, 0, -j.lookback).Format("2006-01-02")

	var failed int
	for _, ticker := range held {
		points, err := j.feed.GetDailyCloses(ticker, start, end)
		if err != nil {
			j.log.Warn().Err(err).Str("ticker", ticker).Msg("Price fetch failed")
			failed++
			continue
		}
		if len(points) == 0 {
			continue
		}
		if err := j.prices.UpsertPrices(ticker, points); err != nil {
			j.log.Error().Err(err).Str("ticker", ticker).Msg("Price store write failed")
			failed++
		}
	}

	j.log.Info().
		Int("tickers", len(held)).
		Int("failed", failed).
		Msg("Price sync finished")

	if failed == len(held) {
		return fmt.Errorf("price sync failed for all %d tickers", failed)
	}
	return nil
}
