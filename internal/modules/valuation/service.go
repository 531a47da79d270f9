package valuation

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/prismapp/prism/internal/modules/ledger"
	"github.com/prismapp/prism/internal/modules/marketdata"
)

// LedgerReader is the slice of the ledger store the read path consumes.
// ReadLedgerSnapshot returns events and cash from one read transaction, so
// a concurrently committing trade is never seen half-applied across the two.
type LedgerReader interface {
	ReadAllEvents(ticker string) ([]ledger.TradeEvent, error)
	ReadLedgerSnapshot() ([]ledger.TradeEvent, []ledger.CashEntry, error)
}

// PriceReader extends the sparse price feed with a latest-known lookup used
// for current snapshots.
type PriceReader interface {
	PriceSource
	LatestPriceAsOf(ticker, date string) (marketdata.PricePoint, bool, error)
}

// PortfolioSnapshot is the derived current state: holdings by replay, cash
// by summation, assets valued at the latest known price. Never persisted as
// state; recomputed on demand.
type PortfolioSnapshot struct {
	AsOf          string                     `json:"as_of"`
	Holdings      map[string]decimal.Decimal `json:"holdings"`
	Cash          decimal.Decimal            `json:"cash"`
	AssetsValue   decimal.Decimal            `json:"assets_value"`
	TotalValue    decimal.Decimal            `json:"total_value"`
	MissingPrices []string                   `json:"missing_prices,omitempty"`
}

// Service orchestrates replay and reconstruction over the stores
type Service struct {
	ledger   LedgerReader
	prices   PriceReader
	cacheDir string
	log      zerolog.Logger

	cacheMu sync.Mutex
}

// NewService creates a valuation service. cacheDir may be empty to disable
// the series cache.
func NewService(ledgerReader LedgerReader, prices PriceReader, cacheDir string, log zerolog.Logger) *Service {
	return &Service{
		ledger:   ledgerReader,
		prices:   prices,
		cacheDir: cacheDir,
		log:      log.With().Str("service", "valuation").Logger(),
	}
}

// Series reconstructs the total wealth series, optionally bounded
func (s *Service) Series(dateRange *DateRange) (Series, error) {
	events, cash, err := s.ledger.ReadLedgerSnapshot()
	if err != nil {
		return Series{}, fmt.Errorf("failed to read ledger snapshot: %w", err)
	}

	series, err := Reconstruct(events, s.prices, cash, dateRange)
	if err != nil {
		return Series{}, err
	}

	if len(series.CoverageGaps) > 0 {
		s.log.Warn().
			Int("gaps", len(series.CoverageGaps)).
			Msg("Valuation series has price coverage gaps")
	}

	return series, nil
}

// HoldingsAsOf replays holdings at an arbitrary date
func (s *Service) HoldingsAsOf(date string) (Holdings, error) {
	events, err := s.ledger.ReadAllEvents("")
	if err != nil {
		return nil, fmt.Errorf("failed to read trade events: %w", err)
	}
	return HoldingsAt(events, date), nil
}

// Snapshot computes the portfolio state as of a date (today for the live
// endpoint). Tickers with no price at or before the date contribute zero
// and are listed in MissingPrices.
func (s *Service) Snapshot(asOf string) (*PortfolioSnapshot, error) {
	events, cash, err := s.ledger.ReadLedgerSnapshot()
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger snapshot: %w", err)
	}

	holdings := HoldingsAt(events, asOf)

	cashBalance := decimal.Zero
	for _, e := range cash {
		if e.OccurredOn <= asOf {
			cashBalance = cashBalance.Add(e.Amount)
		}
	}

	snapshot := &PortfolioSnapshot{
		AsOf:     asOf,
		Holdings: holdings,
		Cash:     cashBalance,
	}

	assetsValue := decimal.Zero
	tickers := make([]string, 0, len(holdings))
	for ticker := range holdings {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)

	for _, ticker := range tickers {
		point, ok, err := s.prices.LatestPriceAsOf(ticker, asOf)
		if err != nil {
			return nil, fmt.Errorf("latest price lookup failed for %s: %w", ticker, err)
		}
		if !ok {
			snapshot.MissingPrices = append(snapshot.MissingPrices, ticker)
			continue
		}
		assetsValue = assetsValue.Add(holdings[ticker].Mul(point.Price))
	}

	snapshot.AssetsValue = assetsValue
	snapshot.TotalValue = assetsValue.Add(cashBalance)
	return snapshot, nil
}

// CurrentSnapshot computes the snapshot as of today
func (s *Service) CurrentSnapshot() (*PortfolioSnapshot, error) {
	return s.Snapshot(time.Now().Format("2006-01-02"))
}

// --- series cache ---
//
// The full reconstruction walks every price file; the scheduler refreshes
// this cache so a UI read right after restart does not pay that cost.

const cacheFileName = "valuation_series.msgpack"

// seriesCacheMaxAge matches the refresh job's cadence; anything older is
// treated as a miss.
const seriesCacheMaxAge = time.Hour

// SeriesWithCache serves the full series from the disk cache when it is
// fresh enough, recomputing (and rewriting the cache) otherwise. cached
// reports which path answered.
func (s *Service) SeriesWithCache() (series Series, cached bool, err error) {
	stored, generatedAt, ok, err := s.CachedSeries()
	if err != nil {
		s.log.Warn().Err(err).Msg("Series cache unreadable, recomputing")
	} else if ok && time.Since(generatedAt) <= seriesCacheMaxAge {
		return stored, true, nil
	}

	series, err = s.RefreshCache()
	return series, false, err
}

type cachedPoint struct {
	Date  string `msgpack:"date"`
	Value string `msgpack:"value"`
}

type cachedGap struct {
	Date   string `msgpack:"date"`
	Ticker string `msgpack:"ticker"`
}

type cachedSeries struct {
	GeneratedAt int64         `msgpack:"generated_at"`
	Points      []cachedPoint `msgpack:"points"`
	Gaps        []cachedGap   `msgpack:"gaps"`
}

// RefreshCache recomputes the full series and writes it to the cache file
func (s *Service) RefreshCache() (Series, error) {
	series, err := s.Series(nil)
	if err != nil {
		return Series{}, err
	}
	if s.cacheDir == "" {
		return series, nil
	}

	cached := cachedSeries{GeneratedAt: time.Now().Unix()}
	for _, p := range series.Points {
		cached.Points = append(cached.Points, cachedPoint{Date: p.Date, Value: p.Value.String()})
	}
	for _, g := range series.CoverageGaps {
		cached.Gaps = append(cached.Gaps, cachedGap{Date: g.Date, Ticker: g.Ticker})
	}

	data, err := msgpack.Marshal(&cached)
	if err != nil {
		return series, fmt.Errorf("failed to encode series cache: %w", err)
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if err := os.MkdirAll(s.cacheDir, 0755); err != nil {
		return series, fmt.Errorf("failed to create cache directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.cacheDir, cacheFileName), data, 0644); err != nil {
		return series, fmt.Errorf("failed to write series cache: %w", err)
	}

	s.log.Debug().Int("points", len(series.Points)).Msg("Valuation cache refreshed")
	return series, nil
}

// CachedSeries loads the last cached series. ok is false when no cache
// exists yet.
func (s *Service) CachedSeries() (Series, time.Time, bool, error) {
	if s.cacheDir == "" {
		return Series{}, time.Time{}, false, nil
	}

	s.cacheMu.Lock()
	data, err := os.ReadFile(filepath.Join(s.cacheDir, cacheFileName))
	s.cacheMu.Unlock()
	if os.IsNotExist(err) {
		return Series{}, time.Time{}, false, nil
	}
	if err != nil {
		return Series{}, time.Time{}, false, fmt.Errorf("failed to read series cache: %w", err)
	}

	var cached cachedSeries
	if err := msgpack.Unmarshal(data, &cached); err != nil {
		return Series{}, time.Time{}, false, fmt.Errorf("failed to decode series cache: %w", err)
	}

	var series Series
	for _, p := range cached.Points {
		value, err := decimal.NewFromString(p.Value)
		if err != nil {
			return Series{}, time.Time{}, false, fmt.Errorf("corrupt cached value %q: %w", p.Value, err)
		}
		series.Points = append(series.Points, Point{Date: p.Date, Value: value})
	}
	for _, g := range cached.Gaps {
		series.CoverageGaps = append(series.CoverageGaps, CoverageGap{Date: g.Date, Ticker: g.Ticker})
	}

	return series, time.Unix(cached.GeneratedAt, 0), true, nil
}
