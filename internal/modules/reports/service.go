// Package reports derives summary analytics from open positions and the
// reconstructed wealth series. Everything here is presentation-grade
// arithmetic: nothing feeds back into accounting.
package reports

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/prismapp/prism/internal/modules/ledger"
	"github.com/prismapp/prism/internal/modules/marketdata"
	"github.com/prismapp/prism/internal/modules/valuation"
	"github.com/prismapp/prism/pkg/formulas"
)

// LotReader provides current open lots
type LotReader interface {
	AllOpenLots() []ledger.Lot
}

// PriceReader provides latest-known prices for valuing open positions
type PriceReader interface {
	LatestPriceAsOf(ticker, date string) (marketdata.PricePoint, bool, error)
}

// SeriesSource provides the reconstructed wealth series
type SeriesSource interface {
	Series(dateRange *valuation.DateRange) (valuation.Series, error)
}

// Service computes portfolio reports
type Service struct {
	lots   LotReader
	prices PriceReader
	series SeriesSource
	log    zerolog.Logger
}

// NewService creates a reports service
func NewService(lots LotReader, prices PriceReader, series SeriesSource, log zerolog.Logger) *Service {
	return &Service{
		lots:   lots,
		prices: prices,
		series: series,
		log:    log.With().Str("service", "reports").Logger(),
	}
}

// TickerPerformance is the P/L of one ticker's open position
type TickerPerformance struct {
	Ticker          string            `json:"ticker"`
	AssetClass      ledger.AssetClass `json:"asset_class"`
	Quantity        decimal.Decimal   `json:"quantity"`
	Cost            decimal.Decimal   `json:"cost"`
	Value           decimal.Decimal   `json:"value"`
	GainLoss        decimal.Decimal   `json:"gain_loss"`
	GainLossPercent decimal.Decimal   `json:"gain_loss_percent"`
	PriceMissing    bool              `json:"price_missing,omitempty"`
}

// Performance summarizes unrealized P/L across open positions
type Performance struct {
	TotalCost            decimal.Decimal     `json:"total_cost"`
	TotalValue           decimal.Decimal     `json:"total_value"`
	TotalGainLoss        decimal.Decimal     `json:"total_gain_loss"`
	TotalGainLossPercent decimal.Decimal     `json:"total_gain_loss_percent"`
	ByTicker             []TickerPerformance `json:"by_ticker"`
	DiversificationScore float64             `json:"diversification_score"`
}

// AllocationSlice is one asset class's share of portfolio value
type AllocationSlice struct {
	AssetClass ledger.AssetClass `json:"asset_class"`
	Value      decimal.Decimal   `json:"value"`
	Percent    decimal.Decimal   `json:"percent"`
}

// Performance values open lots at the latest known price. Lots without any
// price are carried at cost, flagged per ticker.
func (s *Service) Performance() (*Performance, error) {
	today := time.Now().Format("2006-01-02")
	byTicker := make(map[string]*TickerPerformance)

	for _, lot := range s.lots.AllOpenLots() {
		perf, ok := byTicker[lot.Ticker]
		if !ok {
			perf = &TickerPerformance{Ticker: lot.Ticker, AssetClass: lot.AssetClass}
			byTicker[lot.Ticker] = perf
		}
		perf.Quantity = perf.Quantity.Add(lot.Quantity)
		perf.Cost = perf.Cost.Add(lot.Quantity.Mul(lot.UnitCost))
	}

	result := &Performance{}
	tickers := make([]string, 0, len(byTicker))
	for ticker := range byTicker {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)

	for _, ticker := range tickers {
		perf := byTicker[ticker]

		point, ok, err := s.prices.LatestPriceAsOf(ticker, today)
		if err != nil {
			return nil, fmt.Errorf("latest price lookup failed for %s: %w", ticker, err)
		}
		if ok {
			perf.Value = perf.Quantity.Mul(point.Price)
		} else {
			// No price at all: carry the position at cost.
			perf.Value = perf.Cost
			perf.PriceMissing = true
		}

		perf.GainLoss = perf.Value.Sub(perf.Cost)
		if perf.Cost.IsPositive() {
			perf.GainLossPercent = perf.GainLoss.Div(perf.Cost).Mul(decimal.NewFromInt(100))
		}

		result.TotalCost = result.TotalCost.Add(perf.Cost)
		result.TotalValue = result.TotalValue.Add(perf.Value)
		result.ByTicker = append(result.ByTicker, *perf)
	}

	result.TotalGainLoss = result.TotalValue.Sub(result.TotalCost)
	if result.TotalCost.IsPositive() {
		result.TotalGainLossPercent = result.TotalGainLoss.Div(result.TotalCost).Mul(decimal.NewFromInt(100))
	}

	allocation, err := s.Allocation()
	if err != nil {
		return nil, err
	}
	result.DiversificationScore = diversificationScore(allocation)

	return result, nil
}

// Allocation breaks portfolio value down by asset class, largest first
func (s *Service) Allocation() ([]AllocationSlice, error) {
	today := time.Now().Format("2006-01-02")
	values := make(map[ledger.AssetClass]decimal.Decimal)
	total := decimal.Zero

	byTicker := make(map[string][]ledger.Lot)
	for _, lot := range s.lots.AllOpenLots() {
		byTicker[lot.Ticker] = append(byTicker[lot.Ticker], lot)
	}

	for ticker, lots := range byTicker {
		point, ok, err := s.prices.LatestPriceAsOf(ticker, today)
		if err != nil {
			return nil, fmt.Errorf("latest price lookup failed for %s: %w", ticker, err)
		}

		for _, lot := range lots {
			var value decimal.Decimal
			if ok {
				value = lot.Quantity.Mul(point.Price)
			} else {
				value = lot.Quantity.Mul(lot.UnitCost)
			}
			values[lot.AssetClass] = values[lot.AssetClass].Add(value)
			total = total.Add(value)
		}
	}

	slices := make([]AllocationSlice, 0, len(values))
	for class, value := range values {
		slice := AllocationSlice{AssetClass: class, Value: value}
		if total.IsPositive() {
			slice.Percent = value.Div(total).Mul(decimal.NewFromInt(100))
		}
		slices = append(slices, slice)
	}

	sort.Slice(slices, func(i, j int) bool {
		if !slices[i].Value.Equal(slices[j].Value) {
			return slices[i].Value.GreaterThan(slices[j].Value)
		}
		return slices[i].AssetClass < slices[j].AssetClass
	})
	return slices, nil
}

// diversificationScore maps the Herfindahl-Hirschman index of the class
// allocation onto 0..100, where 100 is equal weights and 0 is a single
// class.
func diversificationScore(allocation []AllocationSlice) float64 {
	n := len(allocation)
	if n <= 1 {
		return 0
	}

	hhi := 0.0
	for _, slice := range allocation {
		weight, _ := slice.Percent.Div(decimal.NewFromInt(100)).Float64()
		hhi += weight * weight
	}

	minHHI := 1.0
	maxHHI := 1.0 / float64(n)
	score := (minHHI - hhi) / (minHHI - maxHHI) * 100

	return math.Max(0, math.Min(100, score))
}

// SeriesStats describes the reconstructed wealth series statistically
type SeriesStats struct {
	Start                   string   `json:"start"`
	End                     string   `json:"end"`
	StartValue              float64  `json:"start_value"`
	EndValue                float64  `json:"end_value"`
	ROIPercent              float64  `json:"roi_percent"`
	AnnualizedReturnPercent float64  `json:"annualized_return_percent"`
	AnnualizedVolatility    float64  `json:"annualized_volatility"`
	MaxDrawdown             float64  `json:"max_drawdown"`
	SMA                     *float64 `json:"sma,omitempty"`
	SMAWindow               int      `json:"sma_window,omitempty"`
	Points                  int      `json:"points"`
}

// SeriesStats computes return and risk statistics over the full series.
// window > 0 adds a simple moving average of the value series.
func (s *Service) SeriesStats(window int) (*SeriesStats, error) {
	series, err := s.series.Series(nil)
	if err != nil {
		return nil, err
	}
	if len(series.Points) == 0 {
		return &SeriesStats{}, nil
	}

	values := make([]float64, len(series.Points))
	for i, p := range series.Points {
		values[i], _ = p.Value.Float64()
	}

	first := series.Points[0]
	last := series.Points[len(series.Points)-1]

	stats := &SeriesStats{
		Start:                first.Date,
		End:                  last.Date,
		StartValue:           values[0],
		EndValue:             values[len(values)-1],
		AnnualizedVolatility: formulas.AnnualizedVolatility(formulas.DailyReturns(values)),
		MaxDrawdown:          formulas.MaxDrawdown(values),
		Points:               len(values),
	}

	if stats.StartValue > 0 {
		stats.ROIPercent = (stats.EndValue - stats.StartValue) / stats.StartValue * 100
		stats.AnnualizedReturnPercent = annualizedReturn(stats.StartValue, stats.EndValue, first.Date, last.Date)
	}

	if window > 0 {
		stats.SMA = formulas.LastSMA(values, window)
		stats.SMAWindow = window
	}

	return stats, nil
}

func annualizedReturn(startValue, endValue float64, startDate, endDate string) float64 {
	start, err := time.Parse("2006-01-02", startDate)
	if err != nil {
		return 0
	}
	end, err := time.Parse("2006-01-02", endDate)
	if err != nil {
		return 0
	}

	years := end.Sub(start).Hours() / 24 / 365.25
	if years <= 0 || startValue <= 0 {
		return 0
	}
	return (math.Pow(endValue/startValue, 1/years) - 1) * 100
}
