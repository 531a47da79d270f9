package valuation

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/prismapp/prism/internal/modules/ledger"
)

// PriceSource is the sparse historical price feed consumed by
// reconstruction. Exact-date lookups only; a missing point is (zero, false),
// never an error.
type PriceSource interface {
	PriceAt(ticker, date string) (decimal.Decimal, bool, error)
	KnownDates(tickers []string) ([]string, error)
}

// Point is one (date, total value) sample of the reconstructed series
type Point struct {
	Date  string          `json:"date"`
	Value decimal.Decimal `json:"value"`
}

// CoverageGap marks a date where a held ticker had no price point. The
// ticker contributed zero to that date's value; the gap is surfaced so
// callers can render incomplete-data indicators instead of an unexplained
// dip.
type CoverageGap struct {
	Date   string `json:"date"`
	Ticker string `json:"ticker"`
}

// Series is a date-indexed total wealth series plus its coverage gaps
type Series struct {
	Points       []Point       `json:"points"`
	CoverageGaps []CoverageGap `json:"coverage_gaps,omitempty"`
}

// DateRange bounds a reconstruction, inclusive on both ends
type DateRange struct {
	Start string
	End   string
}

// Reconstruct combines position replay, sparse price history and cumulative
// cash into the total wealth series.
//
// The date axis is the union of feed dates across every ticker that ever
// appears in the event history (not a daily calendar: no interpolation, no
// forward-fill). Dates where the total is not positive are omitted. With no
// price data at all the series is empty; callers fall back to a single
// current-snapshot point.
func Reconstruct(events []ledger.TradeEvent, prices PriceSource, cash []ledger.CashEntry, dateRange *DateRange) (Series, error) {
	tickers := everTradedTickers(events)
	if len(tickers) == 0 {
		return Series{}, nil
	}

	dates, err := prices.KnownDates(tickers)
	if err != nil {
		return Series{}, fmt.Errorf("failed to determine date axis: %w", err)
	}
	if dateRange != nil {
		dates = clampDates(dates, dateRange)
	}
	if len(dates) == 0 {
		return Series{}, nil
	}

	holdingsPerDate := HoldingsSweep(events, dates)

	sortedCash := make([]ledger.CashEntry, len(cash))
	copy(sortedCash, cash)
	sort.SliceStable(sortedCash, func(i, j int) bool {
		if sortedCash[i].OccurredOn != sortedCash[j].OccurredOn {
			return sortedCash[i].OccurredOn < sortedCash[j].OccurredOn
		}
		return sortedCash[i].Seq < sortedCash[j].Seq
	})

	var series Series
	cashBalance := decimal.Zero
	ci := 0

	for di, date := range dates {
		for ci < len(sortedCash) && sortedCash[ci].OccurredOn <= date {
			cashBalance = cashBalance.Add(sortedCash[ci].Amount)
			ci++
		}

		assetsValue := decimal.Zero
		for _, ticker := range sortedTickers(holdingsPerDate[di]) {
			qty := holdingsPerDate[di][ticker]
			price, ok, err := prices.PriceAt(ticker, date)
			if err != nil {
				return Series{}, fmt.Errorf("price lookup failed for %s on %s: %w", ticker, date, err)
			}
			if !ok {
				series.CoverageGaps = append(series.CoverageGaps, CoverageGap{Date: date, Ticker: ticker})
				continue
			}
			assetsValue = assetsValue.Add(qty.Mul(price))
		}

		total := assetsValue.Add(cashBalance)
		if total.IsPositive() {
			series.Points = append(series.Points, Point{Date: date, Value: total})
		}
	}

	return series, nil
}

func everTradedTickers(events []ledger.TradeEvent) []string {
	seen := make(map[string]struct{})
	for _, e := range events {
		seen[e.Ticker] = struct{}{}
	}

	tickers := make([]string, 0, len(seen))
	for ticker := range seen {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)
	return tickers
}

func sortedTickers(h Holdings) []string {
	tickers := make([]string, 0, len(h))
	for ticker := range h {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)
	return tickers
}

func clampDates(dates []string, r *DateRange) []string {
	var clamped []string
	for _, d := range dates {
		if r.Start != "" && d < r.Start {
			continue
		}
		if r.End != "" && d > r.End {
			continue
		}
		clamped = append(clamped, d)
	}
	return clamped
}
