package valuation

import (
	"sort"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prismapp/prism/internal/modules/ledger"
)

// fakePrices serves exact-date lookups from an in-memory map keyed by
// ticker -> date -> price
type fakePrices struct {
	prices map[string]map[string]decimal.Decimal
}

func newFakePrices() *fakePrices {
	return &fakePrices{prices: make(map[string]map[string]decimal.Decimal)}
}

func (f *fakePrices) set(ticker, date, price string) {
	if f.prices[ticker] == nil {
		f.prices[ticker] = make(map[string]decimal.Decimal)
	}
	f.prices[ticker][date] = d(price)
}

func (f *fakePrices) PriceAt(ticker, date string) (decimal.Decimal, bool, error) {
	price, ok := f.prices[ticker][date]
	return price, ok, nil
}

func (f *fakePrices) KnownDates(tickers []string) ([]string, error) {
	seen := make(map[string]struct{})
	for _, ticker := range tickers {
		for date := range f.prices[ticker] {
			seen[date] = struct{}{}
		}
	}
	dates := make([]string, 0, len(seen))
	for date := range seen {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	return dates, nil
}

func cashEntry(seq int64, amount, date string) ledger.CashEntry {
	return ledger.CashEntry{
		Seq:        seq,
		ID:         "cash-" + date,
		Amount:     d(amount),
		OccurredOn: date,
		Reason:     ledger.ReasonAdjustment,
	}
}

func TestReconstruct_TotalIsAssetsPlusCash(t *testing.T) {
	events := []ledger.TradeEvent{
		event(1, "AAPL", ledger.SideBuy, "10", "2024-01-10"),
	}
	cash := []ledger.CashEntry{
		cashEntry(1, "5000", "2024-01-01"),
		cashEntry(2, "-1000", "2024-01-10"), // the buy outflow
	}

	prices := newFakePrices()
	prices.set("AAPL", "2024-01-15", "110")
	prices.set("AAPL", "2024-01-20", "120")

	series, err := Reconstruct(events, prices, cash, nil)
	require.NoError(t, err)
	require.Len(t, series.Points, 2)
	assert.Empty(t, series.CoverageGaps)

	// 10 * 110 + 4000 cash
	assert.Equal(t, "2024-01-15", series.Points[0].Date)
	assert.Equal(t, "5100", series.Points[0].Value.String())
	// 10 * 120 + 4000 cash
	assert.Equal(t, "5200", series.Points[1].Value.String())
}

func TestReconstruct_MissingPriceRecordsCoverageGap(t *testing.T) {
	events := []ledger.TradeEvent{
		event(1, "AAPL", ledger.SideBuy, "10", "2024-01-10"),
		event(2, "BTC", ledger.SideBuy, "1", "2024-01-10"),
	}
	cash := []ledger.CashEntry{cashEntry(1, "1000", "2024-01-01")}

	prices := newFakePrices()
	prices.set("AAPL", "2024-01-15", "100")
	prices.set("BTC", "2024-01-15", "40000")
	prices.set("AAPL", "2024-01-20", "105")
	// BTC has no point on 2024-01-20

	series, err := Reconstruct(events, prices, cash, nil)
	require.NoError(t, err)
	require.Len(t, series.Points, 2)

	// Gap day: BTC contributes zero, the point still lands
	assert.Equal(t, "42000", series.Points[0].Value.String())
	assert.Equal(t, "2050", series.Points[1].Value.String())

	require.Len(t, series.CoverageGaps, 1)
	assert.Equal(t, CoverageGap{Date: "2024-01-20", Ticker: "BTC"}, series.CoverageGaps[0])
}

func TestReconstruct_DateAxisIsUnionOfFeedDates(t *testing.T) {
	events := []ledger.TradeEvent{
		event(1, "AAPL", ledger.SideBuy, "1", "2024-01-01"),
		event(2, "BTC", ledger.SideBuy, "1", "2024-01-01"),
	}
	cash := []ledger.CashEntry{cashEntry(1, "100", "2024-01-01")}

	prices := newFakePrices()
	prices.set("AAPL", "2024-01-10", "100")
	prices.set("BTC", "2024-01-12", "40000")

	series, err := Reconstruct(events, prices, cash, nil)
	require.NoError(t, err)
	require.Len(t, series.Points, 2)
	assert.Equal(t, "2024-01-10", series.Points[0].Date)
	assert.Equal(t, "2024-01-12", series.Points[1].Date)

	// Each single-ticker date carries a gap for the other ticker
	assert.Len(t, series.CoverageGaps, 2)
}

func TestReconstruct_SoldPositionStopsContributing(t *testing.T) {
	events := []ledger.TradeEvent{
		event(1, "AAPL", ledger.SideBuy, "10", "2024-01-05"),
		event(2, "AAPL", ledger.SideSell, "10", "2024-01-16"),
	}
	cash := []ledger.CashEntry{
		cashEntry(1, "1000", "2024-01-01"),
		cashEntry(2, "-1000", "2024-01-05"),
		cashEntry(3, "1200", "2024-01-16"), // sale proceeds
	}

	prices := newFakePrices()
	prices.set("AAPL", "2024-01-10", "110")
	prices.set("AAPL", "2024-01-20", "130")

	series, err := Reconstruct(events, prices, cash, nil)
	require.NoError(t, err)
	require.Len(t, series.Points, 2)

	// Held on the 10th: 10 * 110 + 0 cash
	assert.Equal(t, "1100", series.Points[0].Value.String())
	// Sold by the 20th: cash only
	assert.Equal(t, "1200", series.Points[1].Value.String())

	// No gap for a date where nothing was held
	assert.Empty(t, series.CoverageGaps)
}

func TestReconstruct_DateRangeClampsAxis(t *testing.T) {
	events := []ledger.TradeEvent{
		event(1, "AAPL", ledger.SideBuy, "1", "2024-01-01"),
	}
	cash := []ledger.CashEntry{cashEntry(1, "100", "2024-01-01")}

	prices := newFakePrices()
	prices.set("AAPL", "2024-01-10", "100")
	prices.set("AAPL", "2024-02-10", "110")
	prices.set("AAPL", "2024-03-10", "120")

	series, err := Reconstruct(events, prices, cash, &DateRange{Start: "2024-02-01", End: "2024-02-28"})
	require.NoError(t, err)
	require.Len(t, series.Points, 1)
	assert.Equal(t, "2024-02-10", series.Points[0].Date)
}

func TestReconstruct_NoEventsYieldsEmptySeries(t *testing.T) {
	prices := newFakePrices()
	prices.set("AAPL", "2024-01-10", "100")

	series, err := Reconstruct(nil, prices, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, series.Points)
	assert.Empty(t, series.CoverageGaps)
}

func TestReconstruct_NoPriceDataYieldsEmptySeries(t *testing.T) {
	events := []ledger.TradeEvent{
		event(1, "AAPL", ledger.SideBuy, "1", "2024-01-01"),
	}

	series, err := Reconstruct(events, newFakePrices(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, series.Points)
}

func TestReconstruct_NonPositiveTotalsOmitted(t *testing.T) {
	events := []ledger.TradeEvent{
		event(1, "AAPL", ledger.SideBuy, "10", "2024-01-05"),
	}
	// Borrowed the whole cost: assets cancel against negative cash
	cash := []ledger.CashEntry{cashEntry(1, "-1000", "2024-01-05")}

	prices := newFakePrices()
	prices.set("AAPL", "2024-01-10", "100")
	prices.set("AAPL", "2024-01-20", "110")

	series, err := Reconstruct(events, prices, cash, nil)
	require.NoError(t, err)

	// 10*100 - 1000 = 0 is dropped; 10*110 - 1000 = 100 survives
	require.Len(t, series.Points, 1)
	assert.Equal(t, "2024-01-20", series.Points[0].Date)
	assert.Equal(t, "100", series.Points[0].Value.String())
}
