package scheduler

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prismapp/prism/internal/modules/marketdata"
)

type fakeFeed struct {
	closes map[string][]marketdata.PricePoint
	fail   map[string]bool
	calls  []string
}

func (f *fakeFeed) GetDailyCloses(ticker, start, end string) ([]marketdata.PricePoint, error) {
	f.calls = append(f.calls, ticker)
	if f.fail[ticker] {
		return nil, errors.New("feed unavailable")
	}
	return f.closes[ticker], nil
}

type fakeTickers struct {
	held []string
}

func (f *fakeTickers) HeldTickers() []string { return f.held }

func testPriceStore(t *testing.T) *marketdata.Repository {
	t.Helper()
	repo, err := marketdata.NewRepository(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	return repo
}

func TestPriceSyncJob_StoresFetchedCloses(t *testing.T) {
	prices := testPriceStore(t)
	feed := &fakeFeed{
		closes: map[string][]marketdata.PricePoint{
			"AAPL": {{Date: "2024-01-15", Price: decimal.RequireFromString("110")}},
		},
	}

	job := NewPriceSyncJob(feed, &fakeTickers{held: []string{"AAPL"}}, prices, 30, zerolog.Nop())
	require.NoError(t, job.Run())

	price, ok, err := prices.PriceAt("AAPL", "2024-01-15")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "110", price.String())
}

func TestPriceSyncJob_NoHeldTickersIsNoop(t *testing.T) {
	feed := &fakeFeed{}
	job := NewPriceSyncJob(feed, &fakeTickers{}, testPriceStore(t), 30, zerolog.Nop())

	require.NoError(t, job.Run())
	assert.Empty(t, feed.calls)
}

func TestPriceSyncJob_OneFailureDoesNotStopOthers(t *testing.T) {
	prices := testPriceStore(t)
	feed := &fakeFeed{
		closes: map[string][]marketdata.PricePoint{
			"BTC": {{Date: "2024-01-15", Price: decimal.RequireFromString("40000")}},
		},
		fail: map[string]bool{"AAPL": true},
	}

	job := NewPriceSyncJob(feed, &fakeTickers{held: []string{"AAPL", "BTC"}}, prices, 30, zerolog.Nop())
	require.NoError(t, job.Run())

	assert.Equal(t, []string{"AAPL", "BTC"}, feed.calls)
	_, ok, err := prices.PriceAt("BTC", "2024-01-15")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPriceSyncJob_AllFailuresReported(t *testing.T) {
	feed := &fakeFeed{fail: map[string]bool{"AAPL": true, "BTC": true}}
	job := NewPriceSyncJob(feed, &fakeTickers{held: []string{"AAPL", "BTC"}}, testPriceStore(t), 30, zerolog.Nop())

	assert.Error(t, job.Run())
}
