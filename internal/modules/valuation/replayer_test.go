package valuation

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prismapp/prism/internal/modules/ledger"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func event(seq int64, ticker string, side ledger.TradeSide, qty, date string) ledger.TradeEvent {
	return ledger.TradeEvent{
		Seq:        seq,
		ID:         ticker + "-" + date,
		Ticker:     ticker,
		Side:       side,
		Quantity:   d(qty),
		UnitPrice:  d("100"),
		OccurredOn: date,
		AssetClass: ledger.AssetStock,
	}
}

func TestHoldingsAt_FoldsHistoryUpToDate(t *testing.T) {
	events := []ledger.TradeEvent{
		event(1, "AAPL", ledger.SideBuy, "10", "2024-01-10"),
		event(2, "AAPL", ledger.SideSell, "4", "2024-02-01"),
		event(3, "BTC", ledger.SideBuy, "0.5", "2024-02-15"),
	}

	holdings := HoldingsAt(events, "2024-02-10")
	require.Len(t, holdings, 1)
	assert.Equal(t, "6", holdings["AAPL"].String())

	holdings = HoldingsAt(events, "2024-03-01")
	require.Len(t, holdings, 2)
	assert.Equal(t, "0.5", holdings["BTC"].String())
}

func TestHoldingsAt_BeforeFirstEventIsEmpty(t *testing.T) {
	events := []ledger.TradeEvent{
		event(1, "AAPL", ledger.SideBuy, "10", "2024-01-10"),
	}

	assert.Empty(t, HoldingsAt(events, "2024-01-09"))
}

func TestHoldingsAt_FullySoldTickerOmitted(t *testing.T) {
	events := []ledger.TradeEvent{
		event(1, "AAPL", ledger.SideBuy, "10", "2024-01-10"),
		event(2, "AAPL", ledger.SideSell, "10", "2024-02-01"),
	}

	assert.Empty(t, HoldingsAt(events, "2024-02-01"))
}

func TestHoldingsAt_UnorderedInputHandled(t *testing.T) {
	// Events arrive shuffled; the fold must sort before applying
	events := []ledger.TradeEvent{
		event(3, "AAPL", ledger.SideBuy, "5", "2024-03-01"),
		event(1, "AAPL", ledger.SideBuy, "10", "2024-01-10"),
		event(2, "AAPL", ledger.SideSell, "4", "2024-02-01"),
	}

	holdings := HoldingsAt(events, "2024-03-01")
	assert.Equal(t, "11", holdings["AAPL"].String())
}

func TestHoldingsAt_SameDayOrderedBySeq(t *testing.T) {
	// Same-day buy then full sell: net zero when applied in write order
	events := []ledger.TradeEvent{
		event(2, "AAPL", ledger.SideSell, "10", "2024-01-10"),
		event(1, "AAPL", ledger.SideBuy, "10", "2024-01-10"),
	}

	assert.Empty(t, HoldingsAt(events, "2024-01-10"))
}

func TestHoldingsAt_Idempotent(t *testing.T) {
	events := []ledger.TradeEvent{
		event(1, "AAPL", ledger.SideBuy, "10", "2024-01-10"),
		event(2, "AAPL", ledger.SideSell, "4", "2024-02-01"),
	}

	first := HoldingsAt(events, "2024-02-10")
	second := HoldingsAt(events, "2024-02-10")
	assert.Equal(t, first, second)
}

func TestHoldingsSweep_MatchesPerDateReplay(t *testing.T) {
	events := []ledger.TradeEvent{
		event(1, "AAPL", ledger.SideBuy, "10", "2024-01-10"),
		event(2, "BTC", ledger.SideBuy, "1", "2024-01-20"),
		event(3, "AAPL", ledger.SideSell, "10", "2024-02-01"),
		event(4, "BTC", ledger.SideSell, "0.25", "2024-02-15"),
	}
	dates := []string{"2024-01-05", "2024-01-15", "2024-01-25", "2024-02-10", "2024-03-01"}

	swept := HoldingsSweep(events, dates)
	require.Len(t, swept, len(dates))

	for i, date := range dates {
		assert.Equal(t, HoldingsAt(events, date), swept[i], "mismatch at %s", date)
	}
}

func TestHoldingsSweep_EmptyEvents(t *testing.T) {
	swept := HoldingsSweep(nil, []string{"2024-01-01", "2024-01-02"})
	require.Len(t, swept, 2)
	assert.Empty(t, swept[0])
	assert.Empty(t, swept[1])
}
