package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeLot(id string, seq int64, ticker, qty, cost, acquired string) *Lot {
	return &Lot{
		ID:         id,
		Seq:        seq,
		Ticker:     ticker,
		Quantity:   decimal.RequireFromString(qty),
		UnitCost:   decimal.RequireFromString(cost),
		AcquiredOn: acquired,
		AssetClass: AssetStock,
	}
}

func TestLotBook_FIFOOrder(t *testing.T) {
	book := NewLotBook()
	book.Add(makeLot("c", 3, "AAPL", "5", "120", "2024-03-01"))
	book.Add(makeLot("a", 1, "AAPL", "10", "100", "2024-01-15"))
	book.Add(makeLot("b", 2, "AAPL", "8", "110", "2024-02-10"))

	lots := book.OpenLots("AAPL")
	require.Len(t, lots, 3)
	assert.Equal(t, "a", lots[0].ID)
	assert.Equal(t, "b", lots[1].ID)
	assert.Equal(t, "c", lots[2].ID)
}

func TestLotBook_SameDayTieBreakBySeq(t *testing.T) {
	book := NewLotBook()
	book.Add(makeLot("second", 7, "AAPL", "5", "101", "2024-01-15"))
	book.Add(makeLot("first", 4, "AAPL", "5", "100", "2024-01-15"))

	lots := book.OpenLots("AAPL")
	require.Len(t, lots, 2)
	assert.Equal(t, "first", lots[0].ID)
	assert.Equal(t, "second", lots[1].ID)
}

func TestLotBook_TotalQuantity(t *testing.T) {
	book := NewLotBook()
	book.Add(makeLot("a", 1, "BTC", "0.5", "40000", "2024-01-01"))
	book.Add(makeLot("b", 2, "BTC", "0.25", "42000", "2024-01-02"))

	assert.Equal(t, "0.75", book.TotalQuantity("BTC").String())
	assert.True(t, book.TotalQuantity("UNKNOWN").IsZero())
}

func TestLotBook_AverageCostBasis(t *testing.T) {
	book := NewLotBook()
	book.Add(makeLot("a", 1, "AAPL", "10", "100", "2024-01-01"))
	book.Add(makeLot("b", 2, "AAPL", "10", "200", "2024-01-02"))

	avg, err := book.AverageCostBasis("AAPL")
	require.NoError(t, err)
	assert.Equal(t, "150", avg.String())
}

func TestLotBook_AverageCostBasisEmptyPosition(t *testing.T) {
	book := NewLotBook()

	_, err := book.AverageCostBasis("AAPL")
	assert.ErrorIs(t, err, ErrEmptyPosition)
}

func TestLotBook_PlanConsumptionDoesNotMutate(t *testing.T) {
	book := NewLotBook()
	book.Add(makeLot("a", 1, "AAPL", "10", "100", "2024-01-01"))
	book.Add(makeLot("b", 2, "AAPL", "10", "110", "2024-01-02"))

	plan := book.planConsumption("AAPL", decimal.RequireFromString("15"))
	require.Len(t, plan, 2)
	assert.True(t, plan[0].full)
	assert.Equal(t, "10", plan[0].quantity.String())
	assert.False(t, plan[1].full)
	assert.Equal(t, "5", plan[1].quantity.String())

	// Planning must leave the book untouched
	assert.Equal(t, "20", book.TotalQuantity("AAPL").String())
	assert.Equal(t, "10", book.OpenLots("AAPL")[0].Quantity.String())
}

func TestLotBook_ApplyPlanPartialConsumption(t *testing.T) {
	book := NewLotBook()
	book.Add(makeLot("a", 1, "AAPL", "10", "100", "2024-01-01"))
	book.Add(makeLot("b", 2, "AAPL", "10", "110", "2024-01-02"))

	plan := book.planConsumption("AAPL", decimal.RequireFromString("15"))
	book.applyPlan("AAPL", plan)

	lots := book.OpenLots("AAPL")
	require.Len(t, lots, 1)
	assert.Equal(t, "b", lots[0].ID)
	assert.Equal(t, "5", lots[0].Quantity.String())
}

func TestLotBook_ApplyPlanFullConsumptionRemovesTicker(t *testing.T) {
	book := NewLotBook()
	book.Add(makeLot("a", 1, "AAPL", "10", "100", "2024-01-01"))

	plan := book.planConsumption("AAPL", decimal.RequireFromString("10"))
	book.applyPlan("AAPL", plan)

	assert.Empty(t, book.OpenLots("AAPL"))
	assert.Empty(t, book.Tickers())
}

func TestLoad_RebuildsBookFromStoredLots(t *testing.T) {
	stored := []Lot{
		*makeLot("b", 2, "AAPL", "5", "110", "2024-02-01"),
		*makeLot("a", 1, "AAPL", "10", "100", "2024-01-01"),
		*makeLot("c", 3, "BTC", "0.5", "40000", "2024-01-15"),
	}

	book := Load(stored)

	assert.Equal(t, []string{"AAPL", "BTC"}, book.Tickers())
	assert.Equal(t, "15", book.TotalQuantity("AAPL").String())
	assert.Equal(t, "a", book.OpenLots("AAPL")[0].ID)
}
