package ledger

import (
	"sort"

	"github.com/shopspring/decimal"
)

// LotBook is the in-memory index of currently open lots per ticker, kept in
// FIFO order (acquired_on ascending, insert sequence as tie-break). It only
// reflects present holdings; historical questions go through replay.
type LotBook struct {
	lots map[string][]*Lot
}

// NewLotBook creates an empty lot book
func NewLotBook() *LotBook {
	return &LotBook{lots: make(map[string][]*Lot)}
}

// Load builds a lot book from stored open lots
func Load(openLots []Lot) *LotBook {
	book := NewLotBook()
	for i := range openLots {
		lot := openLots[i]
		book.Add(&lot)
	}
	return book
}

// Add inserts an open lot, keeping FIFO order for its ticker
func (b *LotBook) Add(lot *Lot) {
	lots := append(b.lots[lot.Ticker], lot)
	sort.SliceStable(lots, func(i, j int) bool {
		if lots[i].AcquiredOn != lots[j].AcquiredOn {
			return lots[i].AcquiredOn < lots[j].AcquiredOn
		}
		return lots[i].Seq < lots[j].Seq
	})
	b.lots[lot.Ticker] = lots
}

// OpenLots returns copies of the current open lots for a ticker, oldest
// first. An unknown ticker yields an empty slice, not an error.
func (b *LotBook) OpenLots(ticker string) []Lot {
	lots := make([]Lot, 0, len(b.lots[ticker]))
	for _, lot := range b.lots[ticker] {
		lots = append(lots, *lot)
	}
	return lots
}

// Tickers returns every ticker with at least one open lot
func (b *LotBook) Tickers() []string {
	tickers := make([]string, 0, len(b.lots))
	for ticker, lots := range b.lots {
		if len(lots) > 0 {
			tickers = append(tickers, ticker)
		}
	}
	sort.Strings(tickers)
	return tickers
}

// TotalQuantity returns the summed quantity across open lots for a ticker
func (b *LotBook) TotalQuantity(ticker string) decimal.Decimal {
	total := decimal.Zero
	for _, lot := range b.lots[ticker] {
		total = total.Add(lot.Quantity)
	}
	return total
}

// AverageCostBasis returns sum(quantity * unit_cost) / total_quantity.
// Callers must check TotalQuantity first; an empty position is a
// precondition violation reported as ErrEmptyPosition.
func (b *LotBook) AverageCostBasis(ticker string) (decimal.Decimal, error) {
	total := b.TotalQuantity(ticker)
	if total.IsZero() {
		return decimal.Zero, ErrEmptyPosition
	}

	cost := decimal.Zero
	for _, lot := range b.lots[ticker] {
		cost = cost.Add(lot.Quantity.Mul(lot.UnitCost))
	}
	return cost.Div(total), nil
}

// consumption is one lot's contribution to a planned sell
type consumption struct {
	lot      *Lot
	quantity decimal.Decimal
	full     bool
}

// planConsumption computes which lots a sell would consume, oldest first,
// without mutating anything. The caller is responsible for having checked
// TotalQuantity beforehand.
func (b *LotBook) planConsumption(ticker string, quantity decimal.Decimal) []consumption {
	var plan []consumption
	remaining := quantity

	for _, lot := range b.lots[ticker] {
		if !remaining.IsPositive() {
			break
		}
		if lot.Quantity.LessThanOrEqual(remaining) {
			plan = append(plan, consumption{lot: lot, quantity: lot.Quantity, full: true})
			remaining = remaining.Sub(lot.Quantity)
		} else {
			plan = append(plan, consumption{lot: lot, quantity: remaining})
			remaining = decimal.Zero
		}
	}
	return plan
}

// applyPlan mutates the book according to a consumption plan. Called only
// after the matching ledger write has committed.
func (b *LotBook) applyPlan(ticker string, plan []consumption) {
	consumed := make(map[string]consumption, len(plan))
	for _, c := range plan {
		consumed[c.lot.ID] = c
	}

	remaining := b.lots[ticker][:0]
	for _, lot := range b.lots[ticker] {
		c, ok := consumed[lot.ID]
		if !ok {
			remaining = append(remaining, lot)
			continue
		}
		if c.full {
			continue // fully consumed lots are removed, never zeroed
		}
		lot.Quantity = lot.Quantity.Sub(c.quantity)
		remaining = append(remaining, lot)
	}

	if len(remaining) == 0 {
		delete(b.lots, ticker)
		return
	}
	b.lots[ticker] = remaining
}
