// Package valuation reconstructs historical portfolio state from the
// append-only trade ledger. Holdings come from replaying events, never from
// the live lot book: the lot book only knows present lots and cannot answer
// what was held on a past date once those lots have been sold down.
package valuation

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/prismapp/prism/internal/modules/ledger"
)

// Holdings maps ticker to held quantity. Tickers with zero or negative
// running totals are omitted.
type Holdings map[string]decimal.Decimal

// HoldingsAt folds the event history up to and including asOf and returns
// the quantities held. Pure function: no I/O, no hidden state. Events are
// ordered by (occurred_on, seq) before folding, so same-day buys and sells
// net in write order regardless of input order.
func HoldingsAt(events []ledger.TradeEvent, asOf string) Holdings {
	sorted := sortEvents(events)

	running := make(map[string]decimal.Decimal)
	for _, e := range sorted {
		if e.OccurredOn > asOf {
			break
		}
		applyEvent(running, e)
	}
	return snapshotHoldings(running)
}

// HoldingsSweep computes holdings for many ascending dates in a single pass
// over the history, instead of re-folding from scratch per date. The result
// is indexed like dates.
func HoldingsSweep(events []ledger.TradeEvent, dates []string) []Holdings {
	sorted := sortEvents(events)

	result := make([]Holdings, len(dates))
	running := make(map[string]decimal.Decimal)

	i := 0
	for di, date := range dates {
		for i < len(sorted) && sorted[i].OccurredOn <= date {
			applyEvent(running, sorted[i])
			i++
		}
		result[di] = snapshotHoldings(running)
	}
	return result
}

func sortEvents(events []ledger.TradeEvent) []ledger.TradeEvent {
	sorted := make([]ledger.TradeEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].OccurredOn != sorted[j].OccurredOn {
			return sorted[i].OccurredOn < sorted[j].OccurredOn
		}
		return sorted[i].Seq < sorted[j].Seq
	})
	return sorted
}

func applyEvent(running map[string]decimal.Decimal, e ledger.TradeEvent) {
	switch e.Side {
	case ledger.SideBuy:
		running[e.Ticker] = running[e.Ticker].Add(e.Quantity)
	case ledger.SideSell:
		running[e.Ticker] = running[e.Ticker].Sub(e.Quantity)
	}
}

func snapshotHoldings(running map[string]decimal.Decimal) Holdings {
	holdings := make(Holdings)
	for ticker, qty := range running {
		if qty.IsPositive() {
			holdings[ticker] = qty
		}
	}
	return holdings
}
