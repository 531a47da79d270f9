package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// TradeProcessor is the only writer of lot, trade and cash state. Each
// operation runs Validating -> Mutating -> Persisting: validation failures
// abort with no side effects, and the lot book is only touched after the
// store has committed the whole trade.
//
// The processor itself is not safe for concurrent use; Service serializes
// calls with a single writer lock.
type TradeProcessor struct {
	book  *LotBook
	store Store
	log   zerolog.Logger
}

// NewTradeProcessor creates a processor over an already-loaded lot book
func NewTradeProcessor(book *LotBook, store Store, log zerolog.Logger) *TradeProcessor {
	return &TradeProcessor{
		book:  book,
		store: store,
		log:   log.With().Str("component", "trade_processor").Logger(),
	}
}

// Book exposes the lot book for read-side queries
func (p *TradeProcessor) Book() *LotBook {
	return p.book
}

// Buy records a purchase: one new lot (never merged into existing lots, so
// cost-basis granularity is preserved), one trade event and one cash
// outflow. No cash-sufficiency check is made; the balance may go negative.
func (p *TradeProcessor) Buy(ticker string, quantity, unitPrice decimal.Decimal, date string, assetClass AssetClass) (*BuyResult, error) {
	ticker, err := validateTrade(ticker, quantity, unitPrice, date)
	if err != nil {
		return nil, err
	}
	if !ValidAssetClass(assetClass) {
		return nil, &ValidationError{Field: "asset_class", Reason: fmt.Sprintf("unknown class %q", assetClass)}
	}

	totalCost := quantity.Mul(unitPrice)
	tradeID := uuid.New().String()

	trade := &TradeEvent{
		ID:         tradeID,
		Ticker:     ticker,
		Side:       SideBuy,
		Quantity:   quantity,
		UnitPrice:  unitPrice,
		OccurredOn: date,
		AssetClass: assetClass,
	}
	lot := &Lot{
		ID:         uuid.New().String(),
		Ticker:     ticker,
		Quantity:   quantity,
		UnitCost:   unitPrice,
		AcquiredOn: date,
		AssetClass: assetClass,
	}
	cash := &CashEntry{
		ID:             uuid.New().String(),
		Amount:         totalCost.Neg(),
		OccurredOn:     date,
		Reason:         ReasonBuy,
		RelatedTradeID: &tradeID,
	}

	if err := p.store.RecordBuy(trade, lot, cash); err != nil {
		return nil, err
	}
	p.book.Add(lot)

	return &BuyResult{
		TradeID:   trade.ID,
		LotID:     lot.ID,
		TotalCost: totalCost,
	}, nil
}

// Sell consumes open lots oldest-first (FIFO). The insufficient-quantity
// check happens before any mutation, so a rejected sell is all-or-nothing.
// Cost basis is the true FIFO cost of the consumed portions.
func (p *TradeProcessor) Sell(ticker string, quantity, unitPrice decimal.Decimal, date string) (*SellResult, error) {
	ticker, err := validateTrade(ticker, quantity, unitPrice, date)
	if err != nil {
		return nil, err
	}

	held := p.book.TotalQuantity(ticker)
	if quantity.GreaterThan(held) {
		return nil, fmt.Errorf("%w: available %s, requested %s",
			ErrInsufficientQuantity, held.String(), quantity.String())
	}

	plan := p.book.planConsumption(ticker, quantity)

	costBasis := decimal.Zero
	for _, c := range plan {
		costBasis = costBasis.Add(c.quantity.Mul(c.lot.UnitCost))
	}
	proceeds := quantity.Mul(unitPrice)
	gainLoss := proceeds.Sub(costBasis)

	gainLossPercent := decimal.Zero
	if costBasis.IsPositive() {
		gainLossPercent = gainLoss.Div(costBasis).Mul(decimal.NewFromInt(100))
	}

	tradeID := uuid.New().String()
	trade := &TradeEvent{
		ID:               tradeID,
		Ticker:           ticker,
		Side:             SideSell,
		Quantity:         quantity,
		UnitPrice:        unitPrice,
		OccurredOn:       date,
		RealizedGainLoss: &gainLoss,
		AssetClass:       plan[0].lot.AssetClass,
	}
	cash := &CashEntry{
		ID:             uuid.New().String(),
		Amount:         proceeds,
		OccurredOn:     date,
		Reason:         ReasonSell,
		RelatedTradeID: &tradeID,
	}

	mutations := make([]LotMutation, 0, len(plan))
	for _, c := range plan {
		if c.full {
			mutations = append(mutations, LotMutation{LotID: c.lot.ID, Delete: true})
		} else {
			mutations = append(mutations, LotMutation{
				LotID:       c.lot.ID,
				NewQuantity: c.lot.Quantity.Sub(c.quantity),
			})
		}
	}

	if err := p.store.RecordSell(trade, cash, mutations); err != nil {
		return nil, err
	}
	p.book.applyPlan(ticker, plan)

	return &SellResult{
		TradeID:           trade.ID,
		SaleProceeds:      proceeds,
		CostBasis:         costBasis,
		RealizedGainLoss:  gainLoss,
		GainLossPercent:   gainLossPercent,
		RemainingQuantity: held.Sub(quantity),
	}, nil
}

// validateTrade normalizes the ticker and rejects bad input before any
// state change
func validateTrade(ticker string, quantity, unitPrice decimal.Decimal, date string) (string, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return "", &ValidationError{Field: "ticker", Reason: "must not be empty"}
	}
	if !quantity.IsPositive() {
		return "", &ValidationError{Field: "quantity", Reason: "must be positive"}
	}
	if !unitPrice.IsPositive() {
		return "", &ValidationError{Field: "unit_price", Reason: "must be positive"}
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return "", &ValidationError{Field: "date", Reason: "must be YYYY-MM-DD"}
	}
	return ticker, nil
}
