package ledger

import (
	"github.com/shopspring/decimal"
)

// TradeSide identifies the direction of a trade
type TradeSide string

const (
	SideBuy  TradeSide = "buy"
	SideSell TradeSide = "sell"
)

// CashReason identifies why a cash entry was recorded
type CashReason string

const (
	ReasonBuy        CashReason = "buy"
	ReasonSell       CashReason = "sell"
	ReasonAdjustment CashReason = "adjustment"
)

// AssetClass tags a lot for reporting. It plays no role in accounting.
type AssetClass string

const (
	AssetCrypto AssetClass = "crypto"
	AssetStock  AssetClass = "stock"
	AssetBond   AssetClass = "bond"
)

// ValidAssetClass reports whether the given tag is one of the known classes.
func ValidAssetClass(c AssetClass) bool {
	switch c {
	case AssetCrypto, AssetStock, AssetBond:
		return true
	}
	return false
}

// Lot is one purchase tranche of an asset. Quantity only ever decreases
// (partial sells); a fully consumed lot is deleted, never stored at zero.
type Lot struct {
	ID         string          `json:"id"`
	Seq        int64           `json:"seq,omitempty"` // assigned at insert, FIFO tie-break for same-day buys
	Ticker     string          `json:"ticker"`
	Quantity   decimal.Decimal `json:"quantity"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
	AcquiredOn string          `json:"acquired_on"` // YYYY-MM-DD
	AssetClass AssetClass      `json:"asset_class"`
}

// TradeEvent is the immutable record of a completed buy or sell.
// Events are append-only: corrections are new offsetting events.
type TradeEvent struct {
	ID               string           `json:"id"`
	Seq              int64            `json:"seq,omitempty"` // monotonic, assigned at write time; replay tie-break
	Ticker           string           `json:"ticker"`
	Side             TradeSide        `json:"side"`
	Quantity         decimal.Decimal  `json:"quantity"`
	UnitPrice        decimal.Decimal  `json:"unit_price"`
	OccurredOn       string           `json:"occurred_on"` // YYYY-MM-DD
	RealizedGainLoss *decimal.Decimal `json:"realized_gain_loss,omitempty"` // sell only
	AssetClass       AssetClass       `json:"asset_class"`
}

// CashEntry is one signed delta to the accounting-currency cash balance.
type CashEntry struct {
	ID             string          `json:"id"`
	Seq            int64           `json:"seq,omitempty"`
	Amount         decimal.Decimal `json:"amount"` // negative for outflow
	OccurredOn     string          `json:"occurred_on"`
	Reason         CashReason      `json:"reason"`
	RelatedTradeID *string         `json:"related_trade_id,omitempty"`
	Note           string          `json:"note,omitempty"`
}

// LotMutation describes the effect of a sell on one open lot.
type LotMutation struct {
	LotID       string
	NewQuantity decimal.Decimal // ignored when Delete is set
	Delete      bool
}

// BuyResult reports a completed buy
type BuyResult struct {
	TradeID   string          `json:"trade_id"`
	LotID     string          `json:"lot_id"`
	TotalCost decimal.Decimal `json:"total_cost"`
}

// SellResult reports a completed sell. CostBasis is true FIFO cost of the
// consumed lot portions, not the average cost across the position.
type SellResult struct {
	TradeID           string          `json:"trade_id"`
	SaleProceeds      decimal.Decimal `json:"sale_proceeds"`
	CostBasis         decimal.Decimal `json:"cost_basis"`
	RealizedGainLoss  decimal.Decimal `json:"realized_gain_loss"`
	GainLossPercent   decimal.Decimal `json:"gain_loss_percent"`
	RemainingQuantity decimal.Decimal `json:"remaining_quantity"`
}
