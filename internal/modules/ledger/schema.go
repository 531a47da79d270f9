package ledger

import "database/sql"

// LedgerSchema defines the append-only ledger tables. Decimal values are
// stored as TEXT to avoid float drift. The seq columns are the monotonic
// write-order sequence used as the replay tie-break for same-day events.
const LedgerSchema = `
CREATE TABLE IF NOT EXISTS trades (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT UNIQUE NOT NULL,
    ticker TEXT NOT NULL,
    side TEXT NOT NULL CHECK(side IN ('buy', 'sell')),
    quantity TEXT NOT NULL,
    unit_price TEXT NOT NULL,
    occurred_on TEXT NOT NULL,
    realized_gain_loss TEXT,
    asset_class TEXT NOT NULL,
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS lots (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT UNIQUE NOT NULL,
    ticker TEXT NOT NULL,
    quantity TEXT NOT NULL,
    unit_cost TEXT NOT NULL,
    acquired_on TEXT NOT NULL,
    asset_class TEXT NOT NULL,
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS cash_entries (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT UNIQUE NOT NULL,
    amount TEXT NOT NULL,
    occurred_on TEXT NOT NULL,
    reason TEXT NOT NULL CHECK(reason IN ('buy', 'sell', 'adjustment')),
    related_trade_id TEXT,
    note TEXT,
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_ticker ON trades(ticker);
CREATE INDEX IF NOT EXISTS idx_trades_occurred_on ON trades(occurred_on);
CREATE INDEX IF NOT EXISTS idx_lots_ticker ON lots(ticker);
CREATE INDEX IF NOT EXISTS idx_cash_occurred_on ON cash_entries(occurred_on);
`

// InitSchema ensures the ledger tables exist
func InitSchema(db *sql.DB) error {
	_, err := db.Exec(LedgerSchema)
	return err
}
