package ledger

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Store is the durable ledger contract consumed by the trade processor.
// Each Record* call is a single atomic write unit: either every row of the
// trade lands, or none does.
type Store interface {
	RecordBuy(trade *TradeEvent, lot *Lot, cash *CashEntry) error
	RecordSell(trade *TradeEvent, cash *CashEntry, mutations []LotMutation) error
	RecordCashEntry(entry *CashEntry) error
	ReadAllEvents(ticker string) ([]TradeEvent, error)
	ReadAllCash() ([]CashEntry, error)
	ReadLedgerSnapshot() ([]TradeEvent, []CashEntry, error)
	ReadOpenLots(ticker string) ([]Lot, error)
	ReadAllOpenLots() ([]Lot, error)
}

// querier is satisfied by both *sql.DB and *sql.Tx, so the scan helpers can
// serve plain reads and transactional snapshot reads alike
type querier interface {
	Query(query string, args ...interface{}) (*sql.Rows, error)
}

// Repository persists the append-only ledger in sqlite
type Repository struct {
	ledgerDB *sql.DB
	log      zerolog.Logger
}

// NewRepository creates a new ledger repository
func NewRepository(ledgerDB *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		ledgerDB: ledgerDB,
		log:      log.With().Str("repo", "ledger").Logger(),
	}
}

var _ Store = (*Repository)(nil)

// RecordBuy writes the trade event, the new lot and the cash outflow in one
// transaction. The assigned sequence numbers are written back to the models.
func (r *Repository) RecordBuy(trade *TradeEvent, lot *Lot, cash *CashEntry) error {
	tx, err := r.ledgerDB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin buy transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertTrade(tx, trade); err != nil {
		return err
	}

	now := time.Now().Format(time.RFC3339)
	res, err := tx.Exec(`
		INSERT INTO lots (id, ticker, quantity, unit_cost, acquired_on, asset_class, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		lot.ID, lot.Ticker, lot.Quantity.String(), lot.UnitCost.String(),
		lot.AcquiredOn, string(lot.AssetClass), now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert lot: %w", err)
	}
	if lot.Seq, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("failed to get lot seq: %w", err)
	}

	if err := insertCash(tx, cash); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit buy: %w", err)
	}

	r.log.Info().
		Str("ticker", trade.Ticker).
		Str("quantity", trade.Quantity.String()).
		Str("unit_price", trade.UnitPrice.String()).
		Msg("Buy recorded")

	return nil
}

// RecordSell writes the trade event, the cash inflow and every lot
// update/delete in one transaction.
func (r *Repository) RecordSell(trade *TradeEvent, cash *CashEntry, mutations []LotMutation) error {
	tx, err := r.ledgerDB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin sell transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertTrade(tx, trade); err != nil {
		return err
	}
	if err := insertCash(tx, cash); err != nil {
		return err
	}

	for _, m := range mutations {
		if m.Delete {
			if _, err := tx.Exec("DELETE FROM lots WHERE id = ?", m.LotID); err != nil {
				return fmt.Errorf("failed to delete lot %s: %w", m.LotID, err)
			}
			continue
		}
		if _, err := tx.Exec("UPDATE lots SET quantity = ? WHERE id = ?",
			m.NewQuantity.String(), m.LotID); err != nil {
			return fmt.Errorf("failed to update lot %s: %w", m.LotID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit sell: %w", err)
	}

	r.log.Info().
		Str("ticker", trade.Ticker).
		Str("quantity", trade.Quantity.String()).
		Int("lots_touched", len(mutations)).
		Msg("Sell recorded")

	return nil
}

// RecordCashEntry appends a standalone cash entry (manual adjustment)
func (r *Repository) RecordCashEntry(entry *CashEntry) error {
	tx, err := r.ledgerDB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin cash transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertCash(tx, entry); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cash entry: %w", err)
	}
	return nil
}

// ReadAllEvents returns trade events ascending by occurred_on, then by the
// write sequence. Pass an empty ticker for all tickers.
func (r *Repository) ReadAllEvents(ticker string) ([]TradeEvent, error) {
	return queryEvents(r.ledgerDB, ticker)
}

// ReadAllCash returns cash entries ascending by occurred_on, then sequence
func (r *Repository) ReadAllCash() ([]CashEntry, error) {
	return queryCash(r.ledgerDB)
}

// ReadLedgerSnapshot returns the trade events and cash entries from a single
// read transaction, so a concurrently committing trade is never observed
// half-applied across the two lists.
func (r *Repository) ReadLedgerSnapshot() ([]TradeEvent, []CashEntry, error) {
	tx, err := r.ledgerDB.Begin()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin snapshot read: %w", err)
	}
	defer tx.Rollback()

	events, err := queryEvents(tx, "")
	if err != nil {
		return nil, nil, err
	}
	cash, err := queryCash(tx)
	if err != nil {
		return nil, nil, err
	}
	return events, cash, nil
}

func queryEvents(q querier, ticker string) ([]TradeEvent, error) {
	query := `SELECT seq, id, ticker, side, quantity, unit_price, occurred_on, realized_gain_loss, asset_class
	          FROM trades`
	args := []interface{}{}
	if ticker != "" {
		query += " WHERE ticker = ?"
		args = append(args, ticker)
	}
	query += " ORDER BY occurred_on ASC, seq ASC"

	rows, err := q.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var events []TradeEvent
	for rows.Next() {
		var e TradeEvent
		var quantity, unitPrice string
		var gainLoss sql.NullString
		var side, assetClass string

		if err := rows.Scan(&e.Seq, &e.ID, &e.Ticker, &side, &quantity, &unitPrice,
			&e.OccurredOn, &gainLoss, &assetClass); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}

		e.Side = TradeSide(side)
		e.AssetClass = AssetClass(assetClass)
		if e.Quantity, err = decimal.NewFromString(quantity); err != nil {
			return nil, fmt.Errorf("corrupt trade quantity %q: %w", quantity, err)
		}
		if e.UnitPrice, err = decimal.NewFromString(unitPrice); err != nil {
			return nil, fmt.Errorf("corrupt trade price %q: %w", unitPrice, err)
		}
		if gainLoss.Valid {
			gl, err := decimal.NewFromString(gainLoss.String)
			if err != nil {
				return nil, fmt.Errorf("corrupt gain/loss %q: %w", gainLoss.String, err)
			}
			e.RealizedGainLoss = &gl
		}

		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trades: %w", err)
	}

	return events, nil
}

func queryCash(q querier) ([]CashEntry, error) {
	rows, err := q.Query(`
		SELECT seq, id, amount, occurred_on, reason, related_trade_id, note
		FROM cash_entries
		ORDER BY occurred_on ASC, seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cash entries: %w", err)
	}
	defer rows.Close()

	var entries []CashEntry
	for rows.Next() {
		var e CashEntry
		var amount, reason string
		var relatedTradeID, note sql.NullString

		if err := rows.Scan(&e.Seq, &e.ID, &amount, &e.OccurredOn, &reason, &relatedTradeID, &note); err != nil {
			return nil, fmt.Errorf("failed to scan cash entry: %w", err)
		}

		e.Reason = CashReason(reason)
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("corrupt cash amount %q: %w", amount, err)
		}
		if relatedTradeID.Valid {
			e.RelatedTradeID = &relatedTradeID.String
		}
		if note.Valid {
			e.Note = note.String
		}

		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cash entries: %w", err)
	}

	return entries, nil
}

// ReadOpenLots returns the open lots for a ticker in FIFO order
func (r *Repository) ReadOpenLots(ticker string) ([]Lot, error) {
	return r.readLots("WHERE ticker = ?", ticker)
}

// ReadAllOpenLots returns every open lot, used to boot the lot book
func (r *Repository) ReadAllOpenLots() ([]Lot, error) {
	return r.readLots("")
}

func (r *Repository) readLots(where string, args ...interface{}) ([]Lot, error) {
	query := `SELECT seq, id, ticker, quantity, unit_cost, acquired_on, asset_class FROM lots `
	query += where + " ORDER BY acquired_on ASC, seq ASC"

	rows, err := r.ledgerDB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query lots: %w", err)
	}
	defer rows.Close()

	var lots []Lot
	for rows.Next() {
		var lot Lot
		var quantity, unitCost, assetClass string

		if err := rows.Scan(&lot.Seq, &lot.ID, &lot.Ticker, &quantity, &unitCost,
			&lot.AcquiredOn, &assetClass); err != nil {
			return nil, fmt.Errorf("failed to scan lot: %w", err)
		}

		lot.AssetClass = AssetClass(assetClass)
		if lot.Quantity, err = decimal.NewFromString(quantity); err != nil {
			return nil, fmt.Errorf("corrupt lot quantity %q: %w", quantity, err)
		}
		if lot.UnitCost, err = decimal.NewFromString(unitCost); err != nil {
			return nil, fmt.Errorf("corrupt lot cost %q: %w", unitCost, err)
		}

		lots = append(lots, lot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lots: %w", err)
	}

	return lots, nil
}

// CashBalanceAsOf sums cash entries up to and including a date. Amounts are
// stored as TEXT and summed in decimal; a REAL sum in sqlite would lose
// precision on large amounts.
func (r *Repository) CashBalanceAsOf(date string) (decimal.Decimal, error) {
	entries, err := r.ReadAllCash()
	if err != nil {
		return decimal.Zero, err
	}
	balance := decimal.Zero
	for _, e := range entries {
		if e.OccurredOn <= date {
			balance = balance.Add(e.Amount)
		}
	}
	return balance, nil
}

func insertTrade(tx *sql.Tx, trade *TradeEvent) error {
	var gainLoss interface{}
	if trade.RealizedGainLoss != nil {
		gainLoss = trade.RealizedGainLoss.String()
	}

	res, err := tx.Exec(`
		INSERT INTO trades (id, ticker, side, quantity, unit_price, occurred_on, realized_gain_loss, asset_class, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		trade.ID, trade.Ticker, string(trade.Side), trade.Quantity.String(),
		trade.UnitPrice.String(), trade.OccurredOn, gainLoss,
		string(trade.AssetClass), time.Now().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert trade: %w", err)
	}
	if trade.Seq, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("failed to get trade seq: %w", err)
	}
	return nil
}

func insertCash(tx *sql.Tx, entry *CashEntry) error {
	var relatedTradeID interface{}
	if entry.RelatedTradeID != nil {
		relatedTradeID = *entry.RelatedTradeID
	}
	var note interface{}
	if entry.Note != "" {
		note = entry.Note
	}

	res, err := tx.Exec(`
		INSERT INTO cash_entries (id, amount, occurred_on, reason, related_trade_id, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Amount.String(), entry.OccurredOn, string(entry.Reason),
		relatedTradeID, note, time.Now().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert cash entry: %w", err)
	}
	if entry.Seq, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("failed to get cash seq: %w", err)
	}
	return nil
}
