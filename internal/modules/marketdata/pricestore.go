// Package marketdata stores sparse historical price points per ticker.
// Each ticker gets its own sqlite file under the history directory,
// mirroring how price history arrives from the feed: asset by asset, with
// very different densities (daily for crypto, trading days for stocks,
// monthly or worse for bonds). The store performs exact-date lookups only;
// interpolation is deliberately left to nobody.
package marketdata

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/mattn/go-sqlite3" // SQLite driver for history files
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const priceHistorySchema = `
CREATE TABLE IF NOT EXISTS price_history (
    date TEXT PRIMARY KEY,
    price TEXT NOT NULL
);
`

// PricePoint is one (date, price) observation for a ticker
type PricePoint struct {
	Date  string          `json:"date"` // YYYY-MM-DD
	Price decimal.Decimal `json:"price"`
}

// Repository provides access to historical price data
type Repository struct {
	historyDir string
	log        zerolog.Logger
}

// NewRepository creates a new price history accessor
func NewRepository(historyDir string, log zerolog.Logger) (*Repository, error) {
	if err := os.MkdirAll(historyDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	return &Repository{
		historyDir: historyDir,
		log:        log.With().Str("repo", "marketdata").Logger(),
	}, nil
}

// PriceAt returns the price for a ticker on an exact date. A missing file
// or missing row is a normal coverage gap, not an error.
func (r *Repository) PriceAt(ticker, date string) (decimal.Decimal, bool, error) {
	db, exists, err := r.openHistoryDB(ticker, false)
	if err != nil {
		return decimal.Zero, false, err
	}
	if !exists {
		return decimal.Zero, false, nil
	}
	defer db.Close()

	var price string
	err = db.QueryRow("SELECT price FROM price_history WHERE date = ?", date).Scan(&price)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("failed to query price: %w", err)
	}

	d, err := decimal.NewFromString(price)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("corrupt price %q for %s: %w", price, ticker, err)
	}
	return d, true, nil
}

// LatestPriceAsOf returns the most recent price at or before a date
func (r *Repository) LatestPriceAsOf(ticker, date string) (PricePoint, bool, error) {
	db, exists, err := r.openHistoryDB(ticker, false)
	if err != nil {
		return PricePoint{}, false, err
	}
	if !exists {
		return PricePoint{}, false, nil
	}
	defer db.Close()

	var point PricePoint
	var price string
	err = db.QueryRow(`
		SELECT date, price FROM price_history
		WHERE date <= ?
		ORDER BY date DESC LIMIT 1`, date).Scan(&point.Date, &price)
	if errors.Is(err, sql.ErrNoRows) {
		return PricePoint{}, false, nil
	}
	if err != nil {
		return PricePoint{}, false, fmt.Errorf("failed to query latest price: %w", err)
	}

	if point.Price, err = decimal.NewFromString(price); err != nil {
		return PricePoint{}, false, fmt.Errorf("corrupt price %q for %s: %w", price, ticker, err)
	}
	return point, true, nil
}

// KnownDates returns the sorted union of all dates with any price point
// across the given tickers. This is the sparse axis valuation walks.
func (r *Repository) KnownDates(tickers []string) ([]string, error) {
	seen := make(map[string]struct{})

	for _, ticker := range tickers {
		db, exists, err := r.openHistoryDB(ticker, false)
		if err != nil {
			return nil, err
		}
		if !exists {
			continue
		}

		rows, err := db.Query("SELECT date FROM price_history")
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to query dates for %s: %w", ticker, err)
		}
		for rows.Next() {
			var date string
			if err := rows.Scan(&date); err != nil {
				rows.Close()
				db.Close()
				return nil, fmt.Errorf("failed to scan date: %w", err)
			}
			seen[date] = struct{}{}
		}
		err = rows.Err()
		rows.Close()
		db.Close()
		if err != nil {
			return nil, fmt.Errorf("error iterating dates for %s: %w", ticker, err)
		}
	}

	dates := make([]string, 0, len(seen))
	for date := range seen {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	return dates, nil
}

// UpsertPrices writes price points for a ticker, replacing same-date rows
func (r *Repository) UpsertPrices(ticker string, points []PricePoint) error {
	if len(points) == 0 {
		return nil
	}

	db, _, err := r.openHistoryDB(ticker, true)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin price upsert: %w", err)
	}
	defer tx.Rollback()

	for _, p := range points {
		if _, err := tx.Exec(
			"INSERT OR REPLACE INTO price_history (date, price) VALUES (?, ?)",
			p.Date, p.Price.String(),
		); err != nil {
			return fmt.Errorf("failed to upsert price for %s on %s: %w", ticker, p.Date, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit price upsert: %w", err)
	}

	r.log.Debug().
		Str("ticker", ticker).
		Int("points", len(points)).
		Msg("Price history updated")

	return nil
}

// openHistoryDB opens a ticker's history file. When create is false and the
// file does not exist, it reports exists=false instead of creating an empty
// database for every unknown ticker probed during valuation.
func (r *Repository) openHistoryDB(ticker string, create bool) (*sql.DB, bool, error) {
	path := r.historyPath(ticker)

	if !create {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, false, nil
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, false, fmt.Errorf("failed to open history db for %s: %w", ticker, err)
	}

	if _, err := db.Exec(priceHistorySchema); err != nil {
		db.Close()
		return nil, false, fmt.Errorf("failed to init history schema for %s: %w", ticker, err)
	}

	return db, true, nil
}

func (r *Repository) historyPath(ticker string) string {
	name := strings.ToUpper(strings.TrimSpace(ticker))
	return filepath.Join(r.historyDir, name+".db")
}
