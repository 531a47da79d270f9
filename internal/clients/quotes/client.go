// Package quotes fetches daily close prices from the external quote feed.
// The feed is an imperfect collaborator: it may have no data for a ticker,
// holes in its history, or be unreachable. Callers treat all of that as
// sparse coverage, not failure of the ledger.
package quotes

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/prismapp/prism/internal/modules/marketdata"
)

// Client is a daily-close quote feed client
type Client struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a new quote feed client
func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log.With().Str("client", "quotes").Logger(),
	}
}

type dailyClose struct {
	Date  string          `json:"date"`
	Close decimal.Decimal `json:"close"`
}

type dailyResponse struct {
	Symbol string       `json:"symbol"`
	Prices []dailyClose `json:"prices"`
}

// GetDailyCloses fetches close prices for a ticker between two dates
// inclusive. An empty result is normal for tickers the feed does not know.
func (c *Client) GetDailyCloses(ticker, start, end string) ([]marketdata.PricePoint, error) {
	endpoint := fmt.Sprintf("%s/v1/daily?%s", c.baseURL, url.Values{
		"symbol": {ticker},
		"start":  {start},
		"end":    {end},
	}.Encode())

	resp, err := c.client.Get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("quote feed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		c.log.Debug().Str("ticker", ticker).Msg("Quote feed has no data for ticker")
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quote feed returned status %d for %s", resp.StatusCode, ticker)
	}

	var payload dailyResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode quote feed response: %w", err)
	}

	points := make([]marketdata.PricePoint, 0, len(payload.Prices))
	for _, p := range payload.Prices {
		if _, err := time.Parse("2006-01-02", p.Date); err != nil {
			c.log.Warn().Str("ticker", ticker).Str("date", p.Date).Msg("Skipping malformed feed date")
			continue
		}
		if !p.Close.IsPositive() {
			continue
		}
		points = append(points, marketdata.PricePoint{Date: p.Date, Price: p.Close})
	}

	return points, nil
}
