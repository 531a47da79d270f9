package ledger

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Service is the write-path entry point. It owns the lot book, serializes
// buy/sell with a single writer lock (precondition checks and mutation must
// not interleave), and leaves reads lock-free against the store.
type Service struct {
	mu        sync.Mutex
	processor *TradeProcessor
	repo      *Repository
	log       zerolog.Logger
}

// NewService boots the lot book from the store and wires the processor
func NewService(repo *Repository, log zerolog.Logger) (*Service, error) {
	openLots, err := repo.ReadAllOpenLots()
	if err != nil {
		return nil, err
	}

	serviceLog := log.With().Str("service", "ledger").Logger()
	book := Load(openLots)

	return &Service{
		processor: NewTradeProcessor(book, repo, serviceLog),
		repo:      repo,
		log:       serviceLog,
	}, nil
}

// Buy records a purchase
func (s *Service) Buy(ticker string, quantity, unitPrice decimal.Decimal, date string, assetClass AssetClass) (*BuyResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.processor.Buy(ticker, quantity, unitPrice, date, assetClass)
	if err != nil {
		return nil, err
	}

	// Negative cash is permitted but worth flagging.
	if balance, err := s.repo.CashBalanceAsOf(date); err == nil && balance.IsNegative() {
		s.log.Warn().
			Str("ticker", ticker).
			Str("balance", balance.String()).
			Msg("Cash balance negative after buy")
	}

	return result, nil
}

// Sell records a sale using FIFO lot consumption
func (s *Service) Sell(ticker string, quantity, unitPrice decimal.Decimal, date string) (*SellResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processor.Sell(ticker, quantity, unitPrice, date)
}

// RecordAdjustment appends a manual cash movement (deposit or withdrawal)
func (s *Service) RecordAdjustment(amount decimal.Decimal, date, note string) (*CashEntry, error) {
	if amount.IsZero() {
		return nil, &ValidationError{Field: "amount", Reason: "must not be zero"}
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, &ValidationError{Field: "date", Reason: "must be YYYY-MM-DD"}
	}

	entry := &CashEntry{
		ID:         uuid.New().String(),
		Amount:     amount,
		OccurredOn: date,
		Reason:     ReasonAdjustment,
		Note:       note,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.repo.RecordCashEntry(entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// OpenLots returns the current open lots for a ticker, oldest first
func (s *Service) OpenLots(ticker string) []Lot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processor.Book().OpenLots(ticker)
}

// AllOpenLots returns every open lot across tickers
func (s *Service) AllOpenLots() []Lot {
	s.mu.Lock()
	defer s.mu.Unlock()

	var lots []Lot
	for _, ticker := range s.processor.Book().Tickers() {
		lots = append(lots, s.processor.Book().OpenLots(ticker)...)
	}
	return lots
}

// HeldTickers returns tickers with open positions
func (s *Service) HeldTickers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processor.Book().Tickers()
}

// TotalQuantity returns the open quantity for a ticker
func (s *Service) TotalQuantity(ticker string) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processor.Book().TotalQuantity(ticker)
}

// Trades returns the trade event history, optionally filtered by ticker
func (s *Service) Trades(ticker string) ([]TradeEvent, error) {
	return s.repo.ReadAllEvents(ticker)
}

// CashHistory returns all cash entries in chronological order
func (s *Service) CashHistory() ([]CashEntry, error) {
	return s.repo.ReadAllCash()
}

// CashBalance returns the cash balance as of a date
func (s *Service) CashBalance(date string) (decimal.Decimal, error) {
	return s.repo.CashBalanceAsOf(date)
}
