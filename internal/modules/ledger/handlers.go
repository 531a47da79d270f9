package ledger

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Handler handles ledger HTTP requests
type Handler struct {
	service *Service
	log     zerolog.Logger
}

// NewHandler creates a new ledger handler
func NewHandler(service *Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "ledger").Logger(),
	}
}

// Routes mounts the ledger endpoints
func (h *Handler) Routes(r chi.Router) {
	r.Post("/buy", h.HandleBuy)
	r.Post("/sell", h.HandleSell)
	r.Post("/cash", h.HandleCashAdjustment)
	r.Get("/trades", h.HandleGetTrades)
	r.Get("/lots", h.HandleGetLots)
	r.Get("/cash", h.HandleGetCash)
}

type tradeRequest struct {
	Ticker     string          `json:"ticker"`
	Quantity   decimal.Decimal `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Date       string          `json:"date"`
	AssetClass AssetClass      `json:"asset_class,omitempty"`
}

// HandleBuy handles POST /api/ledger/buy
func (h *Handler) HandleBuy(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.service.Buy(req.Ticker, req.Quantity, req.UnitPrice, req.Date, req.AssetClass)
	if err != nil {
		h.writeError(w, err, "Failed to record buy")
		return
	}

	h.writeJSON(w, http.StatusCreated, result)
}

// HandleSell handles POST /api/ledger/sell
func (h *Handler) HandleSell(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.service.Sell(req.Ticker, req.Quantity, req.UnitPrice, req.Date)
	if err != nil {
		h.writeError(w, err, "Failed to record sell")
		return
	}

	h.writeJSON(w, http.StatusCreated, result)
}

type cashRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Date   string          `json:"date"`
	Note   string          `json:"note,omitempty"`
}

// HandleCashAdjustment handles POST /api/ledger/cash
func (h *Handler) HandleCashAdjustment(w http.ResponseWriter, r *http.Request) {
	var req cashRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	entry, err := h.service.RecordAdjustment(req.Amount, req.Date, req.Note)
	if err != nil {
		h.writeError(w, err, "Failed to record cash adjustment")
		return
	}

	h.writeJSON(w, http.StatusCreated, entry)
}

// HandleGetTrades handles GET /api/ledger/trades
func (h *Handler) HandleGetTrades(w http.ResponseWriter, r *http.Request) {
	ticker := r.URL.Query().Get("ticker")

	trades, err := h.service.Trades(ticker)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to query trades")
		http.Error(w, "Failed to query trades", http.StatusInternalServerError)
		return
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 && limit < len(trades) {
			// History reads ascending; a limit keeps the most recent entries.
			trades = trades[len(trades)-limit:]
		}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"trades": trades,
		"count":  len(trades),
	})
}

// HandleGetLots handles GET /api/ledger/lots
func (h *Handler) HandleGetLots(w http.ResponseWriter, r *http.Request) {
	ticker := r.URL.Query().Get("ticker")

	var lots []Lot
	if ticker != "" {
		lots = h.service.OpenLots(ticker)
	} else {
		lots = h.service.AllOpenLots()
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"lots":  lots,
		"count": len(lots),
	})
}

// HandleGetCash handles GET /api/ledger/cash
func (h *Handler) HandleGetCash(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.CashHistory()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to query cash entries")
		http.Error(w, "Failed to query cash entries", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

func (h *Handler) writeError(w http.ResponseWriter, err error, logMsg string) {
	var validationErr *ValidationError
	switch {
	case errors.As(err, &validationErr):
		http.Error(w, validationErr.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrInsufficientQuantity):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		h.log.Error().Err(err).Msg(logMsg)
		http.Error(w, logMsg, http.StatusInternalServerError)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}
