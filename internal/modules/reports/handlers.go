package reports

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles reports HTTP requests
type Handler struct {
	service *Service
	log     zerolog.Logger
}

// NewHandler creates a new reports handler
func NewHandler(service *Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "reports").Logger(),
	}
}

// Routes mounts the reports endpoints
func (h *Handler) Routes(r chi.Router) {
	r.Get("/performance", h.HandlePerformance)
	r.Get("/allocation", h.HandleAllocation)
	r.Get("/series-stats", h.HandleSeriesStats)
}

// HandlePerformance handles GET /api/reports/performance
func (h *Handler) HandlePerformance(w http.ResponseWriter, r *http.Request) {
	performance, err := h.service.Performance()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to compute performance")
		http.Error(w, "Failed to compute performance", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, performance)
}

// HandleAllocation handles GET /api/reports/allocation
func (h *Handler) HandleAllocation(w http.ResponseWriter, r *http.Request) {
	allocation, err := h.service.Allocation()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to compute allocation")
		http.Error(w, "Failed to compute allocation", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"allocation": allocation,
	})
}

// HandleSeriesStats handles GET /api/reports/series-stats?window=
func (h *Handler) HandleSeriesStats(w http.ResponseWriter, r *http.Request) {
	window := 0
	if windowStr := r.URL.Query().Get("window"); windowStr != "" {
		parsed, err := strconv.Atoi(windowStr)
		if err != nil || parsed < 0 {
			http.Error(w, "window must be a non-negative integer", http.StatusBadRequest)
			return
		}
		window = parsed
	}

	stats, err := h.service.SeriesStats(window)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to compute series stats")
		http.Error(w, "Failed to compute series stats", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}
