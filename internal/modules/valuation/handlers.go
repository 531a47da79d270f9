package valuation

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles portfolio valuation HTTP requests
type Handler struct {
	service *Service
	log     zerolog.Logger
}

// NewHandler creates a new valuation handler
func NewHandler(service *Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "valuation").Logger(),
	}
}

// Routes mounts the portfolio endpoints
func (h *Handler) Routes(r chi.Router) {
	r.Get("/snapshot", h.HandleSnapshot)
	r.Get("/valuation", h.HandleValuationSeries)
}

// HandleSnapshot handles GET /api/portfolio/snapshot
func (h *Handler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.service.CurrentSnapshot()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to compute snapshot")
		http.Error(w, "Failed to compute snapshot", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, snapshot)
}

// HandleValuationSeries handles GET /api/portfolio/valuation?start=&end=
// An empty series is not an error: the response falls back to a single
// current-snapshot point so charts always have something to draw.
func (h *Handler) HandleValuationSeries(w http.ResponseWriter, r *http.Request) {
	var dateRange *DateRange
	start := r.URL.Query().Get("start")
	end := r.URL.Query().Get("end")
	if start != "" || end != "" {
		for _, d := range []string{start, end} {
			if d == "" {
				continue
			}
			if _, err := time.Parse("2006-01-02", d); err != nil {
				http.Error(w, "Dates must be YYYY-MM-DD", http.StatusBadRequest)
				return
			}
		}
		dateRange = &DateRange{Start: start, End: end}
	}

	// Unbounded requests serve the refresh job's cached series when fresh
	var series Series
	var cached bool
	var err error
	if dateRange == nil {
		series, cached, err = h.service.SeriesWithCache()
	} else {
		series, err = h.service.Series(dateRange)
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to reconstruct valuation series")
		http.Error(w, "Failed to reconstruct valuation series", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"points":        series.Points,
		"coverage_gaps": series.CoverageGaps,
	}
	if cached {
		response["cached"] = true
	}

	if len(series.Points) == 0 {
		snapshot, err := h.service.CurrentSnapshot()
		if err == nil && snapshot.TotalValue.IsPositive() {
			response["points"] = []Point{{Date: snapshot.AsOf, Value: snapshot.TotalValue}}
			response["fallback"] = "current_snapshot"
		}
	}

	h.writeJSON(w, http.StatusOK, response)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}
