package server

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemStatusResponse represents the system status response
type SystemStatusResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds int64   `json:"uptime_seconds"`
	CPUPercent    float64 `json:"cpu_percent"`
	RAMPercent    float64 `json:"ram_percent"`
	TradeCount    int     `json:"trade_count"`
	OpenLotCount  int     `json:"open_lot_count"`
	CashEntries   int     `json:"cash_entries"`
	LedgerSizeMB  float64 `json:"ledger_size_mb"`
	HistoryDBs    int     `json:"history_dbs"`
	CheckedAt     string  `json:"checked_at"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleSystemStatus returns process and ledger statistics
func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	s.log.Debug().Msg("Getting system status")

	cpuPct, ramPct := s.systemStats()

	var tradeCount, lotCount, cashCount int
	conn := s.db.Conn()
	if err := conn.QueryRow("SELECT COUNT(*) FROM trades").Scan(&tradeCount); err != nil && err != sql.ErrNoRows {
		s.log.Error().Err(err).Msg("Failed to count trades")
	}
	if err := conn.QueryRow("SELECT COUNT(*) FROM lots").Scan(&lotCount); err != nil && err != sql.ErrNoRows {
		s.log.Error().Err(err).Msg("Failed to count lots")
	}
	if err := conn.QueryRow("SELECT COUNT(*) FROM cash_entries").Scan(&cashCount); err != nil && err != sql.ErrNoRows {
		s.log.Error().Err(err).Msg("Failed to count cash entries")
	}

	var ledgerSizeMB float64
	if info, err := os.Stat(s.db.Path()); err == nil {
		ledgerSizeMB = float64(info.Size()) / 1024 / 1024
	}

	historyCount := 0
	if entries, err := os.ReadDir(s.historyDir); err == nil {
		for _, entry := range entries {
			if !entry.IsDir() && filepath.Ext(entry.Name()) == ".db" {
				historyCount++
			}
		}
	}

	response := SystemStatusResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.start).Seconds()),
		CPUPercent:    cpuPct,
		RAMPercent:    ramPct,
		TradeCount:    tradeCount,
		OpenLotCount:  lotCount,
		CashEntries:   cashCount,
		LedgerSizeMB:  ledgerSizeMB,
		HistoryDBs:    historyCount,
		CheckedAt:     time.Now().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleRunJob triggers a registered scheduler job outside its schedule
func (s *Server) handleRunJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	job, ok := s.jobs[name]
	if !ok {
		http.Error(w, "Unknown job", http.StatusNotFound)
		return
	}

	if err := s.scheduler.RunNow(job); err != nil {
		s.log.Error().Err(err).Str("job", name).Msg("Manual job run failed")
		http.Error(w, "Job failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
		"job":    name,
	})
}

// systemStats calculates CPU and RAM usage percentages.
// Samples CPU over 100ms to keep the endpoint responsive.
func (s *Server) systemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}
