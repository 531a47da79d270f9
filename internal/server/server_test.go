package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prismapp/prism/internal/database"
	"github.com/prismapp/prism/internal/modules/ledger"
	"github.com/prismapp/prism/internal/modules/marketdata"
	"github.com/prismapp/prism/internal/modules/reports"
	"github.com/prismapp/prism/internal/modules/valuation"
	"github.com/prismapp/prism/internal/scheduler"
)

// recordedJob counts manual runs, optionally failing them
type recordedJob struct {
	name string
	runs int
	fail bool
}

func (j *recordedJob) Name() string { return j.name }

func (j *recordedJob) Run() error {
	j.runs++
	if j.fail {
		return errors.New("feed unavailable")
	}
	return nil
}

func newTestServer(t *testing.T, jobs ...scheduler.Job) (*Server, string) {
	t.Helper()
	dir := t.TempDir()

	db, err := database.New(filepath.Join(dir, "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(ledger.InitSchema))

	historyDir := filepath.Join(dir, "prices")
	pricesRepo, err := marketdata.NewRepository(historyDir, zerolog.Nop())
	require.NoError(t, err)

	ledgerRepo := ledger.NewRepository(db.Conn(), zerolog.Nop())
	ledgerSvc, err := ledger.NewService(ledgerRepo, zerolog.Nop())
	require.NoError(t, err)

	valuationSvc := valuation.NewService(ledgerRepo, pricesRepo, "", zerolog.Nop())
	reportsSvc := reports.NewService(ledgerSvc, pricesRepo, valuationSvc, zerolog.Nop())

	srv := New(Config{
		Port:             0,
		Log:              zerolog.Nop(),
		DB:               db,
		HistoryDir:       historyDir,
		LedgerHandler:    ledger.NewHandler(ledgerSvc, zerolog.Nop()),
		ValuationHandler: valuation.NewHandler(valuationSvc, zerolog.Nop()),
		ReportsHandler:   reports.NewHandler(reportsSvc, zerolog.Nop()),
		Scheduler:        scheduler.New(zerolog.Nop()),
		Jobs:             jobs,
	})
	return srv, historyDir
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var payload map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&payload))
	assert.Equal(t, "ok", payload["status"])
}

func TestHandleRunJob(t *testing.T) {
	job := &recordedJob{name: "price-sync"}
	srv, _ := newTestServer(t, job)

	req := httptest.NewRequest("POST", "/api/system/jobs/price-sync/run", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, job.runs)

	var payload map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&payload))
	assert.Equal(t, "price-sync", payload["job"])
}

func TestHandleRunJob_UnknownJob(t *testing.T) {
	srv, _ := newTestServer(t, &recordedJob{name: "price-sync"})

	req := httptest.NewRequest("POST", "/api/system/jobs/nonexistent/run", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleRunJob_FailureReported(t *testing.T) {
	job := &recordedJob{name: "snapshot-refresh", fail: true}
	srv, _ := newTestServer(t, job)

	req := httptest.NewRequest("POST", "/api/system/jobs/snapshot-refresh/run", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, 1, job.runs)
}

func TestHandleSystemStatus_CountsHistoryDBs(t *testing.T) {
	srv, historyDir := newTestServer(t)

	require.NoError(t, os.WriteFile(filepath.Join(historyDir, "AAPL.db"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(historyDir, "notes.txt"), nil, 0644))

	req := httptest.NewRequest("GET", "/api/system/status", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var status SystemStatusResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, 1, status.HistoryDBs)
}
