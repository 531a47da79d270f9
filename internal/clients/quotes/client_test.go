package quotes

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDailyCloses_ParsesFeedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/daily", r.URL.Path)
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbol"))
		assert.Equal(t, "2024-01-01", r.URL.Query().Get("start"))
		assert.Equal(t, "2024-01-31", r.URL.Query().Get("end"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"symbol": "AAPL",
			"prices": [
				{"date": "2024-01-15", "close": "110.25"},
				{"date": "2024-01-16", "close": "111"}
			]
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, zerolog.Nop())
	points, err := client.GetDailyCloses("AAPL", "2024-01-01", "2024-01-31")
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, "2024-01-15", points[0].Date)
	assert.Equal(t, "110.25", points[0].Price.String())
}

func TestGetDailyCloses_NotFoundIsEmptyNotError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL, zerolog.Nop())
	points, err := client.GetDailyCloses("UNKNOWN", "2024-01-01", "2024-01-31")
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestGetDailyCloses_ServerErrorReported(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, zerolog.Nop())
	_, err := client.GetDailyCloses("AAPL", "2024-01-01", "2024-01-31")
	assert.Error(t, err)
}

func TestGetDailyCloses_SkipsMalformedAndNonPositiveRows(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"symbol": "AAPL",
			"prices": [
				{"date": "15/01/2024", "close": "110"},
				{"date": "2024-01-16", "close": "0"},
				{"date": "2024-01-17", "close": "112"}
			]
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, zerolog.Nop())
	points, err := client.GetDailyCloses("AAPL", "2024-01-01", "2024-01-31")
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, "2024-01-17", points[0].Date)
}

func TestGetDailyCloses_MalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{not json"))
	}))
	defer server.Close()

	client := NewClient(server.URL, zerolog.Nop())
	_, err := client.GetDailyCloses("AAPL", "2024-01-01", "2024-01-31")
	assert.Error(t, err)
}
