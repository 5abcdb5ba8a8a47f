package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aluiziolira/go-scrape-catalog/models"
	"github.com/aluiziolira/go-scrape-catalog/scraper"
)

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	rec := get(t, NewRouter(nil, nil), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMetricsExposesCollectors(t *testing.T) {
	metrics := scraper.NewMetrics()
	metrics.IncRequest("product")
	metrics.IncTarget("success")

	rec := get(t, NewRouter(metrics.Registry, nil), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `scraper_requests_total{kind="product"} 1`)
}

func TestMetricsAbsentWithoutRegistry(t *testing.T) {
	rec := get(t, NewRouter(nil, nil), "/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSummary(t *testing.T) {
	calls := 0
	summary := func() models.SessionSummary {
		calls++
		return models.SessionSummary{SessionID: "abc", Targets: 4, Success: 3, Failed: 1}
	}

	rec := get(t, NewRouter(nil, summary), "/summary")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got models.SessionSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "abc", got.SessionID)
	assert.Equal(t, 3, got.Success)
	assert.Equal(t, 1, calls)
}

func TestSummaryWithoutSession(t *testing.T) {
	rec := get(t, NewRouter(nil, nil), "/summary")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
