package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mandi-erp/mandi/internal/observability"
	"github.com/mandi-erp/mandi/internal/stock"
	"github.com/mandi-erp/mandi/jobs"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("STOCK_PRODUCT_POLICY", "")
	t.Setenv("STOCK_VEHICLE_POLICY", "strict")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, stock.PolicyAdvisory, cfg.ProductPolicy())
	require.Equal(t, stock.PolicyStrict, cfg.VehiclePolicy())
	require.Equal(t, 60, cfg.RateLimitPerMinute)
	require.Equal(t, "0 2 * * *", cfg.ReconcileCron)
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigRejectsUnknownPolicy(t *testing.T) {
	t.Setenv("STOCK_PRODUCT_POLICY", "lenient")

	_, err := LoadConfig()
	require.ErrorContains(t, err, "STOCK_PRODUCT_POLICY")
}

func TestLoadConfigRejectsNonPositiveRateLimit(t *testing.T) {
	t.Setenv("RATE_LIMIT_PER_MINUTE", "0")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestRouterServesHealthAndMetrics(t *testing.T) {
	router := NewRouter(RouterParams{
		Config:     &Config{RateLimitPerMinute: 100},
		Metrics:    observability.NewMetrics(),
		JobHandler: jobs.NewHandler(nil, nil, nil),
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/jobs/reconcile", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "mandi_http_requests_total")
}

func TestRouterLeavesUnmountedModulesOut(t *testing.T) {
	router := NewRouter(RouterParams{Config: &Config{RateLimitPerMinute: 100}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/invoices", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimitUsesConfiguredBudget(t *testing.T) {
	router := NewRouter(RouterParams{Config: &Config{RateLimitPerMinute: 2}})

	codes := make([]int, 0, 3)
	for range 3 {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		codes = append(codes, rec.Code)
	}
	require.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

type downDB struct{}

func (downDB) Ping(context.Context) error { return errors.New("connection refused") }

func TestHealthzReportsUnreachableDatabase(t *testing.T) {
	router := NewRouter(RouterParams{Config: &Config{RateLimitPerMinute: 100}, DB: downDB{}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), "unreachable")
}
