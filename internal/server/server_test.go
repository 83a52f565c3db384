package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	adjustmentctrl "larder/internal/adjustment/controller"
	"larder/internal/config"
	inventoryctrl "larder/internal/inventory/controller"
	orderctrl "larder/internal/order/controller"
	"larder/internal/product"
)

func TestNew_AppliesServerConfig(t *testing.T) {
	srv := New(config.ServerConfig{
		Port:            9091,
		ReadTimeout:     2 * time.Second,
		WriteTimeout:    3 * time.Second,
		IdleTimeout:     4 * time.Second,
		ShutdownTimeout: time.Second,
	}, http.NotFoundHandler(), zap.NewNop())

	assert.Equal(t, ":9091", srv.Addr())
	assert.Equal(t, 2*time.Second, srv.httpServer.ReadTimeout)
	assert.Equal(t, 3*time.Second, srv.httpServer.WriteTimeout)
	assert.Equal(t, 4*time.Second, srv.httpServer.IdleTimeout)
	assert.Equal(t, time.Second, srv.shutdownTimeout)
}

func TestShutdown_BeforeStart(t *testing.T) {
	srv := New(config.ServerConfig{Port: 0, ShutdownTimeout: time.Second}, http.NotFoundHandler(), zap.NewNop())

	require.NoError(t, srv.Shutdown(context.Background()))
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	logger := zap.NewNop()
	router := NewRouter(
		product.NewController(nil, logger),
		inventoryctrl.NewInventoryController(nil, logger),
		orderctrl.NewOrderController(nil, logger, 0),
		adjustmentctrl.NewAdjustmentController(nil, logger),
		logger,
	)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/unknown", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
