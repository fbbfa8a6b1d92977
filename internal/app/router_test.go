package app

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet/internal/config"
	"fleet/internal/domain"
	"fleet/internal/geo"
	"fleet/internal/logger"
	"fleet/internal/metrics"
	"fleet/internal/middleware"
	fleetredis "fleet/internal/redis"
	"fleet/internal/repository/memory"
)

func newTestRouter(t *testing.T, rl *middleware.RateLimiter) (*gin.Engine, *memory.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	reg := prometheus.NewRegistry()
	rec, err := metrics.NewRecorder(reg)
	require.NoError(t, err)

	store := memory.NewStore()
	cfg := &config.Config{
		Dispatch:          config.DispatchConfig{FuelPrice: 7.5, FuelLitresPerKm: 0.3, RateDivisor: 300, ShipmentDefaultHours: 24},
		Tracking:          config.TrackingConfig{MaxBatch: 1000, Workers: 4},
		DependencyTimeout: time.Second,
	}
	svc := NewServices(cfg, Backend{
		Tx:        store,
		Repos:     store.Repositories(),
		Estimator: geo.NewApproximate(),
		Positions: fleetredis.NewPositionStore(client),
		Locks:     fleetredis.NewLockStore(client),
	}, config.DefaultPolicy(), rec, logger.NewNop())

	dh, fh, th := svc.Handlers()
	return NewRouter(RouterDeps{
		DispatchHandler: dh,
		FleetHandler:    fh,
		TrackingHandler: th,
		RedisClient:     client,
		RateLimiter:     rl,
		Gatherer:        reg,
	}), store
}

func seed(store *memory.Store) {
	store.AddOrder(&domain.Order{
		ID: "o1", CustomerID: "c1", OriginAddress: "Shanghai Pudong Depot", DestinationAddress: "Hangzhou West Lake",
		CargoWeight: 400, CargoVolume: 4, Priority: domain.PriorityNormal, Status: domain.OrderStatusConfirmed,
	})
	store.AddVehicle(&domain.Vehicle{
		ID: "v1", Type: "truck", MaxLoad: 1000, MaxVolume: 10, Status: domain.VehicleStatusAvailable, DailyRate: 900,
	})
	store.AddDriver(&domain.Driver{ID: "d1", Name: "Wang", Status: domain.DriverStatusAvailable, Rating: 4.5})
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "fleet_tracking_batch_seconds")
}

func TestRouter_IdempotentCreate(t *testing.T) {
	r, store := newTestRouter(t, nil)
	seed(store)

	body, err := json.Marshal(map[string]any{
		"order_ids":           []string{"o1"},
		"vehicle_id":          "v1",
		"driver_id":           "d1",
		"planned_departure":   "2025-03-01T08:00:00Z",
		"origin_address":      "Shanghai Pudong Depot",
		"destination_address": "Hangzhou West Lake",
	})
	require.NoError(t, err)

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/dispatches", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", "create-1")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	first := send()
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	second := send()
	assert.Equal(t, http.StatusCreated, second.Code, "retry replays instead of hitting the busy vehicle")
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/dispatches", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Dispatches []json.RawMessage `json:"dispatches"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Len(t, page.Dispatches, 1)
}

func TestRouter_RateLimitedAPI(t *testing.T) {
	rl := middleware.NewRateLimiter(config.RateLimitConfig{RPS: 0.001, Burst: 1})
	defer rl.Close()
	r, _ := newTestRouter(t, rl)

	get := func(path string) int {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w.Code
	}

	assert.Equal(t, http.StatusOK, get("/v1/fleet/available-orders"))
	assert.Equal(t, http.StatusTooManyRequests, get("/v1/fleet/available-orders"))
	assert.Equal(t, http.StatusOK, get("/health"))
}
