package service

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"fleet/internal/config"
	"fleet/internal/domain"
	"fleet/internal/geo"
	"fleet/internal/logger"
	"fleet/internal/redis"
	"fleet/internal/repository/memory"
)

var testNow = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

func testDispatchConfig() config.DispatchConfig {
	return config.DispatchConfig{
		FuelPrice:            7.5,
		FuelLitresPerKm:      0.3,
		RateDivisor:          300,
		ShipmentDefaultHours: 24,
		LockTTL:              10 * time.Second,
	}
}

type fixture struct {
	store     *memory.Store
	geo       geo.Estimator
	dispatch  *DispatchService
	tracking  *TrackingService
	mr        *miniredis.Miniredis
	locks     *redis.LockStore
	positions *redis.PositionStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := &fixture{
		store:     memory.NewStore(),
		geo:       geo.NewApproximate(),
		mr:        mr,
		locks:     redis.NewLockStore(client),
		positions: redis.NewPositionStore(client),
	}
	log := logger.NewNop()
	notifier := NewNotificationService(log)

	f.dispatch = NewDispatchService(f.store, f.store.Repositories(), f.geo, f.positions, f.locks,
		notifier, nil, log, testDispatchConfig(), time.Second)
	f.dispatch.now = func() time.Time { return testNow }

	f.tracking = NewTrackingService(f.store.Repositories(), f.geo, f.positions, notifier, nil, log,
		config.DefaultPolicy(), config.TrackingConfig{MaxBatch: 1000, Workers: 4}, time.Second)
	f.tracking.now = func() time.Time { return testNow }
	return f
}

func (f *fixture) seedFleet() {
	f.store.AddOrder(&domain.Order{
		ID: "o1", CustomerID: "c1", OriginAddress: "Shanghai Pudong Depot", DestinationAddress: "Hangzhou West Lake",
		CargoWeight: 400, CargoVolume: 4, CargoValue: 1000, Priority: domain.PriorityNormal,
		Status: domain.OrderStatusConfirmed, ExpectedTime: testNow.Add(2 * time.Hour),
	})
	f.store.AddOrder(&domain.Order{
		ID: "o2", CustomerID: "c1", OriginAddress: "Suzhou Industrial Park", DestinationAddress: "Nanjing Xinjiekou",
		CargoWeight: 300, CargoVolume: 3, CargoValue: 500, Priority: domain.PriorityHigh,
		Status: domain.OrderStatusConfirmed, ExpectedTime: testNow.Add(3 * time.Hour),
	})
	f.store.AddVehicle(&domain.Vehicle{
		ID: "v1", PlateNumber: "沪A12345", Type: "truck", MaxLoad: 1000, MaxVolume: 10,
		Status: domain.VehicleStatusAvailable, DailyRate: 900, MaintenanceCost: 500, FuelLevel: 80, DriverID: "d1",
	})
	f.store.AddDriver(&domain.Driver{
		ID: "d1", Name: "Wang", Status: domain.DriverStatusAvailable, Rating: 4.5, DrivingYears: 8,
	})
}

func (f *fixture) createRequest(orderIDs ...string) CreateDispatchRequest {
	return CreateDispatchRequest{
		OrderIDs:           orderIDs,
		VehicleID:          "v1",
		DriverID:           "d1",
		PlannedDeparture:   testNow,
		OriginAddress:      "Shanghai Pudong Depot",
		DestinationAddress: "Nanjing Xinjiekou",
	}
}

func ptr[T any](v T) *T { return &v }
