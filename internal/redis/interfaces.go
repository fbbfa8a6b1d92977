package redis

import (
	"context"
	"time"

	"fleet/internal/domain"
	"fleet/internal/geo"
)

// PositionStoreInterface defines the interface for vehicle position operations.
type PositionStoreInterface interface {
	UpdatePosition(ctx context.Context, vehicleID string, at domain.Coordinates) error
	Position(ctx context.Context, vehicleID string) (*domain.Coordinates, error)
}

// LockStoreInterface defines the interface for dispatch resource locking.
type LockStoreInterface interface {
	AcquireVehicleLock(ctx context.Context, vehicleID string, ttl time.Duration) (*Lock, error)
	AcquireDriverLock(ctx context.Context, driverID string, ttl time.Duration) (*Lock, error)
	Release(ctx context.Context, l *Lock) error
}

// Ensure concrete types implement interfaces.
var (
	_ PositionStoreInterface = (*PositionStore)(nil)
	_ LockStoreInterface     = (*LockStore)(nil)
	_ geo.LocationCache      = (*GeocodeCache)(nil)
)
