package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"fleet/internal/domain"
)

const vehiclePositionKey = "vehicles:positions"

// PositionStore keeps the last known position of every vehicle in a GEO set.
type PositionStore struct {
	client *redis.Client
}

// NewPositionStore creates a new PositionStore.
func NewPositionStore(client *redis.Client) *PositionStore {
	return &PositionStore{client: client}
}

// UpdatePosition stores a vehicle's position using GEOADD.
func (s *PositionStore) UpdatePosition(ctx context.Context, vehicleID string, at domain.Coordinates) error {
	return s.client.GeoAdd(ctx, vehiclePositionKey, &redis.GeoLocation{
		Name:      vehicleID,
		Longitude: at.Lng,
		Latitude:  at.Lat,
	}).Err()
}

// Position returns the stored position of a vehicle, or nil when unknown.
func (s *PositionStore) Position(ctx context.Context, vehicleID string) (*domain.Coordinates, error) {
	res, err := s.client.GeoPos(ctx, vehiclePositionKey, vehicleID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if len(res) == 0 || res[0] == nil {
		return nil, nil
	}
	return &domain.Coordinates{Lat: res[0].Latitude, Lng: res[0].Longitude}, nil
}
