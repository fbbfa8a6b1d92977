package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"fleet/internal/domain"
)

const geocodeCachePrefix = "cache:geocode:"

// DefaultGeocodeTTL applies when the store is built with a zero TTL.
const DefaultGeocodeTTL = 24 * time.Hour

// GeocodeCache caches resolved addresses in Redis.
type GeocodeCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewGeocodeCache creates a new GeocodeCache.
func NewGeocodeCache(client *redis.Client, ttl time.Duration) *GeocodeCache {
	if ttl <= 0 {
		ttl = DefaultGeocodeTTL
	}
	return &GeocodeCache{client: client, ttl: ttl}
}

// GetLocation retrieves an address from cache.
func (c *GeocodeCache) GetLocation(ctx context.Context, address string) (domain.Coordinates, bool, error) {
	data, err := c.client.Get(ctx, geocodeCachePrefix+address).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Coordinates{}, false, nil // Cache miss
		}
		return domain.Coordinates{}, false, err
	}

	var coords domain.Coordinates
	if err := json.Unmarshal(data, &coords); err != nil {
		return domain.Coordinates{}, false, err
	}
	return coords, true, nil
}

// SetLocation stores an address in cache.
func (c *GeocodeCache) SetLocation(ctx context.Context, address string, coords domain.Coordinates) error {
	data, err := json.Marshal(coords)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, geocodeCachePrefix+address, data, c.ttl).Err()
}
