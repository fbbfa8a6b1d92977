package geo

import (
	"context"

	"fleet/internal/domain"
	"fleet/internal/logger"
)

// LocationCache stores resolved addresses. A miss returns ok=false, nil.
type LocationCache interface {
	GetLocation(ctx context.Context, address string) (domain.Coordinates, bool, error)
	SetLocation(ctx context.Context, address string, c domain.Coordinates) error
}

// Cached puts a LocationCache in front of another estimator. Cache failures
// are logged and fall through to the wrapped estimator.
type Cached struct {
	next  Estimator
	cache LocationCache
	log   logger.Logger
}

// NewCached wraps next with cache.
func NewCached(next Estimator, cache LocationCache, log logger.Logger) *Cached {
	return &Cached{next: next, cache: cache, log: log}
}

func (c *Cached) Kind() Kind { return c.next.Kind() }

func (c *Cached) Locate(ctx context.Context, address string) (domain.Coordinates, error) {
	norm := normalize(address)
	if norm == "" {
		return domain.Coordinates{}, ErrEmptyAddress
	}

	if hit, ok, err := c.cache.GetLocation(ctx, norm); err != nil {
		c.log.Warnf(ctx, "geocode cache read failed for %q: %v", norm, err)
	} else if ok {
		return hit, nil
	}

	coords, err := c.next.Locate(ctx, norm)
	if err != nil {
		return domain.Coordinates{}, err
	}

	if err := c.cache.SetLocation(ctx, norm, coords); err != nil {
		c.log.Warnf(ctx, "geocode cache write failed for %q: %v", norm, err)
	}
	return coords, nil
}

func (c *Cached) Distance(ctx context.Context, from, to string) (float64, error) {
	return distanceVia(ctx, c, from, to)
}

func (c *Cached) Between(a, b domain.Coordinates) float64 {
	return c.next.Between(a, b)
}

func (c *Cached) EstimateTolls(ctx context.Context, distanceKm float64) (float64, error) {
	return c.next.EstimateTolls(ctx, distanceKm)
}
