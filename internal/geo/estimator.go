// Package geo estimates positions and straight-line distances for addresses.
package geo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"fleet/internal/config"
	"fleet/internal/domain"
)

// Kind tags the estimator variant.
type Kind string

const (
	// KindApproximate derives deterministic pseudo-coordinates from the address text.
	KindApproximate Kind = "approximate"
	// KindORS geocodes addresses through OpenRouteService.
	KindORS Kind = "ors"
)

var (
	// ErrEmptyAddress is returned when an address is blank after normalization.
	ErrEmptyAddress = errors.New("address must be non-empty")
	// ErrAddressNotFound is returned when a provider cannot resolve an address.
	ErrAddressNotFound = errors.New("address not found")
)

// Estimator resolves addresses and measures distances in kilometres.
// Implementations must be safe for concurrent use.
type Estimator interface {
	Kind() Kind
	// Locate resolves an address to coordinates.
	Locate(ctx context.Context, address string) (domain.Coordinates, error)
	// Distance is the straight-line distance between two addresses.
	Distance(ctx context.Context, from, to string) (float64, error)
	// Between is the straight-line distance between two known points.
	Between(a, b domain.Coordinates) float64
	// EstimateTolls is a placeholder toll estimate for a trip of distanceKm.
	EstimateTolls(ctx context.Context, distanceKm float64) (float64, error)
}

// New builds the estimator selected by cfg.Provider.
func New(cfg config.GeoConfig) (Estimator, error) {
	switch Kind(strings.ToLower(cfg.Provider)) {
	case "", KindApproximate:
		return NewApproximate(), nil
	case KindORS:
		return NewORS(cfg.ORSAPIKey, cfg.ORSBaseURL)
	default:
		return nil, fmt.Errorf("unknown geo provider %q", cfg.Provider)
	}
}

const earthRadiusKm = 6371.0

// Haversine returns the great-circle distance between a and b in kilometres.
func Haversine(a, b domain.Coordinates) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// tollPerKm prices the toll stub. No provider in use exposes toll data.
const tollPerKm = 0.5

func stubTolls(distanceKm float64) float64 {
	if distanceKm <= 0 {
		return 0
	}
	return math.Round(distanceKm*tollPerKm*100) / 100
}

// normalize collapses whitespace so equivalent addresses share a key.
func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
