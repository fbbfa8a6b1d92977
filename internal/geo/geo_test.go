package geo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet/internal/config"
	"fleet/internal/domain"
	"fleet/internal/logger"
)

func TestHaversine(t *testing.T) {
	t.Parallel()

	same := domain.Coordinates{Lat: 31.23, Lng: 121.47}
	assert.Zero(t, Haversine(same, same))

	// One degree of latitude is ~111.19 km.
	d := Haversine(domain.Coordinates{Lat: 30, Lng: 120}, domain.Coordinates{Lat: 31, Lng: 120})
	assert.InDelta(t, 111.19, d, 0.01)
}

func TestApproximate_Deterministic(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	a := NewApproximate()

	p1, err := a.Locate(ctx, "Shanghai  Pudong Warehouse")
	require.NoError(t, err)
	p2, err := a.Locate(ctx, "Shanghai Pudong Warehouse")
	require.NoError(t, err)
	assert.Equal(t, p1, p2, "whitespace differences must not move the point")

	assert.GreaterOrEqual(t, p1.Lat, 30.0)
	assert.Less(t, p1.Lat, 40.0)
	assert.GreaterOrEqual(t, p1.Lng, 120.0)
	assert.Less(t, p1.Lng, 130.0)

	d1, err := a.Distance(ctx, "Hangzhou", "Suzhou")
	require.NoError(t, err)
	d2, err := a.Distance(ctx, "Suzhou", "Hangzhou")
	require.NoError(t, err)
	assert.InDelta(t, d1, d2, 1e-9)

	zero, err := a.Distance(ctx, "Hangzhou", "Hangzhou")
	require.NoError(t, err)
	assert.Zero(t, zero)

	_, err = a.Locate(ctx, "   ")
	assert.ErrorIs(t, err, ErrEmptyAddress)
}

func TestApproximate_Tolls(t *testing.T) {
	t.Parallel()
	a := NewApproximate()

	tolls, err := a.EstimateTolls(context.Background(), 123.456)
	require.NoError(t, err)
	assert.Equal(t, 61.73, tolls)

	tolls, err = a.EstimateTolls(context.Background(), 0)
	require.NoError(t, err)
	assert.Zero(t, tolls)
}

func TestNew(t *testing.T) {
	t.Parallel()

	e, err := New(config.GeoConfig{Provider: "approximate"})
	require.NoError(t, err)
	assert.Equal(t, KindApproximate, e.Kind())

	_, err = New(config.GeoConfig{Provider: "ors"})
	assert.Error(t, err, "ors requires an api key")

	_, err = New(config.GeoConfig{Provider: "carrier-pigeon"})
	assert.Error(t, err)
}

func TestORS_Locate(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/geocode/search", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("Authorization"))
		switch r.URL.Query().Get("text") {
		case "Depot 1":
			_, _ = w.Write([]byte(`{"features":[{"geometry":{"coordinates":[121.5,31.2]}}]}`))
		case "Nowhere":
			_, _ = w.Write([]byte(`{"features":[]}`))
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("busy"))
		}
	}))
	defer srv.Close()

	o, err := NewORS("secret", srv.URL)
	require.NoError(t, err)
	ctx := context.Background()

	c, err := o.Locate(ctx, "Depot  1")
	require.NoError(t, err)
	assert.Equal(t, domain.Coordinates{Lat: 31.2, Lng: 121.5}, c)

	_, err = o.Locate(ctx, "Nowhere")
	assert.ErrorIs(t, err, ErrAddressNotFound)

	_, err = o.Locate(ctx, "Elsewhere")
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusServiceUnavailable, se.Code)
}

type mapCache struct {
	mu     sync.Mutex
	m      map[string]domain.Coordinates
	gets   int
	broken bool
}

func (c *mapCache) GetLocation(_ context.Context, address string) (domain.Coordinates, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.broken {
		return domain.Coordinates{}, false, errors.New("cache down")
	}
	v, ok := c.m[address]
	return v, ok, nil
}

func (c *mapCache) SetLocation(_ context.Context, address string, v domain.Coordinates) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.broken {
		return errors.New("cache down")
	}
	c.m[address] = v
	return nil
}

type countingEstimator struct {
	*Approximate
	locates int
}

func (e *countingEstimator) Locate(ctx context.Context, address string) (domain.Coordinates, error) {
	e.locates++
	return e.Approximate.Locate(ctx, address)
}

func TestCached_Locate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	inner := &countingEstimator{Approximate: NewApproximate()}
	cache := &mapCache{m: map[string]domain.Coordinates{}}
	c := NewCached(inner, cache, logger.NewNop())

	first, err := c.Locate(ctx, "Ningbo Port")
	require.NoError(t, err)
	second, err := c.Locate(ctx, "Ningbo  Port")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.locates)
	assert.Equal(t, KindApproximate, c.Kind())
}

func TestCached_FallsThroughOnCacheFailure(t *testing.T) {
	t.Parallel()

	inner := &countingEstimator{Approximate: NewApproximate()}
	c := NewCached(inner, &mapCache{m: map[string]domain.Coordinates{}, broken: true}, logger.NewNop())

	_, err := c.Locate(context.Background(), "Ningbo Port")
	require.NoError(t, err)
	assert.Equal(t, 1, inner.locates)
}
