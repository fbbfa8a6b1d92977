package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"fleet/internal/domain"
)

const defaultORSBaseURL = "https://api.openrouteservice.org"

// ORS resolves addresses through the OpenRouteService geocoder. Distances
// stay straight-line between the geocoded points. Calls are not retried;
// the caller decides whether a failed lookup is worth repeating.
type ORS struct {
	session *http.Client
	apiKey  string
	baseURL string
}

// NewORS creates an ORS estimator.
func NewORS(apiKey, baseURL string) (*ORS, error) {
	if apiKey == "" {
		return nil, errors.New("ORS api key is empty")
	}
	if baseURL == "" {
		baseURL = defaultORSBaseURL
	}
	return &ORS{
		session: &http.Client{Timeout: 10 * time.Second},
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

// StatusError is a non-2xx answer from the provider.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ors: status %d: %s", e.Code, e.Body)
}

type geocodeResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"features"`
}

func (o *ORS) Kind() Kind { return KindORS }

func (o *ORS) Locate(ctx context.Context, address string) (domain.Coordinates, error) {
	norm := normalize(address)
	if norm == "" {
		return domain.Coordinates{}, ErrEmptyAddress
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/geocode/search", nil)
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("create geocode request: %w", err)
	}
	req.Header.Set("Authorization", o.apiKey)
	req.Header.Set("Accept", "application/json")

	q := req.URL.Query()
	q.Set("text", norm)
	q.Set("size", "1")
	req.URL.RawQuery = q.Encode()

	resp, err := o.session.Do(req)
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("geocode %q: %w", norm, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return domain.Coordinates{}, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	var decoded geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return domain.Coordinates{}, fmt.Errorf("decode geocode response: %w", err)
	}
	if len(decoded.Features) == 0 {
		return domain.Coordinates{}, fmt.Errorf("%w: %q", ErrAddressNotFound, norm)
	}

	coords := decoded.Features[0].Geometry.Coordinates
	if len(coords) != 2 {
		return domain.Coordinates{}, fmt.Errorf("invalid coordinate format for %q", norm)
	}

	// GeoJSON order is [lng, lat].
	return domain.Coordinates{Lat: coords[1], Lng: coords[0]}, nil
}

func (o *ORS) Distance(ctx context.Context, from, to string) (float64, error) {
	return distanceVia(ctx, o, from, to)
}

func (o *ORS) Between(a, b domain.Coordinates) float64 {
	return Haversine(a, b)
}

func (o *ORS) EstimateTolls(ctx context.Context, distanceKm float64) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return stubTolls(distanceKm), nil
}
