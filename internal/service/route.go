package service

import (
	"context"
	"math"

	"fleet/internal/domain"
	"fleet/internal/geo"
)

const (
	averageSpeedKmh = 50.0
	dwellMinutes    = 15
)

// RouteSequencer orders pickups and deliveries of a multi-stop dispatch.
type RouteSequencer struct {
	geo geo.Estimator
}

// NewRouteSequencer creates a RouteSequencer.
func NewRouteSequencer(estimator geo.Estimator) *RouteSequencer {
	return &RouteSequencer{geo: estimator}
}

// Sequence plans a visiting order with a greedy nearest-neighbour heuristic.
//
// It starts at the first order's pickup, then repeatedly jumps from the
// current order's delivery point to the nearest unvisited pickup, emitting
// that order's pickup and delivery. The first order's delivery comes last.
// The result is deterministic but not globally optimal.
func (r *RouteSequencer) Sequence(ctx context.Context, orders []*domain.Order) (*domain.RoutePlan, error) {
	if len(orders) == 0 {
		return &domain.RoutePlan{Waypoints: []domain.Waypoint{}}, nil
	}

	points := make(map[string]domain.Coordinates)
	locate := func(address string) (domain.Coordinates, error) {
		if c, ok := points[address]; ok {
			return c, nil
		}
		c, err := r.geo.Locate(ctx, address)
		if err != nil {
			return domain.Coordinates{}, classifyGeo("locate "+address, err)
		}
		points[address] = c
		return c, nil
	}

	stop := func(t domain.WaypointType, o *domain.Order) (domain.Waypoint, error) {
		address := o.OriginAddress
		if t == domain.WaypointDelivery {
			address = o.DestinationAddress
		}
		c, err := locate(address)
		if err != nil {
			return domain.Waypoint{}, err
		}
		return domain.Waypoint{Type: t, OrderID: o.ID, Address: address, Coordinates: c}, nil
	}

	first := orders[0]
	start, err := stop(domain.WaypointPickup, first)
	if err != nil {
		return nil, err
	}
	waypoints := []domain.Waypoint{start}

	visited := map[int]bool{0: true}
	current := first
	for len(visited) < len(orders) {
		from, err := locate(current.DestinationAddress)
		if err != nil {
			return nil, err
		}

		nearest := -1
		best := math.Inf(1)
		for i, o := range orders {
			if visited[i] {
				continue
			}
			to, err := locate(o.OriginAddress)
			if err != nil {
				return nil, err
			}
			if d := r.geo.Between(from, to); d < best {
				best = d
				nearest = i
			}
		}

		next := orders[nearest]
		pickup, err := stop(domain.WaypointPickup, next)
		if err != nil {
			return nil, err
		}
		delivery, err := stop(domain.WaypointDelivery, next)
		if err != nil {
			return nil, err
		}
		waypoints = append(waypoints, pickup, delivery)

		visited[nearest] = true
		current = next
	}

	last, err := stop(domain.WaypointDelivery, first)
	if err != nil {
		return nil, err
	}
	waypoints = append(waypoints, last)

	total := 0.0
	for i := 1; i < len(waypoints); i++ {
		total += r.geo.Between(waypoints[i-1].Coordinates, waypoints[i].Coordinates)
	}

	return &domain.RoutePlan{
		Waypoints:        waypoints,
		TotalDistanceKm:  round2(total),
		EstimatedMinutes: estimateMinutes(total, len(waypoints)),
	}, nil
}

// estimateMinutes is the driving time at the average speed plus a fixed
// dwell per stop, rounded up.
func estimateMinutes(distanceKm float64, stops int) int {
	driving := distanceKm / averageSpeedKmh * 60
	return int(math.Ceil(driving + float64(stops*dwellMinutes)))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
