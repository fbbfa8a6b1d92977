package service

import (
	"context"
	"errors"
	"time"

	"fleet/internal/domain"
)

// unlocatedDistanceKm is charged to vehicles without a known position, which
// zeroes their distance score.
const unlocatedDistanceKm = 100.0

// VehicleMatch is the best vehicle and driver pair for an order.
type VehicleMatch struct {
	Vehicle    *domain.Vehicle
	Driver     *domain.Driver
	DistanceKm float64
	Score      Score
}

// FindOptimalVehicle scores every available vehicle that can carry the order
// against the available drivers and returns the best pair.
//
// A vehicle is paired with its regular driver when that driver is available,
// otherwise with the best available driver. Ties go to the lower vehicle ID.
func (s *DispatchService) FindOptimalVehicle(ctx context.Context, orderID string, scheduled time.Time) (*VehicleMatch, error) {
	if orderID == "" {
		return nil, kinded(ErrValidation, "invalid order id")
	}

	ctx, cancel := s.bounded(ctx)
	defer cancel()

	order, err := s.repos.Orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, classify("load order", err, ErrOrderNotFound)
	}
	if order.Status != domain.OrderStatusConfirmed {
		return nil, ErrOrderNotConfirmed
	}
	return s.match(ctx, order, scheduled)
}

func (s *DispatchService) match(ctx context.Context, order *domain.Order, scheduled time.Time) (*VehicleMatch, error) {
	vehicles, err := s.repos.Vehicles.ListByStatus(ctx, domain.VehicleStatusAvailable)
	if err != nil {
		return nil, classify("list vehicles", err, nil)
	}
	drivers, err := s.repos.Drivers.ListByStatus(ctx, domain.DriverStatusAvailable)
	if err != nil {
		return nil, classify("list drivers", err, nil)
	}
	if len(drivers) == 0 {
		return nil, ErrNoEligibleDriver
	}

	driversByID := make(map[string]*domain.Driver, len(drivers))
	var bestDriver *domain.Driver
	for _, d := range drivers {
		driversByID[d.ID] = d
		if bestDriver == nil || DriverScore(d) > DriverScore(bestDriver) ||
			(DriverScore(d) == DriverScore(bestDriver) && d.ID < bestDriver.ID) {
			bestDriver = d
		}
	}

	origin, err := s.geo.Locate(ctx, order.OriginAddress)
	if err != nil {
		return nil, classifyGeo("locate order origin", err)
	}

	var best *VehicleMatch
	for _, v := range vehicles {
		if !v.Covers(order.CargoWeight, order.CargoVolume) {
			continue
		}

		driver := bestDriver
		if regular, ok := driversByID[v.DriverID]; ok {
			driver = regular
		}

		distance := unlocatedDistanceKm
		if at := s.lastKnownPosition(ctx, v); at != nil {
			distance = round2(s.geo.Between(*at, origin))
		}

		score := s.scorer.Score(v, driver, distance)
		if best == nil || score.Total > best.Score.Total ||
			(score.Total == best.Score.Total && v.ID < best.Vehicle.ID) {
			best = &VehicleMatch{Vehicle: v, Driver: driver, DistanceKm: distance, Score: score}
		}
	}
	if best == nil {
		return nil, ErrNoEligibleVehicle
	}

	s.log.Debugf(ctx, "order %s matched vehicle=%s driver=%s score=%.1f for %s",
		order.ID, best.Vehicle.ID, best.Driver.ID, best.Score.Total, scheduled.Format(time.RFC3339))
	return best, nil
}

// lastKnownPosition prefers the live position store over the stored vehicle
// location. Position store failures are logged and ignored.
func (s *DispatchService) lastKnownPosition(ctx context.Context, v *domain.Vehicle) *domain.Coordinates {
	if s.positions != nil {
		at, err := s.positions.Position(ctx, v.ID)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return v.Location
			}
			s.log.Warnf(ctx, "vehicle %s position lookup failed: %v", v.ID, err)
		} else if at != nil {
			return at
		}
	}
	return v.Location
}

// OptimizeStatus is the outcome of one order in an optimization run.
type OptimizeStatus string

const (
	OptimizeDispatched OptimizeStatus = "DISPATCHED"
	OptimizeFailed     OptimizeStatus = "FAILED"
)

// OptimizeResult is the outcome for one order of a day batch.
type OptimizeResult struct {
	OrderID    string         `json:"order_id"`
	DispatchID string         `json:"dispatch_id,omitempty"`
	Error      string         `json:"error,omitempty"`
	Status     OptimizeStatus `json:"status"`
	Err        error          `json:"-"`
}

// OptimizeDispatch dispatches the day's pending orders one by one, most
// urgent first. Each order gets the best pair still available and its own
// dispatch; a failed order does not stop the run.
func (s *DispatchService) OptimizeDispatch(ctx context.Context, day time.Time) ([]OptimizeResult, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)

	listCtx, cancel := s.bounded(ctx)
	orders, err := s.repos.Orders.ListPendingBetween(listCtx, start, end)
	cancel()
	if err != nil {
		return nil, classify("list pending orders", err, nil)
	}

	results := make([]OptimizeResult, 0, len(orders))
	for _, o := range orders {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		res := OptimizeResult{OrderID: o.ID}
		id, err := s.dispatchOrder(ctx, o)
		if err != nil {
			res.Status = OptimizeFailed
			res.Error = err.Error()
			res.Err = err
			s.log.Warnf(ctx, "optimize: order %s not dispatched: %v", o.ID, err)
		} else {
			res.Status = OptimizeDispatched
			res.DispatchID = id
		}
		results = append(results, res)
	}

	s.log.Infof(ctx, "optimize %s: %d orders considered", start.Format(time.DateOnly), len(orders))
	return results, nil
}

func (s *DispatchService) dispatchOrder(ctx context.Context, o *domain.Order) (string, error) {
	matchCtx, cancel := s.bounded(ctx)
	m, err := s.match(matchCtx, o, o.ExpectedTime)
	cancel()
	if err != nil {
		return "", err
	}

	res, err := s.CreateDispatch(ctx, CreateDispatchRequest{
		OrderIDs:           []string{o.ID},
		VehicleID:          m.Vehicle.ID,
		DriverID:           m.Driver.ID,
		CustomerID:         o.CustomerID,
		PlannedDeparture:   o.ExpectedTime,
		OriginAddress:      o.OriginAddress,
		DestinationAddress: o.DestinationAddress,
		Priority:           o.Priority,
	})
	if err != nil {
		return "", err
	}
	return res.Dispatch.ID, nil
}
