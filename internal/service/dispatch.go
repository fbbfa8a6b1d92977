package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"fleet/internal/config"
	"fleet/internal/domain"
	"fleet/internal/geo"
	"fleet/internal/logger"
	"fleet/internal/metrics"
	"fleet/internal/redis"
	"fleet/internal/repository"
)

const dispatchSpeedKmh = 60.0

// DispatchService creates dispatches and drives them through their lifecycle.
type DispatchService struct {
	tx        repository.Transactor
	repos     repository.Repositories
	geo       geo.Estimator
	positions redis.PositionStoreInterface
	locks     redis.LockStoreInterface
	notifier  *NotificationService
	metrics   *metrics.Recorder
	log       logger.Logger
	cfg       config.DispatchConfig
	timeout   time.Duration

	scorer  FleetScorer
	router  *RouteSequencer
	numbers *NumberGenerator
	now     func() time.Time
}

// NewDispatchService creates a new DispatchService. positions, locks,
// notifier and rec may be nil.
func NewDispatchService(
	tx repository.Transactor,
	repos repository.Repositories,
	estimator geo.Estimator,
	positions redis.PositionStoreInterface,
	locks redis.LockStoreInterface,
	notifier *NotificationService,
	rec *metrics.Recorder,
	log logger.Logger,
	cfg config.DispatchConfig,
	timeout time.Duration,
) *DispatchService {
	return &DispatchService{
		tx:        tx,
		repos:     repos,
		geo:       estimator,
		positions: positions,
		locks:     locks,
		notifier:  notifier,
		metrics:   rec,
		log:       log,
		cfg:       cfg,
		timeout:   timeout,
		router:    NewRouteSequencer(estimator),
		numbers:   NewNumberGenerator(),
		now:       time.Now,
	}
}

// CreateDispatchRequest contains the parameters for creating a dispatch.
type CreateDispatchRequest struct {
	OrderIDs           []string
	VehicleID          string
	DriverID           string
	CustomerID         string // Optional: defaults to the first order's customer
	PlannedDeparture   time.Time
	OriginAddress      string
	DestinationAddress string
	Priority           domain.Priority // Optional: defaults to the most urgent order
	TotalWeight        *float64        // Optional overrides of the order sums
	TotalVolume        *float64
	TotalValue         *float64
	Instructions       string
	Requirements       string
	Notes              string
}

// CreateDispatchResult contains the created dispatch and its shipments.
type CreateDispatchResult struct {
	Dispatch  *domain.Dispatch
	Shipments []*domain.Shipment
}

// CreateDispatch validates the request against the current state of orders,
// vehicle and driver, then writes the dispatch, its shipments and all status
// changes in one transaction.
func (s *DispatchService) CreateDispatch(ctx context.Context, req CreateDispatchRequest) (*CreateDispatchResult, error) {
	if err := validateCreateRequest(req); err != nil {
		return nil, err
	}

	orders, vehicle, driver, err := s.loadParticipants(ctx, req)
	if err != nil {
		return nil, err
	}

	cargoWeight, cargoVolume, value := cargoTotals(orders)
	weight, volume := cargoWeight, cargoVolume
	if req.TotalWeight != nil {
		weight = *req.TotalWeight
	}
	if req.TotalVolume != nil {
		volume = *req.TotalVolume
	}
	if req.TotalValue != nil {
		value = *req.TotalValue
	}
	// Shipments carry the orders' own cargo, so an override never lowers the
	// load checked against the vehicle.
	if !vehicle.Covers(max(weight, cargoWeight), max(volume, cargoVolume)) {
		return nil, ErrCapacityExceeded
	}

	release, err := s.lockResources(ctx, req.VehicleID, req.DriverID)
	if err != nil {
		return nil, err
	}
	defer release()

	dispatch, err := s.plan(ctx, req, orders, vehicle)
	if err != nil {
		return nil, err
	}
	dispatch.TotalWeight = weight
	dispatch.TotalVolume = volume
	dispatch.TotalValue = value

	shipments := s.buildShipments(dispatch, orders)

	txCtx, cancel := s.bounded(ctx)
	defer cancel()

	err = s.tx.WithinTx(txCtx, func(ctx context.Context, r repository.Repositories) error {
		if err := r.Orders.UpdateStatusIf(ctx, req.OrderIDs, domain.OrderStatusConfirmed, domain.OrderStatusInTransit); err != nil {
			return classifyGuard("update orders", err, ErrOrderNotConfirmed)
		}
		if err := r.Vehicles.UpdateStatusIf(ctx, req.VehicleID, domain.VehicleStatusAvailable, domain.VehicleStatusInTransit, req.DriverID); err != nil {
			return classifyGuard("update vehicle", err, ErrVehicleUnavailable)
		}
		if err := r.Drivers.UpdateStatusIf(ctx, req.DriverID, domain.DriverStatusAvailable, domain.DriverStatusOnDuty); err != nil {
			return classifyGuard("update driver", err, ErrDriverUnavailable)
		}
		if err := r.Dispatches.Create(ctx, dispatch); err != nil {
			return classify("create dispatch", err, nil)
		}
		if err := r.Shipments.CreateBatch(ctx, shipments); err != nil {
			return classify("create shipments", err, nil)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.DispatchCreated()
	ctx = logger.WithContext(ctx, logger.DispatchIDKey, dispatch.ID)
	s.log.Infof(ctx, "dispatch %s created: vehicle=%s driver=%s orders=%d distance=%.2fkm",
		dispatch.DispatchNumber, dispatch.VehicleID, dispatch.DriverID, len(shipments), dispatch.Distance)
	if s.notifier != nil {
		s.notifier.NotifyDispatchCreated(ctx, dispatch, driver)
	}

	return &CreateDispatchResult{Dispatch: dispatch, Shipments: shipments}, nil
}

func validateCreateRequest(req CreateDispatchRequest) error {
	if len(req.OrderIDs) == 0 {
		return ErrNoOrders
	}
	if len(req.OrderIDs) > maxShipmentsPerDispatch {
		return ErrTooManyOrders
	}
	seen := make(map[string]bool, len(req.OrderIDs))
	for _, id := range req.OrderIDs {
		if id == "" {
			return kinded(ErrValidation, "invalid order id")
		}
		if seen[id] {
			return ErrDuplicateOrder
		}
		seen[id] = true
	}
	if req.VehicleID == "" {
		return ErrInvalidVehicleID
	}
	if req.DriverID == "" {
		return ErrInvalidDriverID
	}
	if strings.TrimSpace(req.OriginAddress) == "" || strings.TrimSpace(req.DestinationAddress) == "" {
		return ErrInvalidAddress
	}
	for _, v := range []*float64{req.TotalWeight, req.TotalVolume, req.TotalValue} {
		if v != nil && *v < 0 {
			return ErrInvalidCargo
		}
	}
	return nil
}

// loadParticipants reads and checks the orders, vehicle and driver. The
// checks give precise errors early; the guarded updates in the transaction
// are what actually protects against concurrent dispatches.
func (s *DispatchService) loadParticipants(ctx context.Context, req CreateDispatchRequest) ([]*domain.Order, *domain.Vehicle, *domain.Driver, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	found, err := s.repos.Orders.GetByIDs(ctx, req.OrderIDs)
	if err != nil {
		return nil, nil, nil, classify("load orders", err, ErrOrderNotFound)
	}
	byID := make(map[string]*domain.Order, len(found))
	for _, o := range found {
		byID[o.ID] = o
	}
	orders := make([]*domain.Order, 0, len(req.OrderIDs))
	for _, id := range req.OrderIDs {
		o, ok := byID[id]
		if !ok {
			return nil, nil, nil, ErrOrderNotFound
		}
		if o.Status != domain.OrderStatusConfirmed {
			return nil, nil, nil, ErrOrderNotConfirmed
		}
		orders = append(orders, o)
	}

	vehicle, err := s.repos.Vehicles.GetByID(ctx, req.VehicleID)
	if err != nil {
		return nil, nil, nil, classify("load vehicle", err, ErrVehicleNotFound)
	}
	if vehicle.Status != domain.VehicleStatusAvailable {
		return nil, nil, nil, ErrVehicleUnavailable
	}

	driver, err := s.repos.Drivers.GetByID(ctx, req.DriverID)
	if err != nil {
		return nil, nil, nil, classify("load driver", err, ErrDriverNotFound)
	}
	if driver.Status != domain.DriverStatusAvailable {
		return nil, nil, nil, ErrDriverUnavailable
	}

	return orders, vehicle, driver, nil
}

// plan prices the dispatch and sequences its stops.
func (s *DispatchService) plan(ctx context.Context, req CreateDispatchRequest, orders []*domain.Order, vehicle *domain.Vehicle) (*domain.Dispatch, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	distance, err := s.geo.Distance(ctx, req.OriginAddress, req.DestinationAddress)
	if err != nil {
		return nil, classifyGeo("estimate distance", err)
	}
	distance = round2(distance)

	tolls, err := s.geo.EstimateTolls(ctx, distance)
	if err != nil {
		return nil, classifyGeo("estimate tolls", err)
	}

	var route *domain.RoutePlan
	if len(orders) > 1 {
		if route, err = s.router.Sequence(ctx, orders); err != nil {
			return nil, err
		}
	}

	now := s.now()
	planned := req.PlannedDeparture
	if planned.IsZero() {
		planned = now
	}
	hours := math.Ceil(distance / dispatchSpeedKmh)

	cost := s.price(vehicle, distance, tolls)

	customerID := req.CustomerID
	if customerID == "" {
		customerID = orders[0].CustomerID
	}
	priority := req.Priority
	if priority == "" {
		priority = highestPriority(orders)
	}

	return &domain.Dispatch{
		ID:                 uuid.New().String(),
		DispatchNumber:     s.numbers.Dispatch(),
		CustomerID:         customerID,
		VehicleID:          vehicle.ID,
		DriverID:           req.DriverID,
		OriginAddress:      req.OriginAddress,
		DestinationAddress: req.DestinationAddress,
		Distance:           distance,
		EstimatedDuration:  hours,
		PlannedDeparture:   planned,
		EstimatedArrival:   planned.Add(time.Duration(hours * float64(time.Hour))),
		Cost:               cost,
		Status:             domain.DispatchStatusScheduled,
		Priority:           priority,
		Route:              route,
		Instructions:       req.Instructions,
		Requirements:       req.Requirements,
		Notes:              req.Notes,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

func (s *DispatchService) price(v *domain.Vehicle, distance, tolls float64) domain.CostBreakdown {
	divisor := s.cfg.RateDivisor
	if divisor <= 0 {
		divisor = 300
	}
	base := round2(v.DailyRate / divisor * distance)
	fuel := round2(distance * s.cfg.FuelLitresPerKm * s.cfg.FuelPrice)
	tolls = round2(tolls)
	return domain.CostBreakdown{
		BaseRate:      base,
		FuelSurcharge: fuel,
		TollFees:      tolls,
		TotalAmount:   round2(base + fuel + tolls),
	}
}

func (s *DispatchService) buildShipments(d *domain.Dispatch, orders []*domain.Order) []*domain.Shipment {
	hours := d.EstimatedDuration
	if hours <= 0 {
		hours = s.cfg.ShipmentDefaultHours
	}
	if hours <= 0 {
		hours = 24
	}
	arrival := d.PlannedDeparture.Add(time.Duration(hours * float64(time.Hour)))

	numbers := s.numbers.Shipments(len(orders))
	shipments := make([]*domain.Shipment, 0, len(orders))
	for i, o := range orders {
		shipments = append(shipments, &domain.Shipment{
			ID:                 uuid.New().String(),
			ShipmentNumber:     numbers[i],
			OrderID:            o.ID,
			DispatchID:         d.ID,
			VehicleID:          d.VehicleID,
			DriverID:           d.DriverID,
			OriginAddress:      o.OriginAddress,
			DestinationAddress: o.DestinationAddress,
			Weight:             o.CargoWeight,
			Volume:             o.CargoVolume,
			Value:              o.CargoValue,
			Sequence:           i + 1,
			Status:             domain.ShipmentStatusScheduled,
			EstimatedDeparture: d.PlannedDeparture,
			EstimatedArrival:   arrival,
			CreatedAt:          d.CreatedAt,
		})
	}
	return shipments
}

// lockResources takes the vehicle and driver locks. The returned func
// releases whatever was acquired.
func (s *DispatchService) lockResources(ctx context.Context, vehicleID, driverID string) (func(), error) {
	if s.locks == nil {
		return func() {}, nil
	}

	ttl := s.cfg.LockTTL
	if ttl <= 0 {
		ttl = 15 * time.Second
	}

	lockCtx, cancel := s.bounded(ctx)
	defer cancel()

	var held []*redis.Lock
	release := func() {
		// Release must run even when the request context is done.
		relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		for _, l := range held {
			if err := s.locks.Release(relCtx, l); err != nil {
				s.log.Warnf(ctx, "release dispatch lock: %v", err)
			}
		}
	}

	vl, err := s.locks.AcquireVehicleLock(lockCtx, vehicleID, ttl)
	if err != nil {
		return nil, &DependencyError{Op: "lock vehicle", Err: err}
	}
	if vl == nil {
		return nil, ErrResourceBusy
	}
	held = append(held, vl)

	dl, err := s.locks.AcquireDriverLock(lockCtx, driverID, ttl)
	if err != nil {
		release()
		return nil, &DependencyError{Op: "lock driver", Err: err}
	}
	if dl == nil {
		release()
		return nil, ErrResourceBusy
	}
	held = append(held, dl)

	return release, nil
}

// TransitionRequest contains the parameters for a dispatch status change.
type TransitionRequest struct {
	DispatchID     string
	To             domain.DispatchStatus
	ActualDistance *float64 // km, recorded on completion
	ActualDuration *float64 // hours, recorded on completion
	Reason         string   // recorded on cancellation
}

// TransitionDispatch moves a dispatch to a new status and applies the
// resource, shipment and order side effects of entering it, atomically.
func (s *DispatchService) TransitionDispatch(ctx context.Context, req TransitionRequest) (*domain.Dispatch, error) {
	if req.DispatchID == "" {
		return nil, ErrInvalidDispatchID
	}
	if !req.To.Valid() {
		return nil, ErrInvalidStatus
	}
	if (req.ActualDistance != nil && *req.ActualDistance < 0) || (req.ActualDuration != nil && *req.ActualDuration < 0) {
		return nil, ErrInvalidActuals
	}

	ctx = logger.WithContext(ctx, logger.DispatchIDKey, req.DispatchID)
	txCtx, cancel := s.bounded(ctx)
	defer cancel()

	var (
		dispatch *domain.Dispatch
		from     domain.DispatchStatus
	)
	err := s.tx.WithinTx(txCtx, func(ctx context.Context, r repository.Repositories) error {
		d, err := r.Dispatches.GetByID(ctx, req.DispatchID)
		if err != nil {
			return classify("load dispatch", err, ErrDispatchNotFound)
		}

		t, ok := domain.LookupTransition(d.Status, req.To)
		if !ok {
			return &TransitionError{From: d.Status, To: req.To}
		}
		from = d.Status

		s.applyEffects(d, t, req)
		if err := r.Dispatches.UpdateIf(ctx, d, from); err != nil {
			if errors.Is(err, repository.ErrStatusConflict) {
				return &TransitionError{From: from, To: req.To}
			}
			return classify("update dispatch", err, ErrDispatchNotFound)
		}

		if t.Vehicle != "" {
			if err := r.Vehicles.UpdateStatus(ctx, d.VehicleID, t.Vehicle); err != nil {
				return classify("update vehicle", err, ErrVehicleNotFound)
			}
		}
		if t.Driver != "" {
			if err := r.Drivers.UpdateStatus(ctx, d.DriverID, t.Driver); err != nil {
				return classify("update driver", err, ErrDriverNotFound)
			}
		}
		if t.Shipment != "" {
			var departure, arrival time.Time
			if t.HasEffect(domain.EffectStampDeparture) {
				departure = d.ActualDeparture
			}
			if t.HasEffect(domain.EffectStampArrival) {
				arrival = d.ActualArrival
			}
			if err := r.Shipments.UpdateStatusByDispatch(ctx, d.ID, t.Shipment, departure, arrival); err != nil {
				return classify("update shipments", err, nil)
			}
		}
		if t.Order != "" {
			shipments, err := r.Shipments.ListByDispatch(ctx, d.ID)
			if err != nil {
				return classify("list shipments", err, nil)
			}
			ids := make([]string, 0, len(shipments))
			for _, sh := range shipments {
				ids = append(ids, sh.OrderID)
			}
			if len(ids) > 0 {
				if err := r.Orders.UpdateStatus(ctx, ids, t.Order); err != nil {
					return classify("update orders", err, nil)
				}
			}
		}

		dispatch = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Transition(string(from), string(req.To))
	s.log.Infof(ctx, "dispatch %s: %s -> %s", dispatch.DispatchNumber, from, req.To)
	if s.notifier != nil {
		s.notifier.NotifyDispatchTransition(ctx, dispatch, from)
	}
	return dispatch, nil
}

func (s *DispatchService) applyEffects(d *domain.Dispatch, t domain.Transition, req TransitionRequest) {
	now := s.now()
	d.Status = t.To
	d.UpdatedAt = now

	if t.HasEffect(domain.EffectStampDeparture) && d.ActualDeparture.IsZero() {
		d.ActualDeparture = now
	}
	if t.HasEffect(domain.EffectStampArrival) {
		d.ActualArrival = now
		d.CompletedAt = now
	}
	if t.HasEffect(domain.EffectRecordActuals) {
		if req.ActualDistance != nil {
			d.Distance = *req.ActualDistance
		}
		if req.ActualDuration != nil {
			d.EstimatedDuration = *req.ActualDuration
		}
	}
	if t.HasEffect(domain.EffectStampCancelled) {
		d.CancelledAt = now
		d.CancelReason = req.Reason
	}
}

// bounded limits one phase of collaborator calls to the dependency timeout.
func (s *DispatchService) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// classifyGuard maps a failed status guard to the given conflict error.
func classifyGuard(op string, err error, conflict error) error {
	if errors.Is(err, repository.ErrStatusConflict) {
		return conflict
	}
	return classify(op, err, conflict)
}

func cargoTotals(orders []*domain.Order) (weight, volume, value float64) {
	for _, o := range orders {
		weight += o.CargoWeight
		volume += o.CargoVolume
		value += o.CargoValue
	}
	return weight, volume, value
}

func highestPriority(orders []*domain.Order) domain.Priority {
	best := domain.PriorityNormal
	for _, o := range orders {
		if o.Priority.Rank() > best.Rank() {
			best = o.Priority
		}
	}
	return best
}
