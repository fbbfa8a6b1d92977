package service

import (
	"context"
	"time"

	"fleet/internal/domain"
	"fleet/internal/repository"
)

// Pagination defaults.
const (
	defaultPageLimit = 20
	maxPageLimit     = 100
	topEntries       = 5
)

// DispatchDetail is a dispatch with its shipments.
type DispatchDetail struct {
	Dispatch  *domain.Dispatch
	Shipments []*domain.Shipment
}

// GetDispatch returns a dispatch and its shipments by sequence.
func (s *DispatchService) GetDispatch(ctx context.Context, id string) (*DispatchDetail, error) {
	if id == "" {
		return nil, ErrInvalidDispatchID
	}

	ctx, cancel := s.bounded(ctx)
	defer cancel()

	d, err := s.repos.Dispatches.GetByID(ctx, id)
	if err != nil {
		return nil, classify("load dispatch", err, ErrDispatchNotFound)
	}
	shipments, err := s.repos.Shipments.ListByDispatch(ctx, id)
	if err != nil {
		return nil, classify("list shipments", err, nil)
	}
	return &DispatchDetail{Dispatch: d, Shipments: shipments}, nil
}

// ListDispatchesRequest filters and pages a dispatch listing.
type ListDispatchesRequest struct {
	Status    domain.DispatchStatus
	VehicleID string
	DriverID  string
	From      time.Time
	To        time.Time
	Page      int // 1-based
	Limit     int
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// DispatchPage is one page of dispatches, newest first.
type DispatchPage struct {
	Dispatches []*domain.Dispatch
	Pagination Pagination
}

// ListDispatches returns one page of dispatches matching the request.
func (s *DispatchService) ListDispatches(ctx context.Context, req ListDispatchesRequest) (*DispatchPage, error) {
	if req.Status != "" && !req.Status.Valid() {
		return nil, ErrInvalidStatus
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	ctx, cancel := s.bounded(ctx)
	defer cancel()

	dispatches, total, err := s.repos.Dispatches.List(ctx, repository.DispatchFilter{
		Status:    req.Status,
		VehicleID: req.VehicleID,
		DriverID:  req.DriverID,
		From:      req.From,
		To:        req.To,
		Offset:    (page - 1) * limit,
		Limit:     limit,
	})
	if err != nil {
		return nil, classify("list dispatches", err, nil)
	}

	return &DispatchPage{
		Dispatches: dispatches,
		Pagination: Pagination{
			Page:  page,
			Limit: limit,
			Total: total,
			Pages: (total + limit - 1) / limit,
		},
	}, nil
}

// AvailableOrders returns confirmed orders not yet attached to a shipment.
func (s *DispatchService) AvailableOrders(ctx context.Context) ([]*domain.Order, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	orders, err := s.repos.Orders.ListAvailable(ctx)
	if err != nil {
		return nil, classify("list available orders", err, nil)
	}
	return orders, nil
}

// VehicleAssignment is an available vehicle with its available regular driver.
type VehicleAssignment struct {
	Vehicle *domain.Vehicle
	Driver  *domain.Driver
}

// AvailableVehicles returns available vehicles whose regular driver is
// available too.
func (s *DispatchService) AvailableVehicles(ctx context.Context) ([]VehicleAssignment, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	vehicles, err := s.repos.Vehicles.ListByStatus(ctx, domain.VehicleStatusAvailable)
	if err != nil {
		return nil, classify("list vehicles", err, nil)
	}
	drivers, err := s.repos.Drivers.ListByStatus(ctx, domain.DriverStatusAvailable)
	if err != nil {
		return nil, classify("list drivers", err, nil)
	}

	byID := make(map[string]*domain.Driver, len(drivers))
	for _, d := range drivers {
		byID[d.ID] = d
	}

	out := make([]VehicleAssignment, 0, len(vehicles))
	for _, v := range vehicles {
		if d, ok := byID[v.DriverID]; ok {
			out = append(out, VehicleAssignment{Vehicle: v, Driver: d})
		}
	}
	return out, nil
}

// DispatchStatistics summarizes dispatch activity over a period.
type DispatchStatistics struct {
	TotalDispatches         int                    `json:"total_dispatches"`
	CompletedDispatches     int                    `json:"completed_dispatches"`
	InTransitDispatches     int                    `json:"in_transit_dispatches"`
	CompletionRate          float64                `json:"completion_rate"`
	TotalShipments          int                    `json:"total_shipments"`
	AvgShipmentsPerDispatch float64                `json:"avg_shipments_per_dispatch"`
	TopVehicles             []repository.CountByID `json:"top_vehicles"`
	TopDrivers              []repository.CountByID `json:"top_drivers"`
}

// Statistics aggregates dispatches created in [from, to]. Zero bounds are open.
func (s *DispatchService) Statistics(ctx context.Context, from, to time.Time) (*DispatchStatistics, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	st, err := s.repos.Dispatches.Stats(ctx, from, to, topEntries)
	if err != nil {
		return nil, classify("dispatch statistics", err, nil)
	}

	out := &DispatchStatistics{
		TotalDispatches:     st.Total,
		CompletedDispatches: st.Completed,
		InTransitDispatches: st.InTransit,
		TotalShipments:      st.Shipments,
		TopVehicles:         st.TopVehicles,
		TopDrivers:          st.TopDrivers,
	}
	if st.Total > 0 {
		out.CompletionRate = round2(float64(st.Completed) / float64(st.Total) * 100)
		out.AvgShipmentsPerDispatch = round2(float64(st.Shipments) / float64(st.Total))
	}
	return out, nil
}

// RouteSummary is a sequenced route with its cargo totals.
type RouteSummary struct {
	Plan        *domain.RoutePlan
	TotalWeight float64
	TotalVolume float64
}

// OptimizeRoute checks that the vehicle can carry the orders together and
// sequences their stops.
func (s *DispatchService) OptimizeRoute(ctx context.Context, orderIDs []string, vehicleID string) (*RouteSummary, error) {
	if len(orderIDs) == 0 {
		return nil, ErrNoOrders
	}
	if vehicleID == "" {
		return nil, ErrInvalidVehicleID
	}

	ctx, cancel := s.bounded(ctx)
	defer cancel()

	found, err := s.repos.Orders.GetByIDs(ctx, orderIDs)
	if err != nil {
		return nil, classify("load orders", err, ErrOrderNotFound)
	}
	byID := make(map[string]*domain.Order, len(found))
	for _, o := range found {
		byID[o.ID] = o
	}
	orders := make([]*domain.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		o, ok := byID[id]
		if !ok {
			return nil, ErrOrderNotFound
		}
		orders = append(orders, o)
	}

	vehicle, err := s.repos.Vehicles.GetByID(ctx, vehicleID)
	if err != nil {
		return nil, classify("load vehicle", err, ErrVehicleNotFound)
	}

	weight, volume, _ := cargoTotals(orders)
	if !vehicle.Covers(weight, volume) {
		return nil, ErrCapacityExceeded
	}

	plan, err := s.router.Sequence(ctx, orders)
	if err != nil {
		return nil, err
	}
	return &RouteSummary{Plan: plan, TotalWeight: weight, TotalVolume: volume}, nil
}
