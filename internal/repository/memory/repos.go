package memory

import (
	"context"
	"sort"
	"time"

	"fleet/internal/domain"
	"fleet/internal/repository"
)

type orderRepo struct{ base }

func (r *orderRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	done, err := r.enter(ctx, "orders.GetByID", id)
	if err != nil {
		return nil, err
	}
	defer done()

	o, ok := r.s.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clone(o), nil
}

func (r *orderRepo) GetByIDs(ctx context.Context, ids []string) ([]*domain.Order, error) {
	done, err := r.enter(ctx, "orders.GetByIDs", ids)
	if err != nil {
		return nil, err
	}
	defer done()

	var out []*domain.Order
	for _, id := range ids {
		if o, ok := r.s.orders[id]; ok {
			out = append(out, clone(o))
		}
	}
	return out, nil
}

func (r *orderRepo) UpdateStatusIf(ctx context.Context, ids []string, from, to domain.OrderStatus) error {
	done, err := r.enter(ctx, "orders.UpdateStatusIf", ids)
	if err != nil {
		return err
	}
	defer done()

	for _, id := range ids {
		if o, ok := r.s.orders[id]; !ok || o.Status != from {
			return repository.ErrStatusConflict
		}
	}
	for _, id := range ids {
		o := clone(r.s.orders[id])
		o.Status = to
		r.s.orders[id] = o
	}
	return nil
}

func (r *orderRepo) UpdateStatus(ctx context.Context, ids []string, status domain.OrderStatus) error {
	done, err := r.enter(ctx, "orders.UpdateStatus", ids)
	if err != nil {
		return err
	}
	defer done()

	for _, id := range ids {
		if o, ok := r.s.orders[id]; ok {
			o = clone(o)
			o.Status = status
			r.s.orders[id] = o
		}
	}
	return nil
}

func (r *orderRepo) ListAvailable(ctx context.Context) ([]*domain.Order, error) {
	done, err := r.enter(ctx, "orders.ListAvailable", nil)
	if err != nil {
		return nil, err
	}
	defer done()

	out := r.pending(func(*domain.Order) bool { return true })
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ExpectedTime.Equal(out[j].ExpectedTime) {
			return out[i].ExpectedTime.Before(out[j].ExpectedTime)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *orderRepo) ListPendingBetween(ctx context.Context, from, to time.Time) ([]*domain.Order, error) {
	done, err := r.enter(ctx, "orders.ListPendingBetween", nil)
	if err != nil {
		return nil, err
	}
	defer done()

	out := r.pending(func(o *domain.Order) bool {
		return !o.ExpectedTime.Before(from) && o.ExpectedTime.Before(to)
	})
	sort.SliceStable(out, func(i, j int) bool {
		if pi, pj := out[i].Priority.Rank(), out[j].Priority.Rank(); pi != pj {
			return pi > pj
		}
		if !out[i].ExpectedTime.Equal(out[j].ExpectedTime) {
			return out[i].ExpectedTime.Before(out[j].ExpectedTime)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// pending returns CONFIRMED orders without a live shipment that match keep.
func (r *orderRepo) pending(keep func(*domain.Order) bool) []*domain.Order {
	live := make(map[string]bool)
	for _, sh := range r.s.shipments {
		if sh.Status != domain.ShipmentStatusCancelled {
			live[sh.OrderID] = true
		}
	}

	var out []*domain.Order
	for _, o := range r.s.orders {
		if o.Status == domain.OrderStatusConfirmed && !live[o.ID] && keep(o) {
			out = append(out, clone(o))
		}
	}
	return out
}

type vehicleRepo struct{ base }

func (r *vehicleRepo) GetByID(ctx context.Context, id string) (*domain.Vehicle, error) {
	done, err := r.enter(ctx, "vehicles.GetByID", id)
	if err != nil {
		return nil, err
	}
	defer done()

	v, ok := r.s.vehicles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clone(v), nil
}

func (r *vehicleRepo) ListByStatus(ctx context.Context, status domain.VehicleStatus) ([]*domain.Vehicle, error) {
	done, err := r.enter(ctx, "vehicles.ListByStatus", status)
	if err != nil {
		return nil, err
	}
	defer done()

	var out []*domain.Vehicle
	for _, v := range r.s.vehicles {
		if v.Status == status {
			out = append(out, clone(v))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *vehicleRepo) UpdateStatusIf(ctx context.Context, id string, from, to domain.VehicleStatus, driverID string) error {
	done, err := r.enter(ctx, "vehicles.UpdateStatusIf", id)
	if err != nil {
		return err
	}
	defer done()

	v, ok := r.s.vehicles[id]
	if !ok || v.Status != from {
		return repository.ErrStatusConflict
	}
	v = clone(v)
	v.Status = to
	if driverID != "" {
		v.DriverID = driverID
	}
	r.s.vehicles[id] = v
	return nil
}

func (r *vehicleRepo) UpdateStatus(ctx context.Context, id string, status domain.VehicleStatus) error {
	done, err := r.enter(ctx, "vehicles.UpdateStatus", id)
	if err != nil {
		return err
	}
	defer done()

	v, ok := r.s.vehicles[id]
	if !ok {
		return repository.ErrNotFound
	}
	v = clone(v)
	v.Status = status
	r.s.vehicles[id] = v
	return nil
}

type driverRepo struct{ base }

func (r *driverRepo) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	done, err := r.enter(ctx, "drivers.GetByID", id)
	if err != nil {
		return nil, err
	}
	defer done()

	d, ok := r.s.drivers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clone(d), nil
}

func (r *driverRepo) ListByStatus(ctx context.Context, status domain.DriverStatus) ([]*domain.Driver, error) {
	done, err := r.enter(ctx, "drivers.ListByStatus", status)
	if err != nil {
		return nil, err
	}
	defer done()

	var out []*domain.Driver
	for _, d := range r.s.drivers {
		if d.Status == status {
			out = append(out, clone(d))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *driverRepo) UpdateStatusIf(ctx context.Context, id string, from, to domain.DriverStatus) error {
	done, err := r.enter(ctx, "drivers.UpdateStatusIf", id)
	if err != nil {
		return err
	}
	defer done()

	d, ok := r.s.drivers[id]
	if !ok || d.Status != from {
		return repository.ErrStatusConflict
	}
	d = clone(d)
	d.Status = to
	r.s.drivers[id] = d
	return nil
}

func (r *driverRepo) UpdateStatus(ctx context.Context, id string, status domain.DriverStatus) error {
	done, err := r.enter(ctx, "drivers.UpdateStatus", id)
	if err != nil {
		return err
	}
	defer done()

	d, ok := r.s.drivers[id]
	if !ok {
		return repository.ErrNotFound
	}
	d = clone(d)
	d.Status = status
	r.s.drivers[id] = d
	return nil
}

type dispatchRepo struct{ base }

func (r *dispatchRepo) Create(ctx context.Context, d *domain.Dispatch) error {
	done, err := r.enter(ctx, "dispatches.Create", d)
	if err != nil {
		return err
	}
	defer done()

	r.s.dispatches[d.ID] = clone(d)
	return nil
}

func (r *dispatchRepo) GetByID(ctx context.Context, id string) (*domain.Dispatch, error) {
	done, err := r.enter(ctx, "dispatches.GetByID", id)
	if err != nil {
		return nil, err
	}
	defer done()

	d, ok := r.s.dispatches[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clone(d), nil
}

func (r *dispatchRepo) List(ctx context.Context, f repository.DispatchFilter) ([]*domain.Dispatch, int, error) {
	done, err := r.enter(ctx, "dispatches.List", f)
	if err != nil {
		return nil, 0, err
	}
	defer done()

	var matched []*domain.Dispatch
	for _, d := range r.s.dispatches {
		switch {
		case f.Status != "" && d.Status != f.Status,
			f.VehicleID != "" && d.VehicleID != f.VehicleID,
			f.DriverID != "" && d.DriverID != f.DriverID,
			!f.From.IsZero() && d.CreatedAt.Before(f.From),
			!f.To.IsZero() && d.CreatedAt.After(f.To):
			continue
		}
		matched = append(matched, d)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	total := len(matched)
	if f.Offset >= total {
		return nil, total, nil
	}
	end := total
	if f.Limit > 0 && f.Offset+f.Limit < end {
		end = f.Offset + f.Limit
	}

	page := make([]*domain.Dispatch, 0, end-f.Offset)
	for _, d := range matched[f.Offset:end] {
		page = append(page, clone(d))
	}
	return page, total, nil
}

func (r *dispatchRepo) UpdateIf(ctx context.Context, d *domain.Dispatch, from domain.DispatchStatus) error {
	done, err := r.enter(ctx, "dispatches.UpdateIf", d)
	if err != nil {
		return err
	}
	defer done()

	cur, ok := r.s.dispatches[d.ID]
	if !ok || cur.Status != from {
		return repository.ErrStatusConflict
	}
	r.s.dispatches[d.ID] = clone(d)
	return nil
}

func (r *dispatchRepo) Stats(ctx context.Context, from, to time.Time, top int) (*repository.DispatchStats, error) {
	done, err := r.enter(ctx, "dispatches.Stats", nil)
	if err != nil {
		return nil, err
	}
	defer done()

	in := func(t time.Time) bool {
		return (from.IsZero() || !t.Before(from)) && (to.IsZero() || !t.After(to))
	}

	var s repository.DispatchStats
	byVehicle := make(map[string]int)
	byDriver := make(map[string]int)
	counted := make(map[string]bool)
	for _, d := range r.s.dispatches {
		if !in(d.CreatedAt) {
			continue
		}
		counted[d.ID] = true
		s.Total++
		switch d.Status {
		case domain.DispatchStatusCompleted:
			s.Completed++
		case domain.DispatchStatusInTransit:
			s.InTransit++
		}
		byVehicle[d.VehicleID]++
		byDriver[d.DriverID]++
	}
	for _, sh := range r.s.shipments {
		if counted[sh.DispatchID] {
			s.Shipments++
		}
	}

	s.TopVehicles = topCounts(byVehicle, top)
	s.TopDrivers = topCounts(byDriver, top)
	return &s, nil
}

func topCounts(m map[string]int, n int) []repository.CountByID {
	out := make([]repository.CountByID, 0, len(m))
	for id, c := range m {
		out = append(out, repository.CountByID{ID: id, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].ID < out[j].ID
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

type shipmentRepo struct{ base }

func (r *shipmentRepo) CreateBatch(ctx context.Context, shipments []*domain.Shipment) error {
	done, err := r.enter(ctx, "shipments.CreateBatch", shipments)
	if err != nil {
		return err
	}
	defer done()

	for _, sh := range shipments {
		r.s.shipments[sh.ID] = clone(sh)
	}
	return nil
}

func (r *shipmentRepo) GetByID(ctx context.Context, id string) (*domain.Shipment, error) {
	done, err := r.enter(ctx, "shipments.GetByID", id)
	if err != nil {
		return nil, err
	}
	defer done()

	sh, ok := r.s.shipments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clone(sh), nil
}

func (r *shipmentRepo) ListByDispatch(ctx context.Context, dispatchID string) ([]*domain.Shipment, error) {
	done, err := r.enter(ctx, "shipments.ListByDispatch", dispatchID)
	if err != nil {
		return nil, err
	}
	defer done()

	var out []*domain.Shipment
	for _, sh := range r.s.shipments {
		if sh.DispatchID == dispatchID {
			out = append(out, clone(sh))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func (r *shipmentRepo) UpdateStatusByDispatch(ctx context.Context, dispatchID string, status domain.ShipmentStatus, departure, arrival time.Time) error {
	done, err := r.enter(ctx, "shipments.UpdateStatusByDispatch", dispatchID)
	if err != nil {
		return err
	}
	defer done()

	for id, sh := range r.s.shipments {
		if sh.DispatchID != dispatchID || sh.Status.IsTerminal() {
			continue
		}
		sh = clone(sh)
		sh.Status = status
		if sh.ActualDeparture.IsZero() {
			sh.ActualDeparture = departure
		}
		if !arrival.IsZero() {
			sh.ActualArrival = arrival
		}
		r.s.shipments[id] = sh
	}
	return nil
}

func (r *shipmentRepo) UpdateLocation(ctx context.Context, id string, at domain.Coordinates, ts time.Time) error {
	done, err := r.enter(ctx, "shipments.UpdateLocation", id)
	if err != nil {
		return err
	}
	defer done()

	sh, ok := r.s.shipments[id]
	if !ok {
		return repository.ErrNotFound
	}
	sh = clone(sh)
	loc := at
	sh.CurrentLocation = &loc
	sh.LocationUpdatedAt = ts
	r.s.shipments[id] = sh
	return nil
}

type trackingRepo struct{ base }

func (r *trackingRepo) InsertLog(ctx context.Context, l *domain.TrackingLog) error {
	done, err := r.enter(ctx, "tracking.InsertLog", l)
	if err != nil {
		return err
	}
	defer done()

	r.s.logs = append(r.s.logs, clone(l))
	return nil
}

func (r *trackingRepo) ListLogs(ctx context.Context, shipmentID string, limit int) ([]*domain.TrackingLog, error) {
	done, err := r.enter(ctx, "tracking.ListLogs", shipmentID)
	if err != nil {
		return nil, err
	}
	defer done()

	var out []*domain.TrackingLog
	for _, l := range r.s.logs {
		if l.ShipmentID == shipmentID {
			out = append(out, clone(l))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *trackingRepo) InsertAlerts(ctx context.Context, alerts []*domain.TrackingAlert) error {
	done, err := r.enter(ctx, "tracking.InsertAlerts", alerts)
	if err != nil {
		return err
	}
	defer done()

	for _, a := range alerts {
		r.s.alerts = append(r.s.alerts, clone(a))
	}
	return nil
}

func (r *trackingRepo) ListAlerts(ctx context.Context, shipmentID string) ([]*domain.TrackingAlert, error) {
	done, err := r.enter(ctx, "tracking.ListAlerts", shipmentID)
	if err != nil {
		return nil, err
	}
	defer done()

	var out []*domain.TrackingAlert
	for _, a := range r.s.alerts {
		if a.ShipmentID == shipmentID {
			out = append(out, clone(a))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TriggeredAt.After(out[j].TriggeredAt) })
	return out, nil
}
