package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet/internal/domain"
	"fleet/internal/repository"
)

func TestCreateDispatch_Success(t *testing.T) {
	f := newFixture(t)
	f.seedFleet()
	ctx := context.Background()

	res, err := f.dispatch.CreateDispatch(ctx, f.createRequest("o1", "o2"))
	require.NoError(t, err)

	d := res.Dispatch
	assert.Equal(t, domain.DispatchStatusScheduled, d.Status)
	assert.Regexp(t, `^DISP\d{9}$`, d.DispatchNumber)
	assert.Equal(t, "c1", d.CustomerID)
	assert.Equal(t, domain.PriorityHigh, d.Priority, "defaults to the most urgent order")
	assert.Equal(t, 700.0, d.TotalWeight)
	assert.Equal(t, 7.0, d.TotalVolume)
	assert.Equal(t, 1500.0, d.TotalValue)

	raw, err := f.geo.Distance(ctx, "Shanghai Pudong Depot", "Nanjing Xinjiekou")
	require.NoError(t, err)
	distance := round2(raw)
	assert.Equal(t, distance, d.Distance)
	assert.Equal(t, math.Ceil(distance/60), d.EstimatedDuration)

	base := round2(900.0 / 300 * distance)
	fuel := round2(distance * 0.3 * 7.5)
	tolls := round2(distance * 0.5)
	assert.Equal(t, base, d.Cost.BaseRate)
	assert.Equal(t, fuel, d.Cost.FuelSurcharge)
	assert.Equal(t, tolls, d.Cost.TollFees)
	assert.InDelta(t, base+fuel+tolls, d.Cost.TotalAmount, 0.011)

	require.NotNil(t, d.Route, "multi-order dispatches carry a route")
	require.Len(t, d.Route.Waypoints, 4)
	assert.Equal(t, domain.WaypointPickup, d.Route.Waypoints[0].Type)
	assert.Equal(t, "o1", d.Route.Waypoints[0].OrderID)
	assert.Equal(t, "o1", d.Route.Waypoints[3].OrderID)
	assert.Equal(t, domain.WaypointDelivery, d.Route.Waypoints[3].Type)

	require.Len(t, res.Shipments, 2)
	for i, sh := range res.Shipments {
		assert.Equal(t, i+1, sh.Sequence)
		assert.Equal(t, domain.ShipmentStatusScheduled, sh.Status)
		assert.Equal(t, d.ID, sh.DispatchID)
		assert.Regexp(t, `^SHIP\d{9}$`, sh.ShipmentNumber)
		assert.Equal(t, testNow, sh.EstimatedDeparture)
		assert.Equal(t, testNow.Add(time.Duration(d.EstimatedDuration)*time.Hour), sh.EstimatedArrival)
	}

	repos := f.store.Repositories()
	for _, id := range []string{"o1", "o2"} {
		o, err := repos.Orders.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusInTransit, o.Status)
	}
	v, err := repos.Vehicles.GetByID(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, domain.VehicleStatusInTransit, v.Status)
	drv, err := repos.Drivers.GetByID(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, domain.DriverStatusOnDuty, drv.Status)

	assert.False(t, f.mr.Exists("lock:vehicle:v1"), "locks are released")
	assert.False(t, f.mr.Exists("lock:driver:d1"))
}

func TestCreateDispatch_SingleOrderHasNoRoute(t *testing.T) {
	f := newFixture(t)
	f.seedFleet()

	res, err := f.dispatch.CreateDispatch(context.Background(), f.createRequest("o1"))
	require.NoError(t, err)
	assert.Nil(t, res.Dispatch.Route)
	assert.Equal(t, domain.PriorityNormal, res.Dispatch.Priority)
}

func TestCreateDispatch_SameEndpointsUseDefaultShipmentWindow(t *testing.T) {
	f := newFixture(t)
	f.seedFleet()

	req := f.createRequest("o1")
	req.DestinationAddress = req.OriginAddress
	res, err := f.dispatch.CreateDispatch(context.Background(), req)
	require.NoError(t, err)

	assert.Zero(t, res.Dispatch.Distance)
	assert.Equal(t, testNow.Add(24*time.Hour), res.Shipments[0].EstimatedArrival)
}

func TestCreateDispatch_UnconfirmedOrderChangesNothing(t *testing.T) {
	for _, st := range []domain.OrderStatus{
		domain.OrderStatusPending,
		domain.OrderStatusInTransit,
		domain.OrderStatusDelivered,
		domain.OrderStatusCancelled,
	} {
		t.Run(string(st), func(t *testing.T) {
			f := newFixture(t)
			f.seedFleet()
			f.store.AddOrder(&domain.Order{ID: "o3", OriginAddress: "A", DestinationAddress: "B", Status: st})
			ctx := context.Background()

			_, err := f.dispatch.CreateDispatch(ctx, f.createRequest("o1", "o3"))
			require.ErrorIs(t, err, ErrOrderNotConfirmed)
			assert.ErrorIs(t, err, ErrConflict)

			assertUntouched(t, f, map[string]domain.OrderStatus{"o1": domain.OrderStatusConfirmed, "o3": st})
		})
	}
}

func assertUntouched(t *testing.T, f *fixture, orders map[string]domain.OrderStatus) {
	t.Helper()
	ctx := context.Background()
	repos := f.store.Repositories()

	for id, want := range orders {
		o, err := repos.Orders.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, o.Status, "order %s", id)
	}
	v, err := repos.Vehicles.GetByID(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, domain.VehicleStatusAvailable, v.Status)
	d, err := repos.Drivers.GetByID(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, domain.DriverStatusAvailable, d.Status)

	_, total, err := repos.Dispatches.List(ctx, repository.DispatchFilter{})
	require.NoError(t, err)
	assert.Zero(t, total, "no dispatch written")

	stats, err := repos.Dispatches.Stats(ctx, time.Time{}, time.Time{}, 1)
	require.NoError(t, err)
	assert.Zero(t, stats.Shipments, "no shipment written")
}

func TestCreateDispatch_Preconditions(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(f *fixture)
		req     func(f *fixture) CreateDispatchRequest
		wantErr error
		kind    error
	}{
		{
			name:    "vehicle in transit",
			mutate:  func(f *fixture) { f.setVehicleStatus(domain.VehicleStatusInTransit) },
			wantErr: ErrVehicleUnavailable,
			kind:    ErrConflict,
		},
		{
			name:    "vehicle in maintenance",
			mutate:  func(f *fixture) { f.setVehicleStatus(domain.VehicleStatusMaintenance) },
			wantErr: ErrVehicleUnavailable,
			kind:    ErrConflict,
		},
		{
			name:    "driver off duty",
			mutate:  func(f *fixture) { f.setDriverStatus(domain.DriverStatusOffDuty) },
			wantErr: ErrDriverUnavailable,
			kind:    ErrConflict,
		},
		{
			name: "weight over capacity",
			mutate: func(f *fixture) {
				f.store.AddOrder(&domain.Order{ID: "heavy", OriginAddress: "A", DestinationAddress: "B",
					CargoWeight: 800, CargoVolume: 1, Status: domain.OrderStatusConfirmed})
			},
			req:     func(f *fixture) CreateDispatchRequest { return f.createRequest("o1", "heavy") },
			wantErr: ErrCapacityExceeded,
			kind:    ErrConflict,
		},
		{
			name: "volume override over capacity",
			req: func(f *fixture) CreateDispatchRequest {
				r := f.createRequest("o1")
				r.TotalVolume = ptr(10.5)
				return r
			},
			wantErr: ErrCapacityExceeded,
			kind:    ErrConflict,
		},
		{
			name:    "unknown order",
			req:     func(f *fixture) CreateDispatchRequest { return f.createRequest("o1", "missing") },
			wantErr: ErrOrderNotFound,
			kind:    ErrNotFound,
		},
		{
			name: "unknown vehicle",
			req: func(f *fixture) CreateDispatchRequest {
				r := f.createRequest("o1")
				r.VehicleID = "v404"
				return r
			},
			wantErr: ErrVehicleNotFound,
			kind:    ErrNotFound,
		},
		{
			name: "unknown driver",
			req: func(f *fixture) CreateDispatchRequest {
				r := f.createRequest("o1")
				r.DriverID = "d404"
				return r
			},
			wantErr: ErrDriverNotFound,
			kind:    ErrNotFound,
		},
		{
			name:    "no orders",
			req:     func(f *fixture) CreateDispatchRequest { return f.createRequest() },
			wantErr: ErrNoOrders,
			kind:    ErrValidation,
		},
		{
			name: "too many orders",
			req: func(f *fixture) CreateDispatchRequest {
				ids := make([]string, maxShipmentsPerDispatch+1)
				for i := range ids {
					ids[i] = fmt.Sprintf("o%d", i)
				}
				return f.createRequest(ids...)
			},
			wantErr: ErrTooManyOrders,
			kind:    ErrValidation,
		},
		{
			name:    "duplicate order",
			req:     func(f *fixture) CreateDispatchRequest { return f.createRequest("o1", "o1") },
			wantErr: ErrDuplicateOrder,
			kind:    ErrValidation,
		},
		{
			name: "blank origin",
			req: func(f *fixture) CreateDispatchRequest {
				r := f.createRequest("o1")
				r.OriginAddress = "  "
				return r
			},
			wantErr: ErrInvalidAddress,
			kind:    ErrValidation,
		},
		{
			name: "negative weight override",
			req: func(f *fixture) CreateDispatchRequest {
				r := f.createRequest("o1")
				r.TotalWeight = ptr(-1.0)
				return r
			},
			wantErr: ErrInvalidCargo,
			kind:    ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.seedFleet()
			if tt.mutate != nil {
				tt.mutate(f)
			}
			req := f.createRequest("o1", "o2")
			if tt.req != nil {
				req = tt.req(f)
			}

			_, err := f.dispatch.CreateDispatch(context.Background(), req)
			require.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, tt.kind)

			_, total, err := f.store.Repositories().Dispatches.List(context.Background(), repository.DispatchFilter{})
			require.NoError(t, err)
			assert.Zero(t, total)
		})
	}
}

func (f *fixture) setVehicleStatus(st domain.VehicleStatus) {
	v, _ := f.store.Repositories().Vehicles.GetByID(context.Background(), "v1")
	v.Status = st
	f.store.AddVehicle(v)
}

func (f *fixture) setDriverStatus(st domain.DriverStatus) {
	d, _ := f.store.Repositories().Drivers.GetByID(context.Background(), "d1")
	d.Status = st
	f.store.AddDriver(d)
}

func TestCreateDispatch_AcceptedCargoFitsVehicle(t *testing.T) {
	f := newFixture(t)
	f.seedFleet()
	ctx := context.Background()

	res, err := f.dispatch.CreateDispatch(ctx, f.createRequest("o1", "o2"))
	require.NoError(t, err)

	var weight, volume float64
	for _, sh := range res.Shipments {
		weight += sh.Weight
		volume += sh.Volume
	}
	assert.LessOrEqual(t, weight, 1000.0)
	assert.LessOrEqual(t, volume, 10.0)
}

func TestCreateDispatch_OverridesCannotHideOrderCargo(t *testing.T) {
	f := newFixture(t)
	f.seedFleet()
	f.store.AddOrder(&domain.Order{
		ID: "heavy", CustomerID: "c2", OriginAddress: "Ningbo Port", DestinationAddress: "Hefei",
		CargoWeight: 5000, CargoVolume: 50, Priority: domain.PriorityNormal, Status: domain.OrderStatusConfirmed,
	})

	req := f.createRequest("heavy")
	req.TotalWeight = ptr(10.0)
	req.TotalVolume = ptr(1.0)
	_, err := f.dispatch.CreateDispatch(context.Background(), req)
	require.ErrorIs(t, err, ErrCapacityExceeded)

	assertUntouched(t, f, map[string]domain.OrderStatus{"heavy": domain.OrderStatusConfirmed})
}

func TestCreateDispatch_OverrideAboveOrderCargo(t *testing.T) {
	f := newFixture(t)
	f.seedFleet()

	req := f.createRequest("o1", "o2")
	req.TotalWeight = ptr(900.0)
	req.TotalVolume = ptr(9.0)
	res, err := f.dispatch.CreateDispatch(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 900.0, res.Dispatch.TotalWeight)
	assert.Equal(t, 9.0, res.Dispatch.TotalVolume)
	var weight float64
	for _, sh := range res.Shipments {
		weight += sh.Weight
	}
	assert.Equal(t, 700.0, weight)
}

func TestCreateDispatch_StorageFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	f.seedFleet()
	down := errors.New("connection reset")
	f.store.InjectFault(func(op string, _ any) error {
		if op == "shipments.CreateBatch" {
			return down
		}
		return nil
	})

	_, err := f.dispatch.CreateDispatch(context.Background(), f.createRequest("o1", "o2"))
	require.ErrorIs(t, err, ErrDependencyUnavailable)
	require.ErrorIs(t, err, down)

	var depErr *DependencyError
	require.ErrorAs(t, err, &depErr)
	assert.True(t, depErr.Retryable())

	f.store.InjectFault(nil)
	assertUntouched(t, f, map[string]domain.OrderStatus{"o1": domain.OrderStatusConfirmed, "o2": domain.OrderStatusConfirmed})
}

func TestCreateDispatch_ResourceLocked(t *testing.T) {
	f := newFixture(t)
	f.seedFleet()
	ctx := context.Background()

	held, err := f.locks.AcquireDriverLock(ctx, "d1", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, held)

	_, err = f.dispatch.CreateDispatch(ctx, f.createRequest("o1"))
	require.ErrorIs(t, err, ErrResourceBusy)
	assert.ErrorIs(t, err, ErrConflict)
	assert.False(t, f.mr.Exists("lock:vehicle:v1"), "partial lock is released")

	require.NoError(t, f.locks.Release(ctx, held))
	_, err = f.dispatch.CreateDispatch(ctx, f.createRequest("o1"))
	assert.NoError(t, err)
}

func TestCreateDispatch_SecondDispatchForSameVehicleFails(t *testing.T) {
	f := newFixture(t)
	f.seedFleet()
	ctx := context.Background()

	_, err := f.dispatch.CreateDispatch(ctx, f.createRequest("o1"))
	require.NoError(t, err)

	_, err = f.dispatch.CreateDispatch(ctx, f.createRequest("o2"))
	assert.ErrorIs(t, err, ErrVehicleUnavailable)
}

func TestTransitionDispatch_Lifecycle(t *testing.T) {
	f := newFixture(t)
	f.seedFleet()
	ctx := context.Background()

	res, err := f.dispatch.CreateDispatch(ctx, f.createRequest("o1", "o2"))
	require.NoError(t, err)
	id := res.Dispatch.ID

	d, err := f.dispatch.TransitionDispatch(ctx, TransitionRequest{DispatchID: id, To: domain.DispatchStatusAssigned})
	require.NoError(t, err)
	assert.Equal(t, domain.DispatchStatusAssigned, d.Status)
	assert.Equal(t, testNow, d.ActualDeparture)

	_, err = f.dispatch.TransitionDispatch(ctx, TransitionRequest{DispatchID: id, To: domain.DispatchStatusInTransit})
	require.NoError(t, err)

	repos := f.store.Repositories()
	drv, err := repos.Drivers.GetByID(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, domain.DriverStatusDriving, drv.Status)
	shipments, err := repos.Shipments.ListByDispatch(ctx, id)
	require.NoError(t, err)
	for _, sh := range shipments {
		assert.Equal(t, domain.ShipmentStatusInTransit, sh.Status)
	}

	d, err = f.dispatch.TransitionDispatch(ctx, TransitionRequest{
		DispatchID:     id,
		To:             domain.DispatchStatusCompleted,
		ActualDistance: ptr(321.5),
		ActualDuration: ptr(5.0),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.DispatchStatusCompleted, d.Status)
	assert.Equal(t, testNow, d.ActualArrival)
	assert.Equal(t, testNow, d.CompletedAt)
	assert.Equal(t, 321.5, d.Distance)
	assert.Equal(t, 5.0, d.EstimatedDuration)

	v, err := repos.Vehicles.GetByID(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, domain.VehicleStatusAvailable, v.Status)
	drv, err = repos.Drivers.GetByID(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, domain.DriverStatusOnDuty, drv.Status)

	shipments, err = repos.Shipments.ListByDispatch(ctx, id)
	require.NoError(t, err)
	for _, sh := range shipments {
		assert.Equal(t, domain.ShipmentStatusDelivered, sh.Status)
	}
	for _, oid := range []string{"o1", "o2"} {
		o, err := repos.Orders.GetByID(ctx, oid)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusInTransit, o.Status, "completion leaves orders to proof of delivery")
	}

	_, err = f.dispatch.TransitionDispatch(ctx, TransitionRequest{DispatchID: id, To: domain.DispatchStatusCancelled})
	assert.ErrorIs(t, err, ErrInvalidTransition, "completed is terminal")
}

func TestTransitionDispatch_CancelReleasesEverything(t *testing.T) {
	f := newFixture(t)
	f.seedFleet()
	ctx := context.Background()

	res, err := f.dispatch.CreateDispatch(ctx, f.createRequest("o1", "o2"))
	require.NoError(t, err)

	d, err := f.dispatch.TransitionDispatch(ctx, TransitionRequest{
		DispatchID: res.Dispatch.ID,
		To:         domain.DispatchStatusCancelled,
		Reason:     "customer request",
	})
	require.NoError(t, err)
	assert.Equal(t, testNow, d.CancelledAt)
	assert.Equal(t, "customer request", d.CancelReason)

	repos := f.store.Repositories()
	v, err := repos.Vehicles.GetByID(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, domain.VehicleStatusAvailable, v.Status)
	drv, err := repos.Drivers.GetByID(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, domain.DriverStatusAvailable, drv.Status)

	for _, oid := range []string{"o1", "o2"} {
		o, err := repos.Orders.GetByID(ctx, oid)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusConfirmed, o.Status)
	}
	shipments, err := repos.Shipments.ListByDispatch(ctx, res.Dispatch.ID)
	require.NoError(t, err)
	for _, sh := range shipments {
		assert.Equal(t, domain.ShipmentStatusCancelled, sh.Status)
	}

	_, err = f.dispatch.TransitionDispatch(ctx, TransitionRequest{DispatchID: res.Dispatch.ID, To: domain.DispatchStatusScheduled})
	assert.ErrorIs(t, err, ErrInvalidTransition, "cancelled is terminal")

	again, err := f.dispatch.CreateDispatch(ctx, f.createRequest("o1", "o2"))
	require.NoError(t, err, "released orders and resources can be dispatched again")
	assert.NotEqual(t, res.Dispatch.ID, again.Dispatch.ID)
}

func TestTransitionDispatch_TableIsExhaustive(t *testing.T) {
	legal := map[domain.DispatchStatus][]domain.DispatchStatus{
		domain.DispatchStatusPlanning:  {domain.DispatchStatusScheduled, domain.DispatchStatusCancelled},
		domain.DispatchStatusScheduled: {domain.DispatchStatusAssigned, domain.DispatchStatusCancelled},
		domain.DispatchStatusAssigned:  {domain.DispatchStatusInTransit, domain.DispatchStatusCancelled},
		domain.DispatchStatusInTransit: {domain.DispatchStatusCompleted, domain.DispatchStatusDelayed, domain.DispatchStatusCancelled},
		domain.DispatchStatusDelayed:   {domain.DispatchStatusInTransit, domain.DispatchStatusCompleted, domain.DispatchStatusCancelled},
	}

	f := newFixture(t)
	f.seedFleet()
	ctx := context.Background()
	repos := f.store.Repositories()

	for _, from := range domain.DispatchStatuses() {
		for _, to := range domain.DispatchStatuses() {
			id := fmt.Sprintf("%s-%s", from, to)
			require.NoError(t, repos.Dispatches.Create(ctx, &domain.Dispatch{
				ID: id, VehicleID: "v1", DriverID: "d1", Status: from, CreatedAt: testNow,
			}))

			want := false
			for _, l := range legal[from] {
				want = want || l == to
			}

			_, err := f.dispatch.TransitionDispatch(ctx, TransitionRequest{DispatchID: id, To: to})
			stored, getErr := repos.Dispatches.GetByID(ctx, id)
			require.NoError(t, getErr)

			if want {
				assert.NoError(t, err, "%s -> %s", from, to)
				assert.Equal(t, to, stored.Status)
				continue
			}

			var te *TransitionError
			require.ErrorAs(t, err, &te, "%s -> %s", from, to)
			assert.Equal(t, from, te.From)
			assert.Equal(t, to, te.To)
			assert.ErrorIs(t, err, ErrConflict)
			assert.Equal(t, from, stored.Status, "refused transition leaves %s untouched", id)
		}
	}
}

func TestTransitionDispatch_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.dispatch.TransitionDispatch(ctx, TransitionRequest{To: domain.DispatchStatusAssigned})
	assert.ErrorIs(t, err, ErrInvalidDispatchID)

	_, err = f.dispatch.TransitionDispatch(ctx, TransitionRequest{DispatchID: "x", To: "DEPARTED"})
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = f.dispatch.TransitionDispatch(ctx, TransitionRequest{DispatchID: "x", To: domain.DispatchStatusCompleted, ActualDistance: ptr(-3.0)})
	assert.ErrorIs(t, err, ErrInvalidActuals)

	_, err = f.dispatch.TransitionDispatch(ctx, TransitionRequest{DispatchID: "x", To: domain.DispatchStatusAssigned})
	assert.ErrorIs(t, err, ErrDispatchNotFound)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindOptimalVehicle(t *testing.T) {
	f := newFixture(t)
	f.seedFleet()
	ctx := context.Background()

	f.store.AddVehicle(&domain.Vehicle{
		ID: "v2", MaxLoad: 2000, MaxVolume: 20, Status: domain.VehicleStatusAvailable,
		DailyRate: 2000, MaintenanceCost: 2000, FuelLevel: 20,
	})
	f.store.AddVehicle(&domain.Vehicle{
		ID: "v3", MaxLoad: 100, MaxVolume: 1, Status: domain.VehicleStatusAvailable,
		DailyRate: 100, MaintenanceCost: 100, FuelLevel: 100,
	})

	origin, err := f.geo.Locate(ctx, "Shanghai Pudong Depot")
	require.NoError(t, err)
	require.NoError(t, f.positions.UpdatePosition(ctx, "v1", origin))
	require.NoError(t, f.positions.UpdatePosition(ctx, "v2", origin))

	m, err := f.dispatch.FindOptimalVehicle(ctx, "o1", testNow)
	require.NoError(t, err)
	assert.Equal(t, "v1", m.Vehicle.ID)
	assert.Equal(t, "d1", m.Driver.ID)
	assert.InDelta(t, 0, m.DistanceKm, 0.01)
	assert.Equal(t, 80.0, m.Score.Vehicle)
	assert.Equal(t, 100.0, m.Score.Driver)
	assert.InDelta(t, 0.4*100+0.3*80+0.3*100, m.Score.Total, 0.01)
}

func TestFindOptimalVehicle_UnlocatedVehicleScoresNoDistance(t *testing.T) {
	f := newFixture(t)
	f.seedFleet()

	m, err := f.dispatch.FindOptimalVehicle(context.Background(), "o1", testNow)
	require.NoError(t, err)
	assert.Equal(t, unlocatedDistanceKm, m.DistanceKm)
	assert.Zero(t, m.Score.Distance)
}

func TestFindOptimalVehicle_NoCandidate(t *testing.T) {
	t.Run("no vehicle covers the cargo", func(t *testing.T) {
		f := newFixture(t)
		f.seedFleet()
		f.store.AddOrder(&domain.Order{ID: "big", OriginAddress: "A", DestinationAddress: "B",
			CargoWeight: 5000, Status: domain.OrderStatusConfirmed})

		_, err := f.dispatch.FindOptimalVehicle(context.Background(), "big", testNow)
		require.ErrorIs(t, err, ErrNoEligibleVehicle)
		assert.ErrorIs(t, err, ErrNoCandidate)
	})

	t.Run("no driver available", func(t *testing.T) {
		f := newFixture(t)
		f.seedFleet()
		f.setDriverStatus(domain.DriverStatusOnLeave)

		_, err := f.dispatch.FindOptimalVehicle(context.Background(), "o1", testNow)
		require.ErrorIs(t, err, ErrNoEligibleDriver)
		assert.ErrorIs(t, err, ErrNoCandidate)
	})
}

func TestOptimizeDispatch(t *testing.T) {
	f := newFixture(t)
	f.seedFleet()
	ctx := context.Background()

	results, err := f.dispatch.OptimizeDispatch(ctx, testNow)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "o2", results[0].OrderID, "higher priority goes first")
	assert.Equal(t, OptimizeDispatched, results[0].Status)
	assert.NotEmpty(t, results[0].DispatchID)

	assert.Equal(t, "o1", results[1].OrderID)
	assert.Equal(t, OptimizeFailed, results[1].Status)
	assert.ErrorIs(t, results[1].Err, ErrNoCandidate)
	assert.NotEmpty(t, results[1].Error)

	detail, err := f.dispatch.GetDispatch(ctx, results[0].DispatchID)
	require.NoError(t, err)
	assert.Equal(t, "Suzhou Industrial Park", detail.Dispatch.OriginAddress)
	assert.Equal(t, testNow.Add(3*time.Hour), detail.Dispatch.PlannedDeparture)
	require.Len(t, detail.Shipments, 1)
	assert.Equal(t, "o2", detail.Shipments[0].OrderID)
}

func TestOptimizeDispatch_OtherDayIsEmpty(t *testing.T) {
	f := newFixture(t)
	f.seedFleet()

	results, err := f.dispatch.OptimizeDispatch(context.Background(), testNow.AddDate(0, 0, 2))
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestOptimizeRoute(t *testing.T) {
	f := newFixture(t)
	f.seedFleet()
	ctx := context.Background()

	summary, err := f.dispatch.OptimizeRoute(ctx, []string{"o1", "o2"}, "v1")
	require.NoError(t, err)
	assert.Equal(t, 700.0, summary.TotalWeight)
	assert.Equal(t, 7.0, summary.TotalVolume)
	require.Len(t, summary.Plan.Waypoints, 4)

	var total float64
	for i := 1; i < len(summary.Plan.Waypoints); i++ {
		total += f.geo.Between(summary.Plan.Waypoints[i-1].Coordinates, summary.Plan.Waypoints[i].Coordinates)
	}
	assert.InDelta(t, total, summary.Plan.TotalDistanceKm, 0.01)
	assert.Equal(t, int(math.Ceil(total/50*60+4*15)), summary.Plan.EstimatedMinutes)

	f.store.AddVehicle(&domain.Vehicle{ID: "van", MaxLoad: 500, MaxVolume: 5, Status: domain.VehicleStatusAvailable})
	_, err = f.dispatch.OptimizeRoute(ctx, []string{"o1", "o2"}, "van")
	assert.ErrorIs(t, err, ErrCapacityExceeded)
}

func TestListDispatchesAndStatistics(t *testing.T) {
	f := newFixture(t)
	f.seedFleet()
	ctx := context.Background()

	res, err := f.dispatch.CreateDispatch(ctx, f.createRequest("o1", "o2"))
	require.NoError(t, err)
	for _, to := range []domain.DispatchStatus{domain.DispatchStatusAssigned, domain.DispatchStatusInTransit, domain.DispatchStatusCompleted} {
		_, err := f.dispatch.TransitionDispatch(ctx, TransitionRequest{DispatchID: res.Dispatch.ID, To: to})
		require.NoError(t, err)
	}

	page, err := f.dispatch.ListDispatches(ctx, ListDispatchesRequest{Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, Pagination{Page: 1, Limit: 100, Total: 1, Pages: 1}, page.Pagination)
	require.Len(t, page.Dispatches, 1)

	page, err = f.dispatch.ListDispatches(ctx, ListDispatchesRequest{Status: domain.DispatchStatusCancelled})
	require.NoError(t, err)
	assert.Equal(t, 20, page.Pagination.Limit)
	assert.Empty(t, page.Dispatches)

	_, err = f.dispatch.ListDispatches(ctx, ListDispatchesRequest{Status: "LOST"})
	assert.ErrorIs(t, err, ErrValidation)

	stats, err := f.dispatch.Statistics(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalDispatches)
	assert.Equal(t, 1, stats.CompletedDispatches)
	assert.Equal(t, 100.0, stats.CompletionRate)
	assert.Equal(t, 2, stats.TotalShipments)
	assert.Equal(t, 2.0, stats.AvgShipmentsPerDispatch)
	assert.Equal(t, []repository.CountByID{{ID: "v1", Count: 1}}, stats.TopVehicles)
}

func TestAvailableQueries(t *testing.T) {
	f := newFixture(t)
	f.seedFleet()
	ctx := context.Background()

	vehicles, err := f.dispatch.AvailableVehicles(ctx)
	require.NoError(t, err)
	require.Len(t, vehicles, 1)
	assert.Equal(t, "d1", vehicles[0].Driver.ID)

	orders, err := f.dispatch.AvailableOrders(ctx)
	require.NoError(t, err)
	assert.Len(t, orders, 2)

	_, err = f.dispatch.CreateDispatch(ctx, f.createRequest("o1"))
	require.NoError(t, err)

	vehicles, err = f.dispatch.AvailableVehicles(ctx)
	require.NoError(t, err)
	assert.Empty(t, vehicles)

	orders, err = f.dispatch.AvailableOrders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "o2", orders[0].ID)
}
