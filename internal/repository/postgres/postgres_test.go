package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet/internal/domain"
	"fleet/internal/repository"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestTxManager_CommitsOnSuccess(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE drivers SET status = $1 WHERE id = $2 AND status = $3")).
		WithArgs("ON_DUTY", "drv-1", "AVAILABLE").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := NewTxManager(db).WithinTx(context.Background(), func(ctx context.Context, repos repository.Repositories) error {
		return repos.Drivers.UpdateStatusIf(ctx, "drv-1", domain.DriverStatusAvailable, domain.DriverStatusOnDuty)
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTxManager_RollsBackOnConflict(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE vehicles SET status = $1")).
		WithArgs("IN_TRANSIT", "drv-1", "veh-1", "AVAILABLE").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := NewTxManager(db).WithinTx(context.Background(), func(ctx context.Context, repos repository.Repositories) error {
		return repos.Vehicles.UpdateStatusIf(ctx, "veh-1", domain.VehicleStatusAvailable, domain.VehicleStatusInTransit, "drv-1")
	})
	assert.ErrorIs(t, err, repository.ErrStatusConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTxManager_BeginFailure(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	called := false
	err := NewTxManager(db).WithinTx(context.Background(), func(context.Context, repository.Repositories) error {
		called = true
		return nil
	})
	assert.Error(t, err)
	assert.False(t, called)
}

func TestOrderRepository_UpdateStatusIf(t *testing.T) {
	db, mock := newMock(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET status = $1 WHERE id = ANY($2) AND status = $3")).
		WithArgs("IN_TRANSIT", sqlmock.AnyArg(), "CONFIRMED").
		WillReturnResult(sqlmock.NewResult(0, 2))
	require.NoError(t, repo.UpdateStatusIf(ctx, []string{"o1", "o2"}, domain.OrderStatusConfirmed, domain.OrderStatusInTransit))

	// One of the two orders changed status underneath us.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET status = $1 WHERE id = ANY($2) AND status = $3")).
		WithArgs("IN_TRANSIT", sqlmock.AnyArg(), "CONFIRMED").
		WillReturnResult(sqlmock.NewResult(0, 1))
	err := repo.UpdateStatusIf(ctx, []string{"o1", "o2"}, domain.OrderStatusConfirmed, domain.OrderStatusInTransit)
	assert.ErrorIs(t, err, repository.ErrStatusConflict)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_GetByIDs(t *testing.T) {
	db, mock := newMock(t)
	expected := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{
		"id", "order_number", "customer_id", "origin_address", "destination_address",
		"cargo_weight", "cargo_volume", "cargo_value", "expected_time", "priority", "status", "created_at",
	}).AddRow("o1", "ORD1", "c1", "A", "B", 100.0, 2.0, 500.0, expected, "HIGH", "CONFIRMED", expected)

	mock.ExpectQuery(regexp.QuoteMeta("FROM orders WHERE id = ANY($1)")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(rows)

	orders, err := NewOrderRepository(db).GetByIDs(context.Background(), []string{"o1", "missing"})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, domain.PriorityHigh, orders[0].Priority)
	assert.Equal(t, expected, orders[0].ExpectedTime)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVehicleRepository_GetByID(t *testing.T) {
	db, mock := newMock(t)
	repo := NewVehicleRepository(db)
	ctx := context.Background()
	cols := []string{"id", "plate_number", "type", "max_load", "max_volume", "status", "daily_rate",
		"maintenance_cost", "fuel_level", "driver_id", "lat", "lng", "created_at"}

	mock.ExpectQuery(regexp.QuoteMeta("FROM vehicles WHERE id = $1")).
		WithArgs("veh-1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("veh-1", "ABC123", "van", 1000.0, 10.0, "AVAILABLE", 600.0, 500.0, 80.0, nil, 31.2, 121.5, time.Now()))

	v, err := repo.GetByID(ctx, "veh-1")
	require.NoError(t, err)
	assert.Empty(t, v.DriverID)
	require.NotNil(t, v.Location)
	assert.Equal(t, 31.2, v.Location.Lat)

	mock.ExpectQuery(regexp.QuoteMeta("FROM vehicles WHERE id = $1")).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows(cols))

	_, err = repo.GetByID(ctx, "nope")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDriverRepository_ListAndUpdate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewDriverRepository(db)
	ctx := context.Background()
	cols := []string{"id", "driver_number", "name", "phone", "status", "rating",
		"accident_count", "violation_count", "driving_years", "created_at"}

	mock.ExpectQuery(regexp.QuoteMeta("FROM drivers WHERE status = $1 ORDER BY id")).
		WithArgs("AVAILABLE").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("drv-1", "DRV001", "Wang", "", "AVAILABLE", 4.5, 0, 1, 8, time.Now()).
			AddRow("drv-2", "DRV002", "Li", "13800000000", "AVAILABLE", 3.9, 2, 0, 3, time.Now()))

	drivers, err := repo.ListByStatus(ctx, domain.DriverStatusAvailable)
	require.NoError(t, err)
	require.Len(t, drivers, 2)
	assert.Equal(t, 4.5, drivers[0].Rating)
	assert.Equal(t, 2, drivers[1].AccidentCount)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE drivers SET status = $1 WHERE id = $2")).
		WithArgs("DRIVING", "ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.UpdateStatus(ctx, "ghost", domain.DriverStatusDriving)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDispatchRepository_UpdateIf(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now()

	d := &domain.Dispatch{
		ID:              "d1",
		Status:          domain.DispatchStatusAssigned,
		ActualDeparture: now,
		UpdatedAt:       now,
	}

	mock.ExpectExec(regexp.QuoteMeta("UPDATE dispatches SET status = $1")).
		WithArgs("ASSIGNED", now, nil, nil, nil, 0.0, 0.0, nil, now, "d1", "SCHEDULED").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := NewDispatchRepository(db).UpdateIf(context.Background(), d, domain.DispatchStatusScheduled)
	assert.ErrorIs(t, err, repository.ErrStatusConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDispatchRepository_ListAppliesFilters(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM dispatches WHERE status = $1 AND vehicle_id = $2")).
		WithArgs("IN_TRANSIT", "veh-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC, id LIMIT $3 OFFSET $4")).
		WithArgs("IN_TRANSIT", "veh-1", 20, 40).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	list, total, err := NewDispatchRepository(db).List(context.Background(), repository.DispatchFilter{
		Status:    domain.DispatchStatusInTransit,
		VehicleID: "veh-1",
		Limit:     20,
		Offset:    40,
	})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, list)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDispatchRepository_Stats(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("COUNT(*) FILTER (WHERE d.status = 'COMPLETED')")).
		WithArgs(nil, nil).
		WillReturnRows(sqlmock.NewRows([]string{"total", "completed", "in_transit"}).AddRow(10, 4, 3))
	mock.ExpectQuery(regexp.QuoteMeta("FROM shipments s JOIN dispatches d")).
		WithArgs(nil, nil).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(25))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT d.vehicle_id, COUNT(*)")).
		WithArgs(nil, nil, 5).
		WillReturnRows(sqlmock.NewRows([]string{"vehicle_id", "count"}).AddRow("veh-1", 6).AddRow("veh-2", 4))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT d.driver_id, COUNT(*)")).
		WithArgs(nil, nil, 5).
		WillReturnRows(sqlmock.NewRows([]string{"driver_id", "count"}).AddRow("drv-1", 10))

	s, err := NewDispatchRepository(db).Stats(context.Background(), time.Time{}, time.Time{}, 5)
	require.NoError(t, err)
	assert.Equal(t, 10, s.Total)
	assert.Equal(t, 25, s.Shipments)
	assert.Equal(t, []repository.CountByID{{ID: "veh-1", Count: 6}, {ID: "veh-2", Count: 4}}, s.TopVehicles)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestShipmentRepository_UpdateLocationNotFound(t *testing.T) {
	db, mock := newMock(t)
	ts := time.Now()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE shipments SET current_lat = $1")).
		WithArgs(31.0, 121.0, ts, "s-404").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := NewShipmentRepository(db).UpdateLocation(context.Background(), "s-404", domain.Coordinates{Lat: 31, Lng: 121}, ts)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestTrackingRepository_InsertLogOptionalFields(t *testing.T) {
	db, mock := newMock(t)
	ts := time.Now()
	alt := 120.0

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO tracking_logs")).
		WithArgs("l1", "s1", 31.0, 121.0, 60.0, 90.0, alt, nil, nil, ts, ts, "dev-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := NewTrackingRepository(db).InsertLog(context.Background(), &domain.TrackingLog{
		ID: "l1", ShipmentID: "s1", Latitude: 31, Longitude: 121, Speed: 60, Heading: 90,
		Altitude: &alt, Timestamp: ts, ReceivedAt: ts, DeviceID: "dev-1",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
