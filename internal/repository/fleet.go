package repository

import (
	"context"
	"time"

	"fleet/internal/domain"
)

// OrderRepository defines the persistence operations for orders.
type OrderRepository interface {
	// GetByID retrieves an order by ID.
	GetByID(ctx context.Context, id string) (*domain.Order, error)

	// GetByIDs retrieves the orders that exist among ids, in no particular order.
	GetByIDs(ctx context.Context, ids []string) ([]*domain.Order, error)

	// UpdateStatusIf moves every order in ids from one status to another.
	// Returns ErrStatusConflict when any order was not in status from.
	UpdateStatusIf(ctx context.Context, ids []string, from, to domain.OrderStatus) error

	// UpdateStatus sets the status of every order in ids.
	UpdateStatus(ctx context.Context, ids []string, status domain.OrderStatus) error

	// ListAvailable returns CONFIRMED orders without a live shipment,
	// by expected time ascending.
	ListAvailable(ctx context.Context) ([]*domain.Order, error)

	// ListPendingBetween returns CONFIRMED orders without a live shipment whose
	// expected time falls in [from, to), most urgent first.
	ListPendingBetween(ctx context.Context, from, to time.Time) ([]*domain.Order, error)
}

// VehicleRepository defines the persistence operations for vehicles.
type VehicleRepository interface {
	// GetByID retrieves a vehicle by ID.
	GetByID(ctx context.Context, id string) (*domain.Vehicle, error)

	// ListByStatus returns every vehicle in the given status.
	ListByStatus(ctx context.Context, status domain.VehicleStatus) ([]*domain.Vehicle, error)

	// UpdateStatusIf moves the vehicle from one status to another and records
	// driverID as its current driver when non-empty.
	// Returns ErrStatusConflict when the vehicle was not in status from.
	UpdateStatusIf(ctx context.Context, id string, from, to domain.VehicleStatus, driverID string) error

	// UpdateStatus sets the vehicle status unconditionally.
	UpdateStatus(ctx context.Context, id string, status domain.VehicleStatus) error
}

// DriverRepository defines the persistence operations for drivers.
type DriverRepository interface {
	// GetByID retrieves a driver by ID.
	GetByID(ctx context.Context, id string) (*domain.Driver, error)

	// ListByStatus returns every driver in the given status.
	ListByStatus(ctx context.Context, status domain.DriverStatus) ([]*domain.Driver, error)

	// UpdateStatusIf moves the driver from one status to another.
	// Returns ErrStatusConflict when the driver was not in status from.
	UpdateStatusIf(ctx context.Context, id string, from, to domain.DriverStatus) error

	// UpdateStatus sets the driver status unconditionally.
	UpdateStatus(ctx context.Context, id string, status domain.DriverStatus) error
}

// DispatchFilter narrows a dispatch listing. Zero values are ignored.
type DispatchFilter struct {
	Status    domain.DispatchStatus
	VehicleID string
	DriverID  string
	From      time.Time // created at or after
	To        time.Time // created at or before
	Offset    int
	Limit     int
}

// CountByID is a dispatch count grouped by a vehicle or driver ID.
type CountByID struct {
	ID    string `json:"id"`
	Count int    `json:"count"`
}

// DispatchStats aggregates dispatches created in a time range.
type DispatchStats struct {
	Total       int
	Completed   int
	InTransit   int
	Shipments   int
	TopVehicles []CountByID
	TopDrivers  []CountByID
}

// DispatchRepository defines the persistence operations for dispatches.
type DispatchRepository interface {
	// Create persists a new dispatch.
	Create(ctx context.Context, dispatch *domain.Dispatch) error

	// GetByID retrieves a dispatch by ID.
	GetByID(ctx context.Context, id string) (*domain.Dispatch, error)

	// List returns one page of dispatches matching filter, newest first,
	// along with the total number of matches.
	List(ctx context.Context, filter DispatchFilter) ([]*domain.Dispatch, int, error)

	// UpdateIf writes the mutable fields of dispatch when its stored status
	// still equals from. Returns ErrStatusConflict otherwise.
	UpdateIf(ctx context.Context, dispatch *domain.Dispatch, from domain.DispatchStatus) error

	// Stats aggregates dispatches created in [from, to]. Zero bounds are open.
	Stats(ctx context.Context, from, to time.Time, top int) (*DispatchStats, error)
}

// ShipmentRepository defines the persistence operations for shipments.
type ShipmentRepository interface {
	// CreateBatch persists the shipments of one dispatch.
	CreateBatch(ctx context.Context, shipments []*domain.Shipment) error

	// GetByID retrieves a shipment by ID.
	GetByID(ctx context.Context, id string) (*domain.Shipment, error)

	// ListByDispatch returns the shipments of a dispatch by sequence.
	ListByDispatch(ctx context.Context, dispatchID string) ([]*domain.Shipment, error)

	// UpdateStatusByDispatch moves the non-terminal shipments of a dispatch to
	// status and stamps the departure or arrival times that are given.
	UpdateStatusByDispatch(ctx context.Context, dispatchID string, status domain.ShipmentStatus, departure, arrival time.Time) error

	// UpdateLocation records the latest known position of a shipment.
	UpdateLocation(ctx context.Context, id string, at domain.Coordinates, ts time.Time) error
}

// TrackingRepository defines the persistence operations for tracking logs and alerts.
type TrackingRepository interface {
	// InsertLog persists one tracking log.
	InsertLog(ctx context.Context, log *domain.TrackingLog) error

	// ListLogs returns the latest logs of a shipment, newest first.
	ListLogs(ctx context.Context, shipmentID string, limit int) ([]*domain.TrackingLog, error)

	// InsertAlerts persists alerts raised for one batch.
	InsertAlerts(ctx context.Context, alerts []*domain.TrackingAlert) error

	// ListAlerts returns the alerts of a shipment, newest first.
	ListAlerts(ctx context.Context, shipmentID string) ([]*domain.TrackingAlert, error)
}

// Repositories groups the repositories that share one unit of work.
type Repositories struct {
	Orders     OrderRepository
	Vehicles   VehicleRepository
	Drivers    DriverRepository
	Dispatches DispatchRepository
	Shipments  ShipmentRepository
	Tracking   TrackingRepository
}

// Transactor runs fn inside a transaction. The Repositories passed to fn are
// bound to that transaction; fn returning an error rolls everything back.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
