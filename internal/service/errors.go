package service

import (
	"context"
	"errors"
	"fmt"

	"fleet/internal/domain"
	"fleet/internal/geo"
	"fleet/internal/repository"
)

// Error kinds. Every error returned by the services matches exactly one of
// them with errors.Is.
var (
	// ErrValidation marks malformed input rejected before any side effect.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks a reference to an unknown entity.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks an operation refused because of an entity's status.
	ErrConflict = errors.New("state conflict")

	// ErrNoCandidate marks a matching run with nothing to match.
	ErrNoCandidate = errors.New("no eligible candidate")

	// ErrDependencyUnavailable marks a persistence or geo failure. Callers may
	// retry with backoff; the services never do.
	ErrDependencyUnavailable = errors.New("dependency unavailable")
)

// Error is a domain error of a given kind.
type Error struct {
	kind error
	msg  string
}

func (e *Error) Error() string { return e.msg }

// Is matches the error's kind.
func (e *Error) Is(target error) bool { return target == e.kind }

func kinded(kind error, msg string) error {
	return &Error{kind: kind, msg: msg}
}

var (
	// ErrNoOrders is returned when a dispatch request names no orders.
	ErrNoOrders = kinded(ErrValidation, "at least one order is required")

	// ErrDuplicateOrder is returned when an order appears twice in one request.
	ErrDuplicateOrder = kinded(ErrValidation, "duplicate order id")

	// ErrInvalidVehicleID is returned when vehicle ID is empty.
	ErrInvalidVehicleID = kinded(ErrValidation, "invalid vehicle id")

	// ErrInvalidDriverID is returned when driver ID is empty.
	ErrInvalidDriverID = kinded(ErrValidation, "invalid driver id")

	// ErrTooManyOrders is returned when one dispatch would need more shipment
	// numbers than a single clock reading can tell apart.
	ErrTooManyOrders = kinded(ErrValidation, "too many orders for one dispatch")

	// ErrInvalidDispatchID is returned when dispatch ID is empty.
	ErrInvalidDispatchID = kinded(ErrValidation, "invalid dispatch id")

	// ErrInvalidShipmentID is returned when shipment ID is empty.
	ErrInvalidShipmentID = kinded(ErrValidation, "invalid shipment id")

	// ErrInvalidAddress is returned when an origin or destination is blank.
	ErrInvalidAddress = kinded(ErrValidation, "origin and destination are required")

	// ErrInvalidCargo is returned when a weight, volume or value override is negative.
	ErrInvalidCargo = kinded(ErrValidation, "cargo totals must not be negative")

	// ErrInvalidStatus is returned for an unknown dispatch status.
	ErrInvalidStatus = kinded(ErrValidation, "unknown dispatch status")

	// ErrInvalidActuals is returned when supplied actual distance or duration is negative.
	ErrInvalidActuals = kinded(ErrValidation, "actual distance and duration must not be negative")

	// ErrBatchSize is returned when a tracking batch is empty or too large.
	ErrBatchSize = kinded(ErrValidation, "batch must contain between 1 and the maximum number of reports")

	// ErrOrderNotFound is returned when a referenced order does not exist.
	ErrOrderNotFound = kinded(ErrNotFound, "order not found")

	// ErrVehicleNotFound is returned when a referenced vehicle does not exist.
	ErrVehicleNotFound = kinded(ErrNotFound, "vehicle not found")

	// ErrDriverNotFound is returned when a referenced driver does not exist.
	ErrDriverNotFound = kinded(ErrNotFound, "driver not found")

	// ErrDispatchNotFound is returned when a referenced dispatch does not exist.
	ErrDispatchNotFound = kinded(ErrNotFound, "dispatch not found")

	// ErrShipmentNotFound is returned when a referenced shipment does not exist.
	ErrShipmentNotFound = kinded(ErrNotFound, "shipment not found")

	// ErrOrderNotConfirmed is returned when dispatching an order that is not CONFIRMED.
	ErrOrderNotConfirmed = kinded(ErrConflict, "order is not confirmed")

	// ErrVehicleUnavailable is returned when the vehicle is not AVAILABLE.
	ErrVehicleUnavailable = kinded(ErrConflict, "vehicle is not available")

	// ErrDriverUnavailable is returned when the driver is not AVAILABLE.
	ErrDriverUnavailable = kinded(ErrConflict, "driver is not available")

	// ErrCapacityExceeded is returned when cargo exceeds the vehicle's load or volume.
	ErrCapacityExceeded = kinded(ErrConflict, "cargo exceeds vehicle capacity")

	// ErrShipmentNotInTransit is returned when tracking a shipment that is not IN_TRANSIT.
	ErrShipmentNotInTransit = kinded(ErrConflict, "shipment is not in transit")

	// ErrResourceBusy is returned when another dispatch holds the vehicle or driver.
	ErrResourceBusy = kinded(ErrConflict, "vehicle or driver is being dispatched")

	// ErrInvalidTransition matches every *TransitionError.
	ErrInvalidTransition = kinded(ErrConflict, "invalid dispatch transition")

	// ErrNoEligibleVehicle is returned when no available vehicle covers the order.
	ErrNoEligibleVehicle = kinded(ErrNoCandidate, "no eligible vehicle")

	// ErrNoEligibleDriver is returned when no driver is available.
	ErrNoEligibleDriver = kinded(ErrNoCandidate, "no eligible driver")
)

// TransitionError names the refused source and target state.
type TransitionError struct {
	From domain.DispatchStatus
	To   domain.DispatchStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid dispatch transition from %s to %s", e.From, e.To)
}

// Is matches ErrInvalidTransition and the conflict kind.
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition || target == ErrConflict
}

// DependencyError wraps a failed collaborator call.
type DependencyError struct {
	Op  string
	Err error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *DependencyError) Unwrap() error { return e.Err }

// Is matches the dependency kind.
func (e *DependencyError) Is(target error) bool { return target == ErrDependencyUnavailable }

// Retryable reports that the same call may succeed later.
func (e *DependencyError) Retryable() bool { return true }

// classify turns a collaborator error into a service error. notFound is used
// for repository.ErrNotFound; status conflicts become ErrConflict. Caller
// cancellation passes through untouched.
func classify(op string, err error, notFound error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, repository.ErrNotFound) && notFound != nil:
		return notFound
	case errors.Is(err, repository.ErrStatusConflict):
		return fmt.Errorf("%s: %w", op, kinded(ErrConflict, err.Error()))
	case isServiceError(err):
		return err
	default:
		return &DependencyError{Op: op, Err: err}
	}
}

// classifyGeo maps estimator failures; unresolvable addresses are bad input.
func classifyGeo(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, geo.ErrEmptyAddress), errors.Is(err, geo.ErrAddressNotFound):
		return fmt.Errorf("%s: %w", op, kinded(ErrValidation, err.Error()))
	default:
		return classify(op, err, nil)
	}
}

func isServiceError(err error) bool {
	for _, kind := range []error{ErrValidation, ErrNotFound, ErrConflict, ErrNoCandidate, ErrDependencyUnavailable} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
