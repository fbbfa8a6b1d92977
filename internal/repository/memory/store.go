// Package memory is an in-process implementation of the repositories, used
// for demo runs, CLI dry runs and tests.
package memory

import (
	"context"
	"sync"

	"fleet/internal/domain"
	"fleet/internal/repository"
)

// Fault lets tests fail a repository call. op is "<repo>.<Method>" such as
// "tracking.InsertLog"; arg is the main argument of the call.
type Fault func(op string, arg any) error

// Store holds every entity in maps. All calls are serialized; a transaction
// holds the store for its whole duration and restores a snapshot on error.
type Store struct {
	mu sync.Mutex

	orders     map[string]*domain.Order
	vehicles   map[string]*domain.Vehicle
	drivers    map[string]*domain.Driver
	dispatches map[string]*domain.Dispatch
	shipments  map[string]*domain.Shipment
	logs       []*domain.TrackingLog
	alerts     []*domain.TrackingAlert

	fault Fault
}

var _ repository.Transactor = (*Store)(nil)

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		orders:     make(map[string]*domain.Order),
		vehicles:   make(map[string]*domain.Vehicle),
		drivers:    make(map[string]*domain.Driver),
		dispatches: make(map[string]*domain.Dispatch),
		shipments:  make(map[string]*domain.Shipment),
	}
}

// InjectFault installs f; nil removes it.
func (s *Store) InjectFault(f Fault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = f
}

// Repositories returns repositories that operate outside any transaction.
func (s *Store) Repositories() repository.Repositories {
	return s.repos(false)
}

func (s *Store) repos(inTx bool) repository.Repositories {
	b := base{s: s, inTx: inTx}
	return repository.Repositories{
		Orders:     &orderRepo{b},
		Vehicles:   &vehicleRepo{b},
		Drivers:    &driverRepo{b},
		Dispatches: &dispatchRepo{b},
		Shipments:  &shipmentRepo{b},
		Tracking:   &trackingRepo{b},
	}
}

// WithinTx runs fn with exclusive access to the store and rolls every
// change back when fn fails.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(ctx, s.repos(true)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type snapshot struct {
	orders     map[string]*domain.Order
	vehicles   map[string]*domain.Vehicle
	drivers    map[string]*domain.Driver
	dispatches map[string]*domain.Dispatch
	shipments  map[string]*domain.Shipment
	logs       []*domain.TrackingLog
	alerts     []*domain.TrackingAlert
}

// snapshot copies the maps; the entities themselves are never mutated in
// place, every write stores a fresh copy.
func (s *Store) snapshot() snapshot {
	return snapshot{
		orders:     copyMap(s.orders),
		vehicles:   copyMap(s.vehicles),
		drivers:    copyMap(s.drivers),
		dispatches: copyMap(s.dispatches),
		shipments:  copyMap(s.shipments),
		logs:       append([]*domain.TrackingLog(nil), s.logs...),
		alerts:     append([]*domain.TrackingAlert(nil), s.alerts...),
	}
}

func (s *Store) restore(snap snapshot) {
	s.orders = snap.orders
	s.vehicles = snap.vehicles
	s.drivers = snap.drivers
	s.dispatches = snap.dispatches
	s.shipments = snap.shipments
	s.logs = snap.logs
	s.alerts = snap.alerts
}

func copyMap[V any](m map[string]*V) map[string]*V {
	out := make(map[string]*V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func clone[V any](v *V) *V {
	c := *v
	return &c
}

// AddOrder seeds an order.
func (s *Store) AddOrder(o *domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = clone(o)
}

// AddVehicle seeds a vehicle.
func (s *Store) AddVehicle(v *domain.Vehicle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vehicles[v.ID] = clone(v)
}

// AddDriver seeds a driver.
func (s *Store) AddDriver(d *domain.Driver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drivers[d.ID] = clone(d)
}

// AddShipment seeds a shipment.
func (s *Store) AddShipment(sh *domain.Shipment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shipments[sh.ID] = clone(sh)
}

// base gives every repository access to the store and the lock discipline.
type base struct {
	s    *Store
	inTx bool
}

// enter locks the store unless the caller already holds it through a
// transaction, then consults the fault hook.
func (b base) enter(ctx context.Context, op string, arg any) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	unlock := func() {}
	if !b.inTx {
		b.s.mu.Lock()
		unlock = b.s.mu.Unlock
	}
	if b.s.fault != nil {
		if err := b.s.fault(op, arg); err != nil {
			unlock()
			return nil, err
		}
	}
	return unlock, nil
}
