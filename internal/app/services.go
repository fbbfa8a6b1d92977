package app

import (
	"fleet/internal/config"
	"fleet/internal/geo"
	"fleet/internal/handler"
	"fleet/internal/logger"
	"fleet/internal/metrics"
	"fleet/internal/redis"
	"fleet/internal/repository"
	"fleet/internal/service"
)

// Backend is the persistence and coordination side the services run on.
// Positions and Locks may be nil when Redis is not configured.
type Backend struct {
	Tx        repository.Transactor
	Repos     repository.Repositories
	Estimator geo.Estimator
	Positions redis.PositionStoreInterface
	Locks     redis.LockStoreInterface
}

// Services groups the domain services.
type Services struct {
	Dispatch *service.DispatchService
	Tracking *service.TrackingService
}

// NewServices wires the dispatch and tracking services on b.
func NewServices(cfg *config.Config, b Backend, policy *config.Policy, rec *metrics.Recorder, log logger.Logger) *Services {
	notifier := service.NewNotificationService(log)
	return &Services{
		Dispatch: service.NewDispatchService(b.Tx, b.Repos, b.Estimator, b.Positions, b.Locks,
			notifier, rec, log, cfg.Dispatch, cfg.DependencyTimeout),
		Tracking: service.NewTrackingService(b.Repos, b.Estimator, b.Positions, notifier, rec, log,
			policy, cfg.Tracking, cfg.DependencyTimeout),
	}
}

// Handlers builds the HTTP handlers for s.
func (s *Services) Handlers() (*handler.DispatchHandler, *handler.FleetHandler, *handler.TrackingHandler) {
	return handler.NewDispatchHandler(s.Dispatch), handler.NewFleetHandler(s.Dispatch), handler.NewTrackingHandler(s.Tracking)
}
