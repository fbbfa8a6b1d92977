package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"fleet/internal/config"
	"fleet/internal/domain"
	"fleet/internal/geo"
	"fleet/internal/logger"
	"fleet/internal/metrics"
	"fleet/internal/redis"
	"fleet/internal/repository"
)

const (
	defaultMaxBatch  = 1000
	defaultWorkers   = 8
	defaultLogsLimit = 100
	maxLogsLimit     = 1000
)

// TrackingService ingests location report batches for shipments.
type TrackingService struct {
	repos     repository.Repositories
	geo       geo.Estimator
	positions redis.PositionStoreInterface
	notifier  *NotificationService
	metrics   *metrics.Recorder
	log       logger.Logger
	policy    *config.Policy
	cfg       config.TrackingConfig
	timeout   time.Duration
	now       func() time.Time
}

// NewTrackingService creates a new TrackingService. positions, notifier, rec
// and policy may be nil.
func NewTrackingService(
	repos repository.Repositories,
	estimator geo.Estimator,
	positions redis.PositionStoreInterface,
	notifier *NotificationService,
	rec *metrics.Recorder,
	log logger.Logger,
	policy *config.Policy,
	cfg config.TrackingConfig,
	timeout time.Duration,
) *TrackingService {
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = defaultMaxBatch
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	return &TrackingService{
		repos:     repos,
		geo:       estimator,
		positions: positions,
		notifier:  notifier,
		metrics:   rec,
		log:       log,
		policy:    policy,
		cfg:       cfg,
		timeout:   timeout,
		now:       time.Now,
	}
}

// IngestRequest is one batch of reports for a shipment.
type IngestRequest struct {
	ShipmentID string
	Reports    []domain.LocationReport
	DeviceID   string
}

// ItemFailure is a report that could not be stored.
type ItemFailure struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// IngestResult summarizes a batch.
type IngestResult struct {
	Total      int
	Successful int
	Failed     int
	Errors     []ItemFailure
	Statistics BatchStatistics
	Alerts     []*domain.TrackingAlert
}

// IngestBatch normalizes, stores and analyses a batch of reports. Individual
// storage failures are reported in the result and do not fail the batch.
func (s *TrackingService) IngestBatch(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	if strings.TrimSpace(req.ShipmentID) == "" {
		return nil, ErrInvalidShipmentID
	}
	if len(req.Reports) == 0 || len(req.Reports) > s.cfg.MaxBatch {
		return nil, ErrBatchSize
	}

	started := s.now()
	ctx = logger.WithContext(ctx, logger.ShipmentIDKey, req.ShipmentID)

	shipment, err := s.loadShipment(ctx, req.ShipmentID)
	if err != nil {
		return nil, err
	}
	if shipment.Status != domain.ShipmentStatusInTransit {
		return nil, ErrShipmentNotInTransit
	}

	samples := make([]domain.TrackingSample, len(req.Reports))
	for i, r := range req.Reports {
		sample, c := NormalizeReport(r, started)
		if c.Any() {
			s.log.Debugf(ctx, "report %d clamped: %+v", i, c)
		}
		samples[i] = sample
	}

	sorted := sortChronologically(samples)
	result := &IngestResult{
		Total:      len(samples),
		Statistics: ComputeStatistics(sorted, s.geo.Between),
	}

	failures := s.store(ctx, shipment.ID, req.DeviceID, samples, started)
	result.Failed = len(failures)
	result.Successful = result.Total - result.Failed
	result.Errors = failures
	s.metrics.TrackingReports(result.Successful, result.Failed)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if result.Failed > 0 {
		s.log.Warnf(ctx, "batch stored partially: %d of %d reports failed", result.Failed, result.Total)
	}

	if result.Successful > 0 {
		s.updatePosition(ctx, shipment, sorted[len(sorted)-1])
		result.Alerts = s.raiseAlerts(ctx, shipment, sorted)
	}

	s.metrics.BatchDuration(s.now().Sub(started))
	return result, nil
}

func (s *TrackingService) loadShipment(ctx context.Context, id string) (*domain.Shipment, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	shipment, err := s.repos.Shipments.GetByID(ctx, id)
	if err != nil {
		return nil, classify("load shipment", err, ErrShipmentNotFound)
	}
	return shipment, nil
}

// store writes every sample with a bounded pool of workers and returns the
// failures ordered by index.
func (s *TrackingService) store(ctx context.Context, shipmentID, deviceID string, samples []domain.TrackingSample, received time.Time) []ItemFailure {
	errs := make([]error, len(samples))

	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)
	for i, sample := range samples {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}

			callCtx, cancel := s.bounded(ctx)
			defer cancel()

			errs[i] = s.repos.Tracking.InsertLog(callCtx, &domain.TrackingLog{
				ID:         uuid.New().String(),
				ShipmentID: shipmentID,
				Latitude:   sample.Latitude,
				Longitude:  sample.Longitude,
				Speed:      sample.Speed,
				Heading:    sample.Heading,
				Altitude:   sample.Altitude,
				Accuracy:   sample.Accuracy,
				Address:    sample.Address,
				Timestamp:  sample.Timestamp,
				ReceivedAt: received,
				DeviceID:   deviceID,
			})
			return nil
		})
	}
	_ = g.Wait()

	var failures []ItemFailure
	for i, err := range errs {
		if err != nil {
			failures = append(failures, ItemFailure{Index: i, Error: err.Error()})
		}
	}
	return failures
}

// updatePosition records the latest sample as the shipment's current location
// and the vehicle's last known position. Failures are logged only.
func (s *TrackingService) updatePosition(ctx context.Context, shipment *domain.Shipment, latest domain.TrackingSample) {
	callCtx, cancel := s.bounded(ctx)
	defer cancel()

	at := latest.Coordinates()
	if err := s.repos.Shipments.UpdateLocation(callCtx, shipment.ID, at, latest.Timestamp); err != nil {
		s.log.Warnf(ctx, "update shipment location: %v", err)
	}
	if s.positions != nil && shipment.VehicleID != "" {
		if err := s.positions.UpdatePosition(callCtx, shipment.VehicleID, at); err != nil {
			s.log.Warnf(ctx, "update vehicle %s position: %v", shipment.VehicleID, err)
		}
	}
}

func (s *TrackingService) raiseAlerts(ctx context.Context, shipment *domain.Shipment, sorted []domain.TrackingSample) []*domain.TrackingAlert {
	detector := NewAnomalyDetector(s.thresholds(ctx, shipment), s.geo.Between)
	anomalies := detector.Detect(sorted)
	if len(anomalies) == 0 {
		return nil
	}

	alerts := make([]*domain.TrackingAlert, 0, len(anomalies))
	for _, a := range anomalies {
		loc := a.Location
		alerts = append(alerts, &domain.TrackingAlert{
			ID:          uuid.New().String(),
			ShipmentID:  shipment.ID,
			Type:        domain.AlertTypeDataAnomaly,
			Severity:    a.Severity,
			Title:       alertTitle,
			Description: a.Description,
			Location:    &loc,
			Status:      domain.AlertStatusActive,
			TriggeredAt: a.At,
		})
		s.metrics.Alert(string(a.Severity))
	}

	callCtx, cancel := s.bounded(ctx)
	defer cancel()
	if err := s.repos.Tracking.InsertAlerts(callCtx, alerts); err != nil {
		s.log.Errorf(ctx, "persist %d tracking alerts: %v", len(alerts), err)
	}

	if s.notifier != nil {
		for _, a := range alerts {
			s.notifier.NotifyAlert(ctx, shipment, a)
		}
	}
	return alerts
}

// thresholds resolves the anomaly thresholds for the shipment's vehicle class.
func (s *TrackingService) thresholds(ctx context.Context, shipment *domain.Shipment) config.AnomalyThresholds {
	if s.policy == nil || len(s.policy.VehicleClasses) == 0 || shipment.VehicleID == "" {
		return s.policy.For("")
	}

	callCtx, cancel := s.bounded(ctx)
	defer cancel()

	v, err := s.repos.Vehicles.GetByID(callCtx, shipment.VehicleID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.log.Warnf(ctx, "load vehicle %s for thresholds: %v", shipment.VehicleID, err)
		}
		return s.policy.For("")
	}
	return s.policy.For(v.Type)
}

// ListAlerts returns the alerts raised for a shipment, newest first.
func (s *TrackingService) ListAlerts(ctx context.Context, shipmentID string) ([]*domain.TrackingAlert, error) {
	if shipmentID == "" {
		return nil, ErrInvalidShipmentID
	}
	if _, err := s.loadShipment(ctx, shipmentID); err != nil {
		return nil, err
	}

	ctx, cancel := s.bounded(ctx)
	defer cancel()

	alerts, err := s.repos.Tracking.ListAlerts(ctx, shipmentID)
	if err != nil {
		return nil, classify("list alerts", err, nil)
	}
	return alerts, nil
}

// ListLogs returns up to limit stored reports of a shipment, newest first.
func (s *TrackingService) ListLogs(ctx context.Context, shipmentID string, limit int) ([]*domain.TrackingLog, error) {
	if shipmentID == "" {
		return nil, ErrInvalidShipmentID
	}
	if limit <= 0 {
		limit = defaultLogsLimit
	}
	if limit > maxLogsLimit {
		limit = maxLogsLimit
	}
	if _, err := s.loadShipment(ctx, shipmentID); err != nil {
		return nil, err
	}

	ctx, cancel := s.bounded(ctx)
	defer cancel()

	logs, err := s.repos.Tracking.ListLogs(ctx, shipmentID, limit)
	if err != nil {
		return nil, classify("list tracking logs", err, nil)
	}
	return logs, nil
}

func (s *TrackingService) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}
