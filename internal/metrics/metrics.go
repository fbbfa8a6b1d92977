// Package metrics records dispatch and tracking activity in Prometheus.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder holds the service collectors. A nil *Recorder is valid and
// records nothing.
type Recorder struct {
	dispatches  prometheus.Counter
	transitions *prometheus.CounterVec
	reports     *prometheus.CounterVec
	alerts      *prometheus.CounterVec
	batch       prometheus.Histogram
}

// NewRecorder registers the collectors on reg. If reg is nil, the default
// registerer is used. Already registered collectors are reused.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	r := &Recorder{
		dispatches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleet_dispatches_created_total",
			Help: "Total number of dispatches created",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleet_dispatch_transitions_total",
			Help: "Total number of dispatch status transitions",
		}, []string{"from", "to"}),
		reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleet_tracking_reports_total",
			Help: "Tracking reports processed, by storage result",
		}, []string{"result"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleet_tracking_alerts_total",
			Help: "Tracking alerts raised, by severity",
		}, []string{"severity"}),
		batch: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fleet_tracking_batch_seconds",
			Help:    "Time spent ingesting one tracking batch",
			Buckets: prometheus.DefBuckets,
		}),
	}

	var err error
	if r.dispatches, err = register(reg, r.dispatches); err != nil {
		return nil, err
	}
	if r.transitions, err = register(reg, r.transitions); err != nil {
		return nil, err
	}
	if r.reports, err = register(reg, r.reports); err != nil {
		return nil, err
	}
	if r.alerts, err = register(reg, r.alerts); err != nil {
		return nil, err
	}
	if r.batch, err = register(reg, r.batch); err != nil {
		return nil, err
	}
	return r, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// DispatchCreated counts a new dispatch.
func (r *Recorder) DispatchCreated() {
	if r == nil {
		return
	}
	r.dispatches.Inc()
}

// Transition counts a dispatch status change.
func (r *Recorder) Transition(from, to string) {
	if r == nil {
		return
	}
	r.transitions.WithLabelValues(from, to).Inc()
}

// TrackingReports counts stored and failed reports of one batch.
func (r *Recorder) TrackingReports(stored, failed int) {
	if r == nil {
		return
	}
	r.reports.WithLabelValues("stored").Add(float64(stored))
	r.reports.WithLabelValues("failed").Add(float64(failed))
}

// Alert counts a raised alert.
func (r *Recorder) Alert(severity string) {
	if r == nil {
		return
	}
	r.alerts.WithLabelValues(severity).Inc()
}

// BatchDuration observes the time spent on one batch.
func (r *Recorder) BatchDuration(d time.Duration) {
	if r == nil {
		return
	}
	r.batch.Observe(d.Seconds())
}
