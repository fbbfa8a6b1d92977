package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := NewRecorder(reg)
	require.NoError(t, err)

	r.DispatchCreated()
	r.Transition("SCHEDULED", "ASSIGNED")
	r.Transition("SCHEDULED", "ASSIGNED")
	r.TrackingReports(3, 1)
	r.Alert("HIGH")
	r.BatchDuration(20 * time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.dispatches))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.transitions.WithLabelValues("SCHEDULED", "ASSIGNED")))

	expected := `
# HELP fleet_tracking_reports_total Tracking reports processed, by storage result
# TYPE fleet_tracking_reports_total counter
fleet_tracking_reports_total{result="failed"} 1
fleet_tracking_reports_total{result="stored"} 3
`
	assert.NoError(t, testutil.CollectAndCompare(r.reports, strings.NewReader(expected)))
	assert.Equal(t, 1, testutil.CollectAndCount(r.batch))
}

func TestRecorder_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewRecorder(reg)
	require.NoError(t, err)
	second, err := NewRecorder(reg)
	require.NoError(t, err)

	first.DispatchCreated()
	second.DispatchCreated()
	assert.Equal(t, 2.0, testutil.ToFloat64(first.dispatches))
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.DispatchCreated()
		r.Transition("A", "B")
		r.TrackingReports(1, 0)
		r.Alert("LOW")
		r.BatchDuration(time.Second)
	})
}
