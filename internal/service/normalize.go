package service

import (
	"math"
	"time"

	"fleet/internal/domain"
)

const maxReportSpeedKmh = 300.0

// Clamp records which fields of a report were forced into range.
type Clamp struct {
	Latitude  bool
	Longitude bool
	Speed     bool
	Heading   bool
	Timestamp bool
}

// Any reports whether any field was changed.
func (c Clamp) Any() bool {
	return c.Latitude || c.Longitude || c.Speed || c.Heading || c.Timestamp
}

// NormalizeReport forces a raw report into valid ranges. Out of range values
// are clamped, never rejected. An unparsable timestamp becomes now.
func NormalizeReport(r domain.LocationReport, now time.Time) (domain.TrackingSample, Clamp) {
	var c Clamp

	s := domain.TrackingSample{
		Latitude:  clamp(r.Latitude, -90, 90, &c.Latitude),
		Longitude: clamp(r.Longitude, -180, 180, &c.Longitude),
		Speed:     clamp(r.Speed, 0, maxReportSpeedKmh, &c.Speed),
		Heading:   normalizeHeading(r.Heading, &c.Heading),
		Altitude:  r.Altitude,
		Accuracy:  r.Accuracy,
		Address:   r.Address,
	}

	ts, ok := parseTimestamp(r.Timestamp)
	if !ok {
		ts = now
		c.Timestamp = true
	}
	s.Timestamp = ts

	return s, c
}

func clamp(v, lo, hi float64, changed *bool) float64 {
	switch {
	case math.IsNaN(v):
		*changed = true
		return lo
	case v < lo:
		*changed = true
		return lo
	case v > hi:
		*changed = true
		return hi
	}
	return v
}

func normalizeHeading(h float64, changed *bool) float64 {
	if math.IsNaN(h) || math.IsInf(h, 0) {
		*changed = true
		return 0
	}
	n := math.Mod(h, 360)
	if n < 0 {
		n += 360
	}
	if n != h {
		*changed = true
	}
	return n
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseTimestamp(v string) (time.Time, bool) {
	if v == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
