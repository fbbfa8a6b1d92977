package service

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"fleet/internal/domain"
)

// Range is a min/max pair.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// AccuracyStats summarizes reported GPS accuracy in metres.
type AccuracyStats struct {
	Avg   float64 `json:"avg"`
	Best  float64 `json:"best"`
	Worst float64 `json:"worst"`
}

// BatchStatistics summarizes one tracking batch.
type BatchStatistics struct {
	TotalUpdates    int           `json:"total_updates"`
	TimeSpan        int           `json:"time_span"` // minutes
	DistanceCovered float64       `json:"distance_covered"`
	AvgSpeed        float64       `json:"avg_speed"`
	MaxSpeed        float64       `json:"max_speed"`
	AltitudeRange   Range         `json:"altitude_range"`
	AccuracyStats   AccuracyStats `json:"accuracy_stats"`
}

// sortChronologically returns the samples ordered by timestamp. Equal
// timestamps keep their input order.
func sortChronologically(samples []domain.TrackingSample) []domain.TrackingSample {
	sorted := make([]domain.TrackingSample, len(samples))
	copy(sorted, samples)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	return sorted
}

// ComputeStatistics summarizes chronologically sorted samples. distance
// returns kilometres between two positions.
func ComputeStatistics(sorted []domain.TrackingSample, distance func(a, b domain.Coordinates) float64) BatchStatistics {
	st := BatchStatistics{TotalUpdates: len(sorted)}
	if len(sorted) == 0 {
		return st
	}

	span := sorted[len(sorted)-1].Timestamp.Sub(sorted[0].Timestamp)
	st.TimeSpan = int(math.Round(span.Minutes()))

	var total float64
	for i := 1; i < len(sorted); i++ {
		total += distance(sorted[i-1].Coordinates(), sorted[i].Coordinates())
	}
	st.DistanceCovered = round2(total)

	speeds := make([]float64, 0, len(sorted))
	var altitudes, accuracies []float64
	for _, s := range sorted {
		speeds = append(speeds, s.Speed)
		if s.Altitude != nil {
			altitudes = append(altitudes, *s.Altitude)
		}
		if s.Accuracy != nil {
			accuracies = append(accuracies, *s.Accuracy)
		}
	}

	st.AvgSpeed = round2(stat.Mean(speeds, nil))
	st.MaxSpeed = round2(floats.Max(speeds))

	if len(altitudes) > 0 {
		st.AltitudeRange = Range{Min: round2(floats.Min(altitudes)), Max: round2(floats.Max(altitudes))}
	}
	if len(accuracies) > 0 {
		st.AccuracyStats = AccuracyStats{
			Avg:   round2(stat.Mean(accuracies, nil)),
			Best:  round2(floats.Min(accuracies)),
			Worst: round2(floats.Max(accuracies)),
		}
	}
	return st
}
