package service

import (
	"fmt"
	"math"
	"time"

	"fleet/internal/config"
	"fleet/internal/domain"
)

const alertTitle = "批量更新数据异常"

// Anomaly is a suspicious telemetry pattern found in a batch.
type Anomaly struct {
	Severity    domain.Severity
	Description string
	Location    domain.Coordinates
	At          time.Time
}

// AnomalyDetector checks chronologically sorted samples against thresholds.
type AnomalyDetector struct {
	thresholds config.AnomalyThresholds
	distance   func(a, b domain.Coordinates) float64
}

// NewAnomalyDetector creates an AnomalyDetector. distance returns kilometres.
func NewAnomalyDetector(t config.AnomalyThresholds, distance func(a, b domain.Coordinates) float64) *AnomalyDetector {
	t.SetDefaults()
	return &AnomalyDetector{thresholds: t, distance: distance}
}

// Detect returns every anomaly in sorted. The speed check applies to each
// sample; the other checks apply to consecutive pairs and may each fire.
func (d *AnomalyDetector) Detect(sorted []domain.TrackingSample) []Anomaly {
	var out []Anomaly
	t := d.thresholds

	for i, curr := range sorted {
		if curr.Speed > t.MaxSpeedKmh {
			out = append(out, d.anomaly(curr, domain.SeverityHigh,
				fmt.Sprintf("检测到异常高速: %.2f km/h", curr.Speed)))
		}
		if i == 0 {
			continue
		}

		prev := sorted[i-1]
		elapsed := curr.Timestamp.Sub(prev.Timestamp)

		if elapsed > t.TimeGap {
			out = append(out, d.anomaly(curr, domain.SeverityMedium,
				fmt.Sprintf("位置数据间隔 %d 分钟，可能存在数据丢失", int(math.Round(elapsed.Minutes())))))
		}
		if elapsed < t.MinInterval {
			out = append(out, d.anomaly(curr, domain.SeverityLow,
				"位置数据时间间隔过短，可能存在重复数据"))
		}
		if elapsed <= 0 {
			continue
		}

		seconds := elapsed.Seconds()
		// km/h gained per second, scaled as the fleet devices report it.
		accel := (curr.Speed - prev.Speed) / seconds * 3.6
		if math.Abs(accel) > t.MaxAcceleration {
			out = append(out, d.anomaly(curr, domain.SeverityHigh,
				fmt.Sprintf("检测到异常加速度: %.2f km/h/s", accel)))
		}

		implied := d.distance(prev.Coordinates(), curr.Coordinates()) / elapsed.Hours()
		if implied > t.MaxImpliedSpeedKmh {
			out = append(out, d.anomaly(curr, domain.SeverityHigh,
				fmt.Sprintf("检测到位置跳跃异常，平均速度: %.2f km/h", implied)))
		}
	}
	return out
}

func (d *AnomalyDetector) anomaly(s domain.TrackingSample, sev domain.Severity, desc string) Anomaly {
	return Anomaly{Severity: sev, Description: desc, Location: s.Coordinates(), At: s.Timestamp}
}
