package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// policyEnvPrefix scopes env overrides, e.g. FLEET_POLICY__ANOMALY__MAXSPEEDKMH=120.
const policyEnvPrefix = "FLEET_POLICY__"

// AnomalyThresholds are the telemetry limits checked per tracking batch.
type AnomalyThresholds struct {
	// TimeGap flags consecutive samples further apart than this.
	TimeGap time.Duration `koanf:"timeGap"`
	// MinInterval flags consecutive samples closer than this as duplicates.
	MinInterval time.Duration `koanf:"minInterval"`
	// MaxSpeedKmh flags any sample faster than this.
	MaxSpeedKmh float64 `koanf:"maxSpeedKmh"`
	// MaxAcceleration bounds |Δspeed| / Δseconds × 3.6.
	MaxAcceleration float64 `koanf:"maxAcceleration"`
	// MaxImpliedSpeedKmh flags position jumps (distance / elapsed time).
	MaxImpliedSpeedKmh float64 `koanf:"maxImpliedSpeedKmh"`
}

// Policy holds fleet-wide thresholds with per vehicle-type overrides.
type Policy struct {
	Anomaly        AnomalyThresholds            `koanf:"anomaly"`
	VehicleClasses map[string]AnomalyThresholds `koanf:"vehicleClasses"`
}

// DefaultAnomalyThresholds returns the built-in limits.
func DefaultAnomalyThresholds() AnomalyThresholds {
	return AnomalyThresholds{
		TimeGap:            30 * time.Minute,
		MinInterval:        time.Second,
		MaxSpeedKmh:        150,
		MaxAcceleration:    10,
		MaxImpliedSpeedKmh: 1000,
	}
}

// DefaultPolicy returns a policy with only the built-in limits.
func DefaultPolicy() *Policy {
	return &Policy{Anomaly: DefaultAnomalyThresholds()}
}

// SetDefaults fills zero thresholds with built-in values.
func (t *AnomalyThresholds) SetDefaults() {
	t.inherit(DefaultAnomalyThresholds())
}

func (t *AnomalyThresholds) inherit(base AnomalyThresholds) {
	if t.TimeGap == 0 {
		t.TimeGap = base.TimeGap
	}
	if t.MinInterval == 0 {
		t.MinInterval = base.MinInterval
	}
	if t.MaxSpeedKmh == 0 {
		t.MaxSpeedKmh = base.MaxSpeedKmh
	}
	if t.MaxAcceleration == 0 {
		t.MaxAcceleration = base.MaxAcceleration
	}
	if t.MaxImpliedSpeedKmh == 0 {
		t.MaxImpliedSpeedKmh = base.MaxImpliedSpeedKmh
	}
}

// Validate rejects non-positive thresholds.
func (t AnomalyThresholds) Validate() error {
	switch {
	case t.TimeGap <= 0:
		return fmt.Errorf("timeGap must be positive")
	case t.MinInterval <= 0:
		return fmt.Errorf("minInterval must be positive")
	case t.MaxSpeedKmh <= 0:
		return fmt.Errorf("maxSpeedKmh must be positive")
	case t.MaxAcceleration <= 0:
		return fmt.Errorf("maxAcceleration must be positive")
	case t.MaxImpliedSpeedKmh <= 0:
		return fmt.Errorf("maxImpliedSpeedKmh must be positive")
	}
	return nil
}

// For returns the thresholds for a vehicle type, falling back to the fleet
// defaults for unknown types and unset fields.
func (p *Policy) For(vehicleType string) AnomalyThresholds {
	if p == nil {
		return DefaultAnomalyThresholds()
	}
	t, ok := p.VehicleClasses[strings.ToLower(vehicleType)]
	if !ok {
		return p.Anomaly
	}
	t.inherit(p.Anomaly)
	return t
}

// policyKeys restores the camelCase spelling of env-provided keys so they
// override the file values instead of sitting beside them.
var policyKeys = map[string]string{
	"vehicleclasses":     "vehicleClasses",
	"timegap":            "timeGap",
	"mininterval":        "minInterval",
	"maxspeedkmh":        "maxSpeedKmh",
	"maxacceleration":    "maxAcceleration",
	"maximpliedspeedkmh": "maxImpliedSpeedKmh",
}

func policyEnvKey(s string) string {
	parts := strings.Split(strings.ToLower(strings.TrimPrefix(s, policyEnvPrefix)), "__")
	for i, p := range parts {
		if canonical, ok := policyKeys[p]; ok {
			parts[i] = canonical
		}
	}
	return strings.Join(parts, ".")
}

// LoadPolicy reads the policy file at path, applies env overrides and
// defaults. An empty path yields the defaults plus env overrides.
func LoadPolicy(path string) (*Policy, error) {
	k := koanf.New(".")

	if path != "" {
		var parser koanf.Parser
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported policy format: %s", path)
		}
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("policy file: %w", err)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("load policy: %w", err)
		}
	}

	if err := k.Load(env.Provider(policyEnvPrefix, ".", policyEnvKey), nil); err != nil {
		return nil, fmt.Errorf("load policy env: %w", err)
	}

	var p Policy
	if err := k.Unmarshal("", &p); err != nil {
		return nil, fmt.Errorf("decode policy: %w", err)
	}

	p.Anomaly.SetDefaults()
	if err := p.Anomaly.Validate(); err != nil {
		return nil, fmt.Errorf("policy anomaly: %w", err)
	}

	classes := make(map[string]AnomalyThresholds, len(p.VehicleClasses))
	for name, t := range p.VehicleClasses {
		t.inherit(p.Anomaly)
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("policy vehicle class %q: %w", name, err)
		}
		classes[strings.ToLower(name)] = t
	}
	p.VehicleClasses = classes

	return &p, nil
}
