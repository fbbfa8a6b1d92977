package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	NewRelic  NewRelicConfig
	Log       LogConfig
	Geo       GeoConfig
	Dispatch  DispatchConfig
	Tracking  TrackingConfig
	RateLimit RateLimitConfig

	// DependencyTimeout bounds every persistence/geo call of a request.
	DependencyTimeout time.Duration
	// PolicyFile is an optional YAML/JSON file with anomaly thresholds.
	PolicyFile string
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// LogConfig holds logger configuration.
type LogConfig struct {
	Level string
}

// GeoConfig selects and configures the distance estimator.
type GeoConfig struct {
	Provider   string // "approximate" or "ors"
	ORSAPIKey  string
	ORSBaseURL string
	CacheTTL   time.Duration
}

// DispatchConfig holds dispatch pricing parameters.
type DispatchConfig struct {
	FuelPrice            float64 // per litre
	FuelLitresPerKm      float64
	RateDivisor          float64 // dailyRate / RateDivisor = per-km base rate
	ShipmentDefaultHours float64
	LockTTL              time.Duration
}

// TrackingConfig holds tracking batch limits.
type TrackingConfig struct {
	MaxBatch int
	Workers  int
}

// RateLimitConfig holds per-client request limits.
type RateLimitConfig struct {
	RPS   float64
	Burst int
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", "postgres"),
			DBName:       getEnv("DB_NAME", "fleet"),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns: getIntEnv("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns: getIntEnv("DB_MAX_IDLE_CONNS", 25),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		NewRelic: NewRelicConfig{
			AppName:    getEnv("NEW_RELIC_APP_NAME", "fleet-dispatch-service"),
			LicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
			Enabled:    getBoolEnv("NEW_RELIC_ENABLED", false),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Geo: GeoConfig{
			Provider:   getEnv("GEO_PROVIDER", "approximate"),
			ORSAPIKey:  getEnv("ORS_API_KEY", ""),
			ORSBaseURL: getEnv("ORS_BASE_URL", "https://api.openrouteservice.org"),
			CacheTTL:   getDurationEnv("GEO_CACHE_TTL", 24*time.Hour),
		},
		Dispatch: DispatchConfig{
			FuelPrice:            getFloatEnv("FUEL_PRICE", 7.5),
			FuelLitresPerKm:      getFloatEnv("FUEL_LITRES_PER_KM", 0.3),
			RateDivisor:          getFloatEnv("DISPATCH_RATE_DIVISOR", 300),
			ShipmentDefaultHours: getFloatEnv("SHIPMENT_DEFAULT_HOURS", 24),
			LockTTL:              getDurationEnv("DISPATCH_LOCK_TTL", 15*time.Second),
		},
		Tracking: TrackingConfig{
			MaxBatch: getIntEnv("TRACKING_MAX_BATCH", 1000),
			Workers:  getIntEnv("TRACKING_WORKERS", 8),
		},
		RateLimit: RateLimitConfig{
			RPS:   getFloatEnv("RATE_LIMIT_RPS", 20),
			Burst: getIntEnv("RATE_LIMIT_BURST", 40),
		},
		DependencyTimeout: getDurationEnv("DEPENDENCY_TIMEOUT", 5*time.Second),
		PolicyFile:        getEnv("FLEET_POLICY_FILE", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
