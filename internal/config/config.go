// Package config loads server settings from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates application configuration values.
type Config struct {
	HTTP    HTTPConfig
	Storage StorageConfig
	Auth    AuthConfig
	Logging LoggingConfig
	Swap    SwapConfig
	Media   MediaConfig
	Metrics MetricsConfig
}

// HTTPConfig governs HTTP server behaviour.
type HTTPConfig struct {
	Host              string
	Port              int
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	AllowedOriginsCSV string
}

// Addr returns host:port for net/http.
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AllowedOrigins splits the CSV origin list, dropping blanks.
func (c HTTPConfig) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.AllowedOriginsCSV, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// StorageConfig selects the swap store backend.
type StorageConfig struct {
	Driver      string // sqlite|postgres
	DBPath      string
	DatabaseURL string
	SeedDemo    bool
}

// AuthConfig controls bearer token handling.
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
	Required  bool
}

// LoggingConfig controls structured logging settings.
type LoggingConfig struct {
	Level string
}

// SwapConfig tunes the lifecycle policy.
type SwapConfig struct {
	AllowMethodReselection bool
	PendingTTL             time.Duration
	InTransitTTL           time.Duration
	AutoCompleteMinRating  int
}

// MediaConfig describes the evidence photo bucket. An empty bucket disables uploads.
type MediaConfig struct {
	Bucket       string
	Region       string
	Endpoint     string
	UploadExpiry time.Duration
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const (
	defaultHost                  = "0.0.0.0"
	defaultPort                  = 8080
	defaultReadTimeout           = 10 * time.Second
	defaultWriteTimeout          = 15 * time.Second
	defaultIdleTimeout           = 60 * time.Second
	defaultShutdownTimeout       = 10 * time.Second
	defaultDBPath                = "rewear.db"
	defaultJWTSecret             = "dev-secret-change-in-production"
	defaultTokenTTL              = 24 * time.Hour
	defaultLoggingLevel          = "info"
	defaultAutoCompleteMinRating = 3
	defaultRegion                = "us-east-1"
	defaultUploadExpiry          = 5 * time.Minute
)

// Load reads configuration from environment variables, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		HTTP: HTTPConfig{
			Host:              valueOrDefault("SERVER_HOST", defaultHost),
			AllowedOriginsCSV: valueOrDefault("SERVER_ALLOWED_ORIGINS", "*"),
		},
		Storage: StorageConfig{
			Driver:      strings.ToLower(valueOrDefault("STORAGE_DRIVER", DriverSQLite)),
			DBPath:      valueOrDefault("DB_PATH", defaultDBPath),
			DatabaseURL: os.Getenv("DATABASE_URL"),
			SeedDemo:    parseBoolWithDefault("SEED_DEMO_DATA", false),
		},
		Auth: AuthConfig{
			JWTSecret: valueOrDefault("JWT_SECRET", defaultJWTSecret),
			Required:  parseBoolWithDefault("AUTH_REQUIRED", false),
		},
		Logging: LoggingConfig{
			Level: valueOrDefault("LOG_LEVEL", defaultLoggingLevel),
		},
		Swap: SwapConfig{
			AllowMethodReselection: parseBoolWithDefault("SWAP_ALLOW_METHOD_RESELECTION", false),
			AutoCompleteMinRating:  parseIntWithDefault("SWAP_AUTO_COMPLETE_MIN_RATING", defaultAutoCompleteMinRating),
		},
		Media: MediaConfig{
			Bucket:   os.Getenv("S3_BUCKET_NAME"),
			Region:   valueOrDefault("AWS_REGION", defaultRegion),
			Endpoint: os.Getenv("S3_ENDPOINT"),
		},
		Metrics: MetricsConfig{
			Enabled: parseBoolWithDefault("METRICS_ENABLED", true),
		},
	}

	port, err := parsePort("SERVER_PORT", defaultPort)
	if err != nil {
		return Config{}, err
	}
	cfg.HTTP.Port = port

	durations := []struct {
		key      string
		fallback time.Duration
		dst      *time.Duration
	}{
		{"SERVER_READ_TIMEOUT", defaultReadTimeout, &cfg.HTTP.ReadTimeout},
		{"SERVER_WRITE_TIMEOUT", defaultWriteTimeout, &cfg.HTTP.WriteTimeout},
		{"SERVER_IDLE_TIMEOUT", defaultIdleTimeout, &cfg.HTTP.IdleTimeout},
		{"SERVER_SHUTDOWN_TIMEOUT", defaultShutdownTimeout, &cfg.HTTP.ShutdownTimeout},
		{"JWT_TTL", defaultTokenTTL, &cfg.Auth.TokenTTL},
		{"SWAP_PENDING_TTL", 0, &cfg.Swap.PendingTTL},
		{"SWAP_IN_TRANSIT_TTL", 0, &cfg.Swap.InTransitTTL},
		{"S3_UPLOAD_EXPIRY", defaultUploadExpiry, &cfg.Media.UploadExpiry},
	}
	for _, d := range durations {
		v, err := parseDuration(d.key, d.fallback)
		if err != nil {
			return Config{}, err
		}
		*d.dst = v
	}

	switch cfg.Storage.Driver {
	case DriverSQLite:
	case DriverPostgres:
		if cfg.Storage.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL is required when STORAGE_DRIVER=%s", DriverPostgres)
		}
	default:
		return Config{}, fmt.Errorf("unsupported STORAGE_DRIVER %q", cfg.Storage.Driver)
	}

	return cfg, nil
}

func valueOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBoolWithDefault(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		val, err := strconv.ParseBool(v)
		if err != nil {
			return fallback
		}
		return val
	}
	return fallback
}

func parseIntWithDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if val, err := strconv.Atoi(v); err == nil {
			return val
		}
	}
	return fallback
}

func parseDuration(key string, fallback time.Duration) (time.Duration, error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		if d < 0 {
			return 0, fmt.Errorf("invalid %s: negative duration %s", key, d)
		}
		return d, nil
	}
	return fallback, nil
}

func parsePort(key string, fallback int) (int, error) {
	if v := os.Getenv(key); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s value %q: %w", key, v, err)
		}
		if port <= 0 || port > 65535 {
			return 0, fmt.Errorf("port %d is out of range", port)
		}
		return port, nil
	}
	return fallback, nil
}
