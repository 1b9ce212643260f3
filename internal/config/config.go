// Package config loads process configuration from the environment, the same
// two-phase dotenv-then-os.Getenv shape the rest of this lineage uses:
// optional `.env` file first, then real environment variables with typed
// parsing and documented defaults. Required variables missing at startup
// are a fatal, logged error before any goroutine starts.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Deployment names the environment the process is running in. Informational
// only: logged once at startup, never branched on.
type Deployment string

const (
	DeploymentLocal Deployment = "local"
	DeploymentDev   Deployment = "dev"
	DeploymentStage Deployment = "stage"
	DeploymentProd  Deployment = "prod"
)

func parseDeployment(s string) Deployment {
	switch strings.ToLower(s) {
	case "dev", "development":
		return DeploymentDev
	case "stage", "staging":
		return DeploymentStage
	case "prod", "production":
		return DeploymentProd
	default:
		return DeploymentLocal
	}
}

// Config is process-wide configuration, loaded once at startup.
type Config struct {
	DatabaseURL string

	VaisalaBaseURL        string
	VaisalaBearerToken    string
	VaisalaSkipTLSVerify  bool
	VaisalaMaxHistoryDays int64

	SyncReadingsIntervalSeconds     uint64
	SyncDeviceStatusIntervalSeconds uint64
	SyncAlarmsIntervalSeconds       uint64
	SyncEventsIntervalSeconds       uint64
	SyncRetryMax                    uint32
	SyncRetryDelaySeconds            uint64

	APIHost string
	APIPort uint16

	DisableRateLimiting        bool
	RateLimitMetadataPerSecond float64
	RateLimitMetadataBurst     int
	RateLimitDataPerSecond     float64
	RateLimitDataBurst         int
	BulkConcurrentLimit        int64

	CacheTTLSeconds uint64
	CacheMaxBytes   int64

	Deployment Deployment
	LogLevel   string
	GopsAgent  bool
	MetricsEnabled bool
	EventBusURL    string
}

// MissingEnvError reports a required environment variable that was not set.
type MissingEnvError struct {
	Name string
}

func (e *MissingEnvError) Error() string {
	return fmt.Sprintf("missing required environment variable: %s", e.Name)
}

// FromEnv loads configuration from a `.env` file (if present, silently
// ignored otherwise) followed by the real process environment.
func FromEnv() (*Config, error) {
	_ = godotenv.Load()

	databaseURL, ok := os.LookupEnv("DATABASE_URL")
	if !ok || databaseURL == "" {
		return nil, &MissingEnvError{Name: "DATABASE_URL"}
	}
	bearerToken, ok := os.LookupEnv("VAISALA_BEARER_TOKEN")
	if !ok || bearerToken == "" {
		return nil, &MissingEnvError{Name: "VAISALA_BEARER_TOKEN"}
	}

	cfg := &Config{
		DatabaseURL: databaseURL,

		VaisalaBaseURL:        getString("VAISALA_BASE_URL", "https://your-vaisala-server.local/rest/v1"),
		VaisalaBearerToken:    bearerToken,
		VaisalaSkipTLSVerify:  getBool("VAISALA_SKIP_TLS_VERIFY", true),
		VaisalaMaxHistoryDays: getInt64("VAISALA_MAX_HISTORY_DAYS", 90),

		SyncReadingsIntervalSeconds:     getUint64("SYNC_READINGS_INTERVAL_SECONDS", 300),
		SyncDeviceStatusIntervalSeconds: getUint64("SYNC_DEVICE_STATUS_INTERVAL_SECONDS", 1800),
		SyncAlarmsIntervalSeconds:       getUint64("SYNC_ALARMS_INTERVAL_SECONDS", 300),
		SyncEventsIntervalSeconds:       getUint64("SYNC_EVENTS_INTERVAL_SECONDS", 300),
		SyncRetryMax:                    uint32(getUint64("SYNC_RETRY_MAX", 3)),
		SyncRetryDelaySeconds:           getUint64("SYNC_RETRY_DELAY_SECONDS", 60),

		APIHost: getString("API_HOST", "0.0.0.0"),
		APIPort: uint16(getUint64("API_PORT", 3000)),

		DisableRateLimiting:        getBool("DISABLE_RATE_LIMITING", false),
		RateLimitMetadataPerSecond: getFloat("RATE_LIMIT_METADATA_PER_SECOND", 1),
		RateLimitMetadataBurst:     int(getUint64("RATE_LIMIT_METADATA_BURST", 60)),
		RateLimitDataPerSecond:     getFloat("RATE_LIMIT_DATA_PER_SECOND", 10),
		RateLimitDataBurst:         int(getUint64("RATE_LIMIT_DATA_BURST", 60)),
		BulkConcurrentLimit:        int64(getUint64("BULK_CONCURRENT_LIMIT", 5)),

		CacheTTLSeconds: getUint64("CACHE_TTL_SECONDS", 300),
		CacheMaxBytes:   int64(getUint64("CACHE_MAX_BYTES", 209715200)),

		Deployment:     parseDeployment(getString("DEPLOYMENT", "local")),
		LogLevel:       getString("LOG_LEVEL", "info"),
		GopsAgent:      getBool("GOPS_AGENT", false),
		MetricsEnabled: getBool("METRICS_ENABLED", true),
		EventBusURL:    getString("EVENTBUS_URL", ""),
	}

	return cfg, nil
}

// BindAddress returns the "host:port" string for the HTTP listener.
func (c *Config) BindAddress() string {
	return fmt.Sprintf("%s:%d", c.APIHost, c.APIPort)
}

func getString(name, def string) string {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		return v
	}
	return def
}

func getBool(name string, def bool) bool {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getUint64(name string, def uint64) uint64 {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func getInt64(name string, def int64) int64 {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func getFloat(name string, def float64) float64 {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
