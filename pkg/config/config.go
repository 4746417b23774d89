package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Telemetry source names accepted by TELEMETRY_SOURCE.
const (
	SourceSimulated  = "simulated"
	SourcePrometheus = "prometheus"
	SourceKubernetes = "kubernetes"
)

// Config holds every engine setting. It is built once at process
// start, optionally overridden by CLI flags, and validated before any
// component is constructed. Nothing reads the environment after that.
type Config struct {
	// HTTP surface
	ListenAddr string

	// Storage
	StorageEnabled bool
	DatabaseURL    string

	// Telemetry
	TelemetrySource   string
	PrometheusURL     string
	ObservationWindow time.Duration

	// Pricing
	PricingProvider string
	PricingRegion   string

	// Scheduler
	ScanInterval time.Duration
	Workers      int
	ClaimTimeout time.Duration

	// Execution retry policy
	ExecMaxAttempts int
	ExecBaseDelay   time.Duration
	ExecMaxDelay    time.Duration
	ExecCallTimeout time.Duration

	// Risk policy overrides, "type:kind=level" entries separated by
	// commas. Empty keeps the built-in table.
	RiskOverrides string

	// Auth
	AuthDisabled    bool
	JWTSecret       string
	MinApprovalRole string

	Verbose bool
}

// New builds a Config from the environment with defaults suitable for
// local development (in-memory store, simulated telemetry).
func New() *Config {
	return &Config{
		ListenAddr: getEnv("LISTEN_ADDR", ":8080"),

		StorageEnabled: getEnvBool("STORAGE_ENABLED", false),
		DatabaseURL:    getEnv("DATABASE_URL", "host=localhost port=5432 user=costuser password=devpassword dbname=costoptimizer sslmode=disable"),

		TelemetrySource:   getEnv("TELEMETRY_SOURCE", SourceSimulated),
		PrometheusURL:     getEnv("PROMETHEUS_URL", "http://localhost:9090"),
		ObservationWindow: getEnvDuration("OBSERVATION_WINDOW", 24*time.Hour),

		PricingProvider: getEnv("PRICING_PROVIDER", ""),
		PricingRegion:   getEnv("PRICING_REGION", ""),

		ScanInterval: getEnvDuration("SCAN_INTERVAL", time.Minute),
		Workers:      getEnvInt("SCAN_WORKERS", 8),
		ClaimTimeout: getEnvDuration("CLAIM_TIMEOUT", 10*time.Minute),

		ExecMaxAttempts: getEnvInt("EXEC_MAX_ATTEMPTS", 4),
		ExecBaseDelay:   getEnvDuration("EXEC_BASE_DELAY", 500*time.Millisecond),
		ExecMaxDelay:    getEnvDuration("EXEC_MAX_DELAY", 30*time.Second),
		ExecCallTimeout: getEnvDuration("EXEC_CALL_TIMEOUT", 30*time.Second),

		RiskOverrides: getEnv("RISK_OVERRIDES", ""),

		AuthDisabled:    getEnvBool("AUTH_DISABLED", false),
		JWTSecret:       getEnv("JWT_SECRET", ""),
		MinApprovalRole: getEnv("MIN_APPROVAL_ROLE", "admin"),

		Verbose: getEnvBool("VERBOSE", false),
	}
}

// Validate checks the configuration and returns the first problem
// found. It is pure: no I/O, no environment reads.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("LISTEN_ADDR must not be empty")
	}
	if c.StorageEnabled && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must be set when storage is enabled")
	}
	switch c.TelemetrySource {
	case SourceSimulated, SourceKubernetes:
	case SourcePrometheus:
		if c.PrometheusURL == "" {
			return fmt.Errorf("PROMETHEUS_URL must be set for the prometheus telemetry source")
		}
	default:
		return fmt.Errorf("unknown telemetry source %q", c.TelemetrySource)
	}
	if c.ObservationWindow < time.Minute {
		return fmt.Errorf("observation window must be at least 1 minute")
	}
	if c.ScanInterval < time.Second {
		return fmt.Errorf("scan interval must be at least 1 second")
	}
	if c.Workers < 1 {
		return fmt.Errorf("scan workers must be at least 1")
	}
	if c.ClaimTimeout < c.ExecCallTimeout {
		return fmt.Errorf("claim timeout must be at least the execution call timeout")
	}
	if c.ExecMaxAttempts < 1 {
		return fmt.Errorf("execution max attempts must be at least 1")
	}
	if c.ExecBaseDelay <= 0 {
		return fmt.Errorf("execution base delay must be positive")
	}
	if c.ExecMaxDelay < c.ExecBaseDelay {
		return fmt.Errorf("execution max delay must be >= base delay")
	}
	if !c.AuthDisabled && len(c.JWTSecret) < 16 {
		return fmt.Errorf("JWT_SECRET must be at least 16 characters unless AUTH_DISABLED=true")
	}
	switch c.MinApprovalRole {
	case "readonly", "user", "admin":
	default:
		return fmt.Errorf("unknown minimum approval role %q", c.MinApprovalRole)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
