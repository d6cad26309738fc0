/*
Package configs is responsible for loading and parsing the application's configuration settings.

It configures the server by reading operating system environment variables: the running
environment, port and CORS allowed origins, the session idle timeout and cleanup interval,
the per-session rate limits and penalty schedule, and the per-IP connection throttle.
*/
package configs

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// AppConfig contains all configuration parameters required for the application to run.
// All configuration values are loaded from environment variables.
type AppConfig struct {
	// General Server Settings
	Environment string
	Port        int

	// Security Settings
	AllowedOrigins []string

	// Session Lifecycle Settings
	SessionIdleTimeout time.Duration
	CleanupInterval    time.Duration

	// Per-Session Rate Limit Settings
	RateMessageLimit      int
	RateRoomOpLimit       int
	RateWindow            time.Duration
	RatePenaltyMultiplier float64
	RateWindowCeiling     time.Duration
	RateMaxPenalties      int
	RatePenaltyDecay      time.Duration
	RateEntryIdle         time.Duration

	// Content Settings
	MaxContentLength int

	// Per-IP Connection Throttle Settings
	IPConnectRate  float64
	IPConnectBurst int
}

// IsDevelopment reports whether the server runs in the development environment.
func (c *AppConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// LoadConfig reads and parses the application configuration from environment variables.
// It provides default values for each configuration item and performs necessary type conversions and validation.
// It returns a pointer to the AppConfig struct and any error encountered.
func LoadConfig() (*AppConfig, error) {
	cfg := &AppConfig{}
	var err error

	// --- General Server Settings ---
	// Environment
	cfg.Environment = os.Getenv("ENVIRONMENT")
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	// Port
	if cfg.Port, err = envInt("PORT", 8080); err != nil {
		return nil, err
	}
	if cfg.Port < 1024 || cfg.Port > 65535 {
		return nil, fmt.Errorf("port number %d is outside the recommended range (%d-%d) to avoid privileged ports", cfg.Port, 1024, 65535)
	}

	// --- Security Settings ---
	// AllowedOrigins
	cfg.AllowedOrigins = []string{}
	if originsStr := os.Getenv("ALLOWED_ORIGINS"); originsStr != "" {
		for _, origin := range strings.Split(originsStr, ",") {
			if trimmed := strings.TrimSpace(origin); trimmed != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, trimmed)
			}
		}
	}
	if !cfg.IsDevelopment() && len(cfg.AllowedOrigins) == 0 {
		return nil, fmt.Errorf("ALLOWED_ORIGINS environment variable is required in %s environment", cfg.Environment)
	}

	// --- Session Lifecycle Settings ---
	if cfg.SessionIdleTimeout, err = envDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.CleanupInterval, err = envDuration("CLEANUP_INTERVAL", 5*time.Minute); err != nil {
		return nil, err
	}

	// --- Per-Session Rate Limit Settings ---
	if cfg.RateMessageLimit, err = envInt("RATE_MESSAGE_LIMIT", 30); err != nil {
		return nil, err
	}
	if cfg.RateRoomOpLimit, err = envInt("RATE_ROOM_OP_LIMIT", 5); err != nil {
		return nil, err
	}
	if cfg.RateWindow, err = envDuration("RATE_WINDOW", time.Minute); err != nil {
		return nil, err
	}
	if cfg.RatePenaltyMultiplier, err = envFloat("RATE_PENALTY_MULTIPLIER", 2); err != nil {
		return nil, err
	}
	if cfg.RateWindowCeiling, err = envDuration("RATE_WINDOW_CEILING", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RateMaxPenalties, err = envInt("RATE_MAX_PENALTIES", 5); err != nil {
		return nil, err
	}
	if cfg.RatePenaltyDecay, err = envDuration("RATE_PENALTY_DECAY", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RateEntryIdle, err = envDuration("RATE_ENTRY_IDLE", 30*time.Minute); err != nil {
		return nil, err
	}

	if cfg.RateMessageLimit < 1 || cfg.RateRoomOpLimit < 1 || cfg.RateMaxPenalties < 1 {
		return nil, fmt.Errorf("rate limits and RATE_MAX_PENALTIES must be at least 1")
	}
	if cfg.RatePenaltyMultiplier <= 1 {
		return nil, fmt.Errorf("RATE_PENALTY_MULTIPLIER must be greater than 1, got %g", cfg.RatePenaltyMultiplier)
	}
	if cfg.RateWindowCeiling <= cfg.RateWindow {
		return nil, fmt.Errorf("RATE_WINDOW_CEILING (%s) must be longer than RATE_WINDOW (%s)", cfg.RateWindowCeiling, cfg.RateWindow)
	}

	// --- Content Settings ---
	if cfg.MaxContentLength, err = envInt("MAX_CONTENT_LENGTH", 1000); err != nil {
		return nil, err
	}
	if cfg.MaxContentLength < 1 {
		return nil, fmt.Errorf("MAX_CONTENT_LENGTH must be at least 1, got %d", cfg.MaxContentLength)
	}

	// --- Per-IP Connection Throttle Settings ---
	if cfg.IPConnectRate, err = envFloat("IP_CONNECT_RATE", 0.2); err != nil {
		return nil, err
	}
	if cfg.IPConnectBurst, err = envInt("IP_CONNECT_BURST", 5); err != nil {
		return nil, err
	}

	return cfg, nil
}

func envInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return v, nil
}

func envFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return v, nil
}

// envDuration accepts Go duration strings ("90s", "5m").
func envDuration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("invalid %s environment variable: must be positive, got %s", key, v)
	}
	return v, nil
}
