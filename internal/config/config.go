package config

import (
	"fmt"
	"time"
)

// ServerConfig holds the transport listener settings supplied by the host
type ServerConfig struct {
	Port      int    `json:"port"`
	MountPath string `json:"mount_path"`
}

// SessionConfig holds session lifecycle tunables. It is read once at
// startup; sessions created afterwards snapshot these values when their
// timers are armed, so editing the config does not retouch timers of
// sessions that already exist (known limitation, kept from the reference
// behavior).
type SessionConfig struct {
	InactivityTimeoutSeconds int `json:"inactivity_timeout_seconds"`
	PingIntervalSeconds      int `json:"ping_interval_seconds"`
	MaxFailedPings           int `json:"max_failed_pings"`
}

// RateLimitConfig bounds per-client request rates
type RateLimitConfig struct {
	RequestsPerSecond float64 `json:"requests_per_second"`
	Burst             int     `json:"burst"`
}

// JournalConfig controls the session journal and its retention janitor
type JournalConfig struct {
	Enabled         bool   `json:"enabled"`
	DataDir         string `json:"data_dir"`
	RetentionDays   int    `json:"retention_days"`
	CleanupSchedule string `json:"cleanup_schedule"`
}

// Config is the full voxbridge configuration
type Config struct {
	Server    ServerConfig    `json:"server"`
	Session   SessionConfig   `json:"session"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	Journal   JournalConfig   `json:"journal"`
	LogDir    string          `json:"log_dir"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:      3000,
			MountPath: "/bb-mcp",
		},
		Session: SessionConfig{
			InactivityTimeoutSeconds: 300,
			PingIntervalSeconds:      30,
			MaxFailedPings:           3,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 10,
			Burst:             20,
		},
		Journal: JournalConfig{
			Enabled:         true,
			DataDir:         "data",
			RetentionDays:   30,
			CleanupSchedule: "0 3 * * *",
		},
		LogDir: "logs",
	}
}

// Validate rejects values that indicate programmer or operator error
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Server.MountPath == "" || c.Server.MountPath[0] != '/' {
		return fmt.Errorf("mount path must start with '/': %q", c.Server.MountPath)
	}
	if c.Session.InactivityTimeoutSeconds <= 0 {
		return fmt.Errorf("inactivity timeout must be positive: %d", c.Session.InactivityTimeoutSeconds)
	}
	if c.Session.PingIntervalSeconds < 0 {
		return fmt.Errorf("ping interval cannot be negative: %d", c.Session.PingIntervalSeconds)
	}
	if c.Session.MaxFailedPings <= 0 {
		return fmt.Errorf("max failed pings must be positive: %d", c.Session.MaxFailedPings)
	}
	if c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("rate limit values must be positive")
	}
	if c.Journal.Enabled && c.Journal.RetentionDays <= 0 {
		return fmt.Errorf("journal retention must be positive: %d", c.Journal.RetentionDays)
	}
	return nil
}

// InactivityTimeout returns the session inactivity timeout as a duration
func (c *SessionConfig) InactivityTimeout() time.Duration {
	return time.Duration(c.InactivityTimeoutSeconds) * time.Second
}

// PingInterval returns the liveness probe interval; zero disables probing
func (c *SessionConfig) PingInterval() time.Duration {
	return time.Duration(c.PingIntervalSeconds) * time.Second
}
