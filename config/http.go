package config

import (
	"fmt"
	"time"
)

// HTTPConfig defines the API server settings.
type HTTPConfig struct {
	Addr string `json:"addr"`
	// LogsToken protects GET /api/dispatch/logs with a bearer token when set.
	LogsToken              string `json:"logs_token"`
	ReadTimeoutSeconds     int    `json:"read_timeout_seconds"`
	WriteTimeoutSeconds    int    `json:"write_timeout_seconds"`
	ShutdownTimeoutSeconds int    `json:"shutdown_timeout_seconds"`
}

// DefaultHTTPConfig listens on :8080 with conservative timeouts.
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		Addr:                   ":8080",
		ReadTimeoutSeconds:     10,
		WriteTimeoutSeconds:    30,
		ShutdownTimeoutSeconds: 10,
	}
}

// Validate checks mandatory fields.
func (c HTTPConfig) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("http: addr is required")
	}
	if c.ReadTimeoutSeconds < 0 || c.WriteTimeoutSeconds < 0 || c.ShutdownTimeoutSeconds < 0 {
		return fmt.Errorf("http: timeouts must be >= 0")
	}
	return nil
}

func (c HTTPConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutSeconds) * time.Second
}

func (c HTTPConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutSeconds) * time.Second
}

func (c HTTPConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}
