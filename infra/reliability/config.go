package reliability

import (
	"fmt"
	"time"

	"github.com/kilianp07/courier-dispatch/auth"
)

const (
	// BackendNone disables the reliability source.
	BackendNone = "none"
	// BackendRedis reads scores from a Redis hash.
	BackendRedis = "redis"
	// BackendHTTP asks a remote scoring service.
	BackendHTTP = "http"

	// DefaultKey is the hash holding courier id -> score.
	DefaultKey = "dispatch:reliability"
)

// Config defines the reliability source settings.
type Config struct {
	Backend  string `json:"backend"`
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Key      string `json:"key"`

	// URL, TimeoutSeconds and Auth configure the http backend.
	URL            string    `json:"url"`
	TimeoutSeconds int       `json:"timeout_seconds"`
	Auth           auth.Conf `json:"auth"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Backend == "" {
		c.Backend = BackendNone
	}
	if c.Key == "" {
		c.Key = DefaultKey
	}
	if c.Backend == BackendRedis && c.Addr == "" {
		c.Addr = "localhost:6379"
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = 2
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendNone:
		return nil
	case BackendRedis:
		if c.Addr == "" {
			return fmt.Errorf("reliability: addr is required for backend redis")
		}
		if c.DB < 0 {
			return fmt.Errorf("reliability: db must be >= 0")
		}
		return nil
	case BackendHTTP:
		if c.URL == "" {
			return fmt.Errorf("reliability: url is required for backend http")
		}
		if c.TimeoutSeconds < 0 {
			return fmt.Errorf("reliability: timeout_seconds must be >= 0")
		}
		return nil
	default:
		return fmt.Errorf("reliability: unknown backend %q", c.Backend)
	}
}

// Timeout returns the per-request timeout of the http backend.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
