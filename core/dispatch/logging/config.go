package logging

import (
	"context"
	"fmt"
)

// Backend names accepted by Config.Backend.
const (
	BackendNone     = "none"
	BackendJSONL    = "jsonl"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config defines settings for the assignment audit log.
type Config struct {
	// Backend selects the log store type: "none", "jsonl", "sqlite" or "postgres".
	Backend string `json:"backend"`
	// Path is the file location of the jsonl and sqlite stores.
	Path string `json:"path"`
	// DSN is the PostgreSQL connection string.
	DSN string `json:"dsn"`
	// MaxSizeMB triggers rotation of the jsonl store when the file exceeds
	// this size in megabytes. 0 disables rotation.
	MaxSizeMB int `json:"max_size_mb"`
	// MaxBackups limits the number of rotated files to keep.
	MaxBackups int `json:"max_backups"`
	// MaxAgeDays removes rotated files older than this number of days.
	MaxAgeDays int `json:"max_age_days"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Backend == "" {
		c.Backend = BackendJSONL
	}
	if c.Path == "" {
		switch c.Backend {
		case BackendJSONL:
			c.Path = "assignment_runs.jsonl"
		case BackendSQLite:
			c.Path = "assignment_runs.db"
		}
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendNone:
	case BackendJSONL, BackendSQLite:
		if c.Path == "" {
			return fmt.Errorf("logging: path is required for backend %s", c.Backend)
		}
	case BackendPostgres:
		if c.DSN == "" {
			return fmt.Errorf("logging: dsn is required for backend %s", c.Backend)
		}
	default:
		return fmt.Errorf("logging: unknown backend %q", c.Backend)
	}
	if c.MaxSizeMB < 0 || c.MaxBackups < 0 || c.MaxAgeDays < 0 {
		return fmt.Errorf("logging: rotation settings must be >= 0")
	}
	return nil
}

// NewLogStore opens the store selected by cfg.
func NewLogStore(ctx context.Context, cfg Config) (LogStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case BackendJSONL:
		if cfg.MaxSizeMB > 0 {
			return NewRotatingJSONLStore(cfg.Path, cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays)
		}
		return NewJSONLStore(cfg.Path)
	case BackendSQLite:
		return NewSQLiteStore(cfg.Path)
	case BackendPostgres:
		return NewPostgresStore(ctx, cfg.DSN)
	default:
		return NopStore{}, nil
	}
}
