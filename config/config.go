// Package config loads the service configuration from an optional YAML or
// JSON file and DISPATCH_ prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/courier-dispatch/core/dispatch"
	"github.com/kilianp07/courier-dispatch/core/dispatch/logging"
	"github.com/kilianp07/courier-dispatch/core/metrics"
	"github.com/kilianp07/courier-dispatch/infra/reliability"
)

// EnvPrefix prefixes every environment override. DISPATCH_HTTP__ADDR sets
// http.addr.
const EnvPrefix = "DISPATCH_"

type Config struct {
	HTTP        HTTPConfig         `json:"http"`
	Dispatch    dispatch.Config    `json:"dispatch"`
	Metrics     metrics.Config     `json:"metrics"`
	Logging     logging.Config     `json:"logging"`
	Reliability reliability.Config `json:"reliability"`
	Sentry      SentryConfig       `json:"sentry"`
}

// Default returns the configuration used when no file or override is given.
func Default() Config {
	cfg := base()
	cfg.Logging.SetDefaults()
	cfg.Reliability.SetDefaults()
	return cfg
}

// base leaves the logging and reliability sections empty: their defaults
// depend on the backend chosen by the file or the environment.
func base() Config {
	return Config{
		HTTP:     DefaultHTTPConfig(),
		Dispatch: dispatch.DefaultConfig(),
		Metrics:  metrics.Config{PrometheusEnabled: true},
	}
}

// Load reads path (when non-empty) and applies environment overrides on top
// of Default. A missing file is an error only when path was given explicitly.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		parser, err := parserFor(path)
		if err != nil {
			return nil, err
		}
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("config: env: %w", err)
	}

	cfg := base()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.Logging.SetDefaults()
	cfg.Reliability.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every section.
func (c Config) Validate() error {
	return errors.Join(
		c.HTTP.Validate(),
		c.Dispatch.Validate(),
		c.Logging.Validate(),
		c.Reliability.Validate(),
		c.Sentry.Validate(),
	)
}

func parserFor(path string) (koanf.Parser, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return json.Parser(), nil
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
}

func envKey(s string) string {
	s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}
