// Package config defines service configuration and its layered loader.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Catalog sources.
const (
	SourceFile     = "file"
	SourcePostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// LogLevel controls verbosity: trace, debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// ErrorSampleRate logs one in every N warnings and errors.
	ErrorSampleRate int `koanf:"error_sample_rate"`

	// CatalogSource selects where the catalog is loaded from: file or postgres.
	CatalogSource string `koanf:"catalog_source"`

	// CatalogPaths is a comma-separated list of catalog files tried in order.
	CatalogPaths string `koanf:"catalog_paths"`

	// DatabaseURL is the PostgreSQL connection string for the postgres source.
	DatabaseURL string `koanf:"database_url"`

	// CatalogTTL reloads the catalog on first access after expiry. Zero disables expiry.
	CatalogTTL time.Duration `koanf:"catalog_ttl"`

	// WatchCatalog refreshes the catalog when the resolved catalog file changes.
	WatchCatalog bool `koanf:"watch_catalog"`

	// RequestTimeout bounds each HTTP request.
	RequestTimeout time.Duration `koanf:"request_timeout"`

	// MetricsEnabled exposes Prometheus metrics on /metrics.
	MetricsEnabled bool `koanf:"metrics_enabled"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		Addr:            ":8080",
		LogLevel:        "info",
		ErrorSampleRate: 1,
		CatalogSource:   SourceFile,
		CatalogPaths:    "data/mbs-catalog.json,mbs-catalog.json",
		CatalogTTL:      0,
		WatchCatalog:    false,
		RequestTimeout:  30 * time.Second,
		MetricsEnabled:  true,
	}
}

// Paths splits CatalogPaths into its non-empty entries.
func (c *Config) Paths() []string {
	var out []string
	for _, p := range strings.Split(c.CatalogPaths, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	switch c.CatalogSource {
	case SourceFile:
		if len(c.Paths()) == 0 {
			return fmt.Errorf("%w: catalog_paths must list at least one file", ErrInvalidConfig)
		}
	case SourcePostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("%w: database_url is required for the postgres catalog source", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown catalog_source %q (use file or postgres)", ErrInvalidConfig, c.CatalogSource)
	}
	if c.CatalogTTL < 0 {
		return fmt.Errorf("%w: catalog_ttl must not be negative", ErrInvalidConfig)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%w: request_timeout must be positive", ErrInvalidConfig)
	}
	return nil
}
