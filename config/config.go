// Package config manages gonet daemon/CLI configuration using koanf/v2.
//
// Supports YAML files and environment variables, following the teacher's
// layered load order: defaults, then file, then environment. There is no
// CLI-flag layer.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// -------------------------------------------------------------------------
// Configuration Structures
// -------------------------------------------------------------------------

// Config holds the complete gonet daemon configuration.
type Config struct {
	Listen   ListenConfig   `koanf:"listen"`
	TLS      TLSConfig      `koanf:"tls"`
	Resolver ResolverConfig `koanf:"resolver"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Log      LogConfig      `koanf:"log"`
}

// ListenConfig holds the framed-message server's socket configuration.
type ListenConfig struct {
	// Addr is the TCP listen address (e.g., ":4433").
	Addr string `koanf:"addr"`
	// Backlog is passed through to tcpsock.Endpoint.Listen.
	Backlog int `koanf:"backlog"`
	// PollInterval bounds how often the accept loop checks for a
	// requested stop.
	PollInterval time.Duration `koanf:"poll_interval"`
	// ConnectTimeout is a connect timeout for outbound connections. It is
	// loaded and defaulted but not read by gonet-relayd or gonetctl
	// (gonetctl takes its own --timeout flag).
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
	// ReadTimeout and WriteTimeout bound per-connection I/O.
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
	// SourceInterface names an outbound interface. It is loaded but not
	// read by any binary; tcpsock.Endpoint.SetSource is not called from it.
	SourceInterface string `koanf:"source_interface"`
}

// TLSConfig holds the TLS context configuration consumed by tlsctx.
type TLSConfig struct {
	// Enabled turns on TLS for the listen/connect paths.
	Enabled bool `koanf:"enabled"`
	// CertFile and KeyFile are the server certificate/key pair.
	CertFile string `koanf:"cert_file"`
	KeyFile  string `koanf:"key_file"`
	// TrustedCAFile is an optional CA bundle for verifying peers.
	TrustedCAFile string `koanf:"trusted_ca_file"`
	// RequireClientCert is loaded but not read: gonet-relayd's TLS setup
	// does not request or verify client certificates whatever its value.
	RequireClientCert bool `koanf:"require_client_cert"`
}

// ResolverConfig holds nameserver and timeout settings for the resolver
// package. Both fields are loaded and validated but neither binary passes
// them to resolver; gonetctl's resolve command takes its own flags.
type ResolverConfig struct {
	// Servers is a list of "host:port" nameservers.
	Servers []string `koanf:"servers"`
	// Timeout is a per-query timeout.
	Timeout time.Duration `koanf:"timeout"`
}

// MetricsConfig holds the Prometheus metrics endpoint configuration.
type MetricsConfig struct {
	// Addr is the HTTP listen address for the metrics endpoint (e.g., ":9100").
	Addr string `koanf:"addr"`
	// Path is the URL path for the metrics endpoint (e.g., "/metrics").
	Path string `koanf:"path"`
}

// LogConfig holds the logging configuration.
type LogConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `koanf:"level"`
	// Format is the log output format: "json" or "text".
	Format string `koanf:"format"`
}

// -------------------------------------------------------------------------
// Defaults
// -------------------------------------------------------------------------

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Listen: ListenConfig{
			Addr:           ":4433",
			Backlog:        128,
			PollInterval:   200 * time.Millisecond,
			ConnectTimeout: 10 * time.Second,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   30 * time.Second,
		},
		Resolver: ResolverConfig{
			Timeout: 5 * time.Second,
		},
		Metrics: MetricsConfig{
			Addr: ":9100",
			Path: "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// -------------------------------------------------------------------------
// Loader
// -------------------------------------------------------------------------

// envPrefix is the environment variable prefix for gonet configuration.
// Variables are named GONET_<section>_<key>, e.g., GONET_LISTEN_ADDR.
const envPrefix = "GONET_"

// Load reads configuration from a YAML file at path, overlays environment
// variable overrides (GONET_ prefix), and merges on top of DefaultConfig().
// Missing fields inherit defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := DefaultConfig()
	if err := loadDefaults(k, defaults); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config from %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config from %s: %w", path, err)
	}

	return cfg, nil
}

// envKeyMapper transforms GONET_LISTEN_ADDR -> listen.addr. Only the first
// underscore after the prefix separates section from key, so
// GONET_LISTEN_READ_TIMEOUT -> listen.read_timeout.
func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.Replace(s, "_", ".", 1)
}

// loadDefaults marshals the default config into koanf as the base layer.
func loadDefaults(k *koanf.Koanf, defaults *Config) error {
	defaultMap := map[string]any{
		"listen.addr":             defaults.Listen.Addr,
		"listen.backlog":          defaults.Listen.Backlog,
		"listen.poll_interval":    defaults.Listen.PollInterval.String(),
		"listen.connect_timeout":  defaults.Listen.ConnectTimeout.String(),
		"listen.read_timeout":     defaults.Listen.ReadTimeout.String(),
		"listen.write_timeout":    defaults.Listen.WriteTimeout.String(),
		"resolver.timeout":        defaults.Resolver.Timeout.String(),
		"metrics.addr":            defaults.Metrics.Addr,
		"metrics.path":            defaults.Metrics.Path,
		"log.level":               defaults.Log.Level,
		"log.format":              defaults.Log.Format,
	}

	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

// -------------------------------------------------------------------------
// Validation
// -------------------------------------------------------------------------

var (
	// ErrEmptyListenAddr indicates the listen address is empty.
	ErrEmptyListenAddr = errors.New("listen.addr must not be empty")

	// ErrInvalidBacklog indicates a non-positive accept backlog.
	ErrInvalidBacklog = errors.New("listen.backlog must be > 0")

	// ErrTLSMissingCert indicates TLS is enabled without a certificate pair.
	ErrTLSMissingCert = errors.New("tls.cert_file and tls.key_file are required when tls.enabled")
)

// Validate checks the configuration for logical errors.
func Validate(cfg *Config) error {
	if cfg.Listen.Addr == "" {
		return ErrEmptyListenAddr
	}
	if cfg.Listen.Backlog <= 0 {
		return ErrInvalidBacklog
	}
	if cfg.TLS.Enabled && (cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "") {
		return ErrTLSMissingCert
	}
	return nil
}

// -------------------------------------------------------------------------
// Log Level Parsing
// -------------------------------------------------------------------------

// ParseLogLevel maps a configuration log level string to the corresponding
// slog.Level. Unknown values default to slog.LevelInfo.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
