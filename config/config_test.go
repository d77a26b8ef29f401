package config_test

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DNS-OARC/gonet/config"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gonet.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()

	if cfg.Listen.Addr != ":4433" {
		t.Errorf("Listen.Addr = %q, want %q", cfg.Listen.Addr, ":4433")
	}
	if cfg.Listen.Backlog != 128 {
		t.Errorf("Listen.Backlog = %d, want 128", cfg.Listen.Backlog)
	}
	if cfg.Metrics.Addr != ":9100" {
		t.Errorf("Metrics.Addr = %q, want %q", cfg.Metrics.Addr, ":9100")
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}

	if err := config.Validate(cfg); err != nil {
		t.Errorf("DefaultConfig() failed validation: %v", err)
	}
}

func TestLoadFromYAML(t *testing.T) {
	t.Parallel()

	yamlContent := `
listen:
  addr: ":6000"
  backlog: 64
tls:
  enabled: true
  cert_file: "/etc/gonet/cert.pem"
  key_file: "/etc/gonet/key.pem"
resolver:
  servers: ["9.9.9.9:53"]
  timeout: "2s"
log:
  level: "debug"
  format: "text"
`

	path := writeTemp(t, yamlContent)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.Listen.Addr != ":6000" {
		t.Errorf("Listen.Addr = %q, want %q", cfg.Listen.Addr, ":6000")
	}
	if cfg.Listen.Backlog != 64 {
		t.Errorf("Listen.Backlog = %d, want 64", cfg.Listen.Backlog)
	}
	if !cfg.TLS.Enabled {
		t.Error("TLS.Enabled = false, want true")
	}
	if len(cfg.Resolver.Servers) != 1 || cfg.Resolver.Servers[0] != "9.9.9.9:53" {
		t.Errorf("Resolver.Servers = %v, want [9.9.9.9:53]", cfg.Resolver.Servers)
	}
	if cfg.Resolver.Timeout != 2*time.Second {
		t.Errorf("Resolver.Timeout = %v, want 2s", cfg.Resolver.Timeout)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "debug")
	}
}

func TestLoadMergesDefaults(t *testing.T) {
	t.Parallel()

	yamlContent := `
listen:
  addr: ":7000"
log:
  level: "warn"
`

	path := writeTemp(t, yamlContent)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.Listen.Addr != ":7000" {
		t.Errorf("Listen.Addr = %q, want %q", cfg.Listen.Addr, ":7000")
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "warn")
	}
	// Preserved from defaults.
	if cfg.Listen.Backlog != 128 {
		t.Errorf("Listen.Backlog = %d, want default 128", cfg.Listen.Backlog)
	}
	if cfg.Metrics.Addr != ":9100" {
		t.Errorf("Metrics.Addr = %q, want default %q", cfg.Metrics.Addr, ":9100")
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want default %q", cfg.Log.Format, "json")
	}
}

func TestValidateErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		modify  func(*config.Config)
		wantErr error
	}{
		{
			name: "empty listen addr",
			modify: func(cfg *config.Config) {
				cfg.Listen.Addr = ""
			},
			wantErr: config.ErrEmptyListenAddr,
		},
		{
			name: "zero backlog",
			modify: func(cfg *config.Config) {
				cfg.Listen.Backlog = 0
			},
			wantErr: config.ErrInvalidBacklog,
		},
		{
			name: "tls enabled without cert",
			modify: func(cfg *config.Config) {
				cfg.TLS.Enabled = true
			},
			wantErr: config.ErrTLSMissingCert,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.DefaultConfig()
			tt.modify(cfg)

			err := config.Validate(cfg)
			if err == nil {
				t.Fatal("Validate() returned nil, want error")
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  slog.Level
	}{
		{input: "debug", want: slog.LevelDebug},
		{input: "DEBUG", want: slog.LevelDebug},
		{input: "info", want: slog.LevelInfo},
		{input: "warn", want: slog.LevelWarn},
		{input: "error", want: slog.LevelError},
		{input: "unknown", want: slog.LevelInfo},
		{input: "", want: slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			got := config.ParseLogLevel(tt.input)
			if got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLoadNonexistentFile(t *testing.T) {
	t.Parallel()

	_, err := config.Load("/nonexistent/path/gonet.yml")
	if err == nil {
		t.Fatal("Load() returned nil error for nonexistent file")
	}
}
