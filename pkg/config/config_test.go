package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dd0wney/cluso-graphwriter/pkg/logging"
	"github.com/dd0wney/cluso-graphwriter/pkg/metrics"
	"github.com/dd0wney/cluso-graphwriter/pkg/transport"
	"github.com/dd0wney/cluso-graphwriter/pkg/writebatch"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvAddress, EnvClientID, EnvTransport, EnvLogLevel} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "graphwrite.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	if cfg.ClientID != writebatch.DefaultClientID {
		t.Errorf("ClientID = %q, want %q", cfg.ClientID, writebatch.DefaultClientID)
	}
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
client_id: loader-7
address: tcp://graph.internal:9190
codec: json
compression: false
max_batch_size: 250
send_timeout: 2s
retry_backoff: 50ms
max_retries: 5
strict_validation: true
log_level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ClientID != "loader-7" || cfg.Address != "tcp://graph.internal:9190" {
		t.Errorf("identity = %q @ %q", cfg.ClientID, cfg.Address)
	}
	if cfg.Codec != "json" || cfg.Compression {
		t.Errorf("codec = %q compression = %v", cfg.Codec, cfg.Compression)
	}
	if cfg.MaxBatchSize != 250 || cfg.MaxRetries != 5 {
		t.Errorf("MaxBatchSize = %d MaxRetries = %d", cfg.MaxBatchSize, cfg.MaxRetries)
	}
	if cfg.SendTimeout != 2*time.Second || cfg.RetryBackoff != 50*time.Millisecond {
		t.Errorf("SendTimeout = %v RetryBackoff = %v", cfg.SendTimeout, cfg.RetryBackoff)
	}
	if !cfg.StrictValidation {
		t.Error("StrictValidation not loaded")
	}
	if cfg.Level() != logging.DebugLevel {
		t.Errorf("Level() = %v", cfg.Level())
	}
	// untouched keys keep their defaults
	if cfg.Transport != transport.DefaultTransport || cfg.MetricsAddr != DefaultMetricsAddr {
		t.Errorf("defaults lost: transport = %q metrics_addr = %q", cfg.Transport, cfg.MetricsAddr)
	}
}

func TestLoadWithoutFile(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") failed: %v", err)
	}
	if cfg.Address != DefaultAddress {
		t.Errorf("Address = %q, want %q", cfg.Address, DefaultAddress)
	}
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load(missing) succeeded")
	}

	if _, err := Load(writeConfig(t, "client_id: [unterminated")); err == nil {
		t.Error("Load(bad yaml) succeeded")
	}

	if _, err := Load(writeConfig(t, "max_batch_size: 0\n")); err == nil {
		t.Error("Load(max_batch_size: 0) succeeded")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvAddress, "ipc:///tmp/graphwrite.sock")
	t.Setenv(EnvClientID, "from-env")
	t.Setenv(EnvTransport, "NNG")
	t.Setenv(EnvLogLevel, "warn")

	cfg, err := Load(writeConfig(t, "client_id: from-file\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Address != "ipc:///tmp/graphwrite.sock" {
		t.Errorf("Address = %q", cfg.Address)
	}
	if cfg.ClientID != "from-env" {
		t.Errorf("ClientID = %q, want from-env", cfg.ClientID)
	}
	if cfg.Transport != "nng" {
		t.Errorf("Transport = %q, want nng", cfg.Transport)
	}
	if cfg.Level() != logging.WarnLevel {
		t.Errorf("Level() = %v", cfg.Level())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{"empty client id", func(c *Config) { c.ClientID = "" }, "ClientID"},
		{"empty address", func(c *Config) { c.Address = "" }, "Address"},
		{"bad transport", func(c *Config) { c.Transport = "carrier-pigeon" }, "Transport"},
		{"bad codec", func(c *Config) { c.Codec = "avro" }, "Codec"},
		{"zero batch size", func(c *Config) { c.MaxBatchSize = 0 }, "MaxBatchSize"},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }, "MaxRetries"},
		{"zero send timeout", func(c *Config) { c.SendTimeout = 0 }, "send_timeout"},
		{"zero backoff with retries", func(c *Config) { c.RetryBackoff = 0 }, "retry_backoff"},
		{"bad log level", func(c *Config) { c.LogLevel = "chatty" }, "log_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() succeeded")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("Validate() = %v, want mention of %q", err, tt.wantSub)
			}
		})
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.ClientID = ""
	cfg.LogLevel = "chatty"
	cfg.SendTimeout = 0

	err := cfg.Validate()
	for _, want := range []string{"ClientID", "log_level", "send_timeout"} {
		if err == nil || !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() = %v, missing %q", err, want)
		}
	}
}

func TestValidateUncompiledTransport(t *testing.T) {
	if transport.IsAvailable("zmq") {
		t.Skip("zmq transport compiled in")
	}
	cfg := Default()
	cfg.Transport = "zmq"

	err := cfg.Validate()
	if !errors.Is(err, transport.ErrUnknownTransport) {
		t.Errorf("Validate() = %v, want ErrUnknownTransport", err)
	}
}

func TestComponentConfigs(t *testing.T) {
	cfg := Default()
	cfg.MaxBatchSize = 50000
	cfg.StrictValidation = true
	reg := metrics.NewRegistry()
	logger := logging.NewNopLogger()

	cc := cfg.ClientConfig(logger, reg)
	if cc.Address != cfg.Address || !cc.StrictValidation || cc.Metrics != reg {
		t.Errorf("ClientConfig() = %+v", cc)
	}
	if cc.Limits.MaxBatchSize != 50000 {
		t.Errorf("Limits.MaxBatchSize = %d, want 50000", cc.Limits.MaxBatchSize)
	}

	wc := cfg.WriterConfig(logger, reg)
	if wc.ClientID != cfg.ClientID || wc.MaxBatchSize != 50000 {
		t.Errorf("WriterConfig() = %+v", wc)
	}

	rc := cfg.ReceiverConfig(logger, reg)
	if rc.Address != cfg.Address || rc.RecvTimeout != cfg.RecvTimeout {
		t.Errorf("ReceiverConfig() = %+v", rc)
	}
}
