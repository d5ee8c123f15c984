// Package config loads the settings shared by the graphwrite tools.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/dd0wney/cluso-graphwriter/pkg/logging"
	"github.com/dd0wney/cluso-graphwriter/pkg/metrics"
	"github.com/dd0wney/cluso-graphwriter/pkg/transport"
	"github.com/dd0wney/cluso-graphwriter/pkg/validation"
	"github.com/dd0wney/cluso-graphwriter/pkg/wire"
	"github.com/dd0wney/cluso-graphwriter/pkg/writebatch"
	"github.com/dd0wney/cluso-graphwriter/pkg/writeclient"
)

// Environment variables that override file settings
const (
	EnvAddress   = "GRAPHWRITE_ADDRESS"
	EnvClientID  = "GRAPHWRITE_CLIENT_ID"
	EnvTransport = "GRAPHWRITE_TRANSPORT"
	EnvLogLevel  = "LOG_LEVEL"
)

// Default configuration values
const (
	DefaultAddress     = "tcp://127.0.0.1:9190"
	DefaultMetricsAddr = ":9191"
	DefaultMaxRetries  = 3
)

// Config holds client and sink settings
type Config struct {
	// ClientID identifies the writer to the service (default: DEFAULT)
	ClientID string `yaml:"client_id" validate:"required"`

	// Transport selects the socket implementation: nng or zmq
	Transport string `yaml:"transport" validate:"required,oneof=nng zmq"`

	// Address is the service endpoint, e.g. tcp://host:9190
	Address string `yaml:"address" validate:"required"`

	// Codec is the batch encoding: proto or json
	Codec string `yaml:"codec" validate:"oneof=proto json"`

	// Compression snappy-compresses batch payloads
	Compression bool `yaml:"compression"`

	// MaxBatchSize is the record count that triggers an automatic flush
	MaxBatchSize int `yaml:"max_batch_size" validate:"min=1"`

	SendTimeout  time.Duration `yaml:"send_timeout"`
	RecvTimeout  time.Duration `yaml:"recv_timeout"`
	MaxRetries   int           `yaml:"max_retries" validate:"min=0"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`

	// StrictValidation checks labels, ids and property keys before sending
	StrictValidation bool `yaml:"strict_validation"`

	LogLevel string `yaml:"log_level"`

	// MetricsAddr is the sink's HTTP listen address for /metrics (empty disables)
	MetricsAddr string `yaml:"metrics_addr"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		ClientID:     writebatch.DefaultClientID,
		Transport:    transport.DefaultTransport,
		Address:      DefaultAddress,
		Codec:        wire.CodecProto,
		Compression:  true,
		MaxBatchSize: writeclient.DefaultMaxBatchSize,
		SendTimeout:  writeclient.DefaultSendTimeout,
		RecvTimeout:  writeclient.DefaultRecvTimeout,
		MaxRetries:   DefaultMaxRetries,
		RetryBackoff: writeclient.DefaultRetryBackoff,
		LogLevel:     "info",
		MetricsAddr:  DefaultMetricsAddr,
	}
}

// Load reads a YAML file over the defaults, applies environment overrides
// and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides settings from the environment
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvAddress); v != "" {
		c.Address = v
	}
	if v := os.Getenv(EnvClientID); v != "" {
		c.ClientID = v
	}
	if v := os.Getenv(EnvTransport); v != "" {
		c.Transport = strings.ToLower(v)
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
}

var validate = validator.New()

// Validate checks the configuration and returns every problem found.
func (c *Config) Validate() error {
	var errs []error

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			errs = append(errs, fmt.Errorf("config: %s failed %q check (value %v)", fe.Field(), fe.Tag(), fe.Value()))
		}
	}

	cv := validation.NewConfigValidator("config").
		MinDuration("send_timeout", c.SendTimeout, time.Millisecond).
		MinDuration("recv_timeout", c.RecvTimeout, time.Millisecond).
		When(c.MaxRetries > 0, func(v *validation.ConfigValidator) {
			v.MinDuration("retry_backoff", c.RetryBackoff, time.Millisecond)
		}).
		Custom("log_level", func() error {
			_, err := logging.ParseLevel(c.LogLevel)
			return err
		}).
		When(c.Transport != "", func(v *validation.ConfigValidator) {
			v.Custom("transport", func() error {
				if !transport.IsAvailable(c.Transport) {
					return fmt.Errorf("%w: %q is not compiled in (available: %v)", transport.ErrUnknownTransport, c.Transport, transport.Available())
				}
				return nil
			})
		})
	errs = append(errs, cv.Errors()...)

	return errors.Join(errs...)
}

// Level returns the parsed log level, InfoLevel if it does not parse
func (c *Config) Level() logging.Level {
	level, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		return logging.InfoLevel
	}
	return level
}

// Limits returns the strict validation limits for this configuration.
func (c *Config) Limits() validation.Limits {
	limits := validation.DefaultLimits()
	if c.MaxBatchSize > limits.MaxBatchSize {
		limits.MaxBatchSize = c.MaxBatchSize
	}
	return limits
}

// ClientConfig converts the settings for writeclient.NewClient
func (c *Config) ClientConfig(logger logging.Logger, m *metrics.Registry) writeclient.ClientConfig {
	return writeclient.ClientConfig{
		Address:          c.Address,
		Codec:            c.Codec,
		Compression:      c.Compression,
		SendTimeout:      c.SendTimeout,
		MaxRetries:       c.MaxRetries,
		RetryBackoff:     c.RetryBackoff,
		StrictValidation: c.StrictValidation,
		Limits:           c.Limits(),
		Logger:           logger,
		Metrics:          m,
	}
}

// WriterConfig converts the settings for writeclient.NewWriter
func (c *Config) WriterConfig(logger logging.Logger, m *metrics.Registry) writeclient.WriterConfig {
	return writeclient.WriterConfig{
		ClientID:     c.ClientID,
		MaxBatchSize: c.MaxBatchSize,
		Logger:       logger,
		Metrics:      m,
	}
}

// ReceiverConfig converts the settings for writeclient.NewReceiver
func (c *Config) ReceiverConfig(logger logging.Logger, m *metrics.Registry) writeclient.ReceiverConfig {
	return writeclient.ReceiverConfig{
		Address:     c.Address,
		RecvTimeout: c.RecvTimeout,
		Logger:      logger,
		Metrics:     m,
	}
}
