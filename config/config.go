// Package config loads the resp-server configuration.
//
// Sources are layered with increasing priority: defaults, a YAML file,
// environment variables (RESP_SECTION_KEY) and finally explicit overrides
// such as command line flags.
package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/raniellyferreira/resp-server/protocol"
	"github.com/raniellyferreira/resp-server/server"
)

// Config is the complete server configuration
type Config struct {
	Server  ServerSection  `koanf:"server" yaml:"server"`
	Limits  LimitsSection  `koanf:"limits" yaml:"limits"`
	Log     LogSection     `koanf:"log" yaml:"log"`
	Metrics MetricsSection `koanf:"metrics" yaml:"metrics"`
	Script  ScriptSection  `koanf:"script" yaml:"script"`
}

// ServerSection configures the listener and per-connection behavior
type ServerSection struct {
	Addr         string        `koanf:"addr" yaml:"addr"`
	ReadTimeout  time.Duration `koanf:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout" yaml:"write_timeout"`
	IdleTimeout  time.Duration `koanf:"idle_timeout" yaml:"idle_timeout"`
	RateLimit    float64       `koanf:"rate_limit" yaml:"rate_limit"`
	RateBurst    int           `koanf:"rate_burst" yaml:"rate_burst"`
}

// LimitsSection bounds what the decoder accepts. Zero selects the default
// and a negative value disables the check.
type LimitsSection struct {
	MaxBulkLen    int64 `koanf:"max_bulk_len" yaml:"max_bulk_len"`
	MaxArrayLen   int64 `koanf:"max_array_len" yaml:"max_array_len"`
	MaxDepth      int   `koanf:"max_depth" yaml:"max_depth"`
	MaxLineLen    int   `koanf:"max_line_len" yaml:"max_line_len"`
	MaxBufferSize int   `koanf:"max_buffer_size" yaml:"max_buffer_size"`
}

// LogSection configures logging
type LogSection struct {
	// Level is one of debug, info, warn, error
	Level string `koanf:"level" yaml:"level"`
	// Format is text or json
	Format string `koanf:"format" yaml:"format"`
}

// MetricsSection configures the Prometheus endpoint. An empty Addr
// disables it.
type MetricsSection struct {
	Addr string `koanf:"addr" yaml:"addr"`
}

// ScriptSection selects an optional Lua handler script
type ScriptSection struct {
	Path string `koanf:"path" yaml:"path"`
}

// Default returns the configuration used when nothing else is set
func Default() *Config {
	def := server.DefaultConfig()
	limits := protocol.DefaultLimits()

	return &Config{
		Server: ServerSection{
			Addr:         def.Addr,
			ReadTimeout:  def.ReadTimeout,
			WriteTimeout: def.WriteTimeout,
			IdleTimeout:  def.IdleTimeout,
		},
		Limits: LimitsSection{
			MaxBulkLen:    limits.MaxBulkLen,
			MaxArrayLen:   limits.MaxArrayLen,
			MaxDepth:      limits.MaxDepth,
			MaxLineLen:    limits.MaxLineLen,
			MaxBufferSize: limits.MaxBufferSize,
		},
		Log: LogSection{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate reports every invalid setting at once
func (c *Config) Validate() error {
	var errs []error

	if _, _, err := net.SplitHostPort(c.Server.Addr); err != nil {
		errs = append(errs, fmt.Errorf("server.addr: %w", err))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, errors.New("server.read_timeout: must not be negative"))
	}
	if c.Server.WriteTimeout < 0 {
		errs = append(errs, errors.New("server.write_timeout: must not be negative"))
	}
	if c.Server.IdleTimeout < 0 {
		errs = append(errs, errors.New("server.idle_timeout: must not be negative"))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, errors.New("server.rate_limit: must not be negative"))
	}
	if c.Server.RateBurst < 0 {
		errs = append(errs, errors.New("server.rate_burst: must not be negative"))
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level: unknown level %q", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}

	if c.Metrics.Addr != "" {
		if _, _, err := net.SplitHostPort(c.Metrics.Addr); err != nil {
			errs = append(errs, fmt.Errorf("metrics.addr: %w", err))
		}
	}

	return errors.Join(errs...)
}

// ProtocolLimits returns the decoder limits
func (c *Config) ProtocolLimits() protocol.Limits {
	return protocol.Limits{
		MaxBulkLen:    c.Limits.MaxBulkLen,
		MaxArrayLen:   c.Limits.MaxArrayLen,
		MaxDepth:      c.Limits.MaxDepth,
		MaxLineLen:    c.Limits.MaxLineLen,
		MaxBufferSize: c.Limits.MaxBufferSize,
	}
}

// ServerConfig returns the settings of the server package
func (c *Config) ServerConfig() server.Config {
	return server.Config{
		Addr:         c.Server.Addr,
		ReadTimeout:  c.Server.ReadTimeout,
		WriteTimeout: c.Server.WriteTimeout,
		IdleTimeout:  c.Server.IdleTimeout,
		RateLimit:    c.Server.RateLimit,
		RateBurst:    c.Server.RateBurst,
		Limits:       c.ProtocolLimits(),
	}
}
