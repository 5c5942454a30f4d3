package respserver

import (
	"net"
	"time"

	"github.com/spf13/afero"

	"github.com/raniellyferreira/resp-server/protocol"
	"github.com/raniellyferreira/resp-server/server"
)

// config holds the configuration for an Instance
type config struct {
	addr string

	readTimeout  time.Duration
	writeTimeout time.Duration
	idleTimeout  time.Duration

	rateLimit float64
	rateBurst int

	limits protocol.Limits

	handler    server.Handler
	scriptFs   afero.Fs
	scriptPath string

	logger  Logger
	metrics MetricsCollector
}

// defaultConfig returns a configuration with sensible defaults
func defaultConfig() *config {
	sc := server.DefaultConfig()
	return &config{
		addr:         sc.Addr,
		readTimeout:  sc.ReadTimeout,
		writeTimeout: sc.WriteTimeout,
		idleTimeout:  sc.IdleTimeout,
		limits:       sc.Limits,
		logger:       defaultLogger(),
	}
}

func (c *config) serverConfig() server.Config {
	return server.Config{
		Addr:         c.addr,
		ReadTimeout:  c.readTimeout,
		WriteTimeout: c.writeTimeout,
		IdleTimeout:  c.idleTimeout,
		RateLimit:    c.rateLimit,
		RateBurst:    c.rateBurst,
		Limits:       c.limits,
	}
}

// Option represents a configuration option for an Instance
type Option func(*config) error

// WithAddr sets the TCP address to listen on. Use port 0 to pick a free port.
//
// Example:
//
//	WithAddr("127.0.0.1:6379")
func WithAddr(addr string) Option {
	return func(c *config) error {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return &ConfigError{Option: "addr", Err: ErrInvalidConfig}
		}
		c.addr = addr
		return nil
	}
}

// WithLimits sets the decoder limits applied to client input. Zero fields
// take their defaults and negative fields disable the check.
func WithLimits(limits protocol.Limits) Option {
	return func(c *config) error {
		c.limits = limits
		return nil
	}
}

// WithReadTimeout bounds how long a partially received frame may stall.
// Zero disables it.
func WithReadTimeout(timeout time.Duration) Option {
	return func(c *config) error {
		if timeout < 0 {
			return &ConfigError{Option: "read_timeout", Err: ErrInvalidConfig}
		}
		c.readTimeout = timeout
		return nil
	}
}

// WithWriteTimeout bounds flushing replies to a client
func WithWriteTimeout(timeout time.Duration) Option {
	return func(c *config) error {
		if timeout < 0 {
			return &ConfigError{Option: "write_timeout", Err: ErrInvalidConfig}
		}
		c.writeTimeout = timeout
		return nil
	}
}

// WithIdleTimeout closes connections that stay silent between commands for
// longer than timeout. Zero disables it.
func WithIdleTimeout(timeout time.Duration) Option {
	return func(c *config) error {
		if timeout < 0 {
			return &ConfigError{Option: "idle_timeout", Err: ErrInvalidConfig}
		}
		c.idleTimeout = timeout
		return nil
	}
}

// WithRateLimit limits each connection to perSecond commands with the given
// burst. Zero disables limiting.
//
// Example:
//
//	WithRateLimit(1000, 100)
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *config) error {
		if perSecond < 0 || burst < 0 {
			return &ConfigError{Option: "rate_limit", Err: ErrInvalidConfig}
		}
		c.rateLimit = perSecond
		c.rateBurst = burst
		return nil
	}
}

// WithHandler sets the command handler. The default answers PING, ECHO,
// QUIT and COMMAND.
func WithHandler(handler server.Handler) Option {
	return func(c *config) error {
		if handler == nil {
			return &ConfigError{Option: "handler", Err: ErrInvalidConfig}
		}
		c.handler = handler
		return nil
	}
}

// WithScriptFile answers commands with the handle function of the Lua script
// at path, read from fs. It replaces any handler set with WithHandler.
//
// Example:
//
//	WithScriptFile(afero.NewOsFs(), "/etc/resp/handler.lua")
func WithScriptFile(fs afero.Fs, path string) Option {
	return func(c *config) error {
		if fs == nil || path == "" {
			return &ConfigError{Option: "script", Err: ErrInvalidConfig}
		}
		c.scriptFs = fs
		c.scriptPath = path
		return nil
	}
}

// WithLogger sets a custom logger
func WithLogger(logger Logger) Option {
	return func(c *config) error {
		if logger == nil {
			return &ConfigError{Option: "logger", Err: ErrInvalidConfig}
		}
		c.logger = logger
		return nil
	}
}

// WithMetrics enables metrics collection with the provided collector
//
// Example:
//
//	collector := metrics.New()
//	WithMetrics(collector)
func WithMetrics(collector MetricsCollector) Option {
	return func(c *config) error {
		c.metrics = collector
		return nil
	}
}
