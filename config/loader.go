package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/knadh/koanf/maps"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/afero"
)

// DefaultEnvPrefix is the prefix of configuration environment variables
const DefaultEnvPrefix = "RESP_"

// Loader layers configuration sources into a Config
type Loader struct {
	fs        afero.Fs
	filePath  string
	envPrefix string
	overrides map[string]any
}

// Option configures a Loader
type Option func(*Loader)

// WithConfigFile sets the YAML file to read. An empty path skips the file.
func WithConfigFile(path string) Option {
	return func(l *Loader) {
		l.filePath = path
	}
}

// WithFs sets the filesystem the configuration file is read from
func WithFs(fs afero.Fs) Option {
	return func(l *Loader) {
		l.fs = fs
	}
}

// WithEnvPrefix sets the environment variable prefix
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// WithOverrides sets values, keyed like "server.addr", that take priority
// over every other source
func WithOverrides(values map[string]any) Option {
	return func(l *Loader) {
		l.overrides = values
	}
}

// NewLoader creates a loader reading from the OS filesystem
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		fs:        afero.NewOsFs(),
		envPrefix: DefaultEnvPrefix,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load builds and validates the configuration
func (l *Loader) Load() (*Config, error) {
	k := koanf.New(".")

	if l.filePath != "" {
		if err := k.Load(fileProvider{fs: l.fs, path: l.filePath}, yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", l.filePath, err)
		}
	}

	if err := k.Load(env.Provider(l.envPrefix, ".", l.envKey), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	if len(l.overrides) > 0 {
		if err := k.Load(mapProvider(l.overrides), nil); err != nil {
			return nil, fmt.Errorf("load overrides: %w", err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// envKey maps RESP_LIMITS_MAX_BULK_LEN to limits.max_bulk_len. Only the
// first underscore separates the section from the key.
func (l *Loader) envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, l.envPrefix))
	return strings.Replace(s, "_", ".", 1)
}

// Load reads the configuration from the given file, which may be empty, and
// the environment
func Load(fs afero.Fs, path string) (*Config, error) {
	return NewLoader(WithFs(fs), WithConfigFile(path)).Load()
}

var errReadNotSupported = errors.New("config: provider only supports ReadBytes")

// fileProvider reads a file through afero so tests can use an in-memory
// filesystem
type fileProvider struct {
	fs   afero.Fs
	path string
}

func (p fileProvider) ReadBytes() ([]byte, error) {
	return afero.ReadFile(p.fs, p.path)
}

func (p fileProvider) Read() (map[string]any, error) {
	return nil, errReadNotSupported
}

// mapProvider loads flat "section.key" values
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, errors.New("config: map provider does not support ReadBytes")
}

func (m mapProvider) Read() (map[string]any, error) {
	return maps.Unflatten(m, "."), nil
}
