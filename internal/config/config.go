// Package config loads eventctl settings from ~/.eventctl/config.yaml and
// EVENTCTL_* environment variables using Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	apperrors "github.com/felixgeelhaar/eventctl/internal/errors"
	"github.com/felixgeelhaar/eventctl/internal/log"
	"github.com/felixgeelhaar/eventctl/internal/session"
	"github.com/felixgeelhaar/eventctl/internal/telemetry"
)

// EnvPrefix prefixes environment overrides, e.g. EVENTCTL_API_BASE_URL.
const EnvPrefix = "EVENTCTL"

// Config holds the application configuration.
type Config struct {
	API       APIConfig       `mapstructure:"api" yaml:"api" json:"api"`
	Session   SessionConfig   `mapstructure:"session" yaml:"session" json:"session"`
	Redis     RedisConfig     `mapstructure:"redis" yaml:"redis" json:"redis"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging" json:"logging"`
	Output    OutputConfig    `mapstructure:"output" yaml:"output" json:"output"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry" json:"telemetry"`
}

// APIConfig locates the events backend.
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url" yaml:"base_url" json:"base_url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
}

// SessionConfig selects where the session is persisted.
type SessionConfig struct {
	Backend    string `mapstructure:"backend" yaml:"backend" json:"backend"`
	Path       string `mapstructure:"path" yaml:"path" json:"path"`
	Passphrase string `mapstructure:"passphrase" yaml:"passphrase,omitempty" json:"passphrase,omitempty"`
}

// RedisConfig is used when session.backend is "redis".
type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr" json:"addr"`
	Password string `mapstructure:"password" yaml:"password,omitempty" json:"password,omitempty"`
	DB       int    `mapstructure:"db" yaml:"db" json:"db"`
	Prefix   string `mapstructure:"prefix" yaml:"prefix" json:"prefix"`
}

// LoggingConfig controls diagnostic output on stderr.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" json:"level"`
	Format string `mapstructure:"format" yaml:"format" json:"format"`
}

// OutputConfig controls command output.
type OutputConfig struct {
	Format  string `mapstructure:"format" yaml:"format" json:"format"`
	NoColor bool   `mapstructure:"no_color" yaml:"no_color" json:"no_color"`
}

// TelemetryConfig controls OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled    bool    `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Endpoint   string  `mapstructure:"endpoint" yaml:"endpoint" json:"endpoint"`
	SampleRate float64 `mapstructure:"sample_rate" yaml:"sample_rate" json:"sample_rate"`
}

// Defaults for every known key.
var defaults = map[string]interface{}{
	"api.base_url":          "http://localhost:8080/api/v1",
	"api.timeout":           "30s",
	"session.backend":       session.BackendFile,
	"session.path":          "~/.eventctl/session.json",
	"session.passphrase":    "",
	"redis.addr":            "127.0.0.1:6379",
	"redis.password":        "",
	"redis.db":              0,
	"redis.prefix":          session.DefaultRedisPrefix,
	"logging.level":         "warn",
	"logging.format":        "text",
	"output.format":         "text",
	"output.no_color":       false,
	"telemetry.enabled":     false,
	"telemetry.endpoint":    "",
	"telemetry.sample_rate": 1.0,
}

// secretKeys are never written by Set and are masked by Redacted.
var secretKeys = map[string]bool{
	"session.passphrase": true,
	"redis.password":     true,
}

// Keys returns every known configuration key, sorted.
func Keys() []string {
	keys := make([]string, 0, len(defaults))
	for k := range defaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsKnownKey reports whether key is a configuration key.
func IsKnownKey(key string) bool {
	_, ok := defaults[key]
	return ok
}

// DefaultDir returns ~/.eventctl.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".eventctl"
	}
	return filepath.Join(home, ".eventctl")
}

// DefaultPath returns ~/.eventctl/config.yaml.
func DefaultPath() string {
	return filepath.Join(DefaultDir(), "config.yaml")
}

// Loader reads configuration from one file plus the environment. Flags can
// be bound onto Viper() before Load.
type Loader struct {
	v    *viper.Viper
	path string
}

// NewLoader creates a loader for path, or DefaultPath when empty.
func NewLoader(path string) *Loader {
	if path == "" {
		path = DefaultPath()
	}

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Loader{v: v, path: path}
}

// Path returns the configuration file location.
func (l *Loader) Path() string {
	return l.path
}

// Viper exposes the underlying instance for flag binding.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// Load reads the file (a missing file is fine) and decodes the result.
func (l *Loader) Load() (*Config, error) {
	if err := l.v.ReadInConfig(); err != nil && !isNotFound(err) {
		return nil, fmt.Errorf("load config %s: %w", l.path, err)
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
	))); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Session.Path = ExpandHome(cfg.Session.Path)
	return &cfg, nil
}

// Get returns the effective value of key.
func (l *Loader) Get(key string) (interface{}, bool) {
	if !IsKnownKey(key) {
		return nil, false
	}
	return l.v.Get(key), true
}

// Set writes key=value to the configuration file. Only values present in
// the file are persisted; defaults and environment overrides are not.
func (l *Loader) Set(key, value string) error {
	if !IsKnownKey(key) {
		return apperrors.NewConfigInvalidError(fmt.Sprintf("unknown key %q (known keys: %s)", key, strings.Join(Keys(), ", ")))
	}
	if secretKeys[key] {
		return apperrors.NewConfigInvalidError(fmt.Sprintf("%s is a secret; set it with the %s environment variable", key, EnvName(key)))
	}

	typed, err := parseValue(key, value)
	if err != nil {
		return apperrors.NewConfigInvalidError(err.Error())
	}

	file := viper.New()
	file.SetConfigFile(l.path)
	file.SetConfigType("yaml")
	if err := file.ReadInConfig(); err != nil && !isNotFound(err) {
		return fmt.Errorf("read config %s: %w", l.path, err)
	}
	file.Set(key, typed)

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return err
	}
	if err := file.WriteConfigAs(l.path); err != nil {
		return fmt.Errorf("write config %s: %w", l.path, err)
	}

	l.v.Set(key, typed)
	return nil
}

// EnvName returns the environment variable overriding key.
func EnvName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func parseValue(key, value string) (interface{}, error) {
	switch defaults[key].(type) {
	case bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%s must be true or false", key)
		}
		return b, nil
	case int:
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("%s must be an integer", key)
		}
		return n, nil
	case float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("%s must be a number", key)
		}
		return f, nil
	}
	if key == "api.timeout" {
		if _, err := time.ParseDuration(value); err != nil {
			return nil, fmt.Errorf("%s must be a duration such as 30s", key)
		}
	}
	return value, nil
}

func isNotFound(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

var outputFormats = map[string]bool{"text": true, "json": true, "yaml": true}

// Validate checks the configuration for values no command could use.
func (c *Config) Validate() error {
	var problems []string

	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		problems = append(problems, fmt.Sprintf("api.base_url %q must be an http(s) URL", c.API.BaseURL))
	}
	if c.API.Timeout <= 0 {
		problems = append(problems, "api.timeout must be positive")
	}

	switch c.Session.Backend {
	case session.BackendMemory, session.BackendFile, session.BackendEncrypted:
	case session.BackendRedis:
		if c.Redis.Addr == "" {
			problems = append(problems, "redis.addr is required for the redis session backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("session.backend %q must be one of memory, file, encrypted, redis", c.Session.Backend))
	}
	if (c.Session.Backend == session.BackendFile || c.Session.Backend == session.BackendEncrypted) && c.Session.Path == "" {
		problems = append(problems, "session.path is required for file-based session backends")
	}

	if _, err := log.ParseLevel(c.Logging.Level); err != nil {
		problems = append(problems, err.Error())
	}
	if _, err := log.ParseFormat(c.Logging.Format); err != nil {
		problems = append(problems, err.Error())
	}
	if !outputFormats[strings.ToLower(c.Output.Format)] {
		problems = append(problems, fmt.Sprintf("output.format %q must be text, json or yaml", c.Output.Format))
	}

	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		problems = append(problems, "telemetry.sample_rate must be between 0 and 1")
	}
	if c.Telemetry.Endpoint != "" {
		if u, err := url.Parse(c.Telemetry.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
			problems = append(problems, fmt.Sprintf("telemetry.endpoint %q must be a URL such as http://localhost:4318", c.Telemetry.Endpoint))
		}
	}

	if len(problems) > 0 {
		return apperrors.NewConfigInvalidError(strings.Join(problems, "; "))
	}
	return nil
}

// SessionOptions maps the configuration onto session backend options.
func (c *Config) SessionOptions() session.Options {
	return session.Options{
		Kind:          c.Session.Backend,
		Path:          c.Session.Path,
		Passphrase:    c.Session.Passphrase,
		RedisAddr:     c.Redis.Addr,
		RedisPassword: c.Redis.Password,
		RedisDB:       c.Redis.DB,
		RedisPrefix:   c.Redis.Prefix,
	}
}

// LogConfig maps the logging section onto a logger configuration.
func (c *Config) LogConfig() (log.Config, error) {
	cfg := log.DefaultConfig()

	level, err := log.ParseLevel(c.Logging.Level)
	if err != nil {
		return cfg, err
	}
	format, err := log.ParseFormat(c.Logging.Format)
	if err != nil {
		return cfg, err
	}

	cfg.Level = level
	cfg.Format = format
	cfg.AddSource = level == log.LevelDebug
	return cfg, nil
}

// TracingConfig maps the telemetry section onto a tracer configuration.
func (c *Config) TracingConfig(serviceVersion string) telemetry.Config {
	cfg := telemetry.DefaultConfig()
	cfg.ServiceVersion = serviceVersion
	cfg.Enabled = c.Telemetry.Enabled
	cfg.Endpoint = c.Telemetry.Endpoint
	cfg.SampleRate = c.Telemetry.SampleRate
	return cfg
}

// Redacted returns a copy with secrets masked, for display.
func (c Config) Redacted() Config {
	if c.Session.Passphrase != "" {
		c.Session.Passphrase = "********"
	}
	if c.Redis.Password != "" {
		c.Redis.Password = "********"
	}
	return c
}

// IsSecret reports whether key holds a secret.
func IsSecret(key string) bool {
	return secretKeys[key]
}
