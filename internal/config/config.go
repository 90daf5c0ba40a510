// Package config loads the stagehand CLI configuration from a YAML file and
// STAGEHAND_ environment variables, and hot-reloads it when the file changes.
package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wehubfusion/Stagehand/internal/nats"
	"github.com/wehubfusion/Stagehand/internal/tracing"
	"github.com/wehubfusion/Stagehand/pkg/concurrency"
	"github.com/wehubfusion/Stagehand/pkg/driver"
	"github.com/wehubfusion/Stagehand/pkg/host"
	"github.com/wehubfusion/Stagehand/pkg/observability"
	"github.com/wehubfusion/Stagehand/pkg/storage"
)

// EnvPrefix prefixes every environment override, e.g. STAGEHAND_NATS_URL.
const EnvPrefix = "STAGEHAND"

// Blob store drivers
const (
	BlobMemory = "memory"
	BlobAzure  = "azure"
)

// Config is the full CLI configuration.
type Config struct {
	Log         observability.LogConfig    `mapstructure:"log"`
	NATS        NATSConfig                 `mapstructure:"nats"`
	Blob        BlobConfig                 `mapstructure:"blob"`
	Driver      driver.Config              `mapstructure:"driver"`
	Concurrency ConcurrencyConfig          `mapstructure:"concurrency"`
	Tracing     tracing.Config             `mapstructure:"tracing"`
	Sentry      observability.SentryConfig `mapstructure:"sentry"`
}

// NATSConfig configures the control plane. An empty URL leaves the control plane
// unavailable.
type NATSConfig struct {
	Connection   nats.ConnectionConfig     `mapstructure:",squash"`
	ControlPlane host.NATSConfig           `mapstructure:",squash"`
	Breaker      concurrency.BreakerConfig `mapstructure:"breaker"`
}

// BlobConfig selects and configures the blob store.
type BlobConfig struct {
	Driver string              `mapstructure:"driver"`
	Azure  storage.AzureConfig `mapstructure:"azure"`
}

// ConcurrencyConfig bounds concurrent stage calls. Zero derives the bound from
// the CPU quota.
type ConcurrencyConfig struct {
	MaxConcurrent int `mapstructure:"max_concurrent"`
}

// DefaultConfig returns the configuration used when no file or env override is set.
func DefaultConfig() Config {
	return Config{
		Log: observability.LogConfig{Level: "info", Encoding: "json"},
		NATS: NATSConfig{
			Connection:   nats.DefaultConnectionConfig(""),
			ControlPlane: host.DefaultNATSConfig(),
			Breaker:      concurrency.DefaultBreakerConfig(),
		},
		Blob:    BlobConfig{Driver: BlobMemory, Azure: storage.AzureConfig{Container: "stagehand"}},
		Driver:  driver.DefaultConfig(),
		Tracing: tracing.DefaultConfig("stagehand"),
		Sentry:  observability.SentryConfig{SampleRate: 1},
	}
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if _, err := zapcore.ParseLevel(strings.ToLower(c.Log.Level)); c.Log.Level != "" && err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch c.Blob.Driver {
	case BlobMemory, "":
	case BlobAzure:
		if c.Blob.Azure.ConnectionString == "" {
			errs = append(errs, errors.New("blob.azure.connection_string is required for the azure driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("blob.driver: unknown driver %q", c.Blob.Driver))
	}
	if c.Driver.Workers < 0 {
		errs = append(errs, errors.New("driver.workers cannot be negative"))
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		errs = append(errs, errors.New("tracing.sample_ratio must be between 0 and 1"))
	}
	return errors.Join(errs...)
}

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	v      *viper.Viper
	logger *zap.Logger

	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
}

// NewManager loads the configuration. An empty path searches ./stagehand.yaml and
// $HOME/.stagehand/stagehand.yaml and tolerates neither existing; an explicit path
// must exist.
func NewManager(path string, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{v: viper.New(), logger: logger}
	if err := m.initViper(path); err != nil {
		return nil, err
	}
	cfg, err := m.load()
	if err != nil {
		return nil, err
	}
	m.config = cfg
	return m, nil
}

// Load is NewManager for callers that do not watch the file.
func Load(path string) (*Config, error) {
	m, err := NewManager(path, nil)
	if err != nil {
		return nil, err
	}
	return m.Get(), nil
}

func (m *Manager) initViper(path string) error {
	setDefaults(m.v, DefaultConfig())

	m.v.SetEnvPrefix(EnvPrefix)
	m.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	m.v.AutomaticEnv()

	if path != "" {
		m.v.SetConfigFile(path)
	} else {
		m.v.SetConfigName("stagehand")
		m.v.SetConfigType("yaml")
		m.v.AddConfigPath(".")
		m.v.AddConfigPath("$HOME/.stagehand")
	}

	if err := m.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

// setDefaults registers every key so AutomaticEnv can override keys the file omits.
func setDefaults(v *viper.Viper, d Config) {
	defaults := map[string]interface{}{
		"log.level":       d.Log.Level,
		"log.development": d.Log.Development,
		"log.encoding":    d.Log.Encoding,

		"nats.url":                         d.NATS.Connection.URL,
		"nats.name":                        d.NATS.Connection.Name,
		"nats.max_reconnects":              d.NATS.Connection.MaxReconnects,
		"nats.reconnect_wait":              d.NATS.Connection.ReconnectWait,
		"nats.timeout":                     d.NATS.Connection.Timeout,
		"nats.token":                       d.NATS.Connection.Token,
		"nats.username":                    d.NATS.Connection.Username,
		"nats.password":                    d.NATS.Connection.Password,
		"nats.subject_prefix":              d.NATS.ControlPlane.SubjectPrefix,
		"nats.request_timeout":             d.NATS.ControlPlane.RequestTimeout,
		"nats.max_attempts":                d.NATS.ControlPlane.MaxAttempts,
		"nats.retry_delay":                 d.NATS.ControlPlane.RetryDelay,
		"nats.breaker.failure_threshold":   d.NATS.Breaker.FailureThreshold,
		"nats.breaker.reset_timeout":       d.NATS.Breaker.ResetTimeout,
		"nats.breaker.half_open_successes": d.NATS.Breaker.HalfOpenSuccesses,

		"blob.driver":                  d.Blob.Driver,
		"blob.azure.connection_string": d.Blob.Azure.ConnectionString,
		"blob.azure.container":         d.Blob.Azure.Container,
		"blob.azure.prefix":            d.Blob.Azure.Prefix,
		"blob.azure.content_type":      d.Blob.Azure.ContentType,

		"driver.workers":       d.Driver.Workers,
		"driver.buffer_size":   d.Driver.BufferSize,
		"driver.stop_on_error": d.Driver.StopOnError,

		"concurrency.max_concurrent": d.Concurrency.MaxConcurrent,

		"tracing.enabled":         d.Tracing.Enabled,
		"tracing.service_name":    d.Tracing.ServiceName,
		"tracing.service_version": d.Tracing.ServiceVersion,
		"tracing.environment":     d.Tracing.Environment,
		"tracing.otlp_endpoint":   d.Tracing.OTLPEndpoint,
		"tracing.insecure":        d.Tracing.Insecure,
		"tracing.sample_ratio":    d.Tracing.SampleRatio,

		"sentry.dsn":         d.Sentry.DSN,
		"sentry.environment": d.Sentry.Environment,
		"sentry.release":     d.Sentry.Release,
		"sentry.sample_rate": d.Sentry.SampleRate,
		"sentry.debug":       d.Sentry.Debug,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

// load parses the current viper state into a Config struct.
func (m *Manager) load() (*Config, error) {
	var cfg Config
	if err := m.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// ConfigFile returns the file the configuration was read from, or "".
func (m *Manager) ConfigFile() string {
	return m.v.ConfigFileUsed()
}

// Lookup returns a single setting rendered as a string, e.g. "nats.url".
func (m *Manager) Lookup(key string) (string, bool) {
	if !m.v.IsSet(key) {
		return "", false
	}
	return cast.ToString(m.v.Get(key)), true
}

// OnChange registers a callback for config changes.
func (m *Manager) OnChange(fn func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, fn)
}

// Watch enables hot-reloading. A change that fails to parse or validate is logged
// and the previous configuration stays in effect.
func (m *Manager) Watch() {
	m.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := m.load()
		if err != nil {
			m.logger.Warn("Ignoring invalid config change", zap.String("file", e.Name), zap.Error(err))
			return
		}

		m.mu.Lock()
		m.config = cfg
		callbacks := make([]func(*Config), len(m.callbacks))
		copy(callbacks, m.callbacks)
		m.mu.Unlock()

		m.logger.Info("Configuration reloaded", zap.String("file", e.Name))
		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	m.v.WatchConfig()
}

// WriteDefault writes the default configuration to path as YAML.
func WriteDefault(path string) error {
	v := viper.New()
	setDefaults(v, DefaultConfig())
	v.SetConfigType("yaml")
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
