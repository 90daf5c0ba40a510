package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wehubfusion/Stagehand/pkg/concurrency"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stagehand.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
nats:
  url: nats://broker:4222
  request_timeout: 2s
  max_attempts: 5
  breaker:
    failure_threshold: 3
blob:
  driver: azure
  azure:
    connection_string: "AccountName=dev;AccountKey=a2V5;BlobEndpoint=http://127.0.0.1:10000/dev"
    prefix: docs/
driver:
  workers: 6
  stop_on_error: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Encoding)
	assert.Equal(t, "nats://broker:4222", cfg.NATS.Connection.URL)
	assert.Equal(t, "stagehand", cfg.NATS.Connection.Name)
	assert.Equal(t, 2*time.Second, cfg.NATS.ControlPlane.RequestTimeout)
	assert.Equal(t, uint(5), cfg.NATS.ControlPlane.MaxAttempts)
	assert.Equal(t, "stagehand.host", cfg.NATS.ControlPlane.SubjectPrefix)
	assert.Equal(t, int64(3), cfg.NATS.Breaker.FailureThreshold)
	assert.Equal(t, 30*time.Second, cfg.NATS.Breaker.ResetTimeout)
	assert.Equal(t, BlobAzure, cfg.Blob.Driver)
	assert.Equal(t, "docs/", cfg.Blob.Azure.Prefix)
	assert.Equal(t, "stagehand", cfg.Blob.Azure.Container)
	assert.Equal(t, 6, cfg.Driver.Workers)
	assert.True(t, cfg.Driver.StopOnError)
	assert.False(t, cfg.Tracing.Enabled)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("STAGEHAND_LOG_LEVEL", "warn")
	t.Setenv("STAGEHAND_NATS_URL", "nats://env:4222")
	t.Setenv("STAGEHAND_DRIVER_WORKERS", "3")
	t.Setenv("STAGEHAND_TRACING_ENABLED", "true")

	cfg, err := Load(writeConfig(t, "log:\n  level: debug\n"))
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "nats://env:4222", cfg.NATS.Connection.URL)
	assert.Equal(t, 3, cfg.Driver.Workers)
	assert.True(t, cfg.Tracing.Enabled)
}

func TestConcurrencyEnvMatchesRuntimeDefaults(t *testing.T) {
	t.Setenv(concurrency.EnvWorkers, "5")
	t.Setenv(concurrency.EnvMaxConcurrent, "7")

	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	runtime := concurrency.LoadConfig()

	assert.Equal(t, 5, cfg.Driver.Workers)
	assert.Equal(t, 7, cfg.Concurrency.MaxConcurrent)
	assert.Equal(t, cfg.Driver.Workers, runtime.Workers)
	assert.Equal(t, cfg.Concurrency.MaxConcurrent, runtime.MaxConcurrent)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
	}{
		{"missing explicit file", func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.yaml") }},
		{"malformed yaml", func(t *testing.T) string { return writeConfig(t, "log: [\n") }},
		{"unknown blob driver", func(t *testing.T) string { return writeConfig(t, "blob:\n  driver: s3\n") }},
		{"azure without credentials", func(t *testing.T) string { return writeConfig(t, "blob:\n  driver: azure\n") }},
		{"bad log level", func(t *testing.T) string { return writeConfig(t, "log:\n  level: loud\n") }},
		{"sample ratio out of range", func(t *testing.T) string { return writeConfig(t, "tracing:\n  sample_ratio: 2\n") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.path(t))
			assert.Error(t, err)
		})
	}
}

func TestDefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	m, err := NewManager("", nil)
	require.NoError(t, err)
	assert.Empty(t, m.ConfigFile())
	assert.Equal(t, DefaultConfig(), *m.Get())

	v, ok := m.Lookup("nats.max_attempts")
	assert.True(t, ok)
	assert.Equal(t, "3", v)
}

func TestWriteDefaultRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stagehand.yaml")
	require.NoError(t, WriteDefault(path))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), *cfg)
}

func TestWatchReloads(t *testing.T) {
	path := writeConfig(t, "log:\n  level: info\n")
	m, err := NewManager(path, nil)
	require.NoError(t, err)

	var level atomic.Value
	m.OnChange(func(c *Config) { level.Store(c.Log.Level) })
	m.Watch()

	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: error\n"), 0o644))
	require.Eventually(t, func() bool {
		v, _ := level.Load().(string)
		return v == "error"
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, "error", m.Get().Log.Level)
}
