package concurrency

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name       string
		env        map[string]string
		wantMax    func(cpus int) int
		wantSource ConfigSource
	}{
		{
			name:       "explicit max",
			env:        map[string]string{EnvMaxConcurrent: "7"},
			wantMax:    func(int) int { return 7 },
			wantSource: ConfigSourceEnvVar,
		},
		{
			name:       "multiplier",
			env:        map[string]string{EnvMultiplier: "3"},
			wantMax:    func(cpus int) int { return cpus * 3 },
			wantSource: ConfigSourceEnvVar,
		},
		{
			name:       "kubernetes auto detect",
			env:        map[string]string{"KUBERNETES_SERVICE_HOST": "10.0.0.1"},
			wantMax:    func(cpus int) int { return cpus * 2 },
			wantSource: ConfigSourceAutoDetect,
		},
		{
			name:       "invalid value falls back",
			env:        map[string]string{EnvMaxConcurrent: "lots"},
			wantMax:    func(cpus int) int { return cpus * 4 },
			wantSource: ConfigSourceAutoDetect,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range []string{EnvMaxConcurrent, EnvMultiplier, EnvWorkers, "KUBERNETES_SERVICE_HOST"} {
				t.Setenv(key, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg := LoadConfig()
			assert.Equal(t, tt.wantMax(cfg.EffectiveCPUs), cfg.MaxConcurrent)
			assert.Equal(t, tt.wantSource, cfg.Source)
			assert.GreaterOrEqual(t, cfg.Workers, 1)
		})
	}
}

func TestLoadConfigWorkers(t *testing.T) {
	t.Setenv(EnvWorkers, "3")
	assert.Equal(t, 3, LoadConfig().Workers)
}

func TestLimiterBoundsConcurrency(t *testing.T) {
	l := NewLimiter(2)
	assert.Equal(t, 2, l.Capacity())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Do(context.Background(), func() error {
				time.Sleep(5 * time.Millisecond)
				return nil
			})
		}()
	}
	wg.Wait()

	m := l.Metrics()
	assert.Equal(t, int64(10), m.TotalAcquired)
	assert.Equal(t, int64(10), m.TotalReleased)
	assert.LessOrEqual(t, m.PeakConcurrent, int64(2))
	assert.Equal(t, int64(0), l.CurrentActive())
}

func TestLimiterDoReturnsError(t *testing.T) {
	l := NewLimiter(1)
	boom := errors.New("boom")
	for i := 0; i < 5; i++ {
		assert.ErrorIs(t, l.Do(context.Background(), func() error { return boom }), boom)
	}
	// failures never block later work
	assert.NoError(t, l.Do(context.Background(), func() error { return nil }))
}

func TestLimiterAverageWait(t *testing.T) {
	assert.Zero(t, Metrics{}.AverageWait())
	assert.Equal(t, 5*time.Millisecond, Metrics{TotalAcquired: 2, TotalWaitTimeNs: int64(10 * time.Millisecond)}.AverageWait())
}

func TestLimiterAcquireHonorsContext(t *testing.T) {
	l := NewLimiter(1)
	require.NoError(t, l.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Acquire(ctx), context.DeadlineExceeded)

	l.Release()
	l.Release()
	assert.Equal(t, int64(0), l.CurrentActive())
}

func TestCircuitBreakerTransitions(t *testing.T) {
	cb := NewCircuitBreaker(BreakerConfig{FailureThreshold: 2, ResetTimeout: 20 * time.Millisecond, HalfOpenSuccesses: 2})

	var changes []string
	cb.OnStateChange(func(from, to CircuitBreakerState) {
		changes = append(changes, from.String()+">"+to.String())
	})

	cb.RecordFailure()
	assert.Equal(t, StateClosed, cb.State())
	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())
	assert.True(t, cb.IsOpen())

	time.Sleep(30 * time.Millisecond)
	assert.False(t, cb.IsOpen())
	assert.Equal(t, StateHalfOpen, cb.State())

	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())

	time.Sleep(30 * time.Millisecond)
	require.False(t, cb.IsOpen())
	cb.RecordSuccess()
	cb.RecordSuccess()
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, int64(0), cb.ConsecutiveFailures())

	assert.Equal(t, []string{
		"closed>open", "open>half-open", "half-open>open", "open>half-open", "half-open>closed",
	}, changes)
}

func TestCircuitBreakerDefaultsAndReset(t *testing.T) {
	cb := NewCircuitBreaker(BreakerConfig{})
	assert.Equal(t, DefaultBreakerConfig(), cb.cfg)

	for i := 0; i < 10; i++ {
		cb.RecordFailure()
	}
	assert.True(t, cb.IsOpen())
	cb.Reset()
	assert.False(t, cb.IsOpen())
	assert.Equal(t, "unknown", CircuitBreakerState(9).String())
}

func TestEffectiveCPUs(t *testing.T) {
	assert.GreaterOrEqual(t, EffectiveCPUs(), 1)
	undo := InitializeForKubernetes(nil)
	undo()
}
