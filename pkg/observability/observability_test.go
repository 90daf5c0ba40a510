package observability

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/wehubfusion/Stagehand/pkg/stage"
)

type capturedEvents struct {
	mu     sync.Mutex
	events []*sentry.Event
}

func (c *capturedEvents) beforeSend(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func newCapturingReporter(t *testing.T) (*SentryReporter, *capturedEvents) {
	t.Helper()
	captured := &capturedEvents{}
	r, err := newSentryReporter(sentry.ClientOptions{BeforeSend: captured.beforeSend}, nil)
	require.NoError(t, err)
	return r, captured
}

func TestSentryReporterTagsFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want map[string]string
	}{
		{
			name: "processing",
			err: &stage.ProcessingError{
				StageID: "split", InstanceID: "i1", CallID: "c1", DocumentID: "d1", Cause: errors.New("bad"),
			},
			want: map[string]string{
				"failure": "process", "stage_id": "split", "instance_id": "i1",
				"call_id": "c1", "document_id": "d1", "panic": "false",
			},
		},
		{
			name: "init",
			err:  &stage.InitializationError{StageID: "script", InstanceID: "i2", Panic: true, Cause: errors.New("boom")},
			want: map[string]string{"failure": "init", "stage_id": "script", "instance_id": "i2", "panic": "true"},
		},
		{
			name: "other",
			err:  errors.New("plain"),
			want: map[string]string{"failure": "other"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, captured := newCapturingReporter(t)
			r.ReportError(context.Background(), tt.err)

			require.Len(t, captured.events, 1)
			event := captured.events[0]
			assert.Equal(t, sentry.LevelError, event.Level)
			for k, v := range tt.want {
				assert.Equal(t, v, event.Tags[k], k)
			}
		})
	}
}

func TestSentryReporterIgnoresNil(t *testing.T) {
	r, captured := newCapturingReporter(t)
	r.ReportError(context.Background(), nil)
	assert.Empty(t, captured.events)
}

func TestNewSentryReporterWithoutDSN(t *testing.T) {
	r, err := NewSentryReporter(SentryConfig{}, nil)
	require.NoError(t, err)
	r.ReportError(context.Background(), errors.New("dropped"))
	r.Flush(0)
}

func TestNewLogger(t *testing.T) {
	logger, level, err := NewLogger(LogConfig{Level: "DEBUG", Encoding: "console"})
	require.NoError(t, err)
	require.NotNil(t, logger)
	assert.Equal(t, zapcore.DebugLevel, level.Level())

	require.NoError(t, SetLevel(level, "warn"))
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))

	_, _, err = NewLogger(LogConfig{Level: "loud"})
	assert.Error(t, err)
}
