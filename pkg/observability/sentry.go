// Package observability wires stage hosts to logging and error reporting backends.
package observability

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"

	"github.com/wehubfusion/Stagehand/pkg/stage"
)

// SentryConfig configures a SentryReporter.
type SentryConfig struct {
	DSN         string  `mapstructure:"dsn"`
	Environment string  `mapstructure:"environment"`
	Release     string  `mapstructure:"release"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Debug       bool    `mapstructure:"debug"`
}

// SentryReporter sends stage failures to Sentry. It implements stage.ErrorReporter.
type SentryReporter struct {
	hub    *sentry.Hub
	logger *zap.Logger
}

var _ stage.ErrorReporter = (*SentryReporter)(nil)

// NewSentryReporter creates a reporter with its own client. An empty DSN yields a
// client that drops every event.
func NewSentryReporter(cfg SentryConfig, logger *zap.Logger) (*SentryReporter, error) {
	return newSentryReporter(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
		Release:     cfg.Release,
		SampleRate:  cfg.SampleRate,
		Debug:       cfg.Debug,
	}, logger)
}

func newSentryReporter(opts sentry.ClientOptions, logger *zap.Logger) (*SentryReporter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := sentry.NewClient(opts)
	if err != nil {
		return nil, err
	}
	return &SentryReporter{
		hub:    sentry.NewHub(client, sentry.NewScope()),
		logger: logger,
	}, nil
}

// ReportError captures err tagged with the stage, instance, call and document it
// belongs to. A hub carried by ctx takes precedence over the reporter's own.
func (r *SentryReporter) ReportError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = r.hub
	}

	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelError)
		for k, v := range tags(err) {
			scope.SetTag(k, v)
		}
		if id := hub.CaptureException(err); id == nil {
			r.logger.Debug("Sentry dropped event", zap.Error(err))
		}
	})
}

// Flush waits for queued events to be delivered.
func (r *SentryReporter) Flush(timeout time.Duration) bool {
	return r.hub.Flush(timeout)
}

func tags(err error) map[string]string {
	var perr *stage.ProcessingError
	if errors.As(err, &perr) {
		return map[string]string{
			"failure":     "process",
			"stage_id":    perr.StageID,
			"instance_id": perr.InstanceID,
			"call_id":     perr.CallID,
			"document_id": perr.DocumentID,
			"panic":       strconv.FormatBool(perr.Panic),
		}
	}
	var ierr *stage.InitializationError
	if errors.As(err, &ierr) {
		return map[string]string{
			"failure":     "init",
			"stage_id":    ierr.StageID,
			"instance_id": ierr.InstanceID,
			"panic":       strconv.FormatBool(ierr.Panic),
		}
	}
	return map[string]string{"failure": "other"}
}
