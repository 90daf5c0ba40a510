package stage

import (
	"context"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Metrics is a snapshot of an instance's counters.
type Metrics struct {
	Processed        int64
	Failed           int64
	Emitted          int64
	ProcessingTimeNs int64
}

// AverageProcessingTime returns the mean duration of a process call.
func (m Metrics) AverageProcessingTime() time.Duration {
	total := m.Processed + m.Failed
	if total == 0 {
		return 0
	}
	return time.Duration(m.ProcessingTimeNs / total)
}

// ErrorRate returns the error rate as a percentage.
func (m Metrics) ErrorRate() float64 {
	total := m.Processed + m.Failed
	if total == 0 {
		return 0
	}
	return float64(m.Failed) / float64(total) * 100
}

// metricsCollector keeps lock-free counters and mirrors them to OpenTelemetry
// instruments.
type metricsCollector struct {
	processed        atomic.Int64
	failed           atomic.Int64
	emitted          atomic.Int64
	totalProcessTime atomic.Int64

	attrs           metric.MeasurementOption
	processedCount  metric.Int64Counter
	failedCount     metric.Int64Counter
	emittedCount    metric.Int64Counter
	processDuration metric.Float64Histogram
}

func newMetricsCollector(meter metric.Meter, stageID string, logger *zap.Logger) *metricsCollector {
	m := &metricsCollector{
		attrs: metric.WithAttributes(attribute.String("stage.id", stageID)),
	}

	var err error
	if m.processedCount, err = meter.Int64Counter("documents.processed",
		metric.WithDescription("Documents processed successfully")); err != nil {
		logger.Warn("Failed to create metric instrument", zap.String("instrument", "documents.processed"), zap.Error(err))
	}
	if m.failedCount, err = meter.Int64Counter("documents.failed",
		metric.WithDescription("Documents dropped after a processing error")); err != nil {
		logger.Warn("Failed to create metric instrument", zap.String("instrument", "documents.failed"), zap.Error(err))
	}
	if m.emittedCount, err = meter.Int64Counter("documents.emitted",
		metric.WithDescription("Documents emitted by the stage")); err != nil {
		logger.Warn("Failed to create metric instrument", zap.String("instrument", "documents.emitted"), zap.Error(err))
	}
	if m.processDuration, err = meter.Float64Histogram("process.duration",
		metric.WithDescription("Duration of a process call"), metric.WithUnit("ms")); err != nil {
		logger.Warn("Failed to create metric instrument", zap.String("instrument", "process.duration"), zap.Error(err))
	}
	return m
}

func (m *metricsCollector) recordProcessed(ctx context.Context, d time.Duration, emitted int) {
	m.processed.Add(1)
	m.emitted.Add(int64(emitted))
	m.totalProcessTime.Add(d.Nanoseconds())
	if m.processedCount != nil {
		m.processedCount.Add(ctx, 1, m.attrs)
	}
	if m.emittedCount != nil {
		m.emittedCount.Add(ctx, int64(emitted), m.attrs)
	}
	m.recordDuration(ctx, d)
}

func (m *metricsCollector) recordFailed(ctx context.Context, d time.Duration) {
	m.failed.Add(1)
	m.totalProcessTime.Add(d.Nanoseconds())
	if m.failedCount != nil {
		m.failedCount.Add(ctx, 1, m.attrs)
	}
	m.recordDuration(ctx, d)
}

func (m *metricsCollector) recordDuration(ctx context.Context, d time.Duration) {
	if m.processDuration != nil {
		m.processDuration.Record(ctx, float64(d.Microseconds())/1000, m.attrs)
	}
}

func (m *metricsCollector) snapshot() Metrics {
	return Metrics{
		Processed:        m.processed.Load(),
		Failed:           m.failed.Load(),
		Emitted:          m.emitted.Load(),
		ProcessingTimeNs: m.totalProcessTime.Load(),
	}
}
