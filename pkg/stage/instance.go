package stage

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/wehubfusion/Stagehand/pkg/document"
	"github.com/wehubfusion/Stagehand/pkg/host"
	"github.com/wehubfusion/Stagehand/pkg/schema"
)

// ErrorReporter receives initialization and processing failures.
type ErrorReporter interface {
	ReportError(ctx context.Context, err error)
}

// Option configures an Instance.
type Option func(*options)

type options struct {
	logger         *zap.Logger
	reporter       ErrorReporter
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	instanceID     string
}

// WithLogger sets the instance logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithErrorReporter sets the collaborator failures are reported to.
func WithErrorReporter(r ErrorReporter) Option {
	return func(o *options) { o.reporter = r }
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// WithMeterProvider overrides the global meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meterProvider = mp }
}

// WithInstanceID sets the instance identifier used in logs; a UUID is generated otherwise.
func WithInstanceID(id string) Option {
	return func(o *options) { o.instanceID = id }
}

// Instance is one configured stage. It is created with a validated configuration,
// initialized once, and then processes documents concurrently.
type Instance struct {
	id       string
	typ      Type
	cfg      *schema.Config
	stage    Stage
	logger   *zap.Logger
	reporter ErrorReporter
	tracer   trace.Tracer
	meter    metric.Meter
	metrics  *metricsCollector

	initMu    sync.Mutex
	state     atomic.Int32
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// NewInstance validates raw against the type's descriptor and creates an instance in
// the Created state. On a validation failure the *schema.ConfigValidationError is
// returned and no stage value is constructed.
func NewInstance(t Type, raw map[string]interface{}, opts ...Option) (*Instance, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	cfg, err := schema.Validate(t.Descriptor, raw)
	if err != nil {
		return nil, err
	}
	return newInstance(t, cfg, opts...)
}

// NewInstanceFromConfig creates an instance from an already validated configuration.
func NewInstanceFromConfig(t Type, cfg *schema.Config, opts ...Option) (*Instance, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if cfg == nil || cfg.Descriptor() != t.Descriptor {
		return nil, fmt.Errorf("%w: configuration was not validated against %s", ErrInvalidType, t.ID)
	}
	return newInstance(t, cfg, opts...)
}

func newInstance(t Type, cfg *schema.Config, opts ...Option) (*Instance, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.tracerProvider == nil {
		o.tracerProvider = otel.GetTracerProvider()
	}
	if o.meterProvider == nil {
		o.meterProvider = otel.GetMeterProvider()
	}
	if o.instanceID == "" {
		o.instanceID = uuid.NewString()
	}

	s := t.New()
	if s == nil {
		return nil, fmt.Errorf("%w: %s constructor returned nil", ErrInvalidType, t.ID)
	}

	logger := o.logger.With(zap.String("stage_id", t.ID), zap.String("instance_id", o.instanceID))
	meter := o.meterProvider.Meter("stagehand/stage")
	inst := &Instance{
		id:       o.instanceID,
		typ:      t,
		cfg:      cfg,
		stage:    s,
		logger:   logger,
		reporter: o.reporter,
		tracer:   o.tracerProvider.Tracer("stagehand/stage"),
		meter:    meter,
		metrics:  newMetricsCollector(meter, t.ID, logger),
	}
	inst.state.Store(int32(Created))
	return inst, nil
}

// ID returns the instance identifier.
func (i *Instance) ID() string { return i.id }

// Type returns the stage type.
func (i *Instance) Type() Type { return i.typ }

// Config returns the validated configuration.
func (i *Instance) Config() *schema.Config { return i.cfg }

// State returns the current lifecycle state.
func (i *Instance) State() State {
	return State(i.state.Load())
}

// Metrics returns a snapshot of the instance counters.
func (i *Instance) Metrics() Metrics {
	return i.metrics.snapshot()
}

// Init runs the stage's Init once. On success the instance becomes Ready; on an error
// or panic it becomes InitFailed and an *InitializationError is returned. Any later
// call returns ErrAlreadyInitialized without changing state.
func (i *Instance) Init(h host.Handle) error {
	i.initMu.Lock()
	defer i.initMu.Unlock()

	if i.State() != Created {
		return ErrAlreadyInitialized
	}
	if h == nil {
		h = host.NewHandle(nil, nil)
	}

	start := time.Now()
	err := i.runInit(h)
	if err != nil {
		i.state.Store(int32(InitFailed))
		i.logger.Error("Stage initialization failed",
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		if i.reporter != nil {
			i.reporter.ReportError(context.Background(), err)
		}
		return err
	}

	i.state.Store(int32(Initialized))
	i.state.Store(int32(Ready))
	i.logger.Info("Stage ready", zap.Duration("init_duration", time.Since(start)))
	return nil
}

func (i *Instance) runInit(h host.Handle) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &InitializationError{StageID: i.typ.ID, InstanceID: i.id, Panic: true, Cause: &panicError{value: r}}
		}
	}()
	if cause := i.stage.Init(i.cfg, h); cause != nil {
		return &InitializationError{StageID: i.typ.ID, InstanceID: i.id, Cause: cause}
	}
	return nil
}

// Process runs the stage on doc and passes every output to emit, in order. If the
// stage fails or panics nothing is emitted and a *ProcessingError is returned; the
// failure has already been logged, counted and reported, and the instance remains
// Ready. Process is safe for concurrent use.
func (i *Instance) Process(ctx context.Context, call *Call, doc *document.Document, emit func(*document.Document)) error {
	if err := i.checkReady(); err != nil {
		return err
	}
	call = call.withDefaults(i.meter)

	var docID string
	if doc != nil {
		docID = doc.ID()
	}

	ctx, span := i.tracer.Start(ctx, "stage.Process",
		trace.WithAttributes(
			attribute.String("stage.id", i.typ.ID),
			attribute.String("stage.instance_id", i.id),
			attribute.String("call.id", call.ID),
			attribute.String("document.id", docID),
		))
	defer span.End()

	call.Logger = call.Logger.With(
		zap.String("stage_id", i.typ.ID),
		zap.String("call_id", call.ID),
		zap.String("document_id", docID))

	start := time.Now()
	outputs, err := i.drain(ctx, call, doc)
	duration := time.Since(start)
	span.SetAttributes(attribute.Int64("processing.duration_ms", duration.Milliseconds()))

	if err != nil {
		perr := &ProcessingError{
			StageID:    i.typ.ID,
			InstanceID: i.id,
			CallID:     call.ID,
			DocumentID: docID,
			Cause:      err,
		}
		_, perr.Panic = err.(*panicError)

		span.RecordError(perr)
		span.SetStatus(codes.Error, perr.Error())
		i.metrics.recordFailed(ctx, duration)
		i.logger.Error("Document dropped after processing error",
			zap.String("call_id", call.ID),
			zap.String("document_id", docID),
			zap.Bool("panic", perr.Panic),
			zap.Duration("duration", duration),
			zap.Error(err))
		if i.reporter != nil {
			i.reporter.ReportError(ctx, perr)
		}
		return perr
	}

	for _, out := range outputs {
		emit(out)
	}
	span.SetAttributes(attribute.Int("documents.emitted", len(outputs)))
	span.SetStatus(codes.Ok, "Document processed")
	i.metrics.recordProcessed(ctx, duration, len(outputs))
	i.logger.Debug("Document processed",
		zap.String("call_id", call.ID),
		zap.String("document_id", docID),
		zap.Int("emitted", len(outputs)),
		zap.Duration("duration", duration))
	return nil
}

// ProcessAll is Process with the outputs collected into a slice.
func (i *Instance) ProcessAll(ctx context.Context, call *Call, doc *document.Document) ([]*document.Document, error) {
	var outputs []*document.Document
	err := i.Process(ctx, call, doc, func(d *document.Document) {
		outputs = append(outputs, d)
	})
	if err != nil {
		return nil, err
	}
	return outputs, nil
}

// drain collects the stage's outputs into a call-local buffer
func (i *Instance) drain(ctx context.Context, call *Call, doc *document.Document) (outputs []*document.Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			outputs = nil
			err = &panicError{value: r}
		}
	}()
	if doc == nil {
		return nil, ErrNilDocument
	}

	seq := i.stage.Process(ctx, call, doc)
	if seq == nil {
		return nil, nil
	}
	for out, err := range seq {
		if err != nil {
			return nil, err
		}
		if out != nil {
			outputs = append(outputs, out)
		}
	}
	return outputs, nil
}

func (i *Instance) checkReady() error {
	if i.closed.Load() {
		return fmt.Errorf("%w: %w", ErrNotReady, ErrClosed)
	}
	switch i.State() {
	case Ready:
		return nil
	case InitFailed:
		return fmt.Errorf("%w: %w", ErrNotReady, ErrInitFailed)
	}
	return ErrNotReady
}

// Close releases the stage's resources if it implements io.Closer. It is safe to call
// more than once and safe to never call. Process returns ErrClosed afterwards.
func (i *Instance) Close() error {
	i.closeOnce.Do(func() {
		i.closed.Store(true)
		if c, ok := i.stage.(io.Closer); ok {
			i.closeErr = c.Close()
		}
		i.logger.Debug("Stage closed", zap.Error(i.closeErr))
	})
	return i.closeErr
}
