package stage

import (
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/wehubfusion/Stagehand/pkg/document"
)

// Call carries the per call metadata a host supplies with each document. It is opaque
// to the runtime and must not be retained by a stage after Process returns.
type Call struct {
	// ID identifies the call in logs and errors
	ID string
	// Attributes are host defined key/value pairs
	Attributes map[string]string
	// Documents creates fresh documents for fan-out stages
	Documents document.Factory
	// Logger is scoped to the call
	Logger *zap.Logger
	// Meter lets stages register their own counters and histograms
	Meter metric.Meter
}

// NewCall creates a call with a generated id and default collaborators.
func NewCall(attributes map[string]string) *Call {
	c := &Call{Attributes: attributes}
	return c.withDefaults(nil)
}

// Attribute returns a call attribute, or "" when absent.
func (c *Call) Attribute(key string) string {
	return c.Attributes[key]
}

// withDefaults returns a shallow copy with every nil collaborator filled in.
func (c *Call) withDefaults(meter metric.Meter) *Call {
	cp := Call{}
	if c != nil {
		cp = *c
	}
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	if cp.Documents == nil {
		cp.Documents = document.NewUUIDFactory("")
	}
	if cp.Logger == nil {
		cp.Logger = zap.NewNop()
	}
	if cp.Meter == nil {
		cp.Meter = meter
	}
	if cp.Meter == nil {
		cp.Meter = noop.NewMeterProvider().Meter("stagehand/stage")
	}
	return &cp
}
