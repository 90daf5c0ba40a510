package stage

import (
	"errors"
	"fmt"
)

// Common errors used throughout the stage runtime.
var (
	// ErrNotReady is returned when Process is called on an instance that is not Ready.
	ErrNotReady = errors.New("stage instance is not ready")

	// ErrAlreadyInitialized is returned by a second Init call.
	ErrAlreadyInitialized = errors.New("stage instance already initialized")

	// ErrInitFailed marks an instance whose initialization failed. It must be discarded.
	ErrInitFailed = errors.New("stage instance initialization failed")

	// ErrClosed is returned by Process after Close.
	ErrClosed = errors.New("stage instance closed")

	// ErrUnknownStage is returned when no stage type is registered for an id.
	ErrUnknownStage = errors.New("no stage type registered")

	// ErrInvalidType is returned when a stage type declaration is incomplete.
	ErrInvalidType = errors.New("invalid stage type")

	// ErrNilDocument is the cause of a ProcessingError for a nil input document.
	ErrNilDocument = errors.New("input document is nil")
)

// InitializationError is returned when a stage's Init fails or panics. The instance
// moves to InitFailed and never receives documents.
type InitializationError struct {
	// StageID is the stage type identifier
	StageID string
	// InstanceID identifies the failed instance
	InstanceID string
	// Panic is set when the failure was a recovered panic
	Panic bool
	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *InitializationError) Error() string {
	what := "failed"
	if e.Panic {
		what = "panicked"
	}
	return fmt.Sprintf("initialization of stage %s (%s) %s: %v", e.StageID, e.InstanceID, what, e.Cause)
}

// Unwrap returns the underlying error and ErrInitFailed.
func (e *InitializationError) Unwrap() []error {
	return []error{ErrInitFailed, e.Cause}
}

// ProcessingError is returned when processing a single document fails. The document
// was dropped; the instance is still Ready.
type ProcessingError struct {
	// StageID is the stage type identifier
	StageID string
	// InstanceID identifies the instance that processed the document
	InstanceID string
	// CallID is the host supplied call identifier
	CallID string
	// DocumentID is the identity of the input document at the start of the call
	DocumentID string
	// Panic is set when the failure was a recovered panic
	Panic bool
	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *ProcessingError) Error() string {
	what := "failed"
	if e.Panic {
		what = "panicked"
	}
	return fmt.Sprintf("processing document %q in stage %s (call %s) %s: %v",
		e.DocumentID, e.StageID, e.CallID, what, e.Cause)
}

// Unwrap returns the underlying error.
func (e *ProcessingError) Unwrap() error {
	return e.Cause
}

// panicError carries a recovered panic value
type panicError struct {
	value interface{}
}

func (p *panicError) Error() string {
	return fmt.Sprintf("panic: %v", p.value)
}

func (p *panicError) Unwrap() error {
	if err, ok := p.value.(error); ok {
		return err
	}
	return nil
}
