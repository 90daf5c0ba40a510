// Package stage defines the contract between a pipeline host and a stage
// implementation, and the Instance that enforces its lifecycle.
//
// A stage type is described by a Type: an identifier, the schema.Descriptor of its
// configuration and a constructor. The host creates an Instance from a Type and a raw
// configuration, calls Init once with its host.Handle, and then calls Process
// concurrently for every document routed to the stage.
package stage

import (
	"context"
	"fmt"
	"iter"

	"github.com/wehubfusion/Stagehand/pkg/document"
	"github.com/wehubfusion/Stagehand/pkg/host"
	"github.com/wehubfusion/Stagehand/pkg/schema"
)

// Stage is implemented by stage authors.
//
// Init receives the validated configuration and the host handle. It runs once, before
// any Process call, and should only do bounded setup.
//
// Process transforms one document into zero or more documents. It is called
// concurrently on the same value, so any state it touches beyond its own stack must be
// safe for concurrent use. A yielded error drops the document: nothing the sequence
// produced is emitted.
type Stage interface {
	Init(cfg *schema.Config, h host.Handle) error
	Process(ctx context.Context, call *Call, doc *document.Document) iter.Seq2[*document.Document, error]
}

// ProcessFunc has the signature of Stage.Process.
type ProcessFunc func(ctx context.Context, call *Call, doc *document.Document) iter.Seq2[*document.Document, error]

// SingleFunc returns at most one output. A nil document filters the input out.
type SingleFunc func(ctx context.Context, call *Call, doc *document.Document) (*document.Document, error)

// MultiFunc emits any number of outputs in order.
type MultiFunc func(ctx context.Context, call *Call, doc *document.Document, emit func(*document.Document)) error

// Single adapts a single output function to the sequence contract.
func Single(fn SingleFunc) ProcessFunc {
	return func(ctx context.Context, call *Call, doc *document.Document) iter.Seq2[*document.Document, error] {
		return func(yield func(*document.Document, error) bool) {
			out, err := fn(ctx, call, doc)
			if err != nil {
				yield(nil, err)
				return
			}
			if out != nil {
				yield(out, nil)
			}
		}
	}
}

// Multi adapts an emit style function to the sequence contract. Emits after the
// consumer stopped are discarded.
func Multi(fn MultiFunc) ProcessFunc {
	return func(ctx context.Context, call *Call, doc *document.Document) iter.Seq2[*document.Document, error] {
		return func(yield func(*document.Document, error) bool) {
			stopped := false
			emit := func(out *document.Document) {
				if stopped || out == nil {
					return
				}
				stopped = !yield(out, nil)
			}
			if err := fn(ctx, call, doc, emit); err != nil && !stopped {
				yield(nil, err)
			}
		}
	}
}

// Funcs builds a Stage from functions. A nil InitFn accepts any configuration.
type Funcs struct {
	InitFn    func(cfg *schema.Config, h host.Handle) error
	ProcessFn ProcessFunc
}

// Init implements Stage.
func (f Funcs) Init(cfg *schema.Config, h host.Handle) error {
	if f.InitFn == nil {
		return nil
	}
	return f.InitFn(cfg, h)
}

// Process implements Stage.
func (f Funcs) Process(ctx context.Context, call *Call, doc *document.Document) iter.Seq2[*document.Document, error] {
	return f.ProcessFn(ctx, call, doc)
}

// Type describes a stage type.
type Type struct {
	// ID is the stage type identifier
	ID string
	// Description is shown in listings
	Description string
	// Descriptor declares the configuration surface
	Descriptor *schema.Descriptor
	// New creates an uninitialized stage value for one instance
	New func() Stage
}

// Validate checks that the type is complete.
func (t Type) Validate() error {
	switch {
	case t.ID == "":
		return fmt.Errorf("%w: id is required", ErrInvalidType)
	case t.Descriptor == nil:
		return fmt.Errorf("%w: %s has no descriptor", ErrInvalidType, t.ID)
	case t.New == nil:
		return fmt.Errorf("%w: %s has no constructor", ErrInvalidType, t.ID)
	}
	return nil
}
