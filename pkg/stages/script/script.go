// Package script provides a stage that transforms documents with a JavaScript
// function body executed by goja.
//
// The script runs as the body of function(doc, call). doc is {id, fields} where every
// field is an array of values; call is {id, attributes}. A global log(...) writes to
// the call logger. The return value decides the outputs:
//
//	undefined, true    the (possibly mutated) doc
//	false, null        nothing; the document is filtered out
//	object             one document built from {id, fields}
//	array of objects   one document per element
//
// Fields that exist on the input keep their declared type. New fields infer theirs
// from the JavaScript values.
package script

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/wehubfusion/Stagehand/pkg/document"
	"github.com/wehubfusion/Stagehand/pkg/host"
	"github.com/wehubfusion/Stagehand/pkg/schema"
	"github.com/wehubfusion/Stagehand/pkg/stage"
)

// ID is the stage type identifier
const ID = "script"

var (
	// ErrTimeout is returned when a script exceeds timeoutMs.
	ErrTimeout = errors.New("script timed out")
	// ErrBadResult is returned when a script returns something that is not a document.
	ErrBadResult = errors.New("script returned an invalid document")
)

// ScriptError is a JavaScript exception raised by the script.
type ScriptError struct {
	Message string
	Err     error
}

func (e *ScriptError) Error() string {
	return "script error: " + e.Message
}

func (e *ScriptError) Unwrap() error { return e.Err }

// Descriptor declares the stage configuration.
var Descriptor = schema.NewDescriptor(ID).
	Describe("Transforms documents with JavaScript").
	String("source", schema.Required(), schema.MinLength(1),
		schema.Description("Function body receiving doc and call")).
	Long("timeoutMs", schema.Default(1000), schema.Min(1), schema.Max(60000)).
	Enum("security", []string{SecurityPermissive, SecurityStandard, SecurityStrict},
		schema.Default(SecurityStandard)).
	Integer("poolSize", schema.Default(8), schema.Min(1), schema.Max(256),
		schema.Description("Maximum number of runtimes kept for concurrent calls")).
	Integer("maxReuse", schema.Default(1000), schema.Min(0),
		schema.Description("Calls served by a runtime before it is rebuilt; 0 disables")).
	MustBuild()

// Type is the registered stage type.
var Type = stage.Type{
	ID:          ID,
	Description: "Transforms documents with JavaScript",
	Descriptor:  Descriptor,
	New:         func() stage.Stage { return &Stage{} },
}

// Stage runs a compiled program on pooled runtimes.
type Stage struct {
	program *goja.Program
	sandbox sandbox
	timeout time.Duration
	pool    *pool
}

var _ io.Closer = (*Stage)(nil)

// Init compiles the script and builds the runtime pool.
func (s *Stage) Init(cfg *schema.Config, _ host.Handle) error {
	level := cfg.String("security")
	src := "(function(doc, call) {\n" + cfg.String("source") + "\n})"

	program, err := goja.Compile(ID, src, level == SecurityStrict)
	if err != nil {
		return fmt.Errorf("failed to compile script: %w", err)
	}
	s.program = program
	s.sandbox = sandbox{level: level}
	s.timeout = time.Duration(cfg.Long("timeoutMs")) * time.Millisecond

	s.pool, err = newPool(int(cfg.Int("poolSize")), int(cfg.Int("maxReuse")), s.newRuntime)
	return err
}

func (s *Stage) newRuntime() (*runtime, error) {
	vm := goja.New()
	if err := s.sandbox.apply(vm); err != nil {
		return nil, err
	}
	val, err := vm.RunProgram(s.program)
	if err != nil {
		return nil, err
	}
	fn, ok := goja.AssertFunction(val)
	if !ok {
		return nil, errors.New("script did not evaluate to a function")
	}
	return &runtime{vm: vm, fn: fn}, nil
}

// Close releases the runtime pool.
func (s *Stage) Close() error {
	if s.pool != nil {
		s.pool.close()
	}
	return nil
}

// Process implements stage.Stage.
func (s *Stage) Process(ctx context.Context, call *stage.Call, doc *document.Document) iter.Seq2[*document.Document, error] {
	return stage.Multi(s.run)(ctx, call, doc)
}

func (s *Stage) run(ctx context.Context, call *stage.Call, doc *document.Document, emit func(*document.Document)) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rt, err := s.pool.acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire runtime: %w", err)
	}
	defer s.pool.release(rt)

	types := fieldTypes(doc)
	docObj := toJS(rt.vm, doc)
	result, err := s.invoke(ctx, rt, call, docObj)
	if err != nil {
		return err
	}

	switch {
	case goja.IsUndefined(result):
		return s.emitInput(doc, docObj, types, emit)
	case goja.IsNull(result):
		return nil
	}

	switch v := result.Export().(type) {
	case bool:
		if v {
			return s.emitInput(doc, docObj, types, emit)
		}
		return nil
	case []interface{}:
		outputs := make([]*document.Document, 0, len(v))
		for i, item := range v {
			out, err := newOutput(call, item, types)
			if err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
			outputs = append(outputs, out)
		}
		for _, out := range outputs {
			emit(out)
		}
		return nil
	case map[string]interface{}:
		out, err := newOutput(call, v, types)
		if err != nil {
			return err
		}
		emit(out)
		return nil
	default:
		return fmt.Errorf("%w: got %T", ErrBadResult, v)
	}
}

func (s *Stage) emitInput(doc *document.Document, docObj *goja.Object, types map[string]document.TypeTag, emit func(*document.Document)) error {
	if err := writeBack(doc, docObj.Export(), types); err != nil {
		return err
	}
	emit(doc)
	return nil
}

// newOutput builds a fresh document from an exported {id, fields} object.
func newOutput(call *stage.Call, exported interface{}, types map[string]document.TypeTag) (*document.Document, error) {
	obj, ok := exported.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: got %T", ErrBadResult, exported)
	}
	out := call.Documents.New()
	if id, ok := obj["id"].(string); ok && id != "" {
		var err error
		if out, err = call.Documents.NewWithID(id); err != nil {
			return nil, err
		}
	}
	if err := writeBack(out, obj, types); err != nil {
		return nil, err
	}
	return out, nil
}

// invoke calls the script function, interrupting it when ctx ends.
func (s *Stage) invoke(ctx context.Context, rt *runtime, call *stage.Call, docObj *goja.Object) (goja.Value, error) {
	callObj := rt.vm.NewObject()
	_ = callObj.Set("id", call.ID)
	// a fresh object per call; scripts may write to it without touching the host's map
	attrs := rt.vm.NewObject()
	for k, v := range call.Attributes {
		_ = attrs.Set(k, v)
	}
	_ = callObj.Set("attributes", attrs)
	_ = rt.vm.Set("log", func(fc goja.FunctionCall) goja.Value {
		parts := make([]string, 0, len(fc.Arguments))
		for _, a := range fc.Arguments {
			parts = append(parts, a.String())
		}
		call.Logger.Info(strings.Join(parts, " "), zap.String("stage_id", ID))
		return goja.Undefined()
	})

	stop := make(chan struct{})
	watching := make(chan struct{})
	go func() {
		defer close(watching)
		select {
		case <-ctx.Done():
			rt.vm.Interrupt(ctx.Err())
		case <-stop:
		}
	}()

	result, err := rt.fn(goja.Undefined(), docObj, callObj)
	close(stop)
	<-watching

	if err == nil {
		return result, nil
	}
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrTimeout, s.timeout)
		}
		return nil, ctx.Err()
	}
	var exc *goja.Exception
	if errors.As(err, &exc) {
		return nil, &ScriptError{Message: exc.Error(), Err: exc}
	}
	return nil, err
}
