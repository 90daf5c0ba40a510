package script

import (
	"errors"
	"fmt"

	"github.com/dop251/goja"
)

// Security levels
const (
	SecurityPermissive = "permissive"
	SecurityStandard   = "standard"
	SecurityStrict     = "strict"
)

// ErrForbidden is thrown into scripts that call a blocked global.
var ErrForbidden = errors.New("operation is not allowed")

// hostGlobals are removed at every level except permissive.
var hostGlobals = []string{
	"require", "module", "exports", "process", "global",
	"__dirname", "__filename", "Buffer", "setImmediate", "clearImmediate",
}

var frozenBuiltins = []string{
	"Object", "Array", "Function", "String", "Number", "Boolean",
	"Date", "RegExp", "Error",
}

// sandbox restricts the globals a script can reach.
type sandbox struct {
	level string
}

func (s sandbox) apply(vm *goja.Runtime) error {
	if s.level == SecurityPermissive {
		return nil
	}
	for _, name := range hostGlobals {
		if err := vm.Set(name, goja.Undefined()); err != nil {
			return fmt.Errorf("failed to remove %s: %w", name, err)
		}
	}
	if s.level != SecurityStrict {
		return nil
	}

	if err := s.freeze(vm); err != nil {
		return err
	}
	for _, name := range []string{"eval", "Function"} {
		blocked := name
		if err := vm.Set(blocked, func(goja.FunctionCall) goja.Value {
			panic(vm.NewGoError(fmt.Errorf("%w: %s", ErrForbidden, blocked)))
		}); err != nil {
			return fmt.Errorf("failed to restrict %s: %w", blocked, err)
		}
	}
	return nil
}

// freeze makes the builtin prototypes and namespaces immutable.
func (s sandbox) freeze(vm *goja.Runtime) error {
	fn, err := vm.RunString(`(function(ctor) { if (ctor && ctor.prototype) { Object.freeze(ctor.prototype); } })`)
	if err != nil {
		return fmt.Errorf("failed to build freeze helper: %w", err)
	}
	freeze, ok := goja.AssertFunction(fn)
	if !ok {
		return errors.New("freeze helper is not callable")
	}

	for _, name := range frozenBuiltins {
		if _, err := freeze(goja.Undefined(), vm.Get(name)); err != nil {
			return fmt.Errorf("failed to freeze %s: %w", name, err)
		}
	}
	if _, err := vm.RunString(`Object.freeze(Math); Object.freeze(JSON);`); err != nil {
		return fmt.Errorf("failed to freeze namespaces: %w", err)
	}
	return nil
}
