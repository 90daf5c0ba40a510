package document

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyID is returned when a document identity is empty.
	ErrEmptyID = errors.New("document id cannot be empty")

	// ErrEmptyFieldName is returned when a field name is empty.
	ErrEmptyFieldName = errors.New("field name cannot be empty")

	// ErrReservedField is returned when the identity field is set with anything other
	// than a single non-empty string.
	ErrReservedField = errors.New("identity field must hold exactly one non-empty string")
)

// TypeMismatchError reports a value that cannot be represented under a field's
// declared type. It is a local failure: the document is left unchanged.
type TypeMismatchError struct {
	Field  string
	Index  int
	Type   TypeTag
	GoType string
	Err    error
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("field %q: value %d (%s) is not representable as %s: %v",
		e.Field, e.Index, e.GoType, e.Type, e.Err)
}

func (e *TypeMismatchError) Unwrap() error { return e.Err }

func newTypeMismatch(field string, index int, tag TypeTag, raw interface{}, err error) *TypeMismatchError {
	goType := fmt.Sprintf("%T", raw)
	if v, ok := raw.(Value); ok {
		goType = "Value[" + string(v.Type()) + "]"
	}
	return &TypeMismatchError{Field: field, Index: index, Type: tag, GoType: goType, Err: err}
}
