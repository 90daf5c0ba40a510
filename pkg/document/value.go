// Package document provides the document data model passed between pipeline stages.
//
// A Document maps field names to Fields. A Field is an ordered, typed sequence of
// immutable Values. Every Document carries a reserved identity field (IDField) whose
// single value identifies it within a pipeline run.
package document

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"time"
)

// TypeTag is the declared type of a Value.
type TypeTag string

// Supported value types
const (
	TypeString  TypeTag = "STRING"
	TypeInteger TypeTag = "INTEGER"
	TypeLong    TypeTag = "LONG"
	TypeDouble  TypeTag = "DOUBLE"
	TypeBoolean TypeTag = "BOOLEAN"
	TypeDate    TypeTag = "DATE"
	TypeBytes   TypeTag = "BYTES"
)

// IsValid reports whether t belongs to the closed set of type tags.
func (t TypeTag) IsValid() bool {
	switch t {
	case TypeString, TypeInteger, TypeLong, TypeDouble, TypeBoolean, TypeDate, TypeBytes:
		return true
	}
	return false
}

// ParseTypeTag parses a type tag name.
func ParseTypeTag(s string) (TypeTag, error) {
	t := TypeTag(s)
	if !t.IsValid() {
		return "", fmt.Errorf("unknown type tag %q", s)
	}
	return t, nil
}

// Value is a single immutable datum with a fixed type tag.
// The zero Value is invalid; construct values with NewValue or the typed helpers.
type Value struct {
	tag  TypeTag
	data interface{}
}

// NewValue coerces raw into a Value of the given type.
func NewValue(tag TypeTag, raw interface{}) (Value, error) {
	if !tag.IsValid() {
		return Value{}, fmt.Errorf("unknown type tag %q", tag)
	}
	data, err := coerce(tag, raw)
	if err != nil {
		return Value{}, err
	}
	return Value{tag: tag, data: data}, nil
}

// StringValue returns a STRING value.
func StringValue(s string) Value { return Value{tag: TypeString, data: s} }

// IntegerValue returns an INTEGER value.
func IntegerValue(i int32) Value { return Value{tag: TypeInteger, data: i} }

// LongValue returns a LONG value.
func LongValue(i int64) Value { return Value{tag: TypeLong, data: i} }

// DoubleValue returns a DOUBLE value. Setting a non-finite value on a field fails.
func DoubleValue(f float64) Value { return Value{tag: TypeDouble, data: f} }

// BooleanValue returns a BOOLEAN value.
func BooleanValue(b bool) Value { return Value{tag: TypeBoolean, data: b} }

// DateValue returns a DATE value in UTC.
func DateValue(t time.Time) Value { return Value{tag: TypeDate, data: t.UTC()} }

// BytesValue returns a BYTES value holding a copy of b.
func BytesValue(b []byte) Value { return Value{tag: TypeBytes, data: cloneBytes(b)} }

// Type returns the value's type tag.
func (v Value) Type() TypeTag {
	return v.tag
}

// IsValid reports whether the value was constructed.
func (v Value) IsValid() bool {
	return v.tag != ""
}

// Interface returns the underlying datum. BYTES are returned as a copy.
func (v Value) Interface() interface{} {
	if b, ok := v.data.([]byte); ok {
		return cloneBytes(b)
	}
	return v.data
}

// AsString returns the datum of a STRING value.
func (v Value) AsString() (string, bool) {
	s, ok := v.data.(string)
	return s, ok
}

// AsInteger returns the datum of an INTEGER value.
func (v Value) AsInteger() (int32, bool) {
	i, ok := v.data.(int32)
	return i, ok
}

// AsLong returns the datum of a LONG value.
func (v Value) AsLong() (int64, bool) {
	i, ok := v.data.(int64)
	return i, ok
}

// AsDouble returns the datum of a DOUBLE value.
func (v Value) AsDouble() (float64, bool) {
	f, ok := v.data.(float64)
	return f, ok
}

// AsBoolean returns the datum of a BOOLEAN value.
func (v Value) AsBoolean() (bool, bool) {
	b, ok := v.data.(bool)
	return b, ok
}

// AsDate returns the datum of a DATE value.
func (v Value) AsDate() (time.Time, bool) {
	t, ok := v.data.(time.Time)
	return t, ok
}

// AsBytes returns a copy of the datum of a BYTES value.
func (v Value) AsBytes() ([]byte, bool) {
	b, ok := v.data.([]byte)
	if !ok {
		return nil, false
	}
	return cloneBytes(b), true
}

// Equal reports whether two values have the same type and datum.
func (v Value) Equal(o Value) bool {
	if v.tag != o.tag {
		return false
	}
	switch a := v.data.(type) {
	case []byte:
		b, ok := o.data.([]byte)
		return ok && string(a) == string(b)
	case time.Time:
		b, ok := o.data.(time.Time)
		return ok && a.Equal(b)
	default:
		return v.data == o.data
	}
}

// String renders the datum for logs and STRING coercion.
func (v Value) String() string {
	switch d := v.data.(type) {
	case nil:
		return ""
	case string:
		return d
	case int32:
		return strconv.FormatInt(int64(d), 10)
	case int64:
		return strconv.FormatInt(d, 10)
	case float64:
		return strconv.FormatFloat(d, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(d)
	case time.Time:
		return d.Format(time.RFC3339Nano)
	case []byte:
		return base64.StdEncoding.EncodeToString(d)
	}
	return fmt.Sprintf("%v", v.data)
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
