package document

import (
	"sort"
	"sync"
)

// IDField is the reserved name of the identity field every Document carries.
const IDField = "_id"

// Document maps field names to Fields.
//
// A Document is owned by the call stack currently processing it. The internal lock
// only keeps concurrent readers and writers memory-safe; it does not make sharing a
// Document across calls correct.
//
// The zero Document is usable but has no identity until SetID; New is the normal way
// to create one.
type Document struct {
	mu     sync.RWMutex
	fields map[string]*Field
}

// New creates a document with the given identity.
func New(id string) (*Document, error) {
	if id == "" {
		return nil, ErrEmptyID
	}
	return &Document{
		fields: map[string]*Field{
			IDField: newField(IDField, TypeString, []Value{StringValue(id)}),
		},
	}, nil
}

// MustNew is like New but panics on an empty id.
func MustNew(id string) *Document {
	d, err := New(id)
	if err != nil {
		panic(err)
	}
	return d
}

// ID returns the document identity.
func (d *Document) ID() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.idLocked()
}

func (d *Document) idLocked() string {
	f, ok := d.fields[IDField]
	if !ok || len(f.values) == 0 {
		return ""
	}
	s, _ := f.values[0].AsString()
	return s
}

// SetID replaces the document identity. Whether re-identification is allowed is the
// host's decision.
func (d *Document) SetID(id string) error {
	if id == "" {
		return ErrEmptyID
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.initLocked()
	d.fields[IDField] = newField(IDField, TypeString, []Value{StringValue(id)})
	return nil
}

func (d *Document) initLocked() {
	if d.fields == nil {
		d.fields = make(map[string]*Field)
	}
}

// Field returns the field with the given name. A missing field is reported through ok.
func (d *Document) Field(name string) (*Field, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	f, ok := d.fields[name]
	return f, ok
}

// Has reports whether the field exists.
func (d *Document) Has(name string) bool {
	_, ok := d.Field(name)
	return ok
}

// Values is shorthand for Field(name).Values(); it returns nil for a missing field.
func (d *Document) Values(name string) []Value {
	f, ok := d.Field(name)
	if !ok {
		return nil
	}
	return f.Values()
}

// FirstString returns the first value of a field rendered as a string.
func (d *Document) FirstString(name string) (string, bool) {
	f, ok := d.Field(name)
	if !ok {
		return "", false
	}
	v, ok := f.First()
	if !ok {
		return "", false
	}
	return v.String(), true
}

// Set replaces or creates a field. Every value is coerced to tag; if any value is not
// representable a *TypeMismatchError is returned and the document is unchanged.
// Setting zero values yields an explicitly empty field.
func (d *Document) Set(name string, tag TypeTag, values ...interface{}) error {
	f, err := buildField(name, tag, values)
	if err != nil {
		return err
	}
	if name == IDField {
		if s, _ := firstString(f); tag != TypeString || f.Len() != 1 || s == "" {
			return ErrReservedField
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.initLocked()
	d.fields[name] = f
	return nil
}

// Append adds values to an existing field using its declared type, or creates a
// STRING field when the field is missing.
func (d *Document) Append(name string, values ...interface{}) error {
	if name == IDField {
		return ErrReservedField
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	tag := TypeString
	var existing []Value
	if f, ok := d.fields[name]; ok {
		tag = f.tag
		existing = f.values
	}
	added, err := buildField(name, tag, values)
	if err != nil {
		if tm, ok := err.(*TypeMismatchError); ok {
			tm.Index += len(existing)
		}
		return err
	}

	merged := make([]Value, 0, len(existing)+len(added.values))
	merged = append(merged, existing...)
	merged = append(merged, added.values...)
	d.initLocked()
	d.fields[name] = newField(name, tag, merged)
	return nil
}

// Remove deletes a field. Removing a missing field is not an error. The identity
// field cannot be removed.
func (d *Document) Remove(name string) {
	if name == IDField {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.fields, name)
}

// FieldNames returns a sorted snapshot of the current field names.
func (d *Document) FieldNames() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make([]string, 0, len(d.fields))
	for name := range d.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of fields including the identity field.
func (d *Document) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.fields)
}

// Copy returns a deep copy whose fields are owned independently of d.
func (d *Document) Copy() *Document {
	d.mu.RLock()
	defer d.mu.RUnlock()

	fields := make(map[string]*Field, len(d.fields))
	for name, f := range d.fields {
		fields[name] = f.clone()
	}
	return &Document{fields: fields}
}

// Equal reports whether both documents hold the same fields and values.
func (d *Document) Equal(o *Document) bool {
	if d == nil || o == nil {
		return d == o
	}
	if d == o {
		return true
	}
	a, b := d.snapshot(), o.snapshot()
	if len(a) != len(b) {
		return false
	}
	for name, f := range a {
		if !f.Equal(b[name]) {
			return false
		}
	}
	return true
}

func (d *Document) snapshot() map[string]*Field {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]*Field, len(d.fields))
	for k, v := range d.fields {
		out[k] = v
	}
	return out
}

func buildField(name string, tag TypeTag, raw []interface{}) (*Field, error) {
	if name == "" {
		return nil, ErrEmptyFieldName
	}
	values := make([]Value, 0, len(raw))
	for i, r := range raw {
		v, err := NewValue(tag, r)
		if err != nil {
			return nil, newTypeMismatch(name, i, tag, r, err)
		}
		values = append(values, v)
	}
	return newField(name, tag, values), nil
}

func firstString(f *Field) (string, bool) {
	v, ok := f.First()
	if !ok {
		return "", false
	}
	return v.AsString()
}
