package document

// Field is a named, ordered sequence of values with a declared type.
// Fields are owned by exactly one Document; accessors return copies.
type Field struct {
	name   string
	tag    TypeTag
	values []Value
}

func newField(name string, tag TypeTag, values []Value) *Field {
	return &Field{name: name, tag: tag, values: values}
}

// Name returns the field name.
func (f *Field) Name() string {
	return f.name
}

// Type returns the declared type tag.
func (f *Field) Type() TypeTag {
	return f.tag
}

// Len returns the number of values.
func (f *Field) Len() int {
	return len(f.values)
}

// IsEmpty reports whether the field was set with zero values.
func (f *Field) IsEmpty() bool {
	return len(f.values) == 0
}

// Values returns a copy of the value sequence in order.
func (f *Field) Values() []Value {
	out := make([]Value, len(f.values))
	copy(out, f.values)
	return out
}

// First returns the first value, if any.
func (f *Field) First() (Value, bool) {
	if len(f.values) == 0 {
		return Value{}, false
	}
	return f.values[0], true
}

// At returns the value at index i.
func (f *Field) At(i int) (Value, bool) {
	if i < 0 || i >= len(f.values) {
		return Value{}, false
	}
	return f.values[i], true
}

// Strings renders every value with Value.String.
func (f *Field) Strings() []string {
	out := make([]string, len(f.values))
	for i, v := range f.values {
		out[i] = v.String()
	}
	return out
}

// Equal reports whether two fields have the same name, type and values.
func (f *Field) Equal(o *Field) bool {
	if f == nil || o == nil {
		return f == o
	}
	if f.name != o.name || f.tag != o.tag || len(f.values) != len(o.values) {
		return false
	}
	for i := range f.values {
		if !f.values[i].Equal(o.values[i]) {
			return false
		}
	}
	return true
}

func (f *Field) clone() *Field {
	// Values are immutable, so a fresh backing array is enough.
	return newField(f.name, f.tag, f.Values())
}
