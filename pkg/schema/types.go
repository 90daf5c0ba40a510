// Package schema describes and validates the configuration surface of a stage type.
//
// A Descriptor is declared once per stage type, either in code with the Builder or
// from a JSON declaration with the Parser. The Validator checks a raw configuration
// against it and produces an immutable Config, collecting every violation rather than
// stopping at the first.
package schema

import (
	"regexp"
	"slices"
)

// PropertyType is the declared type of a configuration property
type PropertyType string

// Supported property types
const (
	TypeString  PropertyType = "STRING"
	TypeInteger PropertyType = "INTEGER"
	TypeLong    PropertyType = "LONG"
	TypeDouble  PropertyType = "DOUBLE"
	TypeBoolean PropertyType = "BOOLEAN"
	TypeEnum    PropertyType = "ENUM"
	TypeNested  PropertyType = "NESTED"
)

// IsValidType checks if a property type is valid
func IsValidType(t PropertyType) bool {
	validTypes := map[PropertyType]bool{
		TypeString: true, TypeInteger: true, TypeLong: true, TypeDouble: true,
		TypeBoolean: true, TypeEnum: true, TypeNested: true,
	}
	return validTypes[t]
}

func isNumeric(t PropertyType) bool {
	return t == TypeInteger || t == TypeLong || t == TypeDouble
}

// ValidationRules contains the type-specific constraints of a property
type ValidationRules struct {
	// String validations
	MinLength *int   `json:"minLength,omitempty"`
	MaxLength *int   `json:"maxLength,omitempty"`
	Pattern   string `json:"pattern,omitempty"`
	Format    string `json:"format,omitempty"`

	// Number validations
	Minimum *float64 `json:"minimum,omitempty"`
	Maximum *float64 `json:"maximum,omitempty"`

	// Enumeration choices
	Enum []string `json:"enum,omitempty"`
}

// clone returns a deep copy of the rules.
func (r *ValidationRules) clone() *ValidationRules {
	if r == nil {
		return nil
	}
	c := *r
	if r.MinLength != nil {
		c.MinLength = ptr(*r.MinLength)
	}
	if r.MaxLength != nil {
		c.MaxLength = ptr(*r.MaxLength)
	}
	if r.Minimum != nil {
		c.Minimum = ptr(*r.Minimum)
	}
	if r.Maximum != nil {
		c.Maximum = ptr(*r.Maximum)
	}
	c.Enum = slices.Clone(r.Enum)
	return &c
}

func ptr[T any](v T) *T {
	return &v
}

func (r *ValidationRules) isZero() bool {
	return r == nil || (r.MinLength == nil && r.MaxLength == nil && r.Pattern == "" &&
		r.Format == "" && r.Minimum == nil && r.Maximum == nil && len(r.Enum) == 0)
}

// Property describes one configuration property
type Property struct {
	Name        string
	Type        PropertyType
	Required    bool
	Default     interface{}
	Description string
	Validation  *ValidationRules
	// Nested is the sub-descriptor of a NESTED property
	Nested *Descriptor

	pattern *regexp.Regexp
}

// Descriptor is the immutable description of a stage type's configuration surface.
type Descriptor struct {
	id          string
	description string
	properties  []*Property
	index       map[string]*Property
}

// ID returns the stage type identifier the descriptor belongs to.
func (d *Descriptor) ID() string {
	return d.id
}

// Description returns the human readable description.
func (d *Descriptor) Description() string {
	return d.description
}

// Property returns a copy of the named property. Changing the copy, including its
// validation rules, does not affect the descriptor.
func (d *Descriptor) Property(name string) (Property, bool) {
	p, ok := d.index[name]
	if !ok {
		return Property{}, false
	}
	return p.copy(), true
}

// Properties returns copies of all properties in declaration order.
func (d *Descriptor) Properties() []Property {
	out := make([]Property, len(d.properties))
	for i, p := range d.properties {
		out[i] = p.copy()
	}
	return out
}

// copy detaches the rules. Nested descriptors are shared; they expose no mutators.
func (p *Property) copy() Property {
	c := *p
	c.Validation = p.Validation.clone()
	return c
}

// Len returns the number of declared properties.
func (d *Descriptor) Len() int {
	return len(d.properties)
}
