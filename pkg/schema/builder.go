package schema

import (
	"errors"
	"fmt"
	"regexp"
)

// Option configures a property declared on a Builder.
type Option func(*Property)

// Required marks the property as mandatory.
func Required() Option {
	return func(p *Property) { p.Required = true }
}

// Default sets the value used when an optional property is absent.
func Default(v interface{}) Option {
	return func(p *Property) { p.Default = v }
}

// Description documents the property.
func Description(s string) Option {
	return func(p *Property) { p.Description = s }
}

// MinLength sets the minimum string length in characters.
func MinLength(n int) Option {
	return func(p *Property) { rules(p).MinLength = &n }
}

// MaxLength sets the maximum string length in characters.
func MaxLength(n int) Option {
	return func(p *Property) { rules(p).MaxLength = &n }
}

// Pattern requires string values to match a regular expression.
func Pattern(expr string) Option {
	return func(p *Property) { rules(p).Pattern = expr }
}

// Format requires string values to satisfy a named format (email, uri, uuid, date, datetime).
func Format(name string) Option {
	return func(p *Property) { rules(p).Format = name }
}

// Min sets the inclusive numeric lower bound.
func Min(v float64) Option {
	return func(p *Property) { rules(p).Minimum = &v }
}

// Max sets the inclusive numeric upper bound.
func Max(v float64) Option {
	return func(p *Property) { rules(p).Maximum = &v }
}

func rules(p *Property) *ValidationRules {
	if p.Validation == nil {
		p.Validation = &ValidationRules{}
	}
	return p.Validation
}

// Builder declares a Descriptor property by property.
//
//	d, err := schema.NewDescriptor("setfield").
//		String("newField", schema.Required(), schema.MinLength(1)).
//		String("text").
//		Build()
type Builder struct {
	id          string
	description string
	properties  []*Property
}

// NewDescriptor starts a descriptor for the given stage type.
func NewDescriptor(id string) *Builder {
	return &Builder{id: id}
}

// Describe sets the descriptor description.
func (b *Builder) Describe(s string) *Builder {
	b.description = s
	return b
}

func (b *Builder) add(name string, t PropertyType, opts []Option) *Builder {
	p := &Property{Name: name, Type: t}
	for _, opt := range opts {
		opt(p)
	}
	b.properties = append(b.properties, p)
	return b
}

// String declares a string property.
func (b *Builder) String(name string, opts ...Option) *Builder {
	return b.add(name, TypeString, opts)
}

// Integer declares a 32-bit integer property.
func (b *Builder) Integer(name string, opts ...Option) *Builder {
	return b.add(name, TypeInteger, opts)
}

// Long declares a 64-bit integer property.
func (b *Builder) Long(name string, opts ...Option) *Builder {
	return b.add(name, TypeLong, opts)
}

// Double declares a floating point property.
func (b *Builder) Double(name string, opts ...Option) *Builder {
	return b.add(name, TypeDouble, opts)
}

// Boolean declares a boolean property.
func (b *Builder) Boolean(name string, opts ...Option) *Builder {
	return b.add(name, TypeBoolean, opts)
}

// Enum declares a property restricted to a closed set of literal values.
func (b *Builder) Enum(name string, choices []string, opts ...Option) *Builder {
	values := append([]string(nil), choices...)
	return b.add(name, TypeEnum, append([]Option{func(p *Property) { rules(p).Enum = values }}, opts...))
}

// Nested declares a structured property validated against a sub-descriptor.
func (b *Builder) Nested(name string, sub *Descriptor, opts ...Option) *Builder {
	return b.add(name, TypeNested, append([]Option{func(p *Property) { p.Nested = sub }}, opts...))
}

// Build checks the declaration and returns the immutable descriptor.
func (b *Builder) Build() (*Descriptor, error) {
	if b.id == "" {
		return nil, ParseError(errors.New("descriptor id is required"))
	}

	d := &Descriptor{
		id:          b.id,
		description: b.description,
		properties:  make([]*Property, 0, len(b.properties)),
		index:       make(map[string]*Property, len(b.properties)),
	}
	for _, p := range b.properties {
		if err := checkProperty(p); err != nil {
			return nil, ParseError(err)
		}
		if _, dup := d.index[p.Name]; dup {
			return nil, ParseError(fmt.Errorf("property '%s' declared twice", p.Name))
		}
		cp := *p
		if cp.Validation != nil {
			r := *cp.Validation
			r.Enum = append([]string(nil), r.Enum...)
			cp.Validation = &r
		}
		d.properties = append(d.properties, &cp)
		d.index[cp.Name] = &cp
	}

	// Defaults must satisfy their own property.
	v := NewValidator()
	for _, p := range d.properties {
		if p.Default == nil {
			continue
		}
		if _, errs := v.validateProperty(p.Default, p, p.Name); len(errs) > 0 {
			return nil, ParseError(fmt.Errorf("property '%s': default value invalid: %s", p.Name, errs[0].Message))
		}
	}
	return d, nil
}

// MustBuild is like Build but panics on an invalid declaration. Descriptors are
// package-level values, so a bad declaration is a programming error.
func (b *Builder) MustBuild() *Descriptor {
	d, err := b.Build()
	if err != nil {
		panic(err)
	}
	return d
}

// checkProperty ensures rules are appropriate for the property type
func checkProperty(p *Property) error {
	if p.Name == "" {
		return errors.New("property name is required")
	}
	if !IsValidType(p.Type) {
		return fmt.Errorf("property '%s' has invalid type: %s", p.Name, p.Type)
	}
	if p.Type == TypeNested && p.Nested == nil {
		return fmt.Errorf("property '%s': NESTED requires a sub-descriptor", p.Name)
	}
	if p.Type != TypeNested && p.Nested != nil {
		return fmt.Errorf("property '%s': sub-descriptor used on non-nested type %s", p.Name, p.Type)
	}

	r := p.Validation
	if r.isZero() {
		if p.Type == TypeEnum {
			return fmt.Errorf("property '%s': ENUM requires at least one choice", p.Name)
		}
		return nil
	}

	if p.Type != TypeString {
		if r.MinLength != nil || r.MaxLength != nil || r.Pattern != "" || r.Format != "" {
			return fmt.Errorf("property '%s': string validation rules used on non-string type %s", p.Name, p.Type)
		}
	}
	if !isNumeric(p.Type) && (r.Minimum != nil || r.Maximum != nil) {
		return fmt.Errorf("property '%s': number validation rules used on non-number type %s", p.Name, p.Type)
	}
	if p.Type != TypeEnum && len(r.Enum) > 0 {
		return fmt.Errorf("property '%s': enum choices used on non-enum type %s", p.Name, p.Type)
	}
	if p.Type == TypeEnum && len(r.Enum) == 0 {
		return fmt.Errorf("property '%s': ENUM requires at least one choice", p.Name)
	}

	if r.MinLength != nil && *r.MinLength < 0 {
		return fmt.Errorf("property '%s': minLength cannot be negative", p.Name)
	}
	if r.MinLength != nil && r.MaxLength != nil && *r.MinLength > *r.MaxLength {
		return fmt.Errorf("property '%s': minLength %d exceeds maxLength %d", p.Name, *r.MinLength, *r.MaxLength)
	}
	if r.Minimum != nil && r.Maximum != nil && *r.Minimum > *r.Maximum {
		return fmt.Errorf("property '%s': minimum %v exceeds maximum %v", p.Name, *r.Minimum, *r.Maximum)
	}
	if r.Pattern != "" {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return fmt.Errorf("property '%s': invalid pattern: %w", p.Name, err)
		}
		p.pattern = re
	}
	if r.Format != "" {
		if _, ok := GetFormatValidator(r.Format); !ok {
			return fmt.Errorf("property '%s': unknown format %q", p.Name, r.Format)
		}
	}
	return nil
}
