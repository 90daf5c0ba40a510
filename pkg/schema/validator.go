package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/wehubfusion/Stagehand/pkg/document"
)

// Validator validates raw configurations against descriptors. It holds no state,
// so a single Validator may be shared between goroutines.
type Validator struct{}

// NewValidator creates a new schema validator
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks raw against d using a default Validator.
func Validate(d *Descriptor, raw map[string]interface{}) (*Config, error) {
	return NewValidator().Validate(d, raw)
}

// Validate checks every declared property of d against raw and returns the coerced
// configuration. All violations are collected; the returned error is a
// *ConfigValidationError. Properties in raw that d does not declare are ignored.
func (v *Validator) Validate(d *Descriptor, raw map[string]interface{}) (*Config, error) {
	if d == nil {
		return nil, ParseError(fmt.Errorf("descriptor is nil"))
	}
	cfg, errs := v.validateObject(raw, d, "")
	if len(errs) > 0 {
		return nil, &ConfigValidationError{DescriptorID: d.id, Errors: errs}
	}
	return cfg, nil
}

// ValidateJSON decodes a JSON object and validates it. Numbers are decoded as
// json.Number so integer properties keep their precision.
func (v *Validator) ValidateJSON(d *Descriptor, data []byte) (*Config, error) {
	raw := map[string]interface{}{}
	if len(bytes.TrimSpace(data)) > 0 {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("failed to decode configuration: %w", err)
		}
	}
	return v.Validate(d, raw)
}

func joinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}

// validateObject validates every declared property, in declaration order
func (v *Validator) validateObject(raw map[string]interface{}, d *Descriptor, path string) (*Config, []ValidationError) {
	var errors []ValidationError
	values := make(map[string]interface{}, len(d.properties))

	for _, p := range d.properties {
		propPath := joinPath(path, p.Name)
		value, exists := raw[p.Name]
		if !exists || value == nil {
			if p.Required {
				errors = append(errors, ValidationError{
					Path:    propPath,
					Message: "required property missing",
					Code:    CodeRequired,
				})
				continue
			}
			if p.Default == nil {
				continue
			}
			value = p.Default
		}

		coerced, errs := v.validateProperty(value, p, propPath)
		if len(errs) > 0 {
			errors = append(errors, errs...)
			continue
		}
		values[p.Name] = coerced
	}

	if len(errors) > 0 {
		return nil, errors
	}
	return newConfig(d, values), nil
}

// validateProperty validates a present value and returns it coerced to the
// property's Go representation
func (v *Validator) validateProperty(value interface{}, p *Property, path string) (interface{}, []ValidationError) {
	mismatch := func(expected string) []ValidationError {
		return []ValidationError{{
			Path:    path,
			Message: fmt.Sprintf("expected %s, got %T", expected, value),
			Code:    CodeTypeMismatch,
		}}
	}

	switch p.Type {
	case TypeString:
		str, ok := value.(string)
		if !ok {
			return nil, mismatch("string")
		}
		return str, v.validateString(str, p, path)

	case TypeEnum:
		str, ok := value.(string)
		if !ok {
			return nil, mismatch("string")
		}
		for _, allowed := range p.Validation.Enum {
			if str == allowed {
				return str, nil
			}
		}
		return nil, []ValidationError{{
			Path:    path,
			Message: fmt.Sprintf("value '%s' not in allowed values %v", str, p.Validation.Enum),
			Code:    CodeEnumMismatch,
		}}

	case TypeInteger, TypeLong, TypeDouble:
		if !isNumberKind(value) {
			return nil, mismatch("number")
		}
		tag := map[PropertyType]document.TypeTag{
			TypeInteger: document.TypeInteger,
			TypeLong:    document.TypeLong,
			TypeDouble:  document.TypeDouble,
		}[p.Type]
		num, err := document.NewValue(tag, value)
		if err != nil {
			return nil, []ValidationError{{
				Path:    path,
				Message: fmt.Sprintf("value %v is not a valid %s: %v", value, p.Type, err),
				Code:    CodeTypeMismatch,
			}}
		}
		f, _ := document.NewValue(document.TypeDouble, num)
		asFloat, _ := f.AsDouble()
		return num.Interface(), v.validateNumber(asFloat, p.Validation, path)

	case TypeBoolean:
		b, ok := value.(bool)
		if !ok {
			return nil, mismatch("boolean")
		}
		return b, nil

	case TypeNested:
		var obj map[string]interface{}
		switch n := value.(type) {
		case map[string]interface{}:
			obj = n
		case *Config:
			obj = n.Map()
		default:
			return nil, mismatch("object")
		}
		cfg, errs := v.validateObject(obj, p.Nested, path)
		if len(errs) > 0 {
			return nil, errs
		}
		return cfg, nil
	}

	return nil, mismatch(string(p.Type))
}

func isNumberKind(value interface{}) bool {
	switch value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64,
		float32, float64, json.Number:
		return true
	}
	return false
}

// validateString validates string-specific rules
func (v *Validator) validateString(value string, p *Property, path string) []ValidationError {
	var errors []ValidationError
	rules := p.Validation
	if rules == nil {
		return errors
	}

	length := utf8.RuneCountInString(value)
	if rules.MinLength != nil && length < *rules.MinLength {
		errors = append(errors, ValidationError{
			Path:    path,
			Message: fmt.Sprintf("length %d is less than minimum %d", length, *rules.MinLength),
			Code:    CodeMinLength,
		})
	}
	if rules.MaxLength != nil && length > *rules.MaxLength {
		errors = append(errors, ValidationError{
			Path:    path,
			Message: fmt.Sprintf("length %d exceeds maximum %d", length, *rules.MaxLength),
			Code:    CodeMaxLength,
		})
	}

	if p.pattern != nil && !p.pattern.MatchString(value) {
		errors = append(errors, ValidationError{
			Path:    path,
			Message: fmt.Sprintf("value does not match pattern '%s'", rules.Pattern),
			Code:    CodePatternMismatch,
		})
	}

	if rules.Format != "" {
		if validator, exists := GetFormatValidator(rules.Format); !exists || !validator(value) {
			errors = append(errors, ValidationError{
				Path:    path,
				Message: fmt.Sprintf("value does not match format '%s'", rules.Format),
				Code:    CodeFormatMismatch,
			})
		}
	}

	return errors
}

// validateNumber validates number-specific rules
func (v *Validator) validateNumber(value float64, rules *ValidationRules, path string) []ValidationError {
	var errors []ValidationError
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return append(errors, ValidationError{
			Path:    path,
			Message: fmt.Sprintf("value %v is not a finite number", value),
			Code:    CodeTypeMismatch,
		})
	}
	if rules == nil {
		return errors
	}

	if rules.Minimum != nil && value < *rules.Minimum {
		errors = append(errors, ValidationError{
			Path:    path,
			Message: fmt.Sprintf("value %v is less than minimum %v", value, *rules.Minimum),
			Code:    CodeMinValue,
		})
	}
	if rules.Maximum != nil && value > *rules.Maximum {
		errors = append(errors, ValidationError{
			Path:    path,
			Message: fmt.Sprintf("value %v exceeds maximum %v", value, *rules.Maximum),
			Code:    CodeMaxValue,
		})
	}

	return errors
}
