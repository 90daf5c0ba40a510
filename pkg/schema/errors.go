package schema

import (
	"fmt"
	"strings"
)

// Validation error codes
const (
	CodeRequired        = "REQUIRED"
	CodeTypeMismatch    = "TYPE_MISMATCH"
	CodeMinLength       = "MIN_LENGTH"
	CodeMaxLength       = "MAX_LENGTH"
	CodePatternMismatch = "PATTERN_MISMATCH"
	CodeFormatMismatch  = "FORMAT_MISMATCH"
	CodeMinValue        = "MIN_VALUE"
	CodeMaxValue        = "MAX_VALUE"
	CodeEnumMismatch    = "ENUM_MISMATCH"
)

// ValidationError represents a single violated property
type ValidationError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (e ValidationError) String() string {
	return fmt.Sprintf("%s: %s (%s)", e.Path, e.Message, e.Code)
}

// ConfigValidationError aggregates every violation found while validating a raw
// configuration against a Descriptor.
type ConfigValidationError struct {
	DescriptorID string
	Errors       []ValidationError
}

// Error implements the error interface
func (e *ConfigValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, ve := range e.Errors {
		parts[i] = ve.String()
	}
	return fmt.Sprintf("configuration for %q failed validation with %d errors: %s",
		e.DescriptorID, len(e.Errors), strings.Join(parts, "; "))
}

// Paths returns the distinct violated property paths in report order.
func (e *ConfigValidationError) Paths() []string {
	seen := make(map[string]bool, len(e.Errors))
	var paths []string
	for _, ve := range e.Errors {
		if !seen[ve.Path] {
			seen[ve.Path] = true
			paths = append(paths, ve.Path)
		}
	}
	return paths
}

// Has reports whether a violation with the given path and code was recorded.
// An empty code matches any code.
func (e *ConfigValidationError) Has(path, code string) bool {
	for _, ve := range e.Errors {
		if ve.Path == path && (code == "" || ve.Code == code) {
			return true
		}
	}
	return false
}

// SchemaError represents a descriptor declaration error
type SchemaError struct {
	Message string
	Code    string
	Err     error
}

// Error implements the error interface
func (e *SchemaError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *SchemaError) Unwrap() error {
	return e.Err
}

// ParseError creates a descriptor declaration error
func ParseError(err error) *SchemaError {
	return &SchemaError{
		Message: "Descriptor declaration invalid",
		Code:    "SCHEMA_PARSE_ERROR",
		Err:     err,
	}
}
