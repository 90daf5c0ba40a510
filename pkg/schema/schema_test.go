package schema

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setFieldDescriptor(t *testing.T) *Descriptor {
	t.Helper()
	d, err := NewDescriptor("setfield").
		String("newField", Required(), MinLength(1)).
		String("text").
		Build()
	require.NoError(t, err)
	return d
}

func TestSetFieldScenario(t *testing.T) {
	d := setFieldDescriptor(t)

	_, err := Validate(d, map[string]interface{}{"text": "hello"})
	var cve *ConfigValidationError
	require.True(t, errors.As(err, &cve))
	assert.Equal(t, []string{"newField"}, cve.Paths())
	assert.True(t, cve.Has("newField", CodeRequired))

	cfg, err := Validate(d, map[string]interface{}{"newField": "out", "text": "hello"})
	require.NoError(t, err)
	assert.Equal(t, "out", cfg.String("newField"))
	assert.Equal(t, "hello", cfg.String("text"))
}

func mixedDescriptor(t *testing.T) *Descriptor {
	t.Helper()
	auth, err := NewDescriptor("auth").
		String("user", Required()).
		Integer("retries", Min(0), Max(5), Default(3)).
		Build()
	require.NoError(t, err)

	d, err := NewDescriptor("mixed").
		String("name", Required(), MinLength(2), MaxLength(5), Pattern(`^[a-z]+$`)).
		String("email", Format("email")).
		Integer("count", Min(1), Max(10)).
		Long("big").
		Double("ratio", Min(0), Max(1)).
		Boolean("enabled", Default(true)).
		Enum("mode", []string{"upper", "lower"}, Required()).
		Nested("auth", auth).
		Build()
	require.NoError(t, err)
	return d
}

func TestValidateCoercesDeclaredTypes(t *testing.T) {
	d := mixedDescriptor(t)
	raw := map[string]interface{}{
		"name":    "abc",
		"email":   "a@example.com",
		"count":   json.Number("4"),
		"big":     float64(1 << 40),
		"ratio":   1,
		"mode":    "upper",
		"auth":    map[string]interface{}{"user": "bob"},
		"unknown": "ignored",
	}

	cfg, err := Validate(d, raw)
	require.NoError(t, err)

	assert.Equal(t, "abc", cfg.String("name"))
	assert.Equal(t, int32(4), cfg.Int("count"))
	assert.Equal(t, int64(1<<40), cfg.Long("big"))
	assert.Equal(t, 1.0, cfg.Double("ratio"))
	assert.True(t, cfg.Bool("enabled"), "default applied")
	assert.Equal(t, "upper", cfg.String("mode"))
	assert.False(t, cfg.Has("unknown"))

	auth, ok := cfg.Nested("auth")
	require.True(t, ok)
	assert.Equal(t, "bob", auth.String("user"))
	assert.Equal(t, int32(3), auth.Int("retries"))

	assert.Equal(t, []string{"name", "email", "count", "big", "ratio", "enabled", "mode", "auth"}, cfg.Names())
}

func TestValidateIsExhaustive(t *testing.T) {
	d := mixedDescriptor(t)
	raw := map[string]interface{}{
		"name":    "A",
		"email":   "not-an-email",
		"count":   1.5,
		"big":     "12",
		"ratio":   2.0,
		"enabled": "yes",
		"mode":    "title",
		"auth":    map[string]interface{}{"retries": 9},
	}

	_, err := Validate(d, raw)
	var cve *ConfigValidationError
	require.ErrorAs(t, err, &cve)

	tests := []struct {
		path string
		code string
	}{
		{"name", CodeMinLength},
		{"name", CodePatternMismatch},
		{"email", CodeFormatMismatch},
		{"count", CodeTypeMismatch},
		{"big", CodeTypeMismatch},
		{"ratio", CodeMaxValue},
		{"enabled", CodeTypeMismatch},
		{"mode", CodeEnumMismatch},
		{"auth.user", CodeRequired},
		{"auth.retries", CodeMaxValue},
	}
	for _, tt := range tests {
		t.Run(tt.path+"/"+tt.code, func(t *testing.T) {
			assert.True(t, cve.Has(tt.path, tt.code), "errors: %v", cve.Errors)
		})
	}
	assert.Len(t, cve.Paths(), 9)
}

func TestValidateNilCountsAsMissing(t *testing.T) {
	d := mixedDescriptor(t)
	_, err := Validate(d, map[string]interface{}{"name": nil, "mode": "upper"})
	var cve *ConfigValidationError
	require.ErrorAs(t, err, &cve)
	assert.True(t, cve.Has("name", CodeRequired))
}

func TestValidateRejectsNonFiniteNumbers(t *testing.T) {
	d, err := NewDescriptor("ratio").
		Double("ratio", Min(0), Max(1)).
		Double("free").
		Build()
	require.NoError(t, err)

	for _, v := range []interface{}{math.NaN(), math.Inf(1), math.Inf(-1)} {
		cfg, err := Validate(d, map[string]interface{}{"ratio": v, "free": v})
		assert.Nil(t, cfg)
		var cve *ConfigValidationError
		require.ErrorAs(t, err, &cve)
		assert.True(t, cve.Has("ratio", CodeTypeMismatch), "%v", v)
		assert.True(t, cve.Has("free", CodeTypeMismatch), "%v", v)
	}

	cfg, err := Validate(d, map[string]interface{}{"ratio": 0.5})
	require.NoError(t, err)
	assert.Equal(t, 0.5, cfg.Double("ratio"))
}

func TestValidateIsIdempotent(t *testing.T) {
	d := setFieldDescriptor(t)
	raw := map[string]interface{}{"newField": "", "text": 1}

	_, first := Validate(d, raw)
	_, second := Validate(d, raw)
	assert.Equal(t, first, second)
	assert.Equal(t, map[string]interface{}{"newField": "", "text": 1}, raw)
}

func TestBuildRejectsBadDeclarations(t *testing.T) {
	tests := []struct {
		name string
		b    *Builder
	}{
		{"empty id", NewDescriptor("").String("a")},
		{"empty name", NewDescriptor("x").String("")},
		{"duplicate", NewDescriptor("x").String("a").Integer("a")},
		{"length on number", NewDescriptor("x").Integer("a", MinLength(1))},
		{"min on string", NewDescriptor("x").String("a", Min(1))},
		{"min above max", NewDescriptor("x").Double("a", Min(2), Max(1))},
		{"bad pattern", NewDescriptor("x").String("a", Pattern("("))},
		{"unknown format", NewDescriptor("x").String("a", Format("phone"))},
		{"empty enum", NewDescriptor("x").Enum("a", nil)},
		{"nested without descriptor", NewDescriptor("x").Nested("a", nil)},
		{"default violates rules", NewDescriptor("x").String("a", MinLength(3), Default("ab"))},
		{"default wrong type", NewDescriptor("x").Boolean("a", Default("true"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.b.Build()
			var se *SchemaError
			assert.ErrorAs(t, err, &se)
		})
	}
}

func TestDescriptorIsImmutable(t *testing.T) {
	choices := []string{"a", "b"}
	d, err := NewDescriptor("x").Enum("mode", choices).Build()
	require.NoError(t, err)
	choices[0] = "z"

	p, ok := d.Property("mode")
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, p.Validation.Enum)

	_, err = Validate(d, map[string]interface{}{"mode": "a"})
	assert.NoError(t, err)
}

func TestDescriptorCopiesDoNotLeak(t *testing.T) {
	d, err := NewDescriptor("x").
		Enum("mode", []string{"a", "b"}).
		String("name", MinLength(1), MaxLength(5)).
		Double("ratio", Min(0), Max(1)).
		Build()
	require.NoError(t, err)

	p, _ := d.Property("mode")
	p.Validation.Enum[0] = "z"
	n, _ := d.Property("name")
	*n.Validation.MinLength = 100
	*n.Validation.MaxLength = 0
	for _, prop := range d.Properties() {
		if prop.Name == "ratio" {
			*prop.Validation.Minimum = 5
			*prop.Validation.Maximum = -5
		}
	}

	_, err = Validate(d, map[string]interface{}{"mode": "a", "name": "ok", "ratio": 0.5})
	assert.NoError(t, err)

	again, _ := d.Property("mode")
	assert.Equal(t, []string{"a", "b"}, again.Validation.Enum)
}

func TestValidateJSON(t *testing.T) {
	d := mixedDescriptor(t)
	cfg, err := NewValidator().ValidateJSON(d, []byte(`{"name":"abc","mode":"lower","big":9007199254740993}`))
	require.NoError(t, err)
	assert.Equal(t, int64(9007199254740993), cfg.Long("big"))

	_, err = NewValidator().ValidateJSON(d, []byte(`{`))
	assert.Error(t, err)
}

func TestParserReadsDeclaration(t *testing.T) {
	data := []byte(`{
		"id": "parsed",
		"properties": [
			{"name": "newField", "type": "STRING", "required": true, "validation": {"minLength": 1}},
			{"name": "limit", "type": "INTEGER", "default": 10, "validation": {"minimum": 1}},
			{"name": "mode", "type": "ENUM", "validation": {"enum": ["a", "b"]}},
			{"name": "conn", "type": "NESTED", "properties": [
				{"name": "url", "type": "STRING", "required": true, "validation": {"format": "uri"}}
			]}
		]
	}`)

	d, err := NewParser().Parse(data)
	require.NoError(t, err)
	assert.Equal(t, "parsed", d.ID())
	assert.Equal(t, 4, d.Len())

	cfg, err := Validate(d, map[string]interface{}{
		"newField": "x",
		"conn":     map[string]interface{}{"url": "https://example.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, int32(10), cfg.Int("limit"))

	_, err = Validate(d, map[string]interface{}{"newField": "x", "conn": map[string]interface{}{"url": "nope"}})
	var cve *ConfigValidationError
	require.ErrorAs(t, err, &cve)
	assert.True(t, cve.Has("conn.url", CodeFormatMismatch))
}

func TestParserRejectsInvalidDeclarations(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ``},
		{"not json", `{`},
		{"missing id", `{"properties": []}`},
		{"unknown type", `{"id": "x", "properties": [{"name": "a", "type": "DATE"}]}`},
		{"unknown rule", `{"id": "x", "properties": [{"name": "a", "type": "STRING", "validation": {"minItems": 1}}]}`},
		{"nested without properties", `{"id": "x", "properties": [{"name": "a", "type": "NESTED"}]}`},
		{"rule on wrong type", `{"id": "x", "properties": [{"name": "a", "type": "BOOLEAN", "validation": {"minimum": 1}}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewParser().Parse([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestFormats(t *testing.T) {
	tests := []struct {
		format string
		value  string
		valid  bool
	}{
		{"email", "a@b.io", true},
		{"email", "Bob <a@b.io>", false},
		{"uri", "https://example.com/x", true},
		{"uri", "example.com", false},
		{"uuid", "0190b6a2-3c1e-7d4f-8a5b-6c7d8e9f0a1b", true},
		{"uuid", "xyz", false},
		{"date", "2025-01-09", true},
		{"date", "2025-13-09", false},
		{"datetime", "2025-01-09T10:30:00Z", true},
		{"datetime", "2025-01-09 10:30", false},
	}

	for _, tt := range tests {
		t.Run(tt.format+"/"+tt.value, func(t *testing.T) {
			fn, ok := GetFormatValidator(tt.format)
			require.True(t, ok)
			assert.Equal(t, tt.valid, fn(tt.value))
		})
	}
}
