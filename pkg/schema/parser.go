package schema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed descriptor.schema.json
var metaSchemaJSON []byte

const metaSchemaURL = "descriptor.schema.json"

var (
	metaSchemaOnce sync.Once
	metaSchema     *jsonschema.Schema
	metaSchemaErr  error
)

func loadMetaSchema() (*jsonschema.Schema, error) {
	metaSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		if err := compiler.AddResource(metaSchemaURL, bytes.NewReader(metaSchemaJSON)); err != nil {
			metaSchemaErr = fmt.Errorf("failed to add meta schema: %w", err)
			return
		}
		metaSchema, metaSchemaErr = compiler.Compile(metaSchemaURL)
	})
	return metaSchema, metaSchemaErr
}

// declaration is the JSON form of a Descriptor
type declaration struct {
	ID          string                `json:"id"`
	Description string                `json:"description,omitempty"`
	Properties  []propertyDeclaration `json:"properties"`
}

type propertyDeclaration struct {
	Name        string                `json:"name"`
	Type        PropertyType          `json:"type"`
	Required    bool                  `json:"required,omitempty"`
	Default     interface{}           `json:"default,omitempty"`
	Description string                `json:"description,omitempty"`
	Validation  *ValidationRules      `json:"validation,omitempty"`
	Properties  []propertyDeclaration `json:"properties,omitempty"`
}

// Parser reads descriptor declarations from JSON
type Parser struct{}

// NewParser creates a new descriptor parser
func NewParser() *Parser {
	return &Parser{}
}

// Parse parses a descriptor from JSON bytes. The declaration is checked against the
// descriptor meta schema before the Builder rules are applied.
func (p *Parser) Parse(data []byte) (*Descriptor, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ParseError(fmt.Errorf("descriptor bytes cannot be empty"))
	}

	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, ParseError(fmt.Errorf("failed to parse descriptor: %w", err))
	}

	meta, err := loadMetaSchema()
	if err != nil {
		return nil, ParseError(err)
	}
	if err := meta.Validate(doc); err != nil {
		return nil, ParseError(fmt.Errorf("descriptor does not match meta schema: %s", describeMetaErrors(err)))
	}

	var decl declaration
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&decl); err != nil {
		return nil, ParseError(fmt.Errorf("failed to decode descriptor: %w", err))
	}

	return buildDeclared(decl.ID, decl.Description, decl.Properties)
}

func buildDeclared(id, description string, props []propertyDeclaration) (*Descriptor, error) {
	b := NewDescriptor(id).Describe(description)
	for _, pd := range props {
		opts := []Option{Description(pd.Description)}
		if pd.Required {
			opts = append(opts, Required())
		}
		if pd.Default != nil {
			opts = append(opts, Default(pd.Default))
		}
		if pd.Validation != nil {
			rules := *pd.Validation
			opts = append(opts, func(p *Property) { p.Validation = &rules })
		}

		switch pd.Type {
		case TypeNested:
			sub, err := buildDeclared(id+"."+pd.Name, "", pd.Properties)
			if err != nil {
				return nil, err
			}
			b.Nested(pd.Name, sub, opts...)
		case TypeEnum:
			var choices []string
			if pd.Validation != nil {
				choices = pd.Validation.Enum
			}
			b.Enum(pd.Name, choices, opts...)
		default:
			b.add(pd.Name, pd.Type, opts)
		}
	}
	return b.Build()
}

func describeMetaErrors(err error) string {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err.Error()
	}
	var msgs []string
	var walk func(*jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			loc := e.InstanceLocation
			if loc == "" {
				loc = "/"
			}
			msgs = append(msgs, fmt.Sprintf("at '%s': %s", loc, e.Message))
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	return strings.Join(msgs, "; ")
}
