// Package jsonextract provides a stage that reads values out of a JSON encoded field
// into a typed document field.
package jsonextract

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/wehubfusion/Stagehand/pkg/document"
	"github.com/wehubfusion/Stagehand/pkg/host"
	"github.com/wehubfusion/Stagehand/pkg/schema"
	"github.com/wehubfusion/Stagehand/pkg/stage"
)

// ID is the stage type identifier
const ID = "jsonextract"

// Errors returned while processing
var (
	ErrSourceMissing = errors.New("source field is missing")
	ErrInvalidJSON   = errors.New("source field is not valid JSON")
	ErrPathNotFound  = errors.New("path not found")
)

// Descriptor declares the stage configuration.
var Descriptor = schema.NewDescriptor(ID).
	Describe("Extracts a value from a JSON field").
	String("source", schema.Required(), schema.MinLength(1),
		schema.Description("Field holding a JSON document")).
	String("path", schema.Required(), schema.MinLength(1),
		schema.Description("gjson path of the value to extract")).
	String("target", schema.Required(), schema.MinLength(1),
		schema.Description("Field receiving the extracted values")).
	Enum("type", []string{
		string(document.TypeString), string(document.TypeLong),
		string(document.TypeDouble), string(document.TypeBoolean),
	}, schema.Default(string(document.TypeString))).
	Boolean("required", schema.Default(false),
		schema.Description("Drop the document when the path does not resolve")).
	String("removePath",
		schema.Description("sjson path deleted from the source JSON after extraction")).
	MustBuild()

// Type is the registered stage type.
var Type = stage.Type{
	ID:          ID,
	Description: "Extracts a value from a JSON field",
	Descriptor:  Descriptor,
	New:         func() stage.Stage { return &Stage{} },
}

// Stage extracts JSON values into a document field.
type Stage struct {
	source     string
	path       string
	target     string
	tag        document.TypeTag
	required   bool
	removePath string
}

// Init implements stage.Stage.
func (s *Stage) Init(cfg *schema.Config, _ host.Handle) error {
	s.source = cfg.String("source")
	s.path = cfg.String("path")
	s.target = cfg.String("target")
	s.required = cfg.Bool("required")
	s.removePath = cfg.String("removePath")

	tag, err := document.ParseTypeTag(cfg.String("type"))
	if err != nil {
		return err
	}
	s.tag = tag
	return nil
}

// Process implements stage.Stage.
func (s *Stage) Process(ctx context.Context, call *stage.Call, doc *document.Document) iter.Seq2[*document.Document, error] {
	return stage.Single(s.apply)(ctx, call, doc)
}

func (s *Stage) apply(_ context.Context, _ *stage.Call, doc *document.Document) (*document.Document, error) {
	raw, ok := doc.FirstString(s.source)
	if !ok {
		if s.required {
			return nil, fmt.Errorf("%w: %s", ErrSourceMissing, s.source)
		}
		return doc, nil
	}
	if !gjson.Valid(raw) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidJSON, s.source)
	}

	result := gjson.Get(raw, s.path)
	if !result.Exists() {
		if s.required {
			return nil, fmt.Errorf("%w: %s", ErrPathNotFound, s.path)
		}
		return doc, nil
	}

	if err := doc.Set(s.target, s.tag, s.convert(result)...); err != nil {
		return nil, err
	}

	if s.removePath != "" {
		updated, err := sjson.Delete(raw, s.removePath)
		if err != nil {
			return nil, fmt.Errorf("failed to remove %s: %w", s.removePath, err)
		}
		if err := doc.Set(s.source, document.TypeString, updated); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// convert flattens an array result into one value per element
func (s *Stage) convert(result gjson.Result) []interface{} {
	items := []gjson.Result{result}
	if result.IsArray() {
		items = result.Array()
	}

	values := make([]interface{}, 0, len(items))
	for _, item := range items {
		switch {
		case item.Type == gjson.Null:
			continue
		case s.tag == document.TypeString:
			if item.IsObject() || item.IsArray() {
				values = append(values, item.Raw)
			} else {
				values = append(values, item.String())
			}
		case item.Type == gjson.Number && s.tag == document.TypeLong:
			values = append(values, item.Raw)
		default:
			values = append(values, item.Value())
		}
	}
	return values
}
