// Package setfield provides a stage that writes a configured text into a named field.
package setfield

import (
	"context"
	"iter"

	"github.com/wehubfusion/Stagehand/pkg/document"
	"github.com/wehubfusion/Stagehand/pkg/host"
	"github.com/wehubfusion/Stagehand/pkg/schema"
	"github.com/wehubfusion/Stagehand/pkg/stage"
)

// ID is the stage type identifier
const ID = "setfield"

// Descriptor declares the stage configuration.
var Descriptor = schema.NewDescriptor(ID).
	Describe("Sets a field to a fixed text value").
	String("newField", schema.Required(), schema.MinLength(1),
		schema.Description("Name of the field to write")).
	String("text",
		schema.Description("Value written to the field; the field is left empty when absent")).
	Boolean("overwrite", schema.Default(true),
		schema.Description("Replace an existing field; when false, existing fields are kept")).
	MustBuild()

// Type is the registered stage type.
var Type = stage.Type{
	ID:          ID,
	Description: "Sets a field to a fixed text value",
	Descriptor:  Descriptor,
	New:         func() stage.Stage { return &Stage{} },
}

// Stage writes text into newField. Its fields are written once in Init and only
// read afterwards.
type Stage struct {
	field     string
	text      string
	hasText   bool
	overwrite bool
}

// Init implements stage.Stage.
func (s *Stage) Init(cfg *schema.Config, _ host.Handle) error {
	s.field = cfg.String("newField")
	s.text = cfg.String("text")
	s.hasText = cfg.Has("text")
	s.overwrite = cfg.Bool("overwrite")
	return nil
}

// Process implements stage.Stage.
func (s *Stage) Process(ctx context.Context, call *stage.Call, doc *document.Document) iter.Seq2[*document.Document, error] {
	return stage.Single(s.apply)(ctx, call, doc)
}

func (s *Stage) apply(_ context.Context, _ *stage.Call, doc *document.Document) (*document.Document, error) {
	if !s.overwrite && doc.Has(s.field) {
		return doc, nil
	}
	var values []interface{}
	if s.hasText {
		values = append(values, s.text)
	}
	if err := doc.Set(s.field, document.TypeString, values...); err != nil {
		return nil, err
	}
	return doc, nil
}
