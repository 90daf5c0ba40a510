// Package textcase provides a stage that changes the case of string fields using
// language specific rules.
package textcase

import (
	"context"
	"fmt"
	"iter"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/wehubfusion/Stagehand/pkg/document"
	"github.com/wehubfusion/Stagehand/pkg/host"
	"github.com/wehubfusion/Stagehand/pkg/schema"
	"github.com/wehubfusion/Stagehand/pkg/stage"
)

// ID is the stage type identifier
const ID = "textcase"

// Case modes
const (
	ModeUpper = "upper"
	ModeLower = "lower"
	ModeTitle = "title"
	ModeFold  = "fold"
)

// Descriptor declares the stage configuration.
var Descriptor = schema.NewDescriptor(ID).
	Describe("Changes the case of a string field").
	String("field", schema.Required(), schema.MinLength(1)).
	Enum("mode", []string{ModeUpper, ModeLower, ModeTitle, ModeFold}, schema.Required()).
	String("language", schema.Default("und"),
		schema.Description("BCP 47 language tag selecting the casing rules")).
	String("target", schema.Description("Field to write; defaults to field")).
	Boolean("ignoreMissing", schema.Default(true)).
	MustBuild()

// Type is the registered stage type.
var Type = stage.Type{
	ID:          ID,
	Description: "Changes the case of a string field",
	Descriptor:  Descriptor,
	New:         func() stage.Stage { return &Stage{} },
}

// Stage applies a case mapping. A cases.Caser keeps state between calls, so a new
// one is built for every document.
type Stage struct {
	field         string
	target        string
	mode          string
	tag           language.Tag
	ignoreMissing bool
}

// Init implements stage.Stage.
func (s *Stage) Init(cfg *schema.Config, _ host.Handle) error {
	tag, err := language.Parse(cfg.String("language"))
	if err != nil {
		return fmt.Errorf("invalid language %q: %w", cfg.String("language"), err)
	}
	s.tag = tag
	s.field = cfg.String("field")
	s.target = cfg.String("target")
	if s.target == "" {
		s.target = s.field
	}
	s.mode = cfg.String("mode")
	s.ignoreMissing = cfg.Bool("ignoreMissing")
	return nil
}

func (s *Stage) caser() cases.Caser {
	switch s.mode {
	case ModeUpper:
		return cases.Upper(s.tag)
	case ModeLower:
		return cases.Lower(s.tag)
	case ModeTitle:
		return cases.Title(s.tag)
	}
	return cases.Fold()
}

// Process implements stage.Stage.
func (s *Stage) Process(ctx context.Context, call *stage.Call, doc *document.Document) iter.Seq2[*document.Document, error] {
	return stage.Single(s.apply)(ctx, call, doc)
}

func (s *Stage) apply(_ context.Context, _ *stage.Call, doc *document.Document) (*document.Document, error) {
	f, ok := doc.Field(s.field)
	if !ok {
		if s.ignoreMissing {
			return doc, nil
		}
		return nil, fmt.Errorf("field %q is missing", s.field)
	}
	if f.Type() != document.TypeString {
		return nil, fmt.Errorf("field %q has type %s, want %s", s.field, f.Type(), document.TypeString)
	}

	c := s.caser()
	values := make([]interface{}, 0, f.Len())
	for _, v := range f.Values() {
		str, _ := v.AsString()
		values = append(values, c.String(str))
	}
	if err := doc.Set(s.target, document.TypeString, values...); err != nil {
		return nil, err
	}
	return doc, nil
}
