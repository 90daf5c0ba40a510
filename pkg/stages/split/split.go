// Package split provides a fan-out stage that turns one document into one document
// per item of a delimited string field.
package split

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/wehubfusion/Stagehand/pkg/document"
	"github.com/wehubfusion/Stagehand/pkg/host"
	"github.com/wehubfusion/Stagehand/pkg/schema"
	"github.com/wehubfusion/Stagehand/pkg/stage"
)

// ID is the stage type identifier
const ID = "split"

// Descriptor declares the stage configuration.
var Descriptor = schema.NewDescriptor(ID).
	Describe("Emits one document per item of a delimited field").
	String("field", schema.Required(), schema.MinLength(1)).
	String("separator", schema.Default(","), schema.MinLength(1)).
	Boolean("trim", schema.Default(true)).
	Boolean("skipEmpty", schema.Default(true)).
	String("parentField", schema.Default("parent_id"),
		schema.Description("Field receiving the input identity; empty disables")).
	Integer("maxItems", schema.Default(1000), schema.Min(1)).
	MustBuild()

// Type is the registered stage type.
var Type = stage.Type{
	ID:          ID,
	Description: "Emits one document per item of a delimited field",
	Descriptor:  Descriptor,
	New:         func() stage.Stage { return &Stage{} },
}

// Stage splits a STRING field. Every value of the field is split, so a
// multi-valued field fans out over all of its items.
type Stage struct {
	field       string
	separator   string
	trim        bool
	skipEmpty   bool
	parentField string
	maxItems    int
}

// Init implements stage.Stage.
func (s *Stage) Init(cfg *schema.Config, _ host.Handle) error {
	s.field = cfg.String("field")
	s.separator = cfg.String("separator")
	s.trim = cfg.Bool("trim")
	s.skipEmpty = cfg.Bool("skipEmpty")
	s.parentField = cfg.String("parentField")
	s.maxItems = int(cfg.Int("maxItems"))
	if s.parentField == s.field {
		return fmt.Errorf("parentField must differ from field %q", s.field)
	}
	return nil
}

// Process implements stage.Stage.
func (s *Stage) Process(ctx context.Context, call *stage.Call, doc *document.Document) iter.Seq2[*document.Document, error] {
	return stage.Multi(s.split)(ctx, call, doc)
}

func (s *Stage) items(doc *document.Document) ([]string, error) {
	f, ok := doc.Field(s.field)
	if !ok {
		return nil, nil
	}
	if f.Type() != document.TypeString {
		return nil, fmt.Errorf("field %q has type %s, want %s", s.field, f.Type(), document.TypeString)
	}

	var items []string
	for _, v := range f.Strings() {
		for _, item := range strings.Split(v, s.separator) {
			if s.trim {
				item = strings.TrimSpace(item)
			}
			if item == "" && s.skipEmpty {
				continue
			}
			items = append(items, item)
		}
	}
	if len(items) > s.maxItems {
		return nil, fmt.Errorf("field %q has %d items, limit is %d", s.field, len(items), s.maxItems)
	}
	return items, nil
}

func (s *Stage) split(_ context.Context, call *stage.Call, doc *document.Document, emit func(*document.Document)) error {
	items, err := s.items(doc)
	if err != nil {
		return err
	}

	parent := doc.ID()
	for _, item := range items {
		out := doc.Copy()
		if err := out.SetID(call.Documents.New().ID()); err != nil {
			return err
		}
		if err := out.Set(s.field, document.TypeString, item); err != nil {
			return err
		}
		if s.parentField != "" {
			if err := out.Set(s.parentField, document.TypeString, parent); err != nil {
				return err
			}
		}
		emit(out)
	}
	return nil
}
