// Package stages bundles the built-in stage types.
package stages

import (
	"github.com/wehubfusion/Stagehand/pkg/stage"
	"github.com/wehubfusion/Stagehand/pkg/stages/blob"
	"github.com/wehubfusion/Stagehand/pkg/stages/hostcall"
	"github.com/wehubfusion/Stagehand/pkg/stages/jsonextract"
	"github.com/wehubfusion/Stagehand/pkg/stages/script"
	"github.com/wehubfusion/Stagehand/pkg/stages/setfield"
	"github.com/wehubfusion/Stagehand/pkg/stages/split"
	"github.com/wehubfusion/Stagehand/pkg/stages/textcase"
)

// Builtin returns every built-in stage type.
func Builtin() []stage.Type {
	return []stage.Type{
		setfield.Type,
		textcase.Type,
		jsonextract.Type,
		script.Type,
		split.Type,
		blob.FetchType,
		blob.PutType,
		hostcall.Type,
	}
}

// Register adds the built-in stage types to r.
func Register(r *stage.Registry) error {
	for _, t := range Builtin() {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry returns a registry holding the built-in stage types.
func NewRegistry() *stage.Registry {
	r := stage.NewRegistry()
	if err := Register(r); err != nil {
		panic(err)
	}
	return r
}
