package setfield

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wehubfusion/Stagehand/pkg/document"
	"github.com/wehubfusion/Stagehand/pkg/schema"
	"github.com/wehubfusion/Stagehand/pkg/stage"
)

func TestScenario(t *testing.T) {
	_, err := stage.NewInstance(Type, map[string]interface{}{"text": "hello"})
	var cve *schema.ConfigValidationError
	require.ErrorAs(t, err, &cve)
	assert.Equal(t, []string{"newField"}, cve.Paths())
	assert.True(t, cve.Has("newField", schema.CodeRequired))

	inst, err := stage.NewInstance(Type, map[string]interface{}{"newField": "out", "text": "hello"})
	require.NoError(t, err)
	require.NoError(t, inst.Init(nil))

	outputs, err := inst.ProcessAll(context.Background(), nil, document.MustNew("doc1"))
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	assert.Equal(t, "doc1", outputs[0].ID())

	out, ok := outputs[0].Field("out")
	require.True(t, ok)
	assert.Equal(t, document.TypeString, out.Type())
	assert.Equal(t, []string{"hello"}, out.Strings())
}

func TestSetField(t *testing.T) {
	tests := []struct {
		name     string
		config   map[string]interface{}
		existing []interface{}
		want     []string
	}{
		{"overwrite existing", map[string]interface{}{"newField": "f", "text": "new"}, []interface{}{"old"}, []string{"new"}},
		{"keep existing", map[string]interface{}{"newField": "f", "text": "new", "overwrite": false}, []interface{}{"old"}, []string{"old"}},
		{"absent text leaves empty field", map[string]interface{}{"newField": "f"}, nil, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst, err := stage.NewInstance(Type, tt.config)
			require.NoError(t, err)
			require.NoError(t, inst.Init(nil))

			doc := document.MustNew("d")
			if tt.existing != nil {
				require.NoError(t, doc.Set("f", document.TypeString, tt.existing...))
			}
			outputs, err := inst.ProcessAll(context.Background(), nil, doc)
			require.NoError(t, err)
			require.Len(t, outputs, 1)

			f, ok := outputs[0].Field("f")
			require.True(t, ok)
			assert.Equal(t, tt.want, f.Strings())
		})
	}
}
