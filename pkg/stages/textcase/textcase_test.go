package textcase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wehubfusion/Stagehand/pkg/document"
	"github.com/wehubfusion/Stagehand/pkg/stage"
)

func TestTextCase(t *testing.T) {
	tests := []struct {
		name   string
		config map[string]interface{}
		input  []interface{}
		want   []string
	}{
		{"upper", map[string]interface{}{"mode": "upper"}, []interface{}{"hello", "World"}, []string{"HELLO", "WORLD"}},
		{"lower", map[string]interface{}{"mode": "lower"}, []interface{}{"HeLLo"}, []string{"hello"}},
		{"title", map[string]interface{}{"mode": "title"}, []interface{}{"hello world"}, []string{"Hello World"}},
		{"turkish upper", map[string]interface{}{"mode": "upper", "language": "tr"}, []interface{}{"istanbul"}, []string{"İSTANBUL"}},
		{"fold", map[string]interface{}{"mode": "fold"}, []interface{}{"HeLLo"}, []string{"hello"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.config["field"] = "name"
			inst, err := stage.NewInstance(Type, tt.config)
			require.NoError(t, err)
			require.NoError(t, inst.Init(nil))

			doc := document.MustNew("d")
			require.NoError(t, doc.Set("name", document.TypeString, tt.input...))

			out, err := inst.ProcessAll(context.Background(), nil, doc)
			require.NoError(t, err)
			require.Len(t, out, 1)
			f, _ := out[0].Field("name")
			assert.Equal(t, tt.want, f.Strings())
		})
	}
}

func TestTextCaseTargetAndErrors(t *testing.T) {
	inst, err := stage.NewInstance(Type, map[string]interface{}{
		"field": "name", "mode": "upper", "target": "shout", "ignoreMissing": false,
	})
	require.NoError(t, err)
	require.NoError(t, inst.Init(nil))

	doc := document.MustNew("d")
	require.NoError(t, doc.Set("name", document.TypeString, "hey"))
	out, err := inst.ProcessAll(context.Background(), nil, doc)
	require.NoError(t, err)
	name, _ := out[0].FirstString("name")
	shout, _ := out[0].FirstString("shout")
	assert.Equal(t, "hey", name)
	assert.Equal(t, "HEY", shout)

	_, err = inst.ProcessAll(context.Background(), nil, document.MustNew("missing"))
	assert.Error(t, err)

	wrongType := document.MustNew("n")
	require.NoError(t, wrongType.Set("name", document.TypeLong, 1))
	_, err = inst.ProcessAll(context.Background(), nil, wrongType)
	assert.Error(t, err)
	assert.Equal(t, stage.Ready, inst.State())
}

func TestTextCaseRejectsBadLanguage(t *testing.T) {
	_, err := stage.NewInstance(Type, map[string]interface{}{"field": "f", "mode": "shout"})
	assert.Error(t, err)

	inst, err := stage.NewInstance(Type, map[string]interface{}{"field": "f", "mode": "upper", "language": "not a tag!"})
	require.NoError(t, err)
	var initErr *stage.InitializationError
	assert.ErrorAs(t, inst.Init(nil), &initErr)
	assert.Equal(t, stage.InitFailed, inst.State())
}
