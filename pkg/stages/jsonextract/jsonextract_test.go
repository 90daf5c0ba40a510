package jsonextract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wehubfusion/Stagehand/pkg/document"
	"github.com/wehubfusion/Stagehand/pkg/stage"
)

const payload = `{"user":{"name":"ada","age":36,"admin":true},"tags":["a","b"],"scores":[1.5,2],"meta":{"k":1}}`

func newInstance(t *testing.T, config map[string]interface{}) *stage.Instance {
	t.Helper()
	config["source"] = "body"
	inst, err := stage.NewInstance(Type, config)
	require.NoError(t, err)
	require.NoError(t, inst.Init(nil))
	return inst
}

func docWithBody(t *testing.T, body string) *document.Document {
	t.Helper()
	doc := document.MustNew("d")
	require.NoError(t, doc.Set("body", document.TypeString, body))
	return doc
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		typ      string
		wantType document.TypeTag
		want     []string
	}{
		{"string", "user.name", "STRING", document.TypeString, []string{"ada"}},
		{"long", "user.age", "LONG", document.TypeLong, []string{"36"}},
		{"boolean", "user.admin", "BOOLEAN", document.TypeBoolean, []string{"true"}},
		{"array", "tags", "STRING", document.TypeString, []string{"a", "b"}},
		{"doubles", "scores", "DOUBLE", document.TypeDouble, []string{"1.5", "2"}},
		{"object as raw json", "meta", "STRING", document.TypeString, []string{`{"k":1}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst := newInstance(t, map[string]interface{}{"path": tt.path, "target": "out", "type": tt.typ})
			out, err := inst.ProcessAll(context.Background(), nil, docWithBody(t, payload))
			require.NoError(t, err)
			require.Len(t, out, 1)

			f, ok := out[0].Field("out")
			require.True(t, ok)
			assert.Equal(t, tt.wantType, f.Type())
			assert.Equal(t, tt.want, f.Strings())
		})
	}
}

func TestExtractMissingPath(t *testing.T) {
	optional := newInstance(t, map[string]interface{}{"path": "nope", "target": "out"})
	out, err := optional.ProcessAll(context.Background(), nil, docWithBody(t, payload))
	require.NoError(t, err)
	assert.False(t, out[0].Has("out"))

	required := newInstance(t, map[string]interface{}{"path": "nope", "target": "out", "required": true})
	_, err = required.ProcessAll(context.Background(), nil, docWithBody(t, payload))
	assert.ErrorIs(t, err, ErrPathNotFound)

	_, err = required.ProcessAll(context.Background(), nil, document.MustNew("empty"))
	assert.ErrorIs(t, err, ErrSourceMissing)
}

func TestExtractRejectsBadInput(t *testing.T) {
	inst := newInstance(t, map[string]interface{}{"path": "user.name", "target": "out", "type": "LONG"})

	_, err := inst.ProcessAll(context.Background(), nil, docWithBody(t, "{not json"))
	assert.ErrorIs(t, err, ErrInvalidJSON)

	_, err = inst.ProcessAll(context.Background(), nil, docWithBody(t, payload))
	var mismatch *document.TypeMismatchError
	assert.ErrorAs(t, err, &mismatch)
	assert.Equal(t, stage.Ready, inst.State())
}

func TestExtractRemovePath(t *testing.T) {
	inst := newInstance(t, map[string]interface{}{"path": "user.name", "target": "name", "removePath": "user"})
	out, err := inst.ProcessAll(context.Background(), nil, docWithBody(t, payload))
	require.NoError(t, err)

	name, _ := out[0].FirstString("name")
	assert.Equal(t, "ada", name)
	body, _ := out[0].FirstString("body")
	assert.NotContains(t, body, "user")
	assert.Contains(t, body, `"tags"`)
}
