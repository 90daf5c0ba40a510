package split

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wehubfusion/Stagehand/pkg/document"
	"github.com/wehubfusion/Stagehand/pkg/stage"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name   string
		config map[string]interface{}
		values []interface{}
		want   []string
	}{
		{"defaults", map[string]interface{}{}, []interface{}{"a, b ,c"}, []string{"a", "b", "c"}},
		{"no trim", map[string]interface{}{"trim": false}, []interface{}{"a, b"}, []string{"a", " b"}},
		{"custom separator", map[string]interface{}{"separator": "|"}, []interface{}{"x|y"}, []string{"x", "y"}},
		{"skips empty", map[string]interface{}{}, []interface{}{"a,,b,"}, []string{"a", "b"}},
		{"keeps empty", map[string]interface{}{"skipEmpty": false}, []interface{}{"a,"}, []string{"a", ""}},
		{"multi valued", map[string]interface{}{}, []interface{}{"a,b", "c"}, []string{"a", "b", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.config["field"] = "tags"
			inst, err := stage.NewInstance(Type, tt.config)
			require.NoError(t, err)
			require.NoError(t, inst.Init(nil))

			doc := document.MustNew("parent")
			require.NoError(t, doc.Set("tags", document.TypeString, tt.values...))
			require.NoError(t, doc.Set("owner", document.TypeString, "ada"))

			out, err := inst.ProcessAll(context.Background(), nil, doc)
			require.NoError(t, err)

			got := make([]string, 0, len(out))
			ids := map[string]bool{}
			for _, o := range out {
				tag, _ := o.FirstString("tags")
				got = append(got, tag)
				parent, _ := o.FirstString("parent_id")
				assert.Equal(t, "parent", parent)
				owner, _ := o.FirstString("owner")
				assert.Equal(t, "ada", owner)
				assert.NotEqual(t, "parent", o.ID())
				ids[o.ID()] = true
			}
			assert.Equal(t, tt.want, got)
			assert.Len(t, ids, len(out))
		})
	}
}

func TestSplitOutputsAreIndependent(t *testing.T) {
	inst, err := stage.NewInstance(Type, map[string]interface{}{"field": "tags", "parentField": ""})
	require.NoError(t, err)
	require.NoError(t, inst.Init(nil))

	doc := document.MustNew("p")
	require.NoError(t, doc.Set("tags", document.TypeString, "a,b"))
	out, err := inst.ProcessAll(context.Background(), nil, doc)
	require.NoError(t, err)
	require.Len(t, out, 2)

	require.NoError(t, out[0].Set("extra", document.TypeString, "x"))
	assert.False(t, out[1].Has("extra"))
	assert.False(t, out[1].Has("parent_id"))
}

func TestSplitFailures(t *testing.T) {
	inst, err := stage.NewInstance(Type, map[string]interface{}{"field": "tags", "maxItems": 2})
	require.NoError(t, err)
	require.NoError(t, inst.Init(nil))

	missing, err := inst.ProcessAll(context.Background(), nil, document.MustNew("m"))
	require.NoError(t, err)
	assert.Empty(t, missing)

	tooMany := document.MustNew("t")
	require.NoError(t, tooMany.Set("tags", document.TypeString, "a,b,c"))
	out, err := inst.ProcessAll(context.Background(), nil, tooMany)
	assert.Error(t, err)
	assert.Empty(t, out)

	wrongType := document.MustNew("w")
	require.NoError(t, wrongType.Set("tags", document.TypeLong, 1))
	_, err = inst.ProcessAll(context.Background(), nil, wrongType)
	assert.Error(t, err)

	bad, err := stage.NewInstance(Type, map[string]interface{}{"field": "parent_id"})
	require.NoError(t, err)
	assert.Error(t, bad.Init(nil))
}
