package hostcall

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wehubfusion/Stagehand/pkg/document"
	"github.com/wehubfusion/Stagehand/pkg/host"
	"github.com/wehubfusion/Stagehand/pkg/stage"
)

type recordingPlane struct {
	method, path string
	payload      []byte
	reply        []byte
}

func (r *recordingPlane) Request(_ context.Context, method, path string, payload []byte) ([]byte, error) {
	r.method, r.path, r.payload = method, path, payload
	return r.reply, nil
}

func TestHostCall(t *testing.T) {
	cp := &recordingPlane{reply: []byte(`{"score":{"value":0.75}}`)}
	inst, err := stage.NewInstance(Type, map[string]interface{}{
		"method": "score", "path": "models/v1", "target": "score", "replyPath": "score.value",
	})
	require.NoError(t, err)
	require.NoError(t, inst.Init(host.NewHandle(cp, nil)))

	doc := document.MustNew("d1")
	require.NoError(t, doc.Set("text", document.TypeString, "hi"))
	out, err := inst.ProcessAll(context.Background(), nil, doc)
	require.NoError(t, err)

	score, _ := out[0].FirstString("score")
	assert.Equal(t, "0.75", score)
	assert.Equal(t, "score", cp.method)
	assert.Equal(t, "models/v1", cp.path)

	var sent document.Document
	require.NoError(t, json.Unmarshal(cp.payload, &sent))
	assert.Equal(t, "d1", sent.ID())
	text, _ := sent.FirstString("text")
	assert.Equal(t, "hi", text)
}

func TestHostCallFailures(t *testing.T) {
	_, err := stage.NewInstance(Type, map[string]interface{}{"method": "no spaces", "path": "p", "target": "t"})
	assert.Error(t, err)

	offline, err := stage.NewInstance(Type, map[string]interface{}{"method": "get", "path": "p", "target": "t"})
	require.NoError(t, err)
	require.NoError(t, offline.Init(nil))
	_, err = offline.ProcessAll(context.Background(), nil, document.MustNew("d"))
	assert.ErrorIs(t, err, host.ErrControlPlaneUnavailable)

	cp := &recordingPlane{reply: []byte("plain")}
	inst, err := stage.NewInstance(Type, map[string]interface{}{
		"method": "get", "path": "p", "target": "t", "replyPath": "x", "sendDocument": false,
	})
	require.NoError(t, err)
	require.NoError(t, inst.Init(host.NewHandle(cp, nil)))
	_, err = inst.ProcessAll(context.Background(), nil, document.MustNew("d"))
	assert.Error(t, err)
	assert.Nil(t, cp.payload)
}
