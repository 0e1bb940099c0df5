package invocation

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photon-run/photon/internal/catalog"
	"github.com/photon-run/photon/internal/loader"
	"github.com/photon-run/photon/internal/photon"
	"github.com/photon-run/photon/internal/photonerr"
)

type greeter struct{}

type greetArgs struct {
	Name string `json:"name"`
}

func (g *greeter) Greet(args greetArgs) (string, error) {
	if args.Name == "" {
		return "", errors.New("name is required")
	}
	return "hello " + args.Name, nil
}

type reflectCaller struct {
	value reflect.Value
}

func (c reflectCaller) MethodByName(name string) (reflect.Value, bool) {
	m := c.value.MethodByName(name)
	return m, m.IsValid()
}

func newTestInstance() (*photon.Instance, MethodCaller) {
	schema := map[string]any{
		"type":       "object",
		"properties": map[string]any{"name": map[string]any{"type": "string"}},
		"required":   []string{"name"},
	}
	result := &loader.Result{
		Spec: catalog.Spec{
			Name: "greeter",
			Tools: []catalog.Member{
				{Kind: catalog.KindTool, Name: "Greet", MethodName: "Greet", InputSchema: schema, OutputFormat: catalog.OutputText},
			},
		},
	}
	inst := photon.New(result)
	caller := reflectCaller{value: reflect.ValueOf(&greeter{})}
	return inst, caller
}

func TestEngine_InvokeTool_Success(t *testing.T) {
	inst, caller := newTestInstance()
	e := New(nil)
	res, err := e.InvokeTool(context.Background(), inst, caller, Request{
		InvocationID: "inv-1",
		ToolName:     "Greet",
		Arguments:    map[string]any{"name": "Ada"},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Len(t, res.Content, 1)
	assert.Equal(t, "hello Ada", res.Content[0].Text)
}

func TestEngine_InvokeTool_ValidationFailure(t *testing.T) {
	inst, caller := newTestInstance()
	e := New(nil)
	res, err := e.InvokeTool(context.Background(), inst, caller, Request{
		InvocationID: "inv-2",
		ToolName:     "Greet",
		Arguments:    map[string]any{},
	})
	require.NoError(t, err) // validation failure is a tool-level isError, not an engine error
	assert.True(t, res.IsError)
}

func TestEngine_InvokeTool_UnknownTool(t *testing.T) {
	inst, caller := newTestInstance()
	e := New(nil)
	_, err := e.InvokeTool(context.Background(), inst, caller, Request{ToolName: "Missing"})
	require.Error(t, err)
	assert.Equal(t, photonerr.NotFound, photonerr.KindOf(err))
}

func TestEngine_InvokeTool_UserError(t *testing.T) {
	inst, caller := newTestInstance()
	e := New(nil)
	res, err := e.InvokeTool(context.Background(), inst, caller, Request{
		ToolName:  "Greet",
		Arguments: map[string]any{"name": ""},
	})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, res.Content[0].Text, "name is required")
}
