package protocol

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photon-run/photon/internal/broker"
	"github.com/photon-run/photon/internal/catalog"
	"github.com/photon-run/photon/internal/invocation"
	"github.com/photon-run/photon/internal/loader"
	"github.com/photon-run/photon/internal/photon"
	"github.com/photon-run/photon/internal/session"
)

func newTestServer() *Server {
	result := &loader.Result{
		Spec: catalog.Spec{
			Name: "greeter",
			Tools: []catalog.Member{
				{Kind: catalog.KindTool, Name: "Echo", MethodName: "Echo"},
				{Kind: catalog.KindTool, Name: "Secret", MethodName: "Secret", Flags: catalog.Flags{Internal: true}},
			},
		},
	}
	holder := photon.NewHolder(photon.New(result))
	engine := invocation.New(nil)
	sess := session.New()
	br := broker.New(nil)
	return NewServer(holder, engine, sess, br, nil, nil)
}

func TestServer_Initialize(t *testing.T) {
	s := newTestServer()
	raw := s.Handle(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`))
	require.NotNil(t, raw)
	var resp Response
	require.NoError(t, json.Unmarshal(raw, &resp))
	assert.Nil(t, resp.Error)
}

func TestServer_ToolsListHidesInternal(t *testing.T) {
	s := newTestServer()
	raw := s.Handle(context.Background(), []byte(`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`))
	var resp Response
	require.NoError(t, json.Unmarshal(raw, &resp))
	result := resp.Result.(map[string]any)
	tools := result["tools"].([]any)
	assert.Len(t, tools, 1)
}

func TestServer_UnknownMethod(t *testing.T) {
	s := newTestServer()
	raw := s.Handle(context.Background(), []byte(`{"jsonrpc":"2.0","id":3,"method":"bogus/method"}`))
	var resp Response
	require.NoError(t, json.Unmarshal(raw, &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeMethodNotFound, resp.Error.Code)
}

func TestServer_NotificationHasNoResponse(t *testing.T) {
	s := newTestServer()
	raw := s.Handle(context.Background(), []byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}`))
	assert.Nil(t, raw)
}

func TestServer_MalformedJSON(t *testing.T) {
	s := newTestServer()
	raw := s.Handle(context.Background(), []byte(`not json`))
	var resp Response
	require.NoError(t, json.Unmarshal(raw, &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeParseError, resp.Error.Code)
}
