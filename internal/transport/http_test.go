package transport

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photon-run/photon/internal/protocol"
)

type echoDispatcher struct{}

func (echoDispatcher) Handle(ctx context.Context, raw []byte) []byte {
	return []byte(`{"jsonrpc":"2.0","id":1,"result":{}}`)
}

func TestHTTP_PostSetsSessionHeader(t *testing.T) {
	h := NewHTTP(func(notify protocol.Notifier) Dispatcher { return echoDispatcher{} }, nil)

	req := httptest.NewRequest("POST", "/rpc", strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"initialize"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Mcp-Session-Id"))
	assert.Contains(t, rec.Body.String(), `"result"`)
}

func TestHTTP_ReusesSessionFromHeader(t *testing.T) {
	h := NewHTTP(func(notify protocol.Notifier) Dispatcher { return echoDispatcher{} }, nil)

	req1 := httptest.NewRequest("POST", "/rpc", strings.NewReader(`{}`))
	rec1 := httptest.NewRecorder()
	h.ServeHTTP(rec1, req1)
	sessionID := rec1.Header().Get("Mcp-Session-Id")

	req2 := httptest.NewRequest("POST", "/rpc", strings.NewReader(`{}`))
	req2.Header.Set("Mcp-Session-Id", sessionID)
	rec2 := httptest.NewRecorder()
	h.ServeHTTP(rec2, req2)

	assert.Equal(t, sessionID, rec2.Header().Get("Mcp-Session-Id"))
	assert.Len(t, h.sessions, 1)
}
