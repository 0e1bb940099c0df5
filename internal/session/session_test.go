package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photon-run/photon/internal/invocation"
)

func TestSession_DisconnectCancelsPendingAndRejectsElicitations(t *testing.T) {
	s := New()
	require.NoError(t, s.OpenInvocation(&invocation.Invocation{ID: "a"}))
	require.NoError(t, s.OpenInvocation(&invocation.Invocation{ID: "b"}))
	pe, err := s.PendingElicitation("Greet")
	require.NoError(t, err)

	var cancelled []string
	s.Disconnect(func(id string) { cancelled = append(cancelled, id) })

	assert.ElementsMatch(t, []string{"a", "b"}, cancelled)
	resp := <-pe.Waiter
	assert.Equal(t, "cancel", resp.Action)

	_, err = s.PendingElicitation("Other")
	require.Error(t, err)
}

func TestSession_CompleteElicitation_UnknownIDReturnsFalse(t *testing.T) {
	s := New()
	assert.False(t, s.CompleteElicitation("nope", invocation.ElicitResponse{}))
}

func TestManager_OpenCloseRoundTrip(t *testing.T) {
	m := NewManager()
	s := m.Open()
	got, err := m.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)

	m.Close(s.ID, nil)
	_, err = m.Get(s.ID)
	assert.Error(t, err)
}
