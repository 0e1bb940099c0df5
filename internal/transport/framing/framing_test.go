package framing

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineCodec_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	c := LineCodec{}
	require.NoError(t, c.WriteMessage(&buf, []byte(`{"a":1}`)))
	require.NoError(t, c.WriteMessage(&buf, []byte(`{"b":2}`)))

	r := bufio.NewReader(&buf)
	first, err := c.ReadMessage(r)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(first))
	second, err := c.ReadMessage(r)
	require.NoError(t, err)
	assert.Equal(t, `{"b":2}`, string(second))
}

func TestLengthPrefixedCodec_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	c := LengthPrefixedCodec{}
	require.NoError(t, c.WriteMessage(&buf, []byte(`{"a":1}`)))
	require.NoError(t, c.WriteMessage(&buf, []byte(`{"b":2}`)))

	r := bufio.NewReader(&buf)
	first, err := c.ReadMessage(r)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(first))
	second, err := c.ReadMessage(r)
	require.NoError(t, err)
	assert.Equal(t, `{"b":2}`, string(second))
}

func TestLengthPrefixedCodec_RejectsOversizedFrame(t *testing.T) {
	var buf bytes.Buffer
	var header [4]byte
	header[0] = 0xFF
	header[1] = 0xFF
	header[2] = 0xFF
	header[3] = 0xFF
	buf.Write(header[:])
	_, err := LengthPrefixedCodec{}.ReadMessage(bufio.NewReader(&buf))
	require.Error(t, err)
}
