// Package framing implements the IPC Frame Codec shared by the stdio and
// local-socket transports: turning a byte stream into discrete JSON-RPC
// messages and back. Each transport picks the codec matching its wire
// conventions; the protocol dispatcher above never sees framing at all.
package framing

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// Codec reads and writes discrete message frames over a byte stream.
type Codec interface {
	ReadMessage(r *bufio.Reader) ([]byte, error)
	WriteMessage(w io.Writer, msg []byte) error
}

// LineCodec frames one JSON-RPC message per line, the convention MCP's
// stdio transport uses: human-inspectable, trivially compatible with
// line-buffered pipes.
type LineCodec struct{}

func (LineCodec) ReadMessage(r *bufio.Reader) ([]byte, error) {
	line, err := r.ReadBytes('\n')
	if err != nil && len(line) == 0 {
		return nil, err
	}
	return trimNewline(line), nil
}

func (LineCodec) WriteMessage(w io.Writer, msg []byte) error {
	if _, err := w.Write(msg); err != nil {
		return err
	}
	_, err := w.Write([]byte{'\n'})
	return err
}

func trimNewline(b []byte) []byte {
	n := len(b)
	for n > 0 && (b[n-1] == '\n' || b[n-1] == '\r') {
		n--
	}
	return b[:n]
}

// maxFrameSize bounds a single IPC frame to guard against a corrupted or
// malicious length prefix causing an unbounded allocation.
const maxFrameSize = 64 << 20 // 64MiB

// LengthPrefixedCodec frames each message with a 4-byte big-endian length
// prefix, used by the local IPC socket transport where messages may
// contain raw newlines (binary-safe, unlike LineCodec).
type LengthPrefixedCodec struct{}

func (LengthPrefixedCodec) ReadMessage(r *bufio.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(header[:])
	if length > maxFrameSize {
		return nil, fmt.Errorf("frame length %d exceeds maximum %d", length, maxFrameSize)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (LengthPrefixedCodec) WriteMessage(w io.Writer, msg []byte) error {
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(msg)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(msg)
	return err
}
