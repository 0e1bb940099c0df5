// Package transport implements the Transport Layer: the three ways a
// client can connect to a running photon server. Every transport reduces
// to the same job: turn inbound bytes into protocol.Request frames, and
// protocol responses/notifications back into outbound bytes.
package transport

import (
	"bufio"
	"context"
	"io"
	"sync"

	"github.com/photon-run/photon/internal/protocol"
	"github.com/photon-run/photon/internal/telemetry"
	"github.com/photon-run/photon/internal/transport/framing"
)

// Dispatcher is the subset of protocol.Server a transport depends on.
type Dispatcher interface {
	Handle(ctx context.Context, raw []byte) []byte
}

// Stdio serves one client connection over os.Stdin/os.Stdout, framing
// messages one per line. Logs must never be written to stdout: any
// telemetry output on this transport goes to stderr, since stdout is the
// protocol channel per the MCP stdio transport convention.
type Stdio struct {
	In     io.Reader
	Out    io.Writer
	Server Dispatcher
	log    telemetry.Logger

	writeMu sync.Mutex
}

// NewStdio constructs a Stdio transport.
func NewStdio(in io.Reader, out io.Writer, server Dispatcher, log telemetry.Logger) *Stdio {
	if log == nil {
		log = telemetry.Noop().Log
	}
	return &Stdio{In: in, Out: out, Server: server, log: log}
}

// Serve reads frames until ctx is cancelled or the input stream closes.
func (s *Stdio) Serve(ctx context.Context) error {
	codec := framing.LineCodec{}
	reader := bufio.NewReader(s.In)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		frame, err := codec.ReadMessage(reader)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if len(frame) == 0 {
			continue
		}
		if resp := s.Server.Handle(ctx, frame); resp != nil {
			if err := s.write(codec, resp); err != nil {
				return err
			}
		}
	}
}

// Notify implements protocol.Notifier for the stdio transport.
func (s *Stdio) Notify(n protocol.Notification) {
	body, err := marshalNotification(n)
	if err != nil {
		s.log.Warn(context.Background(), "failed to marshal notification", "error", err.Error())
		return
	}
	if err := s.write(framing.LineCodec{}, body); err != nil {
		s.log.Warn(context.Background(), "failed to write notification", "error", err.Error())
	}
}

func (s *Stdio) write(codec framing.Codec, body []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return codec.WriteMessage(s.Out, body)
}
