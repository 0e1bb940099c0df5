package transport

import (
	"bufio"
	"context"
	"net"
	"sync"

	"github.com/photon-run/photon/internal/protocol"
	"github.com/photon-run/photon/internal/telemetry"
	"github.com/photon-run/photon/internal/transport/framing"
)

// IPC serves one client connection over a local socket (Unix domain
// socket or named pipe), length-prefixed so a frame can safely carry
// arbitrary bytes, unlike the stdio transport's line framing.
type IPC struct {
	Conn   net.Conn
	Server Dispatcher
	log    telemetry.Logger

	writeMu sync.Mutex
}

// NewIPC constructs an IPC transport over an already-accepted connection.
func NewIPC(conn net.Conn, server Dispatcher, log telemetry.Logger) *IPC {
	if log == nil {
		log = telemetry.Noop().Log
	}
	return &IPC{Conn: conn, Server: server, log: log}
}

// Serve reads frames until ctx is cancelled or the connection closes.
func (t *IPC) Serve(ctx context.Context) error {
	codec := framing.LengthPrefixedCodec{}
	reader := bufio.NewReader(t.Conn)
	go func() {
		<-ctx.Done()
		_ = t.Conn.Close()
	}()
	for {
		frame, err := codec.ReadMessage(reader)
		if err != nil {
			return err
		}
		if resp := t.Server.Handle(ctx, frame); resp != nil {
			if err := t.write(codec, resp); err != nil {
				return err
			}
		}
	}
}

// Notify implements protocol.Notifier for the IPC transport.
func (t *IPC) Notify(n protocol.Notification) {
	body, err := marshalNotification(n)
	if err != nil {
		t.log.Warn(context.Background(), "failed to marshal notification", "error", err.Error())
		return
	}
	if err := t.write(framing.LengthPrefixedCodec{}, body); err != nil {
		t.log.Warn(context.Background(), "failed to write notification", "error", err.Error())
	}
}

func (t *IPC) write(codec framing.Codec, body []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return codec.WriteMessage(t.Conn, body)
}

// ListenAndServe accepts connections on a local listener (a Unix domain
// socket in production) and serves each with its own IPC transport and
// session, calling newServer for every accepted connection so each gets
// an independent Session.
func ListenAndServe(ctx context.Context, ln net.Listener, newServer func(notify protocol.Notifier) Dispatcher, log telemetry.Logger) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		go func(conn net.Conn) {
			defer conn.Close()
			t := NewIPC(conn, nil, log)
			t.Server = newServer(t.Notify)
			if err := t.Serve(ctx); err != nil && log != nil {
				log.Debug(ctx, "ipc connection closed", "error", err.Error())
			}
		}(conn)
	}
}
