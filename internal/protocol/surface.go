package protocol

import (
	"context"

	"github.com/photon-run/photon/internal/broker"
	"github.com/photon-run/photon/internal/invocation"
	"github.com/photon-run/photon/internal/photonerr"
)

// liveSurface implements invocation.Surface for one in-flight tools/call,
// routing progress and log events to the session's Notifier, elicitation
// through the Session's pending-elicitation table, and channel publishes
// through the Channel Broker.
type liveSurface struct {
	server       *Server
	invocationID string
}

func newLiveSurface(s *Server, invocationID string) *liveSurface {
	return &liveSurface{server: s, invocationID: invocationID}
}

func (l *liveSurface) Progress(_ context.Context, p invocation.Progress) {
	if l.server.notify == nil {
		return
	}
	l.server.notify(newNotification("notifications/progress", map[string]any{
		"invocationId": l.invocationID,
		"progress":     p.Current,
		"total":        p.Total,
		"message":      p.Message,
	}))
}

func (l *liveSurface) Log(_ context.Context, level invocation.LogLevel, message string) {
	if l.server.notify == nil || !l.server.sess.LogEnabled(level) {
		return
	}
	l.server.notify(newNotification("notifications/message", map[string]any{
		"level":  string(level),
		"logger": l.invocationID,
		"data":   message,
	}))
}

// Elicit sends "elicitation/create" and blocks on the session's pending
// slot until the client answers with "elicitation/complete" or ctx ends.
func (l *liveSurface) Elicit(ctx context.Context, req invocation.ElicitRequest) (invocation.ElicitResponse, error) {
	if l.server.notify == nil {
		return invocation.ElicitResponse{}, photonerr.New(photonerr.ElicitationNotSupported, "client does not support elicitation")
	}
	pe, err := l.server.sess.PendingElicitation(l.invocationID)
	if err != nil {
		return invocation.ElicitResponse{}, err
	}
	l.server.notify(newNotification("elicitation/create", map[string]any{
		"elicitationId":   pe.ID,
		"invocationId":    l.invocationID,
		"message":         req.Message,
		"requestedSchema": req.Schema,
	}))
	select {
	case resp := <-pe.Waiter:
		// A "cancel" action, whether sent by the client or by
		// Session.Disconnect, ends the wait as Cancelled.
		if resp.Action == "cancel" {
			return invocation.ElicitResponse{}, photonerr.New(photonerr.Cancelled, "elicitation cancelled")
		}
		return resp, nil
	case <-ctx.Done():
		return invocation.ElicitResponse{}, photonerr.New(photonerr.Cancelled, "invocation cancelled while waiting for elicitation")
	}
}

func (l *liveSurface) Publish(ctx context.Context, channel, event string, payload any) {
	if l.server.broker == nil {
		return
	}
	_ = l.server.broker.Publish(ctx, broker.Message{Channel: broker.ChannelForEvent(channel, event), Payload: payload})
}
