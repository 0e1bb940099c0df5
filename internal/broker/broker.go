// Package broker implements the Channel Broker: publish/subscribe fan-out
// for the "photon:channel" notification surface tool methods use to push
// updates outside the request/response cycle (e.g. "items:added").
package broker

import (
	"context"
	"strings"
	"sync"
)

// Message is one published channel event.
type Message struct {
	Channel string
	Payload any
}

// Backend is the pluggable fan-out transport. The default in-process
// Broker is itself a Backend; internal/broker/stream wraps a Pulse/Redis
// client behind the same interface for cross-process delivery.
type Backend interface {
	Publish(ctx context.Context, msg Message) error
}

// Subscriber receives published messages on channels it has subscribed to.
type Subscriber struct {
	SessionID string
	C         chan Message
}

// Broker is the in-memory implementation of the Channel Broker: a
// channelName -> set<SessionId> map plus delivery queues per subscriber.
// It also satisfies Backend, so a loopback publish (same process) always
// works even when no cross-process Backend is configured.
type Broker struct {
	remote Backend // optional cross-process fan-out, nil for single-process mode

	mu            sync.RWMutex
	subscriptions map[string]map[string]*Subscriber // channel -> sessionID -> subscriber
}

// New constructs a Broker. remote may be nil for single-process deployments.
func New(remote Backend) *Broker {
	return &Broker{remote: remote, subscriptions: map[string]map[string]*Subscriber{}}
}

// Subscribe registers sub to receive messages published on channel. The
// "{toolName}:added|removed|updated|changed" convention (spec section 4.H)
// is just a naming convention enforced by callers, not by the broker
// itself, which treats every channel name as an opaque string.
func (b *Broker) Subscribe(channel string, sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.subscriptions[channel]
	if !ok {
		set = map[string]*Subscriber{}
		b.subscriptions[channel] = set
	}
	set[sub.SessionID] = sub
}

// Unsubscribe removes sessionID's subscription to channel, if present.
func (b *Broker) Unsubscribe(channel, sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if set, ok := b.subscriptions[channel]; ok {
		delete(set, sessionID)
		if len(set) == 0 {
			delete(b.subscriptions, channel)
		}
	}
}

// UnsubscribeAll removes every subscription belonging to sessionID, used
// on session disconnect.
func (b *Broker) UnsubscribeAll(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for channel, set := range b.subscriptions {
		delete(set, sessionID)
		if len(set) == 0 {
			delete(b.subscriptions, channel)
		}
	}
}

// Publish delivers msg to every local subscriber of msg.Channel, and also
// forwards it to the configured remote Backend (if any) so subscribers
// connected to other server processes receive it too.
func (b *Broker) Publish(ctx context.Context, msg Message) error {
	b.mu.RLock()
	subs := make([]*Subscriber, 0, len(b.subscriptions[msg.Channel]))
	for _, sub := range b.subscriptions[msg.Channel] {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	for _, sub := range subs {
		select {
		case sub.C <- msg:
		default:
			// Slow subscriber: drop rather than block the publisher, matching
			// the broker's best-effort delivery guarantee.
		}
	}

	if b.remote != nil {
		return b.remote.Publish(ctx, msg)
	}
	return nil
}

// Deliver is called by the cross-process Backend when it receives a
// message originated by another process, fanning it out to this
// process's local subscribers without re-forwarding to the remote
// backend (which would create an infinite publish loop).
func (b *Broker) Deliver(msg Message) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subscriptions[msg.Channel] {
		select {
		case sub.C <- msg:
		default:
		}
	}
}

// ChannelForEvent builds the conventional channel name for a tool's
// lifecycle event, e.g. ChannelForEvent("items", "added") == "items:added".
func ChannelForEvent(toolName, event string) string {
	return strings.Join([]string{toolName, event}, ":")
}
