// Package stream implements the Channel Stream Backend: an optional
// Redis-backed fan-out so broker.Publish reaches subscribers connected to
// other server processes, modeled directly on the runtime's own
// Pulse-backed event sink and subscriber.
package stream

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"goa.design/pulse/streaming"

	"github.com/photon-run/photon/internal/broker"
	"github.com/photon-run/photon/internal/telemetry"
)

// envelope is the wire format for a published channel message.
type envelope struct {
	Channel string          `json:"channel"`
	Payload json.RawMessage `json:"payload"`
}

// Backend fans out broker.Message values through a single shared Pulse
// stream, "photon:channels", so every server process subscribed to it
// observes every publish regardless of which process originated it.
type Backend struct {
	redis     *redis.Client
	streamKey string
	sinkName  string
	log       telemetry.Logger

	deliver func(broker.Message)
}

// Options configures a Backend.
type Options struct {
	Redis     *redis.Client
	StreamKey string // defaults to "photon:channels"
	SinkName  string // Pulse consumer group name, defaults to a name unique to this Backend
	Log       telemetry.Logger
}

// New constructs a Backend and starts its consume loop in the background.
// deliver is called for every message read back from Redis, including
// ones this process itself published; callers pass broker.Broker.Deliver.
func New(ctx context.Context, opts Options, deliver func(broker.Message)) (*Backend, error) {
	if opts.Redis == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	key := opts.StreamKey
	if key == "" {
		key = "photon:channels"
	}
	sinkName := opts.SinkName
	if sinkName == "" {
		// Sinks sharing a name split the stream's events between them, so
		// each process needs its own to observe every publish.
		sinkName = "photon-" + uuid.NewString()
	}
	log := opts.Log
	if log == nil {
		log = telemetry.Noop().Log
	}
	b := &Backend{redis: opts.Redis, streamKey: key, sinkName: sinkName, log: log, deliver: deliver}
	if err := b.consume(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

// Publish writes msg to the shared Redis stream. Local delivery to this
// process's own subscribers still happens immediately in broker.Broker;
// this round trip exists purely to reach other processes.
func (b *Backend) Publish(ctx context.Context, msg broker.Message) error {
	payload, err := json.Marshal(msg.Payload)
	if err != nil {
		return fmt.Errorf("marshal channel payload: %w", err)
	}
	env := envelope{Channel: msg.Channel, Payload: payload}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal channel envelope: %w", err)
	}
	str, err := streaming.NewStream(b.streamKey, b.redis)
	if err != nil {
		return fmt.Errorf("open channel stream: %w", err)
	}
	_, err = str.Add(ctx, msg.Channel, body)
	return err
}

func (b *Backend) consume(ctx context.Context) error {
	str, err := streaming.NewStream(b.streamKey, b.redis)
	if err != nil {
		return fmt.Errorf("open channel stream: %w", err)
	}
	sink, err := str.NewSink(ctx, b.sinkName)
	if err != nil {
		return fmt.Errorf("open channel sink: %w", err)
	}
	go func() {
		ch := sink.Subscribe()
		for {
			select {
			case <-ctx.Done():
				sink.Close(context.Background())
				return
			case evt, ok := <-ch:
				if !ok {
					return
				}
				var env envelope
				if err := json.Unmarshal(evt.Payload, &env); err != nil {
					b.log.Warn(ctx, "discarding malformed channel envelope", "error", err.Error())
					continue
				}
				var payload any
				if err := json.Unmarshal(env.Payload, &payload); err != nil {
					b.log.Warn(ctx, "discarding malformed channel payload", "error", err.Error())
					continue
				}
				b.deliver(broker.Message{Channel: env.Channel, Payload: payload})
				if err := sink.Ack(ctx, evt); err != nil {
					b.log.Warn(ctx, "ack channel event failed", "error", err.Error())
				}
			}
		}
	}()
	return nil
}
