package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"tutorslot/internal/logging"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type envelope struct {
	Origin string          `json:"origin"`
	Party  string          `json:"party"`
	Frame  json.RawMessage `json:"frame"`
}

// RedisBridge fans hub frames out to every instance sharing the same redis.
// When redis is unreachable frames are still delivered locally.
type RedisBridge struct {
	client *redis.Client
	hub    *Hub
	origin string
	prefix string
	out    chan envelope
	logger *zerolog.Logger
	isDown atomic.Bool
}

func NewRedisBridge(client *redis.Client, hub *Hub, prefix string, logger *zerolog.Logger) *RedisBridge {
	return &RedisBridge{
		client: client,
		hub:    hub,
		origin: uuid.NewString(),
		prefix: prefix,
		out:    make(chan envelope, 256),
		logger: logging.Component(logger, "redis-bridge"),
	}
}

// Start subscribes to the party channels and installs the bridge as the hub forwarder.
// It returns once the subscription is confirmed; the bridge stops with ctx.
func (b *RedisBridge) Start(ctx context.Context) error {
	pubsub := b.client.PSubscribe(ctx, b.prefix+"*")
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("redis psubscribe: %w", err)
	}

	b.hub.SetForwarder(b)
	go b.consume(ctx, pubsub)
	go b.produce(ctx)

	b.logger.Info().Str("origin", b.origin).Str("pattern", b.prefix+"*").Msg("redis bridge started")
	return nil
}

// Forward queues a frame for publication without blocking the caller.
func (b *RedisBridge) Forward(partyID string, frame []byte) {
	select {
	case b.out <- envelope{Origin: b.origin, Party: partyID, Frame: frame}:
	default:
		b.logger.Warn().Str("party_id", partyID).Msg("bridge queue full, frame kept local")
	}
}

func (b *RedisBridge) produce(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-b.out:
			data, err := json.Marshal(env)
			if err != nil {
				b.logger.Error().Err(err).Msg("encode envelope")
				continue
			}
			if err := b.client.Publish(ctx, b.prefix+env.Party, data).Err(); err != nil {
				if !b.isDown.Swap(true) {
					b.logger.Error().Err(err).Msg("redis publish failed, delivering locally only")
				}
				continue
			}
			if b.isDown.Swap(false) {
				b.logger.Info().Msg("redis publish recovered")
			}
		}
	}
}

func (b *RedisBridge) consume(ctx context.Context, pubsub *redis.PubSub) {
	defer func() {
		b.hub.SetForwarder(nil)
		_ = pubsub.Close()
	}()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.logger.Warn().Err(err).Str("channel", msg.Channel).Msg("decode envelope")
				continue
			}
			if env.Origin == b.origin {
				continue
			}
			b.hub.Deliver(env.Party, env.Frame)
		}
	}
}
