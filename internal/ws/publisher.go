package ws

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisPublisher fans sent messages out across gateway instances via Redis
// pub/sub. Each room maps to one channel under the configured prefix.
type RedisPublisher struct {
	client *redis.Client
	prefix string
}

// NewRedisPublisher returns a publisher over the given client.
func NewRedisPublisher(client *redis.Client, prefix string) *RedisPublisher {
	if prefix == "" {
		prefix = "chat"
	}
	return &RedisPublisher{client: client, prefix: prefix}
}

// PublishMessage pushes a message payload onto the room's channel.
func (p *RedisPublisher) PublishMessage(ctx context.Context, roomID string, payload []byte) error {
	return p.client.Publish(ctx, p.prefix+":"+roomID, payload).Err()
}

// Subscriber receives payloads published by any gateway instance and hands
// them to the local hub.
type Subscriber struct {
	client *redis.Client
	prefix string
	hub    *Hub
	logger *zap.Logger
}

// NewSubscriber returns a subscriber feeding the hub.
func NewSubscriber(client *redis.Client, prefix string, hub *Hub, logger *zap.Logger) *Subscriber {
	if prefix == "" {
		prefix = "chat"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Subscriber{client: client, prefix: prefix, hub: hub, logger: logger}
}

// Run consumes the room channels until the context is cancelled.
func (s *Subscriber) Run(ctx context.Context) error {
	pubsub := s.client.PSubscribe(ctx, s.prefix+":*")
	defer func() {
		if err := pubsub.Close(); err != nil {
			s.logger.Warn("failed to close pubsub", zap.Error(err))
		}
	}()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			roomID := strings.TrimPrefix(msg.Channel, s.prefix+":")
			s.hub.Broadcast(roomID, []byte(msg.Payload))
		}
	}
}
