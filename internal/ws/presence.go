package ws

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// presenceTTL bounds how long a crashed gateway can leave ghost entries.
const presenceTTL = 5 * time.Minute

// Presence tracks which users hold an open socket per room. The registry
// lives in redis so every gateway instance shares the same view.
type Presence struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewPresence constructs a presence registry over the given redis client.
func NewPresence(client *redis.Client, prefix string, logger *zap.Logger) *Presence {
	if prefix == "" {
		prefix = "chat"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Presence{client: client, prefix: prefix, logger: logger}
}

func (p *Presence) key(roomID string) string {
	return p.prefix + ":presence:" + roomID
}

// Join records the user as online in the room.
func (p *Presence) Join(ctx context.Context, roomID, userID string) {
	key := p.key(roomID)
	pipe := p.client.Pipeline()
	pipe.SAdd(ctx, key, userID)
	pipe.Expire(ctx, key, presenceTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		p.logger.Warn("presence join failed", zap.String("room_id", roomID), zap.Error(err))
	}
}

// Leave removes the user from the room's online set.
func (p *Presence) Leave(ctx context.Context, roomID, userID string) {
	if err := p.client.SRem(ctx, p.key(roomID), userID).Err(); err != nil {
		p.logger.Warn("presence leave failed", zap.String("room_id", roomID), zap.Error(err))
	}
}

// Online returns the ids of users currently connected to the room.
func (p *Presence) Online(ctx context.Context, roomID string) ([]string, error) {
	members, err := p.client.SMembers(ctx, p.key(roomID)).Result()
	if err != nil {
		return nil, err
	}
	return members, nil
}
