package dedupe

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis records delivery IDs in Redis with a TTL, so replays are detected
// across restarts and across instances sharing one Redis server.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis creates a deduper using the provided Redis client and TTL.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

// Seen records deliveryID and reports whether it was already recorded.
// A duplicate is an ID whose key already existed.
func (r *Redis) Seen(ctx context.Context, deliveryID string) (bool, error) {
	added, err := r.client.SetNX(ctx, r.key(deliveryID), 1, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("checking delivery %s: %w", deliveryID, err)
	}
	return !added, nil
}

func (r *Redis) key(deliveryID string) string {
	return "webhook:delivery:" + deliveryID
}
