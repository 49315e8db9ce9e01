package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis wraps redis client.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects to redis with short timeouts.
func NewRedis(addr string) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	})
	return &Redis{Client: client}
}

// Healthy verifies redis connectivity.
func (r *Redis) Healthy(ctx context.Context) bool {
	if r == nil || r.Client == nil {
		return false
	}
	return r.Client.Ping(ctx).Err() == nil
}

// Claim takes the (user, day) slot with SETNX. It reports false when another
// request already holds it.
func (r *Redis) Claim(ctx context.Context, userID, day string, ttl time.Duration) (bool, error) {
	return r.Client.SetNX(ctx, guardKey(day, userID), time.Now().UTC().Format(time.RFC3339), ttl).Result()
}

// Release frees a slot after a failed insert.
func (r *Redis) Release(ctx context.Context, userID, day string) error {
	return r.Client.Del(ctx, guardKey(day, userID)).Err()
}

// Close closes the client.
func (r *Redis) Close() error {
	if r == nil || r.Client == nil {
		return nil
	}
	return r.Client.Close()
}

func guardKey(day, userID string) string {
	return "absensi:hadir:" + day + ":" + userID
}
