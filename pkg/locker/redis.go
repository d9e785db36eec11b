package locker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only when it still holds our value, so a
// lock that expired and was retaken by someone else is left alone.
var releaseScript = redis.NewScript(`
local v = redis.call("GET", KEYS[1])
if v == false then
	return 0
end
if v == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return -1
`)

type RedisLocker struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisLocker(client redis.UniversalClient, prefix string) *RedisLocker {
	return &RedisLocker{client: client, prefix: prefix}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, expiration time.Duration) (bool, string, error) {
	lockValue := uuid.NewString()
	acquired, err := l.client.SetNX(ctx, l.prefix+key, lockValue, expiration).Result()
	if err != nil {
		return false, "", fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !acquired {
		return false, "", nil
	}
	return true, lockValue, nil
}

func (l *RedisLocker) Unlock(ctx context.Context, key, lockValue string) error {
	res, err := releaseScript.Run(ctx, l.client, []string{l.prefix + key}, lockValue).Int()
	if err != nil {
		return fmt.Errorf("failed to release lock %s: %w", key, err)
	}
	if res < 0 {
		return ErrNotOwner
	}
	return nil
}
