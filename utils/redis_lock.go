package utils

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLock is a best-effort leader lock used to keep background jobs
// single-flight across instances. It is advisory: losing the lock mid
// run is tolerated because the guarded work is idempotent.
type RedisLock struct {
	redis *redis.Client
	key   string
	token string
	ttl   time.Duration
}

func NewRedisLock(redisClient *redis.Client, key string, ttl time.Duration) *RedisLock {
	token, _ := GenerateCode(8)
	return &RedisLock{
		redis: redisClient,
		key:   key,
		token: token,
		ttl:   ttl,
	}
}

// TryAcquire attempts to take the lock. It returns false when another
// holder owns it.
func (l *RedisLock) TryAcquire(ctx context.Context) (bool, error) {
	ok, err := l.redis.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis lock %s: %w", l.key, err)
	}
	return ok, nil
}

// Release frees the lock if this instance still owns it.
func (l *RedisLock) Release(ctx context.Context) {
	current, err := l.redis.Get(ctx, l.key).Result()
	if err != nil || current != l.token {
		return
	}
	l.redis.Del(ctx, l.key)
}
