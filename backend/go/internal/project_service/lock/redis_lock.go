package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"IntentCode/backend/go/pkg/logger"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const redisKeyPrefix = "intentcode:lock:"

// 只有持有者的 token 匹配时才删除，避免释放别人在租约过期后拿到的锁。
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker 用 Redis 租约实现跨实例的按键锁。
// 租约在 ttl 后自动过期，持有者崩溃不会让项目永久锁死。
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
	retry  time.Duration
	log    *logger.Logger
}

// NewRedisLocker 创建一个新的 RedisLocker 实例。
func NewRedisLocker(client *redis.Client, ttl, wait time.Duration, log *logger.Logger) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl, wait: wait, retry: 50 * time.Millisecond, log: log}
}

// Lock 轮询 SETNX 直到拿到租约、等待超时或 ctx 结束。
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := redisKeyPrefix + key
	token := uuid.NewString()

	waitCtx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(waitCtx, redisKey, token, l.ttl).Result()
		if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("lock: acquire %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ticker.C:
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, ErrLockTimeout
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, l.client, []string{redisKey}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
				l.log.WithErr(err).WithPayload(map[string]interface{}{"key": key}).Warn("释放项目锁失败，等待租约过期")
			}
		})
	}, nil
}
