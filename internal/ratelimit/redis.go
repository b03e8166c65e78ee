package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultKeyPrefix = "folio:ratelimit:"

type RedisConfig struct {
	Client    redis.UniversalClient
	KeyPrefix string
	Logger    *zap.Logger
}

// RedisLimiter shares fixed windows across processes. When Redis is
// unreachable it admits the request and logs the failure.
type RedisLimiter struct {
	client    redis.UniversalClient
	keyPrefix string
	logger    *zap.Logger
}

var _ Limiter = (*RedisLimiter)(nil)

func NewRedisLimiter(cfg RedisConfig) *RedisLimiter {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLimiter{client: cfg.Client, keyPrefix: prefix, logger: logger}
}

func (l *RedisLimiter) Admit(ctx context.Context, key string, limit int, window time.Duration) bool {
	redisKey := l.keyPrefix + key

	var (
		incr *redis.IntCmd
		ttl  *redis.DurationCmd
	)
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		ttl = pipe.PTTL(ctx, redisKey)
		return nil
	})
	if err != nil {
		l.logger.Warn("rate limiter unavailable, admitting request", zap.String("key", key), zap.Error(err))
		return true
	}

	// A key without expiry is a fresh window, or one whose expiry was lost.
	if ttl.Val() < 0 {
		if err := l.client.PExpire(ctx, redisKey, window).Err(); err != nil {
			l.logger.Warn("rate limiter expiry failed", zap.String("key", key), zap.Error(err))
		}
	}
	return incr.Val() <= int64(limit)
}
