package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	keyPrefix           = "matching:lock:"
	defaultLease        = 30 * time.Second
	defaultPollInterval = 50 * time.Millisecond
	releaseTimeout      = 2 * time.Second
)

// releaseScript deletes the key only while it still holds our token, so an
// expired lease taken over by another run is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLease is a Locker backed by SET NX PX leases. The lease TTL bounds
// how long a crashed holder can block a job.
type RedisLease struct {
	rdb   redis.UniversalClient
	lease time.Duration
	poll  time.Duration
	log   *zap.Logger
}

// NewRedisLease returns a RedisLease. A zero lease uses the default.
func NewRedisLease(rdb redis.UniversalClient, lease time.Duration, log *zap.Logger) *RedisLease {
	if lease <= 0 {
		lease = defaultLease
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisLease{rdb: rdb, lease: lease, poll: defaultPollInterval, log: log}
}

func (l *RedisLease) Acquire(ctx context.Context, key string) (func(), error) {
	redisKey := keyPrefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()
	for {
		ok, err := l.rdb.SetNX(ctx, redisKey, token, l.lease).Result()
		if err != nil && ctx.Err() == nil {
			return nil, fmt.Errorf("redis SETNX %s: %w", redisKey, err)
		}
		if ok {
			return l.releaser(redisKey, token), nil
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %v", ErrNotAcquired, key, ctx.Err())
		}
	}
}

func (l *RedisLease) releaser(redisKey, token string) func() {
	return func() {
		// The caller's context may already be cancelled.
		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		if err := releaseScript.Run(ctx, l.rdb, []string{redisKey}, token).Err(); err != nil {
			l.log.Warn("release lease failed", zap.String("key", redisKey), zap.Error(err))
		}
	}
}
