package loginprotection

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "loginfail:"

// RedisStore keeps failure records in Redis so multiple instances share
// one lockout view. Each key maps to a hash holding the failure count
// and the last-failure timestamp; record expiry is delegated to Redis
// key TTLs refreshed on every increment.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, key string) (Record, bool, error) {
	fields, err := s.client.HGetAll(ctx, redisKeyPrefix+key).Result()
	if err != nil {
		return Record{}, false, fmt.Errorf("login protection redis get: %w", err)
	}
	if len(fields) == 0 {
		return Record{}, false, nil
	}

	failures, err := strconv.Atoi(fields["failures"])
	if err != nil {
		return Record{}, false, fmt.Errorf("login protection record corrupt: %w", err)
	}
	lastMillis, err := strconv.ParseInt(fields["last_failure_ms"], 10, 64)
	if err != nil {
		return Record{}, false, fmt.Errorf("login protection record corrupt: %w", err)
	}

	return Record{
		Failures:    failures,
		LastFailure: time.UnixMilli(lastMillis),
	}, true, nil
}

func (s *RedisStore) Increment(ctx context.Context, key string, now time.Time) (Record, error) {
	rkey := redisKeyPrefix + key

	pipe := s.client.TxPipeline()
	incr := pipe.HIncrBy(ctx, rkey, "failures", 1)
	pipe.HSet(ctx, rkey, "last_failure_ms", now.UnixMilli())
	if s.ttl > 0 {
		pipe.Expire(ctx, rkey, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return Record{}, fmt.Errorf("login protection redis increment: %w", err)
	}

	return Record{
		Failures:    int(incr.Val()),
		LastFailure: now,
	}, nil
}

func (s *RedisStore) Clear(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("login protection redis clear: %w", err)
	}
	return nil
}
