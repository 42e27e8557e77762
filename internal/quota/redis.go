package quota

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Counters outlive their day long enough to cover clock skew between instances.
const counterTTL = 48 * time.Hour

type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "usage:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(key, day string) string {
	return s.prefix + key + ":" + day
}

func (s *RedisStore) Get(ctx context.Context, key, day string) (int, error) {
	n, err := s.client.Get(ctx, s.key(key, day)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *RedisStore) Incr(ctx context.Context, key, day string) (int, error) {
	redisKey := s.key(key, day)
	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		pipe.Expire(ctx, redisKey, counterTTL)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int(incr.Val()), nil
}

func (s *RedisStore) Reset(ctx context.Context, key, day string) error {
	return s.client.Del(ctx, s.key(key, day)).Err()
}
