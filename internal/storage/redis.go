package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// casScript swaps KEYS[1] from ARGV[1] to ARGV[2]. An empty ARGV[1] requires
// the key to be absent.
var casScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if (ARGV[1] == '' and cur == false) or (cur ~= false and cur == ARGV[1]) then
  redis.call('SET', KEYS[1], ARGV[2])
  return 1
end
return 0
`)

// RedisPointerStore keeps pointer cells as plain Redis string keys.
type RedisPointerStore struct {
	client *redis.Client
	prefix string
}

// OpenRedis connects to a Redis server and verifies it answers PING.
func OpenRedis(ctx context.Context, opts *redis.Options, prefix string) (*RedisPointerStore, error) {
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisPointerStore{client: client, prefix: prefix}, nil
}

func (s *RedisPointerStore) Close() error {
	return s.client.Close()
}

func (s *RedisPointerStore) Get(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get pointer %s: %w", key, err)
	}
	return v, nil
}

func (s *RedisPointerStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("set pointer %s: %w", key, err)
	}
	return nil
}

func (s *RedisPointerStore) CompareAndSwap(ctx context.Context, key, prev, next string) (bool, error) {
	n, err := casScript.Run(ctx, s.client, []string{s.prefix + key}, prev, next).Int()
	if err != nil {
		return false, fmt.Errorf("swap pointer %s: %w", key, err)
	}
	return n == 1, nil
}
