package iocache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/huangsam/vegchange/internal/contract"
	"github.com/huangsam/vegchange/schema"
	"github.com/redis/go-redis/v9"
)

// redisKeyPrefix namespaces every key this store writes.
const redisKeyPrefix = "vegchange:ephemeral:"

// RedisEphemeralStore shares presentation values between processes through Redis.
// Each entry is a hash of value and timestamp with a key expiry equal to the TTL.
type RedisEphemeralStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ contract.EphemeralStore = &RedisEphemeralStore{} // Compile-time check

// NewRedisEphemeralStore connects to addr, which may be a redis:// URL or host:port.
func NewRedisEphemeralStore(ctx context.Context, addr string, ttl time.Duration) (*RedisEphemeralStore, error) {
	var opts *redis.Options
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: addr}
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}
	return &RedisEphemeralStore{client: client, ttl: ttl}, nil
}

// Get implements the EphemeralStore interface.
func (s *RedisEphemeralStore) Get(ctx context.Context, key string) ([]byte, int64, error) {
	vals, err := s.client.HMGet(ctx, redisKeyPrefix+key, "value", "ts").Result()
	if err != nil {
		return nil, 0, err
	}
	value, ok1 := vals[0].(string)
	rawTs, ok2 := vals[1].(string)
	if !ok1 || !ok2 {
		return nil, 0, contract.ErrCacheMiss
	}
	ts, err := strconv.ParseInt(rawTs, 10, 64)
	if err != nil {
		return nil, 0, fmt.Errorf("corrupt timestamp for %s: %w", key, err)
	}
	return []byte(value), ts, nil
}

// Set implements the EphemeralStore interface.
func (s *RedisEphemeralStore) Set(ctx context.Context, key string, value []byte, timestamp int64) error {
	full := redisKeyPrefix + key
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, full, "value", value, "ts", timestamp)
		if s.ttl > 0 {
			pipe.Expire(ctx, full, s.ttl)
		}
		return nil
	})
	return err
}

// keys returns every key under the store prefix.
func (s *RedisEphemeralStore) keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	return keys, iter.Err()
}

// GetStatus implements the EphemeralStore interface.
func (s *RedisEphemeralStore) GetStatus(ctx context.Context) (schema.EphemeralStatus, error) {
	status := schema.EphemeralStatus{Backend: string(schema.RedisEphemeral), TTL: s.ttl}
	if err := s.client.Ping(ctx).Err(); err != nil {
		return status, nil
	}
	status.Connected = true

	keys, err := s.keys(ctx)
	if err != nil {
		return status, fmt.Errorf("failed to scan ephemeral keys: %w", err)
	}
	status.TotalEntries = len(keys)
	return status, nil
}

// Clear implements the EphemeralStore interface.
func (s *RedisEphemeralStore) Clear(ctx context.Context) error {
	keys, err := s.keys(ctx)
	if err != nil {
		return fmt.Errorf("failed to scan ephemeral keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

// Close implements the EphemeralStore interface.
func (s *RedisEphemeralStore) Close() error {
	if err := s.client.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
		return err
	}
	return nil
}
