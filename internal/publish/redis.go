package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// redisKey is the hash holding digest→reference records.
const redisKey = "mxpack:dedup"

// RedisCache is a Cache backed by a Redis hash, for deployments where
// several import hosts share one dedup record.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(ctx context.Context, addr, password string, db int) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s; %w", addr, err)
	}
	return &RedisCache{client: client}, nil
}

// Get returns the cached reference for the digest, if any.
func (c *RedisCache) Get(ctx context.Context, digest string) (ContentRef, bool, error) {
	data, err := c.client.HGet(ctx, redisKey, digest).Bytes()
	if errors.Is(err, redis.Nil) {
		return ContentRef{}, false, nil
	}
	if err != nil {
		return ContentRef{}, false, fmt.Errorf("redis lookup failed; %w", err)
	}

	var ref ContentRef
	if err := json.Unmarshal(data, &ref); err != nil {
		return ContentRef{}, false, fmt.Errorf("corrupt dedup record for %s; %w", digest, err)
	}
	return ref, true, nil
}

// Put records the reference under its digest.
func (c *RedisCache) Put(ctx context.Context, digest string, ref ContentRef) error {
	data, err := json.Marshal(ref)
	if err != nil {
		return fmt.Errorf("failed to encode dedup record; %w", err)
	}
	if err := c.client.HSet(ctx, redisKey, digest, data).Err(); err != nil {
		return fmt.Errorf("redis write failed; %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
