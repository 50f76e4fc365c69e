package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const scanBatch = 100

// RedisCache keeps entries in Redis under a shared namespace prefix.
type RedisCache struct {
	client     *redis.Client
	namespace  string
	defaultTTL time.Duration
}

func NewRedisCache(client *redis.Client, namespace string, defaultTTL time.Duration) *RedisCache {
	return &RedisCache{
		client:     client,
		namespace:  namespace,
		defaultTTL: defaultTTL,
	}
}

func (c *RedisCache) Get(ctx context.Context, key string) (Lookup, error) {
	data, err := c.client.Get(ctx, c.namespace+key).Bytes()
	if err == redis.Nil {
		return Lookup{}, nil
	} else if err != nil {
		return Lookup{}, fmt.Errorf("%w: redis get failed: %v", ErrUnavailable, err)
	}
	return Lookup{Value: data, Hit: true}, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	if err := c.client.Set(ctx, c.namespace+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: redis set failed: %v", ErrUnavailable, err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.namespace+key).Err(); err != nil {
		return fmt.Errorf("%w: redis del failed: %v", ErrUnavailable, err)
	}
	return nil
}

// Flush removes every key under the namespace using SCAN, so other tenants of the server are untouched.
func (c *RedisCache) Flush(ctx context.Context) error {
	keys, err := c.scanNamespace(ctx)
	if err != nil {
		return err
	}
	for start := 0; start < len(keys); start += scanBatch {
		end := start + scanBatch
		if end > len(keys) {
			end = len(keys)
		}
		if err := c.client.Del(ctx, keys[start:end]...).Err(); err != nil {
			return fmt.Errorf("%w: failed to delete cached keys: %v", ErrUnavailable, err)
		}
	}
	return nil
}

func (c *RedisCache) Info(ctx context.Context) (Info, error) {
	info := Info{Backend: "redis", DefaultTTL: c.defaultTTL}
	if err := c.client.Ping(ctx).Err(); err != nil {
		return info, nil
	}
	info.Available = true

	keys, err := c.scanNamespace(ctx)
	if err != nil {
		return info, err
	}
	info.Items = int64(len(keys))
	return info, nil
}

func (c *RedisCache) scanNamespace(ctx context.Context) ([]string, error) {
	var keys []string
	iter := c.client.Scan(ctx, 0, c.namespace+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: scan failed for namespace %s: %v", ErrUnavailable, c.namespace, err)
	}
	return keys, nil
}
