package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisStore implements KVStore on top of Redis. JSON documents live in
// plain string keys; indexes map directly onto Redis lists (LPUSH/LRANGE/
// LTRIM), so list semantics match the contract without translation.
type RedisStore struct {
	client *redis.Client
	logger *zap.SugaredLogger
}

// maxValueSize caps a single stored document to keep a misbehaving caller
// from exhausting Redis memory.
const maxValueSize = 10 * 1024 * 1024

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(addr, password string, db, poolSize int, logger *zap.SugaredLogger) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: poolSize,
	})
	return &RedisStore{client: client, logger: logger}
}

// Ping tests the Redis connection.
func (rs *RedisStore) Ping(ctx context.Context) error {
	if err := rs.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Close closes the Redis connection.
func (rs *RedisStore) Close() error {
	return rs.client.Close()
}

// Set stores a JSON-marshaled value at key.
func (rs *RedisStore) Set(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		rs.logger.Errorf("Failed to marshal value for key %s: %v", key, err)
		return err
	}
	if len(data) > maxValueSize {
		rs.logger.Warnf("Value for key %s exceeds size limit (%d bytes), rejecting", key, len(data))
		return fmt.Errorf("value size %d bytes exceeds maximum %d bytes", len(data), maxValueSize)
	}
	if err := rs.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("%w: set %s: %v", ErrUnavailable, key, err)
	}
	return nil
}

// Get retrieves and unmarshals the value at key into dest.
func (rs *RedisStore) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := rs.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return ErrNotFound
		}
		return fmt.Errorf("%w: get %s: %v", ErrUnavailable, key, err)
	}
	if err := json.Unmarshal([]byte(data), dest); err != nil {
		rs.logger.Errorf("Failed to unmarshal value for key %s: %v", key, err)
		return err
	}
	return nil
}

// Delete removes a key.
func (rs *RedisStore) Delete(ctx context.Context, key string) error {
	if err := rs.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%w: del %s: %v", ErrUnavailable, key, err)
	}
	return nil
}

// Keys returns all keys with the given prefix using incremental SCAN so a
// large keyspace never blocks the server.
func (rs *RedisStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := rs.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%w: scan %s: %v", ErrUnavailable, prefix, err)
	}
	return keys, nil
}

// ListPush prepends a value to the list at key.
func (rs *RedisStore) ListPush(ctx context.Context, key, value string) error {
	if err := rs.client.LPush(ctx, key, value).Err(); err != nil {
		return fmt.Errorf("%w: lpush %s: %v", ErrUnavailable, key, err)
	}
	return nil
}

// ListRange returns list entries in [start, stop], newest first.
func (rs *RedisStore) ListRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	vals, err := rs.client.LRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: lrange %s: %v", ErrUnavailable, key, err)
	}
	return vals, nil
}

// ListTrim keeps only the newest max entries of the list at key.
func (rs *RedisStore) ListTrim(ctx context.Context, key string, max int64) error {
	if max <= 0 {
		return rs.Delete(ctx, key)
	}
	if err := rs.client.LTrim(ctx, key, 0, max-1).Err(); err != nil {
		return fmt.Errorf("%w: ltrim %s: %v", ErrUnavailable, key, err)
	}
	return nil
}
