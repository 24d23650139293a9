package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSnapshots shares catalog snapshots between storefront replicas.
type RedisSnapshots struct {
	client *redis.Client
}

func NewRedisSnapshots(client *redis.Client) *RedisSnapshots {
	return &RedisSnapshots{client: client}
}

func (r *RedisSnapshots) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, snapshotKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return data, nil
}

func (r *RedisSnapshots) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, snapshotKey(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisSnapshots) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, snapshotKey(key)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// RedisLedger makes the at-most-once status query hold across restarts and replicas.
type RedisLedger struct {
	client    *redis.Client
	retention time.Duration
}

func NewRedisLedger(client *redis.Client, retention time.Duration) *RedisLedger {
	return &RedisLedger{client: client, retention: retention}
}

func (r *RedisLedger) MarkConsumed(ctx context.Context, sessionID string) (bool, error) {
	first, err := r.client.SetNX(ctx, ledgerKey(sessionID), time.Now().UTC().Format(time.RFC3339), r.retention).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx failed: %w", err)
	}
	return first, nil
}

func snapshotKey(key string) string {
	return fmt.Sprintf("storefront:snapshot:%s", key)
}

func ledgerKey(sessionID string) string {
	return fmt.Sprintf("storefront:checkout:consumed:%s", sessionID)
}
