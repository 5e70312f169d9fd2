package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domain "race-registration/internal/domain/registration"

	"github.com/go-redis/redis/v8"
)

var ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")

// RedisIdempotencyRepository stores start-registration responses keyed by the
// client-supplied Idempotency-Key, expiring them after a fixed TTL.
type RedisIdempotencyRepository struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisIdempotencyRepository(client redis.UniversalClient) *RedisIdempotencyRepository {
	return &RedisIdempotencyRepository{
		client: client,
		prefix: "idempotency_key:",
		ttl:    24 * time.Hour,
	}
}

func (r *RedisIdempotencyRepository) Create(ctx context.Context, record *domain.IdempotencyRecord) error {
	redisKey := r.getRedisKey(record.Key)

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal idempotency record: %w", err)
	}

	err = r.client.Set(ctx, redisKey, string(data), r.ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to store idempotency record in Redis: %w", err)
	}

	return nil
}

func (r *RedisIdempotencyRepository) GetByKey(ctx context.Context, key string) (*domain.IdempotencyRecord, error) {
	redisKey := r.getRedisKey(key)

	val, err := r.client.Get(ctx, redisKey).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrIdempotencyKeyNotFound
		}
		return nil, fmt.Errorf("failed to get idempotency record from Redis: %w", err)
	}

	var record domain.IdempotencyRecord
	err = json.Unmarshal([]byte(val), &record)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal idempotency record: %w", err)
	}

	return &record, nil
}

func (r *RedisIdempotencyRepository) Delete(ctx context.Context, key string) error {
	redisKey := r.getRedisKey(key)

	err := r.client.Del(ctx, redisKey).Err()
	if err != nil {
		return fmt.Errorf("failed to delete idempotency record from Redis: %w", err)
	}

	return nil
}

func (r *RedisIdempotencyRepository) getRedisKey(key string) string {
	return r.prefix + key
}
