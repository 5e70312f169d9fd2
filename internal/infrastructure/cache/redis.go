package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"race-registration/internal/config"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ErrCacheMiss is returned when a key is absent; callers fall through to the
// database and repopulate.
var ErrCacheMiss = fmt.Errorf("cache miss")

// RedisCache fronts read-mostly distance availability snapshots. Capacity
// decisions never read the cache; those happen under row locks in the store.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(addr, password string, db int) *RedisCache {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisCache{
		client: rdb,
	}
}

func NewRedisCacheWithConfig(cfg *config.CacheConfig) *RedisCache {
	return NewRedisCache(fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), cfg.Password, cfg.DB)
}

// GetClient exposes the underlying client for collaborators sharing the
// connection (idempotency repository).
func (r *RedisCache) GetClient() *redis.Client {
	return r.client
}

// DistanceAvailability is the cached read model for a distance listing.
type DistanceAvailability struct {
	DistanceID     uuid.UUID `json:"distance_id"`
	Name           string    `json:"name"`
	Capacity       *int      `json:"capacity"`
	ActiveCount    int64     `json:"active_count"`
	SpotsRemaining *int64    `json:"spots_remaining"`
	Open           bool      `json:"open"`
}

func (r *RedisCache) GetDistanceAvailability(ctx context.Context, distanceID uuid.UUID) (*DistanceAvailability, error) {
	key := distanceAvailabilityKey(distanceID)

	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get distance availability: %w", err)
	}

	var availability DistanceAvailability
	if err := json.Unmarshal([]byte(val), &availability); err != nil {
		return nil, fmt.Errorf("failed to unmarshal distance availability: %w", err)
	}

	return &availability, nil
}

func (r *RedisCache) SetDistanceAvailability(ctx context.Context, availability *DistanceAvailability, ttl time.Duration) error {
	key := distanceAvailabilityKey(availability.DistanceID)

	jsonData, err := json.Marshal(availability)
	if err != nil {
		return fmt.Errorf("failed to marshal distance availability: %w", err)
	}

	if err := r.client.Set(ctx, key, jsonData, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set distance availability: %w", err)
	}

	return nil
}

// InvalidateDistanceAvailability drops the snapshot after a write that
// changes the active count.
func (r *RedisCache) InvalidateDistanceAvailability(ctx context.Context, distanceID uuid.UUID) error {
	return r.Delete(ctx, distanceAvailabilityKey(distanceID))
}

func (r *RedisCache) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}

	return nil
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

func (r *RedisCache) Health(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func distanceAvailabilityKey(distanceID uuid.UUID) string {
	return fmt.Sprintf("distance:availability:%s", distanceID.String())
}
