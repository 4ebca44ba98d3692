package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Amar-Omerika/stake-limit-service/internal/domain/model"
	"github.com/Amar-Omerika/stake-limit-service/internal/domain/repository"
)

const deviceKeyPrefix = "device:%s"

// RedisRepository implements the ConfigCache interface using Redis as the
// backend. It is strictly best-effort: every backend fault is logged and
// degraded to a cache miss or no-op, so an unreachable Redis never surfaces
// as an error to the evaluator or the config manager.
type RedisRepository struct {
	client  *redis.Client
	ttl     time.Duration
	timeout time.Duration
	log     *slog.Logger
}

// NewRedisRepository connects a ConfigCache to Redis. ttl bounds the maximum
// staleness of an entry that was never explicitly invalidated.
func NewRedisRepository(addr, password string, db int, ttl time.Duration, log *slog.Logger) *RedisRepository {
	if log == nil {
		log = slog.Default()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisRepository{
		client:  client,
		ttl:     ttl,
		timeout: 500 * time.Millisecond,
		log:     log,
	}
}

// Ensure RedisRepository implements the ConfigCache interface
var _ repository.ConfigCache = (*RedisRepository)(nil)

// cachedConfig is the wire form of a cache entry.
type cachedConfig struct {
	DeviceID        string     `json:"deviceId"`
	WindowSeconds   int        `json:"windowSeconds"`
	StakeLimit      float64    `json:"stakeLimit"`
	HotPercentage   int        `json:"hotPercentage"`
	CooldownSeconds int        `json:"cooldownSeconds"`
	BlockedUntil    *time.Time `json:"blockedUntil,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// Get returns the cached config for a device. Misses, expired entries,
// malformed payloads, and backend faults all come back as (nil, false).
func (r *RedisRepository) Get(ctx context.Context, deviceID string) (*model.DeviceConfig, bool) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	key := fmt.Sprintf(deviceKeyPrefix, deviceID)
	data, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			r.log.Warn("cache get failed, treating as miss",
				slog.String("deviceId", deviceID), slog.Any("error", err))
		}
		return nil, false
	}

	var entry cachedConfig
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		r.log.Warn("cache entry malformed, treating as miss",
			slog.String("deviceId", deviceID), slog.Any("error", err))
		return nil, false
	}

	return &model.DeviceConfig{
		DeviceID:        entry.DeviceID,
		WindowSeconds:   entry.WindowSeconds,
		StakeLimit:      entry.StakeLimit,
		HotPercentage:   entry.HotPercentage,
		CooldownSeconds: entry.CooldownSeconds,
		BlockedUntil:    entry.BlockedUntil,
		CreatedAt:       entry.CreatedAt,
		UpdatedAt:       entry.UpdatedAt,
	}, true
}

// Set stores the config with the configured TTL. Best-effort.
func (r *RedisRepository) Set(ctx context.Context, cfg *model.DeviceConfig) {
	if cfg == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	entry := cachedConfig{
		DeviceID:        cfg.DeviceID,
		WindowSeconds:   cfg.WindowSeconds,
		StakeLimit:      cfg.StakeLimit,
		HotPercentage:   cfg.HotPercentage,
		CooldownSeconds: cfg.CooldownSeconds,
		BlockedUntil:    cfg.BlockedUntil,
		CreatedAt:       cfg.CreatedAt,
		UpdatedAt:       cfg.UpdatedAt,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		r.log.Warn("cache marshal failed, skipping set",
			slog.String("deviceId", cfg.DeviceID), slog.Any("error", err))
		return
	}

	key := fmt.Sprintf(deviceKeyPrefix, cfg.DeviceID)
	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		r.log.Warn("cache set failed, skipping",
			slog.String("deviceId", cfg.DeviceID), slog.Any("error", err))
	}
}

// Delete removes the entry for a device. Best-effort.
func (r *RedisRepository) Delete(ctx context.Context, deviceID string) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	key := fmt.Sprintf(deviceKeyPrefix, deviceID)
	if err := r.client.Del(ctx, key).Err(); err != nil {
		r.log.Warn("cache delete failed, skipping",
			slog.String("deviceId", deviceID), slog.Any("error", err))
	}
}

// Ping reports backend reachability. Used by health checks only; cache
// consumers never depend on it.
func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the underlying client.
func (r *RedisRepository) Close() error {
	return r.client.Close()
}
