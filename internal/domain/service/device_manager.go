package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Amar-Omerika/stake-limit-service/internal/domain/model"
	"github.com/Amar-Omerika/stake-limit-service/internal/domain/repository"
	"github.com/Amar-Omerika/stake-limit-service/internal/domain/useCases"
)

// DeviceConfigManager validates and mutates device configuration. Every write
// invalidates the cache entry in the same logical operation as the store
// write, so evaluators never observe stale limit or blocking state.
type DeviceConfigManager struct {
	configs repository.ConfigStore
	cache   repository.ConfigCache
	log     *slog.Logger
}

// NewDeviceConfigManager wires the manager with its store and optional cache.
func NewDeviceConfigManager(configs repository.ConfigStore, cache repository.ConfigCache, log *slog.Logger) *DeviceConfigManager {
	if log == nil {
		log = slog.Default()
	}
	return &DeviceConfigManager{configs: configs, cache: cache, log: log}
}

var _ useCases.DeviceService = (*DeviceConfigManager)(nil)

// Create stores a new device configuration. A missing device id is generated;
// a supplied one that already exists fails with a duplicate-device error. The
// cache is populated with the fresh entry.
func (m *DeviceConfigManager) Create(ctx context.Context, input *model.DeviceConfig) (*model.DeviceConfig, error) {
	if input == nil {
		return nil, model.NewValidationError("config", "is required")
	}
	if err := validateConfig(input); err != nil {
		return nil, err
	}

	cfg := input.Clone()
	cfg.BlockedUntil = nil
	if strings.TrimSpace(cfg.DeviceID) == "" {
		cfg.DeviceID = uuid.New().String()
	}
	now := time.Now()
	cfg.CreatedAt = now
	cfg.UpdatedAt = now

	if err := m.configs.Create(ctx, cfg); err != nil {
		return nil, err
	}

	if m.cache != nil {
		m.cache.Set(ctx, cfg)
	}

	m.log.Info("device configuration created", slog.String("deviceId", cfg.DeviceID))
	return cfg, nil
}

// Update applies upsert semantics: absent devices are created, existing ones
// have their mutable fields replaced. Any standing block is cleared, which is
// the administrative path out of a cooldown-0 block. The cache entry is
// invalidated but not repopulated, since the caller may immediately update
// again; the next read pulls a fresh value.
func (m *DeviceConfigManager) Update(ctx context.Context, deviceID string, input *model.DeviceConfig) (*model.DeviceConfig, error) {
	if strings.TrimSpace(deviceID) == "" {
		return nil, model.NewValidationError("deviceId", "must not be empty")
	}
	if input == nil {
		return nil, model.NewValidationError("config", "is required")
	}
	if err := validateConfig(input); err != nil {
		return nil, err
	}

	cfg := input.Clone()
	cfg.DeviceID = deviceID
	cfg.BlockedUntil = nil
	cfg.UpdatedAt = time.Now()

	stored, err := m.configs.UpsertByDeviceID(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if m.cache != nil {
		m.cache.Delete(ctx, deviceID)
	}

	m.log.Info("device configuration updated", slog.String("deviceId", deviceID))
	return stored, nil
}

// Delete removes the configuration and purges the cache entry. The bool
// reports whether the device existed; callers translate false to not-found.
func (m *DeviceConfigManager) Delete(ctx context.Context, deviceID string) (bool, error) {
	if strings.TrimSpace(deviceID) == "" {
		return false, model.NewValidationError("deviceId", "must not be empty")
	}

	found, err := m.configs.DeleteByDeviceID(ctx, deviceID)
	if err != nil {
		return false, err
	}

	if m.cache != nil {
		m.cache.Delete(ctx, deviceID)
	}

	if found {
		m.log.Info("device configuration deleted", slog.String("deviceId", deviceID))
	}
	return found, nil
}

// Get reads one configuration through the cache (read-through).
func (m *DeviceConfigManager) Get(ctx context.Context, deviceID string) (*model.DeviceConfig, error) {
	if strings.TrimSpace(deviceID) == "" {
		return nil, model.NewValidationError("deviceId", "must not be empty")
	}

	if m.cache != nil {
		if cfg, ok := m.cache.Get(ctx, deviceID); ok {
			return cfg, nil
		}
	}

	cfg, err := m.configs.FindByDeviceID(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, model.NewDeviceNotFoundError(deviceID)
	}

	if m.cache != nil {
		m.cache.Set(ctx, cfg)
	}
	return cfg, nil
}

// List returns a paginated device listing. Listings bypass the cache: they are
// multi-key, filtered reads whose invalidation would need its own scheme.
func (m *DeviceConfigManager) List(ctx context.Context, filter model.DeviceFilter, opts model.ListOptions) (*model.DevicePage, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit < 1 {
		opts.Limit = 10
	}

	devices, err := m.configs.FindMany(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	total, err := m.configs.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	pages := int((total + int64(opts.Limit) - 1) / int64(opts.Limit))
	return &model.DevicePage{
		Data:    devices,
		Total:   total,
		Page:    opts.Page,
		Limit:   opts.Limit,
		Pages:   pages,
		HasNext: opts.Page < pages,
		HasPrev: opts.Page > 1,
	}, nil
}

func validateConfig(cfg *model.DeviceConfig) error {
	if cfg.WindowSeconds < model.MinWindowSeconds || cfg.WindowSeconds > model.MaxWindowSeconds {
		return model.NewValidationError("windowSeconds",
			fmt.Sprintf("must be between %d and %d", model.MinWindowSeconds, model.MaxWindowSeconds))
	}
	if cfg.StakeLimit < model.MinStakeLimit || cfg.StakeLimit > model.MaxStakeLimit {
		return model.NewValidationError("stakeLimit",
			fmt.Sprintf("must be between %d and %d", model.MinStakeLimit, model.MaxStakeLimit))
	}
	if cfg.HotPercentage < model.MinHotPercentage || cfg.HotPercentage > model.MaxHotPercentage {
		return model.NewValidationError("hotPercentage",
			fmt.Sprintf("must be between %d and %d", model.MinHotPercentage, model.MaxHotPercentage))
	}
	if cfg.CooldownSeconds != 0 && cfg.CooldownSeconds < model.MinCooldownSeconds {
		return model.NewValidationError("cooldownSeconds",
			fmt.Sprintf("must be 0 (never expires) or at least %d", model.MinCooldownSeconds))
	}
	return nil
}
