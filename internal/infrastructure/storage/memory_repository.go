package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Amar-Omerika/stake-limit-service/internal/domain/model"
	"github.com/Amar-Omerika/stake-limit-service/internal/domain/repository"
)

// MemoryRepository is an in-memory implementation of ConfigStore and
// StakeLedger. It backs tests and lets the service run without a database.
// The single mutex makes the ledger insert an atomic insert-if-absent.
type MemoryRepository struct {
	mu      sync.RWMutex
	configs map[string]*model.DeviceConfig
	events  map[string]*model.StakeEvent // keyed by ticket id
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		configs: make(map[string]*model.DeviceConfig),
		events:  make(map[string]*model.StakeEvent),
	}
}

// Ensure MemoryRepository implements both required interfaces
var _ repository.ConfigStore = (*MemoryRepository)(nil)
var _ repository.StakeLedger = (*MemoryRepository)(nil)

// ConfigStore interface implementation

func (r *MemoryRepository) FindByDeviceID(ctx context.Context, deviceID string) (*model.DeviceConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[deviceID]
	if !ok {
		return nil, nil
	}
	return cfg.Clone(), nil
}

func (r *MemoryRepository) Create(ctx context.Context, cfg *model.DeviceConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.configs[cfg.DeviceID]; exists {
		return model.NewDuplicateDeviceError(cfg.DeviceID)
	}
	r.configs[cfg.DeviceID] = cfg.Clone()
	return nil
}

func (r *MemoryRepository) UpsertByDeviceID(ctx context.Context, cfg *model.DeviceConfig) (*model.DeviceConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := cfg.Clone()
	if existing, ok := r.configs[cfg.DeviceID]; ok {
		stored.CreatedAt = existing.CreatedAt
	} else if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = time.Now()
	}
	r.configs[cfg.DeviceID] = stored
	return stored.Clone(), nil
}

// SetBlockedUntil updates only the blocking state of the stored config.
func (r *MemoryRepository) SetBlockedUntil(ctx context.Context, deviceID string, until time.Time) (*model.DeviceConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.configs[deviceID]
	if !ok {
		return nil, model.NewDeviceNotFoundError(deviceID)
	}
	t := until
	cfg.BlockedUntil = &t
	cfg.UpdatedAt = time.Now()
	return cfg.Clone(), nil
}

func (r *MemoryRepository) DeleteByDeviceID(ctx context.Context, deviceID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.configs[deviceID]; !ok {
		return false, nil
	}
	delete(r.configs, deviceID)
	return true, nil
}

func (r *MemoryRepository) FindMany(ctx context.Context, filter model.DeviceFilter, opts model.ListOptions) ([]*model.DeviceConfig, error) {
	r.mu.RLock()
	matched := r.matchConfigs(filter)
	r.mu.RUnlock()

	sortConfigs(matched, opts)

	if opts.Limit <= 0 {
		opts.Limit = 10
	}
	if opts.Page <= 0 {
		opts.Page = 1
	}
	start := (opts.Page - 1) * opts.Limit
	if start >= len(matched) {
		return nil, nil
	}
	end := start + opts.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], nil
}

func (r *MemoryRepository) Count(ctx context.Context, filter model.DeviceFilter) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.matchConfigs(filter))), nil
}

// matchConfigs assumes the lock is held.
func (r *MemoryRepository) matchConfigs(filter model.DeviceFilter) []*model.DeviceConfig {
	now := time.Now()
	var matched []*model.DeviceConfig
	for _, cfg := range r.configs {
		if filter.DeviceID != "" && cfg.DeviceID != filter.DeviceID {
			continue
		}
		if filter.MinStakeLimit > 0 && cfg.StakeLimit < filter.MinStakeLimit {
			continue
		}
		if filter.MaxStakeLimit > 0 && cfg.StakeLimit > filter.MaxStakeLimit {
			continue
		}
		if filter.BlockedOnly && !cfg.Blocked(now) {
			continue
		}
		matched = append(matched, cfg.Clone())
	}
	return matched
}

func sortConfigs(configs []*model.DeviceConfig, opts model.ListOptions) {
	desc := opts.SortOrder == "desc"
	sort.Slice(configs, func(i, j int) bool {
		a, b := configs[i], configs[j]
		var less bool
		switch opts.SortBy {
		case "stakeLimit":
			less = a.StakeLimit < b.StakeLimit
		case "windowSeconds":
			less = a.WindowSeconds < b.WindowSeconds
		case "createdAt":
			less = a.CreatedAt.Before(b.CreatedAt)
		case "updatedAt":
			less = a.UpdatedAt.Before(b.UpdatedAt)
		default:
			less = strings.Compare(a.DeviceID, b.DeviceID) < 0
		}
		if desc {
			return !less
		}
		return less
	})
}

// StakeLedger interface implementation

func (r *MemoryRepository) Insert(ctx context.Context, event *model.StakeEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.events[event.TicketID]; exists {
		return model.NewDuplicateTicketError(event.TicketID)
	}
	ev := *event
	r.events[event.TicketID] = &ev
	return nil
}

func (r *MemoryRepository) ExistsByTicketID(ctx context.Context, ticketID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.events[ticketID]
	return exists, nil
}

func (r *MemoryRepository) FindByDeviceSince(ctx context.Context, deviceID string, since time.Time) ([]*model.StakeEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var results []*model.StakeEvent
	for _, ev := range r.events {
		if ev.DeviceID != deviceID {
			continue
		}
		// Boundary inclusive: an event exactly at the window start counts.
		if ev.Timestamp.Before(since) {
			continue
		}
		cp := *ev
		results = append(results, &cp)
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Timestamp.Before(results[j].Timestamp)
	})
	return results, nil
}

// EventCount reports the number of ledger entries for a device. Test helper.
func (r *MemoryRepository) EventCount(deviceID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, ev := range r.events {
		if ev.DeviceID == deviceID {
			n++
		}
	}
	return n
}
