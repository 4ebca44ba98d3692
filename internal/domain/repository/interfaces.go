// Package repository defines all the repository interfaces used by domain services.
// Following the dependency inversion principle, domain logic depends on these interfaces,
// and infrastructure implementations provide concrete implementations.
package repository

import (
	"context"
	"time"

	"github.com/Amar-Omerika/stake-limit-service/internal/domain/model"
)

// ConfigStore is the durable, authoritative store of device configuration.
// Failures here are fatal to the operation and must propagate as
// model.KindStoreUnavailable errors.
type ConfigStore interface {
	// FindByDeviceID returns the config, or (nil, nil) when the device is absent.
	FindByDeviceID(ctx context.Context, deviceID string) (*model.DeviceConfig, error)

	// Create inserts a new config and fails with model.KindDuplicateDevice
	// when the device id already exists.
	Create(ctx context.Context, cfg *model.DeviceConfig) error

	// UpsertByDeviceID replaces the config for the device, creating it when
	// absent, and returns the stored value.
	UpsertByDeviceID(ctx context.Context, cfg *model.DeviceConfig) (*model.DeviceConfig, error)

	// SetBlockedUntil stamps only the blocking state, leaving every other
	// field untouched so a concurrent configuration write is never reverted
	// from a stale snapshot. Returns the stored config; absent devices fail
	// with model.KindDeviceNotFound.
	SetBlockedUntil(ctx context.Context, deviceID string, until time.Time) (*model.DeviceConfig, error)

	// DeleteByDeviceID removes the config. The bool reports whether a config
	// existed; deleting an absent device is not an error.
	DeleteByDeviceID(ctx context.Context, deviceID string) (bool, error)

	// FindMany returns configs matching the filter with sorting and pagination.
	FindMany(ctx context.Context, filter model.DeviceFilter, opts model.ListOptions) ([]*model.DeviceConfig, error)

	// Count returns the number of configs matching the filter.
	Count(ctx context.Context, filter model.DeviceFilter) (int64, error)
}

// StakeLedger is the append-only store of processed stake events and the sole
// source of truth for stake history.
type StakeLedger interface {
	// Insert appends the event if-and-only-if its ticket id is unused. The
	// insert is atomic: two concurrent inserts of the same ticket id yield
	// exactly one ledger row, the loser failing with model.KindDuplicateTicket.
	Insert(ctx context.Context, event *model.StakeEvent) error

	// ExistsByTicketID reports whether a ticket id has already been recorded.
	// Used as a fast-fail precondition; Insert remains the race-safe guard.
	ExistsByTicketID(ctx context.Context, ticketID string) (bool, error)

	// FindByDeviceSince returns all events for the device with
	// timestamp >= since (boundary inclusive).
	FindByDeviceSince(ctx context.Context, deviceID string, since time.Time) ([]*model.StakeEvent, error)
}

// ConfigCache is a best-effort TTL cache in front of ConfigStore. It is never
// the source of truth: every method must be safe to call when the backend is
// unreachable. Faults degrade to a miss or no-op and are logged, never
// returned, so callers do not branch on cache health.
type ConfigCache interface {
	// Get returns the cached config and true on a hit. A miss, an expired
	// entry, or any backend fault returns (nil, false).
	Get(ctx context.Context, deviceID string) (*model.DeviceConfig, bool)

	// Set stores the config with the cache's TTL. Best-effort.
	Set(ctx context.Context, cfg *model.DeviceConfig)

	// Delete removes the entry. Best-effort; writers of DeviceConfig must call
	// it in the same logical operation as the store write.
	Delete(ctx context.Context, deviceID string)
}

// DecisionArchive is an optional append-only sink of evaluation outcomes for
// offline analysis. Implementations may drop writes on failure.
type DecisionArchive interface {
	// ArchiveDecision records one evaluation outcome.
	ArchiveDecision(ctx context.Context, d *model.Decision) error

	// FindDecisionsSince returns archived outcomes with evaluatedAt >= since.
	FindDecisionsSince(ctx context.Context, since time.Time) ([]*model.Decision, error)
}
