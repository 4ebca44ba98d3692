package model

import "time"

// Validation bounds for device configuration fields.
const (
	MinWindowSeconds = 300   // 5 minutes
	MaxWindowSeconds = 86400 // 24 hours

	MinStakeLimit = 1
	MaxStakeLimit = 10_000_000

	MinHotPercentage = 1
	MaxHotPercentage = 100

	// Cooldown is either 0 (block never expires on its own) or at least a minute.
	MinCooldownSeconds = 60
)

// DeviceConfig holds the stake-limit configuration for a single device.
// ConfigStore is the source of truth; cached copies are disposable projections.
type DeviceConfig struct {
	DeviceID        string
	WindowSeconds   int
	StakeLimit      float64
	HotPercentage   int
	CooldownSeconds int
	// BlockedUntil is nil when the device is not blocked. When set it is
	// strictly in the future at write time; expiry is detected by comparison
	// at read time, never by a mutating sweep.
	BlockedUntil *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Blocked reports whether the device is blocked at the given instant.
func (c *DeviceConfig) Blocked(now time.Time) bool {
	return c.BlockedUntil != nil && c.BlockedUntil.After(now)
}

// HotThreshold is the warning band lower bound: stakeLimit * hotPercentage / 100.
// With hotPercentage=100 it equals the limit and HOT becomes unreachable.
func (c *DeviceConfig) HotThreshold() float64 {
	return c.StakeLimit * float64(c.HotPercentage) / 100
}

// Window is the trailing interval over which stakes are summed.
func (c *DeviceConfig) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

// Cooldown is the blocking duration applied once the limit is exceeded.
func (c *DeviceConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownSeconds) * time.Second
}

// Clone returns a copy so cached values cannot be mutated by callers.
func (c *DeviceConfig) Clone() *DeviceConfig {
	cp := *c
	if c.BlockedUntil != nil {
		t := *c.BlockedUntil
		cp.BlockedUntil = &t
	}
	return &cp
}

// DeviceFilter narrows device listings.
type DeviceFilter struct {
	DeviceID      string // exact match when non-empty
	BlockedOnly   bool
	MinStakeLimit float64
	MaxStakeLimit float64
}

// ListOptions carries pagination and sorting for device listings.
type ListOptions struct {
	Page      int
	Limit     int
	SortBy    string
	SortOrder string // "asc" or "desc"
}

// DevicePage is a paginated device listing with metadata.
type DevicePage struct {
	Data    []*DeviceConfig
	Total   int64
	Page    int
	Limit   int
	Pages   int
	HasNext bool
	HasPrev bool
}
