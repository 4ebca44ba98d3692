package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Amar-Omerika/stake-limit-service/internal/domain/model"
	"github.com/Amar-Omerika/stake-limit-service/internal/domain/service"
	"github.com/Amar-Omerika/stake-limit-service/internal/infrastructure/cache"
	"github.com/Amar-Omerika/stake-limit-service/internal/infrastructure/storage"
)

func validInput() *model.DeviceConfig {
	return &model.DeviceConfig{
		WindowSeconds:   1800,
		StakeLimit:      999,
		HotPercentage:   80,
		CooldownSeconds: 600,
	}
}

func newManagerFixture() (*service.DeviceConfigManager, *storage.MemoryRepository, *cache.MemoryCache) {
	store := storage.NewMemoryRepository()
	memCache := cache.NewMemoryCache(5 * time.Minute)
	return service.NewDeviceConfigManager(store, memCache, nil), store, memCache
}

func TestCreateGeneratesDeviceID(t *testing.T) {
	manager, _, memCache := newManagerFixture()

	created, err := manager.Create(context.Background(), validInput())
	require.NoError(t, err)
	assert.NotEmpty(t, created.DeviceID)
	assert.False(t, created.CreatedAt.IsZero())

	// The cache was populated with the new entry.
	cached, ok := memCache.Get(context.Background(), created.DeviceID)
	require.True(t, ok)
	assert.Equal(t, created.DeviceID, cached.DeviceID)
}

func TestCreateDuplicateDevice(t *testing.T) {
	manager, _, _ := newManagerFixture()

	input := validInput()
	input.DeviceID = "device-001"
	_, err := manager.Create(context.Background(), input)
	require.NoError(t, err)

	_, err = manager.Create(context.Background(), input)
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.KindDuplicateDevice))
}

func TestConfigValidationBounds(t *testing.T) {
	manager, _, _ := newManagerFixture()

	tests := []struct {
		name   string
		mutate func(*model.DeviceConfig)
		field  string
	}{
		{"window too short", func(c *model.DeviceConfig) { c.WindowSeconds = 299 }, "windowSeconds"},
		{"window too long", func(c *model.DeviceConfig) { c.WindowSeconds = 86401 }, "windowSeconds"},
		{"stake limit too low", func(c *model.DeviceConfig) { c.StakeLimit = 0 }, "stakeLimit"},
		{"stake limit too high", func(c *model.DeviceConfig) { c.StakeLimit = 10_000_001 }, "stakeLimit"},
		{"hot percentage too low", func(c *model.DeviceConfig) { c.HotPercentage = 0 }, "hotPercentage"},
		{"hot percentage too high", func(c *model.DeviceConfig) { c.HotPercentage = 101 }, "hotPercentage"},
		{"cooldown below minimum", func(c *model.DeviceConfig) { c.CooldownSeconds = 59 }, "cooldownSeconds"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validInput()
			tt.mutate(input)
			_, err := manager.Create(context.Background(), input)
			require.Error(t, err)
			assert.True(t, model.IsKind(err, model.KindValidation))
			var de *model.Error
			require.ErrorAs(t, err, &de)
			assert.Equal(t, tt.field, de.Field)
		})
	}
}

func TestCooldownZeroIsValid(t *testing.T) {
	manager, _, _ := newManagerFixture()

	input := validInput()
	input.CooldownSeconds = 0
	_, err := manager.Create(context.Background(), input)
	assert.NoError(t, err)
}

func TestUpdateUpsertsAndInvalidatesCache(t *testing.T) {
	manager, store, memCache := newManagerFixture()

	// Upsert semantics: updating an absent device creates it.
	updated, err := manager.Update(context.Background(), "device-007", validInput())
	require.NoError(t, err)
	assert.Equal(t, "device-007", updated.DeviceID)

	// Warm the cache, then update and expect the entry gone.
	_, err = manager.Get(context.Background(), "device-007")
	require.NoError(t, err)
	_, ok := memCache.Get(context.Background(), "device-007")
	require.True(t, ok)

	input := validInput()
	input.StakeLimit = 5000
	_, err = manager.Update(context.Background(), "device-007", input)
	require.NoError(t, err)

	_, ok = memCache.Get(context.Background(), "device-007")
	assert.False(t, ok, "update must invalidate, not repopulate")

	stored, err := store.FindByDeviceID(context.Background(), "device-007")
	require.NoError(t, err)
	assert.Equal(t, float64(5000), stored.StakeLimit)
}

func TestUpdateClearsBlock(t *testing.T) {
	manager, store, _ := newManagerFixture()

	blockedUntil := time.Now().Add(1 * time.Hour)
	cfg := validInput()
	cfg.DeviceID = "device-blocked"
	cfg.BlockedUntil = &blockedUntil
	_, err := store.UpsertByDeviceID(context.Background(), cfg)
	require.NoError(t, err)

	_, err = manager.Update(context.Background(), "device-blocked", validInput())
	require.NoError(t, err)

	stored, err := store.FindByDeviceID(context.Background(), "device-blocked")
	require.NoError(t, err)
	assert.Nil(t, stored.BlockedUntil, "administrative update clears the block")
}

func TestDelete(t *testing.T) {
	manager, _, memCache := newManagerFixture()

	input := validInput()
	input.DeviceID = "device-del"
	_, err := manager.Create(context.Background(), input)
	require.NoError(t, err)

	found, err := manager.Delete(context.Background(), "device-del")
	require.NoError(t, err)
	assert.True(t, found)
	_, ok := memCache.Get(context.Background(), "device-del")
	assert.False(t, ok, "delete must purge the cache entry")

	// Deleting an absent device signals not-found without an error.
	found, err = manager.Delete(context.Background(), "device-del")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestGetNotFound(t *testing.T) {
	manager, _, _ := newManagerFixture()

	_, err := manager.Get(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.KindDeviceNotFound))
}

func TestListPagination(t *testing.T) {
	manager, _, _ := newManagerFixture()

	for _, id := range []string{"dev-a", "dev-b", "dev-c", "dev-d", "dev-e"} {
		input := validInput()
		input.DeviceID = id
		_, err := manager.Create(context.Background(), input)
		require.NoError(t, err)
	}

	page, err := manager.List(context.Background(), model.DeviceFilter{}, model.ListOptions{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), page.Total)
	assert.Len(t, page.Data, 2)
	assert.Equal(t, 3, page.Pages)
	assert.True(t, page.HasNext)
	assert.True(t, page.HasPrev)
	// Default sort is by device id ascending.
	assert.Equal(t, "dev-c", page.Data[0].DeviceID)
	assert.Equal(t, "dev-d", page.Data[1].DeviceID)
}
