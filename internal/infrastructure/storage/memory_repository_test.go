package storage_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Amar-Omerika/stake-limit-service/internal/domain/model"
	"github.com/Amar-Omerika/stake-limit-service/internal/infrastructure/storage"
)

func TestLedgerInsertIsAtomicUnderConcurrency(t *testing.T) {
	repo := storage.NewMemoryRepository()
	ctx := context.Background()

	// Many concurrent submissions of one ticket id: exactly one may win.
	const workers = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners, losers := 0, 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.Insert(ctx, &model.StakeEvent{
				TicketID:  "same-ticket",
				DeviceID:  "device-1",
				Amount:    10,
				Timestamp: time.Now(),
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				winners++
			} else if model.IsKind(err, model.KindDuplicateTicket) {
				losers++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
	assert.Equal(t, workers-1, losers)
	assert.Equal(t, 1, repo.EventCount("device-1"))
}

func TestFindByDeviceSinceBoundaryInclusive(t *testing.T) {
	repo := storage.NewMemoryRepository()
	ctx := context.Background()
	since := time.Now().Add(-30 * time.Minute)

	require.NoError(t, repo.Insert(ctx, &model.StakeEvent{
		TicketID: "at-boundary", DeviceID: "d1", Amount: 1, Timestamp: since,
	}))
	require.NoError(t, repo.Insert(ctx, &model.StakeEvent{
		TicketID: "before-boundary", DeviceID: "d1", Amount: 2, Timestamp: since.Add(-time.Nanosecond),
	}))
	require.NoError(t, repo.Insert(ctx, &model.StakeEvent{
		TicketID: "other-device", DeviceID: "d2", Amount: 3, Timestamp: since.Add(time.Minute),
	}))

	events, err := repo.FindByDeviceSince(ctx, "d1", since)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "at-boundary", events[0].TicketID)
}

func TestExistsByTicketID(t *testing.T) {
	repo := storage.NewMemoryRepository()
	ctx := context.Background()

	exists, err := repo.ExistsByTicketID(ctx, "t1")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, repo.Insert(ctx, &model.StakeEvent{
		TicketID: "t1", DeviceID: "d1", Amount: 1, Timestamp: time.Now(),
	}))

	exists, err = repo.ExistsByTicketID(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestConfigStoreRoundTrip(t *testing.T) {
	repo := storage.NewMemoryRepository()
	ctx := context.Background()
	now := time.Now()

	cfg := &model.DeviceConfig{
		DeviceID:        "d1",
		WindowSeconds:   3600,
		StakeLimit:      1000,
		HotPercentage:   80,
		CooldownSeconds: 600,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	require.NoError(t, repo.Create(ctx, cfg))

	err := repo.Create(ctx, cfg)
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.KindDuplicateDevice))

	found, err := repo.FindByDeviceID(ctx, "d1")
	require.NoError(t, err)
	require.NotNil(t, found)

	// Returned values are copies; mutating them must not leak into the store.
	found.StakeLimit = 1
	again, err := repo.FindByDeviceID(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, float64(1000), again.StakeLimit)

	deleted, err := repo.DeleteByDeviceID(ctx, "d1")
	require.NoError(t, err)
	assert.True(t, deleted)
	deleted, err = repo.DeleteByDeviceID(ctx, "d1")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestSetBlockedUntilTouchesOnlyBlockingState(t *testing.T) {
	repo := storage.NewMemoryRepository()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, repo.Create(ctx, &model.DeviceConfig{
		DeviceID:        "d1",
		WindowSeconds:   3600,
		StakeLimit:      1000,
		HotPercentage:   80,
		CooldownSeconds: 600,
		CreatedAt:       now,
		UpdatedAt:       now,
	}))

	until := now.Add(10 * time.Minute)
	stored, err := repo.SetBlockedUntil(ctx, "d1", until)
	require.NoError(t, err)
	require.NotNil(t, stored.BlockedUntil)
	assert.True(t, stored.BlockedUntil.Equal(until))
	assert.Equal(t, float64(1000), stored.StakeLimit)

	_, err = repo.SetBlockedUntil(ctx, "ghost", until)
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.KindDeviceNotFound))
}

func TestFindManyFiltersAndSorts(t *testing.T) {
	repo := storage.NewMemoryRepository()
	ctx := context.Background()
	now := time.Now()
	blocked := now.Add(time.Hour)

	configs := []*model.DeviceConfig{
		{DeviceID: "a", WindowSeconds: 3600, StakeLimit: 100, HotPercentage: 80, CooldownSeconds: 600, CreatedAt: now, UpdatedAt: now},
		{DeviceID: "b", WindowSeconds: 3600, StakeLimit: 500, HotPercentage: 80, CooldownSeconds: 600, BlockedUntil: &blocked, CreatedAt: now, UpdatedAt: now},
		{DeviceID: "c", WindowSeconds: 3600, StakeLimit: 900, HotPercentage: 80, CooldownSeconds: 600, CreatedAt: now, UpdatedAt: now},
	}
	for _, cfg := range configs {
		require.NoError(t, repo.Create(ctx, cfg))
	}

	blockedOnly, err := repo.FindMany(ctx, model.DeviceFilter{BlockedOnly: true}, model.ListOptions{Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, blockedOnly, 1)
	assert.Equal(t, "b", blockedOnly[0].DeviceID)

	ranged, err := repo.FindMany(ctx, model.DeviceFilter{MinStakeLimit: 200, MaxStakeLimit: 600}, model.ListOptions{Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, ranged, 1)
	assert.Equal(t, "b", ranged[0].DeviceID)

	desc, err := repo.FindMany(ctx, model.DeviceFilter{}, model.ListOptions{Page: 1, Limit: 10, SortBy: "stakeLimit", SortOrder: "desc"})
	require.NoError(t, err)
	require.Len(t, desc, 3)
	assert.Equal(t, "c", desc[0].DeviceID)

	count, err := repo.Count(ctx, model.DeviceFilter{MinStakeLimit: 400})
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}
