package app_test

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Amar-Omerika/stake-limit-service/internal/app"
	"github.com/Amar-Omerika/stake-limit-service/internal/app/dto"
	"github.com/Amar-Omerika/stake-limit-service/internal/domain/model"
	"github.com/Amar-Omerika/stake-limit-service/internal/domain/service"
	"github.com/Amar-Omerika/stake-limit-service/internal/infrastructure/cache"
	"github.com/Amar-Omerika/stake-limit-service/internal/infrastructure/storage"
)

type recordingBroadcaster struct {
	mu        sync.Mutex
	decisions []*model.Decision
}

func (b *recordingBroadcaster) BroadcastDecision(d *model.Decision) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.decisions = append(b.decisions, d)
}

func (b *recordingBroadcaster) Handler() func(http.ResponseWriter, *http.Request) {
	return func(http.ResponseWriter, *http.Request) {}
}

func (b *recordingBroadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.decisions)
}

type recordingArchive struct {
	mu        sync.Mutex
	decisions []*model.Decision
}

func (a *recordingArchive) ArchiveDecision(_ context.Context, d *model.Decision) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.decisions = append(a.decisions, d)
	return nil
}

func (a *recordingArchive) FindDecisionsSince(_ context.Context, since time.Time) ([]*model.Decision, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []*model.Decision
	for _, d := range a.decisions {
		if !d.EvaluatedAt.Before(since) {
			out = append(out, d)
		}
	}
	return out, nil
}

func TestEventProcessorEvaluatesAndBroadcasts(t *testing.T) {
	store := storage.NewMemoryRepository()
	memCache := cache.NewMemoryCache(time.Minute)
	now := time.Now()
	require.NoError(t, store.Create(context.Background(), &model.DeviceConfig{
		DeviceID:        "device-1",
		WindowSeconds:   1800,
		StakeLimit:      999,
		HotPercentage:   80,
		CooldownSeconds: 600,
		CreatedAt:       now,
		UpdatedAt:       now,
	}))

	evaluator := service.NewStakeLimitEvaluator(store, store, memCache, nil)
	broadcaster := &recordingBroadcaster{}
	archive := &recordingArchive{}

	ticketCh := make(chan *dto.TicketDTO, 10)
	processor := app.NewEventProcessor(ticketCh, evaluator, broadcaster, archive, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = processor.Run(ctx)
		close(done)
	}()

	ticketCh <- &dto.TicketDTO{TicketID: "t1", DeviceID: "device-1", Amount: 100}
	ticketCh <- &dto.TicketDTO{TicketID: "t2", DeviceID: "device-1", Amount: 200}
	// Redelivery of t1: the idempotency guard absorbs it without an error.
	ticketCh <- &dto.TicketDTO{TicketID: "t1", DeviceID: "device-1", Amount: 100}

	require.Eventually(t, func() bool {
		return broadcaster.count() == 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done

	assert.Equal(t, 2, store.EventCount("device-1"))

	archived, err := archive.FindDecisionsSince(context.Background(), now.Add(-time.Minute))
	require.NoError(t, err)
	assert.Len(t, archived, 2)
}

func TestEventProcessorStopsOnContextCancel(t *testing.T) {
	store := storage.NewMemoryRepository()
	evaluator := service.NewStakeLimitEvaluator(store, store, nil, nil)
	processor := app.NewEventProcessor(make(chan *dto.TicketDTO), evaluator, &recordingBroadcaster{}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := processor.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
