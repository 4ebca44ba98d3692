package main

import (
	"context"
	"log"
	"time"

	"github.com/Amar-Omerika/stake-limit-service/config"
	"github.com/Amar-Omerika/stake-limit-service/internal/domain/model"
	"github.com/Amar-Omerika/stake-limit-service/internal/infrastructure/storage"
)

// Seeds the durable store with sample device configurations and stake events
// for local development.
func main() {
	cfg := config.LoadConfig()

	store, err := storage.NewPostgresRepository(storage.PostgresConfig{
		DSN:          cfg.PostgresDSN,
		MaxOpenConns: cfg.PostgresMaxOpenConns,
	})
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	now := time.Now()
	blockedUntil := now.Add(1 * time.Hour)

	devices := []*model.DeviceConfig{
		{
			DeviceID:        "device-001",
			WindowSeconds:   3600,
			StakeLimit:      10000,
			HotPercentage:   80,
			CooldownSeconds: 1800,
			CreatedAt:       now,
			UpdatedAt:       now,
		},
		{
			DeviceID:        "device-002",
			WindowSeconds:   7200,
			StakeLimit:      5000,
			HotPercentage:   70,
			CooldownSeconds: 3600,
			BlockedUntil:    &blockedUntil,
			CreatedAt:       now,
			UpdatedAt:       now,
		},
	}

	for _, d := range devices {
		if _, err := store.UpsertByDeviceID(ctx, d); err != nil {
			log.Fatalf("failed to seed device %s: %v", d.DeviceID, err)
		}
	}

	events := []*model.StakeEvent{
		{TicketID: "log-001", DeviceID: "device-001", Amount: 1000, Timestamp: now},
		{TicketID: "log-002", DeviceID: "device-001", Amount: 2000, Timestamp: now.Add(-1 * time.Hour)},
		{TicketID: "log-003", DeviceID: "device-002", Amount: 1500, Timestamp: now},
	}

	for _, ev := range events {
		if err := store.Insert(ctx, ev); err != nil {
			if model.IsKind(err, model.KindDuplicateTicket) {
				continue // already seeded
			}
			log.Fatalf("failed to seed stake event %s: %v", ev.TicketID, err)
		}
	}

	log.Println("Database seeded successfully!")
}
