// Package service provides implementations of domain services that implement core business logic.
// This package depends only on domain models and repository interfaces (not implementations).
package service

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/Amar-Omerika/stake-limit-service/internal/domain/model"
	"github.com/Amar-Omerika/stake-limit-service/internal/domain/repository"
	"github.com/Amar-Omerika/stake-limit-service/internal/domain/useCases"
)

// StakeLimitEvaluator classifies stake tickets against a device's rolling
// limit. It reads configuration through the cache (read-through), appends the
// event to the ledger, sums the trailing window, and applies the ordered
// hot/limit thresholds. All dependencies are injected; the cache may be nil,
// in which case every read goes to the config store.
type StakeLimitEvaluator struct {
	configs repository.ConfigStore
	ledger  repository.StakeLedger
	cache   repository.ConfigCache
	log     *slog.Logger

	// now is swappable for deterministic window tests.
	now func() time.Time
}

// NewStakeLimitEvaluator wires the evaluator with its stores. cache may be nil.
func NewStakeLimitEvaluator(configs repository.ConfigStore, ledger repository.StakeLedger, cache repository.ConfigCache, log *slog.Logger) *StakeLimitEvaluator {
	if log == nil {
		log = slog.Default()
	}
	return &StakeLimitEvaluator{
		configs: configs,
		ledger:  ledger,
		cache:   cache,
		log:     log,
		now:     time.Now,
	}
}

var _ useCases.TicketEvaluator = (*StakeLimitEvaluator)(nil)

// Evaluate processes one ticket and returns its decision. Validation and
// idempotency failures happen before any side effect; a device blocked at
// evaluation time short-circuits without a ledger write.
func (e *StakeLimitEvaluator) Evaluate(ctx context.Context, ticket *model.Ticket) (*model.Decision, error) {
	if err := validateTicket(ticket); err != nil {
		return nil, err
	}

	// Fast-fail on a known duplicate. The ledger insert below is the atomic
	// guard; this check only avoids pointless work for the common case.
	exists, err := e.ledger.ExistsByTicketID(ctx, ticket.TicketID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, model.NewDuplicateTicketError(ticket.TicketID)
	}

	cfg, err := e.resolveConfig(ctx, ticket.DeviceID)
	if err != nil {
		return nil, err
	}

	now := e.now()

	// Active block: report BLOCKED without touching the ledger and without
	// altering blockedUntil. Expired blocks fall through; the stale timestamp
	// is cleared only by configuration update or delete.
	if cfg.Blocked(now) {
		return &model.Decision{
			TicketID:    ticket.TicketID,
			DeviceID:    ticket.DeviceID,
			Amount:      ticket.Amount,
			Status:      model.StatusBlocked,
			EvaluatedAt: now,
		}, nil
	}

	// The ticket's own amount counts toward its own window, so append before
	// aggregating. A failed append aborts the evaluation entirely.
	event := &model.StakeEvent{
		TicketID:  ticket.TicketID,
		DeviceID:  ticket.DeviceID,
		Amount:    ticket.Amount,
		Timestamp: now,
	}
	if err := e.ledger.Insert(ctx, event); err != nil {
		return nil, err
	}

	windowStart := now.Add(-cfg.Window())
	events, err := e.ledger.FindByDeviceSince(ctx, ticket.DeviceID, windowStart)
	if err != nil {
		return nil, err
	}

	var totalStake float64
	for _, ev := range events {
		totalStake += ev.Amount
	}

	status := model.StatusOK
	switch {
	case totalStake >= cfg.StakeLimit:
		status = model.StatusBlocked
		if cfg.CooldownSeconds > 0 {
			if err := e.blockDevice(ctx, cfg, now); err != nil {
				return nil, err
			}
		}
		// Cooldown 0: the device stays blocked by aggregation until an
		// administrative configuration update clears it; no expiry is written.
	case totalStake >= cfg.HotThreshold():
		status = model.StatusHot
	}

	return &model.Decision{
		TicketID:    ticket.TicketID,
		DeviceID:    ticket.DeviceID,
		Amount:      ticket.Amount,
		Status:      status,
		TotalStake:  totalStake,
		EvaluatedAt: now,
	}, nil
}

// resolveConfig reads the device config through the cache, falling back to
// the store and repopulating the cache on a miss.
func (e *StakeLimitEvaluator) resolveConfig(ctx context.Context, deviceID string) (*model.DeviceConfig, error) {
	if e.cache != nil {
		if cfg, ok := e.cache.Get(ctx, deviceID); ok {
			return cfg, nil
		}
	}

	cfg, err := e.configs.FindByDeviceID(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, model.NewDeviceNotFoundError(deviceID)
	}

	if e.cache != nil {
		e.cache.Set(ctx, cfg)
	}
	return cfg, nil
}

// blockDevice stamps blockedUntil in the store and refreshes the cache
// (invalidate-then-repopulate) so no subsequent read can observe an entry
// older than this write. Only the blocking state is written: cfg may be a
// cached snapshot, and persisting it wholesale would revert a configuration
// update that landed after the snapshot was taken.
func (e *StakeLimitEvaluator) blockDevice(ctx context.Context, cfg *model.DeviceConfig, now time.Time) error {
	blockedUntil := now.Add(cfg.Cooldown())

	stored, err := e.configs.SetBlockedUntil(ctx, cfg.DeviceID, blockedUntil)
	if err != nil {
		return err
	}

	if e.cache != nil {
		e.cache.Delete(ctx, cfg.DeviceID)
		e.cache.Set(ctx, stored)
	}

	e.log.Info("device blocked",
		slog.String("deviceId", cfg.DeviceID),
		slog.Time("blockedUntil", blockedUntil))
	return nil
}

func validateTicket(ticket *model.Ticket) error {
	if ticket == nil {
		return model.NewValidationError("ticket", "is required")
	}
	if strings.TrimSpace(ticket.TicketID) == "" {
		return model.NewValidationError("ticketId", "must not be empty")
	}
	if strings.TrimSpace(ticket.DeviceID) == "" {
		return model.NewValidationError("deviceId", "must not be empty")
	}
	if math.IsNaN(ticket.Amount) || math.IsInf(ticket.Amount, 0) {
		return model.NewValidationError("amount", "must be a finite number")
	}
	if ticket.Amount < 0 {
		return model.NewValidationError("amount", "cannot be negative")
	}
	if ticket.Amount > model.MaxStakeAmount {
		return model.NewValidationError("amount", "is too large")
	}
	return nil
}
