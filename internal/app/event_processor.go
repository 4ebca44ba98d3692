package app

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Amar-Omerika/stake-limit-service/internal/app/dto"
	"github.com/Amar-Omerika/stake-limit-service/internal/domain/model"
	"github.com/Amar-Omerika/stake-limit-service/internal/domain/repository"
	"github.com/Amar-Omerika/stake-limit-service/internal/domain/useCases"
)

// ErrContextCancelled is returned when the context is cancelled during processing
var ErrContextCancelled = errors.New("context cancelled during processing")

// EventProcessor evaluates ticket submissions from a channel, archives the
// outcome, and broadcasts it. Duplicate and validation failures are expected
// traffic and logged at debug level; store failures are errors.
type EventProcessor struct {
	TicketCh    chan *dto.TicketDTO
	Evaluator   useCases.TicketEvaluator
	Broadcaster useCases.Broadcaster
	Archive     repository.DecisionArchive
	Log         *slog.Logger
}

func NewEventProcessor(ticketCh chan *dto.TicketDTO, evaluator useCases.TicketEvaluator, broadcaster useCases.Broadcaster, archive repository.DecisionArchive, log *slog.Logger) *EventProcessor {
	if log == nil {
		log = slog.Default()
	}
	return &EventProcessor{
		TicketCh:    ticketCh,
		Evaluator:   evaluator,
		Broadcaster: broadcaster,
		Archive:     archive,
		Log:         log,
	}
}

func (p *EventProcessor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ticketDto := <-p.TicketCh:
			if err := p.processTicket(ctx, ticketDto); err != nil {
				if errors.Is(err, ErrContextCancelled) {
					p.Log.Info("context cancelled, stopping event processor")
					return ctx.Err()
				}
				// Other errors are just logged but processing continues
				p.Log.Error("error processing ticket", slog.Any("error", err))
			}
		}
	}
}

// processTicket handles a single submission with context cancellation checks.
func (p *EventProcessor) processTicket(ctx context.Context, ticketDto *dto.TicketDTO) error {
	if ctx.Err() != nil {
		return ErrContextCancelled
	}
	if ticketDto == nil {
		return nil
	}

	decision, err := p.Evaluator.Evaluate(ctx, ticketDto.ToModel())
	if err != nil {
		// A duplicate ticket means this submission was already handled,
		// typically a redelivery. Not a fault.
		if model.IsKind(err, model.KindDuplicateTicket) {
			p.Log.Debug("skipping duplicate ticket", slog.String("ticketId", ticketDto.TicketID))
			return nil
		}
		return err
	}

	if ctx.Err() != nil {
		return ErrContextCancelled
	}

	if p.Archive != nil {
		if err := p.Archive.ArchiveDecision(ctx, decision); err != nil {
			// Archive loss costs reporting only; keep processing.
			p.Log.Warn("failed to archive decision", slog.Any("error", err))
		}
	}

	if ctx.Err() != nil {
		return ErrContextCancelled
	}

	if p.Broadcaster != nil {
		p.Broadcaster.BroadcastDecision(decision)
	}

	return nil
}
