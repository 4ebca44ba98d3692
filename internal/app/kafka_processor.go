package app

import (
	"context"
	"log/slog"

	"github.com/Amar-Omerika/stake-limit-service/internal/domain/model"
	"github.com/Amar-Omerika/stake-limit-service/internal/domain/repository"
	"github.com/Amar-Omerika/stake-limit-service/internal/domain/useCases"
	"github.com/Amar-Omerika/stake-limit-service/internal/infrastructure/queue"
)

// KafkaEventProcessor consumes ticket submissions from Kafka and feeds them
// through the evaluator. Because the producer partitions by device id,
// tickets for one device arrive in order on one partition, so the queue path
// evaluates a given device's tickets serially.
type KafkaEventProcessor struct {
	Consumer    queue.TicketConsumer
	Evaluator   useCases.TicketEvaluator
	Broadcaster useCases.Broadcaster
	Archive     repository.DecisionArchive
	Log         *slog.Logger
}

func NewKafkaEventProcessor(consumer queue.TicketConsumer, evaluator useCases.TicketEvaluator, broadcaster useCases.Broadcaster, archive repository.DecisionArchive, log *slog.Logger) *KafkaEventProcessor {
	if log == nil {
		log = slog.Default()
	}
	return &KafkaEventProcessor{
		Consumer:    consumer,
		Evaluator:   evaluator,
		Broadcaster: broadcaster,
		Archive:     archive,
		Log:         log,
	}
}

// Run starts the Kafka event processor
func (p *KafkaEventProcessor) Run(ctx context.Context) error {
	ticketCh, err := p.Consumer.Subscribe(ctx)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ticket, ok := <-ticketCh:
			if !ok {
				// The consumer closed the stream, on shutdown or after a
				// fetch error. Either way there is nothing left to process.
				p.Log.Info("ticket stream closed, stopping kafka processor")
				return ctx.Err()
			}
			if ticket == nil {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}

			p.processTicket(ctx, ticket)

			// The offset is committed regardless of outcome: the ledger's
			// idempotency guard makes redelivery harmless.
			if err := p.Consumer.Commit(ctx, ticket); err != nil && ctx.Err() == nil {
				p.Log.Error("failed to commit ticket", slog.Any("error", err))
			}
		}
	}
}

func (p *KafkaEventProcessor) processTicket(ctx context.Context, ticket *model.Ticket) {
	decision, err := p.Evaluator.Evaluate(ctx, ticket)
	if err != nil {
		if model.IsKind(err, model.KindDuplicateTicket) {
			p.Log.Debug("skipping duplicate ticket", slog.String("ticketId", ticket.TicketID))
			return
		}
		p.Log.Error("failed to evaluate ticket",
			slog.String("ticketId", ticket.TicketID), slog.Any("error", err))
		return
	}

	if ctx.Err() != nil {
		return
	}

	if p.Archive != nil {
		if err := p.Archive.ArchiveDecision(ctx, decision); err != nil {
			p.Log.Warn("failed to archive decision", slog.Any("error", err))
		}
	}

	if p.Broadcaster != nil {
		p.Broadcaster.BroadcastDecision(decision)
	}
}
