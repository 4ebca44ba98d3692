package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Amar-Omerika/stake-limit-service/internal/app/dto"
	"github.com/Amar-Omerika/stake-limit-service/internal/domain/model"
)

// KafkaConfig holds Kafka connection configuration
type KafkaConfig struct {
	Brokers       []string
	Topic         string
	ConsumerGroup string
	BatchSize     int
	BatchTimeout  int
}

// TicketProducer defines interface for producing ticket submissions
type TicketProducer interface {
	PublishTicket(ctx context.Context, ticket *model.Ticket) error
	Close() error
}

// TicketConsumer defines interface for consuming ticket submissions
type TicketConsumer interface {
	Subscribe(ctx context.Context) (<-chan *model.Ticket, error)
	Commit(ctx context.Context, ticket *model.Ticket) error
	Close() error
}

// KafkaProducer implements TicketProducer using Kafka
type KafkaProducer struct {
	writer *kafka.Writer
}

// NewKafkaProducer creates a new Kafka producer. Tickets are keyed by device
// id, so all tickets for one device land on one partition and are consumed in
// order: the queue path serializes per-device evaluation.
func NewKafkaProducer(config KafkaConfig) *KafkaProducer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Topic:        config.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
	return &KafkaProducer{writer: writer}
}

// PublishTicket sends a ticket submission to Kafka
func (p *KafkaProducer) PublishTicket(ctx context.Context, ticket *model.Ticket) error {
	data, err := json.Marshal(dto.TicketFromModel(ticket))
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ticket.DeviceID),
		Value: data,
		Time:  time.Now(),
	})
}

// PublishTicketBatch sends a batch of ticket submissions to Kafka
func (p *KafkaProducer) PublishTicketBatch(ctx context.Context, tickets []*dto.TicketDTO) error {
	msgSlice := make([]kafka.Message, len(tickets))
	for i, ticket := range tickets {
		data, err := json.Marshal(ticket)
		if err != nil {
			return err
		}
		msgSlice[i] = kafka.Message{
			Key:   []byte(ticket.DeviceID),
			Value: data,
			Time:  time.Now(),
		}
	}
	return p.writer.WriteMessages(ctx, msgSlice...)
}

// Close closes the producer
func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

// KafkaConsumer implements TicketConsumer using Kafka
type KafkaConsumer struct {
	reader        *kafka.Reader
	topic         string
	pendingMsgs   map[string]kafka.Message // Map of ticket ID to Kafka message
	pendingMsgsMu sync.RWMutex
	batchSize     int
	batchTimeout  time.Duration
}

// NewKafkaConsumer creates a new Kafka consumer with manual offset commits,
// so a ticket's offset is only committed once it has been evaluated.
func NewKafkaConsumer(config KafkaConfig) *KafkaConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        config.Brokers,
		Topic:          config.Topic,
		GroupID:        config.ConsumerGroup,
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		CommitInterval: 0,    // Disable auto commit - we'll handle this manually
		StartOffset:    kafka.FirstOffset,
	})

	return &KafkaConsumer{
		reader:       reader,
		topic:        config.Topic,
		pendingMsgs:  make(map[string]kafka.Message),
		batchSize:    config.BatchSize,
		batchTimeout: time.Duration(config.BatchTimeout) * time.Millisecond,
	}
}

// Subscribe returns a channel of ticket submissions from Kafka
func (c *KafkaConsumer) Subscribe(ctx context.Context) (<-chan *model.Ticket, error) {
	ticketCh := make(chan *model.Ticket, 1000) // Buffer to handle bursts

	go c.startBatchCommitter(ctx)

	go func() {
		defer close(ticketCh)

		for {
			select {
			case <-ctx.Done():
				return
			default:
				msg, err := c.reader.FetchMessage(ctx)
				if err != nil {
					if ctx.Err() == nil {
						log.Printf("Error fetching message: %v", err)
					}
					return
				}

				var t dto.TicketDTO
				if err := json.Unmarshal(msg.Value, &t); err != nil {
					log.Printf("Error unmarshalling ticket: %v", err)
					// Commit bad messages to avoid getting stuck
					_ = c.reader.CommitMessages(ctx, msg)
					continue
				}
				ticket := t.ToModel()

				if ticket.TicketID == "" {
					ticket.TicketID = fmt.Sprintf("%s-%d-%d", ticket.DeviceID, msg.Partition, msg.Offset)
				}

				c.pendingMsgsMu.Lock()
				c.pendingMsgs[ticket.TicketID] = msg
				pendingCount := len(c.pendingMsgs)
				c.pendingMsgsMu.Unlock()

				if pendingCount > c.batchSize*10 {
					log.Printf("Warning: Large number of uncommitted messages: %d, batchSize is %d", pendingCount, c.batchSize)
				}

				select {
				case <-ctx.Done():
					return
				case ticketCh <- ticket:
					// Offset commit happens in Commit() or the batch committer.
				}
			}
		}
	}()

	return ticketCh, nil
}

// startBatchCommitter periodically commits pending offsets in batches
func (c *KafkaConsumer) startBatchCommitter(ctx context.Context) {
	ticker := time.NewTicker(c.batchTimeout)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Final commit with a fresh context, the original is canceled.
			c.commitAllPending(context.Background())
			return
		case <-ticker.C:
			c.commitAllPending(ctx)
		}
	}
}

func (c *KafkaConsumer) commitAllPending(ctx context.Context) {
	c.pendingMsgsMu.Lock()
	defer c.pendingMsgsMu.Unlock()

	if len(c.pendingMsgs) == 0 {
		return
	}

	msgs := make([]kafka.Message, 0, len(c.pendingMsgs))
	for _, msg := range c.pendingMsgs {
		msgs = append(msgs, msg)
	}

	if err := c.reader.CommitMessages(ctx, msgs...); err != nil {
		log.Printf("Error committing batch of %d messages: %v", len(msgs), err)
		return
	}

	c.pendingMsgs = make(map[string]kafka.Message)
}

// Commit acknowledges that a ticket has been evaluated
func (c *KafkaConsumer) Commit(ctx context.Context, ticket *model.Ticket) error {
	if ticket == nil || ticket.TicketID == "" {
		return fmt.Errorf("cannot commit nil ticket or ticket with empty ID")
	}

	c.pendingMsgsMu.Lock()
	msg, exists := c.pendingMsgs[ticket.TicketID]
	if !exists {
		c.pendingMsgsMu.Unlock()
		return fmt.Errorf("message for ticket %s not found in pending messages", ticket.TicketID)
	}

	shouldBatchCommit := len(c.pendingMsgs) >= c.batchSize

	if !shouldBatchCommit {
		delete(c.pendingMsgs, ticket.TicketID)
		c.pendingMsgsMu.Unlock()

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			return fmt.Errorf("failed to commit message for ticket %s: %w", ticket.TicketID, err)
		}
		return nil
	}

	c.pendingMsgsMu.Unlock()
	c.commitAllPending(ctx)
	return nil
}

// Close closes the consumer
func (c *KafkaConsumer) Close() error {
	c.commitAllPending(context.Background())
	return c.reader.Close()
}
