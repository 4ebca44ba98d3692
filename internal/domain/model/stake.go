package model

import "time"

// MaxStakeAmount caps a single ticket's amount. Mirrors the largest integer a
// JSON number can carry without losing precision (2^53 - 1).
const MaxStakeAmount = float64(1<<53 - 1)

// Ticket is a single stake submission. TicketID doubles as the idempotency key.
type Ticket struct {
	TicketID string
	DeviceID string
	Amount   float64
}

// StakeEvent is one processed ticket in the ledger. Append-only: events are
// never mutated or deleted by this service.
type StakeEvent struct {
	TicketID  string
	DeviceID  string
	Amount    float64
	Timestamp time.Time
}

// Status is the outcome of evaluating a ticket.
type Status string

const (
	StatusOK      Status = "OK"
	StatusHot     Status = "HOT"
	StatusBlocked Status = "BLOCKED"
)

// Decision is the full evaluation outcome. Transports expose only Status;
// the rest feeds the broadcaster and the decision archive.
type Decision struct {
	TicketID    string
	DeviceID    string
	Amount      float64
	Status      Status
	TotalStake  float64
	EvaluatedAt time.Time
}
