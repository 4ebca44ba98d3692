package utils

import (
	"github.com/google/uuid"

	"github.com/Amar-Omerika/stake-limit-service/internal/domain/model"
)

// TicketGenerator provides methods to generate test ticket data
type TicketGenerator struct {
	deviceIDs []string
}

// NewTicketGenerator creates a generator submitting against the given devices.
func NewTicketGenerator(deviceIDs []string) *TicketGenerator {
	if len(deviceIDs) == 0 {
		deviceIDs = []string{"device-001", "device-002", "device-003"}
	}
	return &TicketGenerator{deviceIDs: deviceIDs}
}

// GenerateTickets creates a specified number of test ticket submissions
func (g *TicketGenerator) GenerateTickets(count int) []*model.Ticket {
	stakes := []float64{50, 100, 200, 250, 500, 750, 1000}

	tickets := make([]*model.Ticket, count)
	for i := 0; i < count; i++ {
		tickets[i] = &model.Ticket{
			TicketID: uuid.New().String(),
			DeviceID: g.deviceIDs[i%len(g.deviceIDs)],
			Amount:   stakes[i%len(stakes)],
		}
	}
	return tickets
}
