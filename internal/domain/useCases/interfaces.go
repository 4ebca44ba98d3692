package useCases

import (
	"context"
	"net/http"

	"github.com/Amar-Omerika/stake-limit-service/internal/domain/model"
)

// TicketEvaluator decides the outcome of a single stake ticket.
type TicketEvaluator interface {
	Evaluate(ctx context.Context, ticket *model.Ticket) (*model.Decision, error)
}

// DeviceService manages device configuration lifecycle.
type DeviceService interface {
	Create(ctx context.Context, input *model.DeviceConfig) (*model.DeviceConfig, error)
	Update(ctx context.Context, deviceID string, input *model.DeviceConfig) (*model.DeviceConfig, error)
	Delete(ctx context.Context, deviceID string) (bool, error)
	Get(ctx context.Context, deviceID string) (*model.DeviceConfig, error)
	List(ctx context.Context, filter model.DeviceFilter, opts model.ListOptions) (*model.DevicePage, error)
}

// Broadcaster defines an interface for pushing decisions to WebSocket/API layers.
type Broadcaster interface {
	BroadcastDecision(d *model.Decision)
	Handler() func(http.ResponseWriter, *http.Request)
}
