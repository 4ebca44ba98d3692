package dto

import (
	"time"

	"github.com/Amar-Omerika/stake-limit-service/internal/domain/model"
)

// TicketDTO is the transport shape of a stake ticket submission.
type TicketDTO struct {
	TicketID string  `json:"id"`
	DeviceID string  `json:"deviceId"`
	Amount   float64 `json:"stake"`
}

// ToModel converts a TicketDTO to a domain model
func (d *TicketDTO) ToModel() *model.Ticket {
	return &model.Ticket{
		TicketID: d.TicketID,
		DeviceID: d.DeviceID,
		Amount:   d.Amount,
	}
}

// TicketFromModel creates a TicketDTO from a domain model
func TicketFromModel(t *model.Ticket) *TicketDTO {
	return &TicketDTO{
		TicketID: t.TicketID,
		DeviceID: t.DeviceID,
		Amount:   t.Amount,
	}
}

// TicketsFromModels converts a slice of tickets.
func TicketsFromModels(tickets []*model.Ticket) []*TicketDTO {
	dtos := make([]*TicketDTO, len(tickets))
	for i, t := range tickets {
		dtos[i] = TicketFromModel(t)
	}
	return dtos
}

// DecisionDTO is the transport shape of an evaluation outcome. The HTTP
// response carries only Status; the broadcaster pushes the full shape.
type DecisionDTO struct {
	Status      string    `json:"status"`
	TicketID    string    `json:"ticketId,omitempty"`
	DeviceID    string    `json:"deviceId,omitempty"`
	TotalStake  float64   `json:"totalStake,omitempty"`
	EvaluatedAt time.Time `json:"evaluatedAt,omitempty"`
}

// DecisionFromModel creates a DecisionDTO from a domain model
func DecisionFromModel(d *model.Decision) *DecisionDTO {
	return &DecisionDTO{
		Status:      string(d.Status),
		TicketID:    d.TicketID,
		DeviceID:    d.DeviceID,
		TotalStake:  d.TotalStake,
		EvaluatedAt: d.EvaluatedAt,
	}
}

// DeviceConfigDTO is the transport shape of a device configuration.
type DeviceConfigDTO struct {
	DeviceID        string     `json:"deviceId"`
	WindowSeconds   int        `json:"windowSeconds"`
	StakeLimit      float64    `json:"stakeLimit"`
	HotPercentage   int        `json:"hotPercentage"`
	CooldownSeconds int        `json:"cooldownSeconds"`
	BlockedUntil    *time.Time `json:"blockedUntil"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// ToModel converts a DeviceConfigDTO to a domain model
func (d *DeviceConfigDTO) ToModel() *model.DeviceConfig {
	return &model.DeviceConfig{
		DeviceID:        d.DeviceID,
		WindowSeconds:   d.WindowSeconds,
		StakeLimit:      d.StakeLimit,
		HotPercentage:   d.HotPercentage,
		CooldownSeconds: d.CooldownSeconds,
		BlockedUntil:    d.BlockedUntil,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

// DeviceFromModel creates a DeviceConfigDTO from a domain model
func DeviceFromModel(cfg *model.DeviceConfig) *DeviceConfigDTO {
	return &DeviceConfigDTO{
		DeviceID:        cfg.DeviceID,
		WindowSeconds:   cfg.WindowSeconds,
		StakeLimit:      cfg.StakeLimit,
		HotPercentage:   cfg.HotPercentage,
		CooldownSeconds: cfg.CooldownSeconds,
		BlockedUntil:    cfg.BlockedUntil,
		CreatedAt:       cfg.CreatedAt,
		UpdatedAt:       cfg.UpdatedAt,
	}
}

// DevicesFromModels converts a slice of device configs.
func DevicesFromModels(configs []*model.DeviceConfig) []*DeviceConfigDTO {
	dtos := make([]*DeviceConfigDTO, len(configs))
	for i, cfg := range configs {
		dtos[i] = DeviceFromModel(cfg)
	}
	return dtos
}

// PaginationDTO mirrors the listing metadata envelope.
type PaginationDTO struct {
	Total   int64 `json:"total"`
	Page    int   `json:"page"`
	Limit   int   `json:"limit"`
	Pages   int   `json:"pages"`
	HasNext bool  `json:"hasNext"`
	HasPrev bool  `json:"hasPrev"`
}

// DevicePageDTO is the paginated device listing response.
type DevicePageDTO struct {
	Data       []*DeviceConfigDTO `json:"data"`
	Pagination PaginationDTO      `json:"pagination"`
}

// PageFromModel creates a DevicePageDTO from a domain model
func PageFromModel(page *model.DevicePage) *DevicePageDTO {
	return &DevicePageDTO{
		Data: DevicesFromModels(page.Data),
		Pagination: PaginationDTO{
			Total:   page.Total,
			Page:    page.Page,
			Limit:   page.Limit,
			Pages:   page.Pages,
			HasNext: page.HasNext,
			HasPrev: page.HasPrev,
		},
	}
}
