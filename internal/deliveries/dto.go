package deliveries

import (
	"time"

	"github.com/angelmondragon/cafepos-backend/internal/notifier"
	"github.com/angelmondragon/cafepos-backend/pkg/db/models"
	"github.com/angelmondragon/cafepos-backend/pkg/enums"
)

// CreateInput is the body of a create request.
type CreateInput struct {
	OrderID string `json:"orderId" validate:"required,max=64"`
}

// StatusUpdate carries a status change plus the optional fields that may
// change with it.
type StatusUpdate struct {
	Status           enums.DeliveryStatus `json:"status" validate:"required,enum"`
	Driver           *string              `json:"driver,omitempty" validate:"omitempty,max=120"`
	EstimatedMinutes *int                 `json:"estimatedTime,omitempty" validate:"omitempty,gte=0"`
	DistanceKm       *float64             `json:"distance,omitempty" validate:"omitempty,gte=0"`
}

type DeliveryDTO struct {
	ID            string    `json:"id"`
	OrderID       string    `json:"orderId"`
	Status        string    `json:"status"`
	Driver        *string   `json:"driver,omitempty"`
	CustomerName  string    `json:"customerName"`
	Phone         *string   `json:"phone,omitempty"`
	Address       *string   `json:"address,omitempty"`
	ItemsSummary  string    `json:"itemsSummary"`
	EstimatedTime *int      `json:"estimatedTime,omitempty"`
	Distance      *float64  `json:"distance,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func FromModel(d *models.Delivery) DeliveryDTO {
	return DeliveryDTO{
		ID:            d.ID.String(),
		OrderID:       d.OrderID,
		Status:        string(d.Status),
		Driver:        d.Driver,
		CustomerName:  d.Customer.Name,
		Phone:         d.Customer.Phone,
		Address:       d.Customer.Address,
		ItemsSummary:  d.ItemsSummary,
		EstimatedTime: d.EstimatedMinutes,
		Distance:      d.DistanceKm,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

func FromModels(list []models.Delivery) []DeliveryDTO {
	out := make([]DeliveryDTO, 0, len(list))
	for i := range list {
		out = append(out, FromModel(&list[i]))
	}
	return out
}

func snapshot(d *models.Delivery) notifier.DeliverySnapshot {
	snap := notifier.DeliverySnapshot{
		ID:      d.ID.String(),
		OrderID: d.OrderID,
		Status:  string(d.Status),
	}
	if d.Driver != nil {
		snap.Driver = *d.Driver
	}
	return snap
}
