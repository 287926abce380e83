package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/cafepos-backend/pkg/enums"
)

// WebOrderItem is stored as JSON on the web order row.
type WebOrderItem struct {
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Notes     *string         `json:"notes,omitempty"`
}

// WebOrder is an order queued by the external ordering channel.
type WebOrder struct {
	ID          string               `gorm:"column:id;type:text;primaryKey"`
	Status      enums.WebOrderStatus `gorm:"column:status;type:text;not null"`
	Channel     string               `gorm:"column:channel;type:text;not null;default:'web'"`
	Customer    Customer             `gorm:"embedded;embeddedPrefix:customer_"`
	Items       []WebOrderItem       `gorm:"column:items;type:jsonb;serializer:json;not null"`
	Total       decimal.Decimal      `gorm:"column:total;type:numeric(12,2);not null"`
	ImportedAt  *time.Time           `gorm:"column:imported_at"`
	ProjectedAt *time.Time           `gorm:"column:projected_at"`
	CreatedAt   time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
