package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/cafepos-backend/pkg/enums"
)

// Delivery follows a delivery-type order out of the kitchen.
type Delivery struct {
	ID               uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	OrderID          string               `gorm:"column:order_id;type:text;not null;index"`
	Status           enums.DeliveryStatus `gorm:"column:status;type:text;not null;default:'preparing'"`
	Driver           *string              `gorm:"column:driver"`
	Customer         Customer             `gorm:"embedded;embeddedPrefix:customer_"`
	ItemsSummary     string               `gorm:"column:items_summary;not null"`
	EstimatedMinutes *int                 `gorm:"column:estimated_minutes"`
	DistanceKm       *float64             `gorm:"column:distance_km"`
	CreatedAt        time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
