package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/cafepos-backend/pkg/enums"
)

// Customer is embedded into orders, web orders and deliveries.
type Customer struct {
	Name    string  `gorm:"column:name;not null"`
	Phone   *string `gorm:"column:phone"`
	Address *string `gorm:"column:address"`
}

// Order is the canonical system-of-record order.
type Order struct {
	ID              string                `gorm:"column:id;type:text;primaryKey"`
	SequenceNumber  int64                 `gorm:"column:sequence_number;not null;uniqueIndex:ux_orders_sequence_number"`
	FulfillmentType enums.FulfillmentType `gorm:"column:fulfillment_type;type:text;not null"`
	Status          enums.OrderStatus     `gorm:"column:status;type:text;not null;default:'pending'"`
	StatusTag       *string               `gorm:"column:status_tag;type:text"`
	Source          string                `gorm:"column:source;type:text;not null;default:'local'"`
	Customer        Customer              `gorm:"embedded;embeddedPrefix:customer_"`
	Total           decimal.Decimal       `gorm:"column:total;type:numeric(12,2);not null"`
	Items           []OrderLineItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time             `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt       gorm.DeletedAt        `gorm:"column:deleted_at;index"`
}
