package models

import "time"

// OrderSequence is the persisted counter behind order sequence numbers.
type OrderSequence struct {
	Name      string    `gorm:"column:name;type:text;primaryKey"`
	Value     int64     `gorm:"column:value;not null;default:0"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
