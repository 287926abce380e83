package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/cafepos-backend/pkg/enums"
)

// StaffUser is a person allowed to operate the POS.
type StaffUser struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Email        string          `gorm:"column:email;not null;uniqueIndex:ux_staff_users_email"`
	Name         string          `gorm:"column:name;not null"`
	Role         enums.StaffRole `gorm:"column:role;type:text;not null"`
	PasswordHash string          `gorm:"column:password_hash;not null"`
	Active       bool            `gorm:"column:active;not null;default:true"`
	LastLoginAt  *time.Time      `gorm:"column:last_login_at"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
