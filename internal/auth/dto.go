package auth

import (
	"strings"
	"time"

	"github.com/angelmondragon/cafepos-backend/pkg/db/models"
	"github.com/angelmondragon/cafepos-backend/pkg/enums"
	"github.com/google/uuid"
)

// LoginRequest captures the staff credentials sent to the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// CreateStaffRequest is used by managers to onboard another till operator.
type CreateStaffRequest struct {
	Email    string          `json:"email" validate:"required,email"`
	Name     string          `json:"name" validate:"required"`
	Role     enums.StaffRole `json:"role" validate:"required"`
	Password string          `json:"password" validate:"required,min=8"`
}

// StaffDTO is the public view of a staff user.
type StaffDTO struct {
	ID          uuid.UUID       `json:"id"`
	Email       string          `json:"email"`
	Name        string          `json:"name"`
	Role        enums.StaffRole `json:"role"`
	Active      bool            `json:"active"`
	LastLoginAt *time.Time      `json:"lastLoginAt,omitempty"`
}

// LoginResponse contains the access token and the authenticated staff user.
type LoginResponse struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
	Staff       StaffDTO  `json:"staff"`
}

func staffFromModel(m *models.StaffUser) StaffDTO {
	return StaffDTO{
		ID:          m.ID,
		Email:       m.Email,
		Name:        m.Name,
		Role:        m.Role,
		Active:      m.Active,
		LastLoginAt: m.LastLoginAt,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
