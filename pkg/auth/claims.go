package auth

import (
	"github.com/angelmondragon/cafepos-backend/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	StaffID uuid.UUID
	Name    string
	Role    enums.StaffRole
	JTI     string
}

// AccessTokenClaims represents the typed JWT issued to till clients.
type AccessTokenClaims struct {
	StaffID uuid.UUID       `json:"staff_id"`
	Name    string          `json:"name,omitempty"`
	Role    enums.StaffRole `json:"role"`
	jwt.RegisteredClaims
}
