package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/cafepos-backend/pkg/config"
)

const (
	// tillAudience marks tokens meant for the till and dispatch API.
	tillAudience = "cafepos-till"
	// tills keep their own clocks; a little drift is tolerated.
	clockSkew = 30 * time.Second
)

var signingMethod = jwt.SigningMethodHS256

var errSecretRequired = errors.New("jwt secret is required")

// MintAccessToken signs a staff token valid for cfg.ExpirationMinutes from now.
func MintAccessToken(cfg config.JWTConfig, now time.Time, p AccessTokenPayload) (string, error) {
	switch {
	case cfg.Secret == "":
		return "", errSecretRequired
	case cfg.Issuer == "":
		return "", errors.New("jwt issuer is required")
	case cfg.ExpirationMinutes <= 0:
		return "", errors.New("jwt expiration minutes must be positive")
	case p.StaffID == uuid.Nil:
		return "", errors.New("staff id is required")
	case !p.Role.IsValid():
		return "", fmt.Errorf("invalid staff role %q", p.Role)
	}

	jti := strings.TrimSpace(p.JTI)
	if jti == "" {
		jti = uuid.NewString()
	}
	claims := AccessTokenClaims{
		StaffID: p.StaffID,
		Name:    p.Name,
		Role:    p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   p.StaffID.String(),
			Audience:  jwt.ClaimStrings{tillAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(cfg.ExpirationMinutes) * time.Minute)),
			ID:        jti,
		},
	}
	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}

func ParseAccessToken(cfg config.JWTConfig, token string) (*AccessTokenClaims, error) {
	return ParseAccessTokenAt(cfg, token, time.Now())
}

// ParseAccessTokenAt verifies token as of now. Besides the signature it
// checks issuer, audience, expiry, and that subject and staff_id agree.
func ParseAccessTokenAt(cfg config.JWTConfig, token string, now time.Time) (*AccessTokenClaims, error) {
	if cfg.Secret == "" {
		return nil, errSecretRequired
	}

	claims := &AccessTokenClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return []byte(cfg.Secret), nil },
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithAudience(tillAudience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return nil, err
	}
	switch {
	case claims.StaffID == uuid.Nil || claims.Subject != claims.StaffID.String():
		return nil, errors.New("token subject does not match staff id")
	case !claims.Role.IsValid():
		return nil, fmt.Errorf("invalid staff role %q", claims.Role)
	}
	return claims, nil
}
