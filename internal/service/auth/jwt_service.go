package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// JWTService defines operations for managing JWT authentication tokens.
// Tokens are capability tokens: the CityIDs claim lists the cities whose
// pipeline the bearer may operate on, and Admin grants platform-wide access.
type JWTService interface {
	// GenerateToken creates a signed JWT access token for the given user with
	// the given city capabilities.
	GenerateToken(ctx context.Context, userID uuid.UUID, cityIDs []string, admin bool) (string, error)

	// ValidateToken validates the provided access token string and extracts
	// the claims, or returns an error if validation fails (expired, invalid
	// signature, etc.).
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims represents the custom claims structure for the JWT tokens.
type Claims struct {
	// UserID is the unique identifier of the user the token was issued for.
	UserID uuid.UUID `json:"uid,omitempty"`

	// CityIDs lists the cities the token grants pipeline access to.
	CityIDs []string `json:"cities,omitempty"`

	// Admin grants access to every city and to the admin endpoints.
	Admin bool `json:"admin,omitempty"`

	// Standard registered JWT claims
	Subject   string    `json:"sub,omitempty"`
	IssuedAt  time.Time `json:"iat,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
	ID        string    `json:"jti,omitempty"`
}

// AllowsCity reports whether the claims grant access to the given city.
func (c *Claims) AllowsCity(cityID string) bool {
	if c.Admin {
		return true
	}
	for _, id := range c.CityIDs {
		if id == cityID {
			return true
		}
	}
	return false
}
