package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/svillega/lastbite-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID       uuid.UUID
	RestaurantID *uuid.UUID
	Role         enums.ActorRole
	JTI          string
}

// AccessTokenClaims represents the typed JWT issued to clients. RestaurantID
// is only set for restaurant and admin actors.
type AccessTokenClaims struct {
	UserID       uuid.UUID       `json:"user_id"`
	RestaurantID *uuid.UUID      `json:"restaurant_id,omitempty"`
	Role         enums.ActorRole `json:"role"`
	jwt.RegisteredClaims
}
