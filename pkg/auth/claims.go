package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/tradebridge-io/tradebridge-backend/pkg/enums"
)

// AccessTokenClaims represents the typed JWT issued by the identity service.
// This backend only parses tokens; issuance lives elsewhere.
type AccessTokenClaims struct {
	ActorID uuid.UUID       `json:"actor_id"`
	StoreID *uuid.UUID      `json:"store_id,omitempty"`
	Role    enums.ActorRole `json:"role"`
	jwt.RegisteredClaims
}
