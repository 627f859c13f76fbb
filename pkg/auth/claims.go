package auth

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/angelmondragon/stockyard-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a staff JWT.
type AccessTokenPayload struct {
	StaffID string
	Role    enums.StaffRole
	JTI     string
}

// AccessTokenClaims represents the typed JWT issued to staff clients.
type AccessTokenClaims struct {
	StaffID string          `json:"staff_id"`
	Role    enums.StaffRole `json:"role"`
	jwt.RegisteredClaims
}
