package dto

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims are the JWT claims of an operator token
type TokenClaims struct {
	Subject string `json:"sub_name"`
	jwt.RegisteredClaims
}

// TokenRequest exchanges the static API key for a short-lived JWT
type TokenRequest struct {
	APIKey string `json:"apiKey" binding:"required"`
}

// TokenResponse carries the issued token
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}
