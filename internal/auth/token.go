package auth

import (
	"context"
	"errors"

	"github.com/golang-jwt/jwt/v4"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrNoJWKS       = errors.New("no JWKS URL provided")
)

// StandardClaims represents the claims the platform's identity service
// puts into its access tokens.
type StandardClaims struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// UserInfo contains extracted user information from a token.
type UserInfo struct {
	UserID string
	Email  string
}

// TokenValidator checks a bearer token against the platform's identity
// service and resolves the owning user.
type TokenValidator interface {
	ExtractUserInfo(ctx context.Context, tokenString string) (UserInfo, error)
}
