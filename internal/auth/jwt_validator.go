package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/lestrrat-go/jwx/jwk"
)

// JWTTokenValidator verifies platform access tokens locally against the
// identity service's JWKS, avoiding a user-info round trip per request.
type JWTTokenValidator struct {
	mu      sync.RWMutex
	keySet  jwk.Set
	jwksURL string
}

// NewJWTTokenValidator fetches the JWKS and returns a validator.
func NewJWTTokenValidator(ctx context.Context, jwksURL string) (*JWTTokenValidator, error) {
	if jwksURL == "" {
		return nil, ErrNoJWKS
	}

	keySet, err := jwk.Fetch(ctx, jwksURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS from %s: %w", jwksURL, err)
	}

	return &JWTTokenValidator{keySet: keySet, jwksURL: jwksURL}, nil
}

// RefreshKeys refreshes the JWKS from the URL.
func (v *JWTTokenValidator) RefreshKeys(ctx context.Context) error {
	keySet, err := jwk.Fetch(ctx, v.jwksURL)
	if err != nil {
		return fmt.Errorf("failed to refresh JWKS from %s: %w", v.jwksURL, err)
	}

	v.mu.Lock()
	v.keySet = keySet
	v.mu.Unlock()
	return nil
}

func (v *JWTTokenValidator) lookupKey(kid string) (jwk.Key, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.keySet.LookupKeyID(kid)
}

func (v *JWTTokenValidator) ExtractUserInfo(ctx context.Context, tokenString string) (UserInfo, error) {
	// Parse the token header first to get the key ID without validation.
	token, _, err := new(jwt.Parser).ParseUnverified(tokenString, &StandardClaims{})
	if err != nil {
		return UserInfo{}, fmt.Errorf("%w: failed to parse token header: %v", ErrInvalidToken, err)
	}

	kid, ok := token.Header["kid"].(string)
	if !ok {
		return UserInfo{}, fmt.Errorf("%w: token header missing kid", ErrInvalidToken)
	}

	key, found := v.lookupKey(kid)
	if !found {
		// The identity service rotates keys; refresh once before giving up.
		if err := v.RefreshKeys(ctx); err != nil {
			return UserInfo{}, fmt.Errorf("%w: key with ID %s not found and failed to refresh keys: %v", ErrInvalidToken, kid, err)
		}
		key, found = v.lookupKey(kid)
		if !found {
			return UserInfo{}, fmt.Errorf("%w: key with ID %s not found", ErrInvalidToken, kid)
		}
	}

	var rawKey interface{}
	if err := key.Raw(&rawKey); err != nil {
		return UserInfo{}, fmt.Errorf("%w: failed to get raw key: %v", ErrInvalidToken, err)
	}

	validatedToken, err := jwt.ParseWithClaims(
		tokenString,
		&StandardClaims{},
		func(token *jwt.Token) (interface{}, error) {
			return rawKey, nil
		},
	)
	if err != nil {
		return UserInfo{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := validatedToken.Claims.(*StandardClaims)
	if !ok || !validatedToken.Valid {
		return UserInfo{}, ErrInvalidToken
	}

	if !claims.VerifyExpiresAt(time.Now(), true) {
		return UserInfo{}, ErrExpiredToken
	}

	if claims.Sub == "" {
		return UserInfo{}, fmt.Errorf("%w: no subject (sub) found in token claims", ErrInvalidToken)
	}

	return UserInfo{UserID: claims.Sub, Email: claims.Email}, nil
}
