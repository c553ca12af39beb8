// Package auth validates the access tokens issued by the shop's account
// service. The BFA only reads identities; it never issues tokens to users.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/shopmduc247/product-assistant-bfa-go/internal/domain"
)

const accessTokenType = "access"

// Claims represents the custom claims in access tokens.
type Claims struct {
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// TokenValidator checks HS256 access tokens.
type TokenValidator struct {
	secret []byte
}

// NewTokenValidator creates a validator for tokens signed with secret.
func NewTokenValidator(secret string) *TokenValidator {
	return &TokenValidator{secret: []byte(secret)}
}

// UserID validates tokenString and returns its subject. A validator without
// a secret rejects every token.
func (v *TokenValidator) UserID(tokenString string) (string, error) {
	if len(v.secret) == 0 {
		return "", &domain.ErrUnauthorized{Message: "token validation is not configured"}
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return "", &domain.ErrUnauthorized{Message: "invalid or expired token"}
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return "", &domain.ErrUnauthorized{Message: "invalid token"}
	}
	if claims.Type != accessTokenType {
		return "", &domain.ErrUnauthorized{Message: "invalid token type"}
	}
	if claims.Subject == "" {
		return "", &domain.ErrUnauthorized{Message: "token has no subject"}
	}
	return claims.Subject, nil
}

// SignAccessToken issues an access token for userID. Used by local tooling
// and tests.
func (v *TokenValidator) SignAccessToken(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Type: accessTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    "shop-account",
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
