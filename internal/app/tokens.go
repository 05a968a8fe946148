package app

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenIssuer mints and verifies HMAC-signed session tokens. Every token
// carries a unique ID so individual sessions can be revoked.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	clock  func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, clock: time.Now}
}

// NewTokenIssuerWithClock is test-only for deterministic expiries.
func NewTokenIssuerWithClock(secret string, ttl time.Duration, now func() time.Time) *TokenIssuer {
	i := NewTokenIssuer(secret, ttl)
	i.clock = now
	return i
}

// Issue signs a token for userID and returns it with its ID and expiry.
func (i *TokenIssuer) Issue(userID string) (string, string, time.Time, error) {
	now := i.clock()
	expiry := now.Add(i.ttl)
	tokenID := uuid.NewString()

	claims := jwt.RegisteredClaims{
		Subject:   userID,
		ID:        tokenID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiry),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, tokenID, expiry, nil
}

// Verify parses a signed token and returns the user and token IDs.
func (i *TokenIssuer) Verify(token string) (string, string, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.clock))
	if err != nil {
		return "", "", fmt.Errorf("parse token: %w", err)
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" || claims.ID == "" {
		return "", "", fmt.Errorf("malformed token claims")
	}
	return claims.Subject, claims.ID, nil
}
