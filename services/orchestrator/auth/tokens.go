// Copyright (C) 2026 AntiEcoSys
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package auth issues and verifies the signed, time-limited identity
// tokens that authenticate chat and upload requests.
//
// Tokens are stateless HS256 JWTs binding exactly one user ID. There is
// no server-side token table: logout is client-side deletion, and an
// issued token stays valid until natural expiry. Verification is
// all-or-nothing; a token that fails any check yields no identity.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL is the token validity used when none is configured.
const DefaultTokenTTL = 7 * 24 * time.Hour

var (
	// ErrInvalidToken is returned by Verify for any failure: bad
	// signature, malformed token, or expiry.
	ErrInvalidToken = errors.New("invalid token")

	// ErrSigningKeyMissing is returned by Issue when the service has no
	// signing key.
	ErrSigningKeyMissing = errors.New("signing key is not configured")
)

// Claims carries the registered claims plus the single custom claim
// binding the token to a user.
type Claims struct {
	jwt.RegisteredClaims
	UserID int64 `json:"user_id"`
}

// TokenService signs and verifies identity tokens. It is stateless and
// safe for concurrent use.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService with the given signing secret
// and validity duration. A zero ttl falls back to DefaultTokenTTL.
func NewTokenService(secret []byte, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{secret: secret, ttl: ttl}
}

// Issue produces a signed token embedding userID, an issued-at time and
// an expiration. Fails with ErrSigningKeyMissing when no key is set.
func (s *TokenService) Issue(userID int64) (string, error) {
	if len(s.secret) == 0 {
		return "", ErrSigningKeyMissing
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		UserID: userID,
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry and returns the user ID the token
// was issued for. Any failure yields ErrInvalidToken; there is no
// partial trust.
func (s *TokenService) Verify(tokenString string) (int64, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return 0, ErrInvalidToken
	}

	return claims.UserID, nil
}

// ExtractFromHeader parses an "Authorization: Bearer <token>" value and
// returns the token, or empty string when the header is absent or
// malformed. Absence of a credential is a normal caller state, not an
// error. The scheme is case-insensitive per RFC 7235.
func ExtractFromHeader(headerValue string) string {
	if headerValue == "" {
		return ""
	}
	parts := strings.SplitN(headerValue, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
