// Copyright (C) 2026 AntiEcoSys
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package auth

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnauthorized is returned when authentication fails. Callers should
// detect it with errors.Is; the wrapped detail explains the cause.
var ErrUnauthorized = errors.New("unauthorized")

// Identity is the result of successful authentication: exactly the user
// the token was issued for, nothing else.
type Identity struct {
	UserID int64
}

// Provider validates bearer credentials and returns the caller's
// identity. Implementations must be safe for concurrent use.
//
// The auth middleware calls Validate on every request; an error that
// wraps ErrUnauthorized produces a 401. Missing and invalid credentials
// are both unauthorized — requests are never silently treated as
// anonymous.
type Provider interface {
	Validate(ctx context.Context, token string) (*Identity, error)
}

// Validate implements Provider on top of Verify, mapping every token
// failure to ErrUnauthorized.
func (s *TokenService) Validate(_ context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, fmt.Errorf("missing credential: %w", ErrUnauthorized)
	}
	userID, err := s.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrUnauthorized)
	}
	return &Identity{UserID: userID}, nil
}

var _ Provider = (*TokenService)(nil)
