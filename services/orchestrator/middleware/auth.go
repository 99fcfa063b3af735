// Copyright (C) 2026 AntiEcoSys
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package middleware provides HTTP middleware for the orchestrator
// service.
//
// # Authentication Flow
//
// The auth middleware extracts a bearer token from the Authorization
// header, validates it with the configured auth.Provider, and stores
// the resulting Identity in the Gin context for downstream handlers.
//
//	Request
//	   │
//	   ▼
//	RequireAuth
//	   │
//	   ├─► Extract token from "Authorization: Bearer <token>"
//	   │
//	   ├─► provider.Validate(ctx, token)
//	   │
//	   └─► Store Identity in context
//	           │
//	           ▼
//	       Handler (retrieves via GetIdentity)
//
// Missing tokens are never treated as anonymous access; every failure
// ends the request with 401 before any handler runs.
package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/DrPechenyshka/AE/services/orchestrator/auth"
)

// identityKey is the context key for storing the caller's Identity.
// Using a dedicated key prevents collisions with other context values.
const identityKey = "ae_identity"

// SetIdentity stores the authenticated caller in the Gin context.
// Called by RequireAuth after successful validation; the stored value
// is request-scoped.
func SetIdentity(c *gin.Context, ident *auth.Identity) {
	c.Set(identityKey, ident)
}

// GetIdentity retrieves the authenticated caller from the Gin context.
// Returns nil when the request did not pass RequireAuth.
func GetIdentity(c *gin.Context) *auth.Identity {
	if v, exists := c.Get(identityKey); exists {
		if ident, ok := v.(*auth.Identity); ok {
			return ident
		}
	}
	return nil
}

// RequireAuth creates a Gin middleware that authenticates requests.
//
// # Description
//
// Extracts the bearer token from the Authorization header, validates
// it with the provider, and stores the resulting Identity in the
// context. Any validation failure aborts with 401; requests never
// proceed unauthenticated.
//
// # Inputs
//
//   - provider: Provider to validate tokens. Must not be nil.
//
// # Outputs
//
//   - gin.HandlerFunc: Middleware ready for use with Gin.
//
// # Examples
//
//	v1 := router.Group("/v1")
//	v1.Use(middleware.RequireAuth(tokenService))
//
// # Thread Safety
//
// Thread-safe. The returned middleware can be used concurrently.
func RequireAuth(provider auth.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.ExtractFromHeader(c.GetHeader("Authorization"))

		ident, err := provider.Validate(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrUnauthorized) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": "unauthorized",
				})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "authentication failed",
			})
			return
		}

		SetIdentity(c, ident)
		c.Next()
	}
}
