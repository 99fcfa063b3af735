// Copyright (C) 2026 AntiEcoSys
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers contains the Gin HTTP handlers for the orchestrator.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"golang.org/x/crypto/bcrypt"

	"github.com/DrPechenyshka/AE/services/orchestrator/auth"
	"github.com/DrPechenyshka/AE/services/orchestrator/datatypes"
	"github.com/DrPechenyshka/AE/services/orchestrator/storage"
)

var authTracer = otel.Tracer("ae.orchestrator.handlers.auth")

// UserStore is the slice of the storage layer the auth handlers need.
type UserStore interface {
	Create(ctx context.Context, user *datatypes.User) (*datatypes.User, error)
	GetByEmail(ctx context.Context, email string) (*datatypes.User, error)
}

var _ UserStore = (*storage.UserRepository)(nil)

// loginFailedMessage is deliberately identical for unknown email and
// wrong password so the endpoint cannot be used to enumerate accounts.
const loginFailedMessage = "invalid email or password"

// HandleRegister creates an account and returns it with a fresh token.
// Duplicate emails come back as 400 with a descriptive message.
func HandleRegister(users UserStore, tokens *auth.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := authTracer.Start(c.Request.Context(), "HandleRegister")
		defer span.End()

		var req datatypes.RegisterRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if _, err := users.GetByEmail(ctx, req.Email); err == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "email already registered"})
			return
		} else if !errors.Is(err, storage.ErrNotFound) {
			span.RecordError(err)
			slog.Error("Register lookup failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			span.RecordError(err)
			slog.Error("Password hashing failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
			return
		}

		user, err := users.Create(ctx, &datatypes.User{
			Email:        req.Email,
			PasswordHash: string(hash),
			Name:         req.Name,
		})
		if err != nil {
			span.RecordError(err)
			slog.Error("User creation failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
			return
		}

		token, err := tokens.Issue(user.ID)
		if err != nil {
			span.RecordError(err)
			slog.Error("Token issue failed", "user_id", user.ID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
			return
		}

		slog.Info("Registered new account", "user_id", user.ID)
		c.JSON(http.StatusCreated, datatypes.NewAuthResponse(user, token))
	}
}

// HandleLogin verifies credentials and returns the account with a fresh
// token. Unknown email and wrong password are indistinguishable to the
// caller.
func HandleLogin(users UserStore, tokens *auth.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := authTracer.Start(c.Request.Context(), "HandleLogin")
		defer span.End()

		var req datatypes.LoginRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		user, err := users.GetByEmail(ctx, req.Email)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": loginFailedMessage})
				return
			}
			span.RecordError(err)
			slog.Error("Login lookup failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": loginFailedMessage})
			return
		}

		token, err := tokens.Issue(user.ID)
		if err != nil {
			span.RecordError(err)
			slog.Error("Token issue failed", "user_id", user.ID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
			return
		}

		slog.Info("Login", "user_id", user.ID)
		c.JSON(http.StatusOK, datatypes.NewAuthResponse(user, token))
	}
}
