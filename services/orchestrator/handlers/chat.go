// Copyright (C) 2026 AntiEcoSys
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/DrPechenyshka/AE/services/orchestrator/datatypes"
	"github.com/DrPechenyshka/AE/services/orchestrator/middleware"
	"github.com/DrPechenyshka/AE/services/orchestrator/services"
)

var chatTracer = otel.Tracer("ae.orchestrator.handlers.chat")

// ChatExchanger is the slice of the chat service the chat handlers
// need.
type ChatExchanger interface {
	Exchange(ctx context.Context, userID int64, req *datatypes.ChatRequest) (*datatypes.ChatResponse, error)
	History(ctx context.Context, userID int64, limit int) (*datatypes.HistoryResponse, error)
	SaveMessage(ctx context.Context, userID int64, req *datatypes.SaveMessageRequest) (*datatypes.MessageView, error)
}

var _ ChatExchanger = (*services.ChatService)(nil)

// HandleChat runs one chat exchange for the authenticated caller.
//
// Backend faults never produce an error status here; the service
// absorbs them into a degraded 200. Only auth and validation failures
// reach the client as errors.
func HandleChat(chat ChatExchanger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := chatTracer.Start(c.Request.Context(), "HandleChat")
		defer span.End()

		ident := middleware.GetIdentity(c)
		if ident == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req datatypes.ChatRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if !req.HasPayload() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "message must have content or attachments"})
			return
		}

		resp, err := chat.Exchange(ctx, ident.UserID, &req)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Chat exchange failed", "user_id", ident.UserID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "chat exchange failed"})
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// HandleHistory returns the caller's recent turns, newest first. The
// optional limit query parameter is capped at the default when absent
// or invalid.
func HandleHistory(chat ChatExchanger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := chatTracer.Start(c.Request.Context(), "HandleHistory")
		defer span.End()

		ident := middleware.GetIdentity(c)
		if ident == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		limit := datatypes.DefaultHistoryLimit
		if raw := c.Query("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
				return
			}
			if parsed < limit {
				limit = parsed
			}
		}

		resp, err := chat.History(ctx, ident.UserID, limit)
		if err != nil {
			span.RecordError(err)
			slog.Error("History load failed", "user_id", ident.UserID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "history load failed"})
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// HandleSaveMessage persists one turn without calling the backend.
func HandleSaveMessage(chat ChatExchanger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := chatTracer.Start(c.Request.Context(), "HandleSaveMessage")
		defer span.End()

		ident := middleware.GetIdentity(c)
		if ident == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req datatypes.SaveMessageRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if !req.HasPayload() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "message must have content or attachments"})
			return
		}

		view, err := chat.SaveMessage(ctx, ident.UserID, &req)
		if err != nil {
			span.RecordError(err)
			slog.Error("Save message failed", "user_id", ident.UserID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
			return
		}
		c.JSON(http.StatusCreated, view)
	}
}
