// Copyright (C) 2026 AntiEcoSys
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/DrPechenyshka/AE/services/llm"
)

var modelsTracer = otel.Tracer("ae.orchestrator.handlers.models")

// HandleListModels returns the models the backend has pulled.
func HandleListModels(client llm.LLMClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := modelsTracer.Start(c.Request.Context(), "HandleListModels")
		defer span.End()

		models, err := client.ListModels(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Model list failed", "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "backend unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"models": models})
	}
}

// PullModelRequest is the body of POST /v1/models/pull.
type PullModelRequest struct {
	Name string `json:"name"`
}

// HandlePullModel asks the backend to download a model. The call blocks
// until the pull completes, which can take minutes for large models.
func HandlePullModel(client llm.LLMClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := modelsTracer.Start(c.Request.Context(), "HandlePullModel")
		defer span.End()

		var req PullModelRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if req.Name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "model name is required"})
			return
		}

		if err := client.PullModel(ctx, req.Name); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Model pull failed", "model", req.Name, "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "model pull failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "pulled", "model": req.Name})
	}
}
