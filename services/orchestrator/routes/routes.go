// Copyright (C) 2026 AntiEcoSys
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DrPechenyshka/AE/services/llm"
	"github.com/DrPechenyshka/AE/services/orchestrator/auth"
	"github.com/DrPechenyshka/AE/services/orchestrator/handlers"
	"github.com/DrPechenyshka/AE/services/orchestrator/middleware"
	"github.com/DrPechenyshka/AE/services/orchestrator/observability"
	"github.com/DrPechenyshka/AE/services/orchestrator/services"
	"github.com/DrPechenyshka/AE/services/orchestrator/storage"
)

// Deps carries everything the route table needs. All fields are
// required except Metrics, which may be nil.
type Deps struct {
	Store     *storage.Store
	LLMClient llm.LLMClient
	Tokens    *auth.TokenService
	Chat      *services.ChatService
	UploadDir string
	Metrics   *observability.Metrics
}

// SetupRoutes registers the full route table on router.
//
// Register and login are the only unauthenticated API routes; every
// other /v1 route runs behind bearer-token auth. Health and metrics sit
// outside /v1 for probes and scrapers.
func SetupRoutes(router *gin.Engine, deps Deps) {
	router.GET("/health", handlers.HandleHealth())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	{
		v1.POST("/auth/register", handlers.HandleRegister(deps.Store.Users(), deps.Tokens))
		v1.POST("/auth/login", handlers.HandleLogin(deps.Store.Users(), deps.Tokens))

		protected := v1.Group("")
		protected.Use(middleware.RequireAuth(deps.Tokens))
		{
			protected.POST("/chat", handlers.HandleChat(deps.Chat))
			protected.GET("/chat/history", handlers.HandleHistory(deps.Chat))
			protected.POST("/chat/messages", handlers.HandleSaveMessage(deps.Chat))

			protected.POST("/uploads", handlers.HandleUpload(deps.Store.Uploads(), deps.UploadDir, deps.Metrics))
			protected.GET("/uploads", handlers.HandleListUploads(deps.Store.Uploads()))
			protected.GET("/uploads/:filename", handlers.HandleGetUpload(deps.Store.Uploads()))

			protected.GET("/models", handlers.HandleListModels(deps.LLMClient))
			protected.POST("/models/pull", handlers.HandlePullModel(deps.LLMClient))
			protected.GET("/backend/status", handlers.HandleBackendStatus(deps.LLMClient, deps.Metrics))
		}
	}
}
