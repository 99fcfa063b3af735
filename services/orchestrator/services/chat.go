// Copyright (C) 2026 AntiEcoSys
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package services provides business logic services for the
// orchestrator.
//
// This package contains service structs that encapsulate business
// logic, separating it from HTTP handlers. Services are responsible
// for:
//   - Orchestrating calls to storage and the generation backend
//   - Applying business rules and validation
//   - Degrading gracefully when the backend misbehaves
//
// Services are designed to be:
//   - Testable: Dependencies are injected via constructors
//   - Traceable: All methods accept context for distributed tracing
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/DrPechenyshka/AE/services/llm"
	"github.com/DrPechenyshka/AE/services/orchestrator/conversation"
	"github.com/DrPechenyshka/AE/services/orchestrator/datatypes"
	"github.com/DrPechenyshka/AE/services/orchestrator/observability"
	"github.com/DrPechenyshka/AE/services/orchestrator/storage"
)

// chatTracer is the OpenTelemetry tracer for ChatService operations.
var chatTracer = otel.Tracer("ae.orchestrator.services.chat")

// MessageStore is the slice of the storage layer the chat service
// needs. *storage.MessageRepository satisfies it; tests substitute
// fakes.
type MessageStore interface {
	Append(ctx context.Context, msg *datatypes.ChatMessage) (*datatypes.ChatMessage, error)
	ListRecent(ctx context.Context, userID int64, limit int, order storage.Order) ([]*datatypes.ChatMessage, error)
}

// Generator is the slice of the backend client the chat service needs.
type Generator interface {
	Chat(ctx context.Context, messages []llm.Message, params llm.GenerationParams) (*llm.GenerationResult, error)
}

// Compile-time interface implementation checks.
var _ MessageStore = (*storage.MessageRepository)(nil)

// ChatService runs the full exchange pipeline: persist the user turn,
// assemble context, call the backend, and always come back with an
// assistant turn.
//
// # Degradation
//
// Backend faults never surface as errors to the caller. Every
// classified failure produces a synthesized assistant answer, persisted
// under the fallback model tag and flagged Degraded in the response.
// Storage faults around the generation call are logged and tolerated;
// the user still gets an answer.
//
// # Thread Safety
//
// Safe for concurrent use; all state lives in the injected
// dependencies.
type ChatService struct {
	store     MessageStore
	assembler *conversation.Assembler
	backend   Generator
	metrics   *observability.Metrics
}

// NewChatService constructs a ChatService. metrics may be nil.
func NewChatService(store MessageStore, assembler *conversation.Assembler,
	backend Generator, metrics *observability.Metrics) *ChatService {
	return &ChatService{
		store:     store,
		assembler: assembler,
		backend:   backend,
		metrics:   metrics,
	}
}

// Exchange processes one user turn end to end and returns the final
// assistant turn.
//
// # Inputs
//
//   - ctx: Context for cancellation and tracing.
//   - userID: The authenticated caller; scopes all storage access.
//   - req: The validated new turn. Callers must have checked
//     req.Validate() and req.HasPayload() already.
//
// # Outputs
//
//   - *datatypes.ChatResponse: Always non-nil on nil error. Degraded
//     is true when the assistant turn came from the fallback path.
//   - error: Non-nil only for faults that make an answer impossible,
//     such as history retrieval failing before assembly.
func (s *ChatService) Exchange(ctx context.Context, userID int64, req *datatypes.ChatRequest) (*datatypes.ChatResponse, error) {
	ctx, span := chatTracer.Start(ctx, "ChatService.Exchange")
	defer span.End()
	span.SetAttributes(attribute.Int64("chat.user_id", userID))

	start := time.Now()

	// History is read before the new turn is persisted so the window
	// never contains the turn being answered.
	history, err := s.store.ListRecent(ctx, userID, s.assembler.Window(), storage.OrderOldestFirst)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("load history: %w", err)
	}

	userTurn := &datatypes.ChatMessage{
		UserID:      &userID,
		Role:        datatypes.RoleUser,
		Content:     req.Content,
		Attachments: req.Attachments,
	}
	if _, err := s.store.Append(ctx, userTurn); err != nil {
		// The exchange continues; the turn is still in the assembled
		// context even though it is missing from history.
		slog.Warn("Failed to persist user turn", "user_id", userID, "error", err)
	}

	messages := s.assembler.Assemble(history, userTurn)

	params := llm.GenerationParams{}
	if req.Model != "" {
		params.Model = &req.Model
	}

	result, err := s.backend.Chat(ctx, messages, params)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("generation call: %w", err)
	}
	span.SetAttributes(attribute.String("chat.outcome", result.Outcome.String()))

	assistantTurn := &datatypes.ChatMessage{
		UserID: &userID,
		Role:   datatypes.RoleAssistant,
	}
	degraded := result.Outcome != llm.OutcomeSuccess
	if degraded {
		assistantTurn.Content = fallbackAnswer(result.Outcome, req.Model)
		assistantTurn.ModelTag = datatypes.ModelTagFallback
		slog.Warn("Degraded chat exchange",
			"user_id", userID,
			"reason", result.Outcome.String(),
			"detail", result.Detail)
	} else {
		assistantTurn.Content = result.Text
		assistantTurn.ModelTag = result.ModelTag
	}

	if _, err := s.store.Append(ctx, assistantTurn); err != nil {
		slog.Warn("Failed to persist assistant turn", "user_id", userID, "error", err)
	}

	s.metrics.ObserveExchange(degraded, result.Outcome.String(), result.Duration.Seconds())

	resp := datatypes.NewChatResponse(assistantTurn, degraded)
	resp.ProcessingTimeMs = time.Since(start).Milliseconds()
	return resp, nil
}

// History returns the caller's most recent persisted turns, newest
// first, capped at limit. Non-positive limits fall back to the default.
func (s *ChatService) History(ctx context.Context, userID int64, limit int) (*datatypes.HistoryResponse, error) {
	ctx, span := chatTracer.Start(ctx, "ChatService.History")
	defer span.End()

	if limit <= 0 {
		limit = datatypes.DefaultHistoryLimit
	}
	msgs, err := s.store.ListRecent(ctx, userID, limit, storage.OrderNewestFirst)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("load history: %w", err)
	}

	views := make([]datatypes.MessageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, datatypes.NewMessageView(m))
	}
	return &datatypes.HistoryResponse{Messages: views}, nil
}

// SaveMessage persists one turn without a generation call. The role
// defaults to user when empty; callers must have validated the request.
func (s *ChatService) SaveMessage(ctx context.Context, userID int64, req *datatypes.SaveMessageRequest) (*datatypes.MessageView, error) {
	ctx, span := chatTracer.Start(ctx, "ChatService.SaveMessage")
	defer span.End()

	role := req.Role
	if role == "" {
		role = datatypes.RoleUser
	}
	msg, err := s.store.Append(ctx, &datatypes.ChatMessage{
		UserID:      &userID,
		Role:        role,
		Content:     req.Content,
		Attachments: req.Attachments,
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("save message: %w", err)
	}
	view := datatypes.NewMessageView(msg)
	return &view, nil
}

// fallbackAnswer synthesizes the assistant turn for a degraded
// exchange. Each reason gets a concrete remediation so users are never
// shown a bare apology.
func fallbackAnswer(outcome llm.Outcome, model string) string {
	switch outcome {
	case llm.OutcomeModelNotFound:
		if model != "" {
			return fmt.Sprintf("I could not answer because the model '%s' is not available "+
				"on the generation backend. An administrator can install it with "+
				"'ollama pull %s'. Your message has been saved.", model, model)
		}
		return "I could not answer because the configured model is not available on the " +
			"generation backend. An administrator needs to install it before chat can " +
			"work. Your message has been saved."
	case llm.OutcomeTimeout:
		return "I could not answer in time. The model may be overloaded or the question " +
			"may be too large; please try again, or try a shorter message. Your message " +
			"has been saved."
	default:
		return "I could not reach the generation backend. Your message has been saved; " +
			"please try again in a moment."
	}
}
