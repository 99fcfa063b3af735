// Copyright (C) 2026 AntiEcoSys
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Request and response types for the chat endpoints.
package datatypes

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const (
	// MaxMessageContentBytes is the maximum size of a single message
	// content. Byte length, not rune count, to bound memory.
	MaxMessageContentBytes = 32 * 1024 // 32KB

	// MaxAttachmentsPerMessage bounds the attachment list on one turn.
	MaxAttachmentsPerMessage = 10

	// DefaultHistoryLimit is how many persisted turns the history
	// endpoint returns when the caller does not ask for a limit.
	DefaultHistoryLimit = 50
)

// chatValidate is the validator instance for chat datatypes.
// Initialized in init() with custom validators.
var chatValidate *validator.Validate

func init() {
	chatValidate = validator.New()
	_ = chatValidate.RegisterValidation("maxbytes", validateMaxBytes)
}

// validateMaxBytes checks that a string field does not exceed
// MaxMessageContentBytes. Byte length is used deliberately.
func validateMaxBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxMessageContentBytes
}

// generateUUID returns a new v4 UUID string for correlation IDs.
func generateUUID() string {
	return uuid.NewString()
}

// ChatRequest is the body of POST /v1/chat: one new user turn.
//
// # Description
//
// The server assembles conversation context from persisted history, so
// the client sends only the new turn. Either Content or at least one
// attachment must be present; the handler enforces that beyond the
// per-field tags here.
//
// # Fields
//
//   - Content: The user's message text, up to 32KB. May be empty when
//     attachments are present.
//   - Attachments: Uploaded references for this turn; each must carry a
//     URL and a known type ("image" or "file").
//   - Model: Optional backend model override. Defaults to the
//     configured model when empty.
type ChatRequest struct {
	Content     string       `json:"content" validate:"maxbytes"`
	Attachments []Attachment `json:"attachments" validate:"max=10,dive"`
	Model       string       `json:"model,omitempty"`
}

// Validate validates the ChatRequest fields using the shared validator.
// Call after binding the JSON body.
func (r *ChatRequest) Validate() error {
	return chatValidate.Struct(r)
}

// HasPayload reports whether the request carries content or at least
// one attachment. Requests with neither are rejected with 400.
func (r *ChatRequest) HasPayload() bool {
	return r.Content != "" || len(r.Attachments) > 0
}

// MessageView is the read model for one persisted turn, scoped to the
// authenticated caller.
type MessageView struct {
	ID          int64        `json:"id"`
	Content     string       `json:"content"`
	Role        string       `json:"role"`
	Timestamp   time.Time    `json:"timestamp"`
	Attachments []Attachment `json:"attachments"`
	ModelTag    string       `json:"model_tag,omitempty"`
}

// NewMessageView converts a persisted message to its read model.
func NewMessageView(m *ChatMessage) MessageView {
	atts := m.Attachments
	if atts == nil {
		atts = []Attachment{}
	}
	return MessageView{
		ID:          m.ID,
		Content:     m.Content,
		Role:        m.Role,
		Timestamp:   m.CreatedAt,
		Attachments: atts,
		ModelTag:    m.ModelTag,
	}
}

// ChatResponse is the body returned by POST /v1/chat.
//
// Every exchange ends in a 200 with an assistant turn. Degraded is true
// when the turn came from the fallback path rather than the backend;
// the client never needs special-case handling for backend faults.
//
// # Fields
//
//   - ResponseID: Server-generated v4 UUID for log correlation.
//   - Message: The final assistant turn, real or fallback.
//   - Degraded: True when Message was synthesized by the fallback path.
//   - Model: The model tag recorded on the assistant turn.
//   - ProcessingTimeMs: Wall time for the whole exchange.
type ChatResponse struct {
	ResponseID       string      `json:"response_id"`
	Message          MessageView `json:"message"`
	Degraded         bool        `json:"degraded"`
	Model            string      `json:"model"`
	ProcessingTimeMs int64       `json:"processing_time_ms,omitempty"`
}

// NewChatResponse builds a ChatResponse with a generated ResponseID.
func NewChatResponse(msg *ChatMessage, degraded bool) *ChatResponse {
	return &ChatResponse{
		ResponseID: generateUUID(),
		Message:    NewMessageView(msg),
		Degraded:   degraded,
		Model:      msg.ModelTag,
	}
}

// SaveMessageRequest is the body of POST /v1/chat/messages: persist a
// single turn directly, without a generation call.
type SaveMessageRequest struct {
	Content     string       `json:"content" validate:"maxbytes"`
	Role        string       `json:"role" validate:"omitempty,oneof=user assistant"`
	Attachments []Attachment `json:"attachments" validate:"max=10,dive"`
}

// Validate validates the SaveMessageRequest fields.
func (r *SaveMessageRequest) Validate() error {
	return chatValidate.Struct(r)
}

// HasPayload reports whether the request carries content or at least
// one attachment.
func (r *SaveMessageRequest) HasPayload() bool {
	return r.Content != "" || len(r.Attachments) > 0
}

// HistoryResponse is the body of GET /v1/chat/history.
type HistoryResponse struct {
	Messages []MessageView `json:"messages"`
}
