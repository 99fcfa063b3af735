// Copyright (C) 2026 AntiEcoSys
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes provides data structures for the orchestrator
// service. This file contains the persisted conversation types; request
// and response types for the chat endpoints live in chat.go.
package datatypes

import (
	"time"
)

// Message roles. Roles form a closed set; anything else is rejected at
// the request boundary.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Attachment types. The closed set mirrors what the upload endpoint can
// produce; unknown variants are rejected rather than passed through.
const (
	AttachmentTypeImage = "image"
	AttachmentTypeFile  = "file"
)

// ModelTagFallback marks assistant turns produced by the deterministic
// fallback path instead of the generation backend.
const ModelTagFallback = "fallback"

// Attachment is one uploaded binary referenced by a chat message.
//
// # Fields
//
//   - URL: Required. The serving URL of the stored upload.
//   - Type: Required. "image" or "file". Only image attachments are
//     forwarded to the generation backend.
//   - Name: Optional. Original filename for display.
//   - Size: Optional. Byte size for display.
type Attachment struct {
	URL  string `json:"url" validate:"required"`
	Type string `json:"type" validate:"required,oneof=image file"`
	Name string `json:"name,omitempty"`
	Size int64  `json:"size,omitempty"`
}

// ChatMessage is one persisted turn in a user's conversation.
//
// Messages are append-only: created once by the chat service around a
// generation call, never mutated, never deleted here.
//
// # Fields
//
//   - ID: Monotonic identity assigned by the store.
//   - UserID: Owning user. Nil for turns persisted without an owner.
//   - Role: "user" or "assistant".
//   - Content: Turn text. May be empty only when attachments exist.
//   - Attachments: Ordered attachment references, stored as JSON.
//   - ModelTag: For assistant turns, the backend model that produced the
//     text, or "fallback" for the degraded path. Empty for user turns.
//   - CreatedAt: Assigned by the store at insert time.
type ChatMessage struct {
	ID          int64        `json:"id"`
	UserID      *int64       `json:"user_id,omitempty"`
	Role        string       `json:"role"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments"`
	ModelTag    string       `json:"model_tag,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// HasPayload reports whether the message carries anything to say:
// non-empty content or at least one attachment. Both empty is invalid.
func (m *ChatMessage) HasPayload() bool {
	return m.Content != "" || len(m.Attachments) > 0
}

// BackendMessage is the wire shape sent to the generation backend:
// a role-tagged turn with optional image URLs. Image URLs are populated
// only from attachments of type "image".
type BackendMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

// ToBackendMessage converts a persisted turn to its backend wire shape,
// mapping image attachments into the images field and dropping the
// rest.
func (m *ChatMessage) ToBackendMessage() BackendMessage {
	out := BackendMessage{
		Role:    m.Role,
		Content: m.Content,
	}
	for _, att := range m.Attachments {
		if att.Type == AttachmentTypeImage {
			out.Images = append(out.Images, att.URL)
		}
	}
	return out
}
