// Copyright (C) 2026 AntiEcoSys
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package conversation turns stored chat history into the message
// sequence handed to the generation backend.
package conversation

import (
	"github.com/DrPechenyshka/AE/services/llm"
	"github.com/DrPechenyshka/AE/services/orchestrator/datatypes"
)

// DefaultContextWindow is how many stored turns are replayed ahead of
// the new turn. Small on purpose: local models have tight context
// budgets and stale turns dilute the answer.
const DefaultContextWindow = 10

// DefaultSystemDirective frames every conversation when no deployment
// override is configured.
const DefaultSystemDirective = "You are a helpful assistant. Answer clearly and concisely, " +
	"and say so when you do not know something."

// Assembler builds backend message sequences. The zero value is not
// usable; construct with NewAssembler.
type Assembler struct {
	systemDirective string
	window          int
}

// NewAssembler returns an Assembler with the given system directive and
// history window. Empty or non-positive arguments fall back to the
// package defaults.
func NewAssembler(systemDirective string, window int) *Assembler {
	if systemDirective == "" {
		systemDirective = DefaultSystemDirective
	}
	if window <= 0 {
		window = DefaultContextWindow
	}
	return &Assembler{systemDirective: systemDirective, window: window}
}

// Window returns the configured history window size.
func (a *Assembler) Window() int { return a.window }

// Assemble produces the exact sequence sent to the backend: the system
// directive first, then up to the window of prior turns oldest first,
// then the new turn last. history must already be ordered oldest first;
// when longer than the window, only the most recent turns survive.
//
// Only image attachments travel with a turn. Other attachment types are
// recorded in storage but never forwarded to the backend.
//
// Assemble is a pure function of its inputs and never touches storage,
// so retries and tests see identical output for identical input.
func (a *Assembler) Assemble(history []*datatypes.ChatMessage, newTurn *datatypes.ChatMessage) []llm.Message {
	if len(history) > a.window {
		history = history[len(history)-a.window:]
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{
		Role:    datatypes.RoleSystem,
		Content: a.systemDirective,
	})
	for _, turn := range history {
		messages = append(messages, toBackend(turn))
	}
	messages = append(messages, toBackend(newTurn))
	return messages
}

func toBackend(msg *datatypes.ChatMessage) llm.Message {
	bm := msg.ToBackendMessage()
	return llm.Message{Role: bm.Role, Content: bm.Content, Images: bm.Images}
}
