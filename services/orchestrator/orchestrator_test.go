// Copyright (C) 2026 AntiEcoSys
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/DrPechenyshka/AE/services/orchestrator/auth"
	"github.com/DrPechenyshka/AE/services/orchestrator/conversation"
)

func TestApplyConfigDefaults(t *testing.T) {
	cfg := applyConfigDefaults(Config{})

	assert.Equal(t, 8090, cfg.Port)
	assert.Equal(t, auth.DefaultTokenTTL, cfg.TokenTTL)
	assert.Equal(t, "http://localhost:11434", cfg.OllamaBaseURL)
	assert.Equal(t, "llama3", cfg.OllamaModel)
	assert.Equal(t, "./data/uploads", cfg.UploadDir)
	assert.Equal(t, conversation.DefaultContextWindow, cfg.ContextWindow)
	assert.NotEmpty(t, cfg.JWTSecret)
}

func TestApplyConfigDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := applyConfigDefaults(Config{
		Port:          9000,
		JWTSecret:     "real-secret",
		OllamaModel:   "mistral",
		ContextWindow: 20,
	})

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "real-secret", cfg.JWTSecret)
	assert.Equal(t, "mistral", cfg.OllamaModel)
	assert.Equal(t, 20, cfg.ContextWindow)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("ORCHESTRATOR_PORT", "9100")
	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("OLLAMA_MODEL", "mistral")
	t.Setenv("CONTEXT_WINDOW", "5")

	cfg := ConfigFromEnv()

	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, "env-secret", cfg.JWTSecret)
	assert.Equal(t, "mistral", cfg.OllamaModel)
	assert.Equal(t, 5, cfg.ContextWindow)
	assert.True(t, cfg.EnableMetrics)
}

func TestConfigFromEnv_InvalidNumbers(t *testing.T) {
	t.Setenv("ORCHESTRATOR_PORT", "not-a-port")
	t.Setenv("CONTEXT_WINDOW", "-3")

	cfg := ConfigFromEnv()

	assert.Zero(t, cfg.Port, "invalid port falls through to the default later")
	assert.Zero(t, cfg.ContextWindow)
}
