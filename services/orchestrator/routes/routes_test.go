// Copyright (C) 2026 AntiEcoSys
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/DrPechenyshka/AE/services/llm"
	"github.com/DrPechenyshka/AE/services/orchestrator/auth"
	"github.com/DrPechenyshka/AE/services/orchestrator/conversation"
	"github.com/DrPechenyshka/AE/services/orchestrator/datatypes"
	"github.com/DrPechenyshka/AE/services/orchestrator/services"
	"github.com/DrPechenyshka/AE/services/orchestrator/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupStore(t *testing.T) *storage.Store {
	t.Helper()

	dsn := fmt.Sprintf("file:routes_%s?mode=memory&cache=shared", t.Name())
	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	schema := []string{
		`CREATE TABLE users (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			name          TEXT NOT NULL,
			created_at    TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE chat_messages (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id     INTEGER,
			role        TEXT NOT NULL,
			content     TEXT NOT NULL,
			attachments TEXT NOT NULL DEFAULT '[]',
			model_tag   TEXT NOT NULL DEFAULT '',
			created_at  TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE uploads (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			filename      TEXT NOT NULL UNIQUE,
			original_name TEXT NOT NULL,
			mime_type     TEXT NOT NULL,
			size          INTEGER NOT NULL,
			path          TEXT NOT NULL,
			user_id       INTEGER NOT NULL,
			created_at    TIMESTAMP NOT NULL
		)`,
	}
	for _, stmt := range schema {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	return storage.NewStore(db)
}

// setupRouter wires the real stack end to end: sqlite storage, real
// token service, real chat pipeline, and an Ollama stub at backendURL.
func setupRouter(t *testing.T, store *storage.Store, backendURL string) *gin.Engine {
	t.Helper()

	client, err := llm.NewOllamaClient(backendURL, "llama3")
	require.NoError(t, err)

	tokens := auth.NewTokenService([]byte("routes-test-secret"), time.Hour)
	assembler := conversation.NewAssembler("", 10)
	chat := services.NewChatService(store.Messages(), assembler, client, nil)

	router := gin.New()
	SetupRoutes(router, Deps{
		Store:     store,
		LLMClient: client,
		Tokens:    tokens,
		Chat:      chat,
		UploadDir: t.TempDir(),
	})
	return router
}

func fakeOllama(t *testing.T, answer string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/chat":
			json.NewEncoder(w).Encode(map[string]any{
				"model":   "llama3",
				"message": map[string]string{"role": "assistant", "content": answer},
				"done":    true,
			})
		case "/api/tags":
			w.Write([]byte(`{"models":[{"name":"llama3"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(router *gin.Engine, method, target, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func registerAndLogin(t *testing.T, router *gin.Engine) string {
	t.Helper()
	w := doJSON(router, "POST", "/v1/auth/register", "", datatypes.RegisterRequest{
		Email: "alice@example.com", Password: "longenough", Name: "Alice",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp datatypes.AuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Token
}

func TestFullExchange_Success(t *testing.T) {
	store := setupStore(t)
	backend := fakeOllama(t, "Hi there")
	router := setupRouter(t, store, backend.URL)

	token := registerAndLogin(t, router)

	w := doJSON(router, "POST", "/v1/chat", token, datatypes.ChatRequest{Content: "Hello"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp datatypes.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Degraded)
	assert.Equal(t, "Hi there", resp.Message.Content)
	assert.Equal(t, "llama3", resp.Model)

	// History now holds both turns, newest first.
	w = doJSON(router, "GET", "/v1/chat/history", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var history datatypes.HistoryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	require.Len(t, history.Messages, 2)
	assert.Equal(t, "Hi there", history.Messages[0].Content)
	assert.Equal(t, "llama3", history.Messages[0].ModelTag)
	assert.Equal(t, "Hello", history.Messages[1].Content)
}

func TestFullExchange_BackendDownDegrades(t *testing.T) {
	store := setupStore(t)
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	router := setupRouter(t, store, backend.URL)
	backend.Close() // Nothing listening anymore.

	token := registerAndLogin(t, router)

	w := doJSON(router, "POST", "/v1/chat", token, datatypes.ChatRequest{Content: "Hello"})
	require.Equal(t, http.StatusOK, w.Code, "backend faults never become error statuses")

	var resp datatypes.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Degraded)
	assert.Equal(t, datatypes.ModelTagFallback, resp.Model)
	assert.NotEmpty(t, resp.Message.Content)

	w = doJSON(router, "GET", "/v1/chat/history", token, nil)
	var history datatypes.HistoryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	require.Len(t, history.Messages, 2)
	assert.Equal(t, datatypes.ModelTagFallback, history.Messages[0].ModelTag)
}

func TestChat_NoTokenWritesNothing(t *testing.T) {
	store := setupStore(t)
	backend := fakeOllama(t, "Hi there")
	router := setupRouter(t, store, backend.URL)

	w := doJSON(router, "POST", "/v1/chat", "", datatypes.ChatRequest{Content: "Hello"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var count int
	require.NoError(t, store.Conn().QueryRow("SELECT COUNT(*) FROM chat_messages").Scan(&count))
	assert.Zero(t, count)
}

func TestChat_EmptyPayloadWritesNothing(t *testing.T) {
	store := setupStore(t)
	backend := fakeOllama(t, "Hi there")
	router := setupRouter(t, store, backend.URL)

	token := registerAndLogin(t, router)

	w := doJSON(router, "POST", "/v1/chat", token, datatypes.ChatRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var count int
	require.NoError(t, store.Conn().QueryRow("SELECT COUNT(*) FROM chat_messages").Scan(&count))
	assert.Zero(t, count)
}

func TestHealthIsPublic(t *testing.T) {
	store := setupStore(t)
	backend := fakeOllama(t, "x")
	router := setupRouter(t, store, backend.URL)

	w := doJSON(router, "GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestModelsRequireAuth(t *testing.T) {
	store := setupStore(t)
	backend := fakeOllama(t, "x")
	router := setupRouter(t, store, backend.URL)

	w := doJSON(router, "GET", "/v1/models", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token := registerAndLogin(t, router)
	w = doJSON(router, "GET", "/v1/models", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "llama3")
}
