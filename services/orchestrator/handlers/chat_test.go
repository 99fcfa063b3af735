// Copyright (C) 2026 AntiEcoSys
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DrPechenyshka/AE/services/orchestrator/auth"
	"github.com/DrPechenyshka/AE/services/orchestrator/datatypes"
	"github.com/DrPechenyshka/AE/services/orchestrator/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeChat records calls and returns scripted results.
type fakeChat struct {
	exchangeCalls int
	saveCalls     int
	resp          *datatypes.ChatResponse
	history       *datatypes.HistoryResponse
	view          *datatypes.MessageView
	err           error
}

func (f *fakeChat) Exchange(_ context.Context, _ int64, _ *datatypes.ChatRequest) (*datatypes.ChatResponse, error) {
	f.exchangeCalls++
	return f.resp, f.err
}

func (f *fakeChat) History(_ context.Context, _ int64, _ int) (*datatypes.HistoryResponse, error) {
	return f.history, f.err
}

func (f *fakeChat) SaveMessage(_ context.Context, _ int64, _ *datatypes.SaveMessageRequest) (*datatypes.MessageView, error) {
	f.saveCalls++
	return f.view, f.err
}

var testTokens = auth.NewTokenService([]byte("handler-test-secret"), time.Hour)

func newChatRouter(chat ChatExchanger) *gin.Engine {
	router := gin.New()
	protected := router.Group("/v1")
	protected.Use(middleware.RequireAuth(testTokens))
	protected.POST("/chat", HandleChat(chat))
	protected.GET("/chat/history", HandleHistory(chat))
	protected.POST("/chat/messages", HandleSaveMessage(chat))
	return router
}

func authedRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	token, err := testTokens.Issue(1)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestHandleChat_Success(t *testing.T) {
	chat := &fakeChat{resp: &datatypes.ChatResponse{
		ResponseID: "r-1",
		Message:    datatypes.MessageView{Content: "Hi there", Role: datatypes.RoleAssistant},
		Model:      "llama3",
	}}
	router := newChatRouter(chat)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, authedRequest(t, "POST", "/v1/chat", datatypes.ChatRequest{Content: "Hello"}))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Hi there")
	assert.Equal(t, 1, chat.exchangeCalls)
}

func TestHandleChat_NoToken(t *testing.T) {
	chat := &fakeChat{}
	router := newChatRouter(chat)

	var buf bytes.Buffer
	json.NewEncoder(&buf).Encode(datatypes.ChatRequest{Content: "Hello"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", "/v1/chat", &buf))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Zero(t, chat.exchangeCalls, "no exchange may run without auth")
}

func TestHandleChat_EmptyPayload(t *testing.T) {
	chat := &fakeChat{}
	router := newChatRouter(chat)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, authedRequest(t, "POST", "/v1/chat", datatypes.ChatRequest{}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "content or attachments")
	assert.Zero(t, chat.exchangeCalls, "no backend call for empty payload")
}

func TestHandleChat_UnknownAttachmentType(t *testing.T) {
	chat := &fakeChat{}
	router := newChatRouter(chat)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, authedRequest(t, "POST", "/v1/chat", datatypes.ChatRequest{
		Content: "look",
		Attachments: []datatypes.Attachment{
			{URL: "/v1/uploads/x.mov", Type: "video"},
		},
	}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, chat.exchangeCalls)
}

func TestHandleChat_MalformedBody(t *testing.T) {
	chat := &fakeChat{}
	router := newChatRouter(chat)

	req := authedRequest(t, "POST", "/v1/chat", nil)
	req.Body = httptest.NewRequest("POST", "/", bytes.NewBufferString("{not json")).Body

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleHistory_Success(t *testing.T) {
	chat := &fakeChat{history: &datatypes.HistoryResponse{Messages: []datatypes.MessageView{
		{ID: 2, Content: "newest", Role: datatypes.RoleAssistant},
		{ID: 1, Content: "oldest", Role: datatypes.RoleUser},
	}}}
	router := newChatRouter(chat)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, authedRequest(t, "GET", "/v1/chat/history", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	var resp datatypes.HistoryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, "newest", resp.Messages[0].Content)
}

func TestHandleHistory_BadLimit(t *testing.T) {
	router := newChatRouter(&fakeChat{history: &datatypes.HistoryResponse{}})

	for _, limit := range []string{"abc", "-5", "0"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, authedRequest(t, "GET", "/v1/chat/history?limit="+limit, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, "limit %q", limit)
	}
}

func TestHandleSaveMessage(t *testing.T) {
	chat := &fakeChat{view: &datatypes.MessageView{ID: 1, Content: "stored", Role: datatypes.RoleUser}}
	router := newChatRouter(chat)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, authedRequest(t, "POST", "/v1/chat/messages", datatypes.SaveMessageRequest{
		Content: "stored",
	}))

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 1, chat.saveCalls)

	// Roles outside the closed set are rejected at the boundary.
	w = httptest.NewRecorder()
	router.ServeHTTP(w, authedRequest(t, "POST", "/v1/chat/messages", datatypes.SaveMessageRequest{
		Content: "x", Role: "system",
	}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 1, chat.saveCalls)
}
