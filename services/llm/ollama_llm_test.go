package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) (*OllamaClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewOllamaClient(srv.URL, "llama3")
	require.NoError(t, err)
	return client, srv
}

func TestChat_Success(t *testing.T) {
	var gotReq ollamaChatRequest
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(ollamaChatResponse{
			Model:   "llama3",
			Message: Message{Role: "assistant", Content: "hello there"},
			Done:    true,
		})
	}))

	result, err := client.Chat(context.Background(), []Message{
		{Role: "system", Content: "be helpful"},
		{Role: "user", Content: "hi"},
	}, GenerationParams{})
	require.NoError(t, err)

	assert.Equal(t, OutcomeSuccess, result.Outcome)
	assert.Equal(t, "hello there", result.Text)
	assert.Equal(t, "llama3", result.ModelTag)

	assert.Equal(t, "llama3", gotReq.Model)
	assert.False(t, gotReq.Stream)
	assert.Len(t, gotReq.Messages, 2)
	assert.InDelta(t, DefaultTemperature, gotReq.Options["temperature"], 0.001)
	assert.InDelta(t, DefaultTopP, gotReq.Options["top_p"], 0.001)
	assert.EqualValues(t, DefaultTopK, gotReq.Options["top_k"])
	assert.InDelta(t, DefaultRepeatPenalty, gotReq.Options["repeat_penalty"], 0.001)
	assert.EqualValues(t, DefaultNumPredict, gotReq.Options["num_predict"])
}

func TestChat_ModelOverride(t *testing.T) {
	var gotReq ollamaChatRequest
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(ollamaChatResponse{
			Model:   "mistral",
			Message: Message{Role: "assistant", Content: "ok"},
			Done:    true,
		})
	}))

	model := "mistral"
	result, err := client.Chat(context.Background(), []Message{
		{Role: "user", Content: "hi"},
	}, GenerationParams{Model: &model})
	require.NoError(t, err)

	assert.Equal(t, OutcomeSuccess, result.Outcome)
	assert.Equal(t, "mistral", result.ModelTag)
	assert.Equal(t, "mistral", gotReq.Model)
}

func TestChat_ModelNotFound(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(ollamaErrorResponse{Error: `model "nope" not found, try pulling it first`})
	}))

	result, err := client.Chat(context.Background(), []Message{
		{Role: "user", Content: "hi"},
	}, GenerationParams{})
	require.NoError(t, err)

	assert.Equal(t, OutcomeModelNotFound, result.Outcome)
	assert.Empty(t, result.Text)
	assert.Contains(t, result.Detail, "not found")
}

func TestChat_BackendError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))

	result, err := client.Chat(context.Background(), []Message{
		{Role: "user", Content: "hi"},
	}, GenerationParams{})
	require.NoError(t, err)

	assert.Equal(t, OutcomeBackendUnavailable, result.Outcome)
	assert.Contains(t, result.Detail, "500")
	assert.Contains(t, result.Detail, "probe:")
}

func TestChat_BackendErrorProbesLiveness(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			w.Write([]byte(`{"models":[]}`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))

	result, err := client.Chat(context.Background(), []Message{
		{Role: "user", Content: "hi"},
	}, GenerationParams{})
	require.NoError(t, err)

	// The backend answers its tags endpoint, so the generation failure
	// is an erroring backend rather than a down one. The classification
	// stays BackendUnavailable either way; only the detail differs.
	assert.Equal(t, OutcomeBackendUnavailable, result.Outcome)
	assert.Contains(t, result.Detail, "probe: backend reachable")
}

func TestChat_BackendDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	client, err := NewOllamaClient(srv.URL, "llama3")
	require.NoError(t, err)
	srv.Close() // Nothing listening anymore.

	result, err := client.Chat(context.Background(), []Message{
		{Role: "user", Content: "hi"},
	}, GenerationParams{})
	require.NoError(t, err)

	assert.Equal(t, OutcomeBackendUnavailable, result.Outcome)
	assert.NotEmpty(t, result.Detail)
}

func TestChat_Timeout(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			w.Write([]byte(`{"models":[]}`))
			return
		}
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	result, err := client.Chat(ctx, []Message{
		{Role: "user", Content: "hi"},
	}, GenerationParams{})
	require.NoError(t, err)

	// A slow backend still answers the probe, which is exactly the
	// "down vs slow" distinction the detail carries.
	assert.Equal(t, OutcomeTimeout, result.Outcome)
	assert.Contains(t, result.Detail, "probe: backend reachable")
}

func TestChat_MalformedResponse(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{not json"))
	}))

	result, err := client.Chat(context.Background(), []Message{
		{Role: "user", Content: "hi"},
	}, GenerationParams{})
	require.NoError(t, err)

	assert.Equal(t, OutcomeBackendUnavailable, result.Outcome)
	assert.Contains(t, result.Detail, "malformed response")
}

func TestListModels(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/tags", r.URL.Path)
		json.NewEncoder(w).Encode(ollamaTagsResponse{Models: []ModelInfo{
			{Name: "llama3", Size: 4661224676},
			{Name: "mistral", Size: 4109865159},
		}})
	}))

	models, err := client.ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "llama3", models[0].Name)
}

func TestPullModel(t *testing.T) {
	var gotReq ollamaPullRequest
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/pull", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(map[string]string{"status": "success"})
	}))

	require.NoError(t, client.PullModel(context.Background(), "mistral"))
	assert.Equal(t, "mistral", gotReq.Name)
	assert.False(t, gotReq.Stream)

	assert.Error(t, client.PullModel(context.Background(), ""))
}

func TestCheckHealth(t *testing.T) {
	healthy, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"models":[]}`))
	}))
	assert.NoError(t, healthy.CheckHealth(context.Background()))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	down, err := NewOllamaClient(srv.URL, "llama3")
	require.NoError(t, err)
	srv.Close()
	assert.Error(t, down.CheckHealth(context.Background()))
}

func TestNewOllamaClient_Validation(t *testing.T) {
	_, err := NewOllamaClient("", "llama3")
	assert.Error(t, err)

	_, err = NewOllamaClient("http://localhost:11434", "")
	assert.Error(t, err)

	client, err := NewOllamaClient("http://localhost:11434/", "llama3")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:11434", client.baseURL)
}
