package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("ae.llm.ollama")

var _ LLMClient = (*OllamaClient)(nil)

type OllamaClient struct {
	httpClient  *http.Client
	probeClient *http.Client
	baseURL     string
	model       string
}

type ollamaChatRequest struct {
	Model    string                 `json:"model"`
	Messages []Message              `json:"messages"`
	Stream   bool                   `json:"stream"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Model     string  `json:"model"`
	CreatedAt string  `json:"created_at"`
	Message   Message `json:"message"`
	Done      bool    `json:"done"`
}

type ollamaErrorResponse struct {
	Error string `json:"error"`
}

type ollamaTagsResponse struct {
	Models []ModelInfo `json:"models"`
}

type ollamaPullRequest struct {
	Name   string `json:"name"`
	Stream bool   `json:"stream"`
}

func NewOllamaClient(baseURL, model string) (*OllamaClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("ollama base URL not set")
	}
	if model == "" {
		return nil, fmt.Errorf("ollama default model not set")
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	slog.Info("Initializing Ollama client", "base_url", baseURL, "default_model", model)
	return &OllamaClient{
		httpClient:  &http.Client{Timeout: GenerateTimeout},
		probeClient: &http.Client{Timeout: ProbeTimeout},
		baseURL:     baseURL,
		model:       model,
	}, nil
}

// Model returns the configured default model tag.
func (o *OllamaClient) Model() string { return o.model }

// Chat runs one non-streaming generation round trip. Backend faults do
// not come back as errors; they come back classified in the result so
// the caller can degrade instead of failing. The returned error is
// reserved for request construction problems.
func (o *OllamaClient) Chat(ctx context.Context, messages []Message,
	params GenerationParams) (*GenerationResult, error) {

	ctx, span := tracer.Start(ctx, "OllamaClient.Chat")
	defer span.End()

	model := o.model
	if params.Model != nil && *params.Model != "" {
		model = *params.Model
	}
	span.SetAttributes(attribute.String("llm.model", model))
	span.SetAttributes(attribute.Int("llm.num_messages", len(messages)))

	options := map[string]interface{}{
		"temperature":    DefaultTemperature,
		"top_p":          DefaultTopP,
		"top_k":          DefaultTopK,
		"repeat_penalty": DefaultRepeatPenalty,
		"num_predict":    DefaultNumPredict,
	}
	if params.Temperature != nil {
		options["temperature"] = *params.Temperature
	}
	if params.TopP != nil {
		options["top_p"] = *params.TopP
	}
	if params.TopK != nil {
		options["top_k"] = *params.TopK
	}
	if params.MaxTokens != nil {
		options["num_predict"] = *params.MaxTokens
	}

	payload := ollamaChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   false,
		Options:  options,
	}
	reqBody, err := json.Marshal(payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to marshal chat request to Ollama: %w", err)
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, GenerateTimeout)
	defer cancel()

	// Use NewRequestWithContext to respect context cancellation/timeout
	req, err := http.NewRequestWithContext(ctx, "POST", o.baseURL+"/api/chat", bytes.NewBuffer(reqBody))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to create chat request to Ollama: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		elapsed := time.Since(start)
		outcome := OutcomeBackendUnavailable
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			outcome = OutcomeTimeout
		}
		detail := o.withProbeDetail(err.Error())
		span.SetAttributes(attribute.String("llm.outcome", outcome.String()))
		slog.Warn("Ollama chat call failed", "outcome", outcome.String(), "error", err)
		return &GenerationResult{Outcome: outcome, Detail: detail, Duration: elapsed}, nil
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	elapsed := time.Since(start)
	if err != nil {
		span.RecordError(err)
		slog.Warn("Failed to read Ollama chat response", "error", err)
		return &GenerationResult{
			Outcome: OutcomeBackendUnavailable, Detail: o.withProbeDetail(err.Error()), Duration: elapsed,
		}, nil
	}

	if resp.StatusCode != http.StatusOK {
		outcome := OutcomeBackendUnavailable
		var errResp ollamaErrorResponse
		if resp.StatusCode == http.StatusNotFound {
			if jsonErr := json.Unmarshal(respBody, &errResp); jsonErr == nil &&
				strings.Contains(errResp.Error, "model") && strings.Contains(errResp.Error, "not found") {
				outcome = OutcomeModelNotFound
				slog.Warn("Ollama model not found", "model", model)
			}
		}
		span.SetAttributes(attribute.String("llm.outcome", outcome.String()))
		if outcome != OutcomeModelNotFound {
			slog.Error("Ollama chat returned an error", "status_code", resp.StatusCode,
				"response", string(respBody))
		}
		detail := errResp.Error
		if detail == "" {
			detail = fmt.Sprintf("status %d: %s", resp.StatusCode, string(respBody))
		}
		return &GenerationResult{Outcome: outcome, Detail: o.withProbeDetail(detail), Duration: elapsed}, nil
	}

	var ollamaResp ollamaChatResponse
	if err := json.Unmarshal(respBody, &ollamaResp); err != nil {
		span.RecordError(err)
		slog.Error("Failed to parse JSON chat response from Ollama", "error", err,
			"response", string(respBody))
		return &GenerationResult{
			Outcome:  OutcomeBackendUnavailable,
			Detail:   o.withProbeDetail(fmt.Sprintf("malformed response: %s", err.Error())),
			Duration: elapsed,
		}, nil
	}

	modelTag := ollamaResp.Model
	if modelTag == "" {
		modelTag = model
	}
	span.SetAttributes(attribute.String("llm.outcome", OutcomeSuccess.String()))
	slog.Debug("Received chat response from Ollama", "model", modelTag, "duration", elapsed)
	return &GenerationResult{
		Outcome:  OutcomeSuccess,
		Text:     ollamaResp.Message.Content,
		ModelTag: modelTag,
		Duration: elapsed,
	}, nil
}

// ListModels returns the models the backend currently has pulled.
func (o *OllamaClient) ListModels(ctx context.Context) ([]ModelInfo, error) {
	ctx, span := tracer.Start(ctx, "OllamaClient.ListModels")
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, "GET", o.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create tags request to Ollama: %w", err)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("ollama tags call failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read tags response from Ollama: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama tags failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var tags ollamaTagsResponse
	if err := json.Unmarshal(respBody, &tags); err != nil {
		return nil, fmt.Errorf("failed to parse Ollama tags response: %w", err)
	}
	return tags.Models, nil
}

// PullModel asks the backend to download a model. The call blocks until
// the pull completes; pass a context with whatever deadline suits the
// caller.
func (o *OllamaClient) PullModel(ctx context.Context, name string) error {
	ctx, span := tracer.Start(ctx, "OllamaClient.PullModel")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", name))

	if name == "" {
		return fmt.Errorf("model name is required")
	}

	reqBody, err := json.Marshal(ollamaPullRequest{Name: name, Stream: false})
	if err != nil {
		return fmt.Errorf("failed to marshal pull request to Ollama: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", o.baseURL+"/api/pull", bytes.NewBuffer(reqBody))
	if err != nil {
		return fmt.Errorf("failed to create pull request to Ollama: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	slog.Info("Pulling Ollama model", "model", name)
	resp, err := o.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("ollama pull call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("ollama pull failed with status %d: %s", resp.StatusCode, string(respBody))
	}
	slog.Info("Ollama model pull complete", "model", name)
	return nil
}

// CheckHealth reports whether the backend answers its tags endpoint
// within the probe timeout.
func (o *OllamaClient) CheckHealth(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", o.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("failed to create health request to Ollama: %w", err)
	}
	resp, err := o.probeClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama unreachable: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama health check failed with status %d", resp.StatusCode)
	}
	return nil
}

func (o *OllamaClient) probe() error {
	ctx, cancel := context.WithTimeout(context.Background(), ProbeTimeout)
	defer cancel()
	return o.CheckHealth(ctx)
}

// withProbeDetail runs the best-effort liveness probe after a failed
// generation and folds its result into detail, so logs can tell a down
// backend apart from a slow or erroring one. The outcome classification
// never changes based on the probe.
func (o *OllamaClient) withProbeDetail(detail string) string {
	if err := o.probe(); err != nil {
		return fmt.Sprintf("%s; probe: %s", detail, err.Error())
	}
	return detail + "; probe: backend reachable"
}
