package llm

import (
	"context"
	"time"
)

// Sampling profile for conversational generation. These apply whenever
// the corresponding GenerationParams field is nil; one profile keeps
// answers consistent across the service.
const (
	DefaultTemperature   = 0.7
	DefaultTopP          = 0.9
	DefaultTopK          = 40
	DefaultRepeatPenalty = 1.1
	DefaultNumPredict    = 2048
)

// GenerateTimeout bounds a single generation round trip. Local models
// on modest hardware can legitimately take minutes.
const GenerateTimeout = 5 * time.Minute

// ProbeTimeout bounds the liveness probe fired after a failed
// generation to distinguish a down backend from a slow one.
const ProbeTimeout = 5 * time.Second

// Outcome classifies how a generation attempt ended. Anything other
// than OutcomeSuccess is a degraded result, not an error: the caller
// decides what to tell the user.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeModelNotFound
	OutcomeBackendUnavailable
	OutcomeTimeout
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeModelNotFound:
		return "model_not_found"
	case OutcomeBackendUnavailable:
		return "backend_unavailable"
	case OutcomeTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// GenerationParams carries the per-request knobs a caller may set.
// Nil fields fall back to the fixed profile above.
type GenerationParams struct {
	Model       *string  `json:"model"`
	Temperature *float64 `json:"temperature"`
	TopP        *float64 `json:"top_p"`
	TopK        *int     `json:"top_k"`
	MaxTokens   *int     `json:"max_tokens"`
}

// Message is one turn handed to the backend. Images holds the serving
// URLs of image attachments; non-image attachments never reach the
// backend.
type Message struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

// GenerationResult is the classified outcome of one generation attempt.
// Text and ModelTag are meaningful only when Outcome is OutcomeSuccess;
// Detail carries the backend's own words for logs and diagnostics.
type GenerationResult struct {
	Outcome  Outcome
	Text     string
	ModelTag string
	Detail   string
	Duration time.Duration
}

// ModelInfo describes one model the backend has available.
type ModelInfo struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

// LLMClient defines the standard interface for any LLM backend.
type LLMClient interface {
	Chat(ctx context.Context, messages []Message, params GenerationParams) (*GenerationResult, error)
	ListModels(ctx context.Context) ([]ModelInfo, error)
	PullModel(ctx context.Context, name string) error
	CheckHealth(ctx context.Context) error
}
