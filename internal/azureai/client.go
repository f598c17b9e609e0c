// Package azureai adapts the Azure OpenAI REST surface (chat completions,
// embeddings, image generation) behind narrow interfaces so the core never
// sees backend-specific shapes.
package azureai

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Message is one role/content pair sent to the completion API.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompleteOptions tunes a single completion call.
type CompleteOptions struct {
	Model     string
	MaxTokens int
}

// DeltaHandler receives streaming completion fragments as the backend
// produces them. Returning an error aborts the stream.
type DeltaHandler func(delta string) error

// Completer produces assistant text from a message list.
type Completer interface {
	Complete(ctx context.Context, messages []Message, opts CompleteOptions) (string, error)
	StreamComplete(ctx context.Context, messages []Message, opts CompleteOptions, onDelta DeltaHandler) (string, error)
}

// Embedder converts text into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ImageGenerator renders a prompt into a hosted image and returns its URL.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

// Client bundles every capability the assistant consumes from the model
// backend. The HTTP and mock implementations both satisfy it.
type Client interface {
	Completer
	Embedder
	ImageGenerator
}

var (
	// ErrEmbeddingUnavailable marks a failed embedding call. Callers are
	// expected to degrade (persist without a vector) rather than abort.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")

	// ErrCompletionFailed marks a failed completion call. Fatal for the turn.
	ErrCompletionFailed = errors.New("completion failed")

	// ErrImageUnavailable marks a failed image generation. Fatal for the turn.
	ErrImageUnavailable = errors.New("image generation unavailable")

	// ErrContentBlocked is returned when the backend's content policy
	// rejects the request. Surfaced to callers as a distinct result so the
	// UI can render a "blocked" state instead of a generic failure.
	ErrContentBlocked = errors.New("content blocked by policy")
)

// Config controls client construction.
type Config struct {
	Mode string // auto | http | mock

	Endpoint            string
	APIKey              string
	APIVersion          string
	ChatDeployment      string
	EmbeddingDeployment string
	ImageDeployment     string

	// EmbeddingDim is the vector width the mock produces; the HTTP backend
	// dictates its own width.
	EmbeddingDim int

	MaxRetries int
}

// NewClient builds a client for the configured mode. Auto picks HTTP when
// an endpoint and key are present and falls back to the deterministic mock.
func NewClient(cfg Config) (Client, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		if strings.TrimSpace(cfg.Endpoint) != "" && strings.TrimSpace(cfg.APIKey) != "" {
			return NewHTTPClient(cfg), nil
		}
		return NewMockClient(cfg.EmbeddingDim), nil
	case "http":
		if strings.TrimSpace(cfg.Endpoint) == "" {
			return nil, errors.New("azure openai endpoint is required for http mode")
		}
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, errors.New("azure openai api key is required for http mode")
		}
		return NewHTTPClient(cfg), nil
	case "mock":
		return NewMockClient(cfg.EmbeddingDim), nil
	default:
		return nil, fmt.Errorf("unsupported azure openai client mode %q", cfg.Mode)
	}
}
