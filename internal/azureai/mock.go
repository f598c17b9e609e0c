package azureai

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
)

const defaultMockEmbeddingDim = 1536

// MockClient provides deterministic local behavior when no Azure OpenAI
// credentials are configured. Useful for dev loops and tests.
type MockClient struct {
	embeddingDim int
}

func NewMockClient(embeddingDim int) *MockClient {
	if embeddingDim <= 0 {
		embeddingDim = defaultMockEmbeddingDim
	}
	return &MockClient{embeddingDim: embeddingDim}
}

func (c *MockClient) Complete(ctx context.Context, messages []Message, _ CompleteOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return buildMockReply(messages), nil
}

func (c *MockClient) StreamComplete(ctx context.Context, messages []Message, _ CompleteOptions, onDelta DeltaHandler) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text := buildMockReply(messages)
	// Emit word-sized chunks so stream consumers exercise real accumulation.
	var out strings.Builder
	for i, word := range strings.Fields(text) {
		chunk := word
		if i > 0 {
			chunk = " " + word
		}
		out.WriteString(chunk)
		if onDelta != nil {
			if err := onDelta(chunk); err != nil {
				return out.String(), err
			}
		}
	}
	return out.String(), nil
}

func (c *MockClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// Hash-seeded pseudo-embedding: equal text maps to equal vectors, so
	// similarity search stays stable across calls.
	vec := make([]float32, c.embeddingDim)
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(strings.TrimSpace(text))))
	seed := h.Sum32()
	for i := range vec {
		seed = seed*1664525 + 1013904223
		vec[i] = float32(seed%2000)/1000 - 1
	}
	return vec, nil
}

func (c *MockClient) GenerateImage(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(prompt))
	return fmt.Sprintf("https://mock.local/images/%08x.png", h.Sum32()), nil
}

func buildMockReply(messages []Message) string {
	var last string
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			last = strings.TrimSpace(messages[i].Content)
			break
		}
	}
	if last == "" {
		return "I am listening."
	}
	return fmt.Sprintf("I heard you: %s", last)
}
