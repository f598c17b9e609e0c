package azureai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hellofriend/hellofriend/internal/reliability"
)

const (
	defaultAPIVersion = "2024-02-01"
	defaultMaxTokens  = 1000

	retryBackoffBase = 200 * time.Millisecond
	retryBackoffCap  = 2 * time.Second
)

// HTTPClient talks to the Azure OpenAI REST API using deployment-scoped
// endpoints and api-key header auth.
type HTTPClient struct {
	endpoint            string
	apiKey              string
	apiVersion          string
	chatDeployment      string
	embeddingDeployment string
	imageDeployment     string
	maxRetries          int
	client              *http.Client
}

func NewHTTPClient(cfg Config) *HTTPClient {
	version := strings.TrimSpace(cfg.APIVersion)
	if version == "" {
		version = defaultAPIVersion
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return &HTTPClient{
		endpoint:            strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/"),
		apiKey:              strings.TrimSpace(cfg.APIKey),
		apiVersion:          version,
		chatDeployment:      strings.TrimSpace(cfg.ChatDeployment),
		embeddingDeployment: strings.TrimSpace(cfg.EmbeddingDeployment),
		imageDeployment:     strings.TrimSpace(cfg.ImageDeployment),
		maxRetries:          retries,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

func (c *HTTPClient) deploymentURL(deployment, operation string) string {
	return fmt.Sprintf("%s/openai/deployments/%s/%s?api-version=%s",
		c.endpoint, url.PathEscape(deployment), operation, url.QueryEscape(c.apiVersion))
}

// doJSON posts a JSON payload, retrying retryable statuses with capped
// backoff. The response body is returned only on 2xx.
func (c *HTTPClient) doJSON(ctx context.Context, targetURL string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(reliability.ExponentialBackoff(attempt-1, retryBackoffBase, retryBackoffCap)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, targetURL, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("api-key", c.apiKey)

		res, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("send request: %w", err)
			continue
		}

		respBody, readErr := io.ReadAll(io.LimitReader(res.Body, 8<<20))
		res.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("read response: %w", readErr)
			continue
		}

		if res.StatusCode >= 200 && res.StatusCode < 300 {
			return respBody, nil
		}
		if isContentFilterResponse(res.StatusCode, respBody) {
			return nil, fmt.Errorf("%w: %s", ErrContentBlocked, errorSnippet(respBody))
		}
		lastErr = fmt.Errorf("azure openai status %d: %s", res.StatusCode, errorSnippet(respBody))
		if !reliability.IsRetryableHTTPStatus(res.StatusCode) {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

type chatRequest struct {
	Messages  []Message `json:"messages"`
	MaxTokens int       `json:"max_tokens"`
	Stream    bool      `json:"stream"`
}

type chatChoice struct {
	FinishReason string  `json:"finish_reason"`
	Message      Message `json:"message"`
	Delta        struct {
		Content string `json:"content"`
	} `json:"delta"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
}

func (c *HTTPClient) Complete(ctx context.Context, messages []Message, opts CompleteOptions) (string, error) {
	deployment := c.chatDeployment
	if strings.TrimSpace(opts.Model) != "" {
		deployment = opts.Model
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	body, err := c.doJSON(ctx, c.deploymentURL(deployment, "chat/completions"), chatRequest{
		Messages:  messages,
		MaxTokens: maxTokens,
	})
	if err != nil {
		if isBlocked(err) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrCompletionFailed, err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrCompletionFailed, err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choices", ErrCompletionFailed)
	}
	if parsed.Choices[0].FinishReason == "content_filter" {
		return "", ErrContentBlocked
	}
	return parsed.Choices[0].Message.Content, nil
}

func (c *HTTPClient) StreamComplete(ctx context.Context, messages []Message, opts CompleteOptions, onDelta DeltaHandler) (string, error) {
	deployment := c.chatDeployment
	if strings.TrimSpace(opts.Model) != "" {
		deployment = opts.Model
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	payload, err := json.Marshal(chatRequest{
		Messages:  messages,
		MaxTokens: maxTokens,
		Stream:    true,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.deploymentURL(deployment, "chat/completions"), bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", c.apiKey)
	req.Header.Set("Accept", "text/event-stream")

	res, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: send request: %v", ErrCompletionFailed, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		if isContentFilterResponse(res.StatusCode, body) {
			return "", fmt.Errorf("%w: %s", ErrContentBlocked, errorSnippet(body))
		}
		return "", fmt.Errorf("%w: status %d: %s", ErrCompletionFailed, res.StatusCode, errorSnippet(body))
	}

	return consumeSSE(res.Body, onDelta)
}

// consumeSSE reads "data: {json}" lines until [DONE], forwarding delta
// content to onDelta at the chunk boundaries the backend produced.
func consumeSSE(body io.Reader, onDelta DeltaHandler) (string, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var out strings.Builder
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if line == "[DONE]" {
			break
		}

		var chunk chatResponse
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if chunk.Choices[0].FinishReason == "content_filter" {
			return out.String(), ErrContentBlocked
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		out.WriteString(delta)
		if onDelta != nil {
			if err := onDelta(delta); err != nil {
				return out.String(), err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return out.String(), fmt.Errorf("%w: stream read: %v", ErrCompletionFailed, err)
	}
	return out.String(), nil
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (c *HTTPClient) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := c.doJSON(ctx, c.deploymentURL(c.embeddingDeployment, "embeddings"), map[string]any{
		"input": text,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrEmbeddingUnavailable, err)
	}
	if len(parsed.Data) == 0 || len(parsed.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("%w: empty embedding", ErrEmbeddingUnavailable)
	}
	return parsed.Data[0].Embedding, nil
}

type imageResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
}

func (c *HTTPClient) GenerateImage(ctx context.Context, prompt string) (string, error) {
	body, err := c.doJSON(ctx, c.deploymentURL(c.imageDeployment, "images/generations"), map[string]any{
		"prompt":  prompt,
		"n":       1,
		"size":    "1792x1024",
		"quality": "hd",
		"style":   "vivid",
	})
	if err != nil {
		if isBlocked(err) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrImageUnavailable, err)
	}

	var parsed imageResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrImageUnavailable, err)
	}
	if len(parsed.Data) == 0 || strings.TrimSpace(parsed.Data[0].URL) == "" {
		return "", fmt.Errorf("%w: empty image url", ErrImageUnavailable)
	}
	return parsed.Data[0].URL, nil
}

func isContentFilterResponse(status int, body []byte) bool {
	if status != http.StatusBadRequest {
		return false
	}
	return bytes.Contains(body, []byte("content_filter")) ||
		bytes.Contains(body, []byte("ResponsibleAIPolicyViolation"))
}

func isBlocked(err error) bool {
	return errors.Is(err, ErrContentBlocked)
}

func errorSnippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 256 {
		s = s[:256]
	}
	return s
}
