// Package websearch adapts a live web search collaborator. Results feed
// the context assembler when a turn needs fresh information.
package websearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Result is one normalized web hit.
type Result struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
}

// Searcher runs a live web query.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Result, error)
}

// ErrUnavailable marks a failed web search. Callers degrade to memory-only
// context rather than failing the turn.
var ErrUnavailable = errors.New("web search unavailable")

const (
	defaultEndpoint = "https://api.bing.microsoft.com/v7.0/search"
	maxResults      = 3
)

// Config controls searcher construction.
type Config struct {
	Mode     string // auto | http | mock
	APIKey   string
	Endpoint string
}

// New builds a searcher for the configured mode. Auto picks the live
// backend when a key is present, otherwise the deterministic mock.
func New(cfg Config) (Searcher, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}
	switch mode {
	case "auto":
		if strings.TrimSpace(cfg.APIKey) != "" {
			return NewBingSearcher(cfg.APIKey, cfg.Endpoint), nil
		}
		return NewMockSearcher(), nil
	case "http":
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, errors.New("web search api key is required for http mode")
		}
		return NewBingSearcher(cfg.APIKey, cfg.Endpoint), nil
	case "mock":
		return NewMockSearcher(), nil
	default:
		return nil, fmt.Errorf("unsupported web search mode %q", cfg.Mode)
	}
}

// BingSearcher queries the Bing Web Search REST API.
type BingSearcher struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

func NewBingSearcher(apiKey, endpoint string) *BingSearcher {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	return &BingSearcher{
		apiKey:   strings.TrimSpace(apiKey),
		endpoint: endpoint,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type bingResponse struct {
	WebPages struct {
		Value []struct {
			Name    string `json:"name"`
			Snippet string `json:"snippet"`
			URL     string `json:"url"`
		} `json:"value"`
	} `json:"webPages"`
}

func (s *BingSearcher) Search(ctx context.Context, query string) ([]Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		s.endpoint+"?q="+url.QueryEscape(query), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", s.apiKey)

	res, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: send request: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, res.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}

	var parsed bingResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}

	out := make([]Result, 0, maxResults)
	for _, item := range parsed.WebPages.Value {
		out = append(out, Result{Title: item.Name, Snippet: item.Snippet, URL: item.URL})
		if len(out) == maxResults {
			break
		}
	}
	return out, nil
}

// MockSearcher returns canned hits for dev loops without an API key.
type MockSearcher struct{}

func NewMockSearcher() *MockSearcher { return &MockSearcher{} }

func (s *MockSearcher) Search(ctx context.Context, query string) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []Result{
		{
			Title:   fmt.Sprintf("Results for %q", query),
			Snippet: "Mock web search is active; configure a search API key for live results.",
			URL:     "https://mock.local/search",
		},
	}, nil
}
