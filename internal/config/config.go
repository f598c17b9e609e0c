package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the assistant service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	DatabaseURL        string
	MemoryEmbeddingDim int

	AzureOpenAIMode                string
	AzureOpenAIEndpoint            string
	AzureOpenAIAPIKey              string
	AzureOpenAIAPIVersion          string
	AzureOpenAIChatDeployment      string
	AzureOpenAIEmbeddingDeployment string
	AzureOpenAIImageDeployment     string
	AzureOpenAIMaxRetries          int

	WebSearchMode     string
	BingSearchAPIKey  string
	BingSearchBaseURL string

	SummaryMinTurns    int
	SummaryTokenBudget int
	RetrievalLimit     int
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:              envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:      envOrDefault("APP_METRICS_NAMESPACE", "hellofriend"),
		AllowAnyOrigin:        false,
		DatabaseURL:           stringsTrimSpace("DATABASE_URL"),
		MemoryEmbeddingDim:    1536,
		AzureOpenAIMode:       envOrDefault("AZURE_OPENAI_MODE", "auto"),
		AzureOpenAIEndpoint:   stringsTrimSpace("AZURE_OPENAI_ENDPOINT"),
		AzureOpenAIAPIKey:     stringsTrimSpace("AZURE_OPENAI_API_KEY"),
		AzureOpenAIAPIVersion: envOrDefault("AZURE_OPENAI_API_VERSION", "2024-02-01"),
		// Deployment names follow the Azure portal defaults for this app.
		AzureOpenAIChatDeployment:      envOrDefault("AZURE_OPENAI_CHAT_DEPLOYMENT", "gpt-4o"),
		AzureOpenAIEmbeddingDeployment: envOrDefault("AZURE_OPENAI_EMBEDDING_DEPLOYMENT", "text-embedding-ada-002"),
		AzureOpenAIImageDeployment:     envOrDefault("AZURE_OPENAI_IMAGE_DEPLOYMENT", "dall-e-3"),
		AzureOpenAIMaxRetries:          3,
		WebSearchMode:                  envOrDefault("WEB_SEARCH_MODE", "auto"),
		BingSearchAPIKey:               stringsTrimSpace("BING_SEARCH_API_KEY"),
		BingSearchBaseURL:              stringsTrimSpace("BING_SEARCH_ENDPOINT"),
		SummaryMinTurns:                10,
		SummaryTokenBudget:             3000,
		RetrievalLimit:                 5,
		ShutdownTimeout:                15 * time.Second,
	}
	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.MemoryEmbeddingDim, err = intFromEnv("MEMORY_EMBEDDING_DIM", cfg.MemoryEmbeddingDim)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.AzureOpenAIMaxRetries, err = intFromEnv("AZURE_OPENAI_MAX_RETRIES", cfg.AzureOpenAIMaxRetries)
	if err != nil {
		return Config{}, err
	}
	cfg.SummaryMinTurns, err = intFromEnv("SUMMARY_MIN_TURNS", cfg.SummaryMinTurns)
	if err != nil {
		return Config{}, err
	}
	cfg.SummaryTokenBudget, err = intFromEnv("SUMMARY_TOKEN_BUDGET", cfg.SummaryTokenBudget)
	if err != nil {
		return Config{}, err
	}
	cfg.RetrievalLimit, err = intFromEnv("RETRIEVAL_LIMIT", cfg.RetrievalLimit)
	if err != nil {
		return Config{}, err
	}

	if cfg.ShutdownTimeout < time.Second {
		return Config{}, fmt.Errorf("APP_SHUTDOWN_TIMEOUT must be at least 1s")
	}
	if cfg.MemoryEmbeddingDim <= 0 {
		return Config{}, fmt.Errorf("MEMORY_EMBEDDING_DIM must be positive")
	}
	if cfg.AzureOpenAIMaxRetries < 0 {
		return Config{}, fmt.Errorf("AZURE_OPENAI_MAX_RETRIES must be >= 0")
	}
	if cfg.SummaryMinTurns <= 0 {
		return Config{}, fmt.Errorf("SUMMARY_MIN_TURNS must be positive")
	}
	if cfg.SummaryTokenBudget <= 0 {
		return Config{}, fmt.Errorf("SUMMARY_TOKEN_BUDGET must be positive")
	}
	if cfg.RetrievalLimit <= 0 {
		return Config{}, fmt.Errorf("RETRIEVAL_LIMIT must be positive")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return trimSpace(os.Getenv(key))
}

func trimSpace(v string) string {
	for len(v) > 0 && (v[0] == ' ' || v[0] == '\n' || v[0] == '\t' || v[0] == '\r') {
		v = v[1:]
	}
	for len(v) > 0 {
		c := v[len(v)-1]
		if c == ' ' || c == '\n' || c == '\t' || c == '\r' {
			v = v[:len(v)-1]
			continue
		}
		break
	}
	return v
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
