// Package app assembles the assistant from configuration: storage,
// model clients, retrieval, summarization, orchestration, and the HTTP
// surface.
package app

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hellofriend/hellofriend/internal/azureai"
	"github.com/hellofriend/hellofriend/internal/chat"
	"github.com/hellofriend/hellofriend/internal/config"
	"github.com/hellofriend/hellofriend/internal/conversation"
	"github.com/hellofriend/hellofriend/internal/httpapi"
	"github.com/hellofriend/hellofriend/internal/ingest"
	"github.com/hellofriend/hellofriend/internal/memory"
	"github.com/hellofriend/hellofriend/internal/observability"
	"github.com/hellofriend/hellofriend/internal/retrieval"
	"github.com/hellofriend/hellofriend/internal/vectorindex"
	"github.com/hellofriend/hellofriend/internal/websearch"
)

const stageWindowSamples = 512

type BuildResult struct {
	Config       config.Config
	API          *httpapi.Server
	Orchestrator *chat.Orchestrator
	Metrics      *observability.Metrics
	Window       *observability.StageWindow

	// Cleanup should be called on shutdown to release external resources.
	Cleanup func() error
}

func Build(ctx context.Context, cfg config.Config) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)
	window := observability.NewStageWindow(stageWindowSamples)

	// One pool backs memory records, vectors, and conversations so the
	// namespace fields stay referentially consistent in a single database.
	var pool *pgxpool.Pool
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		var err error
		pool, err = pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("database pool init failed: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("database unreachable: %w", err)
		}
	} else {
		log.Printf("app: DATABASE_URL not set, using in-memory stores")
	}

	closePool := func() {
		if pool != nil {
			pool.Close()
		}
	}

	ai, err := azureai.NewClient(azureai.Config{
		Mode:                cfg.AzureOpenAIMode,
		Endpoint:            cfg.AzureOpenAIEndpoint,
		APIKey:              cfg.AzureOpenAIAPIKey,
		APIVersion:          cfg.AzureOpenAIAPIVersion,
		ChatDeployment:      cfg.AzureOpenAIChatDeployment,
		EmbeddingDeployment: cfg.AzureOpenAIEmbeddingDeployment,
		ImageDeployment:     cfg.AzureOpenAIImageDeployment,
		EmbeddingDim:        cfg.MemoryEmbeddingDim,
		MaxRetries:          cfg.AzureOpenAIMaxRetries,
	})
	if err != nil {
		closePool()
		return nil, fmt.Errorf("azure openai client init failed: %w", err)
	}

	var index vectorindex.Index
	if pool != nil {
		index, err = vectorindex.NewPostgresIndex(ctx, pool, cfg.MemoryEmbeddingDim)
		if err != nil {
			closePool()
			return nil, fmt.Errorf("vector index init failed: %w", err)
		}
	} else {
		index = vectorindex.NewInMemoryIndex()
	}

	memStore, err := memory.NewStore(ctx, pool, cfg.MemoryEmbeddingDim)
	if err != nil {
		closePool()
		return nil, fmt.Errorf("memory store init failed: %w", err)
	}
	memories := memory.NewService(memStore, index, ai)

	convStore, err := conversation.NewStore(ctx, pool)
	if err != nil {
		closePool()
		return nil, fmt.Errorf("conversation store init failed: %w", err)
	}

	searcher, err := websearch.New(websearch.Config{
		Mode:     cfg.WebSearchMode,
		APIKey:   cfg.BingSearchAPIKey,
		Endpoint: cfg.BingSearchBaseURL,
	})
	if err != nil {
		closePool()
		return nil, fmt.Errorf("web search init failed: %w", err)
	}

	engine := retrieval.NewEngine(ai, index, memStore, metrics)
	summarizer := conversation.NewSummarizer(convStore, ai, memories, metrics)
	summarizer.SetThresholds(cfg.SummaryMinTurns, cfg.SummaryTokenBudget)

	orchestrator := chat.NewOrchestrator(memories, convStore, engine, ai, searcher, summarizer, metrics, window)
	orchestrator.SetRetrievalLimit(cfg.RetrievalLimit)

	files := ingest.NewService(memories)
	api := httpapi.New(cfg, orchestrator, memories, convStore, engine, files, window)

	cleanup := func() error {
		var errs []string
		if err := convStore.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		if err := memStore.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		if err := index.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		closePool()
		if len(errs) > 0 {
			return fmt.Errorf("%s", strings.Join(errs, "; "))
		}
		return nil
	}

	return &BuildResult{
		Config:       cfg,
		API:          api,
		Orchestrator: orchestrator,
		Metrics:      metrics,
		Window:       window,
		Cleanup:      cleanup,
	}, nil
}
