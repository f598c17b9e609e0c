// Package retrieval finds memory relevant to a user turn. The engine runs
// a three-tier fallback chain: semantic vector search, lexical full-text
// search, then case-insensitive substring match. Each tier is independent;
// only the failure of all three surfaces to the caller.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/hellofriend/hellofriend/internal/azureai"
	"github.com/hellofriend/hellofriend/internal/memory"
	"github.com/hellofriend/hellofriend/internal/observability"
	"github.com/hellofriend/hellofriend/internal/vectorindex"
)

// Tier names, also used as metric labels.
const (
	TierVector    = "vector"
	TierText      = "text"
	TierSubstring = "substring"
)

// Match is the canonical retrieval result. Backend-specific shapes are
// normalized here and never leak into the core.
type Match struct {
	RecordID  string
	Score     float64
	Kind      memory.Kind
	Content   string
	FileName  string
	Source    string // tier that produced the match
	CreatedAt time.Time
}

// ErrUnavailable is returned only when every tier failed.
var ErrUnavailable = errors.New("retrieval unavailable")

// Engine runs the tiered search. All collaborators are injected; the
// engine itself holds no connection state.
type Engine struct {
	embedder azureai.Embedder
	index    vectorindex.Index
	store    memory.Store
	metrics  *observability.Metrics
}

func NewEngine(embedder azureai.Embedder, index vectorindex.Index, store memory.Store, metrics *observability.Metrics) *Engine {
	return &Engine{embedder: embedder, index: index, store: store, metrics: metrics}
}

// Search returns up to limit matches for the query within the user's
// namespace. An empty vector-tier result falls through to the text tier on
// purpose: when the namespace is sparse, a lexical hit still beats empty
// context. The lexical tiers are authoritative even when empty.
func (e *Engine) Search(ctx context.Context, namespace, query string, limit int) ([]Match, error) {
	if limit <= 0 {
		limit = 5
	}

	matches, vectorErr := e.vectorTier(ctx, namespace, query, limit)
	if vectorErr == nil && len(matches) > 0 {
		e.metrics.TierUsed(TierVector)
		return matches, nil
	}
	if vectorErr != nil {
		log.Printf("retrieval: vector tier failed for namespace %s: %v", namespace, vectorErr)
	}

	records, textErr := e.store.SearchText(ctx, namespace, query, limit)
	if textErr == nil {
		e.metrics.TierUsed(TierText)
		return recordsToMatches(records, TierText), nil
	}
	log.Printf("retrieval: text tier failed for namespace %s: %v", namespace, textErr)

	records, subErr := e.store.SearchSubstring(ctx, namespace, query, limit)
	if subErr == nil {
		e.metrics.TierUsed(TierSubstring)
		return recordsToMatches(records, TierSubstring), nil
	}

	return nil, fmt.Errorf("%w: vector: %v; text: %v; substring: %v", ErrUnavailable, vectorErr, textErr, subErr)
}

func (e *Engine) vectorTier(ctx context.Context, namespace, query string, limit int) ([]Match, error) {
	vec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits, err := e.index.Query(ctx, namespace, vec, limit)
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}

	out := make([]Match, 0, len(hits))
	for _, hit := range hits {
		m := Match{
			RecordID: hit.Metadata[memory.MetaRecordID],
			Score:    hit.Score,
			Kind:     memory.Kind(hit.Metadata[memory.MetaKind]),
			Content:  hit.Metadata[memory.MetaText],
			FileName: hit.Metadata[memory.MetaFileName],
			Source:   TierVector,
		}
		if m.RecordID == "" {
			m.RecordID = hit.ID
		}
		if m.Kind == "" {
			m.Kind = memory.KindMessage
		}
		out = append(out, m)
	}
	return out, nil
}

func recordsToMatches(records []memory.Record, tier string) []Match {
	out := make([]Match, 0, len(records))
	for _, rec := range records {
		out = append(out, Match{
			RecordID:  rec.ID,
			Kind:      rec.Kind,
			Content:   rec.Content,
			FileName:  rec.Metadata[memory.MetaFileName],
			Source:    tier,
			CreatedAt: rec.CreatedAt,
		})
	}
	return out
}
