// Package vectorindex provides the namespace-partitioned nearest-neighbor
// index backing the semantic retrieval tier. Namespaces are per-user
// partition keys; queries never cross them.
package vectorindex

import (
	"context"
	"errors"
)

// Item is one vector to upsert, keyed to a durable memory record.
type Item struct {
	ID       string
	Vector   []float32
	Metadata map[string]string
}

// Match is one nearest-neighbor hit, ranked by similarity.
type Match struct {
	ID       string
	Score    float64
	Metadata map[string]string
}

// Index stores and queries embeddings within a namespace.
type Index interface {
	Upsert(ctx context.Context, namespace string, items []Item) error
	Query(ctx context.Context, namespace string, vector []float32, k int) ([]Match, error)
	Close() error
}

// ErrUnavailable marks a failed index operation; retrieval falls back to
// the lexical tiers.
var ErrUnavailable = errors.New("vector index unavailable")
