package vectorindex

import (
	"context"
	"math"
	"sort"
	"sync"
)

// InMemoryIndex is a brute-force cosine-similarity index for local/dev use.
type InMemoryIndex struct {
	mu    sync.RWMutex
	items map[string]map[string]Item // namespace -> id -> item
}

func NewInMemoryIndex() *InMemoryIndex {
	return &InMemoryIndex{items: make(map[string]map[string]Item)}
}

func (idx *InMemoryIndex) Upsert(_ context.Context, namespace string, items []Item) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	ns := idx.items[namespace]
	if ns == nil {
		ns = make(map[string]Item)
		idx.items[namespace] = ns
	}
	for _, item := range items {
		// Copy metadata so later caller mutations don't leak in.
		meta := make(map[string]string, len(item.Metadata))
		for k, v := range item.Metadata {
			meta[k] = v
		}
		vec := make([]float32, len(item.Vector))
		copy(vec, item.Vector)
		ns[item.ID] = Item{ID: item.ID, Vector: vec, Metadata: meta}
	}
	return nil
}

func (idx *InMemoryIndex) Query(_ context.Context, namespace string, vector []float32, k int) ([]Match, error) {
	if k <= 0 {
		k = 5
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	ns := idx.items[namespace]
	if len(ns) == 0 {
		return nil, nil
	}

	matches := make([]Match, 0, len(ns))
	for _, item := range ns {
		matches = append(matches, Match{
			ID:       item.ID,
			Score:    cosineSimilarity(vector, item.Vector),
			Metadata: item.Metadata,
		})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (idx *InMemoryIndex) Close() error { return nil }

func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
