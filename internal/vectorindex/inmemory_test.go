package vectorindex

import (
	"context"
	"testing"
)

func TestInMemoryQueryRanksBySimilarity(t *testing.T) {
	idx := NewInMemoryIndex()
	ctx := context.Background()

	err := idx.Upsert(ctx, "user-1", []Item{
		{ID: "east", Vector: []float32{1, 0}},
		{ID: "north", Vector: []float32{0, 1}},
		{ID: "northeast", Vector: []float32{1, 1}},
	})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	matches, err := idx.Query(ctx, "user-1", []float32{1, 0.1}, 2)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("matches = %d, want 2", len(matches))
	}
	if matches[0].ID != "east" {
		t.Fatalf("top match = %q, want east", matches[0].ID)
	}
	if matches[1].ID != "northeast" {
		t.Fatalf("second match = %q, want northeast", matches[1].ID)
	}
}

func TestInMemoryNamespaceIsolation(t *testing.T) {
	idx := NewInMemoryIndex()
	ctx := context.Background()

	if err := idx.Upsert(ctx, "alice", []Item{{ID: "a", Vector: []float32{1, 0}}}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	matches, err := idx.Query(ctx, "bob", []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("cross-namespace matches = %d, want 0", len(matches))
	}
}

func TestInMemoryUpsertOverwrites(t *testing.T) {
	idx := NewInMemoryIndex()
	ctx := context.Background()

	_ = idx.Upsert(ctx, "u", []Item{{ID: "a", Vector: []float32{0, 1}, Metadata: map[string]string{"v": "1"}}})
	_ = idx.Upsert(ctx, "u", []Item{{ID: "a", Vector: []float32{1, 0}, Metadata: map[string]string{"v": "2"}}})

	matches, err := idx.Query(ctx, "u", []float32{1, 0}, 1)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(matches) != 1 || matches[0].Metadata["v"] != "2" {
		t.Fatalf("matches = %+v, want single updated item", matches)
	}
	if matches[0].Score < 0.99 {
		t.Fatalf("score = %v, want ~1 for identical vector", matches[0].Score)
	}
}

func TestVectorLiteral(t *testing.T) {
	got := vectorLiteral([]float32{0.5, -1, 2})
	if got != "[0.5,-1,2]" {
		t.Fatalf("vectorLiteral = %q, want [0.5,-1,2]", got)
	}
}
