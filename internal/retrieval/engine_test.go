package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/hellofriend/hellofriend/internal/memory"
	"github.com/hellofriend/hellofriend/internal/vectorindex"
)

type stubEmbedder struct {
	vec []float32
	err error
}

func (s *stubEmbedder) Embed(context.Context, string) ([]float32, error) {
	return s.vec, s.err
}

type stubIndex struct {
	matches []vectorindex.Match
	err     error
}

func (s *stubIndex) Upsert(context.Context, string, []vectorindex.Item) error { return nil }
func (s *stubIndex) Query(context.Context, string, []float32, int) ([]vectorindex.Match, error) {
	return s.matches, s.err
}
func (s *stubIndex) Close() error { return nil }

type stubStore struct {
	memory.Store
	textRecords []memory.Record
	textErr     error
	subRecords  []memory.Record
	subErr      error
	textCalls   int
	subCalls    int
}

func (s *stubStore) SearchText(_ context.Context, _, _ string, _ int) ([]memory.Record, error) {
	s.textCalls++
	return s.textRecords, s.textErr
}

func (s *stubStore) SearchSubstring(_ context.Context, _, _ string, _ int) ([]memory.Record, error) {
	s.subCalls++
	return s.subRecords, s.subErr
}

func TestSearchVectorTierWins(t *testing.T) {
	store := &stubStore{}
	e := NewEngine(
		&stubEmbedder{vec: []float32{1, 0}},
		&stubIndex{matches: []vectorindex.Match{{
			ID:    "v1",
			Score: 0.93,
			Metadata: map[string]string{
				memory.MetaText:     "the dog is named Rex",
				memory.MetaKind:     "message",
				memory.MetaRecordID: "rec-1",
			},
		}}},
		store, nil)

	got, err := e.Search(context.Background(), "u1", "dog name", 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 1 || got[0].Source != TierVector {
		t.Fatalf("got = %+v, want single vector-tier match", got)
	}
	if got[0].RecordID != "rec-1" || got[0].Content != "the dog is named Rex" {
		t.Fatalf("match not normalized: %+v", got[0])
	}
	if store.textCalls != 0 {
		t.Fatalf("text tier called %d times, want 0", store.textCalls)
	}
}

func TestSearchEmbedFailureFallsToTextTier(t *testing.T) {
	store := &stubStore{textRecords: []memory.Record{{ID: "t1", Kind: memory.KindMessage, Content: "hello"}}}
	e := NewEngine(&stubEmbedder{err: errors.New("down")}, &stubIndex{}, store, nil)

	got, err := e.Search(context.Background(), "u1", "hello", 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 1 || got[0].Source != TierText {
		t.Fatalf("got = %+v, want text-tier match", got)
	}
}

func TestSearchEmptyVectorResultFallsToTextTier(t *testing.T) {
	// Deliberate quality choice: zero vector rows behave like a failure so
	// a sparse namespace still yields lexical context.
	store := &stubStore{textRecords: []memory.Record{{ID: "t1", Content: "note"}}}
	e := NewEngine(&stubEmbedder{vec: []float32{1}}, &stubIndex{}, store, nil)

	got, err := e.Search(context.Background(), "u1", "note", 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 1 || got[0].Source != TierText {
		t.Fatalf("got = %+v, want text-tier match after empty vector result", got)
	}
}

func TestSearchTextTierAuthoritativeWhenEmpty(t *testing.T) {
	store := &stubStore{}
	e := NewEngine(&stubEmbedder{err: errors.New("down")}, &stubIndex{}, store, nil)

	got, err := e.Search(context.Background(), "u1", "anything", 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got = %+v, want empty authoritative text-tier result", got)
	}
	if store.subCalls != 0 {
		t.Fatalf("substring tier called %d times, want 0", store.subCalls)
	}
}

func TestSearchFallsToSubstringTier(t *testing.T) {
	store := &stubStore{
		textErr:    errors.New("fts offline"),
		subRecords: []memory.Record{{ID: "s1", Kind: memory.KindDocument, Content: "fragment"}},
	}
	e := NewEngine(&stubEmbedder{err: errors.New("down")}, &stubIndex{}, store, nil)

	got, err := e.Search(context.Background(), "u1", "frag", 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 1 || got[0].Source != TierSubstring {
		t.Fatalf("got = %+v, want substring-tier match", got)
	}
}

func TestSearchAllTiersFail(t *testing.T) {
	store := &stubStore{
		textErr: errors.New("fts offline"),
		subErr:  errors.New("store offline"),
	}
	e := NewEngine(&stubEmbedder{err: errors.New("down")}, &stubIndex{}, store, nil)

	_, err := e.Search(context.Background(), "u1", "x", 5)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Search() error = %v, want ErrUnavailable", err)
	}
}

func TestSearchIndexFailureFallsThrough(t *testing.T) {
	store := &stubStore{textRecords: []memory.Record{{ID: "t1", Content: "x"}}}
	e := NewEngine(
		&stubEmbedder{vec: []float32{1}},
		&stubIndex{err: vectorindex.ErrUnavailable},
		store, nil)

	got, err := e.Search(context.Background(), "u1", "x", 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 1 || got[0].Source != TierText {
		t.Fatalf("got = %+v, want text-tier match", got)
	}
}
