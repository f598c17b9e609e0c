package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hellofriend/hellofriend/internal/memory"
	"github.com/hellofriend/hellofriend/internal/vectorindex"
)

type staticEmbedder struct{}

func (staticEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{0.5, 0.5}, nil
}

func newService() (*Service, *memory.InMemoryStore) {
	store := memory.NewInMemoryStore()
	svc := memory.NewService(store, vectorindex.NewInMemoryIndex(), staticEmbedder{})
	return NewService(svc), store
}

func TestIngestFileChunks(t *testing.T) {
	s, store := newService()
	content := strings.Repeat("a", 2500)

	res, err := s.IngestFile(context.Background(), "u1", "notes.txt", content)
	if err != nil {
		t.Fatalf("IngestFile() error = %v", err)
	}
	if res.Chunks != 3 || len(res.RecordIDs) != 3 {
		t.Fatalf("chunks = %d records = %d, want 3 each", res.Chunks, len(res.RecordIDs))
	}

	var total int
	for _, id := range res.RecordIDs {
		rec, err := store.Get(context.Background(), id)
		if err != nil {
			t.Fatalf("Get(%s) error = %v", id, err)
		}
		if rec.Kind != memory.KindDocument || !rec.Confirmed {
			t.Fatalf("record %s = %+v, want confirmed document", id, rec)
		}
		if rec.Metadata[memory.MetaFileName] != "notes.txt" {
			t.Fatalf("fileName metadata = %q, want notes.txt", rec.Metadata[memory.MetaFileName])
		}
		total += len(rec.Content)
	}
	if total != 2500 {
		t.Fatalf("total chunk length = %d, want full file preserved", total)
	}
}

func TestIngestFileImmediatelySearchable(t *testing.T) {
	s, store := newService()

	if _, err := s.IngestFile(context.Background(), "u1", "trip.md", "Flight to Lisbon departs June 3rd."); err != nil {
		t.Fatalf("IngestFile() error = %v", err)
	}
	records, err := store.SearchSubstring(context.Background(), "u1", "lisbon", 5)
	if err != nil {
		t.Fatalf("SearchSubstring() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("search hits = %d, want document visible without confirmation", len(records))
	}
}

func TestIngestFileEmpty(t *testing.T) {
	s, _ := newService()
	if _, err := s.IngestFile(context.Background(), "u1", "empty.txt", "   "); !errors.Is(err, ErrEmptyFile) {
		t.Fatalf("IngestFile() error = %v, want ErrEmptyFile", err)
	}
}

func TestSplitChunksRuneSafe(t *testing.T) {
	text := strings.Repeat("é", 1500)
	chunks := splitChunks(text, 1000)
	if len(chunks) != 2 {
		t.Fatalf("chunks = %d, want 2", len(chunks))
	}
	for i, c := range chunks {
		if strings.ContainsRune(c, '�') {
			t.Fatalf("chunk %d contains replacement rune, split broke a character", i)
		}
	}
	if len([]rune(chunks[0])) != 1000 || len([]rune(chunks[1])) != 500 {
		t.Fatalf("chunk rune lengths = %d,%d want 1000,500",
			len([]rune(chunks[0])), len([]rune(chunks[1])))
	}
}
