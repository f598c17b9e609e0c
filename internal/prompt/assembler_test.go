package prompt

import (
	"strings"
	"testing"
	"time"

	"github.com/hellofriend/hellofriend/internal/memory"
	"github.com/hellofriend/hellofriend/internal/retrieval"
	"github.com/hellofriend/hellofriend/internal/websearch"
)

func TestAssembleOmitsEmptySections(t *testing.T) {
	out := Assemble(nil, "", nil)
	if out != "" {
		t.Fatalf("Assemble(empty) = %q, want empty string", out)
	}

	out = Assemble(nil, "user likes jazz", nil)
	if !strings.Contains(out, "Conversation summary:\nuser likes jazz") {
		t.Fatalf("missing summary section: %q", out)
	}
	for _, header := range []string{"Related memories:", "Relevant documents:", "Web results:"} {
		if strings.Contains(out, header) {
			t.Fatalf("empty section %q should be omitted: %q", header, out)
		}
	}
}

func TestAssemblePartitionsByKind(t *testing.T) {
	created := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	matches := []retrieval.Match{
		{Kind: memory.KindMessage, Content: "my sister is called Ana", CreatedAt: created},
		{Kind: memory.KindDocument, Content: "lease terms...", FileName: "lease.txt"},
		{Kind: memory.KindDocument, Content: "no name here"},
	}

	out := Assemble(matches, "", nil)

	if !strings.Contains(out, "Related memories:\n- my sister is called Ana (2025-03-14)") {
		t.Fatalf("memory entry malformed: %q", out)
	}
	if !strings.Contains(out, "Document: lease.txt\nContent: lease terms...") {
		t.Fatalf("document entry malformed: %q", out)
	}
	if !strings.Contains(out, "Document: Unnamed\nContent: no name here") {
		t.Fatalf("unnamed document fallback missing: %q", out)
	}
}

func TestAssembleCapsWebResults(t *testing.T) {
	results := []websearch.Result{
		{Title: "a", Snippet: "s1"},
		{Title: "b", Snippet: "s2"},
		{Title: "c", Snippet: "s3"},
		{Title: "d", Snippet: "s4"},
	}
	out := Assemble(nil, "", results)
	if strings.Contains(out, `"d"`) {
		t.Fatalf("web results not capped at 3: %q", out)
	}
	if !strings.Contains(out, `"a" - s1`) {
		t.Fatalf("web entry malformed: %q", out)
	}
}

func TestAssembleDeterministic(t *testing.T) {
	matches := []retrieval.Match{
		{Kind: memory.KindMessage, Content: "x"},
		{Kind: memory.KindDocument, Content: "y", FileName: "f"},
	}
	a := Assemble(matches, "sum", []websearch.Result{{Title: "t", Snippet: "s"}})
	b := Assemble(matches, "sum", []websearch.Result{{Title: "t", Snippet: "s"}})
	if a != b {
		t.Fatalf("Assemble not deterministic:\n%q\n%q", a, b)
	}
}
