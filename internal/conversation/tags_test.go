package conversation

import (
	"reflect"
	"strings"
	"testing"
)

func TestExtractTags(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{
			name:    "keeps long words drops short and stopwords",
			content: "I want to plan a hiking trip in Patagonia with friends",
			want:    []string{"plan", "hiking", "trip", "patagonia", "friends"},
		},
		{
			name:    "lowercases and strips punctuation",
			content: "Remember: Lisbon, June!",
			want:    []string{"remember", "lisbon", "june"},
		},
		{
			name:    "deduplicates",
			content: "coffee coffee coffee beans",
			want:    []string{"coffee", "beans"},
		},
		{
			name:    "empty content",
			content: "",
			want:    nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractTags(tt.content)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("ExtractTags(%q) = %v, want %v", tt.content, got, tt.want)
			}
		})
	}
}

func TestExtractTagsCap(t *testing.T) {
	words := []string{
		"alpha", "bravo", "charlie", "delta", "echo12x", "foxtrot",
		"golf9", "hotel", "india", "juliet", "kilogram", "november",
	}
	got := ExtractTags(strings.Join(words, " "))
	if len(got) != maxTags {
		t.Fatalf("len(ExtractTags(...)) = %d, want cap %d", len(got), maxTags)
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{strings.Repeat("x", 4000), 1000},
	}
	for _, tt := range tests {
		if got := EstimateTokens(tt.text); got != tt.want {
			t.Fatalf("EstimateTokens(%d chars) = %d, want %d", len(tt.text), got, tt.want)
		}
	}
}
