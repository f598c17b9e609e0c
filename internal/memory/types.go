package memory

import (
	"context"
	"errors"
	"time"
)

// Kind partitions stored records by origin.
type Kind string

const (
	// KindMessage is a conversational turn. Visible to retrieval and
	// history only after confirmation.
	KindMessage Kind = "message"
	// KindDocument is ingested file content. Visible as soon as persisted.
	KindDocument Kind = "document"
	// KindConversationSummary is a compacted transcript produced by the
	// summarizer and fed back into retrieval.
	KindConversationSummary Kind = "conversation_summary"
)

// Record is one durable memory entry. The embedding is nil when the
// embedding collaborator was unavailable at store time; the record is kept
// regardless because durability must not depend on embedding availability.
type Record struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	Kind      Kind              `json:"kind"`
	Content   string            `json:"content"`
	Confirmed bool              `json:"confirmed"`
	Embedding []float32         `json:"-"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// ErrNotFound is returned when a record id is unknown.
var ErrNotFound = errors.New("memory record not found")

// Store persists memory records and answers the lexical search tiers.
// Records are never deleted here; retention is an external concern.
type Store interface {
	Insert(ctx context.Context, rec Record) (Record, error)
	// Confirm flips a record to confirmed. Idempotent; ErrNotFound for
	// unknown ids. Records never move back to unconfirmed.
	Confirm(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (Record, error)
	// RecentMessages returns confirmed message-kind records, newest first.
	RecentMessages(ctx context.Context, userID string, limit int) ([]Record, error)
	// SearchText is the lexical full-text tier: all query terms must match.
	SearchText(ctx context.Context, userID, query string, limit int) ([]Record, error)
	// SearchSubstring is the last-resort tier: case-insensitive containment.
	SearchSubstring(ctx context.Context, userID, query string, limit int) ([]Record, error)
	Close() error
}
