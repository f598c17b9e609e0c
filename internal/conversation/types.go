// Package conversation owns per-conversation turn history, the rolling
// summary, and the compaction that keeps prompt context inside its token
// budget.
package conversation

import (
	"context"
	"errors"
	"time"
)

// Conversation groups the turns of a single user thread. LastSummary is
// monotonically replaced by the summarizer, never unset.
type Conversation struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	LastSummary string    `json:"last_summary,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Turn is one user or assistant message. Immutable after creation except
// for the summarized flag, which the summarizer owns.
type Turn struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	Tags           []string  `json:"tags,omitempty"`
	Summarized     bool      `json:"summarized"`
	// Truncated marks an assistant turn persisted from a stream that
	// failed mid-way; readers should treat the content as incomplete.
	Truncated bool      `json:"truncated,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrNotFound is returned for unknown conversation ids.
var ErrNotFound = errors.New("conversation not found")

// Store persists conversations and turns.
type Store interface {
	// Ensure creates the conversation row if missing and returns it.
	Ensure(ctx context.Context, id, userID string) (Conversation, error)
	Get(ctx context.Context, id string) (Conversation, error)
	AppendTurn(ctx context.Context, t Turn) (Turn, error)
	// UnsummarizedTurns returns every turn not yet folded into the
	// summary, in chronological order.
	UnsummarizedTurns(ctx context.Context, conversationID string) ([]Turn, error)
	// RecentTurns returns the newest unsummarized turns, chronological,
	// capped at limit, for raw prompt context.
	RecentTurns(ctx context.Context, conversationID string, limit int) ([]Turn, error)
	// Turns returns the newest turns regardless of summarized state,
	// chronological, capped at limit.
	Turns(ctx context.Context, conversationID string, limit int) ([]Turn, error)
	// MarkSummarized flips the summarized flag on the given turns.
	// Idempotent.
	MarkSummarized(ctx context.Context, conversationID string, turnIDs []string) error
	// SetLastSummary replaces the conversation's rolling summary.
	SetLastSummary(ctx context.Context, conversationID, summary string) error
	Close() error
}
