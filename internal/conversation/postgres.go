package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists conversations and turns in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			last_summary TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE TABLE IF NOT EXISTS turns (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL REFERENCES conversations(id),
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			tags TEXT[] NOT NULL DEFAULT '{}',
			summarized BOOLEAN NOT NULL DEFAULT FALSE,
			truncated BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_turns_conversation_created ON turns (conversation_id, created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_turns_unsummarized ON turns (conversation_id) WHERE NOT summarized;`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return nil, fmt.Errorf("init conversation schema failed on %q: %w", stmt, err)
		}
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Ensure(ctx context.Context, id, userID string) (Conversation, error) {
	if id == "" {
		id = uuid.NewString()
	}
	row := s.pool.QueryRow(ctx,
		`INSERT INTO conversations (id, user_id)
		 VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET user_id = conversations.user_id
		 RETURNING id, user_id, COALESCE(last_summary, ''), created_at`,
		id, userID)

	var c Conversation
	if err := row.Scan(&c.ID, &c.UserID, &c.LastSummary, &c.CreatedAt); err != nil {
		return Conversation{}, fmt.Errorf("ensure conversation: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Conversation, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, user_id, COALESCE(last_summary, ''), created_at
		 FROM conversations WHERE id = $1`, id)

	var c Conversation
	if err := row.Scan(&c.ID, &c.UserID, &c.LastSummary, &c.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Conversation{}, fmt.Errorf("conversation %s: %w", id, ErrNotFound)
		}
		return Conversation{}, fmt.Errorf("get conversation: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) AppendTurn(ctx context.Context, t Turn) (Turn, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO turns (id, conversation_id, role, content, tags, summarized, truncated, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID,
		t.ConversationID,
		t.Role,
		t.Content,
		t.Tags,
		t.Summarized,
		t.Truncated,
		t.CreatedAt,
	)
	if err != nil {
		return Turn{}, fmt.Errorf("append turn: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) UnsummarizedTurns(ctx context.Context, conversationID string) ([]Turn, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, conversation_id, role, content, tags, summarized, truncated, created_at
		 FROM turns
		 WHERE conversation_id = $1 AND NOT summarized
		 ORDER BY created_at ASC`,
		conversationID)
	if err != nil {
		return nil, fmt.Errorf("query unsummarized turns: %w", err)
	}
	defer rows.Close()
	return collectTurns(rows)
}

func (s *PostgresStore) RecentTurns(ctx context.Context, conversationID string, limit int) ([]Turn, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, conversation_id, role, content, tags, summarized, truncated, created_at
		 FROM (
			SELECT * FROM turns
			WHERE conversation_id = $1 AND NOT summarized
			ORDER BY created_at DESC LIMIT $2
		 ) newest
		 ORDER BY created_at ASC`,
		conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent turns: %w", err)
	}
	defer rows.Close()
	return collectTurns(rows)
}

func (s *PostgresStore) Turns(ctx context.Context, conversationID string, limit int) ([]Turn, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, conversation_id, role, content, tags, summarized, truncated, created_at
		 FROM (
			SELECT * FROM turns
			WHERE conversation_id = $1
			ORDER BY created_at DESC LIMIT $2
		 ) newest
		 ORDER BY created_at ASC`,
		conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()
	return collectTurns(rows)
}

func (s *PostgresStore) MarkSummarized(ctx context.Context, conversationID string, turnIDs []string) error {
	if len(turnIDs) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE turns SET summarized = TRUE
		 WHERE conversation_id = $1 AND id = ANY($2)`,
		conversationID, turnIDs)
	if err != nil {
		return fmt.Errorf("mark summarized: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetLastSummary(ctx context.Context, conversationID, summary string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE conversations SET last_summary = $2 WHERE id = $1`,
		conversationID, summary)
	if err != nil {
		return fmt.Errorf("set last summary: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("conversation %s: %w", conversationID, ErrNotFound)
	}
	return nil
}

// Close is a no-op; the pool is owned by the process entry point.
func (s *PostgresStore) Close() error { return nil }

func collectTurns(rows pgx.Rows) ([]Turn, error) {
	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.ID, &t.ConversationID, &t.Role, &t.Content, &t.Tags, &t.Summarized, &t.Truncated, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}
	return turns, nil
}
