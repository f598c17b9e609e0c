package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists memory records in PostgreSQL. The embedding lives
// in a nullable pgvector column; lexical search runs over the content
// column so the fallback tiers work even when no vector was stored.
type PostgresStore struct {
	pool *pgxpool.Pool
	dim  int
}

func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool, embeddingDim int) (*PostgresStore, error) {
	if embeddingDim <= 0 {
		embeddingDim = 1536
	}
	if err := initSchema(ctx, pool, embeddingDim); err != nil {
		return nil, err
	}
	return &PostgresStore{pool: pool, dim: embeddingDim}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool, dim int) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector;`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS memory_items (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			content TEXT NOT NULL,
			confirmed BOOLEAN NOT NULL DEFAULT FALSE,
			embedding vector(%d),
			metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`, dim),
		`CREATE INDEX IF NOT EXISTS idx_memory_items_user_created ON memory_items (user_id, created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_memory_items_content_fts ON memory_items USING GIN (to_tsvector('english', content));`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

// visibleClause gates retrieval: pending messages stay invisible until
// confirmed, every other kind is visible immediately.
const visibleClause = `(kind <> 'message' OR confirmed)`

func (s *PostgresStore) Insert(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.Metadata == nil {
		rec.Metadata = map[string]string{}
	}

	meta, err := json.Marshal(rec.Metadata)
	if err != nil {
		return Record{}, fmt.Errorf("marshal metadata: %w", err)
	}

	var embedding any
	if rec.Embedding != nil {
		embedding = embeddingLiteral(rec.Embedding)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO memory_items (id, user_id, kind, content, confirmed, embedding, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6::vector, $7, $8)`,
		rec.ID,
		rec.UserID,
		string(rec.Kind),
		rec.Content,
		rec.Confirmed,
		embedding,
		meta,
		rec.CreatedAt,
	)
	if err != nil {
		return Record{}, fmt.Errorf("insert memory record: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) Confirm(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE memory_items SET confirmed = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("confirm record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("confirm %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Record, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, user_id, kind, content, confirmed, embedding::text, metadata, created_at
		 FROM memory_items WHERE id = $1`, id)

	rec, err := scanRecordWithEmbedding(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Record{}, fmt.Errorf("get record: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) RecentMessages(ctx context.Context, userID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, kind, content, confirmed, metadata, created_at
		 FROM memory_items
		 WHERE user_id = $1 AND kind = 'message' AND confirmed
		 ORDER BY created_at DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent messages: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

func (s *PostgresStore) SearchText(ctx context.Context, userID, query string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, kind, content, confirmed, metadata, created_at
		 FROM memory_items
		 WHERE user_id = $1 AND `+visibleClause+`
		   AND to_tsvector('english', content) @@ plainto_tsquery('english', $2)
		 ORDER BY created_at DESC LIMIT $3`,
		userID, query, limit)
	if err != nil {
		return nil, fmt.Errorf("text search: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

func (s *PostgresStore) SearchSubstring(ctx context.Context, userID, query string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, kind, content, confirmed, metadata, created_at
		 FROM memory_items
		 WHERE user_id = $1 AND `+visibleClause+` AND content ILIKE '%' || $2 || '%'
		 ORDER BY created_at DESC LIMIT $3`,
		userID, query, limit)
	if err != nil {
		return nil, fmt.Errorf("substring search: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

// Close is a no-op; the pool is owned by the process entry point.
func (s *PostgresStore) Close() error { return nil }

func collectRecords(rows pgx.Rows) ([]Record, error) {
	var items []Record
	for rows.Next() {
		var (
			r    Record
			kind string
			meta []byte
		)
		if err := rows.Scan(&r.ID, &r.UserID, &kind, &r.Content, &r.Confirmed, &meta, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		r.Kind = Kind(kind)
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &r.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata: %w", err)
			}
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return items, nil
}

func scanRecordWithEmbedding(row pgx.Row) (Record, error) {
	var (
		r         Record
		kind      string
		embedding *string
		meta      []byte
	)
	if err := row.Scan(&r.ID, &r.UserID, &kind, &r.Content, &r.Confirmed, &embedding, &meta, &r.CreatedAt); err != nil {
		return Record{}, err
	}
	r.Kind = Kind(kind)
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &r.Metadata); err != nil {
			return Record{}, fmt.Errorf("decode metadata: %w", err)
		}
	}
	if embedding != nil {
		vec, err := parseEmbeddingLiteral(*embedding)
		if err != nil {
			return Record{}, err
		}
		r.Embedding = vec
	}
	return r, nil
}

// embeddingLiteral renders a pgvector input literal like [0.1,0.2].
func embeddingLiteral(vec []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range vec {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

func parseEmbeddingLiteral(lit string) ([]float32, error) {
	lit = strings.TrimSpace(lit)
	lit = strings.TrimPrefix(lit, "[")
	lit = strings.TrimSuffix(lit, "]")
	if lit == "" {
		return nil, nil
	}
	parts := strings.Split(lit, ",")
	out := make([]float32, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("parse embedding literal: %w", err)
		}
		out = append(out, float32(f))
	}
	return out, nil
}
