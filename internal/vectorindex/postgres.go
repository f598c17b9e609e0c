package vectorindex

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresIndex stores vectors in a pgvector column partitioned by
// namespace. It shares the pool with the document store so the two stay on
// the same database.
type PostgresIndex struct {
	pool *pgxpool.Pool
	dim  int
}

func NewPostgresIndex(ctx context.Context, pool *pgxpool.Pool, dim int) (*PostgresIndex, error) {
	if dim <= 0 {
		dim = 1536
	}
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector;`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS vector_items (
			id TEXT PRIMARY KEY,
			namespace TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`, dim),
		`CREATE INDEX IF NOT EXISTS idx_vector_items_namespace ON vector_items (namespace);`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return nil, fmt.Errorf("init vector schema failed on %q: %w", stmt, err)
		}
	}
	return &PostgresIndex{pool: pool, dim: dim}, nil
}

func (idx *PostgresIndex) Upsert(ctx context.Context, namespace string, items []Item) error {
	for _, item := range items {
		meta, err := json.Marshal(item.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		_, err = idx.pool.Exec(ctx,
			`INSERT INTO vector_items (id, namespace, embedding, metadata)
			 VALUES ($1, $2, $3::vector, $4)
			 ON CONFLICT (id) DO UPDATE SET embedding = EXCLUDED.embedding, metadata = EXCLUDED.metadata`,
			item.ID,
			namespace,
			vectorLiteral(item.Vector),
			meta,
		)
		if err != nil {
			return fmt.Errorf("%w: upsert %s: %v", ErrUnavailable, item.ID, err)
		}
	}
	return nil
}

func (idx *PostgresIndex) Query(ctx context.Context, namespace string, vector []float32, k int) ([]Match, error) {
	if k <= 0 {
		k = 5
	}
	rows, err := idx.pool.Query(ctx,
		`SELECT id, 1 - (embedding <=> $2::vector) AS score, metadata
		 FROM vector_items
		 WHERE namespace = $1
		 ORDER BY embedding <=> $2::vector
		 LIMIT $3`,
		namespace,
		vectorLiteral(vector),
		k,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var out []Match
	for rows.Next() {
		var (
			m    Match
			meta []byte
		)
		if err := rows.Scan(&m.ID, &m.Score, &meta); err != nil {
			return nil, fmt.Errorf("%w: scan match: %v", ErrUnavailable, err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &m.Metadata); err != nil {
				return nil, fmt.Errorf("%w: decode metadata: %v", ErrUnavailable, err)
			}
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate matches: %v", ErrUnavailable, err)
	}
	return out, nil
}

// Close is a no-op; the pool is owned by the process entry point.
func (idx *PostgresIndex) Close() error { return nil }

// vectorLiteral renders a pgvector input literal like [0.1,0.2].
func vectorLiteral(vec []float32) string {
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
