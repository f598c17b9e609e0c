package memory

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewStore creates a postgres-backed store when a pool is supplied,
// otherwise in-memory. The pool is shared with the vector index and
// conversation store so all durable state lands in one database.
func NewStore(ctx context.Context, pool *pgxpool.Pool, embeddingDim int) (Store, error) {
	if pool == nil {
		return NewInMemoryStore(), nil
	}
	return NewPostgresStore(ctx, pool, embeddingDim)
}
