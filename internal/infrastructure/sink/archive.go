package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Archive persists every published payload into postgres for later
// analysis. Cluster state itself is never persisted; only the final
// published form lands here.
type Archive struct {
	pool *pgxpool.Pool
}

const insertClusterQuery = `
	INSERT INTO cluster_archive (id, ticker, payload, published_at)
	VALUES ($1,$2,$3,$4)`

// NewArchive connects a pgx pool against the given DSN.
func NewArchive(ctx context.Context, dsn string) (*Archive, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	return &Archive{pool: pool}, nil
}

// Publish inserts one archived payload row.
func (a *Archive) Publish(ctx context.Context, key string, payload []byte) error {
	_, err := a.pool.Exec(ctx, insertClusterQuery,
		uuid.New(),
		key,
		payload,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("archive cluster: %w", err)
	}
	return nil
}

// Close releases the pool.
func (a *Archive) Close() error {
	a.pool.Close()
	return nil
}
