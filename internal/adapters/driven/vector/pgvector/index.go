// Package pgvector provides a VectorIndex stored in Postgres with the
// pgvector extension. Vectors of different dimensions can share the table;
// searches only compare vectors whose dimension matches the query.
package pgvector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/pgvector/pgvector-go"

	"github.com/custodia-labs/contentindex/internal/adapters/driven/vector/pgvector/migrations"
	"github.com/custodia-labs/contentindex/internal/core/domain"
	"github.com/custodia-labs/contentindex/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// Index implements driven.VectorIndex on a Postgres table.
type Index struct {
	db *sql.DB
}

// Open connects to dsn, applies migrations and returns the index.
func Open(ctx context.Context, dsn string) (*Index, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pgvector dsn: %w", domain.ErrInvalidInput)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return New(db), nil
}

// New wraps an existing connection. The schema must already exist.
func New(db *sql.DB) *Index {
	return &Index{db: db}
}

// Migrate applies the embedded schema migrations.
func Migrate(db *sql.DB) error {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}
	driver, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{MigrationsTable: "contentindex_migrations"})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		return fmt.Errorf("migration instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up: %w", err)
	}
	return nil
}

// Add inserts or replaces the vector for chunkID.
func (x *Index) Add(ctx context.Context, chunkID string, embedding []float32) error {
	if chunkID == "" || len(embedding) == 0 {
		return domain.ErrInvalidInput
	}
	const q = `
		INSERT INTO chunk_embeddings (chunk_id, dims, embedding, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (chunk_id) DO UPDATE
		SET dims = EXCLUDED.dims, embedding = EXCLUDED.embedding, updated_at = now()`
	if _, err := x.db.ExecContext(ctx, q, chunkID, len(embedding), pgvector.NewVector(embedding)); err != nil {
		return fmt.Errorf("storing vector for %s: %w", chunkID, err)
	}
	return nil
}

// Delete removes a vector. Unknown IDs are ignored.
func (x *Index) Delete(ctx context.Context, chunkID string) error {
	if _, err := x.db.ExecContext(ctx, `DELETE FROM chunk_embeddings WHERE chunk_id = $1`, chunkID); err != nil {
		return fmt.Errorf("deleting vector for %s: %w", chunkID, err)
	}
	return nil
}

// Search returns the k nearest vectors by cosine distance.
func (x *Index) Search(ctx context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	if k <= 0 || len(query) == 0 {
		return nil, nil
	}
	const q = `
		SELECT chunk_id, 1 - (embedding <=> $1) AS similarity
		FROM chunk_embeddings
		WHERE dims = $2
		ORDER BY embedding <=> $1, chunk_id
		LIMIT $3`

	rows, err := x.db.QueryContext(ctx, q, pgvector.NewVector(query), len(query), k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	hits := make([]driven.VectorHit, 0, k)
	for rows.Next() {
		var hit driven.VectorHit
		var similarity sql.NullFloat64
		if err := rows.Scan(&hit.ChunkID, &similarity); err != nil {
			return nil, fmt.Errorf("scanning vector hit: %w", err)
		}
		// A zero vector has an undefined cosine distance.
		if !similarity.Valid {
			continue
		}
		hit.Similarity = similarity.Float64
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

// Close closes the database connection.
func (x *Index) Close() error {
	return x.db.Close()
}
