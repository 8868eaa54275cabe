package postgres

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/facewatch/internal/facestore"
)

// Repository reads and writes the known_faces table. The remote table always
// mirrors one whole store; partial updates are not supported, which keeps the
// push/pull semantics as simple as the local file.
type Repository struct {
	pool *Pool
}

// NewRepository creates a repository on top of an open pool.
func NewRepository(pool *Pool) *Repository {
	return &Repository{pool: pool}
}

// Push replaces the remote gallery with the contents of the store in a single
// transaction. The vector column is fixed at the dlib dimension, so stores
// built with other encoders cannot be synced.
func (r *Repository) Push(ctx context.Context, store *facestore.Store) error {
	if store.Len() > 0 && store.Dim() != facestore.EncodingDim {
		return fmt.Errorf("remote sync requires %d-dim encodings, store has %d",
			facestore.EncodingDim, store.Dim())
	}

	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM known_faces"); err != nil {
		return fmt.Errorf("clearing known_faces: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO known_faces (label, encoding) VALUES ($1, $2)")
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < store.Len(); i++ {
		label, enc := store.At(i)
		if _, err := stmt.ExecContext(ctx, label, pgvector.NewVector(enc)); err != nil {
			return fmt.Errorf("inserting encoding %d (%s): %w", i, label, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing push: %w", err)
	}
	return nil
}

// Pull rebuilds a store from the remote gallery, ordered by insertion.
func (r *Repository) Pull(ctx context.Context) (*facestore.Store, error) {
	rows, err := r.pool.Query(ctx, "SELECT label, encoding FROM known_faces ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("querying known_faces: %w", err)
	}
	defer rows.Close()

	store := facestore.New()
	for rows.Next() {
		var label string
		var vec pgvector.Vector
		if err := rows.Scan(&label, &vec); err != nil {
			return nil, fmt.Errorf("scanning known face: %w", err)
		}
		if err := store.Add(label, facestore.Encoding(vec.Slice())); err != nil {
			return nil, fmt.Errorf("adding pulled encoding for %s: %w", label, err)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating known faces: %w", err)
	}
	return store, nil
}

// Count returns the number of entries in the remote gallery.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM known_faces").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count known faces: %w", err)
	}
	return count, nil
}
