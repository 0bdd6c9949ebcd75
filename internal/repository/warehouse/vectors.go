package warehouse

import (
	"context"
	"fmt"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// ReplaceUserVectors persists the run's user embeddings as a full-replace
// snapshot. The table holds purely derived data and is rebuilt every run.
func (d *DB) ReplaceUserVectors(ctx context.Context, model string, vectors map[string][]float32) error {
	return d.replaceVectors(ctx, d.cfg.UserVectorsTable, "user_id", model, vectors)
}

// ReplaceMediaVectors persists the run's media embeddings as a full-replace
// snapshot.
func (d *DB) ReplaceMediaVectors(ctx context.Context, model string, vectors map[string][]float32) error {
	return d.replaceVectors(ctx, d.cfg.MediaVectorsTable, "media_id", model, vectors)
}

func (d *DB) replaceVectors(
	ctx context.Context, table, idColumn, model string, vectors map[string][]float32,
) (err error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace %s: %w", table, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "DELETE FROM "+pq.QuoteIdentifier(table)); err != nil {
		return fmt.Errorf("clear %s: %w", table, err)
	}

	stmt := fmt.Sprintf(
		"INSERT INTO %s (%s, embedding, model) VALUES ($1, $2, $3)",
		pq.QuoteIdentifier(table), pq.QuoteIdentifier(idColumn),
	)
	for id, vec := range vectors {
		if _, err = tx.ExecContext(ctx, stmt, id, pgvector.NewVector(vec), model); err != nil {
			return fmt.Errorf("insert vector %s into %s: %w", id, table, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit replace %s: %w", table, err)
	}
	return nil
}
