package warehouse

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"github.com/kailas-cloud/recobatch/internal/domain"
)

// ReplaceRecommendations atomically swaps the recommendation snapshot:
// delete all prior rows and bulk-copy the new ones in a single transaction.
// A failure anywhere rolls back, leaving the previous snapshot intact;
// there is never a mixed-generation state.
func (d *DB) ReplaceRecommendations(ctx context.Context, recs []domain.Recommendation) (err error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	table := d.cfg.RecommendationsTable
	if _, err = tx.ExecContext(ctx, "DELETE FROM "+pq.QuoteIdentifier(table)); err != nil {
		return fmt.Errorf("clear %s: %w", table, err)
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(table,
		"user_id", "recommended_media_id", "rank", "similarity_score", "processing_timestamp",
	))
	if err != nil {
		return fmt.Errorf("prepare copy: %w", err)
	}

	for _, r := range recs {
		if _, err = stmt.ExecContext(ctx,
			r.UserID, r.RecommendedMediaID, r.Rank, r.Score, r.ProcessingTimestamp,
		); err != nil {
			_ = stmt.Close()
			return fmt.Errorf("copy row (user=%s rank=%d): %w", r.UserID, r.Rank, err)
		}
	}

	// Final Exec flushes the COPY buffer.
	if _, err = stmt.ExecContext(ctx); err != nil {
		_ = stmt.Close()
		return fmt.Errorf("flush copy: %w", err)
	}
	if err = stmt.Close(); err != nil {
		return fmt.Errorf("close copy: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit replace: %w", err)
	}
	return nil
}
