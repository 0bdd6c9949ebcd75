package warehouse

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/kailas-cloud/recobatch/internal/domain"
)

// Media fetches all media rows projected to the columns the embedding
// text needs.
func (d *DB) Media(ctx context.Context) ([]domain.Media, error) {
	query := `
		SELECT media_id, type, title, content, transcript
		FROM ` + pq.QuoteIdentifier(d.cfg.MediaTable)

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query media: %w", err)
	}
	defer rows.Close()

	var items []domain.Media
	for rows.Next() {
		var (
			m          domain.Media
			title      sql.NullString
			content    sql.NullString
			transcript sql.NullString
		)
		if err := rows.Scan(&m.MediaID, &m.Type, &title, &content, &transcript); err != nil {
			return nil, fmt.Errorf("scan media: %w", err)
		}
		m.Title = title.String
		m.Content = content.String
		m.Transcript = transcript.String
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate media: %w", err)
	}
	return items, nil
}
