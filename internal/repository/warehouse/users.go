package warehouse

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/kailas-cloud/recobatch/internal/domain"
)

// Users fetches all user rows projected to the profile columns the
// embedding text needs. Nullable columns degrade to zero values.
func (d *DB) Users(ctx context.Context) ([]domain.User, error) {
	query := `
		SELECT user_id, experience_level, trading_goal, preferred_assets,
		       fav_instrument_1, fav_instrument_2, trading_frequency,
		       most_used_order_type, avg_trade_duration_minutes
		FROM ` + pq.QuoteIdentifier(d.cfg.UsersTable)

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var (
			u        domain.User
			level    sql.NullString
			goal     sql.NullString
			assets   sql.NullString
			instr1   sql.NullString
			instr2   sql.NullString
			freq     sql.NullString
			order    sql.NullString
			duration sql.NullInt64
		)
		if err := rows.Scan(&u.UserID, &level, &goal, &assets,
			&instr1, &instr2, &freq, &order, &duration); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.ExperienceLevel = level.String
		u.TradingGoal = goal.String
		u.PreferredAssets = assets.String
		u.FavInstrument1 = instr1.String
		u.FavInstrument2 = instr2.String
		u.TradingFrequency = freq.String
		u.MostUsedOrderType = order.String
		u.AvgTradeDurationMin = int(duration.Int64)
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}
