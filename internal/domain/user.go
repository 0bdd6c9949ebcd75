package domain

import "fmt"

// User is a query entity for the recommendation pipeline. Rows are produced
// upstream (data generation / ingestion) and read-only here.
type User struct {
	UserID              string
	ExperienceLevel     string
	TradingGoal         string
	PreferredAssets     string
	FavInstrument1      string
	FavInstrument2      string
	TradingFrequency    string
	MostUsedOrderType   string
	AvgTradeDurationMin int
}

// EmbeddingText composes the profile sentence fed to the embedding model.
func (u User) EmbeddingText() string {
	return fmt.Sprintf(
		"User %s is an %s-level trader. "+
			"Their goals include: %s. "+
			"They prefer trading: %s. "+
			"Key instruments are %s and %s. "+
			"Trading frequency: %s. "+
			"Order type: %s. "+
			"Average trade duration: %d minutes.",
		u.UserID, u.ExperienceLevel, u.TradingGoal, u.PreferredAssets,
		u.FavInstrument1, u.FavInstrument2,
		u.TradingFrequency, u.MostUsedOrderType, u.AvgTradeDurationMin,
	)
}
