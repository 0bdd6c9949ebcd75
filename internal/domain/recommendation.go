package domain

import "time"

// Recommendation is one output row of a batch run.
//
// For a fixed UserID, ranks form a contiguous 1-based sequence ordered by
// non-increasing Score; every row of one run carries the identical
// ProcessingTimestamp so downstream can query the latest batch atomically.
type Recommendation struct {
	UserID              string
	RecommendedMediaID  string
	Rank                int
	Score               float64
	ProcessingTimestamp time.Time
}
