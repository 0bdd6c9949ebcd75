package pipeline

import (
	"context"
	"time"

	"github.com/kailas-cloud/recobatch/internal/domain"
	"github.com/kailas-cloud/recobatch/internal/usecase/embedding"
)

// UserSource fetches all query entities.
type UserSource interface {
	Users(ctx context.Context) ([]domain.User, error)
}

// MediaSource fetches all candidate entities.
type MediaSource interface {
	Media(ctx context.Context) ([]domain.Media, error)
}

// Embedder vectorizes identified texts, reporting which ids failed.
type Embedder interface {
	EmbedAll(ctx context.Context, items []embedding.Item) (map[string][]float32, []string, error)
}

// RecommendationSink replaces the full recommendation snapshot.
type RecommendationSink interface {
	ReplaceRecommendations(ctx context.Context, recs []domain.Recommendation) error
}

// VectorSink optionally persists the run's embeddings as derived tables.
type VectorSink interface {
	ReplaceUserVectors(ctx context.Context, model string, vectors map[string][]float32) error
	ReplaceMediaVectors(ctx context.Context, model string, vectors map[string][]float32) error
}

// Clock provides the shared processing timestamp for one run.
// In production this is the warehouse clock, so every row of a batch carries
// the database's idea of now.
type Clock interface {
	Now(ctx context.Context) (time.Time, error)
}
