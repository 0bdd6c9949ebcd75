// Package pipeline drives one full batch cycle: fetch users and media, embed
// their text, score and rank per user, and replace the recommendation
// snapshot. Apart from its injected collaborators the service is effect-free.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/recobatch/internal/domain"
	"github.com/kailas-cloud/recobatch/internal/domain/ranking"
	"github.com/kailas-cloud/recobatch/internal/domain/similarity"
	"github.com/kailas-cloud/recobatch/internal/metrics"
	"github.com/kailas-cloud/recobatch/internal/usecase/embedding"
)

// Options configure one pipeline service.
type Options struct {
	Metric  similarity.Metric
	TopN    int
	Workers int
	Model   string
}

// Service orchestrates the batch recommendation run.
type Service struct {
	users   UserSource
	media   MediaSource
	embed   Embedder
	sink    RecommendationSink
	vectors VectorSink // nil disables embedding persistence
	clock   Clock
	opts    Options
	logger  *zap.Logger
}

// New creates a pipeline service. vectors may be nil.
func New(
	users UserSource, media MediaSource, embed Embedder,
	sink RecommendationSink, vectors VectorSink, clock Clock,
	opts Options, logger *zap.Logger,
) *Service {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Service{
		users:   users,
		media:   media,
		embed:   embed,
		sink:    sink,
		vectors: vectors,
		clock:   clock,
		opts:    opts,
		logger:  logger,
	}
}

// Summary is the outcome of one batch run.
type Summary struct {
	UsersFetched   int
	MediaFetched   int
	UsersDiscarded int
	MediaDiscarded int
	RowsWritten    int
	Timestamp      time.Time
	Duration       time.Duration
}

// Run executes one full batch cycle.
// Embedding failures shrink the candidate pool; a run with zero valid media
// embeddings aborts with domain.ErrNoMediaEmbeddings.
func (s *Service) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	var sum Summary

	users, err := s.users.Users(ctx)
	if err != nil {
		return sum, fmt.Errorf("fetch users: %w", err)
	}
	media, err := s.media.Media(ctx)
	if err != nil {
		return sum, fmt.Errorf("fetch media: %w", err)
	}
	sum.UsersFetched = len(users)
	sum.MediaFetched = len(media)
	metrics.PipelineEntitiesFetched.WithLabelValues("user").Set(float64(len(users)))
	metrics.PipelineEntitiesFetched.WithLabelValues("media").Set(float64(len(media)))
	s.logger.Info("Fetched entities",
		zap.Int("users", len(users)), zap.Int("media", len(media)))

	userVecs, userDiscarded, err := s.embedUsers(ctx, users)
	if err != nil {
		return sum, err
	}
	mediaVecs, mediaDiscarded, err := s.embedMedia(ctx, media)
	if err != nil {
		return sum, err
	}
	sum.UsersDiscarded = userDiscarded
	sum.MediaDiscarded = mediaDiscarded
	metrics.PipelineEntitiesDiscarded.WithLabelValues("user").Set(float64(userDiscarded))
	metrics.PipelineEntitiesDiscarded.WithLabelValues("media").Set(float64(mediaDiscarded))

	// Candidate ids and vectors in media input order, so ranking ties stay
	// deterministic across runs.
	mediaIDs := make([]string, 0, len(mediaVecs))
	candidates := make([][]float32, 0, len(mediaVecs))
	for _, m := range media {
		if vec, ok := mediaVecs[m.MediaID]; ok {
			mediaIDs = append(mediaIDs, m.MediaID)
			candidates = append(candidates, vec)
		}
	}
	if len(candidates) == 0 {
		return sum, domain.ErrNoMediaEmbeddings
	}

	ts, err := s.clock.Now(ctx)
	if err != nil {
		return sum, fmt.Errorf("run timestamp: %w", err)
	}
	sum.Timestamp = ts

	recs, err := s.scoreAll(ctx, users, userVecs, mediaIDs, candidates, ts)
	if err != nil {
		return sum, err
	}

	if s.vectors != nil {
		if err := s.vectors.ReplaceUserVectors(ctx, s.opts.Model, userVecs); err != nil {
			return sum, fmt.Errorf("persist user vectors: %w", err)
		}
		if err := s.vectors.ReplaceMediaVectors(ctx, s.opts.Model, mediaVecs); err != nil {
			return sum, fmt.Errorf("persist media vectors: %w", err)
		}
	}

	if err := s.sink.ReplaceRecommendations(ctx, recs); err != nil {
		return sum, fmt.Errorf("write recommendations: %w", err)
	}
	sum.RowsWritten = len(recs)
	sum.Duration = time.Since(start)

	metrics.PipelineRowsWritten.Set(float64(len(recs)))
	metrics.PipelineRunDuration.Observe(sum.Duration.Seconds())
	metrics.PipelineLastRunTimestamp.Set(float64(ts.Unix()))

	s.logger.Info("Batch run completed",
		zap.Int("users_fetched", sum.UsersFetched),
		zap.Int("media_fetched", sum.MediaFetched),
		zap.Int("users_discarded", sum.UsersDiscarded),
		zap.Int("media_discarded", sum.MediaDiscarded),
		zap.Int("rows_written", sum.RowsWritten),
		zap.Time("processing_timestamp", ts),
		zap.Duration("duration", sum.Duration),
	)
	return sum, nil
}

// embedUsers embeds every user with a non-empty profile text.
// Returned count covers both empty-text users and provider failures.
func (s *Service) embedUsers(ctx context.Context, users []domain.User) (map[string][]float32, int, error) {
	items := make([]embedding.Item, 0, len(users))
	empty := 0
	for _, u := range users {
		text := u.EmbeddingText()
		if text == "" {
			empty++
			continue
		}
		items = append(items, embedding.Item{ID: u.UserID, Text: text})
	}

	vecs, failed, err := s.embed.EmbedAll(ctx, items)
	if err != nil {
		return nil, 0, fmt.Errorf("embed users: %w", err)
	}
	if empty+len(failed) > 0 {
		s.logger.Warn("Users dropped from batch",
			zap.Int("empty_text", empty), zap.Int("embedding_failed", len(failed)))
	}
	return vecs, empty + len(failed), nil
}

// embedMedia embeds every media item with a non-empty composed text.
// Items of unknown type compose to an empty string and are dropped here.
func (s *Service) embedMedia(ctx context.Context, media []domain.Media) (map[string][]float32, int, error) {
	items := make([]embedding.Item, 0, len(media))
	empty := 0
	for _, m := range media {
		text := m.EmbeddingText()
		if text == "" {
			empty++
			continue
		}
		items = append(items, embedding.Item{ID: m.MediaID, Text: text})
	}

	vecs, failed, err := s.embed.EmbedAll(ctx, items)
	if err != nil {
		return nil, 0, fmt.Errorf("embed media: %w", err)
	}
	if empty+len(failed) > 0 {
		s.logger.Warn("Media dropped from batch",
			zap.Int("empty_text", empty), zap.Int("embedding_failed", len(failed)))
	}
	return vecs, empty + len(failed), nil
}

// scoreAll ranks candidates for every user with a valid embedding.
// Users are scored in a bounded worker pool; each worker writes only its own
// slot, and slots are concatenated in user input order afterwards.
func (s *Service) scoreAll(
	ctx context.Context,
	users []domain.User,
	userVecs map[string][]float32,
	mediaIDs []string,
	candidates [][]float32,
	ts time.Time,
) ([]domain.Recommendation, error) {
	perUser := make([][]domain.Recommendation, len(users))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)

	for i, u := range users {
		i, u := i, u
		vec, ok := userVecs[u.UserID]
		if !ok {
			continue // user had no embedding, already counted as discarded
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("score user %s: %w", u.UserID, err)
			}
			scores, err := similarity.Scores(s.opts.Metric, vec, candidates)
			if err != nil {
				return fmt.Errorf("score user %s: %w", u.UserID, err)
			}
			ranked := ranking.TopN(mediaIDs, scores, s.opts.TopN)

			recs := make([]domain.Recommendation, len(ranked))
			for j, r := range ranked {
				recs[j] = domain.Recommendation{
					UserID:              u.UserID,
					RecommendedMediaID:  r.ID,
					Rank:                r.Rank,
					Score:               r.Score,
					ProcessingTimestamp: ts,
				}
			}
			perUser[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []domain.Recommendation
	for _, recs := range perUser {
		all = append(all, recs...)
	}
	return all, nil
}
