// Package embedding drives batched text vectorization with retry and
// explicit identifier-to-vector correspondence under partial failure.
package embedding

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recobatch/internal/domain"
	"github.com/kailas-cloud/recobatch/internal/metrics"
)

// Item pairs an entity identifier with its embedding input text.
// Identifiers travel with texts through chunking, so a failed chunk removes
// exactly its own ids. Vectors are never matched to ids by global position.
type Item struct {
	ID   string
	Text string
}

// Batcher splits items into provider-sized chunks and embeds each chunk with
// retry. Chunks that exhaust retries are skipped, not failed fatally.
type Batcher struct {
	embedder  domain.BatchEmbedder
	policy    Policy
	batchSize int
	provider  string
	model     string
	logger    *zap.Logger
}

// NewBatcher creates a batcher. batchSize caps texts per provider call.
func NewBatcher(
	embedder domain.BatchEmbedder, policy Policy, batchSize int,
	provider, model string, logger *zap.Logger,
) *Batcher {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &Batcher{
		embedder:  embedder,
		policy:    policy,
		batchSize: batchSize,
		provider:  provider,
		model:     model,
		logger:    logger,
	}
}

// EmbedAll embeds all items and returns id→vector plus the ids whose chunk
// exhausted retries. The error is non-nil only for cancellation; provider
// exhaustion degrades gracefully per chunk.
func (b *Batcher) EmbedAll(ctx context.Context, items []Item) (map[string][]float32, []string, error) {
	vectors := make(map[string][]float32, len(items))
	var failed []string

	for offset := 0; offset < len(items); offset += b.batchSize {
		end := offset + b.batchSize
		if end > len(items) {
			end = len(items)
		}
		chunk := items[offset:end]

		if err := b.embedChunk(ctx, chunk, vectors); err != nil {
			if ctx.Err() != nil {
				return nil, nil, fmt.Errorf("embed batch at offset %d: %w", offset, err)
			}
			b.logger.Warn("Embedding chunk failed after retries, skipping its items",
				zap.String("provider", b.provider),
				zap.String("model", b.model),
				zap.Int("chunk_offset", offset),
				zap.Int("chunk_size", len(chunk)),
				zap.Error(err),
			)
			for _, item := range chunk {
				failed = append(failed, item.ID)
			}
		}
	}

	return vectors, failed, nil
}

// embedChunk retries one provider call and records id→vector pairs on success.
func (b *Batcher) embedChunk(ctx context.Context, chunk []Item, vectors map[string][]float32) error {
	texts := make([]string, len(chunk))
	for i, item := range chunk {
		texts[i] = item.Text
	}

	attempt := 0
	return b.policy.Do(ctx, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			metrics.EmbeddingRetriesTotal.WithLabelValues(b.provider, b.model).Inc()
			b.logger.Info("Retrying embedding chunk",
				zap.String("provider", b.provider),
				zap.String("model", b.model),
				zap.Int("attempt", attempt),
				zap.Int("chunk_size", len(chunk)),
			)
		}

		result, err := b.embedder.BatchEmbed(ctx, texts)
		if err != nil {
			return fmt.Errorf("batch embed: %w", err)
		}
		// A short response would misalign ids and vectors; treat it as a
		// failed call rather than guessing which inputs were dropped.
		if len(result.Embeddings) != len(chunk) {
			return fmt.Errorf("provider returned %d vectors for %d texts: %w",
				len(result.Embeddings), len(chunk), domain.ErrEmbeddingProviderError)
		}

		for i, item := range chunk {
			vectors[item.ID] = result.Embeddings[i]
		}
		return nil
	})
}
