package domain

import "errors"

var (
	// ErrUnsupportedMetric signals an unknown similarity metric name.
	ErrUnsupportedMetric = errors.New("unsupported similarity metric")
	// ErrDimensionMismatch signals a vector dimension mismatch within one ranking.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrNoMediaEmbeddings signals that no media item produced a usable embedding.
	ErrNoMediaEmbeddings = errors.New("no valid media embeddings")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrRateLimited signals a provider rate limit hit.
	ErrRateLimited = errors.New("rate limited")
)
