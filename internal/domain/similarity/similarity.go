// Package similarity scores a query vector against candidate vectors.
// Higher score always means more similar: cosine is used as-is, euclidean
// distance is negated.
package similarity

import (
	"fmt"
	"math"

	"github.com/kailas-cloud/recobatch/internal/domain"
)

// Metric selects the scoring function.
type Metric string

// Supported metrics.
const (
	Cosine    Metric = "cosine"
	Euclidean Metric = "euclidean"
)

// ParseMetric validates a metric name from configuration.
// Unknown names fail fast; there is no silent default.
func ParseMetric(name string) (Metric, error) {
	switch Metric(name) {
	case Cosine, Euclidean:
		return Metric(name), nil
	}
	return "", fmt.Errorf("%q: %w", name, domain.ErrUnsupportedMetric)
}

// Scores computes one score per candidate, in candidate order.
// Pure function, safe to call concurrently for different queries.
func Scores(metric Metric, query []float32, candidates [][]float32) ([]float64, error) {
	scores := make([]float64, len(candidates))
	for i, cand := range candidates {
		if len(cand) != len(query) {
			return nil, fmt.Errorf("candidate %d has dim %d, query has %d: %w",
				i, len(cand), len(query), domain.ErrDimensionMismatch)
		}
		switch metric {
		case Cosine:
			scores[i] = cosine(query, cand)
		case Euclidean:
			scores[i] = -euclidean(query, cand)
		default:
			return nil, fmt.Errorf("%q: %w", metric, domain.ErrUnsupportedMetric)
		}
	}
	return scores, nil
}

// cosine returns the cosine similarity in [-1, 1].
// A zero-norm vector scores 0 against everything.
func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func euclidean(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
