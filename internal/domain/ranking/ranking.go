// Package ranking sorts scored candidates and truncates to a bounded result
// set with stable, 1-based ranks.
package ranking

import "sort"

// Ranked is one candidate after ranking.
type Ranked struct {
	ID    string
	Rank  int
	Score float64
}

// TopN sorts candidates by score descending and keeps at most n.
// Ties keep the relative input order (stable sort), so output is
// deterministic for identical inputs. Rank is the 1-based position in the
// sorted, truncated list. n <= 0 returns an empty slice.
func TopN(ids []string, scores []float64, n int) []Ranked {
	if n <= 0 || len(ids) == 0 {
		return nil
	}

	ranked := make([]Ranked, len(ids))
	for i, id := range ids {
		ranked[i] = Ranked{ID: id, Score: scores[i]}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}
