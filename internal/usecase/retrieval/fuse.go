package retrieval

import (
	"sort"

	"github.com/kailas-cloud/ragdex/internal/domain/search/result"
)

// rrfK is the Reciprocal Rank Fusion constant (standard value from Cormack et al. 2009).
const rrfK = 60

// fuseWeightedRRF merges KNN and BM25 results via weighted Reciprocal Rank
// Fusion. embeddingWeight scales the vector ranking's contribution, the
// keyword ranking gets the complement:
// score(d) = w/(k + rank_knn(d)) + (1-w)/(k + rank_bm25(d)).
// When a document appears in both lists the KNN match is kept.
func fuseWeightedRRF(knn, bm25 []result.Match, embeddingWeight float64, topK int) []result.Match {
	type scored struct {
		match result.Match
		score float64
	}

	merged := make(map[string]*scored)

	for rank := range knn {
		s := embeddingWeight / float64(rrfK+rank+1)
		merged[knn[rank].ID()] = &scored{match: knn[rank], score: s}
	}

	for rank := range bm25 {
		s := (1 - embeddingWeight) / float64(rrfK+rank+1)
		if existing, ok := merged[bm25[rank].ID()]; ok {
			existing.score += s
		} else {
			merged[bm25[rank].ID()] = &scored{match: bm25[rank], score: s}
		}
	}

	matches := make([]result.Match, 0, len(merged))
	for _, s := range merged {
		matches = append(matches, s.match.WithScore(s.score))
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Score() > matches[j].Score()
	})

	if len(matches) > topK {
		matches = matches[:topK]
	}

	return matches
}
