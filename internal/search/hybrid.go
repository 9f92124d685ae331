package search

import (
	"math"
	"sort"
)

// splitEpsilon absorbs binary floating-point noise before the ceilings
// below, so products that are integers up to representation error (10 *
// (1-0.7) = 3.0000000000000004) are not rounded up an extra row.
const splitEpsilon = 1e-9

// hybridSplit computes the per-side result limits for a hybrid query:
// ceil(topK*alpha) for the vector side and ceil(topK*(1-alpha)) for the
// keyword side.
func hybridSplit(topK int, alpha float64) (vectorK, keywordK int) {
	vectorK = ceilLimit(float64(topK) * alpha)
	keywordK = ceilLimit(float64(topK) * (1 - alpha))
	return vectorK, keywordK
}

func ceilLimit(x float64) int {
	n := int(math.Ceil(x - splitEpsilon))
	if n < 0 {
		return 0
	}
	return n
}

// mergeHybrid unions vector and keyword results by passage id and scores
// each entry as alpha*vector_score + (1-alpha)*keyword_score, treating a
// missing side as 0. Results are sorted descending by blended score with
// ties broken by original relative order, then truncated to topK.
func mergeHybrid(vector, keyword []Result, topK int, alpha float64) []Result {
	merged := make([]Result, 0, len(vector)+len(keyword))
	index := make(map[string]int, len(vector)+len(keyword))

	for _, r := range vector {
		v := r.Score
		r.VectorScore = &v
		r.KeywordScore = nil
		r.Score = alpha * v
		index[r.ID] = len(merged)
		merged = append(merged, r)
	}

	for _, r := range keyword {
		k := r.Score
		if i, ok := index[r.ID]; ok {
			merged[i].KeywordScore = &k
			merged[i].Score += (1 - alpha) * k
			continue
		}
		r.KeywordScore = &k
		r.VectorScore = nil
		r.Score = (1 - alpha) * k
		index[r.ID] = len(merged)
		merged = append(merged, r)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})

	if len(merged) > topK {
		merged = merged[:topK]
	}
	return merged
}
