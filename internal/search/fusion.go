package search

import (
	"sort"

	"github.com/aosman25/islam-ai/internal/vecstore"
)

// fused accumulates one document's fused score and carried fields.
type fused struct {
	id     int64
	score  float64
	fields map[string]any
}

// rrfFuse combines a dense and a sparse ranking with reciprocal rank fusion:
// score(d) = Σ 1 / (k + rank_i), ranks 1-based within each list.
func rrfFuse(dense, sparse []vecstore.Hit, k int) []fused {
	acc := make(map[int64]*fused)
	for _, list := range [][]vecstore.Hit{dense, sparse} {
		for rank, hit := range list {
			f := acc[hit.ID]
			if f == nil {
				f = &fused{id: hit.ID, fields: hit.Fields}
				acc[hit.ID] = f
			}
			f.score += 1 / float64(k+rank+1)
		}
	}
	return sortFused(acc)
}

// weightedFuse combines similarity scores linearly: w_d·s_dense + w_s·s_sparse.
func weightedFuse(dense, sparse []vecstore.Hit, wd, ws float64) []fused {
	acc := make(map[int64]*fused)
	add := func(list []vecstore.Hit, w float64) {
		for _, hit := range list {
			f := acc[hit.ID]
			if f == nil {
				f = &fused{id: hit.ID, fields: hit.Fields}
				acc[hit.ID] = f
			}
			f.score += w * hit.Score
		}
	}
	add(dense, wd)
	add(sparse, ws)
	return sortFused(acc)
}

func sortFused(acc map[int64]*fused) []fused {
	out := make([]fused, 0, len(acc))
	for _, f := range acc {
		out = append(out, *f)
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].score != out[b].score {
			return out[a].score > out[b].score
		}
		return out[a].id < out[b].id
	})
	return out
}
