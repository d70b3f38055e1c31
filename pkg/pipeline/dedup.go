package pipeline

import (
	"sort"

	"github.com/Somekindofa/research-paper-rag/pkg/retrieval"
)

// DeduplicateByDoc collapses candidates sharing a doc_id, keeping only the
// highest-scoring chunk of each document, so a paper is never cited twice in
// one answer. Output is sorted by descending effective score.
func DeduplicateByDoc(candidates []retrieval.Candidate) []retrieval.Candidate {
	best := make(map[string]retrieval.Candidate, len(candidates))
	for _, c := range candidates {
		docID := c.Chunk.Metadata.DocID
		if prev, ok := best[docID]; !ok || c.EffectiveScore() > prev.EffectiveScore() {
			best[docID] = c
		}
	}

	out := make([]retrieval.Candidate, 0, len(best))
	for _, c := range best {
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EffectiveScore() > out[j].EffectiveScore()
	})
	return out
}

// FilterByThreshold drops candidates whose effective score is below the
// threshold (a fraction in [0,1]), preserving order.
func FilterByThreshold(candidates []retrieval.Candidate, threshold float64) []retrieval.Candidate {
	out := make([]retrieval.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.EffectiveScore() >= threshold {
			out = append(out, c)
		}
	}
	return out
}

// NormalizeThreshold maps API-style percentages (50..100) onto the score
// scale; fractional values pass through.
func NormalizeThreshold(v float64) float64 {
	if v > 1 {
		return v / 100
	}
	return v
}
