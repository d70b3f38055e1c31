// Package retrieval selects relevant, diverse chunks for a query and refines
// their order with an optional reranking model.
package retrieval

// MMRSelect performs iterative Maximal Marginal Relevance selection over a
// candidate pool. At each step it picks the unselected candidate maximizing
//
//	lambda * relevance(c) - (1-lambda) * max_similarity(c, selected)
//
// where relevance is similarity to the query vector. lambda=1 degenerates to
// top-k by similarity; lambda=0 maximizes spread. Returns candidate indices
// in selection order, which encodes the diversity decisions and must be
// preserved by callers.
func MMRSelect(query []float32, candidates [][]float32, k int, lambda float64) []int {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}

	relevance := make([]float64, len(candidates))
	for i, c := range candidates {
		relevance[i] = dot(query, c)
	}

	selected := make([]int, 0, k)
	remaining := make([]int, len(candidates))
	for i := range candidates {
		remaining[i] = i
	}

	for len(selected) < k && len(remaining) > 0 {
		bestPos := 0
		bestScore := mmrScore(remaining[0], relevance, candidates, selected, lambda)
		for pos := 1; pos < len(remaining); pos++ {
			score := mmrScore(remaining[pos], relevance, candidates, selected, lambda)
			if score > bestScore {
				bestScore = score
				bestPos = pos
			}
		}

		selected = append(selected, remaining[bestPos])
		remaining = append(remaining[:bestPos], remaining[bestPos+1:]...)
	}

	return selected
}

func mmrScore(idx int, relevance []float64, candidates [][]float32, selected []int, lambda float64) float64 {
	// First pick is pure relevance.
	if len(selected) == 0 {
		return relevance[idx]
	}

	maxSim := dot(candidates[selected[0]], candidates[idx])
	for _, s := range selected[1:] {
		if sim := dot(candidates[s], candidates[idx]); sim > maxSim {
			maxSim = sim
		}
	}
	return lambda*relevance[idx] - (1-lambda)*maxSim
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
