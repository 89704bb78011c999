package retrieval

import "math"

// maximalMarginalRelevance greedily selects k candidate indices balancing
// similarity to the query against similarity to what was already picked.
// lambda 1.0 degenerates to pure similarity order; lower values favor
// diversity.
func maximalMarginalRelevance(query []float32, candidates [][]float32, lambda float64, k int) []int {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}
	if k > len(candidates) {
		k = len(candidates)
	}

	queryScore := make([]float64, len(candidates))
	for i, c := range candidates {
		queryScore[i] = cosineSimilarity(query, c)
	}

	selected := make([]int, 0, k)
	picked := make([]bool, len(candidates))
	// maxSelectedSim[i] tracks max similarity of candidate i to the
	// selected set, updated incrementally as picks are made.
	maxSelectedSim := make([]float64, len(candidates))

	for len(selected) < k {
		best := -1
		bestScore := math.Inf(-1)
		for i := range candidates {
			if picked[i] {
				continue
			}
			score := queryScore[i]
			if len(selected) > 0 {
				score = lambda*queryScore[i] - (1-lambda)*maxSelectedSim[i]
			}
			if score > bestScore {
				bestScore = score
				best = i
			}
		}
		picked[best] = true
		selected = append(selected, best)

		for i := range candidates {
			if picked[i] {
				continue
			}
			if sim := cosineSimilarity(candidates[best], candidates[i]); sim > maxSelectedSim[i] {
				maxSelectedSim[i] = sim
			}
		}
	}

	return selected
}

func cosineSimilarity(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot, normA, normB float64
	for i := range n {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
