// Package distance implements the hybrid semantic/lexical distance used for
// both incident matching and density clustering.
package distance

import "math"

// Cosine returns the cosine distance 1 - cos(a, b). Zero vectors and
// mismatched lengths are treated as having similarity 0, so their distance
// is 1.
func Cosine(a, b []float32) float64 {
	return 1.0 - cosineSimilarity(a, b)
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Keyword returns the lexical distance between two keyword sets. Two empty
// sets are neutral (0.5): they neither confirm nor deny a match. Exactly one
// empty set is maximal (1.0): the asymmetry is evidence against a match.
// Otherwise Jaccard distance.
func Keyword(a, b map[string]bool) float64 {
	switch {
	case len(a) == 0 && len(b) == 0:
		return 0.5
	case len(a) == 0 || len(b) == 0:
		return 1.0
	}

	intersection := 0
	for tok := range a {
		if b[tok] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return 1.0 - float64(intersection)/float64(union)
}

// Weights is the semantic/lexical split of the hybrid distance. Semantic +
// Lexical must sum to 1; observed deployments run Semantic between 0.7 and
// 0.8.
type Weights struct {
	Semantic float64
	Lexical  float64
}

// Hybrid combines cosine and keyword distance into one scalar.
func (w Weights) Hybrid(va, vb []float32, ka, kb map[string]bool) float64 {
	return w.Semantic*Cosine(va, vb) + w.Lexical*Keyword(ka, kb)
}
