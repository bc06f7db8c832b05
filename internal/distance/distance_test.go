package distance

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosine(t *testing.T) {
	tests := []struct {
		name      string
		a         []float32
		b         []float32
		expected  float64
		tolerance float64
	}{
		{
			name:      "identical vectors",
			a:         []float32{1, 2, 3},
			b:         []float32{1, 2, 3},
			expected:  0.0,
			tolerance: 1e-9,
		},
		{
			name:      "orthogonal vectors",
			a:         []float32{1, 0},
			b:         []float32{0, 1},
			expected:  1.0,
			tolerance: 1e-9,
		},
		{
			name:      "opposite vectors",
			a:         []float32{1, 0},
			b:         []float32{-1, 0},
			expected:  2.0,
			tolerance: 1e-9,
		},
		{
			name:      "zero vector treated as dissimilar",
			a:         []float32{0, 0},
			b:         []float32{1, 2},
			expected:  1.0,
			tolerance: 1e-9,
		},
		{
			name:      "length mismatch treated as dissimilar",
			a:         []float32{1, 2, 3},
			b:         []float32{1, 2},
			expected:  1.0,
			tolerance: 1e-9,
		},
		{
			name:      "known numeric",
			a:         []float32{1, 2, 3},
			b:         []float32{4, 5, 6},
			expected:  1.0 - 32.0/math.Sqrt(1078),
			tolerance: 1e-6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Cosine(tt.a, tt.b), tt.tolerance)
		})
	}
}

func TestKeyword(t *testing.T) {
	tests := []struct {
		name     string
		a        map[string]bool
		b        map[string]bool
		expected float64
	}{
		{
			name:     "both empty is neutral",
			a:        map[string]bool{},
			b:        map[string]bool{},
			expected: 0.5,
		},
		{
			name:     "one empty is maximal",
			a:        map[string]bool{},
			b:        map[string]bool{"x": true},
			expected: 1.0,
		},
		{
			name:     "partial overlap",
			a:        map[string]bool{"a": true, "b": true},
			b:        map[string]bool{"a": true, "c": true},
			expected: 1.0 - 1.0/3.0,
		},
		{
			name:     "identical sets",
			a:        map[string]bool{"a": true, "b": true},
			b:        map[string]bool{"a": true, "b": true},
			expected: 0.0,
		},
		{
			name:     "disjoint sets",
			a:        map[string]bool{"a": true},
			b:        map[string]bool{"b": true},
			expected: 1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Keyword(tt.a, tt.b), 0.001)
		})
	}
}

func TestHybridSymmetry(t *testing.T) {
	w := Weights{Semantic: 0.7, Lexical: 0.3}

	pairs := []struct {
		va, vb []float32
		ka, kb map[string]bool
	}{
		{
			va: []float32{1, 0, 0}, vb: []float32{0.9, 0.1, 0},
			ka: map[string]bool{"noise": true}, kb: map[string]bool{"noise": true, "road": true},
		},
		{
			va: []float32{0, 0, 0}, vb: []float32{1, 2, 3},
			ka: map[string]bool{}, kb: map[string]bool{"x": true},
		},
		{
			va: []float32{1, 1}, vb: []float32{1, 1},
			ka: map[string]bool{}, kb: map[string]bool{},
		},
	}

	for _, p := range pairs {
		assert.Equal(t, w.Hybrid(p.va, p.vb, p.ka, p.kb), w.Hybrid(p.vb, p.va, p.kb, p.ka))
	}
}

func TestHybridZeroOnlyWhenBothSubdistancesZero(t *testing.T) {
	w := Weights{Semantic: 0.7, Lexical: 0.3}
	kw := map[string]bool{"a": true}

	// Identical vector and identical keywords: exactly zero.
	assert.Zero(t, w.Hybrid([]float32{1, 2}, []float32{1, 2}, kw, kw))

	// Identical vector but diverging keywords: positive.
	assert.Positive(t, w.Hybrid([]float32{1, 2}, []float32{1, 2}, kw, map[string]bool{"b": true}))

	// Identical keywords but diverging vectors: positive.
	assert.Positive(t, w.Hybrid([]float32{1, 0}, []float32{0, 1}, kw, kw))
}

// Spec scenario: cosine distance 0.02 with identical keyword sets should
// land around 0.014 with a 0.7/0.3 split, comfortably under a 0.1 match
// threshold.
func TestHybridCloseComplaintScenario(t *testing.T) {
	w := Weights{Semantic: 0.7, Lexical: 0.3}
	a := []float32{1, 0}
	b := []float32{0.98, float32(math.Sqrt(1 - 0.98*0.98))}
	kw := map[string]bool{"noise": true, "night": true, "club": true}

	d := w.Hybrid(a, b, kw, kw)
	assert.InDelta(t, 0.014, d, 0.001)
	assert.Less(t, d, 0.1)
}

func TestMatrix(t *testing.T) {
	vecs := [][]float32{
		{1, 0},
		{1, 0},
		{0, 1},
	}
	kws := []map[string]bool{
		{"a": true},
		{"a": true},
		{"b": true},
	}
	w := Weights{Semantic: 0.7, Lexical: 0.3}

	m := Matrix(vecs, kws, w)
	assert.Len(t, m, 3)
	for i := 0; i < 3; i++ {
		assert.Zero(t, m[i][i])
		for j := 0; j < 3; j++ {
			assert.Equal(t, m[i][j], m[j][i])
		}
	}
	assert.InDelta(t, 0.0, m[0][1], 1e-9)
	assert.InDelta(t, 0.7*1.0+0.3*1.0, m[0][2], 1e-9)
}

func TestMatrixEmpty(t *testing.T) {
	m := Matrix(nil, nil, Weights{Semantic: 0.7, Lexical: 0.3})
	assert.Empty(t, m)
}
