package engine

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicroute/incidentd/internal/distance"
	"github.com/civicroute/incidentd/pkg/models"
)

func matcherEngine(threshold float64, anchorK int) *Engine {
	cfg := testConfig()
	cfg.MatchThreshold = threshold
	cfg.AnchorK = anchorK
	return New(nil, cfg, zerolog.Nop())
}

func TestMatchOnePicksNearest(t *testing.T) {
	snap := NewSnapshot([]*models.Incident{
		{ID: 1, Centroid: models.JSONFloat32Array{0, 1}, Keywords: models.JSONStringArray{"trash"}},
		{ID: 2, Centroid: models.JSONFloat32Array{1, 0}, Keywords: models.JSONStringArray{"noise"}},
	}, nil)
	eng := matcherEngine(0.1, 10)

	got := eng.matchOne(snap, &models.Complaint{
		Vector:   []float32{1, 0},
		Keywords: map[string]bool{"noise": true},
	})
	require.NotNil(t, got)
	assert.EqualValues(t, 2, got.ID)
}

func TestMatchOneRejectsBeyondThreshold(t *testing.T) {
	snap := NewSnapshot([]*models.Incident{
		{ID: 1, Centroid: models.JSONFloat32Array{1, 0}, Keywords: models.JSONStringArray{"noise"}},
	}, nil)
	eng := matcherEngine(0.1, 10)

	// Orthogonal vector, disjoint keywords: distance 1.0.
	got := eng.matchOne(snap, &models.Complaint{
		Vector:   []float32{0, 1},
		Keywords: map[string]bool{"trash": true},
	})
	assert.Nil(t, got)
}

// A distance exactly at the threshold still matches; only strictly greater
// distances are rejected.
func TestMatchOneThresholdIsInclusive(t *testing.T) {
	snap := NewSnapshot([]*models.Incident{
		{ID: 1, Centroid: models.JSONFloat32Array{1, 0}},
	}, nil)
	cfg := testConfig()
	// Identical vectors and two empty keyword sets give exactly
	// lexical_weight * 0.5.
	cfg.Weights = distance.Weights{Semantic: 0.5, Lexical: 0.5}
	cfg.MatchThreshold = 0.25
	eng := New(nil, cfg, zerolog.Nop())

	got := eng.matchOne(snap, &models.Complaint{Vector: []float32{1, 0}})
	assert.NotNil(t, got)

	cfg.MatchThreshold = 0.2499
	eng = New(nil, cfg, zerolog.Nop())
	assert.Nil(t, eng.matchOne(snap, &models.Complaint{Vector: []float32{1, 0}}))
}

// Ties resolve to the first anchor in snapshot order, which follows incident
// ID order from storage.
func TestMatchOneTieBreaksFirstSeen(t *testing.T) {
	snap := NewSnapshot([]*models.Incident{
		{ID: 3, Centroid: models.JSONFloat32Array{1, 0}, Keywords: models.JSONStringArray{"noise"}},
		{ID: 8, Centroid: models.JSONFloat32Array{1, 0}, Keywords: models.JSONStringArray{"noise"}},
	}, nil)
	eng := matcherEngine(0.1, 10)

	got := eng.matchOne(snap, &models.Complaint{
		Vector:   []float32{1, 0},
		Keywords: map[string]bool{"noise": true},
	})
	require.NotNil(t, got)
	assert.EqualValues(t, 3, got.ID)
}

func TestMergeMovesCentroidBelowAnchorLimit(t *testing.T) {
	eng := matcherEngine(0.1, 10)
	anchor := &Anchor{
		ID:           1,
		Centroid:     []float32{1, 0},
		Keywords:     map[string]bool{"noise": true},
		Count:        1,
		AnchorCount:  1,
		LastOccurred: 1000,
	}

	a := eng.merge(anchor, &models.Complaint{
		ID:              42,
		ReceivedAtEpoch: 2000,
		Vector:          []float32{0, 1},
		Keywords:        map[string]bool{"music": true},
	})

	// Incremental mean of [1,0] and [0,1].
	assert.InDelta(t, 0.5, float64(anchor.Centroid[0]), 1e-6)
	assert.InDelta(t, 0.5, float64(anchor.Centroid[1]), 1e-6)
	assert.Equal(t, 2, anchor.AnchorCount)
	assert.Equal(t, 2, anchor.Count)
	assert.True(t, anchor.Keywords["music"])

	assert.EqualValues(t, 42, a.ComplaintID)
	assert.Equal(t, 2, a.ComplaintCount)
	assert.Equal(t, 2, a.AnchorCount)
	assert.EqualValues(t, 2000, a.LastOccurredEpoch)
	assert.Equal(t, models.JSONFloat32Array{0.5, 0.5}, a.Centroid)
	assert.Equal(t, models.JSONStringArray{"music", "noise"}, a.Keywords)
}

// Once the anchor limit is reached the centroid and keyword set freeze; only
// the count and recency move.
func TestMergeFreezesCentroidAtAnchorLimit(t *testing.T) {
	eng := matcherEngine(0.1, 2)
	anchor := &Anchor{
		ID:           1,
		Centroid:     []float32{1, 0},
		Keywords:     map[string]bool{"noise": true},
		Count:        2,
		AnchorCount:  2,
		LastOccurred: 1000,
	}

	a := eng.merge(anchor, &models.Complaint{
		ID:              43,
		ReceivedAtEpoch: 3000,
		Vector:          []float32{0, 1},
		Keywords:        map[string]bool{"music": true},
	})

	assert.Equal(t, []float32{1, 0}, anchor.Centroid)
	assert.Equal(t, 2, anchor.AnchorCount)
	assert.Equal(t, 3, anchor.Count)
	assert.False(t, anchor.Keywords["music"])

	assert.Nil(t, a.Centroid)
	assert.Nil(t, a.Keywords)
	assert.Equal(t, 3, a.ComplaintCount)
	assert.Equal(t, 2, a.AnchorCount)
	assert.EqualValues(t, 3000, a.LastOccurredEpoch)
}

// A batch where every row matches the same incident moves the anchor once per
// row, so the freeze kicks in mid-batch.
func TestMergeSequenceCrossesAnchorLimit(t *testing.T) {
	eng := matcherEngine(0.1, 3)
	anchor := &Anchor{
		ID:          1,
		Centroid:    []float32{1, 0},
		Keywords:    map[string]bool{"noise": true},
		Count:       2,
		AnchorCount: 2,
	}

	first := eng.merge(anchor, &models.Complaint{ID: 1, Vector: []float32{1, 0}, Keywords: map[string]bool{"noise": true}})
	assert.NotNil(t, first.Centroid)
	assert.Equal(t, 3, anchor.AnchorCount)

	second := eng.merge(anchor, &models.Complaint{ID: 2, Vector: []float32{0, 1}, Keywords: map[string]bool{"noise": true}})
	assert.Nil(t, second.Centroid)
	assert.Equal(t, 3, anchor.AnchorCount)
	assert.Equal(t, 4, anchor.Count)
}

func TestMergeKeepsLatestOccurrence(t *testing.T) {
	eng := matcherEngine(0.1, 10)
	anchor := &Anchor{
		ID:           1,
		Centroid:     []float32{1, 0},
		Keywords:     map[string]bool{"noise": true},
		Count:        1,
		AnchorCount:  1,
		LastOccurred: 5000,
	}

	// An older complaint must not rewind the incident's recency.
	a := eng.merge(anchor, &models.Complaint{
		ID:              44,
		ReceivedAtEpoch: 4000,
		Vector:          []float32{1, 0},
		Keywords:        map[string]bool{"noise": true},
	})
	assert.EqualValues(t, 5000, a.LastOccurredEpoch)
}
