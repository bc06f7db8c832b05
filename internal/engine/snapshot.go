// Package engine implements one incident clustering cycle: nearest-centroid
// matching with anchored centroid updates, density clustering of the
// unmatched remainder, and collision-free title generation.
package engine

import (
	"github.com/civicroute/incidentd/pkg/models"
)

// Anchor is the in-memory view of one open incident's centroid state. It is
// mutated as complaints are merged during the cycle so later complaints in
// the same batch see the moved centroid.
type Anchor struct {
	Centroid     []float32
	Keywords     map[string]bool
	ID           int64
	Count        int
	AnchorCount  int
	LastOccurred int64
}

// Snapshot is the cycle-scoped centroid cache. It is built fresh from
// storage at the start of every cycle and discarded afterwards; no state
// survives a cycle except what was persisted.
type Snapshot struct {
	Titles  map[string]bool
	Anchors []*Anchor
}

// NewSnapshot builds the centroid cache from the open incidents and the
// full set of existing incident titles.
func NewSnapshot(incidents []*models.Incident, titles []string) *Snapshot {
	snap := &Snapshot{
		Titles:  make(map[string]bool, len(titles)),
		Anchors: make([]*Anchor, 0, len(incidents)),
	}
	for _, title := range titles {
		snap.Titles[title] = true
	}
	for _, inc := range incidents {
		keywords := make(map[string]bool, len(inc.Keywords))
		for _, kw := range inc.Keywords {
			keywords[kw] = true
		}
		snap.Anchors = append(snap.Anchors, &Anchor{
			ID:           inc.ID,
			Centroid:     inc.Centroid,
			Keywords:     keywords,
			Count:        inc.ComplaintCount,
			AnchorCount:  inc.AnchorCount,
			LastOccurred: inc.LastOccurredEpoch,
		})
	}
	return snap
}

// ClaimTitle registers a title in the in-pass used set so later clusters in
// the same cycle cannot collide with it.
func (s *Snapshot) ClaimTitle(title string) {
	s.Titles[title] = true
}
