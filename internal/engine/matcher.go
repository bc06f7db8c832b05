package engine

import (
	"sort"

	"github.com/civicroute/incidentd/pkg/models"
)

// matchOne finds the nearest incident centroid for a complaint. Returns nil
// when no centroid is within the match threshold. Ties on distance resolve
// to the first-seen anchor, keeping the decision deterministic for a given
// snapshot ordering.
func (e *Engine) matchOne(snap *Snapshot, c *models.Complaint) *Anchor {
	var best *Anchor
	minDist := e.cfg.MatchThreshold + 1
	for _, a := range snap.Anchors {
		d := e.cfg.Weights.Hybrid(c.Vector, a.Centroid, c.Keywords, a.Keywords)
		if d < minDist {
			minDist = d
			best = a
		}
	}
	if best == nil || minDist > e.cfg.MatchThreshold {
		return nil
	}
	return best
}

// merge folds a complaint into an anchor and produces the assignment to
// persist. While the incident has fewer than AnchorK anchored members the
// centroid is recomputed as the incremental mean and the keyword set is
// merged; after that the centroid is frozen and only the count grows
// (identity anchoring).
func (e *Engine) merge(a *Anchor, c *models.Complaint) models.Assignment {
	a.Count++
	if c.ReceivedAtEpoch > a.LastOccurred {
		a.LastOccurred = c.ReceivedAtEpoch
	}

	assignment := models.Assignment{
		ComplaintID:       c.ID,
		IncidentID:        a.ID,
		ComplaintCount:    a.Count,
		AnchorCount:       a.AnchorCount,
		LastOccurredEpoch: a.LastOccurred,
	}

	if a.AnchorCount < e.cfg.AnchorK {
		n := a.AnchorCount
		updated := make([]float32, len(a.Centroid))
		for i := range a.Centroid {
			updated[i] = (a.Centroid[i]*float32(n) + c.Vector[i]) / float32(n+1)
		}
		a.Centroid = updated
		a.AnchorCount = n + 1
		for kw := range c.Keywords {
			a.Keywords[kw] = true
		}

		assignment.AnchorCount = a.AnchorCount
		assignment.Centroid = models.JSONFloat32Array(updated)
		assignment.Keywords = sortedKeywords(a.Keywords)
	}
	return assignment
}

// sortedKeywords flattens a keyword set into a stable slice for persistence.
func sortedKeywords(set map[string]bool) models.JSONStringArray {
	out := make(models.JSONStringArray, 0, len(set))
	for kw := range set {
		out = append(out, kw)
	}
	sort.Strings(out)
	return out
}

// centroidMean computes the member mean vector for a newly formed cluster.
func centroidMean(members []*models.Complaint, dim int) []float32 {
	mean := make([]float32, dim)
	if len(members) == 0 {
		return mean
	}
	for _, m := range members {
		for i, v := range m.Vector {
			if i < dim {
				mean[i] += v
			}
		}
	}
	for i := range mean {
		mean[i] /= float32(len(members))
	}
	return mean
}

// topKeywords returns the limit most frequent keywords across members,
// ordered by frequency then lexically so the result is stable.
func topKeywords(members []*models.Complaint, limit int) models.JSONStringArray {
	counts := make(map[string]int)
	for _, m := range members {
		for kw := range m.Keywords {
			counts[kw]++
		}
	}
	ranked := make([]string, 0, len(counts))
	for kw := range counts {
		ranked = append(ranked, kw)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if counts[ranked[i]] != counts[ranked[j]] {
			return counts[ranked[i]] > counts[ranked[j]]
		}
		return ranked[i] < ranked[j]
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return models.JSONStringArray(ranked)
}
