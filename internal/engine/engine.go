package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/civicroute/incidentd/internal/cluster"
	"github.com/civicroute/incidentd/internal/codec"
	"github.com/civicroute/incidentd/internal/distance"
	"github.com/civicroute/incidentd/pkg/models"
)

// Store is the persistence surface the engine needs. All write methods are
// transactional per call; the engine never holds a transaction across the
// whole cycle, so a crash mid-cycle loses only the in-flight batch and the
// null-incident-reference guard makes reprocessing idempotent.
type Store interface {
	OpenIncidents(ctx context.Context) ([]*models.Incident, error)
	ExistingTitles(ctx context.Context) ([]string, error)
	PendingComplaints(ctx context.Context) ([]models.RawComplaint, error)
	CountPending(ctx context.Context) (int64, error)
	// AssignComplaint sets the complaint's incident reference and applies
	// the incident-side updates in one transaction. Returns false when the
	// complaint was already assigned.
	AssignComplaint(ctx context.Context, a models.Assignment) (bool, error)
	// CreateIncident inserts the incident and bulk-assigns its members in
	// one transaction, returning the new incident ID.
	CreateIncident(ctx context.Context, inc *models.Incident, memberIDs []int64) (int64, error)
	// IsDuplicateTitle reports whether err is a unique violation on the
	// incident title index.
	IsDuplicateTitle(err error) bool
}

// Config holds the clustering tunables. Every observed deployment variant
// (thresholds 0.06-0.15, weights 0.7/0.3 vs 0.8/0.2, minPts 1 vs 2) is
// expressible here; nothing is hard-coded.
type Config struct {
	Weights        distance.Weights
	Keyword        codec.KeywordOptions
	Titles         TitleConfig
	MatchThreshold float64
	Eps            float64
	MinClusterSize int
	AnchorK        int
	EmbeddingDim   int
	KeywordLimit   int
	// TitleRetries bounds duplicate-title retries against concurrent
	// writers outside this pass.
	TitleRetries int
}

// CycleStats summarizes one clustering cycle.
type CycleStats struct {
	Pending      int
	Degraded     int
	Merged       int
	NewIncidents int
	NewMembers   int
	Skipped      int
	Duration     time.Duration
}

// Engine runs clustering cycles against a Store.
type Engine struct {
	store Store
	log   zerolog.Logger
	cfg   Config
}

// New creates an Engine.
func New(store Store, cfg Config, log zerolog.Logger) *Engine {
	if cfg.TitleRetries <= 0 {
		cfg.TitleRetries = 5
	}
	return &Engine{store: store, cfg: cfg, log: log}
}

// HasWork reports whether any unassigned complaint with a ready embedding
// is waiting. Used by the scheduler as a cheap idle probe.
func (e *Engine) HasWork(ctx context.Context) (bool, error) {
	n, err := e.store.CountPending(ctx)
	return n > 0, err
}

// RunCycle executes one full clustering pass: build the centroid cache,
// merge matching complaints into open incidents, density-cluster the
// remainder into new incidents. Storage errors abort the cycle; per-row
// decode problems degrade and per-row write conflicts are skipped.
func (e *Engine) RunCycle(ctx context.Context) (CycleStats, error) {
	start := time.Now()
	var stats CycleStats

	incidents, err := e.store.OpenIncidents(ctx)
	if err != nil {
		return stats, fmt.Errorf("load open incidents: %w", err)
	}
	titles, err := e.store.ExistingTitles(ctx)
	if err != nil {
		return stats, fmt.Errorf("load incident titles: %w", err)
	}
	snap := NewSnapshot(incidents, titles)

	rows, err := e.store.PendingComplaints(ctx)
	if err != nil {
		return stats, fmt.Errorf("load pending complaints: %w", err)
	}
	stats.Pending = len(rows)
	if len(rows) == 0 {
		stats.Duration = time.Since(start)
		return stats, nil
	}

	pending := e.decode(rows, &stats)

	rest, err := e.matchAll(ctx, snap, pending, &stats)
	if err != nil {
		return stats, err
	}

	if err := e.formIncidents(ctx, snap, rest, &stats); err != nil {
		return stats, err
	}

	stats.Duration = time.Since(start)
	return stats, nil
}

// decode runs every pending row through the codec. Degraded rows are kept:
// a zero vector and empty keyword set keep them out of every neighborhood,
// so they fall through to noise rather than poisoning a centroid.
func (e *Engine) decode(rows []models.RawComplaint, stats *CycleStats) []*models.Complaint {
	out := make([]*models.Complaint, 0, len(rows))
	for _, row := range rows {
		vec, vecDegraded := codec.ParseVector(row.Embedding, e.cfg.EmbeddingDim)
		kws, kwDegraded := codec.ParseKeywords(row.Keywords, e.cfg.Keyword)
		c := &models.Complaint{
			ID:              row.ID,
			ReceivedAtEpoch: row.ReceivedAtEpoch,
			Vector:          vec,
			Keywords:        kws,
			CoreRequest:     row.CoreRequest,
			Degraded:        vecDegraded || kwDegraded,
		}
		if c.Degraded {
			stats.Degraded++
			e.log.Debug().Int64("complaint_id", c.ID).Msg("degraded decode, using fallback values")
		}
		out = append(out, c)
	}
	return out
}

// matchAll assigns each complaint to its nearest centroid when within
// threshold, persisting each assignment in its own transaction and updating
// the in-memory anchor. Returns the unmatched remainder.
func (e *Engine) matchAll(ctx context.Context, snap *Snapshot, pending []*models.Complaint, stats *CycleStats) ([]*models.Complaint, error) {
	var rest []*models.Complaint
	for _, c := range pending {
		anchor := e.matchOne(snap, c)
		if anchor == nil {
			rest = append(rest, c)
			continue
		}

		assignment := e.merge(anchor, c)
		assigned, err := e.store.AssignComplaint(ctx, assignment)
		if err != nil {
			return nil, fmt.Errorf("assign complaint %d: %w", c.ID, err)
		}
		if !assigned {
			// Already assigned by an earlier batch; nothing to redo.
			stats.Skipped++
			continue
		}
		stats.Merged++
	}
	return rest, nil
}

// formIncidents density-clusters the unmatched remainder and persists each
// resulting cluster as a new incident.
func (e *Engine) formIncidents(ctx context.Context, snap *Snapshot, rest []*models.Complaint, stats *CycleStats) error {
	if len(rest) == 0 {
		return nil
	}

	vecs := make([][]float32, len(rest))
	kws := make([]map[string]bool, len(rest))
	for i, c := range rest {
		vecs[i] = c.Vector
		kws[i] = c.Keywords
	}
	dist := distance.Matrix(vecs, kws, e.cfg.Weights)
	labels := cluster.DBSCAN(dist, e.cfg.Eps, e.cfg.MinClusterSize)

	for _, members := range groupByLabel(rest, labels) {
		inc, memberIDs := e.draftIncident(snap, members)
		if _, err := e.createWithRetry(ctx, snap, inc, memberIDs); err != nil {
			return err
		}
		stats.NewIncidents++
		stats.NewMembers += len(memberIDs)
	}
	return nil
}

// groupByLabel collects cluster members in label order, skipping noise.
func groupByLabel(rest []*models.Complaint, labels []int) [][]*models.Complaint {
	maxLabel := -1
	for _, l := range labels {
		if l > maxLabel {
			maxLabel = l
		}
	}
	groups := make([][]*models.Complaint, maxLabel+1)
	for i, l := range labels {
		if l == cluster.Noise {
			continue
		}
		groups[l] = append(groups[l], rest[i])
	}
	return groups
}

// draftIncident builds the incident row for a freshly formed cluster.
func (e *Engine) draftIncident(snap *Snapshot, members []*models.Complaint) (*models.Incident, []int64) {
	centroid := centroidMean(members, e.cfg.EmbeddingDim)
	title := generateTitle(members, centroid, snap.Titles, e.cfg.Titles)
	snap.ClaimTitle(title)

	opened, last := members[0].ReceivedAtEpoch, members[0].ReceivedAtEpoch
	memberIDs := make([]int64, 0, len(members))
	for _, m := range members {
		if m.ReceivedAtEpoch < opened {
			opened = m.ReceivedAtEpoch
		}
		if m.ReceivedAtEpoch > last {
			last = m.ReceivedAtEpoch
		}
		memberIDs = append(memberIDs, m.ID)
	}

	anchored := len(members)
	if anchored > e.cfg.AnchorK {
		anchored = e.cfg.AnchorK
	}
	return &models.Incident{
		Title:             title,
		Status:            models.IncidentOpen,
		Centroid:          models.JSONFloat32Array(centroid),
		Keywords:          topKeywords(members, e.cfg.KeywordLimit),
		ComplaintCount:    len(members),
		AnchorCount:       anchored,
		OpenedAtEpoch:     opened,
		LastOccurredEpoch: last,
	}, memberIDs
}

// createWithRetry inserts a new incident, retrying with a numeric suffix
// when a concurrent writer outside this pass stole the title. The in-pass
// title set already guarantees uniqueness within the cycle.
func (e *Engine) createWithRetry(ctx context.Context, snap *Snapshot, inc *models.Incident, memberIDs []int64) (int64, error) {
	base := inc.Title
	for attempt := 0; ; attempt++ {
		id, err := e.store.CreateIncident(ctx, inc, memberIDs)
		if err == nil {
			return id, nil
		}
		if !e.store.IsDuplicateTitle(err) || attempt >= e.cfg.TitleRetries {
			return 0, fmt.Errorf("create incident %q: %w", inc.Title, err)
		}
		inc.Title = fmt.Sprintf("%s #%d", base, attempt+1)
		snap.ClaimTitle(inc.Title)
		e.log.Warn().Str("title", inc.Title).Msg("incident title collision on insert, retrying")
	}
}
