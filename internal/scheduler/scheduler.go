// Package scheduler drives the clustering engine: poll for pending work,
// run one cycle, sleep, repeat. Errors back off instead of tightening the
// loop, and cancellation is honored everywhere a wait happens.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/civicroute/incidentd/internal/engine"
)

// Scheduler states reported on the ops endpoint.
const (
	StateIdle       = "IDLE"
	StateProcessing = "PROCESSING"
)

// Engine is the cycle runner the scheduler drives.
type Engine interface {
	HasWork(ctx context.Context) (bool, error)
	RunCycle(ctx context.Context) (engine.CycleStats, error)
}

// Config holds the polling cadence.
type Config struct {
	PollInterval time.Duration
	ErrorBackoff time.Duration
}

// Snapshot is a point-in-time view of the scheduler for the ops endpoint.
type Snapshot struct {
	State            string `json:"state"`
	LastCycleAt      string `json:"last_cycle_at,omitempty"`
	CyclesTotal      int64  `json:"cycles_total"`
	ComplaintsMerged int64  `json:"complaints_merged"`
	IncidentsCreated int64  `json:"incidents_created"`
	ErrorsTotal      int64  `json:"errors_total"`
}

// Scheduler runs the polling loop.
type Scheduler struct {
	engine  Engine
	log     zerolog.Logger
	metrics *Metrics
	cfg     Config

	mu               sync.Mutex
	state            string
	lastCycleAt      time.Time
	cyclesTotal      int64
	complaintsMerged int64
	incidentsCreated int64
	errorsTotal      int64
}

// New creates a Scheduler.
func New(eng Engine, cfg Config, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		engine:  eng,
		cfg:     cfg,
		log:     log,
		metrics: NewMetrics(),
		state:   StateIdle,
	}
}

// Run polls until ctx is cancelled. The first poll happens immediately;
// afterwards the loop waits PollInterval between polls, or ErrorBackoff
// after a failed one.
func (s *Scheduler) Run(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		delay := s.cfg.PollInterval
		if err := s.poll(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.recordError()
			s.log.Error().Err(err).Msg("clustering poll failed, backing off")
			delay = s.cfg.ErrorBackoff
		}
		timer.Reset(delay)
	}
}

// poll runs at most one clustering cycle. Idle polls are silent at info
// level; they happen every few seconds all day.
func (s *Scheduler) poll(ctx context.Context) error {
	ok, err := s.engine.HasWork(ctx)
	if err != nil {
		return err
	}
	if !ok {
		s.log.Debug().Msg("no pending complaints")
		return nil
	}
	_, err = s.RunOnce(ctx)
	return err
}

// RunOnce executes exactly one clustering cycle and records its outcome.
// Exposed for the --once CLI mode and for tests.
func (s *Scheduler) RunOnce(ctx context.Context) (engine.CycleStats, error) {
	cycleID := uuid.NewString()[:8]
	s.setState(StateProcessing)
	defer s.setState(StateIdle)

	log := s.log.With().Str("cycle_id", cycleID).Logger()
	log.Info().Msg("clustering cycle started")

	stats, err := s.engine.RunCycle(ctx)
	if err != nil {
		return stats, err
	}

	s.recordCycle(stats)
	s.metrics.RecordCycle(ctx, stats)
	log.Info().
		Int("pending", stats.Pending).
		Int("merged", stats.Merged).
		Int("new_incidents", stats.NewIncidents).
		Int("new_members", stats.NewMembers).
		Int("degraded", stats.Degraded).
		Int("skipped", stats.Skipped).
		Dur("duration", stats.Duration).
		Msg("clustering cycle finished")
	return stats, nil
}

// Stats returns the current snapshot.
func (s *Scheduler) Stats() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		State:            s.state,
		CyclesTotal:      s.cyclesTotal,
		ComplaintsMerged: s.complaintsMerged,
		IncidentsCreated: s.incidentsCreated,
		ErrorsTotal:      s.errorsTotal,
	}
	if !s.lastCycleAt.IsZero() {
		snap.LastCycleAt = s.lastCycleAt.Format(time.RFC3339)
	}
	return snap
}

func (s *Scheduler) setState(state string) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Scheduler) recordCycle(stats engine.CycleStats) {
	s.mu.Lock()
	s.cyclesTotal++
	s.complaintsMerged += int64(stats.Merged)
	s.incidentsCreated += int64(stats.NewIncidents)
	s.lastCycleAt = time.Now()
	s.mu.Unlock()
}

func (s *Scheduler) recordError() {
	s.mu.Lock()
	s.errorsTotal++
	s.mu.Unlock()
	s.metrics.RecordError(context.Background())
}
