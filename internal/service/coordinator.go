// Package service coordinates the fan-out from one metrics update to its
// derived actions: snapshot persistence, alert evaluation, and archival
// bookkeeping.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/proxypulse/proxypulse/internal/alerting"
	"github.com/proxypulse/proxypulse/internal/archive"
	"github.com/proxypulse/proxypulse/internal/datastore/entities"
	"github.com/proxypulse/proxypulse/internal/datastore/repository"
	"github.com/proxypulse/proxypulse/internal/logger"
	"github.com/proxypulse/proxypulse/internal/snapshot"
)

// ErrNotInitialized is returned when ProcessMetrics is called before
// Initialize.
var ErrNotInitialized = errors.New("coordinator not initialized")

// ProcessRequest is one metrics update for one agent. Logs are optional:
// when empty, snapshotting is skipped and alert evaluation proceeds on
// Metrics alone; the two side effects are independent.
type ProcessRequest struct {
	AgentID   string
	AgentName string
	Metrics   map[string]float64
	Logs      []snapshot.LogEntry
	Window    snapshot.Window
	Interval  entities.Interval
}

// ProcessResult aggregates the outcome of one fan-out. Partial failures
// are surfaced here, not raised: the unit still counts as processed.
type ProcessResult struct {
	SnapshotID string
	Failures   []error
}

// Failed reports whether any phase failed.
func (r *ProcessResult) Failed() bool {
	return len(r.Failures) > 0
}

// Status is the coordinator's observability snapshot, recomputed from
// in-memory counters on every query.
type Status struct {
	Initialized      bool      `json:"initialized"`
	StartedAt        time.Time `json:"started_at"`
	SnapshotsCreated int64     `json:"snapshots_created"`
	AlertsEvaluated  int64     `json:"alerts_evaluated"`
	AlertsFired      int64     `json:"alerts_fired"`
	UnitsProcessed   int64     `json:"units_processed"`
}

// Coordinator fans one metrics update out to the snapshot builder, the
// alert engine, and the archival policy.
type Coordinator struct {
	snapRepo repository.SnapshotRepository
	engine   *alerting.Engine
	policy   *archive.Policy
	log      logger.Logger

	initialized      atomic.Bool
	startedAt        time.Time
	snapshotsCreated atomic.Int64
	unitsProcessed   atomic.Int64
}

// NewCoordinator creates a coordinator over its collaborators.
func NewCoordinator(
	snapRepo repository.SnapshotRepository,
	engine *alerting.Engine,
	policy *archive.Policy,
	log logger.Logger,
) *Coordinator {
	return &Coordinator{
		snapRepo: snapRepo,
		engine:   engine,
		policy:   policy,
		log:      log,
	}
}

// Initialize warms the engine's rule cache and the archival summary.
// Idempotent: a second call is a no-op.
func (c *Coordinator) Initialize(ctx context.Context) error {
	if c.initialized.Load() {
		return nil
	}
	if err := c.engine.RefreshRules(ctx); err != nil {
		return fmt.Errorf("failed to initialize coordinator: %w", err)
	}
	if _, err := c.policy.RetainedSnapshots(ctx); err != nil {
		c.log.Warn("failed to warm archival summary", logger.Error(err))
	}
	c.startedAt = time.Now()
	c.initialized.Store(true)
	c.log.Info("service coordinator initialized")
	return nil
}

// Shutdown releases resources. Safe to call multiple times.
func (c *Coordinator) Shutdown() {
	if !c.initialized.CompareAndSwap(true, false) {
		return
	}
	c.policy.Stop()
	c.log.Info("service coordinator stopped")
}

// RefreshRules reloads the engine's rule cache; called by the API after
// rule modifications.
func (c *Coordinator) RefreshRules(ctx context.Context) error {
	return c.engine.RefreshRules(ctx)
}

// ActiveIntervals returns the interval buckets with enabled rules for
// the agent.
func (c *Coordinator) ActiveIntervals(agentID string) []entities.Interval {
	return c.engine.ActiveIntervals(agentID)
}

// ProcessMetrics runs the fan-out for one (agent, interval) unit. All
// three phases are attempted regardless of individual failures; the
// result carries whatever went wrong so the caller can log it without
// losing the overall processed outcome.
func (c *Coordinator) ProcessMetrics(ctx context.Context, req ProcessRequest) (*ProcessResult, error) {
	if !c.initialized.Load() {
		return nil, ErrNotInitialized
	}

	result := &ProcessResult{}

	// Phase 1: snapshot, only when raw logs came with the update.
	if len(req.Logs) > 0 {
		snap := snapshot.Build(req.AgentID, req.AgentName, req.Interval, req.Window, req.Logs)
		if err := c.snapRepo.Save(ctx, snap); err != nil {
			result.Failures = append(result.Failures, fmt.Errorf("snapshot phase: %w", err))
			c.log.Error("failed to persist snapshot",
				logger.String("agent", req.AgentID),
				logger.Error(err))
		} else {
			result.SnapshotID = snap.ID
			c.snapshotsCreated.Add(1)
		}
	}

	// Phase 2: alert evaluation. The engine isolates per-rule failures
	// itself and never returns one.
	c.engine.Evaluate(ctx, req.AgentID, req.AgentName, req.Metrics, req.Interval)

	// Phase 3: archival bookkeeping.
	c.policy.Touch(req.AgentID)

	c.unitsProcessed.Add(1)
	return result, nil
}

// Status reports coordinator state and counters since Initialize.
func (c *Coordinator) Status() Status {
	evaluated, fired := c.engine.Counters()
	return Status{
		Initialized:      c.initialized.Load(),
		StartedAt:        c.startedAt,
		SnapshotsCreated: c.snapshotsCreated.Load(),
		AlertsEvaluated:  evaluated,
		AlertsFired:      fired,
		UnitsProcessed:   c.unitsProcessed.Load(),
	}
}
