// Package scheduler drives recurring evaluation cycles: on each tick it
// determines which (agent, interval) pairs are due, pulls their metrics
// and logs from the external source, and hands them to the coordinator.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/proxypulse/proxypulse/internal/datastore/entities"
	"github.com/proxypulse/proxypulse/internal/logger"
	"github.com/proxypulse/proxypulse/internal/service"
	"github.com/proxypulse/proxypulse/internal/snapshot"
	"github.com/proxypulse/proxypulse/internal/source"
)

// ErrCycleInFlight is returned by RunOnce when a cycle is already
// executing. Manual triggers are rejected rather than queued to keep the
// control surface latency bounded.
var ErrCycleInFlight = errors.New("evaluation cycle already in flight")

const (
	defaultTick         = time.Minute
	defaultFetchTimeout = 15 * time.Second
	defaultConcurrency  = 4
)

// Options tune the scheduler.
type Options struct {
	// Tick is the base timer period. Zero means the one-minute default.
	Tick time.Duration
	// FetchTimeout bounds each source call. Zero means 15s.
	FetchTimeout time.Duration
	// Concurrency caps parallel agent processing per cycle. Zero means 4.
	Concurrency int
}

// Status is a non-blocking view of scheduler run state.
type Status struct {
	IsRunning bool      `json:"is_running"`
	LastRunAt time.Time `json:"last_run_at"`
	LastError string    `json:"last_error,omitempty"`
}

// Scheduler owns the recurring timer and the single-cycle-at-a-time
// invariant.
type Scheduler struct {
	src   source.Source
	coord *service.Coordinator
	log   logger.Logger

	tick         time.Duration
	fetchTimeout time.Duration
	concurrency  int

	// mu guards the Running/Stopped transition.
	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc

	// cycleMu is the single-slot in-flight guard: timer ticks and manual
	// triggers both TryLock it, so two cycles can never interleave.
	cycleMu sync.Mutex

	statusMu  sync.RWMutex
	lastRunAt time.Time
	lastErr   error

	// lastEvaluated tracks per-(agent, interval) due times.
	evalMu        sync.Mutex
	lastEvaluated map[string]map[entities.Interval]time.Time

	now func() time.Time
}

// New creates a scheduler over the source and coordinator.
func New(src source.Source, coord *service.Coordinator, opts Options, log logger.Logger) *Scheduler {
	if opts.Tick <= 0 {
		opts.Tick = defaultTick
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = defaultFetchTimeout
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	return &Scheduler{
		src:           src,
		coord:         coord,
		log:           log,
		tick:          opts.Tick,
		fetchTimeout:  opts.FetchTimeout,
		concurrency:   opts.Concurrency,
		lastEvaluated: make(map[string]map[entities.Interval]time.Time),
		now:           time.Now,
	}
}

// WarmLastEvaluated seeds due bookkeeping, typically from the latest
// persisted snapshot windows, so a restart does not re-process windows
// that were already evaluated.
func (s *Scheduler) WarmLastEvaluated(latest map[string]map[entities.Interval]time.Time) {
	s.evalMu.Lock()
	defer s.evalMu.Unlock()
	for agentID, byInterval := range latest {
		m := s.lastEvaluated[agentID]
		if m == nil {
			m = make(map[entities.Interval]time.Time)
			s.lastEvaluated[agentID] = m
		}
		for interval, t := range byInterval {
			m[interval] = t
		}
	}
}

// Start arms the recurring timer. Idempotent: starting an already
// running scheduler logs a warning and returns without side effects.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.log.Warn("scheduler already running, ignoring start")
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.running = true
	go s.loop(ctx)
	s.log.Info("scheduler started", logger.Duration("tick", s.tick))
}

// Stop cancels the timer. Fire-and-forget: an in-flight cycle completes,
// the next tick is suppressed. Safe to call from any goroutine and more
// than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.cancel()
	s.cancel = nil
	s.running = false
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	// First cycle immediately rather than waiting out a full tick.
	s.tickCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tickCycle(ctx)
		}
	}
}

// tickCycle runs a timer-driven cycle unless one is already executing,
// in which case the tick is skipped.
func (s *Scheduler) tickCycle(ctx context.Context) {
	if !s.cycleMu.TryLock() {
		s.log.Debug("cycle still in flight, skipping tick")
		return
	}
	defer s.cycleMu.Unlock()
	s.runCycle(ctx)
}

// RunOnce executes exactly one cycle synchronously, regardless of
// scheduler state. Returns ErrCycleInFlight when a timer-driven or
// manual cycle is already executing.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if !s.cycleMu.TryLock() {
		return ErrCycleInFlight
	}
	defer s.cycleMu.Unlock()
	return s.runCycle(ctx)
}

// runCycle enumerates agents and processes every due (agent, interval)
// pair. A failure in one unit is logged and counted, never aborting the
// rest; the cycle outcome only records that some unit failed.
func (s *Scheduler) runCycle(ctx context.Context) error {
	started := s.now()

	agentsCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	agents, err := s.src.Agents(agentsCtx)
	cancel()
	if err != nil {
		err = fmt.Errorf("failed to enumerate agents: %w", err)
		s.recordRun(started, err)
		return err
	}

	var failed, processed int64
	var countMu sync.Mutex

	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)
	for i := range agents {
		agent := agents[i]
		g.Go(func() error {
			p, f := s.processAgent(ctx, agent)
			countMu.Lock()
			processed += p
			failed += f
			countMu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; failures are counted

	var cycleErr error
	if failed > 0 {
		cycleErr = fmt.Errorf("%d of %d units failed", failed, processed+failed)
	}
	s.recordRun(started, cycleErr)
	s.log.Debug("cycle completed",
		logger.Int("agents", len(agents)),
		logger.Int64("units_processed", processed),
		logger.Int64("units_failed", failed))
	return cycleErr
}

// processAgent handles every due interval for one agent. Returns counts
// of processed and failed units.
func (s *Scheduler) processAgent(ctx context.Context, agent source.Agent) (processed, failed int64) {
	for _, interval := range s.coord.ActiveIntervals(agent.ID) {
		if !s.due(agent.ID, interval) {
			continue
		}
		if err := s.processUnit(ctx, agent, interval); err != nil {
			failed++
			s.log.Error("unit processing failed",
				logger.String("agent", agent.ID),
				logger.String("interval", string(interval)),
				logger.Error(err))
			continue
		}
		processed++
		s.markEvaluated(agent.ID, interval)
	}
	return processed, failed
}

func (s *Scheduler) processUnit(ctx context.Context, agent source.Agent, interval entities.Interval) error {
	window := snapshot.WindowEnding(s.now(), interval)

	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	batch, err := s.src.Collect(fetchCtx, agent.ID, window)
	cancel()
	if err != nil {
		// Transient source failure: retried at the next tick, not here.
		return fmt.Errorf("source fetch: %w", err)
	}

	result, err := s.coord.ProcessMetrics(ctx, service.ProcessRequest{
		AgentID:   agent.ID,
		AgentName: agent.Name,
		Metrics:   batch.Metrics,
		Logs:      batch.Logs,
		Window:    window,
		Interval:  interval,
	})
	if err != nil {
		return err
	}
	for _, failure := range result.Failures {
		s.log.Warn("partial failure in fan-out",
			logger.String("agent", agent.ID),
			logger.Error(failure))
	}
	return nil
}

func (s *Scheduler) due(agentID string, interval entities.Interval) bool {
	s.evalMu.Lock()
	defer s.evalMu.Unlock()
	last, ok := s.lastEvaluated[agentID][interval]
	if !ok {
		return true
	}
	return s.now().Sub(last) >= interval.Duration()
}

func (s *Scheduler) markEvaluated(agentID string, interval entities.Interval) {
	s.evalMu.Lock()
	defer s.evalMu.Unlock()
	m := s.lastEvaluated[agentID]
	if m == nil {
		m = make(map[entities.Interval]time.Time)
		s.lastEvaluated[agentID] = m
	}
	m[interval] = s.now()
}

func (s *Scheduler) recordRun(at time.Time, err error) {
	s.statusMu.Lock()
	s.lastRunAt = at
	s.lastErr = err
	s.statusMu.Unlock()
}

// Status returns run state without blocking on an in-flight cycle.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	st := Status{IsRunning: running, LastRunAt: s.lastRunAt}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}
