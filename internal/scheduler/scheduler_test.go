package scheduler

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proxypulse/proxypulse/internal/alerting"
	"github.com/proxypulse/proxypulse/internal/archive"
	"github.com/proxypulse/proxypulse/internal/datastore"
	"github.com/proxypulse/proxypulse/internal/datastore/entities"
	"github.com/proxypulse/proxypulse/internal/datastore/repository"
	"github.com/proxypulse/proxypulse/internal/logger"
	"github.com/proxypulse/proxypulse/internal/notify"
	"github.com/proxypulse/proxypulse/internal/service"
	"github.com/proxypulse/proxypulse/internal/snapshot"
	"github.com/proxypulse/proxypulse/internal/source"
)

// fakeSource serves canned agents and batches, optionally blocking in
// Agents until released so tests can hold a cycle in flight.
type fakeSource struct {
	agents    []source.Agent
	agentsErr error
	metrics   map[string]float64
	collects  atomic.Int64

	blockCh chan struct{} // when set, Agents waits for close or ctx
}

func (f *fakeSource) Agents(ctx context.Context) ([]source.Agent, error) {
	if f.blockCh != nil {
		select {
		case <-f.blockCh:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.agentsErr != nil {
		return nil, f.agentsErr
	}
	return f.agents, nil
}

func (f *fakeSource) Collect(_ context.Context, _ string, window snapshot.Window) (*source.Batch, error) {
	f.collects.Add(1)
	return &source.Batch{
		Metrics: f.metrics,
		Logs: []snapshot.LogEntry{
			{Timestamp: window.Start.Add(time.Second), Status: 200, DurationMs: 10},
		},
	}, nil
}

type schedulerFixture struct {
	sched     *Scheduler
	src       *fakeSource
	coord     *service.Coordinator
	snapRepo  repository.SnapshotRepository
	ruleRepo  repository.AlertRuleRepository
	transport *recordingTransport
}

type recordingTransport struct {
	calls atomic.Int64
}

func (t *recordingTransport) Deliver(_ context.Context, _ notify.Alert) notify.Delivery {
	t.calls.Add(1)
	return notify.Delivery{Success: true}
}

func setupScheduler(t *testing.T, src *fakeSource) *schedulerFixture {
	t.Helper()

	manager, err := datastore.NewSQLiteManager(datastore.Config{DataDir: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, manager.Initialize())
	t.Cleanup(func() {
		_ = manager.Close()
	})

	db := manager.DB()
	log := logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil)
	snapRepo := repository.NewSnapshotRepository(db)
	notifRepo := repository.NewNotificationRepository(db)
	ruleRepo := repository.NewAlertRuleRepository(db)
	transport := &recordingTransport{}

	engine := alerting.NewEngine(ruleRepo, notifRepo, transport, time.Second, log)
	policy := archive.NewPolicy(snapRepo, notifRepo, repository.NewConfigRepository(db), log)
	coord := service.NewCoordinator(snapRepo, engine, policy, log)
	t.Cleanup(coord.Shutdown)

	sched := New(src, coord, Options{Tick: time.Hour, FetchTimeout: 2 * time.Second}, log)
	t.Cleanup(sched.Stop)

	return &schedulerFixture{
		sched:     sched,
		src:       src,
		coord:     coord,
		snapRepo:  snapRepo,
		ruleRepo:  ruleRepo,
		transport: transport,
	}
}

// enableRule creates a 5m errorRate rule and loads it into the engine.
func enableRule(t *testing.T, f *schedulerFixture) {
	t.Helper()
	require.NoError(t, f.ruleRepo.CreateRule(t.Context(), &entities.AlertRule{
		Name: "high error rate", Enabled: true,
		Metric: "errorRate", Operator: ">", Threshold: 0.5,
		Interval: entities.Interval5m,
	}))
	require.NoError(t, f.coord.Initialize(t.Context()))
}

func TestScheduler_RunOnceProcessesDueUnits(t *testing.T) {
	src := &fakeSource{
		agents:  []source.Agent{{ID: "agent-1", Name: "edge"}},
		metrics: map[string]float64{"errorRate": 0.9},
	}
	f := setupScheduler(t, src)
	enableRule(t, f)

	require.NoError(t, f.sched.RunOnce(t.Context()))

	assert.Equal(t, int64(1), src.collects.Load())
	assert.Equal(t, int64(1), f.transport.calls.Load())

	count, err := f.snapRepo.Count(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "collected logs become a snapshot")

	status := f.sched.Status()
	assert.False(t, status.LastRunAt.IsZero())
	assert.Empty(t, status.LastError)
}

func TestScheduler_RunOnceSkipsUnitsNotDue(t *testing.T) {
	src := &fakeSource{
		agents:  []source.Agent{{ID: "agent-1"}},
		metrics: map[string]float64{"errorRate": 0.1},
	}
	f := setupScheduler(t, src)
	enableRule(t, f)

	require.NoError(t, f.sched.RunOnce(t.Context()))
	require.NoError(t, f.sched.RunOnce(t.Context()))

	assert.Equal(t, int64(1), src.collects.Load(),
		"the second cycle runs before the interval elapsed, so the unit is not due")
}

func TestScheduler_WarmLastEvaluatedSuppressesReprocessing(t *testing.T) {
	src := &fakeSource{
		agents:  []source.Agent{{ID: "agent-1"}},
		metrics: map[string]float64{"errorRate": 0.1},
	}
	f := setupScheduler(t, src)
	enableRule(t, f)

	f.sched.WarmLastEvaluated(map[string]map[entities.Interval]time.Time{
		"agent-1": {entities.Interval5m: time.Now()},
	})
	require.NoError(t, f.sched.RunOnce(t.Context()))

	assert.Zero(t, src.collects.Load(), "a freshly evaluated window is not re-fetched")
}

func TestScheduler_RunOnceRejectsWhenBusy(t *testing.T) {
	src := &fakeSource{
		agents:  []source.Agent{{ID: "agent-1"}},
		blockCh: make(chan struct{}),
	}
	f := setupScheduler(t, src)
	require.NoError(t, f.coord.Initialize(t.Context()))

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- f.sched.RunOnce(context.Background())
	}()

	// Wait for the first cycle to take the in-flight slot.
	require.Eventually(t, func() bool {
		return errors.Is(f.sched.RunOnce(t.Context()), ErrCycleInFlight)
	}, time.Second, 5*time.Millisecond)

	close(src.blockCh)
	require.NoError(t, <-firstDone)

	// Slot released: a new manual run is accepted again.
	require.NoError(t, f.sched.RunOnce(t.Context()))
}

func TestScheduler_RunOnceReportsAgentEnumerationFailure(t *testing.T) {
	src := &fakeSource{agentsErr: errors.New("source offline")}
	f := setupScheduler(t, src)
	require.NoError(t, f.coord.Initialize(t.Context()))

	err := f.sched.RunOnce(t.Context())
	require.Error(t, err)
	assert.Contains(t, f.sched.Status().LastError, "source offline")
}

func TestScheduler_StartIsIdempotent(t *testing.T) {
	src := &fakeSource{agents: []source.Agent{}}
	f := setupScheduler(t, src)
	require.NoError(t, f.coord.Initialize(t.Context()))

	f.sched.Start()
	f.sched.Start() // second start is ignored
	assert.True(t, f.sched.Status().IsRunning)

	f.sched.Stop()
	f.sched.Stop()
	assert.False(t, f.sched.Status().IsRunning)
}
