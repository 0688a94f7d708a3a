// Package archive implements the retention/archival policy: snapshots
// (and ledger records) age out after the configured retention period.
package archive

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/proxypulse/proxypulse/internal/datastore/repository"
	"github.com/proxypulse/proxypulse/internal/logger"
)

const (
	// sweepTimeout is the context deadline for one full sweep.
	sweepTimeout = 30 * time.Second
	// cacheKeyRetained caches the retained-snapshot count between sweeps.
	cacheKeyRetained = "retained_snapshots"
	// summaryTTL bounds staleness of the cached summary if sweeps stall.
	summaryTTL = 15 * time.Minute
)

// Policy owns last-activity bookkeeping and the periodic retention sweep.
// The sweep runs on its own cadence, independent of the alert-evaluation
// tick, and never blocks it.
type Policy struct {
	snapRepo   repository.SnapshotRepository
	notifRepo  repository.NotificationRepository
	configRepo repository.ConfigRepository
	log        logger.Logger

	// summary caches cheap aggregate reads (retained counts) for the
	// status endpoints; refreshed after every sweep.
	summary *gocache.Cache

	mu           sync.Mutex
	lastActivity map[string]time.Time
	stopCh       chan struct{}

	now func() time.Time
}

// NewPolicy creates an archival policy over the given repositories.
func NewPolicy(
	snapRepo repository.SnapshotRepository,
	notifRepo repository.NotificationRepository,
	configRepo repository.ConfigRepository,
	log logger.Logger,
) *Policy {
	return &Policy{
		snapRepo:     snapRepo,
		notifRepo:    notifRepo,
		configRepo:   configRepo,
		log:          log,
		summary:      gocache.New(summaryTTL, 2*summaryTTL),
		lastActivity: make(map[string]time.Time),
		now:          time.Now,
	}
}

// Touch records that the agent was processed now. The retention sweep
// and status endpoints read this bookkeeping.
func (p *Policy) Touch(agentID string) {
	p.mu.Lock()
	p.lastActivity[agentID] = p.now()
	p.mu.Unlock()
}

// LastActivity returns the agent's last processing time, if any.
func (p *Policy) LastActivity(agentID string) (time.Time, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.lastActivity[agentID]
	return t, ok
}

// Start launches the sweep goroutine. The cadence is re-read from the
// historical config after every sweep, so an archive_interval change
// takes effect on the next cycle, never mid-sweep. Calling Start twice
// restarts the goroutine.
func (p *Policy) Start() {
	p.stop()
	p.mu.Lock()
	p.stopCh = make(chan struct{})
	stopCh := p.stopCh
	p.mu.Unlock()

	go func() {
		for {
			interval := p.currentInterval()
			timer := time.NewTimer(interval)
			select {
			case <-timer.C:
				if _, err := p.Sweep(context.Background()); err != nil {
					p.log.Error("retention sweep failed", logger.Error(err))
				}
			case <-stopCh:
				timer.Stop()
				return
			}
		}
	}()
}

// stop closes the current stop channel under the mutex so Start and Stop
// cannot double-close when they race.
func (p *Policy) stop() {
	p.mu.Lock()
	ch := p.stopCh
	p.stopCh = nil
	p.mu.Unlock()
	if ch != nil {
		close(ch)
	}
}

// Stop shuts down the sweep goroutine. Safe to call multiple times.
func (p *Policy) Stop() {
	p.stop()
}

func (p *Policy) currentInterval() time.Duration {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()
	config, err := p.configRepo.Get(ctx)
	if err != nil {
		p.log.Error("failed to read archival config, keeping default cadence", logger.Error(err))
		return time.Hour
	}
	return config.ArchiveInterval
}

// Sweep deletes snapshots and ledger records older than the configured
// retention and refreshes the summary cache. No partial-sweep state is
// kept: an interrupted sweep is simply redone by the next one, so
// running it twice with no new snapshots retains the same set.
func (p *Policy) Sweep(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	config, err := p.configRepo.Get(ctx)
	if err != nil {
		return 0, err
	}
	cutoff := p.now().AddDate(0, 0, -config.RetentionDays)

	deletedSnapshots, err := p.snapRepo.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	deletedRecords, err := p.notifRepo.DeleteBefore(ctx, cutoff)
	if err != nil {
		return deletedSnapshots, err
	}

	p.refreshSummary(ctx)

	if deletedSnapshots > 0 || deletedRecords > 0 {
		p.log.Info("retention sweep completed",
			logger.Int64("snapshots_deleted", deletedSnapshots),
			logger.Int64("records_deleted", deletedRecords),
			logger.Int("retention_days", config.RetentionDays))
	}
	return deletedSnapshots, nil
}

func (p *Policy) refreshSummary(ctx context.Context) {
	count, err := p.snapRepo.Count(ctx)
	if err != nil {
		p.log.Warn("failed to refresh archival summary", logger.Error(err))
		return
	}
	p.summary.Set(cacheKeyRetained, count, gocache.DefaultExpiration)
}

// RetainedSnapshots returns the retained-snapshot count, serving the
// cached value from the last sweep when fresh.
func (p *Policy) RetainedSnapshots(ctx context.Context) (int64, error) {
	if v, ok := p.summary.Get(cacheKeyRetained); ok {
		return v.(int64), nil
	}
	count, err := p.snapRepo.Count(ctx)
	if err != nil {
		return 0, err
	}
	p.summary.Set(cacheKeyRetained, count, gocache.DefaultExpiration)
	return count, nil
}
