// Package source abstracts the external access-log store the pipeline
// reads from. Its on-disk schema is owned by the log collector; this
// package only defines the read interface and one SQLite adapter.
package source

import (
	"context"

	"github.com/proxypulse/proxypulse/internal/snapshot"
)

// Agent is one monitored upstream producing logs and metrics.
type Agent struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Batch is one collection result for an agent over a window. Logs may be
// nil when the source has metrics but no raw log access; snapshotting is
// then skipped while alert evaluation proceeds on Metrics alone.
type Batch struct {
	Metrics map[string]float64
	Logs    []snapshot.LogEntry
}

// Source yields per-agent metrics and raw log batches. Failures are
// transient: the scheduler retries at the next tick, never in-cycle.
// Implementations must honor ctx cancellation; callers apply a bounded
// timeout.
type Source interface {
	// Agents enumerates all known agents.
	Agents(ctx context.Context) ([]Agent, error)
	// Collect returns current metrics and, when available, the raw logs
	// for agentID within the window.
	Collect(ctx context.Context, agentID string, window snapshot.Window) (*Batch, error)
}
