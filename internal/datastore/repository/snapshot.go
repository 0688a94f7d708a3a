// Package repository provides data access over the datastore entities.
package repository

import (
	"context"
	"time"

	"github.com/proxypulse/proxypulse/internal/datastore/entities"
)

// SnapshotRepository persists and reclaims metric snapshots.
type SnapshotRepository interface {
	// Save persists a snapshot. The snapshot is immutable once written.
	Save(ctx context.Context, snapshot *entities.MetricSnapshot) error
	// Get returns one snapshot by ID, or ErrSnapshotNotFound.
	Get(ctx context.Context, id string) (*entities.MetricSnapshot, error)
	// List returns snapshots matching the filter, newest window first.
	List(ctx context.Context, filter SnapshotFilter) ([]entities.MetricSnapshot, error)
	// Count returns the number of retained snapshots.
	Count(ctx context.Context) (int64, error)
	// LatestWindowEnd returns the most recent window end per
	// (agent, interval); used to warm the scheduler's due bookkeeping.
	LatestWindowEnd(ctx context.Context) (map[string]map[entities.Interval]time.Time, error)
	// DeleteBefore removes snapshots whose window ended before cutoff.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// SnapshotFilter controls snapshot listing queries.
type SnapshotFilter struct {
	AgentID  string
	Interval entities.Interval
	Limit    int
	Offset   int
}
