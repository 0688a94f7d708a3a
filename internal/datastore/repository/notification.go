package repository

import (
	"context"
	"time"

	"github.com/proxypulse/proxypulse/internal/datastore/entities"
)

// statsPreviewSize is how many recent records the stats read model carries.
const statsPreviewSize = 5

// NotificationRepository is the append-only ledger of delivery attempts.
// There is deliberately no update path: corrections are new records.
type NotificationRepository interface {
	// Append writes one record to the ledger.
	Append(ctx context.Context, record *entities.NotificationRecord) error
	// Recent returns up to limit records, most recent first.
	Recent(ctx context.Context, limit int) ([]entities.NotificationRecord, error)
	// LatestFor returns the most recent record for a (rule, agent) pair,
	// or nil if the pair has never fired. The engine derives cooldown
	// state from it.
	LatestFor(ctx context.Context, ruleID uint, agentID string) (*entities.NotificationRecord, error)
	// Stats aggregates the ledger into the alert statistics read model.
	Stats(ctx context.Context) (*NotificationStats, error)
	// DeleteBefore prunes records older than cutoff.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// NotificationStats is the aggregate read model over recent history.
type NotificationStats struct {
	Total   int64                          `json:"total"`
	Last24h int64                          `json:"last_24h"`
	Success int64                          `json:"success"`
	Failed  int64                          `json:"failed"`
	Recent  []entities.NotificationRecord `json:"recent"`
}
