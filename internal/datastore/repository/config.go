package repository

import (
	"context"
	"time"

	"github.com/proxypulse/proxypulse/internal/datastore/entities"
)

// ConfigRepository manages the single historical config row. Readers call
// Get on every cycle rather than caching, since the control surface may
// change values between cycles.
type ConfigRepository interface {
	// Get returns the config, creating the default row on first access.
	Get(ctx context.Context) (*entities.HistoricalConfig, error)
	// Update applies a partial update after validation. Nil fields are
	// left unchanged. Returns ErrInvalidConfig for non-positive values.
	Update(ctx context.Context, patch ConfigPatch) (*entities.HistoricalConfig, error)
}

// ConfigPatch is a partial historical config update.
type ConfigPatch struct {
	RetentionDays   *int
	ArchiveInterval *time.Duration
}
