package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/proxypulse/proxypulse/internal/datastore/entities"
)

// configRowID pins the singleton row.
const configRowID = 1

type configRepository struct {
	db *gorm.DB
}

// NewConfigRepository creates a ConfigRepository backed by GORM.
func NewConfigRepository(db *gorm.DB) ConfigRepository {
	return &configRepository{db: db}
}

func (r *configRepository) Get(ctx context.Context) (*entities.HistoricalConfig, error) {
	config := entities.HistoricalConfig{
		ID:              configRowID,
		RetentionDays:   entities.DefaultRetentionDays,
		ArchiveInterval: entities.DefaultArchiveInterval,
	}
	err := r.db.WithContext(ctx).
		Where(entities.HistoricalConfig{ID: configRowID}).
		Attrs(config).
		FirstOrCreate(&config).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load historical config: %w", err)
	}
	return &config, nil
}

func (r *configRepository) Update(ctx context.Context, patch ConfigPatch) (*entities.HistoricalConfig, error) {
	if patch.RetentionDays != nil && *patch.RetentionDays < 1 {
		return nil, fmt.Errorf("%w: retention_days must be at least 1, got %d", ErrInvalidConfig, *patch.RetentionDays)
	}
	if patch.ArchiveInterval != nil && *patch.ArchiveInterval < time.Minute {
		return nil, fmt.Errorf("%w: archive_interval must be at least 1m, got %s", ErrInvalidConfig, *patch.ArchiveInterval)
	}

	config, err := r.Get(ctx)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if patch.RetentionDays != nil {
		updates["retention_days"] = *patch.RetentionDays
	}
	if patch.ArchiveInterval != nil {
		updates["archive_interval"] = *patch.ArchiveInterval
	}
	if len(updates) == 0 {
		return config, nil
	}

	if err := r.db.WithContext(ctx).Model(config).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update historical config: %w", err)
	}
	return r.Get(ctx)
}
