package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/proxypulse/proxypulse/internal/datastore/entities"
)

type snapshotRepository struct {
	db *gorm.DB
}

// NewSnapshotRepository creates a SnapshotRepository backed by GORM.
func NewSnapshotRepository(db *gorm.DB) SnapshotRepository {
	return &snapshotRepository{db: db}
}

func (r *snapshotRepository) Save(ctx context.Context, snapshot *entities.MetricSnapshot) error {
	if err := r.db.WithContext(ctx).Create(snapshot).Error; err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

func (r *snapshotRepository) Get(ctx context.Context, id string) (*entities.MetricSnapshot, error) {
	var snapshot entities.MetricSnapshot
	if err := r.db.WithContext(ctx).First(&snapshot, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to get snapshot %s: %w", id, err)
	}
	return &snapshot, nil
}

func (r *snapshotRepository) List(ctx context.Context, filter SnapshotFilter) ([]entities.MetricSnapshot, error) {
	var snapshots []entities.MetricSnapshot
	query := r.db.WithContext(ctx).Order("window_end DESC")

	if filter.AgentID != "" {
		query = query.Where("agent_id = ?", filter.AgentID)
	}
	if filter.Interval != "" {
		query = query.Where("interval = ?", filter.Interval)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	if err := query.Find(&snapshots).Error; err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	return snapshots, nil
}

func (r *snapshotRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&entities.MetricSnapshot{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count snapshots: %w", err)
	}
	return count, nil
}

func (r *snapshotRepository) LatestWindowEnd(ctx context.Context) (map[string]map[entities.Interval]time.Time, error) {
	type row struct {
		AgentID  string
		Interval entities.Interval
		Latest   time.Time
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Model(&entities.MetricSnapshot{}).
		Select("agent_id, interval, MAX(window_end) AS latest").
		Group("agent_id, interval").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query latest windows: %w", err)
	}

	out := make(map[string]map[entities.Interval]time.Time, len(rows))
	for i := range rows {
		byInterval := out[rows[i].AgentID]
		if byInterval == nil {
			byInterval = make(map[entities.Interval]time.Time)
			out[rows[i].AgentID] = byInterval
		}
		byInterval[rows[i].Interval] = rows[i].Latest
	}
	return out, nil
}

func (r *snapshotRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("window_end < ?", cutoff).Delete(&entities.MetricSnapshot{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete snapshots before %v: %w", cutoff, result.Error)
	}
	return result.RowsAffected, nil
}
