package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/proxypulse/proxypulse/internal/datastore/entities"
)

type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository creates a NotificationRepository backed by GORM.
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Append(ctx context.Context, record *entities.NotificationRecord) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("failed to append notification record: %w", err)
	}
	return nil
}

func (r *notificationRepository) Recent(ctx context.Context, limit int) ([]entities.NotificationRecord, error) {
	var records []entities.NotificationRecord
	query := r.db.WithContext(ctx).Order("created_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list notification records: %w", err)
	}
	return records, nil
}

func (r *notificationRepository) LatestFor(ctx context.Context, ruleID uint, agentID string) (*entities.NotificationRecord, error) {
	var record entities.NotificationRecord
	err := r.db.WithContext(ctx).
		Where("rule_id = ? AND agent_id = ?", ruleID, agentID).
		Order("created_at DESC, id DESC").
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest notification for rule %d agent %s: %w", ruleID, agentID, err)
	}
	return &record, nil
}

func (r *notificationRepository) Stats(ctx context.Context) (*NotificationStats, error) {
	stats := &NotificationStats{}
	model := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&entities.NotificationRecord{})
	}

	if err := model().Count(&stats.Total).Error; err != nil {
		return nil, fmt.Errorf("failed to count notifications: %w", err)
	}
	since := time.Now().Add(-24 * time.Hour)
	if err := model().Where("created_at >= ?", since).Count(&stats.Last24h).Error; err != nil {
		return nil, fmt.Errorf("failed to count recent notifications: %w", err)
	}
	if err := model().Where("status = ?", entities.NotificationStatusSuccess).Count(&stats.Success).Error; err != nil {
		return nil, fmt.Errorf("failed to count successful notifications: %w", err)
	}
	if err := model().Where("status = ?", entities.NotificationStatusFailed).Count(&stats.Failed).Error; err != nil {
		return nil, fmt.Errorf("failed to count failed notifications: %w", err)
	}

	recent, err := r.Recent(ctx, statsPreviewSize)
	if err != nil {
		return nil, err
	}
	stats.Recent = recent
	return stats, nil
}

func (r *notificationRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&entities.NotificationRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete notification records before %v: %w", cutoff, result.Error)
	}
	return result.RowsAffected, nil
}
