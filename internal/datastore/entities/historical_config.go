package entities

import "time"

// Historical config defaults, applied when the singleton row is first
// created.
const (
	DefaultRetentionDays   = 30
	DefaultArchiveInterval = time.Hour
)

// HistoricalConfig is the single-row retention/archival configuration.
// Loaded at startup, mutable via the control surface, and re-read by the
// archival policy and scheduler on every cycle so changes take effect on
// the next read rather than mid-sweep.
type HistoricalConfig struct {
	ID              uint          `gorm:"primaryKey" json:"-"`
	RetentionDays   int           `gorm:"not null" json:"retention_days"`
	ArchiveInterval time.Duration `gorm:"not null" json:"archive_interval"`
	UpdatedAt       time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for GORM.
func (HistoricalConfig) TableName() string {
	return "historical_config"
}
