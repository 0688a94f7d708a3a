package entities

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// MetricMap stores derived metric values keyed by metric name. It is
// persisted as a JSON text column.
type MetricMap map[string]float64

// Value implements driver.Valuer for GORM.
func (m MetricMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metric map: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner for GORM.
func (m *MetricMap) Scan(value any) error {
	if value == nil {
		*m = MetricMap{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into MetricMap", value)
	}
	if len(data) == 0 {
		*m = MetricMap{}
		return nil
	}
	if err := json.Unmarshal(data, m); err != nil {
		return fmt.Errorf("failed to unmarshal metric map: %w", err)
	}
	return nil
}

// MetricSnapshot is an immutable aggregate of metrics for one agent over
// one half-open time window [WindowStart, WindowEnd). It is created by the
// snapshot builder on each processed cycle and never mutated afterwards;
// the archival policy reclaims it once it ages past retention.
type MetricSnapshot struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	AgentID     string    `gorm:"size:100;not null;index:idx_snapshots_agent_window,priority:1" json:"agent_id"`
	AgentName   string    `gorm:"size:255;default:''" json:"agent_name"`
	Timestamp   time.Time `gorm:"not null" json:"timestamp"`
	WindowStart time.Time `gorm:"not null;index:idx_snapshots_agent_window,priority:2" json:"window_start"`
	WindowEnd   time.Time `gorm:"not null;index" json:"window_end"`
	Interval    Interval  `gorm:"size:10;not null;index" json:"interval"`
	LogCount    int       `gorm:"not null;default:0" json:"log_count"`
	Metrics     MetricMap `gorm:"type:text" json:"metrics"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for GORM.
func (MetricSnapshot) TableName() string {
	return "metric_snapshots"
}
