package entities

import "time"

// AlertRule defines a threshold check against one derived metric within
// one interval bucket. Rules are configuration: created and edited via
// the API, read-only to the engine during evaluation.
type AlertRule struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	Description string    `gorm:"size:1000;default:''" json:"description"`
	Enabled     bool      `gorm:"not null;index" json:"enabled"`
	AgentID     string    `gorm:"size:100;default:'';index" json:"agent_id"` // empty matches every agent
	Metric      string    `gorm:"size:100;not null" json:"metric"`
	Operator    string    `gorm:"size:5;not null" json:"operator"`
	Threshold   float64   `gorm:"not null" json:"threshold"`
	Interval    Interval  `gorm:"size:10;not null;index" json:"interval"`
	CooldownSec int       `gorm:"not null;default:0" json:"cooldown_sec"` // 0 = one interval duration
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for GORM.
func (AlertRule) TableName() string {
	return "alert_rules"
}

// Cooldown returns the effective re-arm window for the rule.
func (r *AlertRule) Cooldown() time.Duration {
	if r.CooldownSec > 0 {
		return time.Duration(r.CooldownSec) * time.Second
	}
	return r.Interval.Duration()
}
