package entities

import "time"

// Notification statuses.
const (
	NotificationStatusSuccess = "success"
	NotificationStatusFailed  = "failed"
)

// NotificationRecord is one append-only ledger entry per alert delivery
// attempt. Records are never updated; corrections are new records. The
// ledger doubles as the alert engine's cooldown memory: the most recent
// record for a (rule, agent) pair determines when the rule re-arms.
type NotificationRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	Status    string    `gorm:"size:10;not null" json:"status"`
	RuleID    uint      `gorm:"not null;index:idx_notifications_rule_agent,priority:1" json:"rule_id"`
	RuleName  string    `gorm:"size:255;default:''" json:"rule_name"`
	AgentID   string    `gorm:"size:100;not null;index:idx_notifications_rule_agent,priority:2" json:"agent_id"`
	Detail    string    `gorm:"type:text;default:''" json:"detail"`
}

// TableName returns the table name for GORM.
func (NotificationRecord) TableName() string {
	return "notification_records"
}
