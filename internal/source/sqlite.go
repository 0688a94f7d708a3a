package source

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/proxypulse/proxypulse/internal/snapshot"
)

// accessLogRow mirrors the collector's access_logs table. The schema is
// externally owned; only the columns read here are declared.
type accessLogRow struct {
	AgentID    string    `gorm:"column:agent_id"`
	AgentName  string    `gorm:"column:agent_name"`
	Timestamp  time.Time `gorm:"column:ts"`
	Method     string    `gorm:"column:method"`
	Path       string    `gorm:"column:path"`
	Status     int       `gorm:"column:status"`
	DurationMs float64   `gorm:"column:duration_ms"`
	Bytes      int64     `gorm:"column:bytes"`
	RemoteAddr string    `gorm:"column:remote_addr"`
}

func (accessLogRow) TableName() string {
	return "access_logs"
}

// SQLiteSource reads agents and log batches from a collector-owned
// SQLite database.
type SQLiteSource struct {
	db *gorm.DB
}

// NewSQLiteSource opens the access-log database at dsn read-only.
func NewSQLiteSource(dsn string) (*SQLiteSource, error) {
	if dsn == "" {
		return nil, fmt.Errorf("source DSN is required")
	}
	db, err := gorm.Open(sqlite.Open(dsn+"?mode=ro"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open log source %s: %w", dsn, err)
	}
	return &SQLiteSource{db: db}, nil
}

// Agents returns the distinct agents present in the log store.
func (s *SQLiteSource) Agents(ctx context.Context) ([]Agent, error) {
	var agents []Agent
	err := s.db.WithContext(ctx).
		Model(&accessLogRow{}).
		Select("agent_id AS id, MAX(agent_name) AS name").
		Group("agent_id").
		Order("agent_id ASC").
		Scan(&agents).Error
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate agents: %w", err)
	}
	return agents, nil
}

// Collect fetches the agent's logs inside the window and derives current
// metrics from them with the snapshot aggregation.
func (s *SQLiteSource) Collect(ctx context.Context, agentID string, window snapshot.Window) (*Batch, error) {
	var rows []accessLogRow
	err := s.db.WithContext(ctx).
		Where("agent_id = ? AND ts >= ? AND ts < ?", agentID, window.Start, window.End).
		Order("ts ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch logs for agent %s: %w", agentID, err)
	}

	logs := make([]snapshot.LogEntry, len(rows))
	for i := range rows {
		logs[i] = snapshot.LogEntry{
			Timestamp:  rows[i].Timestamp,
			Method:     rows[i].Method,
			Path:       rows[i].Path,
			Status:     rows[i].Status,
			DurationMs: rows[i].DurationMs,
			Bytes:      rows[i].Bytes,
			RemoteAddr: rows[i].RemoteAddr,
		}
	}

	metrics, _ := snapshot.Aggregate(window, logs)
	return &Batch{Metrics: metrics, Logs: logs}, nil
}

// Close releases the read connection pool.
func (s *SQLiteSource) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.Close()
}
