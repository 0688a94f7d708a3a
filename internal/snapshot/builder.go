// Package snapshot builds aggregated metric snapshots from raw access
// log batches. The builder is a pure transform with no state: the same
// logs and window always produce the same metrics.
package snapshot

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/proxypulse/proxypulse/internal/datastore/entities"
)

// Derived metric names. These are the keys alert rules target.
const (
	MetricRequestCount  = "requestCount"
	MetricRequestRate   = "requestRate" // requests per second over the window
	MetricErrorCount    = "errorCount"  // 5xx responses
	MetricErrorRate     = "errorRate"   // errorCount / requestCount
	MetricStatus2xx     = "status2xx"
	MetricStatus3xx     = "status3xx"
	MetricStatus4xx     = "status4xx"
	MetricStatus5xx     = "status5xx"
	MetricAvgResponseMs = "avgResponseMs"
	MetricP50ResponseMs = "p50ResponseMs"
	MetricP95ResponseMs = "p95ResponseMs"
	MetricP99ResponseMs = "p99ResponseMs"
	MetricBytesTotal    = "bytesTotal"
)

// LogEntry is one parsed reverse-proxy access log line.
type LogEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	Status     int       `json:"status"`
	DurationMs float64   `json:"duration_ms"`
	Bytes      int64     `json:"bytes"`
	RemoteAddr string    `json:"remote_addr"`
}

// Window is a half-open time interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// WindowEnding returns the window of one interval length ending at end.
func WindowEnding(end time.Time, interval entities.Interval) Window {
	return Window{Start: end.Add(-interval.Duration()), End: end}
}

// Contains reports whether t falls inside the window. The start bound is
// inclusive, the end bound exclusive.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Build aggregates logs falling inside the window into an immutable
// snapshot. Entries outside the window are silently excluded. An empty
// batch yields a snapshot with LogCount 0 and zeroed metrics; no metric
// value is ever NaN.
func Build(agentID, agentName string, interval entities.Interval, window Window, logs []LogEntry) *entities.MetricSnapshot {
	metrics, count := Aggregate(window, logs)
	return &entities.MetricSnapshot{
		ID:          uuid.NewString(),
		AgentID:     agentID,
		AgentName:   agentName,
		Timestamp:   time.Now(),
		WindowStart: window.Start,
		WindowEnd:   window.End,
		Interval:    interval,
		LogCount:    count,
		Metrics:     metrics,
	}
}

// Aggregate computes the derived metric map and the number of in-window
// entries without allocating a snapshot record.
func Aggregate(window Window, logs []LogEntry) (entities.MetricMap, int) {
	var (
		count     int
		bytes     int64
		durations []float64
		durSum    float64
		byClass   [6]int // index = status / 100
	)

	for i := range logs {
		if !window.Contains(logs[i].Timestamp) {
			continue
		}
		count++
		bytes += logs[i].Bytes
		durations = append(durations, logs[i].DurationMs)
		durSum += logs[i].DurationMs
		if class := logs[i].Status / 100; class >= 2 && class <= 5 {
			byClass[class]++
		}
	}

	metrics := entities.MetricMap{
		MetricRequestCount:  float64(count),
		MetricRequestRate:   0,
		MetricErrorCount:    float64(byClass[5]),
		MetricErrorRate:     0,
		MetricStatus2xx:     float64(byClass[2]),
		MetricStatus3xx:     float64(byClass[3]),
		MetricStatus4xx:     float64(byClass[4]),
		MetricStatus5xx:     float64(byClass[5]),
		MetricAvgResponseMs: 0,
		MetricP50ResponseMs: percentile(durations, 0.50),
		MetricP95ResponseMs: percentile(durations, 0.95),
		MetricP99ResponseMs: percentile(durations, 0.99),
		MetricBytesTotal:    float64(bytes),
	}
	if seconds := window.End.Sub(window.Start).Seconds(); seconds > 0 {
		metrics[MetricRequestRate] = float64(count) / seconds
	}
	if count > 0 {
		metrics[MetricErrorRate] = float64(byClass[5]) / float64(count)
		metrics[MetricAvgResponseMs] = durSum / float64(count)
	}

	return metrics, count
}

// percentile returns the p-th percentile (0 < p <= 1) using the
// nearest-rank method. Empty input yields 0, never NaN.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	rank := int(float64(len(sorted))*p+0.5) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}
