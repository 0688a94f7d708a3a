package entities

import "time"

// Interval is a fixed evaluation window size. Snapshots are aggregated
// and alert rules are checked per interval bucket.
type Interval string

const (
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval30m Interval = "30m"
	Interval1h  Interval = "1h"
	Interval6h  Interval = "6h"
	Interval12h Interval = "12h"
	Interval24h Interval = "24h"
)

// AllIntervals returns every supported interval, shortest first.
func AllIntervals() []Interval {
	return []Interval{
		Interval5m, Interval15m, Interval30m,
		Interval1h, Interval6h, Interval12h, Interval24h,
	}
}

// Duration returns the window length implied by the interval.
func (i Interval) Duration() time.Duration {
	switch i {
	case Interval5m:
		return 5 * time.Minute
	case Interval15m:
		return 15 * time.Minute
	case Interval30m:
		return 30 * time.Minute
	case Interval1h:
		return time.Hour
	case Interval6h:
		return 6 * time.Hour
	case Interval12h:
		return 12 * time.Hour
	case Interval24h:
		return 24 * time.Hour
	default:
		return 0
	}
}

// Valid reports whether the interval is one of the supported buckets.
func (i Interval) Valid() bool {
	return i.Duration() > 0
}
