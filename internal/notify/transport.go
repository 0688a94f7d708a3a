// Package notify delivers fired alerts to external targets. The core
// treats delivery as opaque: any non-success outcome is recorded as a
// failed attempt, never raised back to the evaluation cycle.
package notify

import (
	"context"
	"fmt"

	"github.com/proxypulse/proxypulse/internal/datastore/entities"
)

// Delivery is the outcome of one delivery attempt. Failure detail is
// captured for the notification ledger.
type Delivery struct {
	Success bool
	Detail  string
}

// Alert carries what a transport needs to render a notification.
type Alert struct {
	Rule      *entities.AlertRule
	AgentID   string
	AgentName string
	Value     float64
}

// Transport sends one alert. Implementations must honor ctx for the
// bounded delivery timeout and must not panic; the engine records
// whatever Delivery they return.
type Transport interface {
	Deliver(ctx context.Context, alert Alert) Delivery
}

// Message renders the standard alert text used by transports.
func Message(alert Alert) string {
	name := alert.AgentName
	if name == "" {
		name = alert.AgentID
	}
	return fmt.Sprintf("[%s] %s: %s %s %g (current %g, interval %s)",
		name, alert.Rule.Name, alert.Rule.Metric, alert.Rule.Operator,
		alert.Rule.Threshold, alert.Value, alert.Rule.Interval)
}
