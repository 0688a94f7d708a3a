package notify

import (
	"context"

	"github.com/proxypulse/proxypulse/internal/logger"
)

// LogTransport writes alerts to the process log. Used when no
// notification URLs are configured, so fired rules are still recorded in
// the ledger with a successful outcome.
type LogTransport struct {
	log logger.Logger
}

// NewLogTransport creates a LogTransport.
func NewLogTransport(log logger.Logger) *LogTransport {
	return &LogTransport{log: log}
}

// Deliver logs the alert and always succeeds.
func (t *LogTransport) Deliver(_ context.Context, alert Alert) Delivery {
	message := Message(alert)
	t.log.Warn("alert fired", logger.String("alert", message))
	return Delivery{Success: true, Detail: message}
}
