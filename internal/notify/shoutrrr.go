package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/nicholas-fedor/shoutrrr"
	"github.com/nicholas-fedor/shoutrrr/pkg/router"
	"github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/proxypulse/proxypulse/internal/logger"
)

// ShoutrrrTransport delivers alerts through shoutrrr service URLs
// (webhook, ntfy, email, and the rest of its providers).
type ShoutrrrTransport struct {
	sender *router.ServiceRouter
	log    logger.Logger
}

// NewShoutrrrTransport builds a transport from one or more shoutrrr URLs.
func NewShoutrrrTransport(urls []string, log logger.Logger) (*ShoutrrrTransport, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("at least one notification URL is required")
	}
	sender, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		return nil, fmt.Errorf("failed to create notification sender: %w", err)
	}
	return &ShoutrrrTransport{sender: sender, log: log}, nil
}

// Deliver sends the alert to every configured URL. The send runs in a
// goroutine so the ctx deadline bounds the attempt even when a provider
// blocks; a timed-out send is reported as a failure and the stray
// goroutine is left to finish on its own.
func (t *ShoutrrrTransport) Deliver(ctx context.Context, alert Alert) Delivery {
	message := Message(alert)
	params := &types.Params{"title": "proxypulse alert: " + alert.Rule.Name}

	done := make(chan Delivery, 1)
	go func() {
		errs := t.sender.Send(message, params)
		var failures []string
		for _, err := range errs {
			if err != nil {
				failures = append(failures, err.Error())
			}
		}
		if len(failures) > 0 {
			done <- Delivery{Success: false, Detail: strings.Join(failures, "; ")}
			return
		}
		done <- Delivery{Success: true, Detail: message}
	}()

	select {
	case d := <-done:
		return d
	case <-ctx.Done():
		t.log.Warn("notification delivery timed out",
			logger.String("rule", alert.Rule.Name),
			logger.String("agent", alert.AgentID))
		return Delivery{Success: false, Detail: fmt.Sprintf("delivery timed out: %v", ctx.Err())}
	}
}
