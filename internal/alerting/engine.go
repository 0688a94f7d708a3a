// Package alerting evaluates configured alert rules against derived
// metrics and records every firing in the notification ledger.
package alerting

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/proxypulse/proxypulse/internal/datastore/entities"
	"github.com/proxypulse/proxypulse/internal/datastore/repository"
	"github.com/proxypulse/proxypulse/internal/logger"
	"github.com/proxypulse/proxypulse/internal/notify"
)

const (
	// appendTimeout is the context deadline for persisting a ledger record.
	appendTimeout = 3 * time.Second
	// defaultDeliveryTimeout bounds a delivery attempt when no explicit
	// timeout is configured.
	defaultDeliveryTimeout = 10 * time.Second
)

// Engine evaluates metrics against the cached set of enabled rules.
type Engine struct {
	ruleRepo  repository.AlertRuleRepository
	notifRepo repository.NotificationRepository
	transport notify.Transport
	log       logger.Logger

	deliveryTimeout time.Duration
	now             func() time.Time

	// Cached rules (refreshed on startup and after rule modifications)
	rules   []entities.AlertRule
	rulesMu sync.RWMutex

	evaluated atomic.Int64
	fired     atomic.Int64
}

// NewEngine creates an alert engine. deliveryTimeout <= 0 falls back to
// the default.
func NewEngine(
	ruleRepo repository.AlertRuleRepository,
	notifRepo repository.NotificationRepository,
	transport notify.Transport,
	deliveryTimeout time.Duration,
	log logger.Logger,
) *Engine {
	if deliveryTimeout <= 0 {
		deliveryTimeout = defaultDeliveryTimeout
	}
	return &Engine{
		ruleRepo:        ruleRepo,
		notifRepo:       notifRepo,
		transport:       transport,
		deliveryTimeout: deliveryTimeout,
		log:             log,
		now:             time.Now,
	}
}

// RefreshRules reloads enabled rules from the store. Call on startup and
// whenever rules are modified via the API.
func (e *Engine) RefreshRules(ctx context.Context) error {
	rules, err := e.ruleRepo.GetEnabledRules(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh alert rules: %w", err)
	}
	e.rulesMu.Lock()
	e.rules = rules
	e.rulesMu.Unlock()
	return nil
}

// ActiveIntervals returns the interval buckets that have at least one
// enabled rule applying to the agent. The scheduler uses this to decide
// which (agent, interval) pairs are worth a cycle.
func (e *Engine) ActiveIntervals(agentID string) []entities.Interval {
	e.rulesMu.RLock()
	defer e.rulesMu.RUnlock()

	seen := make(map[entities.Interval]struct{})
	var out []entities.Interval
	for i := range e.rules {
		rule := &e.rules[i]
		if rule.AgentID != "" && rule.AgentID != agentID {
			continue
		}
		if _, ok := seen[rule.Interval]; ok {
			continue
		}
		seen[rule.Interval] = struct{}{}
		out = append(out, rule.Interval)
	}
	return out
}

// Evaluate checks every enabled rule for the (agent, interval) pair
// against the current metrics. Rules are independent: a failure in one
// is logged and does not prevent evaluation of the others. Nothing is
// persisted for rules that do not fire.
func (e *Engine) Evaluate(ctx context.Context, agentID, agentName string, metrics map[string]float64, interval entities.Interval) {
	e.rulesMu.RLock()
	rules := make([]entities.AlertRule, len(e.rules))
	copy(rules, e.rules)
	e.rulesMu.RUnlock()

	for i := range rules {
		rule := &rules[i]
		if rule.Interval != interval {
			continue
		}
		if rule.AgentID != "" && rule.AgentID != agentID {
			continue
		}
		e.evaluated.Add(1)

		value, ok := metrics[rule.Metric]
		if !ok {
			e.log.Debug("metric missing for rule",
				logger.String("metric", rule.Metric),
				logger.Uint64("rule_id", uint64(rule.ID)),
				logger.String("agent", agentID))
			continue
		}
		if !Compare(value, rule.Operator, rule.Threshold) {
			continue
		}

		inCooldown, err := e.isInCooldown(ctx, rule, agentID)
		if err != nil {
			e.log.Error("cooldown check failed",
				logger.Uint64("rule_id", uint64(rule.ID)),
				logger.String("agent", agentID),
				logger.Error(err))
			continue
		}
		if inCooldown {
			continue
		}

		e.fire(ctx, rule, agentID, agentName, value)
	}
}

// isInCooldown derives the rule's re-arm state from the most recent
// ledger record for the (rule, agent) pair. Query-based rather than
// in-memory so cooldowns survive restarts.
func (e *Engine) isInCooldown(ctx context.Context, rule *entities.AlertRule, agentID string) (bool, error) {
	latest, err := e.notifRepo.LatestFor(ctx, rule.ID, agentID)
	if err != nil {
		return false, err
	}
	if latest == nil {
		return false, nil
	}
	return e.now().Sub(latest.CreatedAt) < rule.Cooldown(), nil
}

// fire attempts delivery and appends the outcome to the ledger. Delivery
// failure is recorded, never propagated: alerting is best-effort and must
// not abort the evaluation cycle.
func (e *Engine) fire(ctx context.Context, rule *entities.AlertRule, agentID, agentName string, value float64) {
	e.fired.Add(1)

	deliverCtx, cancel := context.WithTimeout(ctx, e.deliveryTimeout)
	delivery := e.transport.Deliver(deliverCtx, notify.Alert{
		Rule:      rule,
		AgentID:   agentID,
		AgentName: agentName,
		Value:     value,
	})
	cancel()

	status := entities.NotificationStatusSuccess
	if !delivery.Success {
		status = entities.NotificationStatusFailed
	}
	record := &entities.NotificationRecord{
		Status:   status,
		RuleID:   rule.ID,
		RuleName: rule.Name,
		AgentID:  agentID,
		Detail:   delivery.Detail,
	}

	appendCtx, cancel := context.WithTimeout(context.Background(), appendTimeout)
	defer cancel()
	if err := e.notifRepo.Append(appendCtx, record); err != nil {
		e.log.Error("failed to append notification record",
			logger.Uint64("rule_id", uint64(rule.ID)),
			logger.String("agent", agentID),
			logger.Error(err))
		return
	}

	e.log.Info("alert rule fired",
		logger.Uint64("rule_id", uint64(rule.ID)),
		logger.String("rule", rule.Name),
		logger.String("agent", agentID),
		logger.Float64("value", value),
		logger.String("status", status))
}

// Counters returns totals since engine creation: rules evaluated and
// rules fired.
func (e *Engine) Counters() (evaluated, fired int64) {
	return e.evaluated.Load(), e.fired.Load()
}
