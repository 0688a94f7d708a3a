package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/proxypulse/proxypulse/internal/alerting"
	"github.com/proxypulse/proxypulse/internal/datastore/entities"
	"github.com/proxypulse/proxypulse/internal/datastore/repository"
	"github.com/proxypulse/proxypulse/internal/logger"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// GetAlertStats returns the aggregate read model over recent history:
// totals, last-24h count, success/failed split, and a 5-record preview.
func (c *Controller) GetAlertStats(ctx echo.Context) error {
	stats, err := c.notifRepo.Stats(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err, "Failed to aggregate alert statistics", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, stats)
}

// ListAlertHistory returns recent notification records, most recent
// first, bounded by the limit parameter.
func (c *Controller) ListAlertHistory(ctx echo.Context) error {
	limit := defaultHistoryLimit
	if limitParam := ctx.QueryParam("limit"); limitParam != "" {
		v, err := strconv.Atoi(limitParam)
		if err != nil || v < 1 {
			return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid limit"})
		}
		if v > maxHistoryLimit {
			v = maxHistoryLimit
		}
		limit = v
	}

	records, err := c.notifRepo.Recent(ctx.Request().Context(), limit)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list alert history", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"history": records,
		"count":   len(records),
		"limit":   limit,
	})
}

// ListAlertRules returns all alert rules, optionally filtered.
func (c *Controller) ListAlertRules(ctx echo.Context) error {
	filter := repository.AlertRuleFilter{
		AgentID:  ctx.QueryParam("agent_id"),
		Interval: entities.Interval(ctx.QueryParam("interval")),
	}
	if enabledParam := ctx.QueryParam("enabled"); enabledParam != "" {
		v := enabledParam == "true"
		filter.Enabled = &v
	}

	rules, err := c.ruleRepo.ListRules(ctx.Request().Context(), filter)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list alert rules", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"rules": rules,
		"count": len(rules),
	})
}

// GetAlertRule returns one rule by ID.
func (c *Controller) GetAlertRule(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid rule ID"})
	}

	rule, err := c.ruleRepo.GetRule(ctx.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrAlertRuleNotFound) {
			return ctx.JSON(http.StatusNotFound, map[string]string{"error": "Alert rule not found"})
		}
		return c.HandleError(ctx, err, "Failed to get alert rule", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, rule)
}

// validateRule rejects malformed rules at the boundary so they never
// reach the engine.
func validateRule(rule *entities.AlertRule) string {
	switch {
	case rule.Name == "":
		return "Rule name is required"
	case rule.Metric == "":
		return "Target metric is required"
	case !alerting.ValidOperator(rule.Operator):
		return "Unknown comparison operator"
	case !rule.Interval.Valid():
		return "Unknown interval bucket"
	case rule.CooldownSec < 0:
		return "Cooldown must not be negative"
	default:
		return ""
	}
}

// CreateAlertRule creates a new alert rule.
func (c *Controller) CreateAlertRule(ctx echo.Context) error {
	var rule entities.AlertRule
	if err := ctx.Bind(&rule); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if msg := validateRule(&rule); msg != "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": msg})
	}

	count, err := c.ruleRepo.CountRulesByName(ctx.Request().Context(), rule.Name)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to create alert rule", http.StatusInternalServerError)
	}
	if count > 0 {
		return ctx.JSON(http.StatusConflict, map[string]string{"error": "A rule with this name already exists"})
	}

	if err := c.ruleRepo.CreateRule(ctx.Request().Context(), &rule); err != nil {
		return c.HandleError(ctx, err, "Failed to create alert rule", http.StatusInternalServerError)
	}

	c.refreshEngine(ctx)
	c.log.Info("alert rule created",
		logger.String("name", rule.Name),
		logger.Uint64("id", uint64(rule.ID)))
	return ctx.JSON(http.StatusCreated, rule)
}

// UpdateAlertRule replaces an existing rule.
func (c *Controller) UpdateAlertRule(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid rule ID"})
	}

	var rule entities.AlertRule
	if err := ctx.Bind(&rule); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if msg := validateRule(&rule); msg != "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": msg})
	}

	rule.ID = id
	if err := c.ruleRepo.UpdateRule(ctx.Request().Context(), &rule); err != nil {
		if errors.Is(err, repository.ErrAlertRuleNotFound) {
			return ctx.JSON(http.StatusNotFound, map[string]string{"error": "Alert rule not found"})
		}
		return c.HandleError(ctx, err, "Failed to update alert rule", http.StatusInternalServerError)
	}

	c.refreshEngine(ctx)
	return ctx.JSON(http.StatusOK, rule)
}

// ToggleAlertRule enables or disables a rule.
func (c *Controller) ToggleAlertRule(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid rule ID"})
	}

	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := ctx.Bind(&body); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	if err := c.ruleRepo.ToggleRule(ctx.Request().Context(), id, body.Enabled); err != nil {
		if errors.Is(err, repository.ErrAlertRuleNotFound) {
			return ctx.JSON(http.StatusNotFound, map[string]string{"error": "Alert rule not found"})
		}
		return c.HandleError(ctx, err, "Failed to toggle alert rule", http.StatusInternalServerError)
	}

	c.refreshEngine(ctx)
	return ctx.JSON(http.StatusOK, map[string]any{"id": id, "enabled": body.Enabled})
}

// DeleteAlertRule deletes a rule.
func (c *Controller) DeleteAlertRule(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid rule ID"})
	}

	if err := c.ruleRepo.DeleteRule(ctx.Request().Context(), id); err != nil {
		if errors.Is(err, repository.ErrAlertRuleNotFound) {
			return ctx.JSON(http.StatusNotFound, map[string]string{"error": "Alert rule not found"})
		}
		return c.HandleError(ctx, err, "Failed to delete alert rule", http.StatusInternalServerError)
	}

	c.refreshEngine(ctx)
	return ctx.NoContent(http.StatusNoContent)
}

// refreshEngine reloads the engine's rule cache after a modification.
func (c *Controller) refreshEngine(ctx echo.Context) {
	if err := c.coord.RefreshRules(ctx.Request().Context()); err != nil {
		c.log.Error("failed to refresh alert rules", logger.Error(err))
	}
}

// parseUintParam parses a uint route parameter.
func parseUintParam(ctx echo.Context, name string) (uint, error) {
	v, err := strconv.ParseUint(ctx.Param(name), 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(v), nil
}
