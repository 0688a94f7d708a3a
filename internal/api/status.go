package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/proxypulse/proxypulse/internal/scheduler"
	"github.com/proxypulse/proxypulse/internal/service"
)

// StatusResponse aggregates scheduler and coordinator state.
type StatusResponse struct {
	Scheduler scheduler.Status `json:"scheduler"`
	Services  service.Status   `json:"services"`
	Retained  int64            `json:"retained_snapshots"`
}

// GetStatus reports run state without blocking on in-flight work.
func (c *Controller) GetStatus(ctx echo.Context) error {
	retained, err := c.policy.RetainedSnapshots(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err, "Failed to read archival summary", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, StatusResponse{
		Scheduler: c.sched.Status(),
		Services:  c.coord.Status(),
		Retained:  retained,
	})
}

// TriggerCycle runs one evaluation cycle synchronously. Busy cycles are
// rejected rather than queued; an administratively disabled trigger
// answers 503.
func (c *Controller) TriggerCycle(ctx echo.Context) error {
	if !c.opts.TriggerEnabled {
		return ctx.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Manual trigger is disabled"})
	}

	err := c.sched.RunOnce(ctx.Request().Context())
	switch {
	case errors.Is(err, scheduler.ErrCycleInFlight):
		return ctx.JSON(http.StatusConflict, map[string]string{"error": "A cycle is already in flight"})
	case err != nil:
		return c.HandleError(ctx, err, "Cycle failed", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"status":    "completed",
		"scheduler": c.sched.Status(),
	})
}
