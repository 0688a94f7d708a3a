// Package api exposes the HTTP control surface: status, manual trigger,
// historical config, alert rules, and notification statistics. It is a
// thin boundary that validates, translates to core calls, and maps
// failure classes to HTTP statuses.
package api

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/proxypulse/proxypulse/internal/archive"
	"github.com/proxypulse/proxypulse/internal/datastore/repository"
	"github.com/proxypulse/proxypulse/internal/logger"
	"github.com/proxypulse/proxypulse/internal/scheduler"
	"github.com/proxypulse/proxypulse/internal/service"
)

// tokenHeader is the shared-secret header guarding mutating endpoints.
const tokenHeader = "X-Api-Token"

// Options configure the controller.
type Options struct {
	// Token is the shared secret for protected endpoints. Empty disables
	// the check.
	Token string
	// TriggerEnabled gates the manual trigger endpoint; when false the
	// endpoint answers 503.
	TriggerEnabled bool
}

// Controller wires the control surface routes.
type Controller struct {
	echo   *echo.Echo
	sched  *scheduler.Scheduler
	coord  *service.Coordinator
	policy *archive.Policy

	notifRepo  repository.NotificationRepository
	ruleRepo   repository.AlertRuleRepository
	configRepo repository.ConfigRepository

	opts Options
	log  logger.Logger
}

// New creates the controller and registers all routes.
func New(
	sched *scheduler.Scheduler,
	coord *service.Coordinator,
	policy *archive.Policy,
	notifRepo repository.NotificationRepository,
	ruleRepo repository.AlertRuleRepository,
	configRepo repository.ConfigRepository,
	opts Options,
	log logger.Logger,
) *Controller {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	c := &Controller{
		echo:       e,
		sched:      sched,
		coord:      coord,
		policy:     policy,
		notifRepo:  notifRepo,
		ruleRepo:   ruleRepo,
		configRepo: configRepo,
		opts:       opts,
		log:        log,
	}
	c.initRoutes()
	return c
}

func (c *Controller) initRoutes() {
	g := c.echo.Group("/api/v1")

	g.GET("/status", c.GetStatus)
	g.GET("/config", c.GetConfig)
	g.GET("/alerts/stats", c.GetAlertStats)
	g.GET("/alerts/history", c.ListAlertHistory)
	g.GET("/alerts/rules", c.ListAlertRules)
	g.GET("/alerts/rules/:id", c.GetAlertRule)

	protected := g.Group("", c.authMiddleware)
	protected.POST("/trigger", c.TriggerCycle)
	protected.PATCH("/config", c.PatchConfig)
	protected.POST("/alerts/rules", c.CreateAlertRule)
	protected.PUT("/alerts/rules/:id", c.UpdateAlertRule)
	protected.PATCH("/alerts/rules/:id/toggle", c.ToggleAlertRule)
	protected.DELETE("/alerts/rules/:id", c.DeleteAlertRule)
}

// authMiddleware enforces the shared-secret header when a token is
// configured.
func (c *Controller) authMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if c.opts.Token == "" {
			return next(ctx)
		}
		provided := ctx.Request().Header.Get(tokenHeader)
		if subtle.ConstantTimeCompare([]byte(provided), []byte(c.opts.Token)) != 1 {
			return ctx.JSON(http.StatusUnauthorized, map[string]string{"error": "Missing or invalid API token"})
		}
		return next(ctx)
	}
}

// HandleError logs err and answers a structured JSON error.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, status int) error {
	c.log.Error(message, logger.Error(err))
	return ctx.JSON(status, map[string]string{"error": message})
}

// Start serves the control surface on addr, blocking until shutdown.
func (c *Controller) Start(addr string) error {
	return c.echo.Start(addr)
}

// Shutdown stops the HTTP server gracefully.
func (c *Controller) Shutdown(ctx context.Context) error {
	return c.echo.Shutdown(ctx)
}

// Echo exposes the underlying router for tests.
func (c *Controller) Echo() *echo.Echo {
	return c.echo
}
