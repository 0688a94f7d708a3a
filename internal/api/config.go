package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/proxypulse/proxypulse/internal/conf"
	"github.com/proxypulse/proxypulse/internal/datastore/entities"
	"github.com/proxypulse/proxypulse/internal/datastore/repository"
)

// historicalConfigDTO is the wire shape of the historical config, using
// the human-readable duration encoding.
type historicalConfigDTO struct {
	RetentionDays   int           `json:"retention_days"`
	ArchiveInterval conf.Duration `json:"archive_interval"`
}

func toConfigDTO(config *entities.HistoricalConfig) historicalConfigDTO {
	return historicalConfigDTO{
		RetentionDays:   config.RetentionDays,
		ArchiveInterval: conf.Duration(config.ArchiveInterval),
	}
}

// GetConfig returns the current retention/archival configuration.
func (c *Controller) GetConfig(ctx echo.Context) error {
	config, err := c.configRepo.Get(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err, "Failed to load config", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, toConfigDTO(config))
}

// PatchConfig applies a partial config update. Both fields must be
// positive; validation failures answer 400 and never reach the
// scheduler.
func (c *Controller) PatchConfig(ctx echo.Context) error {
	var body struct {
		RetentionDays   *int           `json:"retention_days"`
		ArchiveInterval *conf.Duration `json:"archive_interval"`
	}
	if err := ctx.Bind(&body); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	patch := repository.ConfigPatch{RetentionDays: body.RetentionDays}
	if body.ArchiveInterval != nil {
		d := body.ArchiveInterval.Std()
		patch.ArchiveInterval = &d
	}

	config, err := c.configRepo.Update(ctx.Request().Context(), patch)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidConfig) {
			return ctx.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		return c.HandleError(ctx, err, "Failed to update config", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, toConfigDTO(config))
}
