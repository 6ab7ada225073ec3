package handlers

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sony/gobreaker"

	"github.com/jstittsworth/fantasy-advisor/internal/ingest"
	"github.com/jstittsworth/fantasy-advisor/internal/jobs"
	"github.com/jstittsworth/fantasy-advisor/internal/providers"
	"github.com/jstittsworth/fantasy-advisor/internal/services"
	"github.com/jstittsworth/fantasy-advisor/internal/store"
	"github.com/jstittsworth/fantasy-advisor/internal/trade"
	"github.com/jstittsworth/fantasy-advisor/internal/valuation"
	"github.com/jstittsworth/fantasy-advisor/pkg/utils"
)

// respondError maps domain errors onto the shared response envelope.
func respondError(c *gin.Context, err error, notFound string) {
	utils.Fail(c, classify(c, err, notFound))
}

func classify(c *gin.Context, err error, notFound string) *utils.AppError {
	switch {
	case errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, trade.ErrEmptySide),
		errors.Is(err, trade.ErrPlayerNotOwned),
		errors.Is(err, ingest.ErrOwnerRosterMissing):
		return utils.NewAppError(utils.ErrCodeValidation, "Invalid request", err.Error())
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, providers.ErrUpstreamNotFound),
		errors.Is(err, trade.ErrNoUserRoster),
		errors.Is(err, valuation.ErrNoProjection),
		errors.Is(err, jobs.ErrUnknownJob):
		return utils.NewAppError(utils.ErrCodeNotFound, notFound)
	case errors.Is(err, jobs.ErrJobRunning):
		return utils.NewAppError(utils.ErrCodeConflict, err.Error())
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return utils.NewAppError(utils.ErrCodeUnavailable, "Upstream data feed is temporarily unavailable")
	default:
		_ = c.Error(err)
		return utils.NewAppError(utils.ErrCodeInternal, "Request failed")
	}
}

// seasonWeek reads season and week from the query string.
func seasonWeek(c *gin.Context) (int, int, bool) {
	season, err := strconv.Atoi(c.Query("season"))
	if err != nil {
		utils.Invalid(c, "Invalid season", "season must be an integer")
		return 0, 0, false
	}
	week, err := strconv.Atoi(c.Query("week"))
	if err != nil {
		utils.Invalid(c, "Invalid week", "week must be an integer")
		return 0, 0, false
	}
	return season, week, true
}

func queryInt(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		utils.Invalid(c, "Invalid "+name, name+" must be an integer")
		return 0, false
	}
	return v, true
}

type weekRequest struct {
	Season int `json:"season" binding:"required"`
	Week   int `json:"week" binding:"required"`
}

func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		utils.Invalid(c, "Invalid request body", err.Error())
		return false
	}
	return true
}
