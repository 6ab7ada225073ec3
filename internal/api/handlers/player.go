package handlers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jstittsworth/fantasy-advisor/internal/models"
	"github.com/jstittsworth/fantasy-advisor/internal/store"
	"github.com/jstittsworth/fantasy-advisor/pkg/utils"
)

type PlayerHandler struct {
	advisor Advisor
}

func NewPlayerHandler(advisor Advisor) *PlayerHandler {
	return &PlayerHandler{advisor: advisor}
}

// SearchPlayers handles GET /players/search?q=
func (h *PlayerHandler) SearchPlayers(c *gin.Context) {
	limit, ok := queryInt(c, "limit", 0)
	if !ok {
		return
	}
	players, err := h.advisor.SearchPlayers(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		respondError(c, err, "No players found")
		return
	}
	utils.List(c, players)
}

// GetProjection handles GET /players/:player_id/projections/:season/:week
func (h *PlayerHandler) GetProjection(c *gin.Context) {
	season, err := strconv.Atoi(c.Param("season"))
	if err != nil {
		utils.Invalid(c, "Invalid season", err.Error())
		return
	}
	week, err := strconv.Atoi(c.Param("week"))
	if err != nil {
		utils.Invalid(c, "Invalid week", err.Error())
		return
	}

	proj, err := h.advisor.GetProjection(c.Request.Context(), c.Param("player_id"), season, week)
	if err != nil {
		respondError(c, err, "Projection not found")
		return
	}
	utils.OK(c, proj)
}

// ListProjections handles GET /projections?season=&week=&source=&player_ids=
func (h *PlayerHandler) ListProjections(c *gin.Context) {
	season, ok := queryInt(c, "season", 0)
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit", 0)
	if !ok {
		return
	}
	filter := store.ProjectionFilter{
		Season: season,
		Source: models.ProjectionSource(c.Query("source")),
		Limit:  limit,
	}
	if c.Query("week") != "" {
		week, ok := queryInt(c, "week", 0)
		if !ok {
			return
		}
		filter.Week = &week
	}
	if ids := c.Query("player_ids"); ids != "" {
		filter.PlayerIDs = strings.Split(ids, ",")
	}

	projections, err := h.advisor.GetProjections(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err, "Projections not found")
		return
	}
	utils.List(c, projections)
}

// GetValuation handles GET /players/:player_id/valuation?league_id=&season=&week=
func (h *PlayerHandler) GetValuation(c *gin.Context) {
	season, week, ok := seasonWeek(c)
	if !ok {
		return
	}
	val, err := h.advisor.GetValuation(c.Request.Context(), c.Param("player_id"), c.Query("league_id"), season, week)
	if err != nil {
		respondError(c, err, "Valuation not available")
		return
	}
	utils.OK(c, val)
}
