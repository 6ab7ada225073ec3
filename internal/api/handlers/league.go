package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/jstittsworth/fantasy-advisor/internal/services"
	"github.com/jstittsworth/fantasy-advisor/pkg/utils"
)

type LeagueHandler struct {
	advisor Advisor
}

func NewLeagueHandler(advisor Advisor) *LeagueHandler {
	return &LeagueHandler{advisor: advisor}
}

type registerLeagueRequest struct {
	LeagueID    string `json:"league_id" binding:"required"`
	OwnerUserID string `json:"owner_user_id" binding:"required"`
	Timezone    string `json:"timezone"`
}

// RegisterLeague handles POST /leagues
func (h *LeagueHandler) RegisterLeague(c *gin.Context) {
	var req registerLeagueRequest
	if !bindJSON(c, &req) {
		return
	}
	league, err := h.advisor.RegisterLeague(c.Request.Context(), req.LeagueID, req.OwnerUserID, req.Timezone)
	if err != nil {
		respondError(c, err, "League not found")
		return
	}
	utils.OK(c, league)
}

// GetTrades handles GET /leagues/:league_id/trades?season=&week=
func (h *LeagueHandler) GetTrades(c *gin.Context) {
	season, week, ok := seasonWeek(c)
	if !ok {
		return
	}
	recs, err := h.advisor.GetTradeRecommendations(c.Request.Context(), c.Param("league_id"), season, week)
	if err != nil {
		respondError(c, err, "League not found")
		return
	}
	utils.List(c, recs)
}

// GenerateTrades handles POST /leagues/:league_id/trades/generate
func (h *LeagueHandler) GenerateTrades(c *gin.Context) {
	var req weekRequest
	if !bindJSON(c, &req) {
		return
	}
	recs, err := h.advisor.GenerateTradeRecommendations(c.Request.Context(), c.Param("league_id"), req.Season, req.Week)
	if err != nil {
		respondError(c, err, "League not found")
		return
	}
	utils.List(c, recs)
}

// EvaluateTrade handles POST /leagues/:league_id/trades/evaluate
func (h *LeagueHandler) EvaluateTrade(c *gin.Context) {
	var proposal services.TradeProposal
	if !bindJSON(c, &proposal) {
		return
	}
	proposal.LeagueID = c.Param("league_id")

	rec, err := h.advisor.EvaluateTrade(c.Request.Context(), proposal)
	if err != nil {
		respondError(c, err, "League or roster not found")
		return
	}
	utils.OK(c, rec)
}

// GetWaivers handles GET /leagues/:league_id/waivers?season=&week=
func (h *LeagueHandler) GetWaivers(c *gin.Context) {
	season, week, ok := seasonWeek(c)
	if !ok {
		return
	}
	recs, err := h.advisor.GetWaiverRecommendations(c.Request.Context(), c.Param("league_id"), season, week)
	if err != nil {
		respondError(c, err, "League not found")
		return
	}
	utils.List(c, recs)
}

// GenerateWaivers handles POST /leagues/:league_id/waivers/generate
func (h *LeagueHandler) GenerateWaivers(c *gin.Context) {
	var req weekRequest
	if !bindJSON(c, &req) {
		return
	}
	recs, err := h.advisor.GenerateWaiverRecommendations(c.Request.Context(), c.Param("league_id"), req.Season, req.Week)
	if err != nil {
		respondError(c, err, "League not found")
		return
	}
	utils.List(c, recs)
}

// CalculateBid handles POST /leagues/:league_id/waivers/bid
func (h *LeagueHandler) CalculateBid(c *gin.Context) {
	var req services.BidRequest
	if !bindJSON(c, &req) {
		return
	}
	bid, err := h.advisor.CalculateBid(c.Request.Context(), c.Param("league_id"), req)
	if err != nil {
		respondError(c, err, "League not found")
		return
	}
	utils.OK(c, bid)
}
