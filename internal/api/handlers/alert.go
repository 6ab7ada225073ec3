package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jstittsworth/fantasy-advisor/internal/models"
	"github.com/jstittsworth/fantasy-advisor/internal/store"
	"github.com/jstittsworth/fantasy-advisor/pkg/utils"
)

type AlertHandler struct {
	advisor Advisor
}

func NewAlertHandler(advisor Advisor) *AlertHandler {
	return &AlertHandler{advisor: advisor}
}

// ListAlerts handles GET /alerts?league_id=&user_id=&unacknowledged=&since=&limit=
func (h *AlertHandler) ListAlerts(c *gin.Context) {
	limit, ok := queryInt(c, "limit", 0)
	if !ok {
		return
	}
	filter := store.AlertFilter{
		LeagueID:           c.Query("league_id"),
		UserID:             c.Query("user_id"),
		UnacknowledgedOnly: c.Query("unacknowledged") == "true",
		Limit:              limit,
	}
	if raw := c.Query("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			utils.Invalid(c, "Invalid since", "since must be RFC3339")
			return
		}
		filter.Since = &since
	}

	alerts, err := h.advisor.GetInjuryAlerts(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err, "Alerts not found")
		return
	}
	utils.List(c, alerts)
}

// AcknowledgeAlert handles POST /alerts/:alert_id/acknowledge
func (h *AlertHandler) AcknowledgeAlert(c *gin.Context) {
	alert, err := h.advisor.AcknowledgeAlert(c.Request.Context(), c.Param("alert_id"))
	if err != nil {
		respondError(c, err, "Alert not found")
		return
	}
	utils.OK(c, alert)
}

// GetMonitorStatus handles GET /monitor/status
func (h *AlertHandler) GetMonitorStatus(c *gin.Context) {
	utils.OK(c, h.advisor.GetMonitoringStatus())
}

// GetPreferences handles GET /users/:user_id/preferences
func (h *AlertHandler) GetPreferences(c *gin.Context) {
	prefs, err := h.advisor.GetPreferences(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		respondError(c, err, "Preferences not found")
		return
	}
	utils.OK(c, prefs)
}

// UpdatePreferences handles PUT /users/:user_id/preferences
func (h *AlertHandler) UpdatePreferences(c *gin.Context) {
	// Push stays on unless the body turns it off.
	prefs := models.UserPreferences{NotifyPush: true}
	if !bindJSON(c, &prefs) {
		return
	}
	prefs.UserID = c.Param("user_id")

	saved, err := h.advisor.UpdatePreferences(c.Request.Context(), &prefs)
	if err != nil {
		respondError(c, err, "User not found")
		return
	}
	utils.OK(c, saved)
}
