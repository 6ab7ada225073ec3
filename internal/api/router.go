// Package api wires the HTTP surface of the advisor.
package api

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/jstittsworth/fantasy-advisor/internal/api/handlers"
	"github.com/jstittsworth/fantasy-advisor/internal/api/middleware"
)

type RouterDeps struct {
	Advisor     handlers.Advisor
	Jobs        handlers.JobRunner
	Health      *handlers.HealthHandler
	WebSocket   gin.HandlerFunc
	CorsOrigins []string
	Logger      *logrus.Logger
}

// NewRouter builds the engine with middleware, health checks and the /api/v1 group.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.CORS(deps.CorsOrigins))

	if deps.Health != nil {
		router.GET("/health", deps.Health.GetHealth)
		router.GET("/ready", deps.Health.GetReady)
	}
	if deps.WebSocket != nil {
		router.GET("/ws/:user_id", deps.WebSocket)
	}

	SetupRoutes(router.Group("/api/v1"), deps.Advisor, deps.Jobs)
	return router
}

func SetupRoutes(group *gin.RouterGroup, advisor handlers.Advisor, runner handlers.JobRunner) {
	playerHandler := handlers.NewPlayerHandler(advisor)
	leagueHandler := handlers.NewLeagueHandler(advisor)
	alertHandler := handlers.NewAlertHandler(advisor)

	// Players and projections
	group.GET("/players/search", playerHandler.SearchPlayers)
	group.GET("/players/:player_id/projections/:season/:week", playerHandler.GetProjection)
	group.GET("/players/:player_id/valuation", playerHandler.GetValuation)
	group.GET("/projections", playerHandler.ListProjections)

	// Leagues, trades and waivers
	leagues := group.Group("/leagues")
	{
		leagues.POST("", leagueHandler.RegisterLeague)
		leagues.GET("/:league_id/trades", leagueHandler.GetTrades)
		leagues.POST("/:league_id/trades/generate", leagueHandler.GenerateTrades)
		leagues.POST("/:league_id/trades/evaluate", leagueHandler.EvaluateTrade)
		leagues.GET("/:league_id/waivers", leagueHandler.GetWaivers)
		leagues.POST("/:league_id/waivers/generate", leagueHandler.GenerateWaivers)
		leagues.POST("/:league_id/waivers/bid", leagueHandler.CalculateBid)
	}

	// Injury alerts
	group.GET("/alerts", alertHandler.ListAlerts)
	group.POST("/alerts/:alert_id/acknowledge", alertHandler.AcknowledgeAlert)
	group.GET("/monitor/status", alertHandler.GetMonitorStatus)
	group.GET("/users/:user_id/preferences", alertHandler.GetPreferences)
	group.PUT("/users/:user_id/preferences", alertHandler.UpdatePreferences)

	if runner != nil {
		jobHandler := handlers.NewJobHandler(runner)
		group.GET("/jobs", jobHandler.ListJobs)
		group.POST("/jobs/:name/run", jobHandler.TriggerJob)
	}
}
