package handlers

import (
	"context"

	"github.com/jstittsworth/fantasy-advisor/internal/injury"
	"github.com/jstittsworth/fantasy-advisor/internal/models"
	"github.com/jstittsworth/fantasy-advisor/internal/services"
	"github.com/jstittsworth/fantasy-advisor/internal/store"
	"github.com/jstittsworth/fantasy-advisor/internal/waiver"
)

// Advisor is the slice of services.Advisor the HTTP layer calls.
type Advisor interface {
	SearchPlayers(ctx context.Context, query string, limit int) ([]models.Player, error)
	GetProjection(ctx context.Context, playerID string, season, week int) (*models.Projection, error)
	GetProjections(ctx context.Context, filter store.ProjectionFilter) ([]models.Projection, error)
	GetValuation(ctx context.Context, playerID, leagueID string, season, week int) (*models.PlayerValuation, error)

	RegisterLeague(ctx context.Context, leagueID, ownerUserID, timezone string) (*models.League, error)
	GetTradeRecommendations(ctx context.Context, leagueID string, season, week int) ([]models.TradeRecommendation, error)
	GenerateTradeRecommendations(ctx context.Context, leagueID string, season, week int) ([]models.TradeRecommendation, error)
	EvaluateTrade(ctx context.Context, p services.TradeProposal) (*models.TradeRecommendation, error)
	GetWaiverRecommendations(ctx context.Context, leagueID string, season, week int) ([]models.WaiverRecommendation, error)
	GenerateWaiverRecommendations(ctx context.Context, leagueID string, season, week int) ([]models.WaiverRecommendation, error)
	CalculateBid(ctx context.Context, leagueID string, req services.BidRequest) (*waiver.Bid, error)

	GetInjuryAlerts(ctx context.Context, filter store.AlertFilter) ([]models.InjuryAlert, error)
	AcknowledgeAlert(ctx context.Context, alertID string) (*models.InjuryAlert, error)
	GetMonitoringStatus() injury.Status
	GetPreferences(ctx context.Context, userID string) (*models.UserPreferences, error)
	UpdatePreferences(ctx context.Context, prefs *models.UserPreferences) (*models.UserPreferences, error)
}

var _ Advisor = (*services.Advisor)(nil)
