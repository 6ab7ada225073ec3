// Package store is the persistence boundary for every record the engines read or write.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/jstittsworth/fantasy-advisor/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

type ProjectionFilter struct {
	Season    int
	Week      *int
	PlayerIDs []string
	Source    models.ProjectionSource
	Limit     int
}

type AlertFilter struct {
	LeagueID           string
	UserID             string
	UnacknowledgedOnly bool
	Since              *time.Time
	Limit              int
}

type Store interface {
	// Players
	GetPlayer(ctx context.Context, id string) (*models.Player, error)
	GetPlayers(ctx context.Context, ids []string) (map[string]models.Player, error)
	ListPlayersByPosition(ctx context.Context, pos models.Position) ([]models.Player, error)
	ListActivePlayers(ctx context.Context) ([]models.Player, error)
	SearchPlayers(ctx context.Context, name string, limit int) ([]models.Player, error)
	UpsertPlayers(ctx context.Context, players []models.Player) error
	UpdatePlayerStatus(ctx context.Context, id string, status models.PlayerStatus, injury string) error

	// Weekly stats
	UpsertWeeklyStats(ctx context.Context, stats []models.WeeklyStat) error
	RecentWeeklyStats(ctx context.Context, playerID string, season, beforeWeek, limit int) ([]models.WeeklyStat, error)
	WeeklyStatsForPlayers(ctx context.Context, playerIDs []string, season, fromWeek, toWeek int) ([]models.WeeklyStat, error)

	// Projections
	GetProjection(ctx context.Context, playerID string, season, week int, source models.ProjectionSource) (*models.Projection, error)
	FindProjection(ctx context.Context, playerID string, season, week int) (*models.Projection, error)
	ListProjections(ctx context.Context, filter ProjectionFilter) ([]models.Projection, error)
	ProjectionsForPlayers(ctx context.Context, playerIDs []string, season, fromWeek, toWeek int) ([]models.Projection, error)
	UpsertProjections(ctx context.Context, projections []models.Projection) error

	// Leagues and rosters
	GetLeague(ctx context.Context, id string) (*models.League, error)
	ListActiveLeagues(ctx context.Context) ([]models.League, error)
	SaveLeague(ctx context.Context, league *models.League) error
	ListRosterSlots(ctx context.Context, leagueID string) ([]models.RosterSlot, error)
	ReplaceRosterSlots(ctx context.Context, leagueID string, slots []models.RosterSlot) error
	ListLeagueRosters(ctx context.Context, leagueID string) ([]models.LeagueRoster, error)
	ReplaceLeagueRosters(ctx context.Context, leagueID string, rosters []models.LeagueRoster) error

	// Opponent profiles
	GetOpponentProfile(ctx context.Context, leagueID string, rosterID int) (*models.OpponentProfile, error)
	ListOpponentProfiles(ctx context.Context, leagueID string) ([]models.OpponentProfile, error)
	SaveOpponentProfile(ctx context.Context, profile *models.OpponentProfile) error

	// Transactions
	SaveTransaction(ctx context.Context, tx *models.Transaction) (bool, error)
	RecentWinningBids(ctx context.Context, leagueID string, pos models.Position, limit int) ([]int, error)

	// Recommendations
	ReplaceTradeRecommendations(ctx context.Context, leagueID string, season, week int, recs []models.TradeRecommendation) error
	ListTradeRecommendations(ctx context.Context, leagueID string, season, week int) ([]models.TradeRecommendation, error)
	ReplaceWaiverRecommendations(ctx context.Context, leagueID string, season, week int, recs []models.WaiverRecommendation) error
	ListWaiverRecommendations(ctx context.Context, leagueID string, season, week int) ([]models.WaiverRecommendation, error)

	// Injury alerts
	CreateInjuryAlert(ctx context.Context, alert *models.InjuryAlert) error
	UpdateInjuryAlert(ctx context.Context, alert *models.InjuryAlert) error
	GetInjuryAlert(ctx context.Context, id string) (*models.InjuryAlert, error)
	ListInjuryAlerts(ctx context.Context, filter AlertFilter) ([]models.InjuryAlert, error)

	// Preferences
	GetUserPreferences(ctx context.Context, userID string) (*models.UserPreferences, error)
	SaveUserPreferences(ctx context.Context, prefs *models.UserPreferences) error
}
