// Package providers holds the read-only clients for the external sports-data feed.
package providers

import (
	"context"
	"strings"
	"time"

	"github.com/jstittsworth/fantasy-advisor/internal/models"
)

// Feed is the external sports-data source. Every payload is decoded into the
// explicit records below before it leaves the client.
type Feed interface {
	GetState(ctx context.Context) (*NFLState, error)
	GetLeague(ctx context.Context, leagueID string) (*LeagueInfo, error)
	GetRosters(ctx context.Context, leagueID string) ([]RosterInfo, error)
	GetUsers(ctx context.Context, leagueID string) ([]LeagueUser, error)
	GetTransactions(ctx context.Context, leagueID string, week int) ([]FeedTransaction, error)
	GetWeeklyStats(ctx context.Context, season, week int) ([]PlayerStatLine, error)
	GetTrendingAdds(ctx context.Context, lookbackHours, limit int) ([]TrendingPlayer, error)
	GetAllPlayers(ctx context.Context) ([]FeedPlayer, error)
	GetPlayerStatuses(ctx context.Context, playerIDs []string) (map[string]models.PlayerStatus, error)
}

type NFLState struct {
	Season     int
	Week       int
	SeasonType string
}

type LeagueInfo struct {
	ID           string
	Name         string
	Season       int
	Status       string
	TotalRosters int
	ScoringType  models.ScoringType
	WaiverBudget int
}

type RosterInfo struct {
	RosterID         int
	OwnerID          string
	Players          []string
	Starters         []string
	WaiverBudgetUsed int
}

type LeagueUser struct {
	UserID      string
	DisplayName string
}

type PlayerStatLine struct {
	PlayerID string
	Stats    models.StatBag
}

type FeedTransaction struct {
	ID              string
	Type            string
	Status          string
	Week            int
	RosterIDs       []int
	Adds            map[string]int
	Drops           map[string]int
	CreatorRosterID int
	WaiverBid       int
	CreatedAt       time.Time
}

type TrendingPlayer struct {
	PlayerID string
	Count    int
}

type FeedPlayer struct {
	PlayerID     string
	FullName     string
	Position     models.Position
	Team         string
	Status       models.PlayerStatus
	InjuryStatus string
	Active       bool
}

// MapStatus folds the feed's roster status and injury designation into a
// single availability status.
func MapStatus(rosterStatus, injuryStatus string) models.PlayerStatus {
	switch strings.ToLower(strings.TrimSpace(injuryStatus)) {
	case "questionable":
		return models.StatusQuestionable
	case "doubtful":
		return models.StatusDoubtful
	case "out", "ir", "pup", "sus", "na", "cov":
		return models.StatusOut
	}
	switch strings.ToLower(strings.TrimSpace(rosterStatus)) {
	case "inactive":
		return models.StatusInactive
	case "injured reserve", "physically unable to perform", "suspended":
		return models.StatusOut
	}
	return models.StatusActive
}

// MapPosition normalizes feed positions; unknown positions return "".
func MapPosition(pos string) models.Position {
	switch p := models.Position(strings.ToUpper(strings.TrimSpace(pos))); p {
	case "D/ST", "DST":
		return models.PositionDEF
	case "PK":
		return models.PositionK
	default:
		if p.IsValid() {
			return p
		}
		return ""
	}
}
