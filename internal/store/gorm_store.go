package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jstittsworth/fantasy-advisor/internal/models"
	"github.com/jstittsworth/fantasy-advisor/pkg/database"
)

const upsertBatchSize = 100

// sourcePriority orders projection sources from most to least trusted.
const sourcePriority = "CASE source WHEN 'historical_analysis' THEN 0 WHEN 'basic_algorithm' THEN 1 ELSE 2 END"

type GormStore struct {
	db     *database.DB
	logger *logrus.Logger
}

func NewGormStore(db *database.DB, logger *logrus.Logger) *GormStore {
	return &GormStore{db: db, logger: logger}
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("failed to load %s: %w", what, err)
}

// Players

func (s *GormStore) GetPlayer(ctx context.Context, id string) (*models.Player, error) {
	var player models.Player
	if err := s.db.WithContext(ctx).First(&player, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "player "+id)
	}
	return &player, nil
}

func (s *GormStore) GetPlayers(ctx context.Context, ids []string) (map[string]models.Player, error) {
	result := make(map[string]models.Player, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var players []models.Player
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&players).Error; err != nil {
		return nil, fmt.Errorf("failed to load players: %w", err)
	}
	for _, p := range players {
		result[p.ID] = p
	}
	return result, nil
}

func (s *GormStore) ListPlayersByPosition(ctx context.Context, pos models.Position) ([]models.Player, error) {
	var players []models.Player
	err := s.db.WithContext(ctx).
		Where("position = ? AND active = ?", pos, true).
		Order("id").
		Find(&players).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list %s players: %w", pos, err)
	}
	return players, nil
}

func (s *GormStore) ListActivePlayers(ctx context.Context) ([]models.Player, error) {
	var players []models.Player
	err := s.db.WithContext(ctx).
		Where("active = ? AND position IN ?", true, models.FantasyPositions).
		Order("id").
		Find(&players).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active players: %w", err)
	}
	return players, nil
}

// SearchPlayers ranks active players by fuzzy distance to the query.
func (s *GormStore) SearchPlayers(ctx context.Context, name string, limit int) ([]models.Player, error) {
	var players []models.Player
	if err := s.db.WithContext(ctx).Where("active = ?", true).Find(&players).Error; err != nil {
		return nil, fmt.Errorf("failed to search players: %w", err)
	}

	byName := make(map[string][]models.Player, len(players))
	names := make([]string, 0, len(players))
	for _, p := range players {
		if _, seen := byName[p.FullName]; !seen {
			names = append(names, p.FullName)
		}
		byName[p.FullName] = append(byName[p.FullName], p)
	}

	ranks := fuzzy.RankFindNormalizedFold(name, names)
	sort.Sort(ranks)

	var matches []models.Player
	for _, r := range ranks {
		matches = append(matches, byName[r.Target]...)
		if limit > 0 && len(matches) >= limit {
			return matches[:limit], nil
		}
	}
	return matches, nil
}

func (s *GormStore) UpsertPlayers(ctx context.Context, players []models.Player) error {
	if len(players) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"full_name", "position", "team", "status", "injury_status", "active", "updated_at"}),
	}).CreateInBatches(&players, upsertBatchSize).Error
	if err != nil {
		return fmt.Errorf("failed to upsert players: %w", err)
	}
	return nil
}

func (s *GormStore) UpdatePlayerStatus(ctx context.Context, id string, status models.PlayerStatus, injury string) error {
	res := s.db.WithContext(ctx).Model(&models.Player{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "injury_status": injury, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return fmt.Errorf("failed to update player %s status: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("player %s: %w", id, ErrNotFound)
	}
	return nil
}

// Weekly stats

func (s *GormStore) UpsertWeeklyStats(ctx context.Context, stats []models.WeeklyStat) error {
	if len(stats) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "player_id"}, {Name: "season"}, {Name: "week"}},
		DoUpdates: clause.AssignmentColumns([]string{"stats", "pts_std", "pts_half_ppr", "pts_ppr", "is_final", "updated_at"}),
		// A final week is immutable.
		Where: clause.Where{Exprs: []clause.Expression{gorm.Expr("weekly_stats.is_final = ?", false)}},
	}).CreateInBatches(&stats, upsertBatchSize).Error
	if err != nil {
		return fmt.Errorf("failed to upsert weekly stats: %w", err)
	}
	return nil
}

// RecentWeeklyStats returns up to limit weeks strictly before beforeWeek, most recent first.
func (s *GormStore) RecentWeeklyStats(ctx context.Context, playerID string, season, beforeWeek, limit int) ([]models.WeeklyStat, error) {
	var stats []models.WeeklyStat
	q := s.db.WithContext(ctx).
		Where("player_id = ? AND season = ? AND week < ? AND week > 0", playerID, season, beforeWeek).
		Order("week DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&stats).Error; err != nil {
		return nil, fmt.Errorf("failed to load recent stats for %s: %w", playerID, err)
	}
	return stats, nil
}

func (s *GormStore) WeeklyStatsForPlayers(ctx context.Context, playerIDs []string, season, fromWeek, toWeek int) ([]models.WeeklyStat, error) {
	var stats []models.WeeklyStat
	if len(playerIDs) == 0 {
		return stats, nil
	}
	err := s.db.WithContext(ctx).
		Where("player_id IN ? AND season = ? AND week BETWEEN ? AND ?", playerIDs, season, fromWeek, toWeek).
		Order("player_id, week").
		Find(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load weekly stats: %w", err)
	}
	return stats, nil
}

// Projections

func (s *GormStore) GetProjection(ctx context.Context, playerID string, season, week int, source models.ProjectionSource) (*models.Projection, error) {
	var p models.Projection
	err := s.db.WithContext(ctx).
		Where("player_id = ? AND season = ? AND week = ? AND source = ?", playerID, season, week, source).
		First(&p).Error
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("projection %s/%d/%d", playerID, season, week))
	}
	return &p, nil
}

// FindProjection returns the most trusted projection stored for the week.
func (s *GormStore) FindProjection(ctx context.Context, playerID string, season, week int) (*models.Projection, error) {
	var p models.Projection
	err := s.db.WithContext(ctx).
		Where("player_id = ? AND season = ? AND week = ?", playerID, season, week).
		Order(sourcePriority).
		First(&p).Error
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("projection %s/%d/%d", playerID, season, week))
	}
	return &p, nil
}

func (s *GormStore) ListProjections(ctx context.Context, filter ProjectionFilter) ([]models.Projection, error) {
	q := s.db.WithContext(ctx).Where("season = ?", filter.Season)
	if filter.Week != nil {
		q = q.Where("week = ?", *filter.Week)
	}
	if len(filter.PlayerIDs) > 0 {
		q = q.Where("player_id IN ?", filter.PlayerIDs)
	}
	if filter.Source != "" {
		q = q.Where("source = ?", filter.Source)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var projections []models.Projection
	if err := q.Order("projected_points DESC").Find(&projections).Error; err != nil {
		return nil, fmt.Errorf("failed to list projections: %w", err)
	}
	return projections, nil
}

func (s *GormStore) ProjectionsForPlayers(ctx context.Context, playerIDs []string, season, fromWeek, toWeek int) ([]models.Projection, error) {
	var projections []models.Projection
	if len(playerIDs) == 0 {
		return projections, nil
	}
	err := s.db.WithContext(ctx).
		Where("player_id IN ? AND season = ? AND week BETWEEN ? AND ?", playerIDs, season, fromWeek, toWeek).
		Order("player_id, week, " + sourcePriority).
		Find(&projections).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load projections: %w", err)
	}
	return projections, nil
}

func (s *GormStore) UpsertProjections(ctx context.Context, projections []models.Projection) error {
	if len(projections) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "player_id"}, {Name: "season"}, {Name: "week"}, {Name: "source"}},
		DoUpdates: clause.AssignmentColumns([]string{"projected_points", "confidence", "stats", "updated_at"}),
	}).CreateInBatches(&projections, upsertBatchSize).Error
	if err != nil {
		return fmt.Errorf("failed to upsert projections: %w", err)
	}
	return nil
}

// Leagues and rosters

func (s *GormStore) GetLeague(ctx context.Context, id string) (*models.League, error) {
	var league models.League
	if err := s.db.WithContext(ctx).First(&league, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "league "+id)
	}
	return &league, nil
}

func (s *GormStore) ListActiveLeagues(ctx context.Context) ([]models.League, error) {
	var leagues []models.League
	if err := s.db.WithContext(ctx).Where("active = ?", true).Order("id").Find(&leagues).Error; err != nil {
		return nil, fmt.Errorf("failed to list active leagues: %w", err)
	}
	return leagues, nil
}

func (s *GormStore) SaveLeague(ctx context.Context, league *models.League) error {
	if err := s.db.WithContext(ctx).Save(league).Error; err != nil {
		return fmt.Errorf("failed to save league %s: %w", league.ID, err)
	}
	return nil
}

func (s *GormStore) ListRosterSlots(ctx context.Context, leagueID string) ([]models.RosterSlot, error) {
	var slots []models.RosterSlot
	if err := s.db.WithContext(ctx).Where("league_id = ?", leagueID).Order("id").Find(&slots).Error; err != nil {
		return nil, fmt.Errorf("failed to list roster for league %s: %w", leagueID, err)
	}
	return slots, nil
}

// ReplaceRosterSlots deletes every slot of the league and recreates it from slots.
func (s *GormStore) ReplaceRosterSlots(ctx context.Context, leagueID string, slots []models.RosterSlot) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("league_id = ?", leagueID).Delete(&models.RosterSlot{}).Error; err != nil {
			return fmt.Errorf("failed to clear roster for league %s: %w", leagueID, err)
		}
		if len(slots) == 0 {
			return nil
		}
		for i := range slots {
			slots[i].ID = 0
			slots[i].LeagueID = leagueID
		}
		if err := tx.Create(&slots).Error; err != nil {
			return fmt.Errorf("failed to recreate roster for league %s: %w", leagueID, err)
		}
		return nil
	})
}

func (s *GormStore) ListLeagueRosters(ctx context.Context, leagueID string) ([]models.LeagueRoster, error) {
	var rosters []models.LeagueRoster
	if err := s.db.WithContext(ctx).Where("league_id = ?", leagueID).Order("roster_id").Find(&rosters).Error; err != nil {
		return nil, fmt.Errorf("failed to list rosters for league %s: %w", leagueID, err)
	}
	return rosters, nil
}

func (s *GormStore) ReplaceLeagueRosters(ctx context.Context, leagueID string, rosters []models.LeagueRoster) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("league_id = ?", leagueID).Delete(&models.LeagueRoster{}).Error; err != nil {
			return fmt.Errorf("failed to clear league rosters %s: %w", leagueID, err)
		}
		if len(rosters) == 0 {
			return nil
		}
		for i := range rosters {
			rosters[i].ID = 0
			rosters[i].LeagueID = leagueID
		}
		if err := tx.Create(&rosters).Error; err != nil {
			return fmt.Errorf("failed to recreate league rosters %s: %w", leagueID, err)
		}
		return nil
	})
}

// Opponent profiles

func (s *GormStore) GetOpponentProfile(ctx context.Context, leagueID string, rosterID int) (*models.OpponentProfile, error) {
	var profile models.OpponentProfile
	err := s.db.WithContext(ctx).
		Where("league_id = ? AND roster_id = ?", leagueID, rosterID).
		First(&profile).Error
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("opponent profile %s/%d", leagueID, rosterID))
	}
	return &profile, nil
}

func (s *GormStore) ListOpponentProfiles(ctx context.Context, leagueID string) ([]models.OpponentProfile, error) {
	var profiles []models.OpponentProfile
	if err := s.db.WithContext(ctx).Where("league_id = ?", leagueID).Order("roster_id").Find(&profiles).Error; err != nil {
		return nil, fmt.Errorf("failed to list opponent profiles: %w", err)
	}
	return profiles, nil
}

func (s *GormStore) SaveOpponentProfile(ctx context.Context, profile *models.OpponentProfile) error {
	if err := s.db.WithContext(ctx).Save(profile).Error; err != nil {
		return fmt.Errorf("failed to save opponent profile %s/%d: %w", profile.LeagueID, profile.RosterID, err)
	}
	return nil
}

// Transactions

// SaveTransaction stores a transaction once per external id and reports whether it was new.
func (s *GormStore) SaveTransaction(ctx context.Context, tx *models.Transaction) (bool, error) {
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "external_id"}}, DoNothing: true}).
		Create(tx)
	if res.Error != nil {
		return false, fmt.Errorf("failed to save transaction %s: %w", tx.ExternalID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// RecentWinningBids returns the latest completed waiver bids at a position, newest first.
func (s *GormStore) RecentWinningBids(ctx context.Context, leagueID string, pos models.Position, limit int) ([]int, error) {
	var bids []int
	q := s.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("league_id = ? AND type = ? AND status = ? AND waiver_bid > 0", leagueID, models.TransactionWaiver, models.TransactionComplete)
	if pos != "" {
		q = q.Where("position = ?", pos)
	}
	err := q.Order("occurred_at DESC").Limit(limit).Pluck("waiver_bid", &bids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load winning bids for league %s: %w", leagueID, err)
	}
	return bids, nil
}

// Recommendations

func (s *GormStore) ReplaceTradeRecommendations(ctx context.Context, leagueID string, season, week int, recs []models.TradeRecommendation) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("league_id = ? AND season = ? AND week = ?", leagueID, season, week).
			Delete(&models.TradeRecommendation{}).Error
		if err != nil {
			return fmt.Errorf("failed to clear trade recommendations: %w", err)
		}
		if len(recs) == 0 {
			return nil
		}
		if err := tx.Create(&recs).Error; err != nil {
			return fmt.Errorf("failed to insert trade recommendations: %w", err)
		}
		return nil
	})
}

func (s *GormStore) ListTradeRecommendations(ctx context.Context, leagueID string, season, week int) ([]models.TradeRecommendation, error) {
	var recs []models.TradeRecommendation
	err := s.db.WithContext(ctx).
		Where("league_id = ? AND season = ? AND week = ?", leagueID, season, week).
		Order("rank").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list trade recommendations: %w", err)
	}
	return recs, nil
}

func (s *GormStore) ReplaceWaiverRecommendations(ctx context.Context, leagueID string, season, week int, recs []models.WaiverRecommendation) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("league_id = ? AND season = ? AND week = ?", leagueID, season, week).
			Delete(&models.WaiverRecommendation{}).Error
		if err != nil {
			return fmt.Errorf("failed to clear waiver recommendations: %w", err)
		}
		if len(recs) == 0 {
			return nil
		}
		if err := tx.Create(&recs).Error; err != nil {
			return fmt.Errorf("failed to insert waiver recommendations: %w", err)
		}
		return nil
	})
}

func (s *GormStore) ListWaiverRecommendations(ctx context.Context, leagueID string, season, week int) ([]models.WaiverRecommendation, error) {
	var recs []models.WaiverRecommendation
	err := s.db.WithContext(ctx).
		Where("league_id = ? AND season = ? AND week = ?", leagueID, season, week).
		Order("rank").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list waiver recommendations: %w", err)
	}
	return recs, nil
}

// Injury alerts

func (s *GormStore) CreateInjuryAlert(ctx context.Context, alert *models.InjuryAlert) error {
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	if err := s.db.WithContext(ctx).Create(alert).Error; err != nil {
		return fmt.Errorf("failed to create injury alert: %w", err)
	}
	return nil
}

func (s *GormStore) UpdateInjuryAlert(ctx context.Context, alert *models.InjuryAlert) error {
	if err := s.db.WithContext(ctx).Save(alert).Error; err != nil {
		return fmt.Errorf("failed to update injury alert %s: %w", alert.ID, err)
	}
	return nil
}

func (s *GormStore) GetInjuryAlert(ctx context.Context, id string) (*models.InjuryAlert, error) {
	var alert models.InjuryAlert
	if err := s.db.WithContext(ctx).First(&alert, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "injury alert "+id)
	}
	return &alert, nil
}

func (s *GormStore) ListInjuryAlerts(ctx context.Context, filter AlertFilter) ([]models.InjuryAlert, error) {
	q := s.db.WithContext(ctx).Model(&models.InjuryAlert{})
	if filter.LeagueID != "" {
		q = q.Where("league_id = ?", filter.LeagueID)
	}
	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.UnacknowledgedOnly {
		q = q.Where("acknowledged = ?", false)
	}
	if filter.Since != nil {
		q = q.Where("created_at >= ?", *filter.Since)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var alerts []models.InjuryAlert
	if err := q.Order("created_at DESC").Find(&alerts).Error; err != nil {
		return nil, fmt.Errorf("failed to list injury alerts: %w", err)
	}
	return alerts, nil
}

// Preferences

func (s *GormStore) GetUserPreferences(ctx context.Context, userID string) (*models.UserPreferences, error) {
	var prefs models.UserPreferences
	if err := s.db.WithContext(ctx).First(&prefs, "user_id = ?", userID).Error; err != nil {
		return nil, notFound(err, "preferences for user "+userID)
	}
	return &prefs, nil
}

func (s *GormStore) SaveUserPreferences(ctx context.Context, prefs *models.UserPreferences) error {
	if err := s.db.WithContext(ctx).Save(prefs).Error; err != nil {
		return fmt.Errorf("failed to save preferences for user %s: %w", prefs.UserID, err)
	}
	return nil
}
