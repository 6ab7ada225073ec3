// Package ingest copies feed data into the store in bounded batches.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/jstittsworth/fantasy-advisor/internal/models"
	"github.com/jstittsworth/fantasy-advisor/internal/opponent"
	"github.com/jstittsworth/fantasy-advisor/internal/providers"
	"github.com/jstittsworth/fantasy-advisor/internal/scoring"
	"github.com/jstittsworth/fantasy-advisor/internal/store"
)

var ErrOwnerRosterMissing = errors.New("league owner has no roster")

type DataStore interface {
	opponent.TransactionStore
	UpsertPlayers(ctx context.Context, players []models.Player) error
	ListActivePlayers(ctx context.Context) ([]models.Player, error)
	UpsertWeeklyStats(ctx context.Context, stats []models.WeeklyStat) error
	UpsertProjections(ctx context.Context, projections []models.Projection) error
	GetLeague(ctx context.Context, id string) (*models.League, error)
	ListActiveLeagues(ctx context.Context) ([]models.League, error)
	SaveLeague(ctx context.Context, league *models.League) error
	ReplaceRosterSlots(ctx context.Context, leagueID string, slots []models.RosterSlot) error
	ReplaceLeagueRosters(ctx context.Context, leagueID string, rosters []models.LeagueRoster) error
}

type Projector interface {
	Project(ctx context.Context, playerID string, season, week int) (*models.Projection, error)
	ProjectRestOfSeason(ctx context.Context, playerID string, season, week int) (*models.Projection, error)
}

type Syncer struct {
	feed          providers.Feed
	store         DataStore
	projector     Projector
	learner       *opponent.Learner
	clock         clockwork.Clock
	backfillDelay time.Duration
	logger        *logrus.Logger
}

func NewSyncer(feed providers.Feed, data DataStore, projector Projector, learner *opponent.Learner, clock clockwork.Clock, backfillDelay time.Duration, logger *logrus.Logger) *Syncer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Syncer{
		feed:          feed,
		store:         data,
		projector:     projector,
		learner:       learner,
		clock:         clock,
		backfillDelay: backfillDelay,
		logger:        logger,
	}
}

// CurrentWeek asks the feed for the season and week in progress.
func (s *Syncer) CurrentWeek(ctx context.Context) (season, week int, err error) {
	state, err := s.feed.GetState(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to fetch league state: %w", err)
	}
	return state.Season, state.Week, nil
}

// SyncPlayers refreshes the player directory. Players at positions the
// engines do not value are skipped.
func (s *Syncer) SyncPlayers(ctx context.Context) (*BatchResult, error) {
	feedPlayers, err := s.feed.GetAllPlayers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch players: %w", err)
	}

	players := make([]models.Player, 0, len(feedPlayers))
	for _, fp := range feedPlayers {
		if !fp.Position.IsValid() {
			continue
		}
		players = append(players, models.Player{
			ID:           fp.PlayerID,
			FullName:     fp.FullName,
			Position:     fp.Position,
			Team:         fp.Team,
			Status:       fp.Status,
			InjuryStatus: fp.InjuryStatus,
			Active:       fp.Active,
		})
	}

	result := &BatchResult{}
	for i, batch := range chunk(players, PlayerChunkSize) {
		if err := s.store.UpsertPlayers(ctx, batch); err != nil {
			result.fail(len(batch), "players chunk %d: %v", i, err)
			continue
		}
		result.ok(len(batch))
	}

	s.logBatch("players", result, logrus.Fields{})
	return result, nil
}

// SyncWeeklyStats stores a week of stat lines with fantasy totals for every
// scoring type.
func (s *Syncer) SyncWeeklyStats(ctx context.Context, season, week int) (*BatchResult, error) {
	lines, err := s.feed.GetWeeklyStats(ctx, season, week)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch stats for %d week %d: %w", season, week, err)
	}

	final := true
	if curSeason, curWeek, err := s.CurrentWeek(ctx); err == nil && curSeason == season && week >= curWeek {
		final = false
	}

	result := &BatchResult{}
	for i, batch := range chunk(lines, StatChunkSize) {
		rows := make([]models.WeeklyStat, 0, len(batch))
		for _, line := range batch {
			row := models.WeeklyStat{
				PlayerID: line.PlayerID,
				Season:   season,
				Week:     week,
				Stats:    datatypes.NewJSONType(line.Stats),
				IsFinal:  final,
			}
			scoring.ApplyTotals(&row)
			rows = append(rows, row)
		}
		if err := s.store.UpsertWeeklyStats(ctx, rows); err != nil {
			result.fail(len(batch), "stats chunk %d: %v", i, err)
			continue
		}
		result.ok(len(batch))
	}

	s.logBatch("weekly_stats", result, logrus.Fields{"season": season, "week": week})
	return result, nil
}

// SyncProjections recomputes weekly and rest-of-season projections for every
// active player. Players in a chunk are projected concurrently.
func (s *Syncer) SyncProjections(ctx context.Context, season, week int) (*BatchResult, error) {
	players, err := s.store.ListActivePlayers(ctx)
	if err != nil {
		return nil, err
	}

	result := &BatchResult{}
	for _, batch := range chunk(players, ProjectionChunkSize) {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		var (
			wg          sync.WaitGroup
			mu          sync.Mutex
			projections []models.Projection
			chunkResult BatchResult
		)
		for _, p := range batch {
			wg.Add(1)
			go func(playerID string) {
				defer wg.Done()
				weekly, err := s.projector.Project(ctx, playerID, season, week)
				var ros *models.Projection
				if err == nil {
					ros, err = s.projector.ProjectRestOfSeason(ctx, playerID, season, week)
				}

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					chunkResult.fail(1, "player %s: %v", playerID, err)
					return
				}
				projections = append(projections, *weekly, *ros)
				chunkResult.ok(1)
			}(p.ID)
		}
		wg.Wait()

		if err := s.store.UpsertProjections(ctx, projections); err != nil {
			chunkResult.Failed += chunkResult.Succeeded
			chunkResult.Succeeded = 0
			chunkResult.Errors = append(chunkResult.Errors, fmt.Sprintf("projections chunk: %v", err))
		}
		result.merge(&chunkResult)
	}

	s.logBatch("projections", result, logrus.Fields{"season": season, "week": week})
	return result, nil
}

// RegisterLeague records a league for the given owner and pulls its rosters.
func (s *Syncer) RegisterLeague(ctx context.Context, leagueID, ownerUserID, timezone string) (*models.League, error) {
	league, err := s.store.GetLeague(ctx, leagueID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if league == nil {
		league = &models.League{ID: leagueID, Active: true}
	}
	league.OwnerUserID = ownerUserID
	if timezone != "" {
		league.Timezone = timezone
	}
	return s.syncLeague(ctx, league)
}

// SyncLeague refreshes metadata and rosters of a registered league. The
// owner's roster slots are replaced wholesale.
func (s *Syncer) SyncLeague(ctx context.Context, leagueID string) (*models.League, error) {
	league, err := s.store.GetLeague(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	return s.syncLeague(ctx, league)
}

func (s *Syncer) syncLeague(ctx context.Context, league *models.League) (*models.League, error) {
	info, err := s.feed.GetLeague(ctx, league.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch league %s: %w", league.ID, err)
	}
	rosters, err := s.feed.GetRosters(ctx, league.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rosters for league %s: %w", league.ID, err)
	}

	league.Name = info.Name
	league.Season = info.Season
	league.ScoringType = info.ScoringType
	league.FAABBudget = info.WaiverBudget

	var owner *providers.RosterInfo
	snapshots := make([]models.LeagueRoster, 0, len(rosters))
	for i := range rosters {
		r := rosters[i]
		snapshots = append(snapshots, models.LeagueRoster{
			LeagueID:    league.ID,
			RosterID:    r.RosterID,
			OwnerUserID: r.OwnerID,
			PlayerIDs:   datatypes.JSONSlice[string](r.Players),
		})
		if r.OwnerID == league.OwnerUserID {
			owner = &rosters[i]
		}
	}
	if owner == nil {
		return nil, fmt.Errorf("league %s user %s: %w", league.ID, league.OwnerUserID, ErrOwnerRosterMissing)
	}

	league.UserRosterID = owner.RosterID
	league.FAABRemaining = info.WaiverBudget - owner.WaiverBudgetUsed
	if league.FAABRemaining < 0 {
		league.FAABRemaining = 0
	}

	starters := make(map[string]bool, len(owner.Starters))
	for _, id := range owner.Starters {
		starters[id] = true
	}
	slots := make([]models.RosterSlot, 0, len(owner.Players))
	for _, id := range owner.Players {
		slots = append(slots, models.RosterSlot{
			LeagueID:  league.ID,
			PlayerID:  id,
			RosterID:  owner.RosterID,
			IsStarter: starters[id],
		})
	}

	if err := s.store.ReplaceLeagueRosters(ctx, league.ID, snapshots); err != nil {
		return nil, err
	}
	if err := s.store.ReplaceRosterSlots(ctx, league.ID, slots); err != nil {
		return nil, err
	}
	now := s.clock.Now().UTC()
	league.LastSyncedAt = &now
	if err := s.store.SaveLeague(ctx, league); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"league_id":      league.ID,
		"rosters":        len(snapshots),
		"owner_roster":   league.UserRosterID,
		"faab_remaining": league.FAABRemaining,
	}).Info("League synced")
	return league, nil
}

// SyncAllLeagues refreshes every active league. One league failing does not
// stop the others.
func (s *Syncer) SyncAllLeagues(ctx context.Context) (*BatchResult, error) {
	leagues, err := s.store.ListActiveLeagues(ctx)
	if err != nil {
		return nil, err
	}
	result := &BatchResult{}
	for _, league := range leagues {
		if _, err := s.SyncLeague(ctx, league.ID); err != nil {
			result.fail(1, "league %s: %v", league.ID, err)
			continue
		}
		result.ok(1)
	}
	return result, nil
}

// SyncTransactions stores a week of league transactions and feeds new trades
// to the opponent learner.
func (s *Syncer) SyncTransactions(ctx context.Context, leagueID string, week int) (opponent.SyncResult, error) {
	league, err := s.store.GetLeague(ctx, leagueID)
	if err != nil {
		return opponent.SyncResult{}, err
	}
	txs, err := s.feed.GetTransactions(ctx, leagueID, week)
	if err != nil {
		return opponent.SyncResult{}, fmt.Errorf("failed to fetch transactions for league %s: %w", leagueID, err)
	}
	return s.learner.SyncTransactions(ctx, s.store, league, week, txs)
}

// SyncAllTransactions runs SyncTransactions for every active league.
func (s *Syncer) SyncAllTransactions(ctx context.Context, week int) (*BatchResult, error) {
	leagues, err := s.store.ListActiveLeagues(ctx)
	if err != nil {
		return nil, err
	}
	result := &BatchResult{}
	for _, league := range leagues {
		if _, err := s.SyncTransactions(ctx, league.ID, week); err != nil {
			result.fail(1, "league %s: %v", league.ID, err)
			continue
		}
		result.ok(1)
	}
	return result, nil
}

// Backfill loads weekly stats for a range of weeks, one week at a time, with
// a pause between weeks to stay inside the feed's rate limits.
func (s *Syncer) Backfill(ctx context.Context, season, fromWeek, toWeek int) (*BatchResult, error) {
	if fromWeek < 1 || toWeek < fromWeek {
		return nil, fmt.Errorf("invalid week range %d-%d", fromWeek, toWeek)
	}

	total := &BatchResult{}
	for week := fromWeek; week <= toWeek; week++ {
		res, err := s.SyncWeeklyStats(ctx, season, week)
		if err != nil {
			total.fail(1, "week %d: %v", week, err)
		} else {
			total.merge(res)
		}

		if week == toWeek || s.backfillDelay <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		case <-s.clock.After(s.backfillDelay):
		}
	}

	s.logBatch("backfill", total, logrus.Fields{"season": season, "from": fromWeek, "to": toWeek})
	return total, nil
}

func (s *Syncer) logBatch(kind string, result *BatchResult, fields logrus.Fields) {
	fields["kind"] = kind
	fields["processed"] = result.Processed
	fields["succeeded"] = result.Succeeded
	fields["failed"] = result.Failed
	entry := s.logger.WithFields(fields)
	if result.Failed > 0 {
		entry.WithField("errors", len(result.Errors)).Warn("Batch sync finished with failures")
		return
	}
	entry.Info("Batch sync finished")
}
