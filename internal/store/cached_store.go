package store

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jstittsworth/fantasy-advisor/internal/cache"
	"github.com/jstittsworth/fantasy-advisor/internal/models"
)

// CachedStore puts a read-through cache in front of the hot single-record reads.
// Every cache failure falls through to the wrapped store.
type CachedStore struct {
	Store
	cache  cache.Cache
	ttl    time.Duration
	logger *logrus.Logger
}

func NewCachedStore(inner Store, c cache.Cache, ttl time.Duration, logger *logrus.Logger) *CachedStore {
	return &CachedStore{
		Store:  inner,
		cache:  c,
		ttl:    ttl,
		logger: logger,
	}
}

func (s *CachedStore) get(ctx context.Context, key string, dest interface{}) bool {
	err := s.cache.Get(ctx, key, dest)
	if err == nil {
		return true
	}
	if !errors.Is(err, cache.ErrMiss) {
		s.logger.WithError(err).WithField("key", key).Warn("Cache read failed")
	}
	return false
}

func (s *CachedStore) set(ctx context.Context, key string, value interface{}) {
	if err := s.cache.Set(ctx, key, value, s.ttl); err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("Cache write failed")
	}
}

func (s *CachedStore) invalidate(ctx context.Context, keys ...string) {
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.logger.WithError(err).WithField("keys", keys).Warn("Cache invalidation failed")
	}
}

func (s *CachedStore) invalidatePattern(ctx context.Context, pattern string) {
	if _, err := s.cache.DeletePattern(ctx, pattern); err != nil {
		s.logger.WithError(err).WithField("pattern", pattern).Warn("Cache pattern invalidation failed")
	}
}

func (s *CachedStore) GetPlayer(ctx context.Context, id string) (*models.Player, error) {
	key := cache.PlayerKey(id)
	var player models.Player
	if s.get(ctx, key, &player) {
		return &player, nil
	}

	p, err := s.Store.GetPlayer(ctx, id)
	if err != nil {
		return nil, err
	}
	s.set(ctx, key, p)
	return p, nil
}

func (s *CachedStore) UpsertPlayers(ctx context.Context, players []models.Player) error {
	if err := s.Store.UpsertPlayers(ctx, players); err != nil {
		return err
	}
	keys := make([]string, 0, len(players))
	for _, p := range players {
		keys = append(keys, cache.PlayerKey(p.ID))
	}
	s.invalidate(ctx, keys...)
	return nil
}

func (s *CachedStore) UpdatePlayerStatus(ctx context.Context, id string, status models.PlayerStatus, injury string) error {
	if err := s.Store.UpdatePlayerStatus(ctx, id, status, injury); err != nil {
		return err
	}
	s.invalidate(ctx, cache.PlayerKey(id))
	return nil
}

func (s *CachedStore) GetLeague(ctx context.Context, id string) (*models.League, error) {
	key := cache.LeagueKey(id)
	var league models.League
	if s.get(ctx, key, &league) {
		return &league, nil
	}

	l, err := s.Store.GetLeague(ctx, id)
	if err != nil {
		return nil, err
	}
	s.set(ctx, key, l)
	return l, nil
}

func (s *CachedStore) SaveLeague(ctx context.Context, league *models.League) error {
	if err := s.Store.SaveLeague(ctx, league); err != nil {
		return err
	}
	s.invalidate(ctx, cache.LeagueKey(league.ID))
	return nil
}

func (s *CachedStore) GetProjection(ctx context.Context, playerID string, season, week int, source models.ProjectionSource) (*models.Projection, error) {
	key := cache.ProjectionKey(playerID, season, week, string(source))
	var projection models.Projection
	if s.get(ctx, key, &projection) {
		return &projection, nil
	}

	p, err := s.Store.GetProjection(ctx, playerID, season, week, source)
	if err != nil {
		return nil, err
	}
	s.set(ctx, key, p)
	return p, nil
}

func (s *CachedStore) FindProjection(ctx context.Context, playerID string, season, week int) (*models.Projection, error) {
	key := cache.ProjectionKey(playerID, season, week, "best")
	var projection models.Projection
	if s.get(ctx, key, &projection) {
		return &projection, nil
	}

	p, err := s.Store.FindProjection(ctx, playerID, season, week)
	if err != nil {
		return nil, err
	}
	s.set(ctx, key, p)
	return p, nil
}

func (s *CachedStore) UpsertProjections(ctx context.Context, projections []models.Projection) error {
	if err := s.Store.UpsertProjections(ctx, projections); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(projections))
	for _, p := range projections {
		if _, ok := seen[p.PlayerID]; ok {
			continue
		}
		seen[p.PlayerID] = struct{}{}
		s.invalidatePattern(ctx, cache.ProjectionPattern(p.PlayerID))
	}
	return nil
}

func (s *CachedStore) ListRosterSlots(ctx context.Context, leagueID string) ([]models.RosterSlot, error) {
	key := cache.RosterKey(leagueID)
	var slots []models.RosterSlot
	if s.get(ctx, key, &slots) {
		return slots, nil
	}

	slots, err := s.Store.ListRosterSlots(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	s.set(ctx, key, slots)
	return slots, nil
}

func (s *CachedStore) ReplaceRosterSlots(ctx context.Context, leagueID string, slots []models.RosterSlot) error {
	if err := s.Store.ReplaceRosterSlots(ctx, leagueID, slots); err != nil {
		return err
	}
	s.invalidatePattern(ctx, cache.RosterPattern(leagueID))
	s.invalidatePattern(ctx, cache.ValuationPattern(leagueID))
	return nil
}
