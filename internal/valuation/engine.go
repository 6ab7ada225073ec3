// Package valuation scores players against their own projections and their
// positional peers to surface sell-high and buy-low candidates.
package valuation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/jstittsworth/fantasy-advisor/internal/cache"
	"github.com/jstittsworth/fantasy-advisor/internal/models"
	"github.com/jstittsworth/fantasy-advisor/internal/store"
)

// ErrNoProjection means the player has no rest-of-season projection to value.
var ErrNoProjection = errors.New("no rest-of-season projection")

type DataSource interface {
	GetPlayer(ctx context.Context, id string) (*models.Player, error)
	GetPlayers(ctx context.Context, ids []string) (map[string]models.Player, error)
	GetLeague(ctx context.Context, id string) (*models.League, error)
	FindProjection(ctx context.Context, playerID string, season, week int) (*models.Projection, error)
	ListPlayersByPosition(ctx context.Context, pos models.Position) ([]models.Player, error)
	WeeklyStatsForPlayers(ctx context.Context, playerIDs []string, season, fromWeek, toWeek int) ([]models.WeeklyStat, error)
	ProjectionsForPlayers(ctx context.Context, playerIDs []string, season, fromWeek, toWeek int) ([]models.Projection, error)
}

type Engine struct {
	data     DataSource
	cache    cache.Cache
	ttl      time.Duration
	lookback int
	now      func() time.Time
	logger   *logrus.Logger
}

// NewEngine builds a valuation engine. c may be nil to disable caching.
func NewEngine(data DataSource, c cache.Cache, ttl time.Duration, lookback int, logger *logrus.Logger) *Engine {
	if lookback < MinMatchedWeeks {
		lookback = DefaultLookback
	}
	return &Engine{
		data:     data,
		cache:    c,
		ttl:      ttl,
		lookback: lookback,
		now:      time.Now,
		logger:   logger,
	}
}

// peerRatios maps player id to performance ratio for players with enough matched weeks.
type peerRatios map[string]float64

// Value returns the valuation of one player in one league for the current week.
func (e *Engine) Value(ctx context.Context, playerID, leagueID string, season, week int) (*models.PlayerValuation, error) {
	key := cache.ValuationKey(playerID, leagueID, season, week)
	var cached models.PlayerValuation
	if e.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	league, err := e.data.GetLeague(ctx, leagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to load league %s: %w", leagueID, err)
	}
	player, err := e.data.GetPlayer(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load player %s: %w", playerID, err)
	}

	v, err := e.value(ctx, player, league.ScoringType, leagueID, season, week)
	if err != nil {
		return nil, err
	}
	e.cacheSet(ctx, key, v)
	return v, nil
}

// ValueMany values every player it can; players without a projection or with
// read failures are left out of the result.
func (e *Engine) ValueMany(ctx context.Context, playerIDs []string, leagueID string, season, week int) (map[string]*models.PlayerValuation, error) {
	league, err := e.data.GetLeague(ctx, leagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to load league %s: %w", leagueID, err)
	}
	players, err := e.data.GetPlayers(ctx, playerIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load players: %w", err)
	}

	out := make(map[string]*models.PlayerValuation, len(playerIDs))
	for _, id := range playerIDs {
		key := cache.ValuationKey(id, leagueID, season, week)
		var cached models.PlayerValuation
		if e.cacheGet(ctx, key, &cached) {
			out[id] = &cached
			continue
		}

		player, ok := players[id]
		if !ok {
			continue
		}
		v, err := e.value(ctx, &player, league.ScoringType, leagueID, season, week)
		if err != nil {
			if !errors.Is(err, ErrNoProjection) {
				e.logger.WithError(err).WithField("player_id", id).Warn("Valuation skipped")
			}
			continue
		}
		e.cacheSet(ctx, key, v)
		out[id] = v
	}
	return out, nil
}

func (e *Engine) value(ctx context.Context, player *models.Player, scoring models.ScoringType, leagueID string, season, week int) (*models.PlayerValuation, error) {
	ros, err := e.data.FindProjection(ctx, player.ID, season, models.RestOfSeasonWeek)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("player %s: %w", player.ID, ErrNoProjection)
		}
		return nil, fmt.Errorf("failed to load projection for %s: %w", player.ID, err)
	}

	ratios, err := e.ratiosFor(ctx, []string{player.ID}, scoring, season, week)
	if err != nil {
		return nil, err
	}
	ratio, matched := 1.0, 0
	if r, ok := ratios[player.ID]; ok {
		ratio, matched = r.ratio, r.matched
	}

	z := 0.0
	if matched >= MinMatchedWeeks {
		peers, err := e.peerDistribution(ctx, player.Position, scoring, season, week)
		if err != nil {
			e.logger.WithError(err).WithField("position", player.Position).Warn("Peer distribution unavailable, using canonical")
			peers = peerRatios{}
		}
		z = ZScore(ratio, peers, player.ID)
	}

	risk := InjuryRisk(player.Status)
	v := &models.PlayerValuation{
		PlayerID:         player.ID,
		LeagueID:         leagueID,
		Season:           season,
		Week:             week,
		Position:         player.Position,
		CurrentValue:     ros.ProjectedPoints * ratio,
		ProjectedValue:   ros.ProjectedPoints,
		PerformanceRatio: ratio,
		ZScore:           z,
		MatchedWeeks:     matched,
		Trend:            TrendFor(ratio),
		InjuryRisk:       risk,
		SellHigh:         SellHigh(ratio, z),
		BuyLow:           BuyLow(ratio, risk),
		ComputedAt:       e.now().UTC(),
	}

	e.logger.WithFields(logrus.Fields{
		"player_id": player.ID,
		"league_id": leagueID,
		"ratio":     ratio,
		"z_score":   z,
		"sell_high": v.SellHigh,
		"buy_low":   v.BuyLow,
	}).Debug("Player valued")

	return v, nil
}

// ZScore places ratio in the peer distribution, excluding the player being
// valued. Too few peers falls back to a canonical normal around 1.0.
func ZScore(ratio float64, peers peerRatios, excludeID string) float64 {
	values := make([]float64, 0, len(peers))
	for id, r := range peers {
		if id == excludeID {
			continue
		}
		values = append(values, r)
	}
	if len(values) < MinPeers {
		return (ratio - canonicalMean) / canonicalStdDev
	}
	mean, std := stat.MeanStdDev(values, nil)
	if std == 0 {
		return 0
	}
	return (ratio - mean) / std
}

func (e *Engine) window(week int) (from, to int) {
	from = week - e.lookback
	if from < 1 {
		from = 1
	}
	return from, week - 1
}

type ratioResult struct {
	ratio   float64
	matched int
}

func (e *Engine) ratiosFor(ctx context.Context, playerIDs []string, scoring models.ScoringType, season, week int) (map[string]ratioResult, error) {
	from, to := e.window(week)
	out := make(map[string]ratioResult, len(playerIDs))
	if to < from || len(playerIDs) == 0 {
		return out, nil
	}

	stats, err := e.data.WeeklyStatsForPlayers(ctx, playerIDs, season, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load actuals: %w", err)
	}
	projections, err := e.data.ProjectionsForPlayers(ctx, playerIDs, season, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load projections: %w", err)
	}

	actual := make(map[string]map[int]float64)
	for _, s := range stats {
		if actual[s.PlayerID] == nil {
			actual[s.PlayerID] = make(map[int]float64)
		}
		actual[s.PlayerID][s.Week] = s.Points(scoring)
	}
	// historical_analysis wins over any other source for the same week
	projected := make(map[string]map[int]float64)
	for _, preferred := range []bool{true, false} {
		for _, p := range projections {
			if (p.Source == models.SourceHistoricalAnalysis) != preferred {
				continue
			}
			if projected[p.PlayerID] == nil {
				projected[p.PlayerID] = make(map[int]float64)
			}
			if _, seen := projected[p.PlayerID][p.Week]; !seen {
				projected[p.PlayerID][p.Week] = p.ProjectedPoints
			}
		}
	}

	for _, id := range playerIDs {
		r, n := PerformanceRatio(actual[id], projected[id])
		out[id] = ratioResult{ratio: r, matched: n}
	}
	return out, nil
}

// PerformanceRatio divides average actual points by average projected points
// over weeks present in both maps. Fewer than two matched weeks, or a zero
// projected average, is neutral.
func PerformanceRatio(actual, projected map[int]float64) (float64, int) {
	var sumActual, sumProjected float64
	matched := 0
	for week, a := range actual {
		p, ok := projected[week]
		if !ok {
			continue
		}
		sumActual += a
		sumProjected += p
		matched++
	}
	if matched < MinMatchedWeeks || sumProjected <= 0 {
		return 1.0, matched
	}
	return (sumActual / float64(matched)) / (sumProjected / float64(matched)), matched
}

func (e *Engine) peerDistribution(ctx context.Context, pos models.Position, scoring models.ScoringType, season, week int) (peerRatios, error) {
	key := cache.PeerDistributionKey(string(pos), string(scoring), season, week)
	var cached peerRatios
	if e.cacheGet(ctx, key, &cached) {
		return cached, nil
	}

	players, err := e.data.ListPlayersByPosition(ctx, pos)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(players))
	for _, p := range players {
		ids = append(ids, p.ID)
	}

	ratios, err := e.ratiosFor(ctx, ids, scoring, season, week)
	if err != nil {
		return nil, err
	}
	peers := make(peerRatios, len(ratios))
	for id, r := range ratios {
		if r.matched >= MinMatchedWeeks {
			peers[id] = r.ratio
		}
	}

	e.cacheSet(ctx, key, peers)
	return peers, nil
}

func (e *Engine) cacheGet(ctx context.Context, key string, dest interface{}) bool {
	if e.cache == nil {
		return false
	}
	err := e.cache.Get(ctx, key, dest)
	if err != nil && !errors.Is(err, cache.ErrMiss) {
		e.logger.WithError(err).WithField("key", key).Warn("Cache read failed")
	}
	return err == nil
}

func (e *Engine) cacheSet(ctx context.Context, key string, value interface{}) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Set(ctx, key, value, e.ttl); err != nil {
		e.logger.WithError(err).WithField("key", key).Warn("Cache write failed")
	}
}
