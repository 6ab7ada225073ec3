// Package trade searches trade packages between the user's roster and every
// opponent and ranks them by fairness, predicted acceptance and value gained.
package trade

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jstittsworth/fantasy-advisor/internal/models"
)

var (
	ErrNoUserRoster   = errors.New("league has no roster for the user")
	ErrPlayerNotOwned = errors.New("player is not on the expected roster")
	ErrEmptySide      = errors.New("both sides of a trade need at least one player")
)

type DataSource interface {
	GetLeague(ctx context.Context, id string) (*models.League, error)
	ListLeagueRosters(ctx context.Context, leagueID string) ([]models.LeagueRoster, error)
	ReplaceTradeRecommendations(ctx context.Context, leagueID string, season, week int, recs []models.TradeRecommendation) error
}

type Valuer interface {
	ValueMany(ctx context.Context, playerIDs []string, leagueID string, season, week int) (map[string]*models.PlayerValuation, error)
}

type ProfileSource interface {
	Profile(ctx context.Context, leagueID string, rosterID int) (*models.OpponentProfile, error)
}

type Generator struct {
	data     DataSource
	valuer   Valuer
	profiles ProfileSource
	topN     int
	logger   *logrus.Logger
}

func NewGenerator(data DataSource, valuer Valuer, profiles ProfileSource, topN int, logger *logrus.Logger) *Generator {
	if topN <= 0 {
		topN = defaultTopN
	}
	return &Generator{
		data:     data,
		valuer:   valuer,
		profiles: profiles,
		topN:     topN,
		logger:   logger,
	}
}

type candidate struct {
	opponent   int
	give       []*models.PlayerValuation
	receive    []*models.PlayerValuation
	fairness   float64
	acceptance float64
	gained     float64
	score      float64
}

type side struct {
	rosterID int
	players  []*models.PlayerValuation
}

// Generate rebuilds the top trade recommendations for a league week and
// replaces whatever was stored for it before.
func (g *Generator) Generate(ctx context.Context, leagueID string, season, week int) ([]models.TradeRecommendation, error) {
	start := time.Now()

	user, opponents, err := g.loadSides(ctx, leagueID, season, week)
	if err != nil {
		return nil, err
	}

	var sellHigh []*models.PlayerValuation
	for _, v := range user.players {
		if v.SellHigh {
			sellHigh = append(sellHigh, v)
		}
	}

	var candidates []candidate
	if len(sellHigh) > 0 {
		for _, opp := range opponents {
			profile, err := g.profiles.Profile(ctx, leagueID, opp.rosterID)
			if err != nil {
				g.logger.WithError(err).WithField("roster_id", opp.rosterID).Warn("Skipping opponent without profile")
				continue
			}
			candidates = append(candidates, g.candidatesFor(user, opp, profile)...)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > g.topN {
		candidates = candidates[:g.topN]
	}

	generationID := uuid.NewString()
	recs := make([]models.TradeRecommendation, 0, len(candidates))
	for i, c := range candidates {
		rec := toRecommendation(c, leagueID, season, week)
		rec.GenerationID = generationID
		rec.Rank = i + 1
		recs = append(recs, rec)
	}

	if err := g.data.ReplaceTradeRecommendations(ctx, leagueID, season, week, recs); err != nil {
		return nil, fmt.Errorf("failed to persist trade recommendations: %w", err)
	}

	g.logger.WithFields(logrus.Fields{
		"league_id":       leagueID,
		"week":            week,
		"generation_id":   generationID,
		"sell_high":       len(sellHigh),
		"opponents":       len(opponents),
		"recommendations": len(recs),
		"duration_ms":     time.Since(start).Milliseconds(),
	}).Info("Trade recommendations generated")

	return recs, nil
}

// Evaluate scores a user-proposed trade with the same model. Nothing is stored.
func (g *Generator) Evaluate(ctx context.Context, leagueID string, season, week, opponentRosterID int, giveIDs, receiveIDs []string) (*models.TradeRecommendation, error) {
	if len(giveIDs) == 0 || len(receiveIDs) == 0 {
		return nil, ErrEmptySide
	}

	user, opponents, err := g.loadSides(ctx, leagueID, season, week)
	if err != nil {
		return nil, err
	}
	var opp *side
	for i := range opponents {
		if opponents[i].rosterID == opponentRosterID {
			opp = &opponents[i]
			break
		}
	}
	if opp == nil {
		return nil, fmt.Errorf("roster %d: %w", opponentRosterID, ErrPlayerNotOwned)
	}

	give, err := pick(user.players, giveIDs)
	if err != nil {
		return nil, err
	}
	receive, err := pick(opp.players, receiveIDs)
	if err != nil {
		return nil, err
	}

	profile, err := g.profiles.Profile(ctx, leagueID, opponentRosterID)
	if err != nil {
		return nil, err
	}

	c := score(opponentRosterID, give, receive, profile)
	rec := toRecommendation(c, leagueID, season, week)
	return &rec, nil
}

func (g *Generator) loadSides(ctx context.Context, leagueID string, season, week int) (side, []side, error) {
	league, err := g.data.GetLeague(ctx, leagueID)
	if err != nil {
		return side{}, nil, fmt.Errorf("failed to load league %s: %w", leagueID, err)
	}
	rosters, err := g.data.ListLeagueRosters(ctx, leagueID)
	if err != nil {
		return side{}, nil, fmt.Errorf("failed to load rosters for %s: %w", leagueID, err)
	}

	var ids []string
	for _, r := range rosters {
		ids = append(ids, r.PlayerIDs...)
	}
	values, err := g.valuer.ValueMany(ctx, ids, leagueID, season, week)
	if err != nil {
		return side{}, nil, fmt.Errorf("failed to value rosters: %w", err)
	}

	var (
		user      side
		found     bool
		opponents []side
	)
	for _, r := range rosters {
		s := side{rosterID: r.RosterID, players: topByValue(r.PlayerIDs, values, maxRosterCandidate)}
		if r.RosterID == league.UserRosterID {
			user, found = s, true
			continue
		}
		opponents = append(opponents, s)
	}
	if !found {
		return side{}, nil, fmt.Errorf("league %s: %w", leagueID, ErrNoUserRoster)
	}
	return user, opponents, nil
}

func (g *Generator) candidatesFor(user, opp side, profile *models.OpponentProfile) []candidate {
	var out []candidate
	keep := func(give, receive []*models.PlayerValuation) {
		c := score(opp.rosterID, give, receive, profile)
		if Retained(c.fairness, c.acceptance) {
			out = append(out, c)
		}
	}

	var buyLow []*models.PlayerValuation
	for _, v := range opp.players {
		if v.BuyLow {
			buyLow = append(buyLow, v)
		}
	}
	if len(buyLow) == 0 {
		return nil
	}

	// 1-for-1: sell-high for buy-low
	for _, u := range user.players {
		if !u.SellHigh {
			continue
		}
		for _, o := range buyLow {
			keep([]*models.PlayerValuation{u}, []*models.PlayerValuation{o})
		}
	}

	userPairs := pairsWith(user.players, func(v *models.PlayerValuation) bool { return v.SellHigh })

	// 2-for-1: two of ours, one of them selling high, for one buy-low
	for _, pair := range userPairs {
		for _, o := range buyLow {
			keep(pair, []*models.PlayerValuation{o})
		}
	}

	// 2-for-2: as above, for two of theirs with at least one buying low
	oppPairs := pairsWith(opp.players, func(v *models.PlayerValuation) bool { return v.BuyLow })
	for _, pair := range userPairs {
		for _, theirs := range oppPairs {
			keep(pair, theirs)
		}
	}
	return out
}

func score(opponent int, give, receive []*models.PlayerValuation, profile *models.OpponentProfile) candidate {
	giveValue, receiveValue := totalValue(give), totalValue(receive)
	fairness := Fairness(giveValue, receiveValue)
	acceptance := Acceptance(profile, fairness, give, len(receive))
	gained := receiveValue - giveValue

	return candidate{
		opponent:   opponent,
		give:       give,
		receive:    receive,
		fairness:   fairness,
		acceptance: acceptance,
		gained:     gained,
		score:      acceptance * fairness * gained,
	}
}

// pairsWith lists unordered pairs in which at least one player satisfies want.
func pairsWith(players []*models.PlayerValuation, want func(*models.PlayerValuation) bool) [][]*models.PlayerValuation {
	var out [][]*models.PlayerValuation
	for i := 0; i < len(players); i++ {
		for j := i + 1; j < len(players); j++ {
			if want(players[i]) || want(players[j]) {
				out = append(out, []*models.PlayerValuation{players[i], players[j]})
			}
		}
	}
	return out
}

func topByValue(ids []string, values map[string]*models.PlayerValuation, limit int) []*models.PlayerValuation {
	players := make([]*models.PlayerValuation, 0, len(ids))
	for _, id := range ids {
		if v, ok := values[id]; ok {
			players = append(players, v)
		}
	}
	sort.SliceStable(players, func(i, j int) bool {
		return players[i].ProjectedValue > players[j].ProjectedValue
	})
	if len(players) > limit {
		players = players[:limit]
	}
	return players
}

func pick(players []*models.PlayerValuation, ids []string) ([]*models.PlayerValuation, error) {
	byID := make(map[string]*models.PlayerValuation, len(players))
	for _, v := range players {
		byID[v.PlayerID] = v
	}
	out := make([]*models.PlayerValuation, 0, len(ids))
	for _, id := range ids {
		v, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("player %s: %w", id, ErrPlayerNotOwned)
		}
		out = append(out, v)
	}
	return out, nil
}

func playerIDs(side []*models.PlayerValuation) []string {
	out := make([]string, len(side))
	for i, v := range side {
		out[i] = v.PlayerID
	}
	return out
}

func toRecommendation(c candidate, leagueID string, season, week int) models.TradeRecommendation {
	return models.TradeRecommendation{
		LeagueID:              leagueID,
		Season:                season,
		Week:                  week,
		OpponentRosterID:      c.opponent,
		Shape:                 shapeOf(len(c.give), len(c.receive)),
		GivePlayerIDs:         playerIDs(c.give),
		ReceivePlayerIDs:      playerIDs(c.receive),
		GiveValue:             totalValue(c.give),
		ReceiveValue:          totalValue(c.receive),
		ValueGained:           c.gained,
		FairnessScore:         c.fairness,
		AcceptanceProbability: c.acceptance,
		Score:                 c.score,
		Rationale:             rationale(c),
	}
}

func rationale(c candidate) string {
	var parts []string
	for _, v := range c.give {
		if v.SellHigh {
			parts = append(parts, fmt.Sprintf("sell %s high (%.0f%% of projection)", v.PlayerID, v.PerformanceRatio*100))
		}
	}
	for _, v := range c.receive {
		if v.BuyLow {
			parts = append(parts, fmt.Sprintf("buy %s low (%.0f%% of projection)", v.PlayerID, v.PerformanceRatio*100))
		}
	}
	parts = append(parts, fmt.Sprintf("fairness %.2f, acceptance %.0f%%, value %+.1f",
		c.fairness, c.acceptance*100, c.gained))
	return strings.Join(parts, "; ")
}
