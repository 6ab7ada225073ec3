package trade

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/jstittsworth/fantasy-advisor/internal/models"
	"github.com/jstittsworth/fantasy-advisor/internal/opponent"
	"github.com/jstittsworth/fantasy-advisor/internal/store"
	"github.com/jstittsworth/fantasy-advisor/internal/store/storetest"
	"github.com/jstittsworth/fantasy-advisor/pkg/logger"
)

type fakeValuer map[string]*models.PlayerValuation

func (f fakeValuer) ValueMany(_ context.Context, ids []string, _ string, _, _ int) (map[string]*models.PlayerValuation, error) {
	out := make(map[string]*models.PlayerValuation)
	for _, id := range ids {
		if v, ok := f[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

func val(id string, pos models.Position, value float64, sellHigh, buyLow bool) *models.PlayerValuation {
	ratio := 1.0
	if sellHigh {
		ratio = 1.3
	}
	if buyLow {
		ratio = 0.7
	}
	return &models.PlayerValuation{
		PlayerID: id, Position: pos, ProjectedValue: value, CurrentValue: value * ratio,
		PerformanceRatio: ratio, SellHigh: sellHigh, BuyLow: buyLow,
	}
}

type GeneratorTestSuite struct {
	suite.Suite
	ctx     context.Context
	store   *store.GormStore
	learner *opponent.Learner
	values  fakeValuer
}

func TestGeneratorTestSuite(t *testing.T) {
	suite.Run(t, new(GeneratorTestSuite))
}

func (s *GeneratorTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = storetest.NewStore(s.T())
	s.learner = opponent.NewLearner(s.store, logger.NewTestLogger())

	s.Require().NoError(s.store.SaveLeague(s.ctx, &models.League{ID: "L1", Season: 2024, UserRosterID: 1, Active: true}))
	s.Require().NoError(s.store.ReplaceLeagueRosters(s.ctx, "L1", []models.LeagueRoster{
		{RosterID: 1, PlayerIDs: []string{"u1", "u2"}},
		{RosterID: 2, PlayerIDs: []string{"o1", "o2"}},
	}))
	s.values = fakeValuer{
		"u1": val("u1", models.PositionWR, 100, true, false),
		"u2": val("u2", models.PositionRB, 60, false, false),
		"o1": val("o1", models.PositionWR, 110, false, true),
		"o2": val("o2", models.PositionTE, 50, false, false),
	}
}

func (s *GeneratorTestSuite) generator() *Generator {
	return NewGenerator(s.store, s.values, s.learner, 10, logger.NewTestLogger())
}

func (s *GeneratorTestSuite) TestGenerate_RanksAndPersists() {
	recs, err := s.generator().Generate(s.ctx, "L1", 2024, 6)
	s.Require().NoError(err)
	s.Require().Len(recs, 3)

	top := recs[0]
	s.Equal(1, top.Rank)
	s.Equal(models.ShapeOneForOne, top.Shape)
	s.Equal([]string{"u1"}, []string(top.GivePlayerIDs))
	s.Equal([]string{"o1"}, []string(top.ReceivePlayerIDs))
	s.Equal(1.0, top.FairnessScore)
	s.InDelta(0.45, top.AcceptanceProbability, 1e-9)
	s.InDelta(10, top.ValueGained, 1e-9)
	s.InDelta(4.5, top.Score, 1e-9)
	s.NotEmpty(top.GenerationID)

	s.Equal(models.ShapeTwoForTwo, recs[1].Shape)
	s.Equal(models.ShapeTwoForOne, recs[2].Shape)
	for _, r := range recs {
		s.Equal(top.GenerationID, r.GenerationID)
		s.Equal(2, r.OpponentRosterID)
	}

	stored, err := s.store.ListTradeRecommendations(s.ctx, "L1", 2024, 6)
	s.Require().NoError(err)
	s.Len(stored, 3)
}

func (s *GeneratorTestSuite) TestGenerate_NoCandidatesClearsWeek() {
	_, err := s.generator().Generate(s.ctx, "L1", 2024, 6)
	s.Require().NoError(err)

	for id, v := range s.values {
		v.SellHigh, v.BuyLow = false, false
		s.values[id] = v
	}
	recs, err := s.generator().Generate(s.ctx, "L1", 2024, 6)
	s.Require().NoError(err)
	s.Empty(recs)

	stored, err := s.store.ListTradeRecommendations(s.ctx, "L1", 2024, 6)
	s.Require().NoError(err)
	s.Empty(stored)
}

func (s *GeneratorTestSuite) TestGenerate_RespectsTopN() {
	recs, err := NewGenerator(s.store, s.values, s.learner, 1, logger.NewTestLogger()).Generate(s.ctx, "L1", 2024, 6)
	s.Require().NoError(err)
	s.Len(recs, 1)
}

func (s *GeneratorTestSuite) TestGenerate_MissingUserRoster() {
	s.Require().NoError(s.store.SaveLeague(s.ctx, &models.League{ID: "L2", Season: 2024, UserRosterID: 9}))
	_, err := s.generator().Generate(s.ctx, "L2", 2024, 6)
	s.ErrorIs(err, ErrNoUserRoster)
}

func (s *GeneratorTestSuite) TestEvaluate_CustomTrade() {
	rec, err := s.generator().Evaluate(s.ctx, "L1", 2024, 6, 2, []string{"u2"}, []string{"o2"})
	s.Require().NoError(err)
	s.Equal(models.ShapeOneForOne, rec.Shape)
	s.Equal(1.0, rec.FairnessScore)
	s.InDelta(-10, rec.ValueGained, 1e-9)

	_, err = s.generator().Evaluate(s.ctx, "L1", 2024, 6, 2, []string{"o1"}, []string{"o2"})
	s.ErrorIs(err, ErrPlayerNotOwned)

	_, err = s.generator().Evaluate(s.ctx, "L1", 2024, 6, 2, nil, []string{"o2"})
	s.ErrorIs(err, ErrEmptySide)

	stored, err := s.store.ListTradeRecommendations(s.ctx, "L1", 2024, 6)
	s.Require().NoError(err)
	s.Empty(stored)
}

func TestFairness_SymmetricAndBounded(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 1000; i++ {
		a, b := rng.Float64()*200, rng.Float64()*200
		f := Fairness(a, b)
		require.Equal(t, f, Fairness(b, a))
		require.GreaterOrEqual(t, f, 0.0)
		require.LessOrEqual(t, f, 1.0)
		if a > 0 && b > 0 && min(a, b)/max(a, b) >= 0.8 {
			require.Equal(t, 1.0, f, "a=%v b=%v", a, b)
		}
	}
	assert.Equal(t, 0.0, Fairness(0, 10))
	assert.InDelta(t, 0.625, Fairness(50, 100), 1e-12)
}

func TestAcceptance_Adjustments(t *testing.T) {
	neutral := models.NewOpponentProfile("L1", 2)
	healthyWR := val("a", models.PositionWR, 10, false, false)

	assert.InDelta(t, 0.45, Acceptance(neutral, 1.0, []*models.PlayerValuation{healthyWR}, 1), 1e-12)

	fan := models.NewOpponentProfile("L1", 2)
	fan.PrefWR = 0.8
	assert.InDelta(t, 0.51, Acceptance(fan, 1.0, []*models.PlayerValuation{healthyWR}, 1), 1e-12)

	injured := val("b", models.PositionWR, 10, false, false)
	injured.InjuryRisk = 0.8
	assert.InDelta(t, 0.35, Acceptance(neutral, 1.0, []*models.PlayerValuation{injured}, 1), 1e-12)

	gambler := models.NewOpponentProfile("L1", 2)
	gambler.RiskTolerance = 0.9
	assert.InDelta(t, 0.45, Acceptance(gambler, 1.0, []*models.PlayerValuation{injured}, 1), 1e-12)

	depth := models.NewOpponentProfile("L1", 2)
	depth.PrefersDepth = true
	two := []*models.PlayerValuation{healthyWR, healthyWR}
	assert.InDelta(t, 0.55, Acceptance(depth, 1.0, two, 1), 1e-12)
	assert.InDelta(t, 0.45, Acceptance(depth, 1.0, []*models.PlayerValuation{healthyWR}, 2), 1e-12)

	stars := models.NewOpponentProfile("L1", 2)
	stars.PrefersStars = true
	assert.InDelta(t, 0.55, Acceptance(stars, 1.0, []*models.PlayerValuation{healthyWR}, 2), 1e-12)

	eager := models.NewOpponentProfile("L1", 2)
	eager.AcceptanceRate = 1
	assert.Equal(t, 1.0, Acceptance(eager, 1.0, []*models.PlayerValuation{healthyWR}, 1))
}

func TestTopByValue_TruncatesLargeRosters(t *testing.T) {
	values := map[string]*models.PlayerValuation{}
	var ids []string
	for i := 0; i < 40; i++ {
		id := fmt.Sprintf("p%02d", i)
		ids = append(ids, id)
		values[id] = val(id, models.PositionWR, float64(i), false, false)
	}

	top := topByValue(ids, values, maxRosterCandidate)
	require.Len(t, top, 30)
	assert.Equal(t, "p39", top[0].PlayerID)
	assert.Equal(t, "p10", top[29].PlayerID)
}
