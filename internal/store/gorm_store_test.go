package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"gorm.io/datatypes"

	"github.com/jstittsworth/fantasy-advisor/internal/models"
	"github.com/jstittsworth/fantasy-advisor/internal/store"
	"github.com/jstittsworth/fantasy-advisor/internal/store/storetest"
)

type GormStoreTestSuite struct {
	suite.Suite
	ctx   context.Context
	store *store.GormStore
}

func TestGormStoreTestSuite(t *testing.T) {
	suite.Run(t, new(GormStoreTestSuite))
}

func (s *GormStoreTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = storetest.NewStore(s.T())
}

func (s *GormStoreTestSuite) seedPlayers() {
	s.Require().NoError(s.store.UpsertPlayers(s.ctx, []models.Player{
		{ID: "4034", FullName: "Christian McCaffrey", Position: models.PositionRB, Team: "SF", Status: models.StatusActive, Active: true},
		{ID: "6794", FullName: "Justin Jefferson", Position: models.PositionWR, Team: "MIN", Status: models.StatusActive, Active: true},
		{ID: "4046", FullName: "Patrick Mahomes", Position: models.PositionQB, Team: "KC", Status: models.StatusActive, Active: true},
		{ID: "9999", FullName: "Retired Guy", Position: models.PositionWR, Team: "", Status: models.StatusInactive, Active: false},
	}))
}

func (s *GormStoreTestSuite) TestUpsertPlayers_UpdatesExisting() {
	s.seedPlayers()

	s.Require().NoError(s.store.UpsertPlayers(s.ctx, []models.Player{
		{ID: "4034", FullName: "Christian McCaffrey", Position: models.PositionRB, Team: "SF", Status: models.StatusQuestionable, InjuryStatus: "Questionable", Active: true},
	}))

	p, err := s.store.GetPlayer(s.ctx, "4034")
	s.Require().NoError(err)
	s.Equal(models.StatusQuestionable, p.Status)
	s.Equal("Questionable", p.InjuryStatus)

	players, err := s.store.ListActivePlayers(s.ctx)
	s.Require().NoError(err)
	s.Len(players, 3)
}

func (s *GormStoreTestSuite) TestGetPlayer_NotFound() {
	_, err := s.store.GetPlayer(s.ctx, "missing")
	s.ErrorIs(err, store.ErrNotFound)

	err = s.store.UpdatePlayerStatus(s.ctx, "missing", models.StatusOut, "IR")
	s.ErrorIs(err, store.ErrNotFound)
}

func (s *GormStoreTestSuite) TestSearchPlayers_FuzzyMatch() {
	s.seedPlayers()

	players, err := s.store.SearchPlayers(s.ctx, "jefferson", 5)
	s.Require().NoError(err)
	s.Require().Len(players, 1)
	s.Equal("6794", players[0].ID)

	players, err = s.store.SearchPlayers(s.ctx, "retired", 5)
	s.Require().NoError(err)
	s.Empty(players)
}

func (s *GormStoreTestSuite) TestRecentWeeklyStats_MostRecentFirst() {
	var stats []models.WeeklyStat
	for week := 1; week <= 8; week++ {
		stats = append(stats, models.WeeklyStat{
			PlayerID: "4034",
			Season:   2024,
			Week:     week,
			Stats:    datatypes.NewJSONType(models.StatBag{"rush_yd": float64(week * 10)}),
			PtsPPR:   float64(week),
		})
	}
	s.Require().NoError(s.store.UpsertWeeklyStats(s.ctx, stats))

	recent, err := s.store.RecentWeeklyStats(s.ctx, "4034", 2024, 7, 3)
	s.Require().NoError(err)
	s.Require().Len(recent, 3)
	s.Equal(6, recent[0].Week)
	s.Equal(5, recent[1].Week)
	s.Equal(4, recent[2].Week)
	s.Equal(60.0, recent[0].Stats.Data()["rush_yd"])

	// re-sync overwrites the totals in place
	s.Require().NoError(s.store.UpsertWeeklyStats(s.ctx, []models.WeeklyStat{
		{PlayerID: "4034", Season: 2024, Week: 6, PtsPPR: 30, IsFinal: true},
	}))
	recent, err = s.store.RecentWeeklyStats(s.ctx, "4034", 2024, 7, 1)
	s.Require().NoError(err)
	s.Require().Len(recent, 1)
	s.Equal(30.0, recent[0].PtsPPR)
	s.True(recent[0].IsFinal)
}

func (s *GormStoreTestSuite) TestUpsertPlayers_CanDeactivate() {
	s.Require().NoError(s.store.UpsertPlayers(s.ctx, []models.Player{
		{ID: "1111", FullName: "Veteran Back", Position: models.PositionRB, Status: models.StatusActive, Active: true},
	}))
	s.Require().NoError(s.store.UpsertPlayers(s.ctx, []models.Player{
		{ID: "1111", FullName: "Veteran Back", Position: models.PositionRB, Status: models.StatusInactive, Active: false},
	}))

	p, err := s.store.GetPlayer(s.ctx, "1111")
	s.Require().NoError(err)
	s.False(p.Active)

	players, err := s.store.ListActivePlayers(s.ctx)
	s.Require().NoError(err)
	s.Empty(players)
}

func (s *GormStoreTestSuite) TestUpsertWeeklyStats_FinalWeekIsImmutable() {
	s.Require().NoError(s.store.UpsertWeeklyStats(s.ctx, []models.WeeklyStat{
		{PlayerID: "4034", Season: 2024, Week: 3, PtsPPR: 20, PtsStd: 17, IsFinal: true},
		{PlayerID: "4034", Season: 2024, Week: 4, PtsPPR: 8},
	}))

	s.Require().NoError(s.store.UpsertWeeklyStats(s.ctx, []models.WeeklyStat{
		{PlayerID: "4034", Season: 2024, Week: 3, PtsPPR: 2, PtsStd: 1, IsFinal: false},
		{PlayerID: "4034", Season: 2024, Week: 4, PtsPPR: 11, IsFinal: true},
	}))

	stats, err := s.store.WeeklyStatsForPlayers(s.ctx, []string{"4034"}, 2024, 3, 4)
	s.Require().NoError(err)
	s.Require().Len(stats, 2)
	byWeek := map[int]models.WeeklyStat{}
	for _, st := range stats {
		byWeek[st.Week] = st
	}
	s.Equal(20.0, byWeek[3].PtsPPR)
	s.Equal(17.0, byWeek[3].PtsStd)
	s.True(byWeek[3].IsFinal)
	s.Equal(11.0, byWeek[4].PtsPPR)
	s.True(byWeek[4].IsFinal)
}

func (s *GormStoreTestSuite) TestFalseBooleansRoundTrip() {
	s.Require().NoError(s.store.SaveUserPreferences(s.ctx, &models.UserPreferences{
		UserID: "u1", NotifyPush: false, NotifySMS: true, PhoneNumber: "+15551234567",
	}))
	prefs, err := s.store.GetUserPreferences(s.ctx, "u1")
	s.Require().NoError(err)
	s.False(prefs.NotifyPush)
	s.True(prefs.NotifySMS)

	s.Require().NoError(s.store.SaveLeague(s.ctx, &models.League{ID: "L9", Season: 2024, Active: false}))
	s.Require().NoError(s.store.SaveLeague(s.ctx, &models.League{ID: "L1", Season: 2024, Active: true}))
	leagues, err := s.store.ListActiveLeagues(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(leagues, 1)
	s.Equal("L1", leagues[0].ID)

	league, err := s.store.GetLeague(s.ctx, "L9")
	s.Require().NoError(err)
	s.False(league.Active)
}

func (s *GormStoreTestSuite) TestFindProjection_PrefersHistoricalAnalysis() {
	s.Require().NoError(s.store.UpsertProjections(s.ctx, []models.Projection{
		{PlayerID: "6794", Season: 2024, Week: 5, Source: models.SourcePositionAverage, ProjectedPoints: 11, Confidence: 0.2},
		{PlayerID: "6794", Season: 2024, Week: 5, Source: models.SourceHistoricalAnalysis, ProjectedPoints: 19.5, Confidence: 0.8},
	}))

	p, err := s.store.FindProjection(s.ctx, "6794", 2024, 5)
	s.Require().NoError(err)
	s.Equal(models.SourceHistoricalAnalysis, p.Source)
	s.Equal(19.5, p.ProjectedPoints)

	s.Require().NoError(s.store.UpsertProjections(s.ctx, []models.Projection{
		{PlayerID: "6794", Season: 2024, Week: 5, Source: models.SourceHistoricalAnalysis, ProjectedPoints: 21, Confidence: 0.9},
	}))
	p, err = s.store.GetProjection(s.ctx, "6794", 2024, 5, models.SourceHistoricalAnalysis)
	s.Require().NoError(err)
	s.Equal(21.0, p.ProjectedPoints)

	week := 5
	all, err := s.store.ListProjections(s.ctx, store.ProjectionFilter{Season: 2024, Week: &week})
	s.Require().NoError(err)
	s.Len(all, 2)

	_, err = s.store.FindProjection(s.ctx, "6794", 2024, 6)
	s.ErrorIs(err, store.ErrNotFound)
}

func (s *GormStoreTestSuite) TestReplaceRosterSlots_DeletesThenRecreates() {
	s.Require().NoError(s.store.ReplaceRosterSlots(s.ctx, "L1", []models.RosterSlot{
		{PlayerID: "4034", RosterID: 1, IsStarter: true},
		{PlayerID: "6794", RosterID: 1, IsStarter: true},
	}))
	s.Require().NoError(s.store.ReplaceRosterSlots(s.ctx, "L1", []models.RosterSlot{
		{PlayerID: "4046", RosterID: 1, IsStarter: false},
	}))

	slots, err := s.store.ListRosterSlots(s.ctx, "L1")
	s.Require().NoError(err)
	s.Require().Len(slots, 1)
	s.Equal("4046", slots[0].PlayerID)
	s.Equal("L1", slots[0].LeagueID)
}

func (s *GormStoreTestSuite) TestSaveTransaction_DedupesByExternalID() {
	tx := &models.Transaction{
		ExternalID: "tx-1",
		LeagueID:   "L1",
		Season:     2024,
		Week:       3,
		Type:       models.TransactionWaiver,
		Status:     models.TransactionComplete,
		WaiverBid:  12,
		Position:   models.PositionWR,
		OccurredAt: time.Now(),
	}
	created, err := s.store.SaveTransaction(s.ctx, tx)
	s.Require().NoError(err)
	s.True(created)

	again := *tx
	again.ID = 0
	created, err = s.store.SaveTransaction(s.ctx, &again)
	s.Require().NoError(err)
	s.False(created)
}

func (s *GormStoreTestSuite) TestRecentWinningBids_FiltersByPosition() {
	base := time.Date(2024, 10, 1, 12, 0, 0, 0, time.UTC)
	bids := []struct {
		id  string
		pos models.Position
		bid int
	}{
		{"a", models.PositionWR, 3}, {"b", models.PositionWR, 8}, {"c", models.PositionRB, 40}, {"d", models.PositionWR, 15},
	}
	for i, b := range bids {
		_, err := s.store.SaveTransaction(s.ctx, &models.Transaction{
			ExternalID: b.id, LeagueID: "L1", Season: 2024, Week: i + 1,
			Type: models.TransactionWaiver, Status: models.TransactionComplete,
			WaiverBid: b.bid, Position: b.pos, OccurredAt: base.Add(time.Duration(i) * time.Hour),
		})
		s.Require().NoError(err)
	}

	got, err := s.store.RecentWinningBids(s.ctx, "L1", models.PositionWR, 5)
	s.Require().NoError(err)
	s.Equal([]int{15, 8, 3}, got)
}

func (s *GormStoreTestSuite) TestReplaceTradeRecommendations_ScopedToWeek() {
	s.Require().NoError(s.store.ReplaceTradeRecommendations(s.ctx, "L1", 2024, 5, []models.TradeRecommendation{
		{LeagueID: "L1", Season: 2024, Week: 5, Rank: 1, Shape: models.ShapeOneForOne},
		{LeagueID: "L1", Season: 2024, Week: 5, Rank: 2, Shape: models.ShapeTwoForOne},
	}))
	s.Require().NoError(s.store.ReplaceTradeRecommendations(s.ctx, "L1", 2024, 6, []models.TradeRecommendation{
		{LeagueID: "L1", Season: 2024, Week: 6, Rank: 1, Shape: models.ShapeTwoForTwo},
	}))
	s.Require().NoError(s.store.ReplaceTradeRecommendations(s.ctx, "L1", 2024, 5, nil))

	week5, err := s.store.ListTradeRecommendations(s.ctx, "L1", 2024, 5)
	s.Require().NoError(err)
	s.Empty(week5)

	week6, err := s.store.ListTradeRecommendations(s.ctx, "L1", 2024, 6)
	s.Require().NoError(err)
	s.Len(week6, 1)
}

func (s *GormStoreTestSuite) TestInjuryAlerts_CreateAndFilter() {
	alert := &models.InjuryAlert{LeagueID: "L1", UserID: "u1", PlayerID: "4034", NewStatus: models.StatusOut, Urgency: models.UrgencyHigh}
	s.Require().NoError(s.store.CreateInjuryAlert(s.ctx, alert))
	s.NotEmpty(alert.ID)

	alert.Acknowledged = true
	s.Require().NoError(s.store.UpdateInjuryAlert(s.ctx, alert))

	open, err := s.store.ListInjuryAlerts(s.ctx, store.AlertFilter{UserID: "u1", UnacknowledgedOnly: true})
	s.Require().NoError(err)
	s.Empty(open)

	all, err := s.store.ListInjuryAlerts(s.ctx, store.AlertFilter{LeagueID: "L1"})
	s.Require().NoError(err)
	s.Len(all, 1)
}

func (s *GormStoreTestSuite) TestOpponentProfile_RoundTrip() {
	_, err := s.store.GetOpponentProfile(s.ctx, "L1", 4)
	s.ErrorIs(err, store.ErrNotFound)

	profile := models.NewOpponentProfile("L1", 4)
	profile.PrefRB = 0.6
	s.Require().NoError(s.store.SaveOpponentProfile(s.ctx, profile))

	got, err := s.store.GetOpponentProfile(s.ctx, "L1", 4)
	s.Require().NoError(err)
	s.Equal(0.6, got.PrefRB)
	s.Equal(0.3, got.AcceptanceRate)
}
