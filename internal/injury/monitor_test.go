package injury

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/jstittsworth/fantasy-advisor/internal/models"
	"github.com/jstittsworth/fantasy-advisor/internal/notify"
	"github.com/jstittsworth/fantasy-advisor/internal/providers"
	"github.com/jstittsworth/fantasy-advisor/internal/store"
	"github.com/jstittsworth/fantasy-advisor/internal/store/storetest"
	"github.com/jstittsworth/fantasy-advisor/pkg/logger"
)

type fakeFeed struct {
	mu       sync.Mutex
	statuses map[string]models.PlayerStatus
	calls    int
	err      error
}

func (f *fakeFeed) GetState(context.Context) (*providers.NFLState, error) {
	return &providers.NFLState{Season: 2024, Week: 6, SeasonType: "regular"}, nil
}

func (f *fakeFeed) GetPlayerStatuses(_ context.Context, ids []string) (map[string]models.PlayerStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]models.PlayerStatus)
	for _, id := range ids {
		if s, ok := f.statuses[id]; ok {
			out[id] = s
		}
	}
	return out, nil
}

func (f *fakeFeed) set(id string, status models.PlayerStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[id] = status
}

type recordingDispatcher struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (d *recordingDispatcher) Notify(_ context.Context, _ string, n notify.Notification) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, n)
	return nil
}

// teamSchedule gives every team its own kickoff and is always in window.
type teamSchedule map[string]time.Time

func (s teamSchedule) Kickoff(team string, _ time.Time, _ *time.Location) (time.Time, bool) {
	k, ok := s[team]
	return k, ok
}

func (s teamSchedule) NextKickoff(now time.Time, _ *time.Location) (time.Time, bool) {
	var best time.Time
	found := false
	for _, k := range s {
		if k.Before(now) {
			continue
		}
		if !found || k.Before(best) {
			best, found = k, true
		}
	}
	return best, found
}

func (s teamSchedule) InWindow(time.Time, *time.Location) bool { return true }

type MonitorTestSuite struct {
	suite.Suite
	ctx    context.Context
	store  *store.GormStore
	feed   *fakeFeed
	sent   *recordingDispatcher
	loc    *time.Location
	clock  clockwork.FakeClock
	league *models.League
}

func TestMonitorTestSuite(t *testing.T) {
	suite.Run(t, new(MonitorTestSuite))
}

func (s *MonitorTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = storetest.NewStore(s.T())
	s.sent = &recordingDispatcher{}
	loc, err := time.LoadLocation("America/New_York")
	s.Require().NoError(err)
	s.loc = loc
	// Eight minutes before the Sunday early window.
	s.clock = clockwork.NewFakeClockAt(time.Date(2024, time.October, 13, 11, 52, 0, 0, loc))

	s.league = &models.League{
		ID: "L1", Name: "Home League", Season: 2024, OwnerUserID: "u1", UserRosterID: 1,
		ScoringType: models.ScoringPPR, Timezone: "America/New_York", Active: true,
	}
	s.Require().NoError(s.store.SaveLeague(s.ctx, s.league))

	s.Require().NoError(s.store.UpsertPlayers(s.ctx, []models.Player{
		{ID: "rb1", FullName: "Starter Back", Position: models.PositionRB, Team: "KC", Status: models.StatusActive, Active: true},
		{ID: "rb2", FullName: "Bench Back", Position: models.PositionRB, Team: "BUF", Status: models.StatusActive, Active: true},
		{ID: "rb3", FullName: "Deep Back", Position: models.PositionRB, Team: "MIA", Status: models.StatusActive, Active: true},
		{ID: "wr1", FullName: "Starter Wideout", Position: models.PositionWR, Team: "KC", Status: models.StatusActive, Active: true},
	}))
	s.Require().NoError(s.store.ReplaceRosterSlots(s.ctx, "L1", []models.RosterSlot{
		{LeagueID: "L1", PlayerID: "rb1", RosterID: 1, IsStarter: true},
		{LeagueID: "L1", PlayerID: "wr1", RosterID: 1, IsStarter: true},
		{LeagueID: "L1", PlayerID: "rb2", RosterID: 1},
		{LeagueID: "L1", PlayerID: "rb3", RosterID: 1},
	}))
	s.Require().NoError(s.store.UpsertProjections(s.ctx, []models.Projection{
		{PlayerID: "rb2", Season: 2024, Week: 6, Source: models.SourceHistoricalAnalysis, ProjectedPoints: 12.4, Confidence: 0.8},
		{PlayerID: "rb3", Season: 2024, Week: 6, Source: models.SourceHistoricalAnalysis, ProjectedPoints: 9.1, Confidence: 0.7},
	}))
	s.Require().NoError(s.store.SaveUserPreferences(s.ctx, &models.UserPreferences{UserID: "u1", AutoSubstitute: true}))

	s.feed = &fakeFeed{statuses: map[string]models.PlayerStatus{
		"rb1": models.StatusActive, "rb2": models.StatusActive, "rb3": models.StatusActive, "wr1": models.StatusActive,
	}}
}

func (s *MonitorTestSuite) newMonitor(schedule Schedule) *Monitor {
	return NewMonitor(s.store, s.feed, schedule, s.sent, s.clock, Config{DefaultTimezone: "America/New_York"}, logger.NewTestLogger())
}

func (s *MonitorTestSuite) TestOutNearKickoffRaisesCriticalAlert() {
	m := s.newMonitor(nil)
	s.feed.set("rb1", models.StatusOut)

	alerts, err := m.Poll(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(alerts, 1)

	alert := alerts[0]
	s.Equal("rb1", alert.PlayerID)
	s.Equal(models.StatusActive, alert.PreviousStatus)
	s.Equal(models.StatusOut, alert.NewStatus)
	s.Equal(8, alert.MinutesToKickoff)
	s.Equal(models.UrgencyCritical, alert.Urgency)
	s.True(alert.IsUrgent)
	s.Require().NotNil(alert.SubstitutePlayerID)
	s.Equal("rb2", *alert.SubstitutePlayerID)
	s.InDelta(12.4, alert.SubstituteProjection, 0.001)
	s.True(alert.AutoSubstituted)
	s.True(alert.NotificationSent)

	stored, err := s.store.ListInjuryAlerts(s.ctx, store.AlertFilter{LeagueID: "L1"})
	s.Require().NoError(err)
	s.Require().Len(stored, 1)
	s.True(stored[0].NotificationSent)

	player, err := s.store.GetPlayer(s.ctx, "rb1")
	s.Require().NoError(err)
	s.Equal(models.StatusOut, player.Status)

	s.Require().Len(s.sent.sent, 1)
	s.Equal(NotificationType, s.sent.sent[0].Type)
	s.Equal(alert.ID, s.sent.sent[0].AlertID)
}

func (s *MonitorTestSuite) TestUnchangedStatusDoesNotRealert() {
	m := s.newMonitor(nil)
	s.feed.set("rb1", models.StatusOut)

	first, err := m.Poll(s.ctx)
	s.Require().NoError(err)
	s.Len(first, 1)

	s.clock.Advance(2 * time.Minute)
	second, err := m.Poll(s.ctx)
	s.Require().NoError(err)
	s.Empty(second)
	s.EqualValues(1, m.Status().AlertsEmitted)
}

func (s *MonitorTestSuite) TestNonOutChangeUpdatesStatusOnly() {
	m := s.newMonitor(nil)
	s.feed.set("wr1", models.StatusQuestionable)

	alerts, err := m.Poll(s.ctx)
	s.Require().NoError(err)
	s.Empty(alerts)

	player, err := s.store.GetPlayer(s.ctx, "wr1")
	s.Require().NoError(err)
	s.Equal(models.StatusQuestionable, player.Status)
}

func (s *MonitorTestSuite) TestCachedStatusTakesPrecedence() {
	m := s.newMonitor(nil)

	alerts, err := m.Poll(s.ctx)
	s.Require().NoError(err)
	s.Empty(alerts)
	s.Equal(4, m.Status().TrackedPlayers)

	s.feed.set("rb1", models.StatusOut)
	alerts, err = m.Poll(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(alerts, 1)
	s.Equal(models.StatusActive, alerts[0].PreviousStatus)
}

func (s *MonitorTestSuite) TestOutsideAlertSpanSkipsAlert() {
	// 12:40 is inside the late-window lead-in but 140 minutes before its kickoff.
	s.clock = clockwork.NewFakeClockAt(time.Date(2024, time.October, 13, 12, 40, 0, 0, s.loc))
	m := s.newMonitor(nil)
	s.feed.set("rb1", models.StatusOut)

	alerts, err := m.Poll(s.ctx)
	s.Require().NoError(err)
	s.Empty(alerts)

	player, err := s.store.GetPlayer(s.ctx, "rb1")
	s.Require().NoError(err)
	s.Equal(models.StatusOut, player.Status)
}

func (s *MonitorTestSuite) TestOutsideWindowSkipsFeed() {
	s.clock = clockwork.NewFakeClockAt(time.Date(2024, time.October, 16, 12, 0, 0, 0, s.loc))
	m := s.newMonitor(nil)

	alerts, err := m.Poll(s.ctx)
	s.Require().NoError(err)
	s.Empty(alerts)
	s.Equal(0, s.feed.calls)
	s.EqualValues(1, m.Status().Polls)
}

func (s *MonitorTestSuite) TestSubstituteTieGoesToLaterKickoff() {
	now := s.clock.Now()
	s.Require().NoError(s.store.UpsertProjections(s.ctx, []models.Projection{
		{PlayerID: "rb3", Season: 2024, Week: 6, Source: models.SourceHistoricalAnalysis, ProjectedPoints: 12.4, Confidence: 0.7},
	}))
	m := s.newMonitor(teamSchedule{
		"KC":  now.Add(20 * time.Minute),
		"BUF": now.Add(60 * time.Minute),
		"MIA": now.Add(200 * time.Minute),
	})
	s.feed.set("rb1", models.StatusOut)

	alerts, err := m.Poll(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(alerts, 1)
	s.Equal(models.UrgencyHigh, alerts[0].Urgency)
	s.False(alerts[0].IsUrgent)
	s.Require().NotNil(alerts[0].SubstitutePlayerID)
	s.Equal("rb3", *alerts[0].SubstitutePlayerID)
}

func (s *MonitorTestSuite) TestNoEligibleSubstitute() {
	now := s.clock.Now()
	s.Require().NoError(s.store.SaveUserPreferences(s.ctx, &models.UserPreferences{UserID: "u1", AutoSubstitute: false}))
	m := s.newMonitor(teamSchedule{
		"KC":  now.Add(45 * time.Minute),
		"BUF": now.Add(-10 * time.Minute),
		"MIA": now.Add(200 * time.Minute),
	})
	s.feed.set("rb1", models.StatusOut)
	s.feed.set("rb3", models.StatusOut)

	alerts, err := m.Poll(s.ctx)
	s.Require().NoError(err)
	// rb1 and rb3 both changed to Out; rb3's game is too far off to alert on.
	s.Require().Len(alerts, 1)
	s.Equal("rb1", alerts[0].PlayerID)
	s.Equal(models.UrgencyMedium, alerts[0].Urgency)
	s.Nil(alerts[0].SubstitutePlayerID)
	s.False(alerts[0].AutoSubstituted)
}

func (s *MonitorTestSuite) TestFeedFailureIsReported() {
	s.feed.err = errors.New("upstream down")
	m := s.newMonitor(nil)

	_, err := m.Poll(s.ctx)
	s.Error(err)

	m.cycle(s.ctx)
	s.Equal("failed to fetch player statuses: upstream down", m.Status().LastError)
}

func (s *MonitorTestSuite) TestIntervalTightensNearKickoff() {
	m := s.newMonitor(nil)
	_, err := m.Poll(s.ctx)
	s.Require().NoError(err)
	s.Equal(UrgentInterval.Seconds(), m.Status().IntervalSeconds)

	s.clock.Advance(time.Hour)
	_, err = m.Poll(s.ctx)
	s.Require().NoError(err)
	s.Equal(DefaultInterval.Seconds(), m.Status().IntervalSeconds)
	s.Require().NotNil(m.Status().NextKickoff)
	s.True(m.Status().NextKickoff.Equal(time.Date(2024, time.October, 13, 15, 0, 0, 0, s.loc)))
}

func (s *MonitorTestSuite) TestStartStopLifecycle() {
	m := s.newMonitor(nil)
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	m.Start(ctx)
	m.Start(ctx)
	s.True(m.IsRunning())

	s.clock.BlockUntil(1)
	s.EqualValues(1, m.Status().Polls)
	s.Equal(4, m.Status().TrackedPlayers)

	s.clock.Advance(UrgentInterval)
	s.Eventually(func() bool { return m.Status().Polls == 2 }, time.Second, 10*time.Millisecond)

	m.Stop()
	m.Stop()
	status := m.Status()
	s.False(status.Running)
	s.Equal(0, status.TrackedPlayers)
	s.Equal(DefaultInterval.Seconds(), status.IntervalSeconds)
}

func TestUrgencyFor(t *testing.T) {
	cases := []struct {
		minutes int
		want    models.Urgency
		urgent  bool
	}{
		{8, models.UrgencyCritical, true},
		{-5, models.UrgencyCritical, true},
		{25, models.UrgencyHigh, false},
		{45, models.UrgencyMedium, false},
		{90, models.UrgencyLow, false},
	}
	for _, tc := range cases {
		got, urgent := UrgencyFor(tc.minutes)
		assert.Equal(t, tc.want, got, "minutes=%d", tc.minutes)
		assert.Equal(t, tc.urgent, urgent, "minutes=%d", tc.minutes)
	}
}

func TestNewMonitor_Defaults(t *testing.T) {
	m := NewMonitor(nil, nil, nil, nil, nil, Config{DefaultTimezone: "Not/AZone"}, logger.NewTestLogger())
	require.NotNil(t, m.schedule)
	assert.Equal(t, time.UTC, m.loc)
	assert.Equal(t, DefaultInterval, m.currentInterval())
	assert.False(t, m.IsRunning())
}
