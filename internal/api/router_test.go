package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/jstittsworth/fantasy-advisor/internal/api"
	"github.com/jstittsworth/fantasy-advisor/internal/api/handlers"
	"github.com/jstittsworth/fantasy-advisor/internal/injury"
	"github.com/jstittsworth/fantasy-advisor/internal/jobs"
	"github.com/jstittsworth/fantasy-advisor/internal/models"
	"github.com/jstittsworth/fantasy-advisor/internal/services"
	"github.com/jstittsworth/fantasy-advisor/internal/store"
	"github.com/jstittsworth/fantasy-advisor/internal/waiver"
	"github.com/jstittsworth/fantasy-advisor/pkg/logger"
)

type MockAdvisor struct {
	mock.Mock
}

func (m *MockAdvisor) SearchPlayers(ctx context.Context, query string, limit int) ([]models.Player, error) {
	args := m.Called(ctx, query, limit)
	players, _ := args.Get(0).([]models.Player)
	return players, args.Error(1)
}

func (m *MockAdvisor) GetProjection(ctx context.Context, playerID string, season, week int) (*models.Projection, error) {
	args := m.Called(ctx, playerID, season, week)
	proj, _ := args.Get(0).(*models.Projection)
	return proj, args.Error(1)
}

func (m *MockAdvisor) GetProjections(ctx context.Context, filter store.ProjectionFilter) ([]models.Projection, error) {
	args := m.Called(ctx, filter)
	projections, _ := args.Get(0).([]models.Projection)
	return projections, args.Error(1)
}

func (m *MockAdvisor) GetValuation(ctx context.Context, playerID, leagueID string, season, week int) (*models.PlayerValuation, error) {
	args := m.Called(ctx, playerID, leagueID, season, week)
	val, _ := args.Get(0).(*models.PlayerValuation)
	return val, args.Error(1)
}

func (m *MockAdvisor) RegisterLeague(ctx context.Context, leagueID, ownerUserID, timezone string) (*models.League, error) {
	args := m.Called(ctx, leagueID, ownerUserID, timezone)
	league, _ := args.Get(0).(*models.League)
	return league, args.Error(1)
}

func (m *MockAdvisor) GetTradeRecommendations(ctx context.Context, leagueID string, season, week int) ([]models.TradeRecommendation, error) {
	args := m.Called(ctx, leagueID, season, week)
	recs, _ := args.Get(0).([]models.TradeRecommendation)
	return recs, args.Error(1)
}

func (m *MockAdvisor) GenerateTradeRecommendations(ctx context.Context, leagueID string, season, week int) ([]models.TradeRecommendation, error) {
	args := m.Called(ctx, leagueID, season, week)
	recs, _ := args.Get(0).([]models.TradeRecommendation)
	return recs, args.Error(1)
}

func (m *MockAdvisor) EvaluateTrade(ctx context.Context, p services.TradeProposal) (*models.TradeRecommendation, error) {
	args := m.Called(ctx, p)
	rec, _ := args.Get(0).(*models.TradeRecommendation)
	return rec, args.Error(1)
}

func (m *MockAdvisor) GetWaiverRecommendations(ctx context.Context, leagueID string, season, week int) ([]models.WaiverRecommendation, error) {
	args := m.Called(ctx, leagueID, season, week)
	recs, _ := args.Get(0).([]models.WaiverRecommendation)
	return recs, args.Error(1)
}

func (m *MockAdvisor) GenerateWaiverRecommendations(ctx context.Context, leagueID string, season, week int) ([]models.WaiverRecommendation, error) {
	args := m.Called(ctx, leagueID, season, week)
	recs, _ := args.Get(0).([]models.WaiverRecommendation)
	return recs, args.Error(1)
}

func (m *MockAdvisor) CalculateBid(ctx context.Context, leagueID string, req services.BidRequest) (*waiver.Bid, error) {
	args := m.Called(ctx, leagueID, req)
	bid, _ := args.Get(0).(*waiver.Bid)
	return bid, args.Error(1)
}

func (m *MockAdvisor) GetInjuryAlerts(ctx context.Context, filter store.AlertFilter) ([]models.InjuryAlert, error) {
	args := m.Called(ctx, filter)
	alerts, _ := args.Get(0).([]models.InjuryAlert)
	return alerts, args.Error(1)
}

func (m *MockAdvisor) AcknowledgeAlert(ctx context.Context, alertID string) (*models.InjuryAlert, error) {
	args := m.Called(ctx, alertID)
	alert, _ := args.Get(0).(*models.InjuryAlert)
	return alert, args.Error(1)
}

func (m *MockAdvisor) GetMonitoringStatus() injury.Status {
	return m.Called().Get(0).(injury.Status)
}

func (m *MockAdvisor) GetPreferences(ctx context.Context, userID string) (*models.UserPreferences, error) {
	args := m.Called(ctx, userID)
	prefs, _ := args.Get(0).(*models.UserPreferences)
	return prefs, args.Error(1)
}

func (m *MockAdvisor) UpdatePreferences(ctx context.Context, prefs *models.UserPreferences) (*models.UserPreferences, error) {
	args := m.Called(ctx, prefs)
	saved, _ := args.Get(0).(*models.UserPreferences)
	return saved, args.Error(1)
}

type fakeRunner struct {
	triggerErr error
	triggered  []string
}

func (f *fakeRunner) Trigger(name string) error {
	if f.triggerErr != nil {
		return f.triggerErr
	}
	f.triggered = append(f.triggered, name)
	return nil
}

func (f *fakeRunner) Status() []jobs.JobStatus {
	return []jobs.JobStatus{{Name: jobs.PlayerSync, Schedule: "0 6 * * *"}}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details string `json:"details"`
	} `json:"error"`
	Meta *struct {
		Total int64 `json:"total"`
	} `json:"meta"`
}

type RouterTestSuite struct {
	suite.Suite
	advisor *MockAdvisor
	runner  *fakeRunner
	cacheUp error
	router  *gin.Engine
}

func TestRouterTestSuite(t *testing.T) {
	suite.Run(t, new(RouterTestSuite))
}

func (s *RouterTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	s.advisor = new(MockAdvisor)
	s.runner = &fakeRunner{}
	s.cacheUp = nil

	clock := clockwork.NewFakeClockAt(time.Date(2024, 10, 13, 16, 0, 0, 0, time.UTC))
	health := handlers.NewHealthHandler(map[string]handlers.Checker{
		"cache": handlers.CheckerFunc(func(ctx context.Context) error { return s.cacheUp }),
	}, clock)

	s.router = api.NewRouter(api.RouterDeps{
		Advisor:     s.advisor,
		Jobs:        s.runner,
		Health:      health,
		CorsOrigins: []string{"http://localhost:5173"},
		Logger:      logger.NewTestLogger(),
	})
}

func (s *RouterTestSuite) TearDownTest() {
	s.advisor.AssertExpectations(s.T())
}

func (s *RouterTestSuite) do(method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func (s *RouterTestSuite) TestHealthAndReady() {
	w, _ := s.do(http.MethodGet, "/health", nil)
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), `"status":"ok"`)

	w, _ = s.do(http.MethodGet, "/ready", nil)
	s.Equal(http.StatusOK, w.Code)

	s.cacheUp = errors.New("connection refused")
	w, _ = s.do(http.MethodGet, "/ready", nil)
	s.Equal(http.StatusServiceUnavailable, w.Code)
	s.Contains(w.Body.String(), "degraded")
	s.Contains(w.Body.String(), "connection refused")
}

func (s *RouterTestSuite) TestGetProjection() {
	s.advisor.On("GetProjection", mock.Anything, "p1", 2024, 6).
		Return(&models.Projection{PlayerID: "p1", Season: 2024, Week: 6, ProjectedPoints: 14.3}, nil)

	w, env := s.do(http.MethodGet, "/api/v1/players/p1/projections/2024/6", nil)
	s.Equal(http.StatusOK, w.Code)
	s.True(env.Success)

	var proj models.Projection
	s.Require().NoError(json.Unmarshal(env.Data, &proj))
	s.InDelta(14.3, proj.ProjectedPoints, 1e-9)
}

func (s *RouterTestSuite) TestGetProjection_BadPathParams() {
	w, env := s.do(http.MethodGet, "/api/v1/players/p1/projections/2024/six", nil)
	s.Equal(http.StatusBadRequest, w.Code)
	s.False(env.Success)
	s.Equal("VALIDATION_ERROR", env.Error.Code)
}

func (s *RouterTestSuite) TestErrorMapping() {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("%w: week 19 out of range", services.ErrInvalidInput), http.StatusBadRequest, "VALIDATION_ERROR"},
		{fmt.Errorf("player ghost: %w", store.ErrNotFound), http.StatusNotFound, "NOT_FOUND"},
		{gobreaker.ErrOpenState, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{errors.New("disk on fire"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for i, tc := range cases {
		id := fmt.Sprintf("p%d", i)
		s.advisor.On("GetProjection", mock.Anything, id, 2024, 19).Return(nil, tc.err).Once()

		w, env := s.do(http.MethodGet, "/api/v1/players/"+id+"/projections/2024/19", nil)
		s.Equal(tc.status, w.Code, tc.err.Error())
		s.Require().NotNil(env.Error)
		s.Equal(tc.code, env.Error.Code)
	}
}

func (s *RouterTestSuite) TestListProjections_BuildsFilter() {
	week := 6
	s.advisor.On("GetProjections", mock.Anything, store.ProjectionFilter{
		Season:    2024,
		Week:      &week,
		PlayerIDs: []string{"a", "b"},
		Source:    models.SourceHistoricalAnalysis,
		Limit:     10,
	}).Return([]models.Projection{{PlayerID: "a"}, {PlayerID: "b"}}, nil)

	w, env := s.do(http.MethodGet, "/api/v1/projections?season=2024&week=6&player_ids=a,b&source=historical_analysis&limit=10", nil)
	s.Equal(http.StatusOK, w.Code)
	s.Require().NotNil(env.Meta)
	s.Equal(int64(2), env.Meta.Total)
}

func (s *RouterTestSuite) TestSearchPlayers() {
	s.advisor.On("SearchPlayers", mock.Anything, "jefferson", 0).
		Return([]models.Player{{ID: "p9", FullName: "Justin Jefferson"}}, nil)

	w, env := s.do(http.MethodGet, "/api/v1/players/search?q=jefferson", nil)
	s.Equal(http.StatusOK, w.Code)
	s.Contains(string(env.Data), "Justin Jefferson")
}

func (s *RouterTestSuite) TestValuationRequiresSeasonAndWeek() {
	w, env := s.do(http.MethodGet, "/api/v1/players/p1/valuation?league_id=L1", nil)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("VALIDATION_ERROR", env.Error.Code)
}

func (s *RouterTestSuite) TestEvaluateTrade_UsesPathLeague() {
	s.advisor.On("EvaluateTrade", mock.Anything, mock.MatchedBy(func(p services.TradeProposal) bool {
		return p.LeagueID == "L1" && p.OpponentRosterID == 3 && len(p.GivePlayerIDs) == 1
	})).Return(&models.TradeRecommendation{LeagueID: "L1"}, nil)

	w, env := s.do(http.MethodPost, "/api/v1/leagues/L1/trades/evaluate", gin.H{
		"league_id":          "ignored",
		"season":             2024,
		"week":               6,
		"opponent_roster_id": 3,
		"give_player_ids":    []string{"a"},
		"receive_player_ids": []string{"b"},
	})
	s.Equal(http.StatusOK, w.Code)
	s.True(env.Success)
}

func (s *RouterTestSuite) TestGenerateTrades_RequiresWeek() {
	w, env := s.do(http.MethodPost, "/api/v1/leagues/L1/trades/generate", gin.H{"season": 2024})
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("VALIDATION_ERROR", env.Error.Code)
}

func (s *RouterTestSuite) TestGenerateWaivers() {
	s.advisor.On("GenerateWaiverRecommendations", mock.Anything, "L1", 2024, 6).
		Return([]models.WaiverRecommendation{{LeagueID: "L1"}}, nil)

	w, env := s.do(http.MethodPost, "/api/v1/leagues/L1/waivers/generate", gin.H{"season": 2024, "week": 6})
	s.Equal(http.StatusOK, w.Code)
	s.Equal(int64(1), env.Meta.Total)
}

func (s *RouterTestSuite) TestCalculateBid() {
	s.advisor.On("CalculateBid", mock.Anything, "L1", services.BidRequest{
		Position:    models.PositionRB,
		Opportunity: 0.8,
		Need:        0.5,
	}).Return(&waiver.Bid{Recommended: 7, Min: 4, Max: 11}, nil)

	w, env := s.do(http.MethodPost, "/api/v1/leagues/L1/waivers/bid", gin.H{
		"position":          "RB",
		"opportunity_score": 0.8,
		"positional_need":   0.5,
	})
	s.Equal(http.StatusOK, w.Code)

	var bid waiver.Bid
	s.Require().NoError(json.Unmarshal(env.Data, &bid))
	s.Equal(7, bid.Recommended)
}

func (s *RouterTestSuite) TestRegisterLeague() {
	s.advisor.On("RegisterLeague", mock.Anything, "L1", "u1", "America/Chicago").
		Return(&models.League{ID: "L1"}, nil)

	w, _ := s.do(http.MethodPost, "/api/v1/leagues", gin.H{
		"league_id":     "L1",
		"owner_user_id": "u1",
		"timezone":      "America/Chicago",
	})
	s.Equal(http.StatusOK, w.Code)

	w, _ = s.do(http.MethodPost, "/api/v1/leagues", gin.H{"league_id": "L1"})
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *RouterTestSuite) TestListAlerts_ParsesFilter() {
	since := time.Date(2024, 10, 13, 15, 0, 0, 0, time.UTC)
	s.advisor.On("GetInjuryAlerts", mock.Anything, mock.MatchedBy(func(f store.AlertFilter) bool {
		return f.LeagueID == "L1" && f.UnacknowledgedOnly && f.Limit == 5 && f.Since != nil && f.Since.Equal(since)
	})).Return([]models.InjuryAlert{{ID: "a1"}}, nil)

	w, env := s.do(http.MethodGet, "/api/v1/alerts?league_id=L1&unacknowledged=true&limit=5&since=2024-10-13T15:00:00Z", nil)
	s.Equal(http.StatusOK, w.Code)
	s.Equal(int64(1), env.Meta.Total)

	w, _ = s.do(http.MethodGet, "/api/v1/alerts?league_id=L1&since=yesterday", nil)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *RouterTestSuite) TestAcknowledgeAlert() {
	s.advisor.On("AcknowledgeAlert", mock.Anything, "a1").Return(&models.InjuryAlert{ID: "a1", Acknowledged: true}, nil)
	s.advisor.On("AcknowledgeAlert", mock.Anything, "missing").Return(nil, store.ErrNotFound)

	w, _ := s.do(http.MethodPost, "/api/v1/alerts/a1/acknowledge", nil)
	s.Equal(http.StatusOK, w.Code)

	w, env := s.do(http.MethodPost, "/api/v1/alerts/missing/acknowledge", nil)
	s.Equal(http.StatusNotFound, w.Code)
	s.Equal("Alert not found", env.Error.Message)
}

func (s *RouterTestSuite) TestMonitorStatus() {
	s.advisor.On("GetMonitoringStatus").Return(injury.Status{Running: true, Polls: 3, IntervalSeconds: 60})

	w, env := s.do(http.MethodGet, "/api/v1/monitor/status", nil)
	s.Equal(http.StatusOK, w.Code)

	var status injury.Status
	s.Require().NoError(json.Unmarshal(env.Data, &status))
	s.True(status.Running)
	s.Equal(int64(3), status.Polls)
}

func (s *RouterTestSuite) TestUpdatePreferences_UsesPathUser() {
	s.advisor.On("UpdatePreferences", mock.Anything, mock.MatchedBy(func(p *models.UserPreferences) bool {
		return p.UserID == "u1" && p.NotifySMS && p.PhoneNumber == "555-123-4567"
	})).Return(&models.UserPreferences{UserID: "u1", NotifySMS: true, PhoneNumber: "+15551234567"}, nil)

	w, env := s.do(http.MethodPut, "/api/v1/users/u1/preferences", gin.H{
		"user_id":      "someone-else",
		"notify_sms":   true,
		"phone_number": "555-123-4567",
	})
	s.Equal(http.StatusOK, w.Code)
	s.Contains(string(env.Data), "+15551234567")
}

func (s *RouterTestSuite) TestUpdatePreferences_PushDefaultsOn() {
	s.advisor.On("UpdatePreferences", mock.Anything, mock.MatchedBy(func(p *models.UserPreferences) bool {
		return p.UserID == "u2" && p.NotifyPush && p.AutoSubstitute
	})).Return(&models.UserPreferences{UserID: "u2", NotifyPush: true, AutoSubstitute: true}, nil).Once()
	s.advisor.On("UpdatePreferences", mock.Anything, mock.MatchedBy(func(p *models.UserPreferences) bool {
		return p.UserID == "u3" && !p.NotifyPush
	})).Return(&models.UserPreferences{UserID: "u3"}, nil).Once()

	w, _ := s.do(http.MethodPut, "/api/v1/users/u2/preferences", gin.H{"auto_substitute": true})
	s.Equal(http.StatusOK, w.Code)

	w, _ = s.do(http.MethodPut, "/api/v1/users/u3/preferences", gin.H{"notify_push": false})
	s.Equal(http.StatusOK, w.Code)
}

func (s *RouterTestSuite) TestJobs() {
	w, env := s.do(http.MethodGet, "/api/v1/jobs", nil)
	s.Equal(http.StatusOK, w.Code)
	s.Equal(int64(1), env.Meta.Total)

	w, _ = s.do(http.MethodPost, "/api/v1/jobs/player_sync/run", nil)
	s.Equal(http.StatusAccepted, w.Code)
	s.Equal([]string{"player_sync"}, s.runner.triggered)

	s.runner.triggerErr = fmt.Errorf("player_sync: %w", jobs.ErrJobRunning)
	w, env = s.do(http.MethodPost, "/api/v1/jobs/player_sync/run", nil)
	s.Equal(http.StatusConflict, w.Code)
	s.Equal("CONFLICT", env.Error.Code)

	s.runner.triggerErr = fmt.Errorf("nope: %w", jobs.ErrUnknownJob)
	w, _ = s.do(http.MethodPost, "/api/v1/jobs/nope/run", nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *RouterTestSuite) TestCORS() {
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/alerts", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	s.Equal(http.StatusNoContent, w.Code)
	s.Equal("http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/v1/alerts", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	s.Empty(w.Header().Get("Access-Control-Allow-Origin"))
}
