// Package services exposes the advisor's entry points over plain identifiers.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/jstittsworth/fantasy-advisor/internal/injury"
	"github.com/jstittsworth/fantasy-advisor/internal/models"
	"github.com/jstittsworth/fantasy-advisor/internal/notify"
	"github.com/jstittsworth/fantasy-advisor/internal/projection"
	"github.com/jstittsworth/fantasy-advisor/internal/store"
	"github.com/jstittsworth/fantasy-advisor/internal/waiver"
)

// ErrInvalidInput marks requests rejected before any engine runs.
var ErrInvalidInput = errors.New("invalid input")

const (
	minSeason      = 2000
	maxAlertLimit  = 200
	maxSearchLimit = 25
)

type Projector interface {
	Project(ctx context.Context, playerID string, season, week int) (*models.Projection, error)
}

type Valuer interface {
	Value(ctx context.Context, playerID, leagueID string, season, week int) (*models.PlayerValuation, error)
}

type TradeGenerator interface {
	Generate(ctx context.Context, leagueID string, season, week int) ([]models.TradeRecommendation, error)
	Evaluate(ctx context.Context, leagueID string, season, week, opponentRosterID int, giveIDs, receiveIDs []string) (*models.TradeRecommendation, error)
}

type WaiverGenerator interface {
	Generate(ctx context.Context, leagueID string, season, week int) ([]models.WaiverRecommendation, error)
}

type BidCalculator interface {
	Calculate(ctx context.Context, in waiver.BidInput) (waiver.Bid, error)
}

type MonitorStatus interface {
	Status() injury.Status
}

type LeagueRegistrar interface {
	RegisterLeague(ctx context.Context, leagueID, ownerUserID, timezone string) (*models.League, error)
}

// Deps collects the collaborators of the advisor.
type Deps struct {
	Store     store.Store
	Projector Projector
	Valuer    Valuer
	Trades    TradeGenerator
	Waivers   WaiverGenerator
	Bids      BidCalculator
	Monitor   MonitorStatus
	Leagues   LeagueRegistrar
	Clock     clockwork.Clock
}

type Advisor struct {
	deps   Deps
	logger *logrus.Logger
}

func NewAdvisor(deps Deps, logger *logrus.Logger) *Advisor {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	return &Advisor{deps: deps, logger: logger}
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func validateID(name, id string) error {
	if strings.TrimSpace(id) == "" {
		return invalid("%s is required", name)
	}
	return nil
}

func validateWeek(season, week int, allowROS bool) error {
	if season < minSeason {
		return invalid("season %d out of range", season)
	}
	minWeek := 1
	if allowROS {
		minWeek = models.RestOfSeasonWeek
	}
	if week < minWeek || week > projection.RegularSeasonWeeks {
		return invalid("week %d out of range", week)
	}
	return nil
}

// GetProjection returns the stored projection for a player and week. A
// missing weekly projection is computed and stored on demand.
func (a *Advisor) GetProjection(ctx context.Context, playerID string, season, week int) (*models.Projection, error) {
	if err := validateID("player_id", playerID); err != nil {
		return nil, err
	}
	if err := validateWeek(season, week, true); err != nil {
		return nil, err
	}

	proj, err := a.deps.Store.FindProjection(ctx, playerID, season, week)
	if err == nil {
		return proj, nil
	}
	if !errors.Is(err, store.ErrNotFound) || week == models.RestOfSeasonWeek {
		return nil, err
	}

	proj, err = a.deps.Projector.Project(ctx, playerID, season, week)
	if err != nil {
		return nil, err
	}
	if err := a.deps.Store.UpsertProjections(ctx, []models.Projection{*proj}); err != nil {
		a.logger.WithError(err).WithField("player_id", playerID).Warn("Failed to store on-demand projection")
	}
	return proj, nil
}

func (a *Advisor) GetProjections(ctx context.Context, filter store.ProjectionFilter) ([]models.Projection, error) {
	if filter.Season < minSeason {
		return nil, invalid("season %d out of range", filter.Season)
	}
	if filter.Week != nil {
		if err := validateWeek(filter.Season, *filter.Week, true); err != nil {
			return nil, err
		}
	}
	if filter.Limit < 0 {
		return nil, invalid("limit must not be negative")
	}
	return a.deps.Store.ListProjections(ctx, filter)
}

// SearchPlayers looks players up by approximate name.
func (a *Advisor) SearchPlayers(ctx context.Context, query string, limit int) ([]models.Player, error) {
	if err := validateID("q", query); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	return a.deps.Store.SearchPlayers(ctx, query, limit)
}

func (a *Advisor) GetValuation(ctx context.Context, playerID, leagueID string, season, week int) (*models.PlayerValuation, error) {
	if err := validateID("player_id", playerID); err != nil {
		return nil, err
	}
	if err := validateID("league_id", leagueID); err != nil {
		return nil, err
	}
	if err := validateWeek(season, week, false); err != nil {
		return nil, err
	}
	return a.deps.Valuer.Value(ctx, playerID, leagueID, season, week)
}

func (a *Advisor) GetTradeRecommendations(ctx context.Context, leagueID string, season, week int) ([]models.TradeRecommendation, error) {
	if err := a.checkLeagueWeek(ctx, leagueID, season, week); err != nil {
		return nil, err
	}
	return a.deps.Store.ListTradeRecommendations(ctx, leagueID, season, week)
}

func (a *Advisor) GenerateTradeRecommendations(ctx context.Context, leagueID string, season, week int) ([]models.TradeRecommendation, error) {
	if err := a.checkLeagueWeek(ctx, leagueID, season, week); err != nil {
		return nil, err
	}
	return a.deps.Trades.Generate(ctx, leagueID, season, week)
}

type TradeProposal struct {
	LeagueID         string   `json:"league_id"`
	Season           int      `json:"season"`
	Week             int      `json:"week"`
	OpponentRosterID int      `json:"opponent_roster_id"`
	GivePlayerIDs    []string `json:"give_player_ids"`
	ReceivePlayerIDs []string `json:"receive_player_ids"`
}

func (a *Advisor) EvaluateTrade(ctx context.Context, p TradeProposal) (*models.TradeRecommendation, error) {
	if err := a.checkLeagueWeek(ctx, p.LeagueID, p.Season, p.Week); err != nil {
		return nil, err
	}
	if p.OpponentRosterID <= 0 {
		return nil, invalid("opponent_roster_id is required")
	}
	if len(p.GivePlayerIDs) == 0 || len(p.ReceivePlayerIDs) == 0 {
		return nil, invalid("both sides of a trade need at least one player")
	}
	return a.deps.Trades.Evaluate(ctx, p.LeagueID, p.Season, p.Week, p.OpponentRosterID, p.GivePlayerIDs, p.ReceivePlayerIDs)
}

func (a *Advisor) GetWaiverRecommendations(ctx context.Context, leagueID string, season, week int) ([]models.WaiverRecommendation, error) {
	if err := a.checkLeagueWeek(ctx, leagueID, season, week); err != nil {
		return nil, err
	}
	return a.deps.Store.ListWaiverRecommendations(ctx, leagueID, season, week)
}

func (a *Advisor) GenerateWaiverRecommendations(ctx context.Context, leagueID string, season, week int) ([]models.WaiverRecommendation, error) {
	if err := a.checkLeagueWeek(ctx, leagueID, season, week); err != nil {
		return nil, err
	}
	return a.deps.Waivers.Generate(ctx, leagueID, season, week)
}

type BidRequest struct {
	Position        models.Position `json:"position"`
	Opportunity     float64         `json:"opportunity_score"`
	Need            float64         `json:"positional_need"`
	TrendPercentage float64         `json:"trend_percentage"`
}

// CalculateBid prices a single claim against the league's remaining budget.
func (a *Advisor) CalculateBid(ctx context.Context, leagueID string, req BidRequest) (*waiver.Bid, error) {
	if err := validateID("league_id", leagueID); err != nil {
		return nil, err
	}
	if !req.Position.IsValid() {
		return nil, invalid("unknown position %q", req.Position)
	}
	if req.Opportunity < 0 || req.Opportunity > 1 || req.Need < 0 || req.Need > 1 {
		return nil, invalid("opportunity and need must be within [0,1]")
	}
	if req.TrendPercentage < 0 {
		return nil, invalid("trend_percentage must not be negative")
	}

	league, err := a.deps.Store.GetLeague(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	bid, err := a.deps.Bids.Calculate(ctx, waiver.BidInput{
		League:          league,
		Position:        req.Position,
		Opportunity:     req.Opportunity,
		Need:            req.Need,
		TrendPercentage: req.TrendPercentage,
	})
	if err != nil {
		return nil, err
	}
	return &bid, nil
}

func (a *Advisor) GetInjuryAlerts(ctx context.Context, filter store.AlertFilter) ([]models.InjuryAlert, error) {
	if filter.LeagueID == "" && filter.UserID == "" {
		return nil, invalid("league_id or user_id is required")
	}
	if filter.Limit < 0 || filter.Limit > maxAlertLimit {
		return nil, invalid("limit must be within [0,%d]", maxAlertLimit)
	}
	return a.deps.Store.ListInjuryAlerts(ctx, filter)
}

// AcknowledgeAlert marks an alert as seen. Acknowledging twice keeps the
// first timestamp.
func (a *Advisor) AcknowledgeAlert(ctx context.Context, alertID string) (*models.InjuryAlert, error) {
	if err := validateID("alert_id", alertID); err != nil {
		return nil, err
	}
	alert, err := a.deps.Store.GetInjuryAlert(ctx, alertID)
	if err != nil {
		return nil, err
	}
	if alert.Acknowledged {
		return alert, nil
	}

	now := a.deps.Clock.Now().UTC()
	alert.Acknowledged = true
	alert.AcknowledgedAt = &now
	if err := a.deps.Store.UpdateInjuryAlert(ctx, alert); err != nil {
		return nil, err
	}
	return alert, nil
}

func (a *Advisor) GetMonitoringStatus() injury.Status {
	if a.deps.Monitor == nil {
		return injury.Status{}
	}
	return a.deps.Monitor.Status()
}

func (a *Advisor) RegisterLeague(ctx context.Context, leagueID, ownerUserID, timezone string) (*models.League, error) {
	if err := validateID("league_id", leagueID); err != nil {
		return nil, err
	}
	if err := validateID("owner_user_id", ownerUserID); err != nil {
		return nil, err
	}
	return a.deps.Leagues.RegisterLeague(ctx, leagueID, ownerUserID, timezone)
}

// UpdatePreferences stores alert preferences. Phone numbers are normalised
// to E.164.
func (a *Advisor) UpdatePreferences(ctx context.Context, prefs *models.UserPreferences) (*models.UserPreferences, error) {
	if prefs == nil {
		return nil, invalid("preferences are required")
	}
	if err := validateID("user_id", prefs.UserID); err != nil {
		return nil, err
	}
	if prefs.PhoneNumber != "" {
		normalized, err := notify.NormalizePhoneNumber(prefs.PhoneNumber)
		if err != nil {
			return nil, invalid("%v", err)
		}
		prefs.PhoneNumber = normalized
	}
	if prefs.NotifySMS && prefs.PhoneNumber == "" {
		return nil, invalid("phone_number is required for SMS alerts")
	}
	if err := a.deps.Store.SaveUserPreferences(ctx, prefs); err != nil {
		return nil, err
	}
	return prefs, nil
}

func (a *Advisor) GetPreferences(ctx context.Context, userID string) (*models.UserPreferences, error) {
	if err := validateID("user_id", userID); err != nil {
		return nil, err
	}
	return a.deps.Store.GetUserPreferences(ctx, userID)
}

func (a *Advisor) checkLeagueWeek(ctx context.Context, leagueID string, season, week int) error {
	if err := validateID("league_id", leagueID); err != nil {
		return err
	}
	if err := validateWeek(season, week, false); err != nil {
		return err
	}
	_, err := a.deps.Store.GetLeague(ctx, leagueID)
	return err
}
