// Package opponent learns how each opposing roster trades.
package opponent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jstittsworth/fantasy-advisor/internal/models"
	"github.com/jstittsworth/fantasy-advisor/internal/store"
)

// Alpha is the learning rate of every exponential moving average in a profile.
const Alpha = 0.2

// TradeOutcome is one observed trade from the opponent's side.
type TradeOutcome struct {
	PositionsGained     []models.Position
	PositionsLost       []models.Position
	Accepted            bool
	InitiatedByOpponent bool
	GainedInjured       bool
}

type ProfileStore interface {
	GetOpponentProfile(ctx context.Context, leagueID string, rosterID int) (*models.OpponentProfile, error)
	ListOpponentProfiles(ctx context.Context, leagueID string) ([]models.OpponentProfile, error)
	SaveOpponentProfile(ctx context.Context, profile *models.OpponentProfile) error
}

type Learner struct {
	profiles ProfileStore
	now      func() time.Time
	logger   *logrus.Logger
}

func NewLearner(profiles ProfileStore, logger *logrus.Logger) *Learner {
	return &Learner{
		profiles: profiles,
		now:      time.Now,
		logger:   logger,
	}
}

// Profile returns the stored profile, creating a neutral one on first use.
func (l *Learner) Profile(ctx context.Context, leagueID string, rosterID int) (*models.OpponentProfile, error) {
	profile, err := l.profiles.GetOpponentProfile(ctx, leagueID, rosterID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to load opponent profile: %w", err)
	}

	profile = models.NewOpponentProfile(leagueID, rosterID)
	if err := l.profiles.SaveOpponentProfile(ctx, profile); err != nil {
		return nil, fmt.Errorf("failed to create opponent profile: %w", err)
	}
	l.logger.WithFields(logrus.Fields{
		"league_id": leagueID,
		"roster_id": rosterID,
	}).Debug("Opponent profile created")
	return profile, nil
}

// Profiles returns every known profile in a league keyed by roster id.
func (l *Learner) Profiles(ctx context.Context, leagueID string) (map[int]*models.OpponentProfile, error) {
	list, err := l.profiles.ListOpponentProfiles(ctx, leagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to list opponent profiles: %w", err)
	}
	out := make(map[int]*models.OpponentProfile, len(list))
	for i := range list {
		out[list[i].RosterID] = &list[i]
	}
	return out, nil
}

// Record applies an outcome to the roster's profile and persists it.
func (l *Learner) Record(ctx context.Context, leagueID string, rosterID int, outcome TradeOutcome) (*models.OpponentProfile, error) {
	profile, err := l.Profile(ctx, leagueID, rosterID)
	if err != nil {
		return nil, err
	}

	Apply(profile, outcome, l.now().UTC())

	if err := l.profiles.SaveOpponentProfile(ctx, profile); err != nil {
		return nil, fmt.Errorf("failed to save opponent profile: %w", err)
	}

	l.logger.WithFields(logrus.Fields{
		"league_id":       leagueID,
		"roster_id":       rosterID,
		"accepted":        outcome.Accepted,
		"acceptance_rate": profile.AcceptanceRate,
		"data_points":     profile.DataPoints,
	}).Debug("Opponent profile updated")

	return profile, nil
}

// Apply runs the update rule on an in-memory profile.
func Apply(p *models.OpponentProfile, outcome TradeOutcome, at time.Time) {
	for _, pos := range outcome.PositionsGained {
		p.SetPreference(pos, ema(p.Preference(pos), 1.0, Alpha))
	}
	for _, pos := range outcome.PositionsLost {
		p.SetPreference(pos, ema(p.Preference(pos), 0.0, Alpha/2))
	}

	p.TradesProposed++
	if outcome.Accepted {
		p.TradesAccepted++
		p.LastTradeAt = &at
		if outcome.GainedInjured {
			p.RiskTolerance = ema(p.RiskTolerance, 1.0, Alpha)
		} else {
			p.RiskTolerance = ema(p.RiskTolerance, 0.0, Alpha/2)
		}
	} else {
		p.TradesRejected++
	}
	// always from full totals so a rejection never leaves the rate undefined
	p.AcceptanceRate = float64(p.TradesAccepted) / float64(p.TradesProposed)

	if outcome.InitiatedByOpponent {
		p.TradingActivity = ema(p.TradingActivity, 1.0, Alpha)
	}

	gained, lost := len(outcome.PositionsGained), len(outcome.PositionsLost)
	switch {
	case gained < lost:
		p.PrefersStars = true
		p.PrefersDepth = false
	case gained > lost:
		p.PrefersDepth = true
		p.PrefersStars = false
	}

	p.DataPoints++
}

func ema(current, target, alpha float64) float64 {
	return current*(1-alpha) + target*alpha
}
