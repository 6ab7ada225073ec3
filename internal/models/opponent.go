package models

import "time"

// OpponentProfile is the learned trading behaviour of one opposing roster.
type OpponentProfile struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	LeagueID        string     `gorm:"size:32;not null;uniqueIndex:idx_opponent_profile" json:"league_id"`
	RosterID        int        `gorm:"not null;uniqueIndex:idx_opponent_profile" json:"roster_id"`
	PrefQB          float64    `json:"pref_qb"`
	PrefRB          float64    `json:"pref_rb"`
	PrefWR          float64    `json:"pref_wr"`
	PrefTE          float64    `json:"pref_te"`
	TradingActivity float64    `json:"trading_activity"`
	AcceptanceRate  float64    `json:"acceptance_rate"`
	RiskTolerance   float64    `json:"risk_tolerance"`
	TradesProposed  int        `json:"trades_proposed"`
	TradesAccepted  int        `json:"trades_accepted"`
	TradesRejected  int        `json:"trades_rejected"`
	PrefersStars    bool       `json:"prefers_stars"`
	PrefersDepth    bool       `json:"prefers_depth"`
	DataPoints      int        `json:"data_points"`
	LastTradeAt     *time.Time `json:"last_trade_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (OpponentProfile) TableName() string {
	return "opponent_profiles"
}

// NewOpponentProfile returns a profile with neutral defaults.
func NewOpponentProfile(leagueID string, rosterID int) *OpponentProfile {
	return &OpponentProfile{
		LeagueID:        leagueID,
		RosterID:        rosterID,
		PrefQB:          0.5,
		PrefRB:          0.5,
		PrefWR:          0.5,
		PrefTE:          0.5,
		TradingActivity: 0.5,
		AcceptanceRate:  0.3,
		RiskTolerance:   0.5,
	}
}

// Preference returns the learned preference for a position. Positions without
// a tracked preference are neutral.
func (p *OpponentProfile) Preference(pos Position) float64 {
	switch pos {
	case PositionQB:
		return p.PrefQB
	case PositionRB:
		return p.PrefRB
	case PositionWR:
		return p.PrefWR
	case PositionTE:
		return p.PrefTE
	default:
		return 0.5
	}
}

// SetPreference stores a position preference; untracked positions are ignored.
func (p *OpponentProfile) SetPreference(pos Position, value float64) bool {
	switch pos {
	case PositionQB:
		p.PrefQB = value
	case PositionRB:
		p.PrefRB = value
	case PositionWR:
		p.PrefWR = value
	case PositionTE:
		p.PrefTE = value
	default:
		return false
	}
	return true
}

// IsRiskTolerant reports whether the opponent tends to accept injured players.
func (p *OpponentProfile) IsRiskTolerant() bool {
	return p.RiskTolerance > 0.6
}
