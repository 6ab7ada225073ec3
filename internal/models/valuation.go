package models

import "time"

type TrendLabel string

const (
	TrendUp     TrendLabel = "up"
	TrendDown   TrendLabel = "down"
	TrendStable TrendLabel = "stable"
)

// PlayerValuation is the derived market view of a player for one league and week.
// It is cached, never persisted.
type PlayerValuation struct {
	PlayerID         string     `json:"player_id"`
	LeagueID         string     `json:"league_id"`
	Season           int        `json:"season"`
	Week             int        `json:"week"`
	Position         Position   `json:"position"`
	CurrentValue     float64    `json:"current_value"`
	ProjectedValue   float64    `json:"projected_value"`
	PerformanceRatio float64    `json:"performance_ratio"`
	ZScore           float64    `json:"z_score"`
	MatchedWeeks     int        `json:"matched_weeks"`
	Trend            TrendLabel `json:"trend"`
	InjuryRisk       float64    `json:"injury_risk"`
	SellHigh         bool       `json:"sell_high"`
	BuyLow           bool       `json:"buy_low"`
	ComputedAt       time.Time  `json:"computed_at"`
}

// All lists every persisted model, in dependency order, for migrations.
func All() []interface{} {
	return []interface{}{
		&Player{},
		&WeeklyStat{},
		&Projection{},
		&League{},
		&RosterSlot{},
		&LeagueRoster{},
		&Transaction{},
		&UserPreferences{},
		&OpponentProfile{},
		&TradeRecommendation{},
		&WaiverRecommendation{},
		&InjuryAlert{},
	}
}
