package models

import (
	"time"

	"gorm.io/datatypes"
)

type TradeShape string

const (
	ShapeOneForOne TradeShape = "1-for-1"
	ShapeTwoForOne TradeShape = "2-for-1"
	ShapeTwoForTwo TradeShape = "2-for-2"
	ShapeCustom    TradeShape = "custom"
)

type TradeRecommendation struct {
	ID                    uint                        `gorm:"primaryKey" json:"id"`
	GenerationID          string                      `gorm:"size:36;index" json:"generation_id"`
	LeagueID              string                      `gorm:"size:32;not null;index:idx_trade_rec_key" json:"league_id"`
	Season                int                         `gorm:"not null;index:idx_trade_rec_key" json:"season"`
	Week                  int                         `gorm:"not null;index:idx_trade_rec_key" json:"week"`
	Rank                  int                         `json:"rank"`
	OpponentRosterID      int                         `json:"opponent_roster_id"`
	Shape                 TradeShape                  `gorm:"size:16" json:"shape"`
	GivePlayerIDs         datatypes.JSONSlice[string] `json:"give_player_ids"`
	ReceivePlayerIDs      datatypes.JSONSlice[string] `json:"receive_player_ids"`
	GiveValue             float64                     `json:"give_value"`
	ReceiveValue          float64                     `json:"receive_value"`
	ValueGained           float64                     `json:"value_gained"`
	FairnessScore         float64                     `json:"fairness_score"`
	AcceptanceProbability float64                     `json:"acceptance_probability"`
	Score                 float64                     `json:"score"`
	Rationale             string                      `gorm:"type:text" json:"rationale"`
	CreatedAt             time.Time                   `json:"created_at"`
}

func (TradeRecommendation) TableName() string {
	return "trade_recommendations"
}

type WaiverRecommendation struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	GenerationID        string    `gorm:"size:36;index" json:"generation_id"`
	LeagueID            string    `gorm:"size:32;not null;index:idx_waiver_rec_key" json:"league_id"`
	Season              int       `gorm:"not null;index:idx_waiver_rec_key" json:"season"`
	Week                int       `gorm:"not null;index:idx_waiver_rec_key" json:"week"`
	Rank                int       `json:"rank"`
	PlayerID            string    `gorm:"size:32;not null" json:"player_id"`
	Position            Position  `gorm:"size:8" json:"position"`
	DropPlayerID        string    `gorm:"size:32" json:"drop_player_id,omitempty"`
	OpportunityScore    float64   `json:"opportunity_score"`
	PositionalNeed      float64   `json:"positional_need"`
	TrendPercentage     float64   `json:"trend_percentage"`
	ProjectedPoints     float64   `json:"projected_points"`
	RecommendedBid      int       `json:"recommended_bid"`
	MinBid              int       `json:"min_bid"`
	MaxBid              int       `json:"max_bid"`
	MedianHistoricalBid float64   `json:"median_historical_bid"`
	Priority            float64   `json:"priority"`
	Reason              string    `gorm:"type:text" json:"reason"`
	CreatedAt           time.Time `json:"created_at"`
}

func (WaiverRecommendation) TableName() string {
	return "waiver_recommendations"
}

type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

type InjuryAlert struct {
	ID                   string       `gorm:"primaryKey;size:36" json:"id"`
	LeagueID             string       `gorm:"size:32;not null;index" json:"league_id"`
	UserID               string       `gorm:"size:32;index" json:"user_id"`
	PlayerID             string       `gorm:"size:32;not null" json:"player_id"`
	PreviousStatus       PlayerStatus `gorm:"size:16" json:"previous_status"`
	NewStatus            PlayerStatus `gorm:"size:16" json:"new_status"`
	Urgency              Urgency      `gorm:"size:16" json:"urgency"`
	IsUrgent             bool         `json:"is_urgent"`
	MinutesToKickoff     int          `json:"minutes_to_kickoff"`
	Kickoff              time.Time    `json:"kickoff"`
	SubstitutePlayerID   *string      `gorm:"size:32" json:"substitute_player_id,omitempty"`
	SubstituteProjection float64      `json:"substitute_projection"`
	AutoSubstituted      bool         `json:"auto_substituted"`
	NotificationSent     bool         `json:"notification_sent"`
	NotifiedAt           *time.Time   `json:"notified_at,omitempty"`
	Acknowledged         bool         `gorm:"index" json:"acknowledged"`
	AcknowledgedAt       *time.Time   `json:"acknowledged_at,omitempty"`
	CreatedAt            time.Time    `json:"created_at"`
	UpdatedAt            time.Time    `json:"updated_at"`
}

func (InjuryAlert) TableName() string {
	return "injury_alerts"
}
