package models

import (
	"time"

	"gorm.io/datatypes"
)

type Position string

const (
	PositionQB  Position = "QB"
	PositionRB  Position = "RB"
	PositionWR  Position = "WR"
	PositionTE  Position = "TE"
	PositionK   Position = "K"
	PositionDEF Position = "DEF"
)

// FantasyPositions lists every position the engines value.
var FantasyPositions = []Position{PositionQB, PositionRB, PositionWR, PositionTE, PositionK, PositionDEF}

func (p Position) IsValid() bool {
	for _, pos := range FantasyPositions {
		if p == pos {
			return true
		}
	}
	return false
}

type PlayerStatus string

const (
	StatusActive       PlayerStatus = "Active"
	StatusQuestionable PlayerStatus = "Questionable"
	StatusDoubtful     PlayerStatus = "Doubtful"
	StatusOut          PlayerStatus = "Out"
	StatusInactive     PlayerStatus = "Inactive"
)

// CannotPlay reports whether the status rules the player out of the game.
func (s PlayerStatus) CannotPlay() bool {
	return s == StatusOut || s == StatusInactive
}

type ScoringType string

const (
	ScoringStandard ScoringType = "standard"
	ScoringHalfPPR  ScoringType = "half_ppr"
	ScoringPPR      ScoringType = "ppr"
)

type ProjectionSource string

const (
	SourceHistoricalAnalysis ProjectionSource = "historical_analysis"
	SourcePositionAverage    ProjectionSource = "position_average"
	SourceBasicAlgorithm     ProjectionSource = "basic_algorithm"
)

// RestOfSeasonWeek is the week number under which season-long projections are stored.
const RestOfSeasonWeek = 0

type Player struct {
	ID           string       `gorm:"primaryKey;size:32" json:"id"`
	FullName     string       `gorm:"size:120;index" json:"full_name"`
	Position     Position     `gorm:"size:8;index" json:"position"`
	Team         string       `gorm:"size:8;index" json:"team"`
	Status       PlayerStatus `gorm:"size:16;default:Active" json:"status"`
	InjuryStatus string       `gorm:"size:32" json:"injury_status,omitempty"`
	Active       bool         `gorm:"not null" json:"active"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

func (Player) TableName() string {
	return "players"
}

// StatBag maps feed stat keys (pass_yd, rec, ...) to values.
type StatBag map[string]float64

type WeeklyStat struct {
	ID         uint                        `gorm:"primaryKey" json:"id"`
	PlayerID   string                      `gorm:"size:32;not null;uniqueIndex:idx_weekly_stat_key" json:"player_id"`
	Season     int                         `gorm:"not null;uniqueIndex:idx_weekly_stat_key" json:"season"`
	Week       int                         `gorm:"not null;uniqueIndex:idx_weekly_stat_key" json:"week"`
	Stats      datatypes.JSONType[StatBag] `json:"stats"`
	PtsStd     float64                     `json:"pts_std"`
	PtsHalfPPR float64                     `json:"pts_half_ppr"`
	PtsPPR     float64                     `json:"pts_ppr"`
	IsFinal    bool                        `gorm:"default:false" json:"is_final"`
	CreatedAt  time.Time                   `json:"created_at"`
	UpdatedAt  time.Time                   `json:"updated_at"`
}

func (WeeklyStat) TableName() string {
	return "weekly_stats"
}

// Points returns the stored total for the given scoring type. Unknown types score as PPR.
func (w WeeklyStat) Points(scoring ScoringType) float64 {
	switch scoring {
	case ScoringStandard:
		return w.PtsStd
	case ScoringHalfPPR:
		return w.PtsHalfPPR
	default:
		return w.PtsPPR
	}
}

type Projection struct {
	ID              uint                        `gorm:"primaryKey" json:"id"`
	PlayerID        string                      `gorm:"size:32;not null;uniqueIndex:idx_projection_key" json:"player_id"`
	Season          int                         `gorm:"not null;uniqueIndex:idx_projection_key" json:"season"`
	Week            int                         `gorm:"not null;uniqueIndex:idx_projection_key" json:"week"`
	Source          ProjectionSource            `gorm:"size:32;not null;uniqueIndex:idx_projection_key" json:"source"`
	ProjectedPoints float64                     `json:"projected_points"`
	Confidence      float64                     `json:"confidence"`
	Stats           datatypes.JSONType[StatBag] `json:"stats,omitempty"`
	CreatedAt       time.Time                   `json:"created_at"`
	UpdatedAt       time.Time                   `json:"updated_at"`
}

func (Projection) TableName() string {
	return "projections"
}

// IsRestOfSeason reports whether the projection covers the remainder of the season.
func (p Projection) IsRestOfSeason() bool {
	return p.Week == RestOfSeasonWeek
}
