package models

import (
	"time"

	"gorm.io/datatypes"
)

type League struct {
	ID            string      `gorm:"primaryKey;size:32" json:"id"`
	Name          string      `gorm:"size:120" json:"name"`
	Season        int         `json:"season"`
	OwnerUserID   string      `gorm:"size:32;index" json:"owner_user_id"`
	UserRosterID  int         `json:"user_roster_id"`
	ScoringType   ScoringType `gorm:"size:16;default:ppr" json:"scoring_type"`
	FAABBudget    int         `json:"faab_budget"`
	FAABRemaining int         `json:"faab_remaining"`
	Timezone      string      `gorm:"size:64" json:"timezone,omitempty"`
	Active        bool        `gorm:"not null;index" json:"active"`
	LastSyncedAt  *time.Time  `json:"last_synced_at,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

func (League) TableName() string {
	return "leagues"
}

// RosterSlot is one player on the league owner's roster.
type RosterSlot struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	LeagueID  string    `gorm:"size:32;not null;uniqueIndex:idx_roster_slot" json:"league_id"`
	PlayerID  string    `gorm:"size:32;not null;uniqueIndex:idx_roster_slot" json:"player_id"`
	RosterID  int       `json:"roster_id"`
	IsStarter bool      `gorm:"default:false" json:"is_starter"`
	CreatedAt time.Time `json:"created_at"`
}

func (RosterSlot) TableName() string {
	return "roster_slots"
}

// LeagueRoster is a snapshot of every roster in a league, opponents included.
type LeagueRoster struct {
	ID          uint                        `gorm:"primaryKey" json:"id"`
	LeagueID    string                      `gorm:"size:32;not null;uniqueIndex:idx_league_roster" json:"league_id"`
	RosterID    int                         `gorm:"not null;uniqueIndex:idx_league_roster" json:"roster_id"`
	OwnerUserID string                      `gorm:"size:32" json:"owner_user_id"`
	PlayerIDs   datatypes.JSONSlice[string] `json:"player_ids"`
	UpdatedAt   time.Time                   `json:"updated_at"`
}

func (LeagueRoster) TableName() string {
	return "league_rosters"
}

const (
	TransactionTrade     = "trade"
	TransactionWaiver    = "waiver"
	TransactionFreeAgent = "free_agent"

	TransactionComplete = "complete"
	TransactionFailed   = "failed"
)

// Transaction is the local copy of a feed transaction, keyed by its external id.
type Transaction struct {
	ID              uint                               `gorm:"primaryKey" json:"id"`
	ExternalID      string                             `gorm:"size:64;not null;uniqueIndex" json:"external_id"`
	LeagueID        string                             `gorm:"size:32;not null;index:idx_tx_league_week" json:"league_id"`
	Season          int                                `json:"season"`
	Week            int                                `gorm:"index:idx_tx_league_week" json:"week"`
	Type            string                             `gorm:"size:16;index" json:"type"`
	Status          string                             `gorm:"size:16" json:"status"`
	RosterIDs       datatypes.JSONSlice[int]           `json:"roster_ids"`
	Adds            datatypes.JSONType[map[string]int] `json:"adds"`
	Drops           datatypes.JSONType[map[string]int] `json:"drops"`
	CreatorRosterID int                                `json:"creator_roster_id"`
	WaiverBid       int                                `json:"waiver_bid"`
	Position        Position                           `gorm:"size:8" json:"position,omitempty"`
	OccurredAt      time.Time                          `json:"occurred_at"`
	CreatedAt       time.Time                          `json:"created_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}

// UserPreferences holds the alert handling choices of a league owner.
type UserPreferences struct {
	UserID         string    `gorm:"primaryKey;size:32" json:"user_id"`
	AutoSubstitute bool      `gorm:"default:false" json:"auto_substitute"`
	NotifyPush     bool      `gorm:"not null" json:"notify_push"`
	NotifySMS      bool      `gorm:"default:false" json:"notify_sms"`
	PhoneNumber    string    `gorm:"size:32" json:"phone_number,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (UserPreferences) TableName() string {
	return "user_preferences"
}
