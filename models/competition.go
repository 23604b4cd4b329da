package models

import (
	"time"
)

// Derived competition status values, computed from the stored flags rather
// than persisted.
const (
	CompetitionStatusActive          = "active"
	CompetitionStatusPendingEnd      = "pending_end"
	CompetitionStatusEnded           = "ended"
	CompetitionStatusWinnersSelected = "winners_selected"
	CompetitionStatusCompleted       = "completed"
)

// Competition is one time-boxed round of play. At most one row is active at
// a time, enforced by the partial unique index on IsActive; the losing side
// of a concurrent create falls back to reading the winner.
type Competition struct {
	ID              string    `json:"id" gorm:"primaryKey"`
	StartTime       time.Time `json:"start_time" gorm:"not null;index"`
	EndTime         time.Time `json:"end_time" gorm:"not null;index"`
	IsActive        bool      `json:"is_active" gorm:"default:false;index;uniqueIndex:idx_competitions_one_active,where:is_active = true"`
	TotalPlayers    int64     `json:"total_players" gorm:"default:0"`
	TotalFlips      int64     `json:"total_flips" gorm:"default:0"`
	PrizeText       string    `json:"prize_text"`
	PrizeImageURL   string    `json:"prize_image_url" gorm:"type:text"`
	RequiresAddress bool      `json:"requires_address" gorm:"default:false"`
	WinnersSelected bool      `json:"winners_selected" gorm:"default:false"`
	PrizeDelivered  bool      `json:"prize_delivered" gorm:"default:false"`
	WinnerUserID    string    `json:"winner_user_id,omitempty"`
	CreatedAt       time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt       time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	// Calculated fields (not stored in DB)
	Status               string `json:"status,omitempty" gorm:"-"`
	TimeRemainingSeconds int64  `json:"time_remaining_seconds" gorm:"-"`
}

// DeriveStatus maps the stored flags onto the lifecycle:
// Active → Ended(no winners) → Ended(winners selected) → Ended(prize delivered).
func (c *Competition) DeriveStatus(now time.Time) string {
	if c.IsActive {
		if c.EndTime.After(now) {
			return CompetitionStatusActive
		}
		return CompetitionStatusPendingEnd
	}
	if !c.WinnersSelected {
		return CompetitionStatusEnded
	}
	if !c.PrizeDelivered {
		return CompetitionStatusWinnersSelected
	}
	return CompetitionStatusCompleted
}

// TimeRemaining clamps at zero once the end time has passed.
func (c *Competition) TimeRemaining(now time.Time) time.Duration {
	remaining := c.EndTime.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Annotate fills the calculated fields for API responses.
func (c *Competition) Annotate(now time.Time) {
	c.Status = c.DeriveStatus(now)
	c.TimeRemainingSeconds = int64(c.TimeRemaining(now).Seconds())
}

// CompetitionWinner is an immutable selection record. Positions within one
// competition are unique and contiguous from 1; manual re-selection replaces
// all rows for the competition, never merges.
type CompetitionWinner struct {
	ID            string    `json:"id" gorm:"primaryKey"`
	CompetitionID string    `json:"competition_id" gorm:"not null;uniqueIndex:idx_winner_competition_position"`
	Position      int       `json:"position" gorm:"not null;uniqueIndex:idx_winner_competition_position"`
	UserID        string    `json:"user_id" gorm:"not null;index"`
	FinalStreak   int       `json:"final_streak" gorm:"not null"`
	SelectedBy    string    `json:"selected_by"`
	SelectedAt    time.Time `json:"selected_at" gorm:"autoCreateTime"`
}
