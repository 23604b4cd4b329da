package models

import (
	"fmt"
	"math"
	"time"
)

// FlipResult is a coin side.
type FlipResult string

const (
	FlipHeads FlipResult = "heads"
	FlipTails FlipResult = "tails"
)

// StreakDirection tags which side the current run is on.
type StreakDirection int

const (
	StreakNone StreakDirection = iota
	StreakHeads
	StreakTails
)

// Streak is the current run as an explicit direction plus length. The stored
// and serialized form stays a signed integer (heads positive, tails negative,
// zero before the first flip) for client compatibility.
type Streak struct {
	Direction StreakDirection
	Length    int
}

// StreakFromSigned decodes the column representation.
func StreakFromSigned(v int) Streak {
	switch {
	case v > 0:
		return Streak{Direction: StreakHeads, Length: v}
	case v < 0:
		return Streak{Direction: StreakTails, Length: -v}
	default:
		return Streak{}
	}
}

// Signed encodes back to the column representation.
func (s Streak) Signed() int {
	switch s.Direction {
	case StreakHeads:
		return s.Length
	case StreakTails:
		return -s.Length
	default:
		return 0
	}
}

// Advance applies one flip outcome: a matching outcome extends the run, any
// other outcome starts a new run of length 1 on that side.
func (s Streak) Advance(result FlipResult) Streak {
	if result == FlipHeads {
		if s.Direction == StreakHeads {
			return Streak{Direction: StreakHeads, Length: s.Length + 1}
		}
		return Streak{Direction: StreakHeads, Length: 1}
	}
	if s.Direction == StreakTails {
		return Streak{Direction: StreakTails, Length: s.Length + 1}
	}
	return Streak{Direction: StreakTails, Length: 1}
}

// PlaySession is one user's cumulative play record within one competition,
// created lazily on the first flip. The composite unique index keeps a
// concurrent first flip from producing two sessions.
type PlaySession struct {
	ID              string     `json:"id" gorm:"primaryKey"`
	CompetitionID   string     `json:"competition_id" gorm:"not null;uniqueIndex:idx_session_competition_user"`
	UserID          string     `json:"user_id" gorm:"not null;uniqueIndex:idx_session_competition_user"`
	TotalFlips      int        `json:"total_flips" gorm:"default:0"`
	TotalHeads      int        `json:"total_heads" gorm:"default:0"`
	TotalTails      int        `json:"total_tails" gorm:"default:0"`
	CurrentStreak   int        `json:"current_streak" gorm:"default:0"` // signed run length, see Streak
	BestHeadsStreak int        `json:"best_heads_streak" gorm:"default:0"`
	BestTailsStreak int        `json:"best_tails_streak" gorm:"default:0"`
	DailyFailsUsed  int        `json:"daily_fails_used" gorm:"default:0"`
	LastFlipAt      *time.Time `json:"last_flip_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt       time.Time  `json:"updated_at" gorm:"autoUpdateTime"`

	// Calculated field (not stored in DB)
	WinRate float64 `json:"win_rate" gorm:"-"`
}

// Streak returns the tagged form of the signed counter.
func (s *PlaySession) Streak() Streak {
	return StreakFromSigned(s.CurrentStreak)
}

// ComputeWinRate returns heads over total as a whole-number percentage.
func (s *PlaySession) ComputeWinRate() float64 {
	if s.TotalFlips == 0 {
		return 0
	}
	return math.Round(float64(s.TotalHeads) / float64(s.TotalFlips) * 100)
}

// Flip is an append-only record of a single toss. Never updated or deleted
// except when its session is removed.
type Flip struct {
	ID          string     `json:"id" gorm:"primaryKey"`
	SessionID   string     `json:"session_id" gorm:"not null;index"`
	UserID      string     `json:"user_id" gorm:"not null;index"`
	Result      FlipResult `json:"result" gorm:"type:varchar(8);not null"`
	StreakCount int        `json:"streak_count" gorm:"not null"` // absolute run length after this flip
	FlippedAt   time.Time  `json:"flipped_at" gorm:"autoCreateTime;index"`
}

// AchievementThresholds are the heads-streak milestones, ascending.
var AchievementThresholds = []int{5, 10, 15, 20}

// AchievementTypeForStreak returns the milestone key ("streak_5" etc.) or ""
// when the length is not a milestone.
func AchievementTypeForStreak(length int) string {
	for _, threshold := range AchievementThresholds {
		if length == threshold {
			return fmt.Sprintf("streak_%d", threshold)
		}
	}
	return ""
}

// Achievement ties a session to a milestone. The unique index makes insertion
// idempotent per (session, type): rebuilding the same streak twice records
// the milestone once.
type Achievement struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	SessionID   string    `json:"session_id" gorm:"not null;uniqueIndex:idx_achievement_session_type"`
	Type        string    `json:"type" gorm:"not null;uniqueIndex:idx_achievement_session_type"`
	UserID      string    `json:"user_id" gorm:"index"`
	StreakValue int       `json:"streak_value"`
	UnlockedAt  time.Time `json:"unlocked_at" gorm:"autoCreateTime"`
}
