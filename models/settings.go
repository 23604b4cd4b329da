package models

import (
	"time"
)

// Default values applied when the settings row is lazily created.
const (
	DefaultMinStreakForLeaderboard  = 5
	DefaultCompetitionDurationHours = 24
	DefaultMaxFlipsPerMinute        = 240
	DefaultDailyFailLimit           = 3
)

// MinFlipIntervalFloor is the hard lower bound on the gap between two flips of
// one session, no matter how high max_flips_per_minute is tuned.
const MinFlipIntervalFloor = 250 * time.Millisecond

// GameSettings is a single-row table. SingletonKey carries a unique index so
// the lazy create-on-first-read cannot produce duplicate rows under
// concurrent access: the losing insert is a no-op and both readers see the
// same row.
type GameSettings struct {
	ID                       string    `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	SingletonKey             string    `json:"-" gorm:"uniqueIndex;not null;default:'default'"`
	MinStreakForLeaderboard  int       `json:"min_streak_for_leaderboard" gorm:"not null;default:5"`
	CompetitionDurationHours int       `json:"competition_duration_hours" gorm:"not null;default:24"`
	MaxFlipsPerMinute        int       `json:"max_flips_per_minute" gorm:"not null;default:240"`
	DailyFailLimit           int       `json:"daily_fail_limit" gorm:"not null;default:3"`
	CreatedAt                time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt                time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// MinFlipInterval translates the per-minute flip rate into the minimum gap
// enforced between two flips of one session.
func (s *GameSettings) MinFlipInterval() time.Duration {
	if s.MaxFlipsPerMinute < 1 {
		return MinFlipIntervalFloor
	}
	interval := time.Minute / time.Duration(s.MaxFlipsPerMinute)
	if interval < MinFlipIntervalFloor {
		interval = MinFlipIntervalFloor
	}
	return interval
}
