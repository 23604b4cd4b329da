package models

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestStreakAdvance(t *testing.T) {
	cases := []struct {
		name   string
		start  int
		result FlipResult
		want   int
	}{
		{"first flip heads", 0, FlipHeads, 1},
		{"first flip tails", 0, FlipTails, -1},
		{"heads extends heads run", 3, FlipHeads, 4},
		{"tails extends tails run", -2, FlipTails, -3},
		{"tails resets heads run", 5, FlipTails, -1},
		{"heads resets tails run", -4, FlipHeads, 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := StreakFromSigned(tc.start).Advance(tc.result).Signed()
			if got != tc.want {
				t.Errorf("Advance(%d, %s) = %d, want %d", tc.start, tc.result, got, tc.want)
			}
		})
	}
}

func TestStreakSignedRoundtrip(t *testing.T) {
	for _, v := range []int{-20, -1, 0, 1, 7, 20} {
		if got := StreakFromSigned(v).Signed(); got != v {
			t.Errorf("roundtrip of %d gave %d", v, got)
		}
	}

	s := StreakFromSigned(0)
	if s.Direction != StreakNone || s.Length != 0 {
		t.Errorf("zero should decode to no direction, got %+v", s)
	}
	if StreakFromSigned(-3).Direction != StreakTails {
		t.Error("negative value should decode as a tails run")
	}
}

func TestAchievementTypeForStreak(t *testing.T) {
	cases := map[int]string{
		4:  "",
		5:  "streak_5",
		6:  "",
		10: "streak_10",
		15: "streak_15",
		20: "streak_20",
		21: "",
	}
	for length, want := range cases {
		if got := AchievementTypeForStreak(length); got != want {
			t.Errorf("AchievementTypeForStreak(%d) = %q, want %q", length, got, want)
		}
	}
}

func TestComputeWinRate(t *testing.T) {
	cases := []struct {
		heads, total int
		want         float64
	}{
		{0, 0, 0},
		{1, 2, 50},
		{1, 3, 33},
		{2, 3, 67},
		{10, 10, 100},
	}
	for _, tc := range cases {
		sess := PlaySession{TotalHeads: tc.heads, TotalFlips: tc.total}
		if got := sess.ComputeWinRate(); got != tc.want {
			t.Errorf("win rate for %d/%d = %v, want %v", tc.heads, tc.total, got, tc.want)
		}
	}
}

// The composite unique index is what keeps a rebuilt streak from recording
// the same milestone twice; dropping it from either column breaks the
// idempotence guarantee.
func TestAchievementDedupIndex(t *testing.T) {
	typ := reflect.TypeOf(Achievement{})
	for _, name := range []string{"SessionID", "Type"} {
		field, ok := typ.FieldByName(name)
		if !ok {
			t.Fatalf("Achievement has no field %s", name)
		}
		if !strings.Contains(field.Tag.Get("gorm"), "uniqueIndex:idx_achievement_session_type") {
			t.Errorf("%s must be part of the session/type unique index, tag %q", name, field.Tag.Get("gorm"))
		}
	}
}

func TestSessionStreakAccessor(t *testing.T) {
	now := time.Now()
	sess := PlaySession{CurrentStreak: -4, LastFlipAt: &now}
	s := sess.Streak()
	if s.Direction != StreakTails || s.Length != 4 {
		t.Errorf("expected tails run of 4, got %+v", s)
	}
}
