package services

import (
	"testing"
	"time"

	"coin-toss-system/models"
)

func testSettings() *models.GameSettings {
	return &models.GameSettings{
		MinStreakForLeaderboard:  models.DefaultMinStreakForLeaderboard,
		CompetitionDurationHours: models.DefaultCompetitionDurationHours,
		MaxFlipsPerMinute:        models.DefaultMaxFlipsPerMinute,
		DailyFailLimit:           models.DefaultDailyFailLimit,
	}
}

func TestApplyFlipCounters(t *testing.T) {
	now := time.Now()
	sess := &models.PlaySession{}

	streak, achievement := applyFlip(sess, models.FlipHeads, now)
	if streak.Signed() != 1 {
		t.Fatalf("first heads should give streak 1, got %d", streak.Signed())
	}
	if achievement != "" {
		t.Errorf("streak 1 must not unlock anything, got %q", achievement)
	}
	if sess.TotalFlips != 1 || sess.TotalHeads != 1 || sess.TotalTails != 0 {
		t.Errorf("counters off after heads: %+v", sess)
	}
	if sess.LastFlipAt == nil || !sess.LastFlipAt.Equal(now) {
		t.Error("lastFlipAt must be set to the flip time")
	}

	streak, _ = applyFlip(sess, models.FlipTails, now)
	if streak.Signed() != -1 {
		t.Fatalf("tails after heads should give streak -1, got %d", streak.Signed())
	}
	if sess.DailyFailsUsed != 1 {
		t.Errorf("tails must consume a daily fail, got %d", sess.DailyFailsUsed)
	}
	if sess.TotalFlips != sess.TotalHeads+sess.TotalTails {
		t.Errorf("totalFlips != heads+tails: %+v", sess)
	}
}

func TestApplyFlipStreakTransitions(t *testing.T) {
	cases := []struct {
		name   string
		start  int
		result models.FlipResult
		want   int
	}{
		{"heads on zero", 0, models.FlipHeads, 1},
		{"heads on heads run", 4, models.FlipHeads, 5},
		{"heads on tails run", -3, models.FlipHeads, 1},
		{"tails on zero", 0, models.FlipTails, -1},
		{"tails on tails run", -1, models.FlipTails, -2},
		{"tails on heads run", 6, models.FlipTails, -1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sess := &models.PlaySession{CurrentStreak: tc.start}
			streak, _ := applyFlip(sess, tc.result, time.Now())
			if streak.Signed() != tc.want {
				t.Errorf("streak %d + %s = %d, want %d", tc.start, tc.result, streak.Signed(), tc.want)
			}
			if sess.CurrentStreak != tc.want {
				t.Errorf("session counter %d, want %d", sess.CurrentStreak, tc.want)
			}
		})
	}
}

func TestApplyFlipBestStreaksMonotonic(t *testing.T) {
	now := time.Now()
	sess := &models.PlaySession{CurrentStreak: 7, BestHeadsStreak: 7, BestTailsStreak: 2}

	// tails breaks the run; best heads must not move
	applyFlip(sess, models.FlipTails, now)
	if sess.BestHeadsStreak != 7 {
		t.Errorf("best heads streak regressed to %d", sess.BestHeadsStreak)
	}
	if sess.BestTailsStreak != 2 {
		t.Errorf("tails run of 1 must not raise best tails of 2, got %d", sess.BestTailsStreak)
	}

	applyFlip(sess, models.FlipTails, now)
	applyFlip(sess, models.FlipTails, now)
	if sess.BestTailsStreak != 3 {
		t.Errorf("tails run of 3 should raise best tails, got %d", sess.BestTailsStreak)
	}

	for i := 0; i < 8; i++ {
		applyFlip(sess, models.FlipHeads, now)
	}
	if sess.BestHeadsStreak != 8 {
		t.Errorf("heads run of 8 should raise best heads, got %d", sess.BestHeadsStreak)
	}
}

func TestApplyFlipAchievementMilestones(t *testing.T) {
	now := time.Now()
	sess := &models.PlaySession{}

	var unlocked []string
	for i := 0; i < 20; i++ {
		_, achievement := applyFlip(sess, models.FlipHeads, now)
		if achievement != "" {
			unlocked = append(unlocked, achievement)
		}
	}

	want := []string{"streak_5", "streak_10", "streak_15", "streak_20"}
	if len(unlocked) != len(want) {
		t.Fatalf("expected %v, got %v", want, unlocked)
	}
	for i := range want {
		if unlocked[i] != want[i] {
			t.Errorf("milestone %d: got %q, want %q", i, unlocked[i], want[i])
		}
	}

	// tails runs never unlock
	sess = &models.PlaySession{}
	for i := 0; i < 6; i++ {
		if _, achievement := applyFlip(sess, models.FlipTails, now); achievement != "" {
			t.Fatalf("tails streak unlocked %q", achievement)
		}
	}
}

// A tails reset followed by a rebuild reaches the same milestone type again.
// The grant must stay single: the (session, type) unique index absorbs the
// second insert and only an insert that affected a row is announced.
func TestAchievementMilestoneRepeatsAfterRebuild(t *testing.T) {
	now := time.Now()
	sess := &models.PlaySession{}

	climbToFive := func() string {
		milestone := ""
		for i := 0; i < 5; i++ {
			if _, achievement := applyFlip(sess, models.FlipHeads, now); achievement != "" {
				milestone = achievement
			}
		}
		return milestone
	}

	first := climbToFive()
	if first != "streak_5" {
		t.Fatalf("first climb emitted %q, want streak_5", first)
	}

	applyFlip(sess, models.FlipTails, now) // break the run

	second := climbToFive()
	if second != first {
		t.Fatalf("rebuild emitted %q, want the same %q pair for the index to collapse", second, first)
	}
	if sess.BestHeadsStreak != 5 {
		t.Errorf("best heads streak = %d, want 5", sess.BestHeadsStreak)
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	cases := []struct {
		remaining time.Duration
		want      int
	}{
		{0, 1},
		{150 * time.Millisecond, 1},
		{time.Second, 1},
		{1200 * time.Millisecond, 2},
		{3 * time.Second, 3},
	}
	for _, tc := range cases {
		if got := retryAfterSeconds(tc.remaining); got != tc.want {
			t.Errorf("retryAfterSeconds(%v) = %d, want %d", tc.remaining, got, tc.want)
		}
	}
}

func TestRateGateRemaining(t *testing.T) {
	settings := testSettings()
	now := time.Now()

	t.Run("first flip passes", func(t *testing.T) {
		sess := &models.PlaySession{}
		if remaining := rateGateRemaining(sess, settings, now); remaining != 0 {
			t.Errorf("fresh session must pass, got %v", remaining)
		}
	})

	t.Run("too fast is rejected with the remainder", func(t *testing.T) {
		last := now.Add(-100 * time.Millisecond)
		sess := &models.PlaySession{LastFlipAt: &last}
		remaining := rateGateRemaining(sess, settings, now)
		if remaining != 150*time.Millisecond {
			t.Errorf("expected 150ms left of the 250ms floor, got %v", remaining)
		}
	})

	t.Run("after the interval passes", func(t *testing.T) {
		last := now.Add(-time.Second)
		sess := &models.PlaySession{LastFlipAt: &last}
		if remaining := rateGateRemaining(sess, settings, now); remaining != 0 {
			t.Errorf("expected pass, got %v", remaining)
		}
	})
}

func TestDailyLimitBlocks(t *testing.T) {
	settings := testSettings() // limit 3

	atLimit := &models.PlaySession{DailyFailsUsed: 3}
	if !dailyLimitBlocks(atLimit, settings, models.FlipTails) {
		t.Error("tails at the limit must be blocked")
	}
	if dailyLimitBlocks(atLimit, settings, models.FlipHeads) {
		t.Error("heads never consume the allowance and must pass")
	}

	underLimit := &models.PlaySession{DailyFailsUsed: 2}
	if dailyLimitBlocks(underLimit, settings, models.FlipTails) {
		t.Error("tails under the limit must pass")
	}
}

func TestRejectedFlipLeavesSessionUntouched(t *testing.T) {
	settings := testSettings()
	now := time.Now()
	last := now.Add(-10 * time.Millisecond)
	sess := &models.PlaySession{
		TotalFlips:     12,
		TotalHeads:     7,
		TotalTails:     5,
		CurrentStreak:  2,
		DailyFailsUsed: 1,
		LastFlipAt:     &last,
	}
	before := *sess

	// both gates run before applyFlip, so a rejection never mutates
	if rateGateRemaining(sess, settings, now) == 0 {
		t.Fatal("expected the rate gate to reject")
	}
	if *sess != before {
		t.Errorf("gate check mutated the session: %+v", sess)
	}
}
