package models

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestDeriveStatus(t *testing.T) {
	now := time.Now()

	cases := []struct {
		name string
		comp Competition
		want string
	}{
		{
			"active within window",
			Competition{IsActive: true, EndTime: now.Add(time.Hour)},
			CompetitionStatusActive,
		},
		{
			"active but expired",
			Competition{IsActive: true, EndTime: now.Add(-time.Minute)},
			CompetitionStatusPendingEnd,
		},
		{
			"ended without winners",
			Competition{IsActive: false, EndTime: now.Add(-time.Hour)},
			CompetitionStatusEnded,
		},
		{
			"winners selected",
			Competition{IsActive: false, WinnersSelected: true},
			CompetitionStatusWinnersSelected,
		},
		{
			"prize delivered",
			Competition{IsActive: false, WinnersSelected: true, PrizeDelivered: true},
			CompetitionStatusCompleted,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.comp.DeriveStatus(now); got != tc.want {
				t.Errorf("DeriveStatus = %q, want %q", got, tc.want)
			}
		})
	}
}

// The partial unique index keeps concurrent creators from leaving two active
// rows; the losing insert surfaces as a constraint error and is retried as a
// lookup.
func TestSingleActiveConstraint(t *testing.T) {
	field, ok := reflect.TypeOf(Competition{}).FieldByName("IsActive")
	if !ok {
		t.Fatal("Competition has no IsActive field")
	}
	tag := field.Tag.Get("gorm")
	if !strings.Contains(tag, "uniqueIndex:idx_competitions_one_active") {
		t.Errorf("IsActive must carry the single-active unique index, tag %q", tag)
	}
	if !strings.Contains(tag, "where:is_active = true") {
		t.Errorf("the index must be partial over active rows, tag %q", tag)
	}
}

func TestTimeRemaining(t *testing.T) {
	now := time.Now()

	comp := Competition{EndTime: now.Add(90 * time.Second)}
	if got := comp.TimeRemaining(now); got != 90*time.Second {
		t.Errorf("expected 90s remaining, got %v", got)
	}

	expired := Competition{EndTime: now.Add(-time.Minute)}
	if got := expired.TimeRemaining(now); got != 0 {
		t.Errorf("remaining time must clamp at zero, got %v", got)
	}

	expired.Annotate(now)
	if expired.TimeRemainingSeconds != 0 {
		t.Errorf("annotated seconds must clamp at zero, got %d", expired.TimeRemainingSeconds)
	}
	if expired.Status != CompetitionStatusEnded {
		t.Errorf("expected ended status, got %q", expired.Status)
	}
}
