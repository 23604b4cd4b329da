package services

import (
	"testing"

	"coin-toss-system/models"
)

func intPtr(v int) *int { return &v }

func TestSettingsUpdateValidate(t *testing.T) {
	cases := []struct {
		name    string
		update  SettingsUpdate
		wantErr bool
	}{
		{"empty update is valid", SettingsUpdate{}, false},
		{"all fields valid", SettingsUpdate{
			MinStreakForLeaderboard:  intPtr(3),
			CompetitionDurationHours: intPtr(48),
			MaxFlipsPerMinute:        intPtr(60),
			DailyFailLimit:           intPtr(0),
		}, false},
		{"min streak below 1", SettingsUpdate{MinStreakForLeaderboard: intPtr(0)}, true},
		{"duration below 1", SettingsUpdate{CompetitionDurationHours: intPtr(0)}, true},
		{"flip rate below 1", SettingsUpdate{MaxFlipsPerMinute: intPtr(0)}, true},
		{"negative daily fail limit", SettingsUpdate{DailyFailLimit: intPtr(-1)}, true},
		{"zero daily fail limit allowed", SettingsUpdate{DailyFailLimit: intPtr(0)}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.update.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestSettingsUpdateApply(t *testing.T) {
	settings := &models.GameSettings{
		MinStreakForLeaderboard:  5,
		CompetitionDurationHours: 24,
		MaxFlipsPerMinute:        240,
		DailyFailLimit:           3,
	}

	update := SettingsUpdate{
		MinStreakForLeaderboard: intPtr(8),
		DailyFailLimit:          intPtr(5),
	}
	update.Apply(settings)

	if settings.MinStreakForLeaderboard != 8 {
		t.Errorf("min streak not applied, got %d", settings.MinStreakForLeaderboard)
	}
	if settings.DailyFailLimit != 5 {
		t.Errorf("daily fail limit not applied, got %d", settings.DailyFailLimit)
	}
	// absent fields stay untouched
	if settings.CompetitionDurationHours != 24 {
		t.Errorf("duration changed unexpectedly to %d", settings.CompetitionDurationHours)
	}
	if settings.MaxFlipsPerMinute != 240 {
		t.Errorf("flip rate changed unexpectedly to %d", settings.MaxFlipsPerMinute)
	}
}
