package services

import (
	"errors"
	"fmt"
	"log"

	"coin-toss-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SettingsService struct {
	DB    *gorm.DB
	Audit *AuditLogger
}

func NewSettingsService(db *gorm.DB, audit *AuditLogger) *SettingsService {
	return &SettingsService{DB: db, Audit: audit}
}

// Current returns the settings row, lazily creating it with defaults on first
// access. The unique sentinel key plus OnConflict-DoNothing makes the
// concurrent first read safe: the losing insert is a no-op and the re-select
// returns the one row.
func (s *SettingsService) Current() (*models.GameSettings, error) {
	var settings models.GameSettings
	err := s.DB.Where("singleton_key = ?", "default").First(&settings).Error
	if err == nil {
		return &settings, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	seed := models.GameSettings{
		ID:                       uuid.NewString(),
		SingletonKey:             "default",
		MinStreakForLeaderboard:  models.DefaultMinStreakForLeaderboard,
		CompetitionDurationHours: models.DefaultCompetitionDurationHours,
		MaxFlipsPerMinute:        models.DefaultMaxFlipsPerMinute,
		DailyFailLimit:           models.DefaultDailyFailLimit,
	}
	if err := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "singleton_key"}},
		DoNothing: true,
	}).Create(&seed).Error; err != nil {
		return nil, err
	}
	if err := s.DB.Where("singleton_key = ?", "default").First(&settings).Error; err != nil {
		return nil, err
	}
	return &settings, nil
}

// SettingsUpdate carries the optional fields of PUT /settings; absent fields
// leave the stored value untouched.
type SettingsUpdate struct {
	MinStreakForLeaderboard  *int `json:"min_streak_for_leaderboard"`
	CompetitionDurationHours *int `json:"competition_duration_hours"`
	MaxFlipsPerMinute        *int `json:"max_flips_per_minute"`
	DailyFailLimit           *int `json:"daily_fail_limit"`
}

// Validate checks each provided field independently and reports the first
// failing one.
func (u SettingsUpdate) Validate() error {
	if u.MinStreakForLeaderboard != nil && *u.MinStreakForLeaderboard < 1 {
		return fmt.Errorf("min_streak_for_leaderboard must be at least 1")
	}
	if u.CompetitionDurationHours != nil && *u.CompetitionDurationHours < 1 {
		return fmt.Errorf("competition_duration_hours must be at least 1")
	}
	if u.MaxFlipsPerMinute != nil && *u.MaxFlipsPerMinute < 1 {
		return fmt.Errorf("max_flips_per_minute must be at least 1")
	}
	if u.DailyFailLimit != nil && *u.DailyFailLimit < 0 {
		return fmt.Errorf("daily_fail_limit must not be negative")
	}
	return nil
}

// Apply merges the provided fields onto the settings row.
func (u SettingsUpdate) Apply(settings *models.GameSettings) {
	if u.MinStreakForLeaderboard != nil {
		settings.MinStreakForLeaderboard = *u.MinStreakForLeaderboard
	}
	if u.CompetitionDurationHours != nil {
		settings.CompetitionDurationHours = *u.CompetitionDurationHours
	}
	if u.MaxFlipsPerMinute != nil {
		settings.MaxFlipsPerMinute = *u.MaxFlipsPerMinute
	}
	if u.DailyFailLimit != nil {
		settings.DailyFailLimit = *u.DailyFailLimit
	}
}

// GetSettings returns the current (lazily created) settings.
func (s *SettingsService) GetSettings(c *fiber.Ctx) error {
	settings, err := s.Current()
	if err != nil {
		log.Printf("DB Error fetching settings: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "failed to fetch settings"})
	}
	return c.JSON(fiber.Map{"success": true, "settings": settings})
}

// UpdateSettings applies a partial admin update after per-field validation.
func (s *SettingsService) UpdateSettings(c *fiber.Ctx) error {
	actorID, _ := c.Locals("user_id").(string)

	var req SettingsUpdate
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "invalid JSON"})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": err.Error()})
	}

	settings, err := s.Current()
	if err != nil {
		log.Printf("DB Error fetching settings: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "failed to fetch settings"})
	}

	req.Apply(settings)
	if err := s.DB.Save(settings).Error; err != nil {
		log.Printf("DB Error updating settings: %v", err)
		s.Audit.Record(actorID, "settings.update", "settings", settings.ID, false, "db update failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "failed to update settings"})
	}

	s.Audit.Record(actorID, "settings.update", "settings", settings.ID, true, "")
	return c.JSON(fiber.Map{"success": true, "settings": settings})
}
