package services

import (
	"errors"
	"log"
	"math/rand"
	"strconv"
	"time"

	"coin-toss-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Gate rejections. Both leave the session completely untouched.
var (
	ErrFlipTooFast       = errors.New("flipping too fast")
	ErrDailyLimitReached = errors.New("daily fail limit reached")
)

// FlipService runs the per-flip state transition. The draw is injectable so
// tests can force a sequence of outcomes.
type FlipService struct {
	DB           *gorm.DB
	Settings     *SettingsService
	Competitions *CompetitionService
	Draw         func() models.FlipResult
}

func NewFlipService(db *gorm.DB, settings *SettingsService, competitions *CompetitionService) *FlipService {
	return &FlipService{
		DB:           db,
		Settings:     settings,
		Competitions: competitions,
		Draw: func() models.FlipResult {
			if rand.Intn(2) == 0 {
				return models.FlipHeads
			}
			return models.FlipTails
		},
	}
}

// rateGateRemaining returns how long the session still has to wait, or zero
// when the flip may proceed.
func rateGateRemaining(session *models.PlaySession, settings *models.GameSettings, now time.Time) time.Duration {
	if session.LastFlipAt == nil {
		return 0
	}
	elapsed := now.Sub(*session.LastFlipAt)
	if remaining := settings.MinFlipInterval() - elapsed; remaining > 0 {
		return remaining
	}
	return 0
}

// retryAfterSeconds rounds the remaining wait up to whole seconds for the
// Retry-After header, never below 1.
func retryAfterSeconds(remaining time.Duration) int {
	secs := int((remaining + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// dailyLimitBlocks reports whether the drawn outcome must be discarded. Only
// tails consume the daily allowance, so heads always pass.
func dailyLimitBlocks(session *models.PlaySession, settings *models.GameSettings, result models.FlipResult) bool {
	return result == models.FlipTails && session.DailyFailsUsed >= settings.DailyFailLimit
}

// applyFlip mutates the session counters for one accepted outcome and returns
// the new streak plus the milestone it reached, if any. Pure in-memory; the
// caller persists.
func applyFlip(session *models.PlaySession, result models.FlipResult, now time.Time) (models.Streak, string) {
	newStreak := session.Streak().Advance(result)

	session.TotalFlips++
	session.CurrentStreak = newStreak.Signed()
	session.LastFlipAt = &now

	achievementType := ""
	if result == models.FlipHeads {
		session.TotalHeads++
		if newStreak.Length > session.BestHeadsStreak {
			session.BestHeadsStreak = newStreak.Length
		}
		achievementType = models.AchievementTypeForStreak(newStreak.Length)
	} else {
		session.TotalTails++
		session.DailyFailsUsed++
		if newStreak.Length > session.BestTailsStreak {
			session.BestTailsStreak = newStreak.Length
		}
	}
	return newStreak, achievementType
}

// lockSession loads the caller's session under FOR UPDATE, creating it on
// first flip. Creation goes through OnConflict-DoNothing so two concurrent
// first flips converge on the single row; only the winning insert counts the
// player.
func (s *FlipService) lockSession(tx *gorm.DB, competitionID, userID string) (*models.PlaySession, error) {
	var session models.PlaySession
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("competition_id = ? AND user_id = ?", competitionID, userID).
		First(&session).Error
	if err == nil {
		return &session, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	fresh := models.PlaySession{
		ID:            uuid.NewString(),
		CompetitionID: competitionID,
		UserID:        userID,
	}
	insert := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&fresh)
	if insert.Error != nil {
		return nil, insert.Error
	}
	if insert.RowsAffected == 1 {
		if err := tx.Model(&models.Competition{}).Where("id = ?", competitionID).
			Update("total_players", gorm.Expr("total_players + 1")).Error; err != nil {
			return nil, err
		}
	}

	err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("competition_id = ? AND user_id = ?", competitionID, userID).
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// Flip handles POST /flip. The whole transition runs in one transaction with
// the session row locked, so two near-simultaneous flips from the same user
// serialize instead of overwriting each other's counters.
func (s *FlipService) Flip(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "error": "authentication required"})
	}

	settings, err := s.Settings.Current()
	if err != nil {
		log.Printf("DB Error fetching settings: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "failed to fetch settings"})
	}

	now := time.Now()
	comp, err := s.Competitions.ActiveCompetition(now)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "no active competition"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "DB error"})
	}

	var (
		session         *models.PlaySession
		result          models.FlipResult
		streak          models.Streak
		retryAfter      time.Duration
		newAchievements []models.Achievement
	)
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		session, err = s.lockSession(tx, comp.ID, userID)
		if err != nil {
			return err
		}

		if remaining := rateGateRemaining(session, settings, now); remaining > 0 {
			retryAfter = remaining
			return ErrFlipTooFast
		}

		result = s.Draw()
		if dailyLimitBlocks(session, settings, result) {
			return ErrDailyLimitReached
		}

		var achievementType string
		streak, achievementType = applyFlip(session, result, now)

		flip := models.Flip{
			ID:          uuid.NewString(),
			SessionID:   session.ID,
			UserID:      userID,
			Result:      result,
			StreakCount: streak.Length,
			FlippedAt:   now,
		}
		if err := tx.Create(&flip).Error; err != nil {
			return err
		}
		if err := tx.Save(session).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Competition{}).Where("id = ?", comp.ID).
			Update("total_flips", gorm.Expr("total_flips + 1")).Error; err != nil {
			return err
		}

		if achievementType != "" {
			achievement := models.Achievement{
				ID:          uuid.NewString(),
				SessionID:   session.ID,
				Type:        achievementType,
				UserID:      userID,
				StreakValue: streak.Length,
				UnlockedAt:  now,
			}
			// the unique index absorbs a rebuilt streak hitting the same
			// milestone again
			insert := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&achievement)
			if insert.Error != nil {
				return insert.Error
			}
			if insert.RowsAffected == 1 {
				newAchievements = append(newAchievements, achievement)
			}
		}
		return nil
	})

	if errors.Is(err, ErrFlipTooFast) {
		c.Set("Retry-After", strconv.Itoa(retryAfterSeconds(retryAfter)))
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"success":        false,
			"error":          "flipping too fast",
			"retry_after_ms": retryAfter.Milliseconds(),
		})
	}
	if errors.Is(err, ErrDailyLimitReached) {
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"success":          false,
			"error":            "daily fail limit reached",
			"daily_fail_limit": settings.DailyFailLimit,
		})
	}
	if err != nil {
		log.Printf("Flip transaction failed for user %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "flip failed"})
	}

	session.WinRate = session.ComputeWinRate()
	if newAchievements == nil {
		newAchievements = []models.Achievement{}
	}
	return c.JSON(fiber.Map{
		"success":           true,
		"result":            result,
		"streak":            streak.Length,
		"session":           session,
		"achievements":      newAchievements,
		"is_on_leaderboard": session.BestHeadsStreak >= settings.MinStreakForLeaderboard,
		"daily_fail_limit":  settings.DailyFailLimit,
	})
}

// GetSession returns the caller's session in the active competition with its
// last 10 flips (oldest first) and unlocked achievements. A user who has not
// flipped yet gets a null session.
func (s *FlipService) GetSession(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "error": "authentication required"})
	}

	now := time.Now()
	comp, err := s.Competitions.ActiveCompetition(now)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.JSON(fiber.Map{"success": true, "session": nil, "flips": []models.Flip{}, "achievements": []models.Achievement{}})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "DB error"})
	}

	var session models.PlaySession
	err = s.DB.Where("competition_id = ? AND user_id = ?", comp.ID, userID).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.JSON(fiber.Map{"success": true, "session": nil, "flips": []models.Flip{}, "achievements": []models.Achievement{}})
	}
	if err != nil {
		log.Printf("DB Error fetching session for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "failed to fetch session"})
	}

	var recent []models.Flip
	if err := s.DB.Where("session_id = ?", session.ID).
		Order("flipped_at DESC").Limit(10).Find(&recent).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "failed to fetch flips"})
	}
	// query is newest-first, response is oldest-first
	for i, j := 0, len(recent)-1; i < j; i, j = i+1, j-1 {
		recent[i], recent[j] = recent[j], recent[i]
	}

	var achievements []models.Achievement
	if err := s.DB.Where("session_id = ?", session.ID).
		Order("unlocked_at ASC").Find(&achievements).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "failed to fetch achievements"})
	}

	session.WinRate = session.ComputeWinRate()
	return c.JSON(fiber.Map{
		"success":      true,
		"session":      session,
		"flips":        recent,
		"achievements": achievements,
	})
}
