package services

import (
	"errors"
	"log"
	"strconv"
	"time"

	"coin-toss-system/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// AdminService serves the /admin dashboard endpoints.
type AdminService struct {
	DB           *gorm.DB
	Settings     *SettingsService
	Competitions *CompetitionService
	Leaderboard  *LeaderboardService
	Audit        *AuditLogger
}

func NewAdminService(db *gorm.DB, settings *SettingsService, competitions *CompetitionService, leaderboard *LeaderboardService, audit *AuditLogger) *AdminService {
	return &AdminService{DB: db, Settings: settings, Competitions: competitions, Leaderboard: leaderboard, Audit: audit}
}

// Stats aggregates headline numbers plus a snapshot of the active
// competition.
func (s *AdminService) Stats(c *fiber.Ctx) error {
	var totalCompetitions, totalSessions, totalFlips, totalAchievements int64
	if err := s.DB.Model(&models.Competition{}).Count(&totalCompetitions).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "DB error"})
	}
	if err := s.DB.Model(&models.PlaySession{}).Count(&totalSessions).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "DB error"})
	}
	if err := s.DB.Model(&models.Flip{}).Count(&totalFlips).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "DB error"})
	}
	if err := s.DB.Model(&models.Achievement{}).Count(&totalAchievements).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "DB error"})
	}

	var distinctPlayers int64
	if err := s.DB.Model(&models.PlaySession{}).Distinct("user_id").Count(&distinctPlayers).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "DB error"})
	}

	now := time.Now()
	stats := fiber.Map{
		"total_competitions": totalCompetitions,
		"total_sessions":     totalSessions,
		"total_flips":        totalFlips,
		"total_achievements": totalAchievements,
		"distinct_players":   distinctPlayers,
	}

	comp, err := s.Competitions.ActiveCompetition(now)
	if err == nil {
		comp.Annotate(now)
		stats["active_competition"] = comp
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("DB Error fetching active competition for stats: %v", err)
	}

	return c.JSON(fiber.Map{"success": true, "stats": stats})
}

// AdminLeaderboard is the raw view of the active competition: every session
// with at least one flip, tie-broken by total flips.
func (s *AdminService) AdminLeaderboard(c *fiber.Ctx) error {
	competitionID := c.Query("competitionId")
	if competitionID == "" {
		comp, err := s.Competitions.ActiveCompetition(time.Now())
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(fiber.Map{"success": true, "entries": []LeaderboardEntry{}})
		}
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "DB error"})
		}
		competitionID = comp.ID
	}

	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "limit must be a positive integer"})
		}
		limit = n
	}

	sessions, err := s.Leaderboard.RawSessions(competitionID, limit)
	if err != nil {
		log.Printf("DB Error fetching admin leaderboard for %s: %v", competitionID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "failed to fetch leaderboard"})
	}

	return c.JSON(fiber.Map{
		"success":        true,
		"competition_id": competitionID,
		"entries":        toEntries(sessions),
	})
}

// UpdateActivePrize edits the prize shown on the live competition without
// touching the catalog.
func (s *AdminService) UpdateActivePrize(c *fiber.Ctx) error {
	actorID, _ := c.Locals("user_id").(string)

	var req struct {
		PrizeText       *string `json:"prize_text"`
		PrizeImageURL   *string `json:"prize_image_url"`
		RequiresAddress *bool   `json:"requires_address"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "invalid JSON"})
	}
	if req.PrizeText == nil && req.PrizeImageURL == nil && req.RequiresAddress == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "no prize fields provided"})
	}

	now := time.Now()
	comp, err := s.Competitions.ActiveCompetition(now)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": "no active competition"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "DB error"})
	}

	updates := map[string]interface{}{}
	if req.PrizeText != nil {
		updates["prize_text"] = *req.PrizeText
		comp.PrizeText = *req.PrizeText
	}
	if req.PrizeImageURL != nil {
		updates["prize_image_url"] = *req.PrizeImageURL
		comp.PrizeImageURL = *req.PrizeImageURL
	}
	if req.RequiresAddress != nil {
		updates["requires_address"] = *req.RequiresAddress
		comp.RequiresAddress = *req.RequiresAddress
	}

	if err := s.DB.Model(&models.Competition{}).Where("id = ?", comp.ID).Updates(updates).Error; err != nil {
		log.Printf("DB Error updating active prize: %v", err)
		s.Audit.Record(actorID, "competition.prize_update", "competition", comp.ID, false, "db update failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "failed to update prize"})
	}

	s.Audit.Record(actorID, "competition.prize_update", "competition", comp.ID, true, "")
	comp.Annotate(now)
	return c.JSON(fiber.Map{"success": true, "competition": comp})
}

// ResetActiveCompetition wipes all play state of the live competition:
// achievements and flips first, then sessions, then the counters. The
// competition itself stays active with its original window.
func (s *AdminService) ResetActiveCompetition(c *fiber.Ctx) error {
	actorID, _ := c.Locals("user_id").(string)

	comp, err := s.Competitions.ActiveCompetition(time.Now())
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": "no active competition"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "DB error"})
	}

	sessionIDs := s.DB.Model(&models.PlaySession{}).Select("id").Where("competition_id = ?", comp.ID)
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id IN (?)", sessionIDs).Delete(&models.Achievement{}).Error; err != nil {
			return err
		}
		if err := tx.Where("session_id IN (?)", sessionIDs).Delete(&models.Flip{}).Error; err != nil {
			return err
		}
		if err := tx.Where("competition_id = ?", comp.ID).Delete(&models.PlaySession{}).Error; err != nil {
			return err
		}
		return tx.Model(&models.Competition{}).Where("id = ?", comp.ID).
			Updates(map[string]interface{}{"total_players": 0, "total_flips": 0}).Error
	})
	if err != nil {
		log.Printf("DB Error resetting competition %s: %v", comp.ID, err)
		s.Audit.Record(actorID, "competition.reset", "competition", comp.ID, false, "reset failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "failed to reset competition"})
	}

	s.Audit.Record(actorID, "competition.reset", "competition", comp.ID, true, "")
	return c.JSON(fiber.Map{"success": true, "message": "competition reset"})
}

// AuditTrail returns the most recent audit entries, newest first.
func (s *AdminService) AuditTrail(c *fiber.Ctx) error {
	limit := 100
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "limit must be between 1 and 1000"})
		}
		limit = n
	}
	return c.JSON(fiber.Map{"success": true, "entries": s.Audit.Recent(limit)})
}
