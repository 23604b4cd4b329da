package services

import (
	"errors"
	"log"
	"strconv"
	"time"

	"coin-toss-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CompetitionService struct {
	DB          *gorm.DB
	Settings    *SettingsService
	Prizes      *PrizeService
	Leaderboard *LeaderboardService
	Audit       *AuditLogger
}

func NewCompetitionService(db *gorm.DB, settings *SettingsService, prizes *PrizeService, leaderboard *LeaderboardService, audit *AuditLogger) *CompetitionService {
	return &CompetitionService{DB: db, Settings: settings, Prizes: prizes, Leaderboard: leaderboard, Audit: audit}
}

// ActiveCompetition returns the competition currently accepting flips: the
// active row whose window covers now. gorm.ErrRecordNotFound when there is
// none.
func (s *CompetitionService) ActiveCompetition(now time.Time) (*models.Competition, error) {
	var comp models.Competition
	err := s.DB.Where("is_active = ? AND start_time <= ? AND end_time >= ?", true, now, now).
		Order("start_time DESC").
		First(&comp).Error
	if err != nil {
		return nil, err
	}
	return &comp, nil
}

// createTx inserts a fresh competition starting now, pre-populated from the
// catalog's default prize when one is configured and wanted.
func (s *CompetitionService) createTx(tx *gorm.DB, durationHours int, useDefaultPrize bool, now time.Time) (*models.Competition, error) {
	comp := &models.Competition{
		ID:        uuid.NewString(),
		StartTime: now,
		EndTime:   now.Add(time.Duration(durationHours) * time.Hour),
		IsActive:  true,
	}

	if useDefaultPrize {
		prize, err := s.Prizes.DefaultPrize()
		if err != nil {
			return nil, err
		}
		if prize != nil {
			comp.PrizeText = prize.Name
			comp.PrizeImageURL = prize.ImageURL
			comp.RequiresAddress = prize.RequiresAddress
		}
	}

	if err := tx.Create(comp).Error; err != nil {
		return nil, err
	}
	return comp, nil
}

// GetCompetition is the public get-or-create: returns the live competition,
// swapping out a stale active row for a fresh one when its end time has
// passed.
func (s *CompetitionService) GetCompetition(c *fiber.Ctx) error {
	settings, err := s.Settings.Current()
	if err != nil {
		log.Printf("DB Error fetching settings: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "failed to fetch settings"})
	}

	now := time.Now()
	var comp *models.Competition
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		var existing models.Competition
		findErr := tx.Where("is_active = ? AND start_time <= ?", true, now).
			Order("start_time DESC").
			First(&existing).Error
		if findErr == nil {
			if existing.EndTime.After(now) {
				comp = &existing
				return nil
			}
			// stale: close it and fall through to a fresh one
			if err := tx.Model(&existing).Update("is_active", false).Error; err != nil {
				return err
			}
		} else if !errors.Is(findErr, gorm.ErrRecordNotFound) {
			return findErr
		}

		created, err := s.createTx(tx, settings.CompetitionDurationHours, true, now)
		if err != nil {
			return err
		}
		comp = created
		return nil
	})
	if err != nil {
		// a concurrent creator may have hit the single-active constraint;
		// fall back to reading the row that won
		if winner, lookupErr := s.ActiveCompetition(now); lookupErr == nil {
			comp = winner
			err = nil
		}
	}
	if err != nil {
		log.Printf("DB Error resolving active competition: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "failed to resolve competition"})
	}

	comp.Annotate(now)
	return c.JSON(fiber.Map{"success": true, "competition": comp})
}

// CreateCompetition force-creates a new competition, ending whatever is
// active. The admin can override the duration and skip the default prize.
func (s *CompetitionService) CreateCompetition(c *fiber.Ctx) error {
	actorID, _ := c.Locals("user_id").(string)

	var req struct {
		DurationHours   int   `json:"duration_hours"`
		UseDefaultPrize *bool `json:"use_default_prize"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "invalid JSON"})
	}

	settings, err := s.Settings.Current()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "failed to fetch settings"})
	}
	durationHours := req.DurationHours
	if durationHours == 0 {
		durationHours = settings.CompetitionDurationHours
	}
	if durationHours < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "duration_hours must be at least 1"})
	}
	useDefaultPrize := req.UseDefaultPrize == nil || *req.UseDefaultPrize

	now := time.Now()
	var comp *models.Competition
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		// there should be at most one, but close all just in case
		if err := tx.Model(&models.Competition{}).Where("is_active = ?", true).
			Updates(map[string]interface{}{"is_active": false, "end_time": now}).Error; err != nil {
			return err
		}
		created, err := s.createTx(tx, durationHours, useDefaultPrize, now)
		if err != nil {
			return err
		}
		comp = created
		return nil
	})
	if err != nil {
		log.Printf("DB Error force-creating competition: %v", err)
		s.Audit.Record(actorID, "competition.create", "competition", "", false, "db error")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "failed to create competition"})
	}

	s.Audit.Record(actorID, "competition.create", "competition", comp.ID, true, "")
	comp.Annotate(now)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "competition": comp})
}

// ListCompetitions returns the paginated admin list with derived status and
// remaining time per row.
func (s *CompetitionService) ListCompetitions(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	size, _ := strconv.Atoi(c.Query("size", "20"))
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	var total int64
	if err := s.DB.Model(&models.Competition{}).Count(&total).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "DB error"})
	}

	var comps []models.Competition
	if err := s.DB.Order("start_time DESC").Limit(size).Offset(offset).Find(&comps).Error; err != nil {
		log.Printf("DB Error listing competitions: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "failed to fetch competitions"})
	}

	now := time.Now()
	for i := range comps {
		comps[i].Annotate(now)
	}

	totalPages := int((total + int64(size) - 1) / int64(size))
	return c.JSON(fiber.Map{
		"success":      true,
		"competitions": comps,
		"page":         page,
		"size":         size,
		"total_items":  total,
		"total_pages":  totalPages,
	})
}

// GetCompetitionByID returns the admin detail view: the competition, its raw
// leaderboard and any recorded winners.
func (s *CompetitionService) GetCompetitionByID(c *fiber.Ctx) error {
	id := c.Params("id")

	var comp models.Competition
	if err := s.DB.First(&comp, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": "competition not found"})
		}
		log.Printf("DB Error fetching competition %s: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "DB error"})
	}

	sessions, err := s.Leaderboard.RawSessions(id, 0)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "failed to fetch leaderboard"})
	}

	var winners []models.CompetitionWinner
	if err := s.DB.Where("competition_id = ?", id).Order("position ASC").Find(&winners).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "failed to fetch winners"})
	}

	comp.Annotate(time.Now())
	return c.JSON(fiber.Map{
		"success":     true,
		"competition": comp,
		"leaderboard": toEntries(sessions),
		"winners":     winners,
	})
}

// EndCompetition ends an active competition immediately and returns the
// pre-end leaderboard snapshot.
func (s *CompetitionService) EndCompetition(c *fiber.Ctx) error {
	actorID, _ := c.Locals("user_id").(string)
	id := c.Params("id")

	var comp models.Competition
	if err := s.DB.First(&comp, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": "competition not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "DB error"})
	}
	if !comp.IsActive {
		s.Audit.Record(actorID, "competition.end", "competition", id, false, "already ended")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "competition is not active"})
	}

	sessions, err := s.Leaderboard.RawSessions(id, 0)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "failed to fetch leaderboard"})
	}

	now := time.Now()
	if err := s.DB.Model(&comp).Updates(map[string]interface{}{
		"is_active": false,
		"end_time":  now,
	}).Error; err != nil {
		log.Printf("DB Error ending competition %s: %v", id, err)
		s.Audit.Record(actorID, "competition.end", "competition", id, false, "db update failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "failed to end competition"})
	}

	s.Audit.Record(actorID, "competition.end", "competition", id, true, "")
	comp.IsActive = false
	comp.EndTime = now
	comp.Annotate(now)
	return c.JSON(fiber.Map{
		"success":     true,
		"competition": comp,
		"leaderboard": toEntries(sessions),
	})
}

// ProcessExpired closes every active competition whose end time has passed
// and auto-selects its top 3 winners when nobody has been selected yet.
// Re-running after everything is closed is a no-op, so the sweeper and the
// admin endpoint can overlap safely. A competition with no eligible sessions
// is closed without winners.
func (s *CompetitionService) ProcessExpired(now time.Time) (int, error) {
	var expired []models.Competition
	if err := s.DB.Where("is_active = ? AND end_time <= ?", true, now).Find(&expired).Error; err != nil {
		return 0, err
	}

	settings, err := s.Settings.Current()
	if err != nil {
		return 0, err
	}

	closed := 0
	for i := range expired {
		comp := &expired[i]
		err := s.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(comp).Update("is_active", false).Error; err != nil {
				return err
			}
			if comp.WinnersSelected {
				return nil
			}
			_, err := s.Leaderboard.autoSelectTx(tx, comp, 3, settings.MinStreakForLeaderboard, "system")
			if errors.Is(err, ErrNoEligibleSessions) {
				return nil
			}
			return err
		})
		if err != nil {
			log.Printf("Failed to close expired competition %s: %v", comp.ID, err)
			continue
		}
		closed++
	}
	return closed, nil
}

// ProcessExpiredEndpoint exposes the sweep to admins.
func (s *CompetitionService) ProcessExpiredEndpoint(c *fiber.Ctx) error {
	actorID, _ := c.Locals("user_id").(string)

	closed, err := s.ProcessExpired(time.Now())
	if err != nil {
		log.Printf("Expired-competition sweep failed: %v", err)
		s.Audit.Record(actorID, "competition.process_expired", "competition", "", false, "sweep failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "failed to process expired competitions"})
	}

	s.Audit.Record(actorID, "competition.process_expired", "competition", "", true, "")
	return c.JSON(fiber.Map{"success": true, "closed": closed})
}
