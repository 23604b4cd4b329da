package services

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"time"

	"coin-toss-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrNoEligibleSessions is returned by auto-selection when nobody reached the
// leaderboard threshold.
var ErrNoEligibleSessions = errors.New("no sessions meet the leaderboard threshold")

type LeaderboardService struct {
	DB       *gorm.DB
	Settings *SettingsService
	Audit    *AuditLogger
}

func NewLeaderboardService(db *gorm.DB, settings *SettingsService, audit *AuditLogger) *LeaderboardService {
	return &LeaderboardService{DB: db, Settings: settings, Audit: audit}
}

// LeaderboardEntry is a ranked session row for API responses.
type LeaderboardEntry struct {
	Rank            int    `json:"rank"`
	UserID          string `json:"user_id"`
	BestHeadsStreak int    `json:"best_heads_streak"`
	TotalHeads      int    `json:"total_heads"`
	TotalFlips      int    `json:"total_flips"`
	CurrentStreak   int    `json:"current_streak"`
}

func toEntries(sessions []models.PlaySession) []LeaderboardEntry {
	entries := make([]LeaderboardEntry, len(sessions))
	for i, sess := range sessions {
		entries[i] = LeaderboardEntry{
			Rank:            i + 1,
			UserID:          sess.UserID,
			BestHeadsStreak: sess.BestHeadsStreak,
			TotalHeads:      sess.TotalHeads,
			TotalFlips:      sess.TotalFlips,
			CurrentStreak:   sess.CurrentStreak,
		}
	}
	return entries
}

// EligibleSessions is the public ordering: threshold-gated, best heads streak
// first, total heads as the tie-break.
func (s *LeaderboardService) EligibleSessions(competitionID string, minStreak, limit int) ([]models.PlaySession, error) {
	var sessions []models.PlaySession
	query := s.DB.Where("competition_id = ? AND best_heads_streak >= ?", competitionID, minStreak).
		Order("best_heads_streak DESC, total_heads DESC, id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&sessions).Error
	return sessions, err
}

// RawSessions is the admin ordering: every session that flipped at least
// once, total flips as the tie-break.
func (s *LeaderboardService) RawSessions(competitionID string, limit int) ([]models.PlaySession, error) {
	var sessions []models.PlaySession
	query := s.DB.Where("competition_id = ? AND total_flips >= 1", competitionID).
		Order("best_heads_streak DESC, total_flips DESC, id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&sessions).Error
	return sessions, err
}

// UserRank is defined only for eligible sessions: 1 plus the count of
// sessions strictly ahead under the public tie-break. Returns nil when the
// user has no session or has not reached the threshold.
func (s *LeaderboardService) UserRank(competitionID, userID string, minStreak int) (*int, error) {
	var session models.PlaySession
	err := s.DB.Where("competition_id = ? AND user_id = ?", competitionID, userID).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if session.BestHeadsStreak < minStreak {
		return nil, nil
	}

	var ahead int64
	err = s.DB.Model(&models.PlaySession{}).
		Where("competition_id = ? AND best_heads_streak >= ?", competitionID, minStreak).
		Where("best_heads_streak > ? OR (best_heads_streak = ? AND total_heads > ?)",
			session.BestHeadsStreak, session.BestHeadsStreak, session.TotalHeads).
		Count(&ahead).Error
	if err != nil {
		return nil, err
	}
	rank := int(ahead) + 1
	return &rank, nil
}

// GetLeaderboard serves the public ranked view; authenticated viewers also
// get their own rank when eligible.
func (s *LeaderboardService) GetLeaderboard(c *fiber.Ctx) error {
	settings, err := s.Settings.Current()
	if err != nil {
		log.Printf("DB Error fetching settings: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "failed to fetch settings"})
	}

	limit := 10
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "limit must be between 1 and 100"})
		}
		limit = n
	}

	competitionID := c.Query("competitionId")
	if competitionID == "" {
		var comp models.Competition
		err := s.DB.Where("is_active = ?", true).Order("start_time DESC").First(&comp).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(fiber.Map{"success": true, "entries": []LeaderboardEntry{}, "viewer_rank": nil})
		}
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "DB error"})
		}
		competitionID = comp.ID
	}

	sessions, err := s.EligibleSessions(competitionID, settings.MinStreakForLeaderboard, limit)
	if err != nil {
		log.Printf("DB Error fetching leaderboard for %s: %v", competitionID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "failed to fetch leaderboard"})
	}

	var viewerRank *int
	if userID, ok := c.Locals("user_id").(string); ok && userID != "" {
		viewerRank, err = s.UserRank(competitionID, userID, settings.MinStreakForLeaderboard)
		if err != nil {
			log.Printf("DB Error computing rank for %s: %v", userID, err)
			viewerRank = nil
		}
	}

	return c.JSON(fiber.Map{
		"success":        true,
		"competition_id": competitionID,
		"min_streak":     settings.MinStreakForLeaderboard,
		"entries":        toEntries(sessions),
		"viewer_rank":    viewerRank,
	})
}

// autoSelectTx records the top sessions as winners inside the caller's
// transaction. Ordering: best heads streak descending with session id
// ascending as the deterministic tie-break. Positions run 1..N.
func (s *LeaderboardService) autoSelectTx(tx *gorm.DB, comp *models.Competition, topCount, minStreak int, actor string) ([]models.CompetitionWinner, error) {
	var sessions []models.PlaySession
	if err := tx.Where("competition_id = ? AND best_heads_streak >= ?", comp.ID, minStreak).
		Order("best_heads_streak DESC, id ASC").
		Limit(topCount).
		Find(&sessions).Error; err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, ErrNoEligibleSessions
	}

	winners := make([]models.CompetitionWinner, len(sessions))
	for i, sess := range sessions {
		winners[i] = models.CompetitionWinner{
			ID:            uuid.NewString(),
			CompetitionID: comp.ID,
			Position:      i + 1,
			UserID:        sess.UserID,
			FinalStreak:   sess.BestHeadsStreak,
			SelectedBy:    actor,
		}
		if err := tx.Create(&winners[i]).Error; err != nil {
			return nil, err
		}
	}

	if err := tx.Model(comp).Updates(map[string]interface{}{
		"winners_selected": true,
		"winner_user_id":   winners[0].UserID,
	}).Error; err != nil {
		return nil, err
	}
	comp.WinnersSelected = true
	comp.WinnerUserID = winners[0].UserID
	return winners, nil
}

// AutoSelectWinners picks the top N eligible sessions of an ended
// competition. Selection happens exactly once; re-selection goes through the
// manual endpoint.
func (s *LeaderboardService) AutoSelectWinners(c *fiber.Ctx) error {
	actorID, _ := c.Locals("user_id").(string)
	id := c.Params("id")

	var req struct {
		TopCount int `json:"topCount"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "invalid JSON"})
	}
	if req.TopCount == 0 {
		req.TopCount = 3
	}
	if req.TopCount < 1 || req.TopCount > 10 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "topCount must be between 1 and 10"})
	}

	var comp models.Competition
	if err := s.DB.First(&comp, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": "competition not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "DB error"})
	}
	if comp.IsActive {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "competition is still active"})
	}
	if comp.WinnersSelected {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "winners already selected"})
	}

	settings, err := s.Settings.Current()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "failed to fetch settings"})
	}

	var winners []models.CompetitionWinner
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		winners, err = s.autoSelectTx(tx, &comp, req.TopCount, settings.MinStreakForLeaderboard, actorID)
		return err
	})
	if errors.Is(err, ErrNoEligibleSessions) {
		s.Audit.Record(actorID, "winners.auto_select", "competition", id, false, err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "no eligible sessions for this competition"})
	}
	if err != nil {
		log.Printf("Auto winner selection failed for %s: %v", id, err)
		s.Audit.Record(actorID, "winners.auto_select", "competition", id, false, "selection failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "failed to select winners"})
	}

	s.Audit.Record(actorID, "winners.auto_select", "competition", id, true, "")
	return c.JSON(fiber.Map{"success": true, "winners": winners})
}

// WinnerSelection is one entry of the manual selection body.
type WinnerSelection struct {
	UserID      string `json:"userId"`
	FinalStreak *int   `json:"finalStreak"`
	Position    *int   `json:"position"`
}

// normalizeWinnerSelections orders the admin-supplied entries (explicit
// positions first, then request order) and assigns contiguous positions from
// 1. FinalStreak falls back to the session's best heads streak, then 0.
func normalizeWinnerSelections(competitionID string, selections []WinnerSelection, bestStreaks map[string]int, actor string) []models.CompetitionWinner {
	ordered := make([]WinnerSelection, len(selections))
	copy(ordered, selections)
	sort.SliceStable(ordered, func(i, j int) bool {
		pi, pj := ordered[i].Position, ordered[j].Position
		if pi != nil && pj != nil {
			return *pi < *pj
		}
		return pi != nil && pj == nil
	})

	winners := make([]models.CompetitionWinner, len(ordered))
	for i, sel := range ordered {
		finalStreak := 0
		if sel.FinalStreak != nil {
			finalStreak = *sel.FinalStreak
		} else if best, ok := bestStreaks[sel.UserID]; ok {
			finalStreak = best
		}
		winners[i] = models.CompetitionWinner{
			ID:            uuid.NewString(),
			CompetitionID: competitionID,
			Position:      i + 1,
			UserID:        sel.UserID,
			FinalStreak:   finalStreak,
			SelectedBy:    actor,
		}
	}
	return winners
}

// ManualSelectWinners replaces the full winner list for an ended
// competition: delete-then-insert, never a merge. Overwrites any prior
// selection and always leaves winners_selected set.
func (s *LeaderboardService) ManualSelectWinners(c *fiber.Ctx) error {
	actorID, _ := c.Locals("user_id").(string)
	id := c.Params("id")

	var req struct {
		Winners []WinnerSelection `json:"winners"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "invalid JSON"})
	}
	if len(req.Winners) < 1 || len(req.Winners) > 10 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "winners must contain between 1 and 10 entries"})
	}
	seen := make(map[string]bool, len(req.Winners))
	for _, sel := range req.Winners {
		if sel.UserID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "every winner needs a userId"})
		}
		if seen[sel.UserID] {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": fmt.Sprintf("duplicate winner userId %s", sel.UserID)})
		}
		seen[sel.UserID] = true
	}

	var comp models.Competition
	if err := s.DB.First(&comp, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": "competition not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "DB error"})
	}
	if comp.IsActive {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "competition is still active"})
	}

	var sessions []models.PlaySession
	if err := s.DB.Where("competition_id = ?", id).Find(&sessions).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "DB error"})
	}
	bestStreaks := make(map[string]int, len(sessions))
	for _, sess := range sessions {
		bestStreaks[sess.UserID] = sess.BestHeadsStreak
	}

	winners := normalizeWinnerSelections(id, req.Winners, bestStreaks, actorID)

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("competition_id = ?", id).Delete(&models.CompetitionWinner{}).Error; err != nil {
			return err
		}
		for i := range winners {
			if err := tx.Create(&winners[i]).Error; err != nil {
				return err
			}
		}
		return tx.Model(&comp).Updates(map[string]interface{}{
			"winners_selected": true,
			"winner_user_id":   winners[0].UserID,
		}).Error
	})
	if err != nil {
		log.Printf("Manual winner selection failed for %s: %v", id, err)
		s.Audit.Record(actorID, "winners.manual_select", "competition", id, false, "selection failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "failed to set winners"})
	}

	s.Audit.Record(actorID, "winners.manual_select", "competition", id, true, "")
	return c.JSON(fiber.Map{"success": true, "winners": winners})
}

func (s *LeaderboardService) GetWinners(c *fiber.Ctx) error {
	id := c.Params("id")

	var comp models.Competition
	if err := s.DB.First(&comp, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": "competition not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "DB error"})
	}

	var winners []models.CompetitionWinner
	if err := s.DB.Where("competition_id = ?", id).Order("position ASC").Find(&winners).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "failed to fetch winners"})
	}
	return c.JSON(fiber.Map{"success": true, "winners": winners})
}

// MarkPrizeDelivered closes the lifecycle: only valid once winners exist.
func (s *LeaderboardService) MarkPrizeDelivered(c *fiber.Ctx) error {
	actorID, _ := c.Locals("user_id").(string)
	id := c.Params("id")

	var comp models.Competition
	if err := s.DB.First(&comp, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": "competition not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "DB error"})
	}
	if !comp.WinnersSelected {
		s.Audit.Record(actorID, "competition.prize_delivered", "competition", id, false, "winners not selected")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "winners have not been selected yet"})
	}

	if err := s.DB.Model(&comp).Update("prize_delivered", true).Error; err != nil {
		log.Printf("DB Error marking prize delivered for %s: %v", id, err)
		s.Audit.Record(actorID, "competition.prize_delivered", "competition", id, false, "db update failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "failed to mark prize delivered"})
	}

	s.Audit.Record(actorID, "competition.prize_delivered", "competition", id, true, "")
	comp.PrizeDelivered = true
	comp.Annotate(time.Now())
	return c.JSON(fiber.Map{"success": true, "competition": comp})
}
