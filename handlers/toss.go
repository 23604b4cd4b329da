// handlers/toss_routes.go
package handlers

import (
	"coin-toss-system/middleware"
	"coin-toss-system/services"

	"github.com/gofiber/fiber/v2"
)

// SetupTossRoutes registers the public and player-facing routes.
func SetupTossRoutes(
	app *fiber.App,
	jwtSecret string,
	settingsService *services.SettingsService,
	competitionService *services.CompetitionService,
	leaderboardService *services.LeaderboardService,
	flipService *services.FlipService,
) {
	// 🔓 Public routes — no token required
	app.Get("/settings", settingsService.GetSettings)
	app.Get("/competition", competitionService.GetCompetition)

	// Leaderboard is public, but a valid token adds the viewer's own rank
	app.Get("/leaderboard", middleware.OptionalUserContext(jwtSecret), leaderboardService.GetLeaderboard)

	// 🔐 Player routes — require user context
	player := app.Group("/", middleware.UserContext(jwtSecret))
	player.Get("/session", flipService.GetSession)
	player.Post("/flip", flipService.Flip)
}
