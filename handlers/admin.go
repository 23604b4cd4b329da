// handlers/admin_routes.go
package handlers

import (
	"coin-toss-system/cache"
	"coin-toss-system/middleware"
	"coin-toss-system/services"

	"github.com/gofiber/fiber/v2"
)

// SetupAdminRoutes registers every admin-gated route behind the token check,
// the cached admin check and the stricter admin rate limit.
func SetupAdminRoutes(
	app *fiber.App,
	jwtSecret string,
	adminCache cache.AdminStatusCache,
	settingsService *services.SettingsService,
	competitionService *services.CompetitionService,
	leaderboardService *services.LeaderboardService,
	prizeService *services.PrizeService,
	adminService *services.AdminService,
) {
	admin := app.Group("/", middleware.UserContext(jwtSecret), middleware.AdminOnly(adminCache), middleware.AdminLimiter(jwtSecret))

	admin.Put("/settings", settingsService.UpdateSettings)

	admin.Post("/competition", competitionService.CreateCompetition)
	admin.Get("/competitions", competitionService.ListCompetitions)
	// registered before /competitions/:id so "process-expired" never matches as an id
	admin.Post("/competitions/process-expired", competitionService.ProcessExpiredEndpoint)
	admin.Get("/competitions/:id", competitionService.GetCompetitionByID)
	admin.Post("/competitions/:id/end", competitionService.EndCompetition)
	admin.Post("/competitions/:id/auto-winners", leaderboardService.AutoSelectWinners)
	admin.Get("/competitions/:id/winners", leaderboardService.GetWinners)
	admin.Post("/competitions/:id/winners", leaderboardService.ManualSelectWinners)
	admin.Post("/competitions/:id/prize-delivered", leaderboardService.MarkPrizeDelivered)

	admin.Get("/prizes", prizeService.ListPrizes)
	admin.Post("/prizes", prizeService.CreatePrize)
	admin.Put("/prizes/:id", prizeService.UpdatePrize)
	admin.Delete("/prizes/:id", prizeService.DeletePrize)
	admin.Post("/prizes/:id/default", prizeService.SetDefaultPrize)
	admin.Post("/prizes/:id/image", prizeService.UploadPrizeImage)

	admin.Get("/admin/stats", adminService.Stats)
	admin.Get("/admin/leaderboard", adminService.AdminLeaderboard)
	admin.Put("/admin/prize", adminService.UpdateActivePrize)
	admin.Post("/admin/reset", adminService.ResetActiveCompetition)
	admin.Get("/admin/audit", adminService.AuditTrail)
}
