package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"coin-toss-system/cache"
	"coin-toss-system/handlers"
	"coin-toss-system/middleware"
	"coin-toss-system/models"
	"coin-toss-system/services"
	"coin-toss-system/utils"
	"coin-toss-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET environment variable not set")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 10 * 1024 * 1024, // 10MB, prize images only
	})

	app.Use(helmet.New())

	// Load allowed origins from environment variable
	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control",
		ExposeHeaders:    "Content-Length, Content-Type, Retry-After",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	// General per-caller window; admin routes add a stricter one on top
	app.Use(middleware.GeneralLimiter(jwtSecret))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	if err := utils.InitR2(); err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.GameSettings{},
		&models.Competition{},
		&models.CompetitionWinner{},
		&models.PlaySession{},
		&models.Flip{},
		&models.Achievement{},
		&models.PresetPrize{},
		&models.AuditLog{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	// Admin-status cache: Redis when configured, in-process otherwise
	var adminCache cache.AdminStatusCache
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			log.Fatal("invalid REDIS_URL:", err)
		}
		adminCache = cache.NewRedisAdminCache(redis.NewClient(opts), 5*time.Minute)
		log.Println("✅ Admin-status cache backed by Redis")
	} else {
		adminCache = cache.NewMemoryAdminCache(5 * time.Minute)
		log.Println("⚠️  REDIS_URL not set, admin-status cache is in-process only")
	}

	auditLogger := services.NewAuditLogger()

	settingsService := services.NewSettingsService(db, auditLogger)
	prizeService := services.NewPrizeService(db, auditLogger)
	leaderboardService := services.NewLeaderboardService(db, settingsService, auditLogger)
	competitionService := services.NewCompetitionService(db, settingsService, prizeService, leaderboardService, auditLogger)
	flipService := services.NewFlipService(db, settingsService, competitionService)
	adminService := services.NewAdminService(db, settingsService, competitionService, leaderboardService, auditLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	auditWorker := workers.NewAuditFlushWorker(db)
	auditWorker.Start(ctx, auditLogger.Events())

	competitionService.StartExpirySweeper()

	handlers.SetupTossRoutes(app, jwtSecret, settingsService, competitionService, leaderboardService, flipService)
	handlers.SetupAdminRoutes(app, jwtSecret, adminCache, settingsService, competitionService, leaderboardService, prizeService, adminService)

	port := os.Getenv("PORT")
	if port == "" {
		port = "5300"
	}

	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", port)
	log.Println("✅ Competition expiry sweeper running (every 1m)")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
