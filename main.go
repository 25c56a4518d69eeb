package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"mission-reward-system/config"
	"mission-reward-system/handlers"
	"mission-reward-system/middleware"
	"mission-reward-system/models"
	"mission-reward-system/services"
	"mission-reward-system/utils"
	"mission-reward-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 50 * 1024 * 1024, // 50MB — challenge proof photos/videos
	})

	// 🔐❗ GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

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
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-Service-Token, X-User-ID, X-User-Roles",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

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
		&models.MissionSubmission{},
		&models.StoreLocation{},
		&models.Payback{},
		&models.UserProgress{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	policy := config.LoadPolicy()

	// The cache is constructed exactly once and injected everywhere — no
	// hidden globals.
	cache := services.NewCacheService()

	submissionService := services.NewSubmissionService(db, cache, policy)
	batchService := services.NewBatchService(submissionService)
	locationService := services.NewLocationService(db, cache, policy)

	// --- CONFIGURE profile service details for referral verification ---
	profileServiceURL := os.Getenv("PROFILE_SERVICE_URL")
	if profileServiceURL == "" {
		log.Fatal("PROFILE_SERVICE_URL environment variable not set")
	}
	serviceToken := os.Getenv("MISSION_SERVICE_TOKEN")
	if serviceToken == "" {
		log.Fatal("MISSION_SERVICE_TOKEN environment variable not set")
	}
	// --- END CONFIG ---

	referralSyncWorker := workers.NewReferralSyncWorker(db, cache, policy, profileServiceURL, "/api/v1/public/referred-status", serviceToken)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	referralSyncWorker.Start(ctx)
	submissionService.StartReviewScheduler()

	// ✅ Setup routes — enforced Gateway auth + consistent /s/ prefix
	handlers.SetupSubmissionRoutes(app, submissionService, batchService)
	handlers.SetupLocationRoutes(app, locationService)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Referral Sync Worker running")
	log.Println("✅ Review scheduler running (aging sweep every 5m, cache sweep every 1m)")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}
