package main

import (
	"fmt"
	"os"

	"github.com/yungbote/pathpilot-backend/internal/clients/redis"
	"github.com/yungbote/pathpilot-backend/internal/db"
	"github.com/yungbote/pathpilot-backend/internal/handlers"
	"github.com/yungbote/pathpilot-backend/internal/logger"
	"github.com/yungbote/pathpilot-backend/internal/middleware"
	"github.com/yungbote/pathpilot-backend/internal/repos"
	"github.com/yungbote/pathpilot-backend/internal/server"
	"github.com/yungbote/pathpilot-backend/internal/services"
	"github.com/yungbote/pathpilot-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	log.Info("Loading environment variables from main...")
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	cfg := services.LoadConfig(log)

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Warn("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up Repos from main...")
	pathRepo := repos.NewPathRepo(thePG, log)
	sessionRepo := repos.NewSessionRepo(thePG, log)
	stepProgressRepo := repos.NewStepProgressRepo(thePG, log)
	achievementRepo := repos.NewAchievementRepo(thePG, log)
	analyticsEventRepo := repos.NewAnalyticsEventRepo(thePG, log)
	auditLogRepo := repos.NewAuditLogRepo(thePG, log)

	// Catalog cache sits in front of the path repo when redis is configured.
	var catalogRepo repos.PathRepo = pathRepo
	if os.Getenv("REDIS_ADDR") != "" {
		cache, err := redis.NewCatalogCache(pathRepo, log, cfg.CatalogCacheTTL)
		if err != nil {
			log.Warn("Catalog cache init failed, serving paths from postgres", "error", err)
		} else {
			catalogRepo = cache
		}
	}

	// Services
	log.Info("Setting up Services from main...")
	analyticsService := services.NewAnalyticsService(thePG, log, analyticsEventRepo, auditLogRepo, cfg.StorageTimeout)
	pathMatcherService := services.NewPathMatcherService(thePG, log, cfg, catalogRepo, analyticsService)
	nextStepService := services.NewNextStepService(thePG, log, cfg, sessionRepo, stepProgressRepo)
	progressService := services.NewProgressService(thePG, log, cfg, sessionRepo, stepProgressRepo, achievementRepo, analyticsService)
	adaptationService := services.NewAdaptationService(thePG, log, cfg, sessionRepo, analyticsService)
	validationService := services.NewValidationService(thePG, log, cfg, sessionRepo, stepProgressRepo, analyticsService)
	suggestionService := services.NewSuggestionService(thePG, log, cfg, sessionRepo, catalogRepo)
	sessionStateService := services.NewSessionStateService(thePG, log, cfg, sessionRepo, catalogRepo, validationService, analyticsService)

	// Handlers
	log.Info("Setting up handlers from main...")
	onboardingHandler := handlers.NewOnboardingHandler(log, pathMatcherService, nextStepService, validationService, suggestionService)
	sessionHandler := handlers.NewSessionHandler(log, sessionStateService)
	progressHandler := handlers.NewProgressHandler(log, progressService)
	adaptationHandler := handlers.NewAdaptationHandler(log, adaptationService)

	// Middleware
	log.Info("Setting up middleware from main...")
	authMiddleware := middleware.NewAuthMiddleware(log, jwtSecretKey)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		AuthMiddleware:    authMiddleware,
		OnboardingHandler: onboardingHandler,
		SessionHandler:    sessionHandler,
		ProgressHandler:   progressHandler,
		AdaptationHandler: adaptationHandler,
	})

	port := utils.GetEnv("PORT", "8080", log)
	fmt.Printf("Server listening on :%s\n", port)
	if err := router.Run(":" + port); err != nil {
		log.Warn("Server failed", "error", err)
	}
}
