package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yungbote/pathpilot-backend/internal/handlers"
	"github.com/yungbote/pathpilot-backend/internal/middleware"
)

type RouterConfig struct {
	AuthMiddleware    *middleware.AuthMiddleware
	OnboardingHandler *handlers.OnboardingHandler
	SessionHandler    *handlers.SessionHandler
	ProgressHandler   *handlers.ProgressHandler
	AdaptationHandler *handlers.AdaptationHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	// Cors
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:80",
			"http://localhost:3000",
			"http://localhost:5174",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthcheck", handlers.HealthCheck)

	// ===============
	// || Protected ||
	// ===============
	protected := router.Group("/api/onboarding")
	protected.Use(cfg.AuthMiddleware.RequireAuth())

	// Paths
	protected.POST("/paths/generate", cfg.OnboardingHandler.GeneratePersonalizedPath)
	protected.POST("/paths/validate-switch", cfg.OnboardingHandler.ValidatePathSwitch)

	// Sessions
	protected.POST("/sessions", cfg.SessionHandler.StartSession)
	protected.GET("/sessions/:id", cfg.SessionHandler.GetSession)
	protected.POST("/sessions/:id/pause", cfg.SessionHandler.PauseSession)
	protected.POST("/sessions/:id/resume", cfg.SessionHandler.ResumeSession)
	protected.POST("/sessions/:id/complete", cfg.SessionHandler.CompleteSession)
	protected.POST("/sessions/:id/abandon", cfg.SessionHandler.AbandonSession)
	protected.GET("/sessions/:id/next-step", cfg.OnboardingHandler.GetNextStep)
	protected.GET("/sessions/:id/validate-completion", cfg.OnboardingHandler.ValidatePathCompletion)
	protected.POST("/sessions/:id/suggest-alternatives", cfg.OnboardingHandler.SuggestAlternativePaths)
	protected.POST("/sessions/:id/adapt", cfg.AdaptationHandler.AdaptPath)

	// Progress
	protected.POST("/sessions/:id/steps/:stepID/track", cfg.ProgressHandler.TrackStepProgress)
	protected.POST("/sessions/:id/steps/:stepID/complete", cfg.ProgressHandler.RecordStepCompletion)
	protected.GET("/sessions/:id/progress", cfg.ProgressHandler.GetOverallProgress)
	protected.GET("/sessions/:id/blockers", cfg.ProgressHandler.IdentifyBlockers)
	protected.POST("/sessions/:id/milestones/:milestoneID/award", cfg.ProgressHandler.AwardMilestone)

	// Achievements
	protected.GET("/achievements", cfg.ProgressHandler.GetUserAchievements)

	return router
}
