package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/SvBorde/ResumeBooster/internal/api/middleware"
	"github.com/SvBorde/ResumeBooster/internal/auth"
	"github.com/SvBorde/ResumeBooster/internal/config"
	"github.com/SvBorde/ResumeBooster/internal/llm"
)

// RegisterRoutes wires the application routes onto the router.
func RegisterRoutes(
	router *gin.Engine,
	db *gorm.DB,
	sessions auth.SessionStore,
	googleProvider *auth.GoogleProvider,
	llmClient *llm.Client,
	redisClient redis.UniversalClient,
	logger *slog.Logger,
	cfg *config.Config,
) {
	authHandler := NewAuthHandler(
		db,
		sessions,
		redisClient,
		logger,
		cfg.Auth.LoginRateLimitPerHour,
		cfg.Auth.LoginLockThreshold,
		cfg.Auth.LoginLockTTL(),
		cfg.Session.CookieDomain,
	)
	googleHandler := NewGoogleAuthHandler(db, googleProvider, sessions, logger, cfg.Session.CookieDomain)
	resumeHandler := NewResumeHandler(db, llmClient, logger, cfg.Clamd.Addr)
	authRequired := middleware.SessionMiddleware(sessions)

	apiGroup := router.Group("/api")
	{
		apiGroup.POST("/register", authHandler.Register)
		apiGroup.POST("/login", authHandler.Login)
		apiGroup.GET("/logout", authRequired, authHandler.Logout)

		resumeGroup := apiGroup.Group("/resume")
		resumeGroup.Use(authRequired)
		{
			resumeGroup.POST("/upload", resumeHandler.Upload)
			resumeGroup.POST("/analyze", resumeHandler.Analyze)
			resumeGroup.POST("/enhance", resumeHandler.Enhance)
		}
	}

	router.GET("/google_login", googleHandler.Login)
	router.GET("/google_login/callback", googleHandler.Callback)
	router.GET("/google_logout", authRequired, googleHandler.Logout)
}
