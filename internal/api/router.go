package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/timmy/memebot/internal/api/handler"
	"github.com/timmy/memebot/internal/api/middleware"
	"github.com/timmy/memebot/internal/config"
	"github.com/timmy/memebot/internal/logger"
	"github.com/timmy/memebot/internal/service"
)

// FilePrefix is the URL prefix materialized images are served under.
const FilePrefix = "/files"

// RouterDeps holds everything the HTTP layer needs.
type RouterDeps struct {
	Memes       *service.MemeService
	Dispatcher  *service.Dispatcher
	Ping        func(ctx context.Context) error
	DownloadDir string
	Logger      *logger.Logger
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(deps RouterDeps, cfg config.ServerConfig) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(deps.Logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS(cfg.CORS))

	healthHandler := handler.NewHealthHandler(deps.Ping)
	memeHandler := handler.NewMemeHandler(deps.Memes, deps.Dispatcher, FilePrefix)
	registrationHandler := handler.NewRegistrationHandler(deps.Memes)

	r.GET("/health", healthHandler.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if deps.DownloadDir != "" {
		r.Static(FilePrefix, deps.DownloadDir)
	}

	v1 := r.Group("/api/v1")
	{
		// Memes
		v1.POST("/memes", memeHandler.RequestMeme)

		// Sessions (action lock)
		sessions := v1.Group("/sessions")
		sessions.GET("/state", memeHandler.State)
		sessions.POST("/start", memeHandler.Start)
		sessions.POST("/select", memeHandler.SelectMode)
		sessions.POST("/random", memeHandler.Random)
		sessions.POST("/keywords", memeHandler.AskKeywords)
		sessions.POST("/message", memeHandler.Message)
		sessions.POST("/cancel", memeHandler.Cancel)

		// Registrations
		v1.GET("/registrations", registrationHandler.Get)
		v1.POST("/registrations", registrationHandler.Register)
		v1.PUT("/registrations/language", registrationHandler.SetLanguage)
	}

	return r
}
