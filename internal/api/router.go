package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/nayandeep999/truefeedback/internal/app"
	iauth "github.com/nayandeep999/truefeedback/internal/auth"
	"github.com/nayandeep999/truefeedback/internal/handlers"
	"github.com/nayandeep999/truefeedback/internal/middleware"
	"github.com/nayandeep999/truefeedback/internal/services"
	"github.com/nayandeep999/truefeedback/pkg/mail"
)

const (
	defaultRateLimitRequests = 60
	defaultRateLimitWindow   = time.Minute
)

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(db *gorm.DB, jwt *iauth.JWTService, cfg *app.Config, sessions *iauth.SessionService, mailer mail.Mailer, rateStore middleware.RateStore) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if jwt == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session service must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}

	users, err := services.NewUserService(db, mailer,
		services.WithVerifyCodeExpiry(cfg.Auth.Verify.CodeTTL))
	if err != nil {
		return nil, err
	}
	messages, err := services.NewMessageService(db)
	if err != nil {
		return nil, err
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	if cfg.Server.RateLimit.Enabled {
		maxRequests := cfg.Server.RateLimit.MaxRequests
		if maxRequests <= 0 {
			maxRequests = defaultRateLimitRequests
		}
		window := cfg.Server.RateLimit.Window
		if window <= 0 {
			window = defaultRateLimitWindow
		}
		r.Use(middleware.RateLimit(rateStore, maxRequests, window))
	}

	// Health endpoint (public)
	r.GET("/health", handlers.Health(db))

	authHandler := handlers.NewAuthHandler(users, sessions)
	messageHandler := handlers.NewMessageHandler(messages)

	// Public auth routes
	auth := r.Group("/api/auth")
	{
		auth.POST("/signup", authHandler.Signup)
		auth.POST("/verify-code", authHandler.VerifyCode)
		auth.GET("/check-username", authHandler.CheckUsername)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
	}

	// Anonymous senders only need the recipient's profile link.
	r.POST("/api/messages/:username", messageHandler.Send)

	// Protected routes
	requireAuth := middleware.Auth(jwt)

	api := r.Group("/api")
	api.Use(requireAuth)

	api.GET("/auth/me", authHandler.Me)
	api.POST("/auth/logout", authHandler.Logout)

	api.GET("/messages", messageHandler.List)
	api.DELETE("/messages/:id", messageHandler.Delete)

	api.GET("/accept-messages", messageHandler.GetAcceptance)
	api.POST("/accept-messages", messageHandler.SetAcceptance)

	// Metrics endpoint
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
