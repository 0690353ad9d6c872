package http

import (
	"github.com/gin-gonic/gin"

	"github.com/layer-3/agriauth/service"
)

type options struct {
	inbox          CodeInbox
	authMiddleware []gin.HandlerFunc
}

// Option customises the router.
type Option func(*options)

// WithDevInbox mounts GET /dev/challenges/:principal_id. Development only.
func WithDevInbox(inbox CodeInbox) Option {
	return func(o *options) {
		o.inbox = inbox
	}
}

// SetupRouter sets up the Gin router
func SetupRouter(authService *service.AuthService, opts ...Option) *gin.Engine {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	router := gin.Default()

	handlers := NewAuthHandlers(authService)

	router.GET("/healthz", handlers.Health)

	// Auth routes
	auth := router.Group("/auth")
	auth.Use(o.authMiddleware...)
	{
		auth.POST("/challenge", handlers.Challenge)
		auth.POST("/verify", handlers.Verify)
		auth.POST("/direct", handlers.Direct)
		auth.POST("/logout", AuthMiddleware(authService), handlers.Logout)
	}

	// Protected API routes
	api := router.Group("/api")
	api.Use(AuthMiddleware(authService))
	{
		api.GET("/me", handlers.Me)
		api.GET("/authorize", handlers.Authorize)
	}

	if o.inbox != nil {
		router.GET("/dev/challenges/:principal_id", DevChallenge(o.inbox))
	}

	return router
}
