package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"dropnote/internal/auth"
	"dropnote/internal/handler"
	"dropnote/internal/hub"
	"dropnote/internal/middleware"
	"dropnote/internal/store"
)

type Deps struct {
	Store       *store.Store
	TokenConfig auth.TokenConfig
	// Hub is created when nil.
	Hub *hub.Hub
	// DropLimiter is created from DropWindow when nil.
	DropLimiter *middleware.RateLimiter
	DropWindow  time.Duration
	Logger      logrus.FieldLogger
}

func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	wsHub := deps.Hub
	if wsHub == nil {
		wsHub = hub.New()
	}
	dropLimiter := deps.DropLimiter
	if dropLimiter == nil {
		window := deps.DropWindow
		if window <= 0 {
			window = 24 * time.Hour
		}
		dropLimiter = middleware.NewRateLimiter(1, window)
	}

	authLimiter := middleware.NewRateLimiter(10, time.Minute)
	authHandler := &handler.AuthHandler{Store: deps.Store, TokenConfig: deps.TokenConfig, Logger: deps.Logger}
	authGroup := r.Group("/api/auth")
	authGroup.Use(middleware.RateLimitMiddleware(authLimiter))
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)

	protected := r.Group("/api")
	protected.Use(middleware.RequireAuth(deps.TokenConfig))

	noteHandler := &handler.NoteHandler{Store: deps.Store, Hub: wsHub, DropLimiter: dropLimiter, Logger: deps.Logger}
	protected.POST("/notes/drop", noteHandler.Drop)
	protected.GET("/notes/inbox", noteHandler.Inbox)
	protected.POST("/notes/:id/reply", noteHandler.Reply)

	accountHandler := &handler.AccountHandler{Store: deps.Store, Hub: wsHub, DropLimiter: dropLimiter}
	protected.GET("/users/me", accountHandler.Profile)
	protected.DELETE("/gdpr/delete", accountHandler.Delete)

	wsHandler := &handler.WebSocketHandler{Hub: wsHub, TokenConfig: deps.TokenConfig, Logger: deps.Logger}
	r.GET("/ws", wsHandler.Serve)

	return r
}
