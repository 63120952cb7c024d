package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wiremeet-warden/internal/auth"
	"github.com/vovakirdan/wiremeet-warden/internal/config"
	"github.com/vovakirdan/wiremeet-warden/internal/core"
	"github.com/vovakirdan/wiremeet-warden/internal/store"
)

// NewServer builds the warden HTTP server: webhook intake for the room
// server plus the operator admin API.
func NewServer(ctrl *core.Controller, authService *auth.Service, st store.Store, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(LoggerMiddleware(logger))
	router.Use(gin.Recovery())

	router.GET("/healthz", healthHandler)

	hookHandlers := NewHookHandlers(ctrl, logger)
	hooks := router.Group("/api/v1/hooks")
	hooks.Use(HookAuthMiddleware(cfg.RoomServer.APIKey, cfg.RoomServer.APISecret, logger))
	hooks.POST("/prejoin", hookHandlers.PreJoin)
	hooks.POST("/event", hookHandlers.Event)

	adminHandlers := NewAdminHandlers(ctrl, st, logger)
	admin := router.Group("/api/v1")
	admin.Use(AdminAuthMiddleware(authService, logger))
	admin.GET("/rooms", adminHandlers.ListRooms)
	admin.GET("/rooms/:room", adminHandlers.GetRoom)
	admin.GET("/rooms/:room/events", adminHandlers.RoomEvents)
	admin.POST("/rooms/:room/destruction/cancel", adminHandlers.CancelDestruction)
	admin.POST("/rooms/:room/revalidate", adminHandlers.Revalidate)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
