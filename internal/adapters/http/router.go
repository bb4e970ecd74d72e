package http

import (
	"context"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mkanev/Pulse/internal/adapters/ws"
	"github.com/mkanev/Pulse/internal/config"
	"github.com/mkanev/Pulse/internal/hub"
)

func genClientToken() string {
	return uuid.NewString()
}

// ClientTokenMiddleware tags every socket with a stable cookie token so
// logs can follow a browser across reconnects and re-registrations.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

// InternalAuthMiddleware guards the notify API used by the persistence
// layer. A missing token in config disables the API entirely.
func InternalAuthMiddleware(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" || c.GetHeader("X-Internal-Token") != token {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, h *hub.Hub) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("PulseSessions", store))
	r.Use(ClientTokenMiddleware())

	log.Info().Str("module", "adapters.http").Msg("router setup")

	wsCtl := ws.NewController(h, cfg)

	api := r.Group("/api")
	api.GET("/ws", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("client", c.GetString("client_token")).Msg("ws endpoint hit")
		wsCtl.HandleSocket(ctx, c)
	})
	api.GET("/online", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"users": h.Online()})
	})

	n := &NotifyController{Hub: h}
	internal := r.Group("/internal", InternalAuthMiddleware(cfg.InternalToken))
	internal.POST("/status", n.HandleStatus)
	internal.POST("/message", n.HandleMessage)
	internal.POST("/fanout", n.HandleFanOut)
	internal.POST("/broadcast", n.HandleBroadcast)
	internal.GET("/stats", n.HandleStats)

	return r
}
