package main

import (
	"database/sql"
	"net/http"
	"time"

	"signaling-platform/internal/auth"
	"signaling-platform/internal/history"
	"signaling-platform/internal/httpapi"
	"signaling-platform/internal/presence"
	"signaling-platform/internal/push"
	"signaling-platform/internal/rbac"
	"signaling-platform/internal/session"
	"signaling-platform/internal/ws"
	"signaling-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type routeDeps struct {
	auth       *auth.Manager
	ws         *ws.Handler
	presence   *presence.Tracker
	calls      *session.Manager
	history    *history.Service
	pushTokens *push.RedisTokenStore
	db         *sql.DB
	rdb        *redis.Client
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to
// internal modules.
func registerRoutes(r *gin.Engine, deps routeDeps) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), deps.db, 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "postgres": "down"})
			return
		}
		if err := deps.rdb.Ping(c.Request.Context()).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "redis": "down"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// The signaling endpoint authenticates before the upgrade; no REST
	// middleware on this path.
	r.GET("/ws", deps.ws.Serve)

	h := httpapi.Handlers{
		Presence:   deps.presence,
		Calls:      deps.calls,
		History:    deps.history,
		PushTokens: deps.pushTokens,
	}

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(auth.RequireAccessToken(deps.auth))
	{
		v1.GET("/me", func(c *gin.Context) {
			id, _ := auth.IdentityID(c.Request.Context())
			role, _ := auth.Role(c.Request.Context())
			c.JSON(http.StatusOK, gin.H{"identity_id": id, "role": role})
		})

		v1.GET("/presence/:identity_id", h.GetPresence)

		v1.PUT("/push/tokens", h.RegisterPushToken)
		v1.DELETE("/push/tokens", h.UnregisterPushToken)

		// ADMIN routes
		admin := v1.Group("/admin")
		admin.Use(rbac.RequireAdmin())
		{
			admin.GET("/calls/active", h.ListActiveCalls)
			admin.GET("/history", h.ListCallHistory)
		}
	}
}
