package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"signaling-platform/internal/auth"
	"signaling-platform/internal/history"
	"signaling-platform/internal/presence"
	"signaling-platform/internal/session"

	"github.com/gin-gonic/gin"
)

// TokenStore manages push device-token registration for an identity.
type TokenStore interface {
	AddToken(ctx context.Context, identityID, token string) error
	RemoveToken(ctx context.Context, identityID, token string) error
}

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Presence   *presence.Tracker
	Calls      *session.Manager
	History    *history.Service
	PushTokens TokenStore
}

// GetPresence returns the presence snapshot for one identity. An identity
// this process has never seen is simply reported offline.
func (h Handlers) GetPresence(c *gin.Context) {
	if h.Presence == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "presence not configured"})
		return
	}
	identityID := c.Param("identity_id")
	if identityID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "identity_id required"})
		return
	}
	rec, _ := h.Presence.Snapshot(identityID)
	c.JSON(http.StatusOK, rec)
}

// ListActiveCalls exposes every non-terminal session for the back office.
func (h Handlers) ListActiveCalls(c *gin.Context) {
	if h.Calls == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call manager not configured"})
		return
	}
	calls := h.Calls.ActiveCalls()
	c.JSON(http.StatusOK, gin.H{"count": len(calls), "calls": calls})
}

// ListCallHistory returns the most recently terminated calls.
func (h Handlers) ListCallHistory(c *gin.Context) {
	if h.History == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "history not configured"})
		return
	}
	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
			return
		}
		limit = n
	}
	records, err := h.History.Recent(c.Request.Context(), limit)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "history lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(records), "records": records})
}

type pushTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

// RegisterPushToken stores a device token for the authenticated identity,
// so offline call alerts can reach its devices.
func (h Handlers) RegisterPushToken(c *gin.Context) {
	if h.PushTokens == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "push tokens not configured"})
		return
	}
	identityID, err := auth.IdentityID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	var req pushTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "token required"})
		return
	}
	if err := h.PushTokens.AddToken(c.Request.Context(), identityID, req.Token); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token store failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

// UnregisterPushToken removes a device token, typically on logout.
func (h Handlers) UnregisterPushToken(c *gin.Context) {
	if h.PushTokens == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "push tokens not configured"})
		return
	}
	identityID, err := auth.IdentityID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	var req pushTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "token required"})
		return
	}
	if err := h.PushTokens.RemoveToken(c.Request.Context(), identityID, req.Token); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token store failed"})
		return
	}
	c.Status(http.StatusNoContent)
}
