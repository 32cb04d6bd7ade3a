package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const authorizationHeader = "Authorization"
const bearerPrefix = "Bearer "

// TokenFromRequest extracts the bearer credential from a request. Browser
// WebSocket clients cannot set headers on the upgrade request, so a
// ?token= query parameter is accepted as well and takes precedence.
func TokenFromRequest(r *http.Request) string {
	if tok := r.URL.Query().Get("token"); tok != "" {
		return tok
	}
	raw := strings.TrimSpace(r.Header.Get(authorizationHeader))
	if strings.HasPrefix(raw, bearerPrefix) {
		return strings.TrimPrefix(raw, bearerPrefix)
	}
	return ""
}

// RequireAccessToken verifies an access token and injects identity into
// request context. It does not perform role checks; those belong to
// internal/rbac.
func RequireAccessToken(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := TokenFromRequest(c.Request)
		if tok == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := m.Verify(tok, TokenTypeAccess, time.Now())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		ctx := WithIdentity(c.Request.Context(), claims.IdentityID, claims.Role)
		c.Request = c.Request.WithContext(ctx)

		// Also store on gin context for handler convenience.
		c.Set("identity_id", claims.IdentityID)
		c.Set("role", claims.Role)

		c.Next()
	}
}
