package rbac

import (
	"net/http"

	"signaling-platform/internal/auth"
	"signaling-platform/internal/identity"

	"github.com/gin-gonic/gin"
)

// RequireAnyRole allows access if the caller has any of the provided roles.
// Role strings from claims are parsed against the closed identity role set;
// anything outside it is denied.
func RequireAnyRole(allowed ...identity.Role) gin.HandlerFunc {
	allowedSet := make(map[identity.Role]struct{}, len(allowed))
	for _, r := range allowed {
		allowedSet[r] = struct{}{}
	}

	return func(c *gin.Context) {
		raw, err := auth.Role(c.Request.Context())
		if err != nil || raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "role required"})
			return
		}

		role, ok := identity.ParseRole(raw)
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}

		if _, ok := allowedSet[role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

// RequireAdmin is the back-office gate.
func RequireAdmin() gin.HandlerFunc {
	return RequireAnyRole(identity.RoleAdmin)
}
