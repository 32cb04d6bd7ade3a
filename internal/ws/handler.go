package ws

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"signaling-platform/internal/auth"
	"signaling-platform/internal/identity"
	"signaling-platform/internal/registry"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ConnectionLimiter caps simultaneous devices per identity. Nil disables
// the cap. A false Acquire holds nothing; callers must not pair it with
// Release, or the cap under-counts and admits extra devices.
type ConnectionLimiter interface {
	Acquire(ctx context.Context, identityID string) (bool, error)
	Release(ctx context.Context, identityID string) error
}

// Handler owns the /ws endpoint: authenticate, admit, upgrade, register,
// pump, and tear down in reverse order.
type Handler struct {
	Auth      *auth.Manager
	Directory identity.Directory
	Registry  *registry.Registry
	Calls     Dispatcher
	Caps      ConnectionLimiter
	Log       *slog.Logger
}

// Serve handles a signaling connection for its whole lifetime.
// Credential problems are rejected before the upgrade, so no registry
// entry ever exists for an unauthenticated peer.
func (h *Handler) Serve(c *gin.Context) {
	log := h.Log
	if log == nil {
		log = slog.Default()
	}

	tok := auth.TokenFromRequest(c.Request)
	if tok == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
		return
	}
	claims, err := h.Auth.Verify(tok, auth.TokenTypeAccess, time.Now())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	// The token is necessary but not sufficient: the identity must still
	// exist in the directory (it may have been deleted since issuance).
	ident, ok, err := h.Directory.Resolve(c.Request.Context(), claims.IdentityID)
	if err != nil {
		log.Error("identity resolve failed", "identity_id", claims.IdentityID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "identity lookup failed"})
		return
	}
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown identity"})
		return
	}

	if h.Caps != nil {
		ok, err := h.Caps.Acquire(c.Request.Context(), ident.ID)
		if err != nil {
			log.Error("connection cap check failed", "identity_id", ident.ID, "err", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "admission check failed"})
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many devices"})
			return
		}
		defer func() {
			// The request context is gone by the time the connection
			// drops; release on a fresh one.
			releaseCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := h.Caps.Release(releaseCtx, ident.ID); err != nil {
				log.Warn("connection cap release failed", "identity_id", ident.ID, "err", err)
			}
		}()
	}

	sock, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		log.Debug("upgrade failed", "identity_id", ident.ID, "err", err)
		return
	}

	cl := newClient(newWire(sock), log)
	conn := registry.NewConnection(uuid.NewString(), ident.ID, ident.Role, time.Now().UTC(), cl)

	if err := h.Registry.Register(conn); err != nil {
		log.Error("register failed", "conn_id", conn.ID, "err", err)
		_ = cl.Close()
		return
	}

	log.Info("signaling connected",
		"conn_id", conn.ID, "identity_id", ident.ID, "role", string(ident.Role))

	go cl.writePump()
	cl.readPump(c.Request.Context(), conn, h.Calls)

	// Unregister before closing so the offline transition fires while the
	// registry state is already consistent.
	h.Registry.Unregister(conn.ID)
	_ = cl.Close()

	log.Info("signaling disconnected", "conn_id", conn.ID, "identity_id", ident.ID)
}
