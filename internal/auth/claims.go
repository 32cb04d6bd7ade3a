package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims are the only supported JWT claims shape for this service.
// Role must be one of the closed identity roles; the signaling layer
// re-checks it against the directory before registering a connection.
type Claims struct {
	jwt.RegisteredClaims

	IdentityID string    `json:"identity_id"`
	Role       string    `json:"role"`
	TokenType  TokenType `json:"token_type"`
}
