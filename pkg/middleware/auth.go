package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-io-live/liveroom/pkg/jwt"
	pkglog "github.com/weiawesome/wes-io-live/liveroom/pkg/log"
	"github.com/weiawesome/wes-io-live/liveroom/pkg/response"
)

const (
	UserIDKey     = pkglog.FieldUserID
	UsernameKey   = pkglog.FieldUsername
	TokenKey      = "token"
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "
)

// TokenVerifier validates access tokens.
type TokenVerifier interface {
	Verify(token string) (*jwt.Claims, error)
}

// AuthMiddleware validates bearer tokens locally against the auth service
// public key.
type AuthMiddleware struct {
	verifier TokenVerifier
}

// NewAuthMiddleware creates a new auth middleware.
func NewAuthMiddleware(verifier TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

// RequireAuth returns a gin middleware that rejects requests without a valid
// bearer token and stores the caller's identity in the gin context.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(AuthHeaderKey)
		if !strings.HasPrefix(header, BearerPrefix) {
			response.Unauthorized(c, "missing or malformed authorization header")
			c.Abort()
			return
		}

		token := strings.TrimPrefix(header, BearerPrefix)
		claims, err := m.verifier.Verify(token)
		if err != nil {
			response.Unauthorized(c, err.Error())
			c.Abort()
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(UsernameKey, claims.Username)
		c.Set(TokenKey, token)
		c.Next()
	}
}

// GetUserID extracts the caller's user ID from the gin context.
func GetUserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}
