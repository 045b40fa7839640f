package middlewares

import (
	"errors"
	"net/http"
	"strings"

	"github.com/geocoder89/storefront/internal/actorctx"
	"github.com/geocoder89/storefront/internal/auth"
	"github.com/gin-gonic/gin"
)

// Keep this small interface so tests can fake it easily.
type TokenVerifier interface {
	VerifyAccessToken(token string) (*auth.Claims, error)
	VerifySessionToken(token string) (*auth.Claims, error)
}

type AuthMiddleware struct {
	jwt TokenVerifier
}

func NewAuthMiddleware(jwt TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt}
}

// RequireAuth accepts a bearer access token or, failing that, the session
// cookie set at login.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		var (
			claims *auth.Claims
			err    error
		)

		authHeader := c.GetHeader("Authorization")

		switch {
		case strings.HasPrefix(authHeader, "Bearer "):
			raw := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
			if raw == "" {
				abort(c, http.StatusUnauthorized, "missing_token", "Missing or invalid access token")
				return
			}
			claims, err = m.jwt.VerifyAccessToken(raw)

		default:
			raw, cerr := c.Cookie(SessionCookie)
			if cerr != nil || raw == "" {
				abort(c, http.StatusUnauthorized, "missing_token", "You are not logged in")
				return
			}
			claims, err = m.jwt.VerifySessionToken(raw)
		}

		if err != nil {
			if errors.Is(err, auth.ErrExpiredToken) {
				abort(c, http.StatusUnauthorized, "expired_token", "expired token")
				return
			}
			abort(c, http.StatusUnauthorized, "invalid_token", "Invalid token")
			return
		}

		c.Set(ctxUserIDKey, claims.UserID)
		c.Set(ctxIsAdminKey, claims.IsAdmin)

		// services read the caller from the request context
		c.Request = c.Request.WithContext(actorctx.With(c.Request.Context(), actorctx.Identity{
			UserID:  claims.UserID,
			IsAdmin: claims.IsAdmin,
		}))

		c.Next()
	}
}

func UserIDFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxUserIDKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}

func IsAdminFromContext(c *gin.Context) bool {
	return c.GetBool(ctxIsAdminKey)
}
