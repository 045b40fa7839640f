package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequireAdmin must run after RequireAuth.
func (m *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := UserIDFromContext(c); !ok {
			abort(c, http.StatusUnauthorized, "unauthorized", "Missing identity context")
			return
		}
		if !IsAdminFromContext(c) {
			abort(c, http.StatusForbidden, "forbidden", "Admin role required")
			return
		}
		c.Next()
	}
}
