package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ebookviewer/internal/pkg/response"
)

// AdminOnly must run after JWTAuth.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			response.Abort(c, http.StatusUnauthorized, response.CodeMissingToken, "Authentication required")
			return
		}
		if !user.IsAdmin {
			authFailures.WithLabelValues("forbidden").Inc()
			response.Abort(c, http.StatusForbidden, response.CodeForbidden, "Admin privileges required")
			return
		}
		c.Next()
	}
}
