package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ebookviewer/internal/domain"
	"ebookviewer/internal/pkg/jwt"
	"ebookviewer/internal/pkg/response"
	"ebookviewer/internal/repository"
)

const (
	ctxUserKey     = "user"
	ctxUsernameKey = "username"
)

// UserLookup resolves the token subject to a stored account.
type UserLookup interface {
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
}

// JWTAuth verifies the bearer token and loads the user it names.
// Missing token is 401, a bad or expired token is 403, an unknown user is 404.
func JWTAuth(tokens *jwt.Service, users UserLookup, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c.GetHeader("Authorization"))
		if raw == "" {
			authFailures.WithLabelValues("missing").Inc()
			response.Abort(c, http.StatusUnauthorized, response.CodeMissingToken, "No token provided")
			return
		}

		claims, err := tokens.ParseAccess(raw)
		if err != nil {
			reason := "invalid"
			if errors.Is(err, jwt.ErrExpiredToken) {
				reason = "expired"
			}
			authFailures.WithLabelValues(reason).Inc()
			response.Abort(c, http.StatusForbidden, response.CodeInvalidToken, "Invalid token")
			return
		}

		user, err := users.GetByUsername(c.Request.Context(), claims.Username)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				authFailures.WithLabelValues("unknown_user").Inc()
				response.Abort(c, http.StatusNotFound, response.CodeUserNotFound, "User not found")
				return
			}
			log.Error("auth user lookup failed", zap.String("username", claims.Username), zap.Error(err))
			response.Abort(c, http.StatusInternalServerError, response.CodeInternal, "Failed to verify user")
			return
		}

		c.Set(ctxUserKey, user)
		c.Set(ctxUsernameKey, user.Username)
		c.Next()
	}
}

// bearerToken returns the token part of "Bearer <token>", or "" if the header
// has another shape.
func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// CurrentUser returns the user stored by JWTAuth.
func CurrentUser(c *gin.Context) (*domain.User, bool) {
	v, ok := c.Get(ctxUserKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*domain.User)
	return u, ok && u != nil
}
