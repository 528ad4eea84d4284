package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ebookviewer/internal/middleware"
	"ebookviewer/internal/pkg/response"
	"ebookviewer/internal/pkg/validator"
)

// Handler manages all HTTP interactions for authentication
type Handler struct {
	service *Service
	log     *zap.Logger
}

func NewHandler(service *Service, log *zap.Logger) *Handler {
	return &Handler{service: service, log: log}
}

// Signup registers a new reader account.
// @Summary		Sign up
// @Tags		Auth
// @Accept		json
// @Produce		json
// @Param		body	body	SignupRequest	true	"payload"
// @Success		200	{object}	SignupResponse
// @Router		/signup [post]
func (h *Handler) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, response.CodeValidation, "Invalid request body", validator.FieldErrors(err))
		return
	}

	user, err := h.service.Signup(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, ErrUsernameTaken):
			response.Error(c, http.StatusBadRequest, response.CodeConflict, "Username already exists")
		case errors.Is(err, ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeValidation, "Username must not be blank")
		case errors.Is(err, ErrPasswordTooLong):
			response.Error(c, http.StatusBadRequest, response.CodeValidation, "Password must be at most 72 bytes")
		default:
			h.log.Error("signup failed", zap.Error(err))
			response.Error(c, http.StatusInternalServerError, response.CodeInternal, "Failed to create user")
		}
		return
	}

	response.Success(c, http.StatusOK, SignupResponse{Message: "User created successfully", User: user})
}

// Login exchanges credentials for a token pair.
// @Summary		Log in
// @Tags		Auth
// @Accept		json
// @Produce		json
// @Param		body	body	LoginRequest	true	"payload"
// @Success		200	{object}	LoginResponse
// @Failure		401	{object}	map[string]string
// @Router		/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, response.CodeValidation, "Invalid request body", validator.FieldErrors(err))
		return
	}

	res, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			response.Error(c, http.StatusUnauthorized, response.CodeInvalidCredentials, "Invalid credentials")
			return
		}
		h.log.Error("login failed", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, "Login failed")
		return
	}

	response.Success(c, http.StatusOK, res)
}

// RefreshToken issues a new access token.
// @Summary		Refresh access token
// @Tags		Auth
// @Accept		json
// @Produce		json
// @Param		body	body	RefreshRequest	true	"payload"
// @Success		200	{object}	RefreshResponse
// @Failure		401	{object}	map[string]string
// @Router		/refresh-token [post]
func (h *Handler) RefreshToken(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusUnauthorized, response.CodeInvalidToken, "Refresh token required")
		return
	}

	token, err := h.service.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, ErrInvalidRefreshToken) {
			response.Error(c, http.StatusUnauthorized, response.CodeInvalidToken, "Invalid refresh token")
			return
		}
		h.log.Error("refresh failed", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, "Failed to refresh token")
		return
	}

	response.Success(c, http.StatusOK, RefreshResponse{Token: token})
}

// Logout acknowledges a client-side logout. Tokens are stateless, so there is
// nothing to revoke.
func (h *Handler) Logout(c *gin.Context) {
	var req RefreshRequest
	_ = c.ShouldBindJSON(&req)
	if req.RefreshToken != "" {
		if claims, err := h.service.tokens.ParseRefresh(req.RefreshToken); err == nil {
			h.log.Info("user logged out", zap.String("username", claims.Username))
		}
	}
	c.Status(http.StatusNoContent)
}

// Me returns the authenticated user.
// @Summary		Current user
// @Tags		Auth
// @Produce		json
// @Security	BearerAuth
// @Router		/user [get]
func (h *Handler) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeMissingToken, "Authentication required")
		return
	}
	response.Success(c, http.StatusOK, user)
}
