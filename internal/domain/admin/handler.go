package admin

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ebookviewer/internal/middleware"
	"ebookviewer/internal/pkg/response"
)

type Handler struct {
	service *Service
	log     *zap.Logger
}

func NewHandler(service *Service, log *zap.Logger) *Handler {
	return &Handler{service: service, log: log}
}

// GetUsers godoc
// @Summary List users
// @Tags Admin
// @Security BearerAuth
// @Produce json
// @Router /users [get]
func (h *Handler) GetUsers(c *gin.Context) {
	users, err := h.service.ListUsers(c.Request.Context())
	if err != nil {
		h.log.Error("list users failed", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, "Failed to fetch users")
		return
	}
	response.Success(c, http.StatusOK, users)
}

// DeleteUser godoc
// @Summary Delete user
// @Tags Admin
// @Security BearerAuth
// @Param username path string true "Username"
// @Router /users/{username} [delete]
func (h *Handler) DeleteUser(c *gin.Context) {
	actor, _ := middleware.CurrentUser(c)
	username := c.Param("username")

	if err := h.service.DeleteUser(c.Request.Context(), actor, username); err != nil {
		h.writeError(c, err, "Failed to delete user")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "User deleted"})
}

// DemoteUser godoc
// @Summary Remove premium from a user
// @Tags Admin
// @Security BearerAuth
// @Param username path string true "Username"
// @Router /users/{username}/demote [put]
func (h *Handler) DemoteUser(c *gin.Context) {
	actor, _ := middleware.CurrentUser(c)
	username := c.Param("username")

	if err := h.service.DemoteUser(c.Request.Context(), actor, username); err != nil {
		h.writeError(c, err, "Failed to demote user")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "User demoted"})
}

func (h *Handler) writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrUserNotFound):
		response.Error(c, http.StatusNotFound, response.CodeUserNotFound, "User not found")
	case errors.Is(err, ErrNotDemotable):
		response.Error(c, http.StatusNotFound, response.CodeNotFound, "User not found or already non-premium")
	case errors.Is(err, ErrCannotEditSelf):
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "Admins cannot delete or demote themselves")
	default:
		h.log.Error(fallback, zap.Error(err))
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, fallback)
	}
}
