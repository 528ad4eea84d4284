package premium

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ebookviewer/internal/domain"
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

type StatusResponse struct {
	User *domain.User `json:"user"`
}

type UpgradeResponse struct {
	Message string       `json:"message"`
	User    *domain.User `json:"user"`
}

// GetStatus returns the caller with expired premium already demoted.
// @Summary		Premium status
// @Tags		Premium
// @Produce		json
// @Security	BearerAuth
// @Success		200	{object}	StatusResponse
// @Router		/api/status [get]
func (h *Handler) GetStatus(c *gin.Context) {
	current, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeMissingToken, "Authentication required")
		return
	}

	user, err := h.service.Status(c.Request.Context(), current.ID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			response.Error(c, http.StatusNotFound, response.CodeUserNotFound, "User not found")
			return
		}
		h.log.Error("status check failed", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, "Failed to check status")
		return
	}
	response.Success(c, http.StatusOK, StatusResponse{User: user})
}

// Upgrade grants the caller permanent premium.
// @Summary		Upgrade to premium
// @Tags		Premium
// @Produce		json
// @Security	BearerAuth
// @Success		200	{object}	UpgradeResponse
// @Failure		400	{object}	map[string]string
// @Router		/upgrade [post]
func (h *Handler) Upgrade(c *gin.Context) {
	current, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeMissingToken, "Authentication required")
		return
	}

	user, err := h.service.Upgrade(c.Request.Context(), current.ID)
	if err != nil {
		switch {
		case errors.Is(err, ErrAlreadyPremium), errors.Is(err, ErrUserNotFound):
			response.Error(c, http.StatusBadRequest, response.CodeValidation, "User is already premium or was not found")
		default:
			h.log.Error("upgrade failed", zap.Error(err))
			response.Error(c, http.StatusInternalServerError, response.CodeInternal, "Failed to upgrade user")
		}
		return
	}
	response.Success(c, http.StatusOK, UpgradeResponse{Message: "User upgraded to premium", User: user})
}
