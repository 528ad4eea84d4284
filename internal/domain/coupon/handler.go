package coupon

import (
	"errors"
	"net/http"
	"time"

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

type RedeemRequest struct {
	CouponCode string `json:"couponCode" binding:"required"`
}

type RedeemResponse struct {
	Success      bool      `json:"success"`
	Message      string    `json:"message"`
	ExpiryDate   time.Time `json:"expiryDate"`
	DurationDays int       `json:"durationDays"`
}

func (h *Handler) Generate(c *gin.Context) {
	coupon, err := h.service.Generate(c.Request.Context())
	if err != nil {
		h.log.Error("generate coupon failed", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, "Failed to generate coupon")
		return
	}
	response.Success(c, http.StatusOK, coupon)
}

func (h *Handler) List(c *gin.Context) {
	coupons, err := h.service.List(c.Request.Context())
	if err != nil {
		h.log.Error("list coupons failed", zap.Error(err))
		response.ErrorWithDetails(c, http.StatusInternalServerError, response.CodeInternal, "Failed to fetch coupons", err.Error())
		return
	}
	response.Success(c, http.StatusOK, coupons)
}

// Redeem exchanges a coupon code for a time-boxed premium grant.
// @Summary		Redeem coupon
// @Tags		Coupons
// @Accept		json
// @Produce		json
// @Security	BearerAuth
// @Param		body	body	RedeemRequest	true	"payload"
// @Success		200	{object}	RedeemResponse
// @Failure		400	{object}	map[string]string
// @Router		/redeem-coupon [post]
func (h *Handler) Redeem(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeMissingToken, "Authentication required")
		return
	}

	var req RedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "Coupon code is required")
		return
	}

	red, err := h.service.Redeem(c.Request.Context(), user, req.CouponCode)
	if err != nil {
		if errors.Is(err, ErrInvalidCoupon) {
			response.Error(c, http.StatusBadRequest, response.CodeValidation, "Coupon is invalid or already used")
			return
		}
		h.log.Error("redeem coupon failed", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, "Failed to redeem coupon")
		return
	}

	response.Success(c, http.StatusOK, RedeemResponse{
		Success:      true,
		Message:      "Coupon redeemed",
		ExpiryDate:   red.ExpiryDate,
		DurationDays: red.DurationDays,
	})
}
