package coupon

import "github.com/gin-gonic/gin"

func (h *Handler) RegisterProtectedRoutes(protected gin.IRouter) {
	protected.POST("/redeem-coupon", h.Redeem)
}

// RegisterAdminRoutes expects a group already gated by AdminOnly.
func (h *Handler) RegisterAdminRoutes(admin gin.IRouter) {
	admin.POST("/generate-coupon", h.Generate)
	admin.GET("/coupons", h.List)
}
