package premium

import "github.com/gin-gonic/gin"

func (h *Handler) RegisterProtectedRoutes(protected gin.IRouter) {
	protected.GET("/api/status", h.GetStatus)
	protected.POST("/upgrade", h.Upgrade)
}
