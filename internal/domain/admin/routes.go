package admin

import "github.com/gin-gonic/gin"

// RegisterRoutes expects a group already gated by AdminOnly.
func (h *Handler) RegisterRoutes(admin gin.IRouter) {
	admin.GET("/users", h.GetUsers)
	admin.DELETE("/users/:username", h.DeleteUser)
	admin.PUT("/users/:username/demote", h.DemoteUser)
}
