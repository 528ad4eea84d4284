package auth

import "github.com/gin-gonic/gin"

func (h *Handler) RegisterPublicRoutes(r gin.IRouter) {
	r.POST("/signup", h.Signup)
	r.POST("/login", h.Login)
	r.POST("/refresh-token", h.RefreshToken)
	r.POST("/logout", h.Logout)
}

func (h *Handler) RegisterProtectedRoutes(protected gin.IRouter) {
	protected.GET("/user", h.Me)
}
