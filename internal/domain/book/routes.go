package book

import "github.com/gin-gonic/gin"

func (h *Handler) RegisterPublicRoutes(r gin.IRouter) {
	r.GET("/public-books", h.GetPublicBooks)
}

func (h *Handler) RegisterProtectedRoutes(protected gin.IRouter) {
	protected.GET("/books", h.GetBooks)
	protected.GET("/book/:id", h.GetBook)
	protected.POST("/upload-book", h.UploadBook)
}
