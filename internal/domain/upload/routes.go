package upload

import "github.com/gin-gonic/gin"

// RegisterStatic serves stored files at /uploads.
func (s *Service) RegisterStatic(r gin.IRouter) {
	r.Static(PublicPrefix, s.baseDir)
}
