package book

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ebookviewer/internal/domain"
	"ebookviewer/internal/domain/upload"
	"ebookviewer/internal/middleware"
	"ebookviewer/internal/pkg/response"
)

type Handler struct {
	service *Service
	maxSize int64
	log     *zap.Logger
}

func NewHandler(service *Service, maxUploadSize int64, log *zap.Logger) *Handler {
	return &Handler{service: service, maxSize: maxUploadSize, log: log}
}

type UploadResponse struct {
	Message string       `json:"message"`
	Book    *domain.Book `json:"book"`
}

// GetBooks godoc
// @Summary List books visible to the caller
// @Tags Books
// @Security BearerAuth
// @Produce json
// @Router /books [get]
func (h *Handler) GetBooks(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	books, err := h.service.ListFor(c.Request.Context(), user)
	if err != nil {
		h.log.Error("list books failed", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, "Failed to fetch books")
		return
	}
	response.Success(c, http.StatusOK, books)
}

func (h *Handler) GetPublicBooks(c *gin.Context) {
	books, err := h.service.ListPublic(c.Request.Context())
	if err != nil {
		h.log.Error("list public books failed", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, "Failed to fetch books")
		return
	}
	response.Success(c, http.StatusOK, books)
}

// GetBook godoc
// @Summary Get a book
// @Tags Books
// @Security BearerAuth
// @Param id path string true "Book ID"
// @Produce json
// @Router /book/{id} [get]
func (h *Handler) GetBook(c *gin.Context) {
	b, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidID):
			response.Error(c, http.StatusBadRequest, response.CodeValidation, "Invalid book ID format")
		case errors.Is(err, ErrBookNotFound):
			response.Error(c, http.StatusNotFound, response.CodeNotFound, "Book not found")
		default:
			h.log.Error("get book failed", zap.Error(err))
			response.ErrorWithDetails(c, http.StatusInternalServerError, response.CodeInternal, "Failed to fetch book", err.Error())
		}
		return
	}
	response.Success(c, http.StatusOK, b)
}

// UploadBook godoc
// @Summary Upload a PDF or EPUB
// @Tags Books
// @Security BearerAuth
// @Accept multipart/form-data
// @Param file formData file true "Document"
// @Param title formData string false "Title"
// @Param author formData string false "Author"
// @Param isSample formData string false "\"true\" for a free sample"
// @Success 201 {object} UploadResponse
// @Router /upload-book [post]
func (h *Handler) UploadBook(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeMissingToken, "Authentication required")
		return
	}

	// room for the form fields on top of the file itself
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxSize+1<<20)
	fileHeader, err := c.FormFile("file")
	if err != nil {
		if isBodyTooLarge(err) {
			response.Error(c, http.StatusRequestEntityTooLarge, response.CodeTooLarge, "File too large")
			return
		}
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "No file uploaded")
		return
	}

	b, err := h.service.Upload(c.Request.Context(), user, UploadInput{
		Title:    c.PostForm("title"),
		Author:   c.PostForm("author"),
		IsSample: c.PostForm("isSample") == "true",
		File:     fileHeader,
		Scheme:   requestScheme(c),
		Host:     c.Request.Host,
	})
	if err != nil {
		switch {
		case errors.Is(err, upload.ErrFileTooLarge):
			response.Error(c, http.StatusRequestEntityTooLarge, response.CodeTooLarge, "File too large")
		case errors.Is(err, upload.ErrInvalidMimeType):
			response.Error(c, http.StatusBadRequest, response.CodeValidation, "Only PDF and EPUB files are allowed")
		case errors.Is(err, upload.ErrEmptyFile):
			response.Error(c, http.StatusBadRequest, response.CodeValidation, "No file uploaded")
		default:
			h.log.Error("upload book failed", zap.Error(err))
			response.ErrorWithDetails(c, http.StatusInternalServerError, response.CodeInternal, "Failed to upload book", err.Error())
		}
		return
	}

	response.Success(c, http.StatusCreated, UploadResponse{Message: "Book uploaded successfully", Book: b})
}

func isBodyTooLarge(err error) bool {
	var tooLarge *http.MaxBytesError
	return errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large")
}

func requestScheme(c *gin.Context) string {
	if proto := c.GetHeader("X-Forwarded-Proto"); proto == "http" || proto == "https" {
		return proto
	}
	if c.Request.TLS != nil {
		return "https"
	}
	return "http"
}
