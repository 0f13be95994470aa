package blob

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler serves blob upload and download endpoints.
type Handler struct {
	store Store
}

// NewHandler creates a new blob handler.
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes sets up public blob download routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/blobs/:key", h.GetBlob)
}

// RegisterProtectedRoutes sets up the authenticated upload route.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.POST("/uploads", h.Upload)
}

// Upload handles POST /v1/uploads. The raw body is the file content;
// Content-Type is preserved for later download.
func (h *Handler) Upload(c *gin.Context) {
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, MaxBlobSize+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Failed to read upload body",
		})
		return
	}
	if len(data) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Empty upload",
		})
		return
	}
	if len(data) > MaxBlobSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error":   "too_large",
			"message": "Upload exceeds maximum size",
		})
		return
	}

	contentType := c.ContentType()
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	url, err := h.store.Put(c.Request.Context(), contentType, data)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to store upload",
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"url": url})
}

// GetBlob handles GET /v1/blobs/:key
func (h *Handler) GetBlob(c *gin.Context) {
	b, err := h.store.Get(c.Request.Context(), c.Param("key"))
	if err != nil {
		if errors.Is(err, ErrBlobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Blob not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.Data(http.StatusOK, b.ContentType, b.Data)
}
