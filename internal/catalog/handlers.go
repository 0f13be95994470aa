package catalog

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/soukdz/souk/internal/auth"
	"github.com/soukdz/souk/internal/validation"
)

// Handler provides HTTP endpoints for catalog operations.
type Handler struct {
	service *Service
}

// NewHandler creates a new catalog handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up public (read-only) catalog routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/items", h.ListItems)
	r.GET("/items/:id", h.GetItem)
}

// RegisterSellerRoutes sets up seller-only catalog routes.
func (h *Handler) RegisterSellerRoutes(r *gin.RouterGroup) {
	r.POST("/items", h.PublishItem)
	r.GET("/seller/items", h.ListOwnItems)
	r.POST("/items/:id/deactivate", h.DeactivateItem)
}

// PublishItem handles POST /v1/items
func (h *Handler) PublishItem(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	item, err := h.service.Publish(c.Request.Context(), auth.UserID(c), req)
	if err != nil {
		var verrs validation.ValidationErrors
		if errors.As(err, &verrs) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "validation_error",
				"message": verrs.Error(),
				"details": verrs,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to publish item",
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"item": item})
}

// GetItem handles GET /v1/items/:id
func (h *Handler) GetItem(c *gin.Context) {
	item, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrItemNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Item not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"item": item})
}

// ListItems handles GET /v1/items
func (h *Handler) ListItems(c *gin.Context) {
	limit := parseLimit(c.Query("limit"))

	items, err := h.service.ListActive(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items": items,
		"count": len(items),
	})
}

// ListOwnItems handles GET /v1/seller/items
func (h *Handler) ListOwnItems(c *gin.Context) {
	limit := parseLimit(c.Query("limit"))

	items, err := h.service.ListBySeller(c.Request.Context(), auth.UserID(c), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items": items,
		"count": len(items),
	})
}

// DeactivateItem handles POST /v1/items/:id/deactivate
func (h *Handler) DeactivateItem(c *gin.Context) {
	item, err := h.service.Deactivate(c.Request.Context(), auth.UserID(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrItemNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Item not found",
			})
			return
		}
		c.JSON(http.StatusForbidden, gin.H{
			"error":   "unauthorized",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"item": item})
}

func parseLimit(raw string) int {
	limit := 50
	if raw == "" {
		return limit
	}
	if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
		limit = parsed
		if limit > 200 {
			limit = 200
		}
	}
	return limit
}
