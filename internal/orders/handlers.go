package orders

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/soukdz/souk/internal/auth"
	"github.com/soukdz/souk/internal/validation"
)

// Handler provides HTTP endpoints for order and escrow operations.
type Handler struct {
	service *Service
}

// NewHandler creates a new order handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterProtectedRoutes sets up authenticated buyer/seller routes.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.POST("/orders", h.Checkout)
	r.GET("/orders", h.ListOrders)
	r.GET("/orders/:id", h.GetOrder)
	r.POST("/orders/:id/receipt", h.SubmitReceipt)
	r.POST("/orders/:id/ship", h.MarkShipped)
	r.POST("/orders/:id/confirm", h.ConfirmDelivery)
	r.POST("/orders/:id/dispute", h.OpenDispute)
}

// RegisterAdminRoutes sets up privileged escrow routes.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.GET("/orders", h.AdminListOrders)
	r.POST("/orders/:id/transition", h.AdminTransition)
}

// Checkout handles POST /v1/orders. Each line becomes its own order; on a
// mid-checkout failure the already-created orders stand and the response says
// which line failed.
func (h *Handler) Checkout(c *gin.Context) {
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	created, err := h.service.Checkout(c.Request.Context(), auth.UserID(c), req)
	if err != nil {
		if len(created) > 0 {
			var lineErr *LineError
			failedLine := -1
			if errors.As(err, &lineErr) {
				failedLine = lineErr.Index
			}
			c.JSON(http.StatusMultiStatus, gin.H{
				"orders":      created,
				"count":       len(created),
				"error":       "partial_checkout",
				"message":     err.Error(),
				"failed_line": failedLine,
			})
			return
		}
		var lineErr *LineError
		if errors.As(err, &lineErr) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "checkout_failed",
				"message": err.Error(),
			})
			return
		}
		writeOrderError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"orders": created,
		"count":  len(created),
	})
}

// GetOrder handles GET /v1/orders/:id. Visible to the order's buyer, its
// seller, and admins.
func (h *Handler) GetOrder(c *gin.Context) {
	order, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeOrderError(c, err)
		return
	}

	userID := auth.UserID(c)
	if order.BuyerID != userID && order.SellerID != userID && auth.UserRole(c) != auth.RoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{
			"error":   "permission_denied",
			"message": "Not a party to this order",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": order})
}

// ListOrders handles GET /v1/orders. Buyers see their purchases, sellers
// their sales, per the ?side= query (default buyer).
func (h *Handler) ListOrders(c *gin.Context) {
	limit := parseLimit(c.Query("limit"))
	userID := auth.UserID(c)

	var (
		list []*Order
		err  error
	)
	if c.Query("side") == "seller" {
		list, err = h.service.ListBySeller(c.Request.Context(), userID, limit)
	} else {
		list, err = h.service.ListByBuyer(c.Request.Context(), userID, limit)
	}
	if err != nil {
		writeOrderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orders": list,
		"count":  len(list),
	})
}

type receiptRequest struct {
	ReceiptURL string `json:"receiptUrl" binding:"required"`
}

// SubmitReceipt handles POST /v1/orders/:id/receipt
func (h *Handler) SubmitReceipt(c *gin.Context) {
	var req receiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "receiptUrl is required",
		})
		return
	}

	order, err := h.service.SubmitReceipt(c.Request.Context(), c.Param("id"), auth.UserID(c), req.ReceiptURL)
	if err != nil {
		writeOrderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": order})
}

type shipRequest struct {
	ProofURL string `json:"proofUrl" binding:"required"`
}

// MarkShipped handles POST /v1/orders/:id/ship
func (h *Handler) MarkShipped(c *gin.Context) {
	var req shipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "proofUrl is required",
		})
		return
	}

	order, err := h.service.MarkShipped(c.Request.Context(), c.Param("id"), auth.UserID(c), req.ProofURL)
	if err != nil {
		writeOrderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": order})
}

// ConfirmDelivery handles POST /v1/orders/:id/confirm
func (h *Handler) ConfirmDelivery(c *gin.Context) {
	order, err := h.service.ConfirmDelivery(c.Request.Context(), c.Param("id"), auth.UserID(c))
	if err != nil {
		writeOrderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": order})
}

// OpenDispute handles POST /v1/orders/:id/dispute. The caller's role decides
// which side of the order they must own.
func (h *Handler) OpenDispute(c *gin.Context) {
	var req DisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Reason is required",
		})
		return
	}

	order, err := h.service.OpenDispute(c.Request.Context(), c.Param("id"), auth.UserID(c), auth.UserRole(c), req)
	if err != nil {
		writeOrderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": order})
}

// AdminTransition handles POST /v1/admin/orders/:id/transition
func (h *Handler) AdminTransition(c *gin.Context) {
	var req AdminTransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "action is required (verify_funds, release_to_seller, or refund_buyer)",
		})
		return
	}

	order, err := h.service.AdminTransition(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeOrderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "order": order})
}

// AdminListOrders handles GET /v1/admin/orders?escrow_status=...
func (h *Handler) AdminListOrders(c *gin.Context) {
	limit := parseLimit(c.Query("limit"))
	status := EscrowStatus(c.DefaultQuery("escrow_status", string(EscrowPendingReceipt)))
	if !status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "escrow_status must be one of pending_receipt, funds_held, disputed, released_to_seller, refunded_to_buyer",
		})
		return
	}

	list, err := h.service.ListByEscrowStatus(c.Request.Context(), status, limit)
	if err != nil {
		writeOrderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orders": list,
		"count":  len(list),
	})
}

// writeOrderError maps service errors onto HTTP responses. Guard and conflict
// rejections carry the attempted action and the current state in the message
// so clients can show something accurate.
func writeOrderError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := "internal_error"

	var verrs validation.ValidationErrors
	switch {
	case errors.Is(err, ErrOrderNotFound):
		status = http.StatusNotFound
		code = "not_found"
	case errors.Is(err, ErrNotOwner):
		status = http.StatusForbidden
		code = "permission_denied"
	case errors.Is(err, ErrGuardViolation):
		status = http.StatusConflict
		code = "guard_violation"
	case errors.Is(err, ErrConflict):
		status = http.StatusConflict
		code = "transition_conflict"
	case errors.Is(err, ErrMigrationRequired):
		status = http.StatusServiceUnavailable
		code = "migration_required"
	case errors.As(err, &verrs):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": verrs.Error(),
			"details": verrs,
		})
		return
	}

	c.JSON(status, gin.H{"error": code, "message": err.Error()})
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
