package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/soukdz/souk/internal/auth"
	"github.com/soukdz/souk/internal/blob"
	"github.com/soukdz/souk/internal/catalog"
	"github.com/soukdz/souk/internal/health"
	"github.com/soukdz/souk/internal/metrics"
	"github.com/soukdz/souk/internal/orders"
	"github.com/soukdz/souk/internal/validation"
)

func (s *Server) setupRoutes() {
	catalogHandler := catalog.NewHandler(s.catalogSvc)
	orderHandler := orders.NewHandler(s.orderSvc)
	blobHandler := blob.NewHandler(s.blobStore)

	// Operational endpoints
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())
	s.router.GET("/ws", func(c *gin.Context) {
		s.hub.HandleWebSocket(c.Writer, c.Request)
	})

	// Public reads
	v1 := s.router.Group("/v1")
	v1.Use(auth.Middleware(s.authMgr))
	v1.Use(validation.IDParamMiddleware("id"))
	catalogHandler.RegisterRoutes(v1)
	blobHandler.RegisterRoutes(v1)

	// Authenticated buyer/seller surface
	protected := v1.Group("")
	protected.Use(auth.RequireAuth())
	orderHandler.RegisterProtectedRoutes(protected)
	blobHandler.RegisterProtectedRoutes(protected)
	protected.GET("/keys", s.listKeysHandler)
	protected.DELETE("/keys/:id", s.revokeKeyHandler)

	// Seller-only catalog management
	seller := v1.Group("")
	seller.Use(auth.RequireAuth(), auth.RequireRole(auth.RoleSeller))
	catalogHandler.RegisterSellerRoutes(seller)

	// Admin surface: admin API key or X-Admin-Secret
	admin := v1.Group("/admin")
	admin.Use(auth.RequireAdmin(s.authMgr))
	admin.Use(validation.IDParamMiddleware("id"))
	orderHandler.RegisterAdminRoutes(admin)
	admin.POST("/keys", s.issueKeyHandler)
	admin.GET("/realtime/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.hub.Stats())
	})
}

// HealthResponse for health check endpoints
type HealthResponse struct {
	Status    string          `json:"status"`
	Timestamp time.Time       `json:"timestamp"`
	Checks    []health.Status `json:"checks,omitempty"`
}

func (s *Server) healthHandler(c *gin.Context) {
	healthy, statuses := s.healthReg.CheckAll(c.Request.Context())
	status := "ok"
	code := http.StatusOK
	if !healthy {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, HealthResponse{
		Status:    status,
		Timestamp: time.Now(),
		Checks:    statuses,
	})
}

func (s *Server) livenessHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "starting"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

type issueKeyRequest struct {
	UserID string    `json:"userId" binding:"required"`
	Role   auth.Role `json:"role" binding:"required"`
	Name   string    `json:"name"`
}

// issueKeyHandler handles POST /v1/admin/keys. The raw key is returned once
// and never stored.
func (s *Server) issueKeyHandler(c *gin.Context) {
	var req issueKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "userId and role are required",
		})
		return
	}
	if !req.Role.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "role must be buyer, seller, or admin",
		})
		return
	}

	rawKey, key, err := s.authMgr.GenerateKey(c.Request.Context(), req.UserID, req.Role, req.Name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to generate key",
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"key":    rawKey,
		"keyId":  key.ID,
		"userId": key.UserID,
		"role":   key.Role,
	})
}

func (s *Server) listKeysHandler(c *gin.Context) {
	keys, err := s.authMgr.ListKeys(c.Request.Context(), auth.UserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to list keys",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"keys": keys, "count": len(keys)})
}

func (s *Server) revokeKeyHandler(c *gin.Context) {
	if err := s.authMgr.RevokeKey(c.Request.Context(), c.Param("id"), auth.UserID(c)); err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Key not found",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"revoked": true})
}
