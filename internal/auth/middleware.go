package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	// ContextKeyAPIKey is the key for storing the API key in gin context
	ContextKeyAPIKey = "apiKey"
	// ContextKeyUserID is the key for storing the authenticated user ID
	ContextKeyUserID = "authUserID"
	// ContextKeyRole is the key for storing the authenticated role
	ContextKeyRole = "authRole"
)

// Middleware extracts and validates the API key from the request.
// Sets apiKey, authUserID, and authRole in context if valid.
func Middleware(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader("Authorization")
		if apiKey == "" {
			apiKey = c.GetHeader("X-API-Key")
		}

		if apiKey != "" {
			key, err := m.ValidateKey(c.Request.Context(), apiKey)
			if err == nil {
				c.Set(ContextKeyAPIKey, key)
				c.Set(ContextKeyUserID, key.UserID)
				c.Set(ContextKeyRole, string(key.Role))
			}
		}

		c.Next()
	}
}

// RequireAuth middleware rejects requests without valid auth
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get(ContextKeyAPIKey); !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "API key required. Include 'Authorization: Bearer sk_...' header.",
			})
			return
		}
		c.Next()
	}
}

// RequireRole requires auth AND the given role.
func RequireRole(role Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		key, ok := GetAPIKey(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "API key required.",
			})
			return
		}
		if key.Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "This operation requires the " + string(role) + " role.",
			})
			return
		}
		c.Next()
	}
}

// RequireAdmin allows either an admin-role API key or a matching
// X-Admin-Secret header (for ops tooling without a provisioned key).
func RequireAdmin(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key, ok := GetAPIKey(c); ok && key.Role == RoleAdmin {
			c.Next()
			return
		}
		if m.CheckAdminSecret(c.GetHeader("X-Admin-Secret")) {
			c.Set(ContextKeyUserID, "admin")
			c.Set(ContextKeyRole, string(RoleAdmin))
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error":   "forbidden",
			"message": "Admin credentials required.",
		})
	}
}

// GetAPIKey returns the API key from context (if authenticated)
func GetAPIKey(c *gin.Context) (*APIKey, bool) {
	key, exists := c.Get(ContextKeyAPIKey)
	if !exists {
		return nil, false
	}
	return key.(*APIKey), true
}

// UserID returns the authenticated user's ID, or "" if unauthenticated.
func UserID(c *gin.Context) string {
	id, exists := c.Get(ContextKeyUserID)
	if !exists {
		return ""
	}
	return id.(string)
}

// UserRole returns the authenticated role, or "" if unauthenticated.
func UserRole(c *gin.Context) Role {
	r, exists := c.Get(ContextKeyRole)
	if !exists {
		return ""
	}
	return Role(r.(string))
}
