package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ContextKeyTenantID is the gin context key holding the caller's tenant UUID.
const ContextKeyTenantID = "tenant_id"

// TenantHeader is the request header carrying the tenant identifier.
const TenantHeader = "X-Tenant-ID"

// TenantContext resolves the tenant from the X-Tenant-ID header and stores
// it in the request context. Requests without a valid tenant are rejected.
func TenantContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(TenantHeader)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   gin.H{"code": "MISSING_TENANT", "message": "X-Tenant-ID header is required"},
			})
			return
		}
		tenantID, err := uuid.Parse(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   gin.H{"code": "INVALID_TENANT", "message": "X-Tenant-ID must be a valid UUID"},
			})
			return
		}
		c.Set(ContextKeyTenantID, tenantID)
		c.Next()
	}
}

// GetTenantID extracts the tenant UUID set by TenantContext.
func GetTenantID(c *gin.Context) (uuid.UUID, error) {
	v, exists := c.Get(ContextKeyTenantID)
	if !exists {
		return uuid.Nil, fmt.Errorf("middleware.GetTenantID: tenant context missing")
	}
	id, ok := v.(uuid.UUID)
	if !ok {
		return uuid.Nil, fmt.Errorf("middleware.GetTenantID: tenant context has wrong type")
	}
	return id, nil
}
