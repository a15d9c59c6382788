package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxatlas/internal/middleware"
)

func tenantRouter() (*gin.Engine, *uuid.UUID) {
	var seen uuid.UUID
	r := gin.New()
	r.Use(middleware.TenantContext())
	r.GET("/test", func(c *gin.Context) {
		id, err := middleware.GetTenantID(c)
		if err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		seen = id
		c.Status(http.StatusOK)
	})
	return r, &seen
}

func TestTenantContext_ValidHeader(t *testing.T) {
	r, seen := tenantRouter()
	tenantID := uuid.New()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set(middleware.TenantHeader, tenantID.String())
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, tenantID, *seen)
}

func TestTenantContext_MissingHeader(t *testing.T) {
	r, _ := tenantRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/test", http.NoBody)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
}

func TestTenantContext_MalformedHeader(t *testing.T) {
	r, _ := tenantRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set(middleware.TenantHeader, "not-a-uuid")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetTenantID_WithoutMiddleware(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	_, err := middleware.GetTenantID(c)
	assert.Error(t, err)
}
