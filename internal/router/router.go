package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"taxatlas/internal/handler"
	"taxatlas/internal/middleware"
)

// Setup configures the Gin engine with all routes and middleware.
func Setup(
	corsOrigins []string,
	calcH *handler.CalculationHandler,
	exemptionH *handler.ExemptionHandler,
	rateH *handler.RateHandler,
	healthH *handler.HealthHandler,
) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(corsOrigins))

	// Health checks
	r.GET("/healthz", healthH.Liveness)
	r.GET("/readyz", healthH.Readiness)

	// API documentation
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Tenant-scoped API
	v1 := r.Group("/api/v1")
	v1.Use(middleware.TenantContext())

	calcs := v1.Group("/calculations")
	calcs.POST("", calcH.Create)
	calcs.GET("", calcH.List)
	calcs.GET("/export", calcH.Export)
	calcs.GET("/:id", calcH.Get)
	calcs.POST("/:id/validate", calcH.Validate)
	calcs.POST("/:id/dispute", calcH.Dispute)
	calcs.POST("/:id/recalculate", calcH.Recalculate)

	exemptions := v1.Group("/exemptions")
	exemptions.POST("", exemptionH.Create)
	exemptions.GET("", exemptionH.List)
	exemptions.POST("/:id/revoke", exemptionH.Revoke)

	v1.GET("/jurisdictions/:code/rates", rateH.ListByJurisdiction)

	return r
}
