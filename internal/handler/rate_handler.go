package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"taxatlas/internal/port"
	"taxatlas/internal/rates"
)

// RateHandler handles read-only rate inspection endpoints.
type RateHandler struct {
	catalog       *rates.Catalog
	jurisdictions port.JurisdictionRepository
}

// NewRateHandler creates a new RateHandler.
func NewRateHandler(catalog *rates.Catalog, jurisdictions port.JurisdictionRepository) *RateHandler {
	return &RateHandler{catalog: catalog, jurisdictions: jurisdictions}
}

// ListByJurisdiction handles GET /api/v1/jurisdictions/:code/rates
// @Summary      List active rates for a jurisdiction
// @Description  Lists the rates active for a jurisdiction code on a given date (default today)
// @Tags         rates
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant UUID"
// @Param        code path string true "Jurisdiction code"
// @Param        state query string true "State code the jurisdiction belongs to"
// @Param        as_of query string false "Effective date (YYYY-MM-DD, default today)"
// @Success      200 {object} APIResponse{data=[]domain.TaxRate}
// @Failure      400 {object} APIResponse
// @Failure      401 {object} APIResponse
// @Failure      404 {object} APIResponse
// @Router       /jurisdictions/{code}/rates [get]
func (h *RateHandler) ListByJurisdiction(c *gin.Context) {
	if _, ok := requireTenant(c); !ok {
		return
	}

	stateCode := c.Query("state")
	if stateCode == "" {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "state query parameter is required")
		return
	}

	asOf := time.Now().UTC()
	if asOfStr := c.Query("as_of"); asOfStr != "" {
		t, err := time.Parse("2006-01-02", asOfStr)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid 'as_of' date: must be YYYY-MM-DD")
			return
		}
		asOf = t
	}

	jur, err := h.jurisdictions.GetByCode(c.Request.Context(), stateCode, c.Param("code"))
	if err != nil {
		HandleError(c, err)
		return
	}

	list, err := h.catalog.ListByJurisdiction(c.Request.Context(), jur.ID, asOf)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, list)
}
