package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"taxatlas/internal/csvexport"
	"taxatlas/internal/domain"
	"taxatlas/internal/port"
	"taxatlas/internal/service"
)

// CalculationHandler handles calculation endpoints.
type CalculationHandler struct {
	calcService service.CalculationService
}

// NewCalculationHandler creates a new CalculationHandler.
func NewCalculationHandler(calcService service.CalculationService) *CalculationHandler {
	return &CalculationHandler{calcService: calcService}
}

// validCalcStatuses defines the allowed status filter values.
var validCalcStatuses = map[string]bool{
	"pending":    true,
	"validated":  true,
	"disputed":   true,
	"superseded": true,
}

// parseCalculationFilters extracts list filter parameters from query params.
func parseCalculationFilters(c *gin.Context) (port.CalculationListFilter, int, int, error) {
	var filter port.CalculationListFilter
	offset, limit := 0, 20

	if status := c.Query("status"); status != "" {
		if !validCalcStatuses[status] {
			return filter, 0, 0, fmt.Errorf("invalid 'status': must be one of pending, validated, disputed, superseded")
		}
		filter.Status = domain.CalculationStatus(status)
	}
	if cidStr := c.Query("client_id"); cidStr != "" {
		cid, err := uuid.Parse(cidStr)
		if err != nil {
			return filter, 0, 0, fmt.Errorf("invalid 'client_id': must be a valid UUID")
		}
		filter.ClientID = &cid
	}
	if nrStr := c.Query("needs_review"); nrStr != "" {
		nr, err := strconv.ParseBool(nrStr)
		if err != nil {
			return filter, 0, 0, fmt.Errorf("invalid 'needs_review': must be a boolean")
		}
		filter.NeedsReview = &nr
	}
	if offsetStr := c.Query("offset"); offsetStr != "" {
		v, err := strconv.Atoi(offsetStr)
		if err != nil || v < 0 {
			return filter, 0, 0, fmt.Errorf("invalid 'offset': must be a non-negative integer")
		}
		offset = v
	}
	if limitStr := c.Query("limit"); limitStr != "" {
		v, err := strconv.Atoi(limitStr)
		if err != nil || v < 1 || v > 200 {
			return filter, 0, 0, fmt.Errorf("invalid 'limit': must be between 1 and 200")
		}
		limit = v
	}

	return filter, offset, limit, nil
}

// Create handles POST /api/v1/calculations
// @Summary      Calculate tax
// @Description  Resolves jurisdictions for the service address, applies rates and exemptions, and persists an auditable calculation
// @Tags         calculations
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant UUID"
// @Param        body body service.CalculateInput true "Calculation request"
// @Success      201 {object} APIResponse{data=domain.TaxCalculation}
// @Failure      400 {object} APIResponse
// @Failure      401 {object} APIResponse
// @Failure      500 {object} APIResponse
// @Router       /calculations [post]
func (h *CalculationHandler) Create(c *gin.Context) {
	tenantID, ok := requireTenant(c)
	if !ok {
		return
	}

	var input service.CalculateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	calc, err := h.calcService.Calculate(c.Request.Context(), tenantID, input)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondCreated(c, calc)
}

// List handles GET /api/v1/calculations
// @Summary      List calculations
// @Description  Lists calculations for the tenant with optional status, client, and review filters
// @Tags         calculations
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant UUID"
// @Param        status query string false "Status filter" Enums(pending, validated, disputed, superseded)
// @Param        client_id query string false "Client UUID"
// @Param        needs_review query bool false "Review-flag filter"
// @Param        offset query int false "Pagination offset" default(0)
// @Param        limit query int false "Pagination limit" default(20)
// @Success      200 {object} APIResponse{data=[]domain.TaxCalculation,meta=PagMeta}
// @Failure      400 {object} APIResponse
// @Failure      401 {object} APIResponse
// @Failure      500 {object} APIResponse
// @Router       /calculations [get]
func (h *CalculationHandler) List(c *gin.Context) {
	tenantID, ok := requireTenant(c)
	if !ok {
		return
	}

	filter, offset, limit, err := parseCalculationFilters(c)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	calcs, total, err := h.calcService.List(c.Request.Context(), tenantID, filter, offset, limit)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondPaginated(c, calcs, PagMeta{Total: total, Offset: offset, Limit: limit})
}

// Get handles GET /api/v1/calculations/:id
// @Summary      Get a calculation
// @Description  Fetches a single calculation by its public calculation id
// @Tags         calculations
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant UUID"
// @Param        id path string true "Calculation ID (calc_<uuid>)"
// @Success      200 {object} APIResponse{data=domain.TaxCalculation}
// @Failure      401 {object} APIResponse
// @Failure      404 {object} APIResponse
// @Failure      500 {object} APIResponse
// @Router       /calculations/{id} [get]
func (h *CalculationHandler) Get(c *gin.Context) {
	tenantID, ok := requireTenant(c)
	if !ok {
		return
	}

	calc, err := h.calcService.GetByID(c.Request.Context(), tenantID, c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, calc)
}

// Validate handles POST /api/v1/calculations/:id/validate
// @Summary      Validate a calculation
// @Description  Records human sign-off, clears the review flag, and appends to the status history
// @Tags         calculations
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant UUID"
// @Param        id path string true "Calculation ID"
// @Param        body body service.ReviewInput true "Reviewer and notes"
// @Success      200 {object} APIResponse{data=domain.TaxCalculation}
// @Failure      400 {object} APIResponse
// @Failure      401 {object} APIResponse
// @Failure      404 {object} APIResponse
// @Failure      409 {object} APIResponse
// @Router       /calculations/{id}/validate [post]
func (h *CalculationHandler) Validate(c *gin.Context) {
	h.review(c, h.calcService.Validate)
}

// Dispute handles POST /api/v1/calculations/:id/dispute
// @Summary      Dispute a calculation
// @Description  Marks a calculation as disputed pending recalculation
// @Tags         calculations
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant UUID"
// @Param        id path string true "Calculation ID"
// @Param        body body service.ReviewInput true "Reviewer and notes"
// @Success      200 {object} APIResponse{data=domain.TaxCalculation}
// @Failure      400 {object} APIResponse
// @Failure      401 {object} APIResponse
// @Failure      404 {object} APIResponse
// @Failure      409 {object} APIResponse
// @Router       /calculations/{id}/dispute [post]
func (h *CalculationHandler) Dispute(c *gin.Context) {
	h.review(c, h.calcService.Dispute)
}

// review factors the shared bind-and-transition flow of Validate and Dispute.
func (h *CalculationHandler) review(c *gin.Context, action func(ctx context.Context, tenantID uuid.UUID, calculationID string, input service.ReviewInput) (*domain.TaxCalculation, error)) {
	tenantID, ok := requireTenant(c)
	if !ok {
		return
	}

	var input service.ReviewInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	calc, err := action(c.Request.Context(), tenantID, c.Param("id"), input)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, calc)
}

// Recalculate handles POST /api/v1/calculations/:id/recalculate
// @Summary      Recalculate
// @Description  Supersedes a calculation with a fresh one computed from current reference data
// @Tags         calculations
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant UUID"
// @Param        id path string true "Calculation ID"
// @Success      201 {object} APIResponse{data=domain.TaxCalculation}
// @Failure      401 {object} APIResponse
// @Failure      404 {object} APIResponse
// @Failure      409 {object} APIResponse
// @Router       /calculations/{id}/recalculate [post]
func (h *CalculationHandler) Recalculate(c *gin.Context) {
	tenantID, ok := requireTenant(c)
	if !ok {
		return
	}

	calc, err := h.calcService.Recalculate(c.Request.Context(), tenantID, c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondCreated(c, calc)
}

// Export handles GET /api/v1/calculations/export
// @Summary      Export calculations as CSV
// @Description  Streams calculations matching the list filters as CSV, one row per breakdown line
// @Tags         calculations
// @Produce      text/csv
// @Param        X-Tenant-ID header string true "Tenant UUID"
// @Param        status query string false "Status filter" Enums(pending, validated, disputed, superseded)
// @Param        client_id query string false "Client UUID"
// @Param        needs_review query bool false "Review-flag filter"
// @Success      200 {string} string "CSV file"
// @Failure      400 {object} APIResponse
// @Failure      401 {object} APIResponse
// @Failure      500 {object} APIResponse
// @Router       /calculations/export [get]
func (h *CalculationHandler) Export(c *gin.Context) {
	tenantID, ok := requireTenant(c)
	if !ok {
		return
	}

	filter, _, _, err := parseCalculationFilters(c)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	// Export is filter-bound, not page-bound.
	calcs, _, err := h.calcService.List(c.Request.Context(), tenantID, filter, 0, exportBatchLimit)
	if err != nil {
		HandleError(c, err)
		return
	}

	filename := csvexport.BuildFilename("calculations")
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))

	if _, err := c.Writer.Write(csvexport.BOM); err != nil {
		return
	}
	w := csvexport.NewWriter(c.Writer)
	if err := w.WriteHeader(); err != nil {
		return
	}
	if err := w.WriteCalculations(calcs); err != nil {
		return
	}
	w.Flush()
}

// exportBatchLimit caps a single CSV export.
const exportBatchLimit = 10000
