package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"taxatlas/internal/service"
)

// maxCertificateSize caps uploaded certificate documents at 10MB.
const maxCertificateSize = 10 << 20

// ExemptionHandler handles exemption intake and lifecycle endpoints.
type ExemptionHandler struct {
	exemptionService service.ExemptionService
}

// NewExemptionHandler creates a new ExemptionHandler.
func NewExemptionHandler(exemptionService service.ExemptionService) *ExemptionHandler {
	return &ExemptionHandler{exemptionService: exemptionService}
}

// Create handles POST /api/v1/exemptions
// @Summary      Register an exemption
// @Description  Registers an exemption certificate. Accepts plain JSON, or multipart/form-data with a "metadata" JSON field and an optional "certificate" file (PDF, JPG, PNG, max 10MB)
// @Tags         exemptions
// @Accept       json
// @Accept       multipart/form-data
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant UUID"
// @Success      201 {object} APIResponse{data=domain.TaxExemption}
// @Failure      400 {object} APIResponse
// @Failure      401 {object} APIResponse
// @Failure      500 {object} APIResponse
// @Router       /exemptions [post]
func (h *ExemptionHandler) Create(c *gin.Context) {
	tenantID, ok := requireTenant(c)
	if !ok {
		return
	}

	var input service.CreateExemptionInput
	var cert *service.CertificateUpload

	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		metadata := c.PostForm("metadata")
		if metadata == "" {
			RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "metadata form field is required")
			return
		}
		if err := json.Unmarshal([]byte(metadata), &input); err != nil {
			RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "metadata is not valid JSON: "+err.Error())
			return
		}

		file, header, err := c.Request.FormFile("certificate")
		if err == nil {
			defer func() { _ = file.Close() }()
			if header.Size > maxCertificateSize {
				RespondError(c, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "certificate exceeds maximum allowed size")
				return
			}
			cert = &service.CertificateUpload{
				Body:        file,
				ContentType: header.Header.Get("Content-Type"),
				Size:        header.Size,
			}
		}
	} else {
		if err := c.ShouldBindJSON(&input); err != nil {
			RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
			return
		}
	}

	if input.ExemptionType == "" || input.CertificateNumber == "" || input.EffectiveDate.IsZero() {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "exemption_type, certificate_number, and effective_date are required")
		return
	}

	e, err := h.exemptionService.Create(c.Request.Context(), tenantID, input, cert)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondCreated(c, e)
}

// List handles GET /api/v1/exemptions
// @Summary      List exemptions for a client
// @Description  Lists exemptions registered for a client, newest first
// @Tags         exemptions
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant UUID"
// @Param        client_id query string true "Client UUID"
// @Param        offset query int false "Pagination offset" default(0)
// @Param        limit query int false "Pagination limit" default(20)
// @Success      200 {object} APIResponse{data=[]domain.TaxExemption,meta=PagMeta}
// @Failure      400 {object} APIResponse
// @Failure      401 {object} APIResponse
// @Failure      500 {object} APIResponse
// @Router       /exemptions [get]
func (h *ExemptionHandler) List(c *gin.Context) {
	tenantID, ok := requireTenant(c)
	if !ok {
		return
	}

	clientIDStr := c.Query("client_id")
	if clientIDStr == "" {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "client_id query parameter is required")
		return
	}
	clientID, err := uuid.Parse(clientIDStr)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid 'client_id': must be a valid UUID")
		return
	}

	offset, limit := 0, 20
	if offsetStr := c.Query("offset"); offsetStr != "" {
		v, err := strconv.Atoi(offsetStr)
		if err != nil || v < 0 {
			RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid 'offset': must be a non-negative integer")
			return
		}
		offset = v
	}
	if limitStr := c.Query("limit"); limitStr != "" {
		v, err := strconv.Atoi(limitStr)
		if err != nil || v < 1 || v > 200 {
			RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid 'limit': must be between 1 and 200")
			return
		}
		limit = v
	}

	exemptions, total, err := h.exemptionService.ListByClient(c.Request.Context(), tenantID, clientID, offset, limit)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondPaginated(c, exemptions, PagMeta{Total: total, Offset: offset, Limit: limit})
}

// Revoke handles POST /api/v1/exemptions/:id/revoke
// @Summary      Revoke an exemption
// @Description  Permanently revokes an exemption so it no longer applies to calculations
// @Tags         exemptions
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant UUID"
// @Param        id path string true "Exemption UUID"
// @Success      200 {object} APIResponse
// @Failure      400 {object} APIResponse
// @Failure      401 {object} APIResponse
// @Failure      404 {object} APIResponse
// @Failure      409 {object} APIResponse
// @Router       /exemptions/{id}/revoke [post]
func (h *ExemptionHandler) Revoke(c *gin.Context) {
	tenantID, ok := requireTenant(c)
	if !ok {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid exemption id: must be a valid UUID")
		return
	}

	if err := h.exemptionService.Revoke(c.Request.Context(), tenantID, id); err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, gin.H{"revoked": true})
}
