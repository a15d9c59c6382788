package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"taxatlas/internal/domain"
	"taxatlas/internal/middleware"
)

// APIResponse is the standard envelope for all API responses.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *PagMeta    `json:"meta,omitempty"`
}

// APIError holds error details in the response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PagMeta holds pagination metadata.
type PagMeta struct {
	Total  int `json:"total"`
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// RespondOK sends a 200 success response.
func RespondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data})
}

// RespondCreated sends a 201 success response.
func RespondCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, APIResponse{Success: true, Data: data})
}

// RespondPaginated sends a 200 success response with pagination metadata.
func RespondPaginated(c *gin.Context, data interface{}, meta PagMeta) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data, Meta: &meta})
}

// RespondError sends an error response with the given status code.
func RespondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: msg},
	})
}

// MapDomainError translates domain errors to HTTP status codes and error codes.
func MapDomainError(err error) (status int, code, msg string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "resource not found"
	case errors.Is(err, domain.ErrInvalidAmount):
		return http.StatusBadRequest, "INVALID_AMOUNT", "base amount must be non-negative"
	case errors.Is(err, domain.ErrInvalidQuantity):
		return http.StatusBadRequest, "INVALID_QUANTITY", "quantity must be positive"
	case errors.Is(err, domain.ErrMissingAddressField):
		return http.StatusBadRequest, "MISSING_ADDRESS_FIELD", "service address is missing a required field"
	case errors.Is(err, domain.ErrInvalidCalculableType):
		return http.StatusBadRequest, "INVALID_CALCULABLE_TYPE", "calculable type must be one of invoice_line, quote_line, contract_charge, ticket_charge"
	case errors.Is(err, domain.ErrInvalidStatusTransition):
		return http.StatusConflict, "INVALID_STATUS_TRANSITION", "calculation status does not allow this action"
	case errors.Is(err, domain.ErrCalculationSuperseded):
		return http.StatusConflict, "CALCULATION_SUPERSEDED", "calculation has been superseded by a newer one"
	case errors.Is(err, domain.ErrExemptionRevoked):
		return http.StatusConflict, "EXEMPTION_REVOKED", "exemption has already been revoked"
	case errors.Is(err, domain.ErrUnsupportedCertFileType):
		return http.StatusBadRequest, "UNSUPPORTED_FILE_TYPE", "unsupported certificate file type; allowed: pdf, jpg, png"
	case errors.Is(err, domain.ErrUploadFailed):
		return http.StatusInternalServerError, "UPLOAD_FAILED", "certificate upload to storage failed"
	case errors.Is(err, domain.ErrInvalidAddressRange):
		return http.StatusBadRequest, "INVALID_ADDRESS_RANGE", "address range bounds are inverted"
	case errors.Is(err, domain.ErrJurisdictionCycle):
		return http.StatusBadRequest, "JURISDICTION_CYCLE", "jurisdiction hierarchy contains a cycle"
	case errors.Is(err, domain.ErrStateHasParent):
		return http.StatusBadRequest, "STATE_HAS_PARENT", "state jurisdictions cannot have a parent"
	case errors.Is(err, domain.ErrDuplicatePattern):
		return http.StatusConflict, "DUPLICATE_PATTERN", "a pattern for this authority pair already exists"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred"
	}
}

// requireTenant extracts the tenant ID from the request context.
// Returns false if tenant context is missing (error response already written).
func requireTenant(c *gin.Context) (uuid.UUID, bool) {
	tenantID, err := middleware.GetTenantID(c)
	if err != nil {
		RespondError(c, http.StatusUnauthorized, "MISSING_TENANT", "tenant context required")
		return uuid.Nil, false
	}
	return tenantID, true
}

// HandleError maps a domain error and sends the appropriate error response.
func HandleError(c *gin.Context, err error) {
	status, code, msg := MapDomainError(err)
	if status >= 500 {
		requestID, _ := c.Get("request_id")
		log.Printf("[%s] internal error: %v", requestID, err)
	}
	RespondError(c, status, code, msg)
}
