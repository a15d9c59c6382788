package handler

// Swagger type definitions for API documentation.
// These types are used by swag to generate OpenAPI documentation.

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status string `json:"status" example:"ok"`
	Error  string `json:"error,omitempty" example:"database not reachable"`
}

// RevokeResponse represents the exemption revocation response.
type RevokeResponse struct {
	Revoked bool `json:"revoked" example:"true"`
}

// ErrorResponseBody wraps an error response.
type ErrorResponseBody struct {
	Success bool      `json:"success" example:"false"`
	Error   *APIError `json:"error"`
}

// --- Documented request shapes ---

// ServiceAddressRequest documents the service address fields on a
// calculation request.
type ServiceAddressRequest struct {
	Street string `json:"street" binding:"required" example:"123 N Main St Apt 4"`
	City   string `json:"city" example:"Springfield"`
	State  string `json:"state" binding:"required" example:"IL"`
	Zip    string `json:"zip" binding:"required" example:"62704"`
	Zip4   string `json:"zip4" example:"1234"`
}

// BreakdownLineResponse documents a single tax line in a calculation.
type BreakdownLineResponse struct {
	JurisdictionCode string `json:"jurisdiction_code" example:"IL-SPRINGFIELD"`
	TaxName          string `json:"tax_name" example:"City Sales Tax"`
	RateApplied      string `json:"rate_applied" example:"0.0225"`
	TaxableBase      string `json:"taxable_base" example:"100.00"`
	TaxAmount        string `json:"tax_amount" example:"2.25"`
	IsCompound       bool   `json:"is_compound" example:"false"`
	ExemptedAmount   string `json:"exempted_amount" example:"0.00"`
}
