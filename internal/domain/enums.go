package domain

// JurisdictionType classifies a taxing authority within the hierarchy.
type JurisdictionType string

const (
	JurisdictionState   JurisdictionType = "state"
	JurisdictionCounty  JurisdictionType = "county"
	JurisdictionCity    JurisdictionType = "city"
	JurisdictionTransit JurisdictionType = "transit"
	JurisdictionSpecial JurisdictionType = "special"
)

// ValidJurisdictionTypes is the closed set accepted on import.
var ValidJurisdictionTypes = map[JurisdictionType]bool{
	JurisdictionState:   true,
	JurisdictionCounty:  true,
	JurisdictionCity:    true,
	JurisdictionTransit: true,
	JurisdictionSpecial: true,
}

// RangeParity restricts an address range to even, odd, or all house numbers.
type RangeParity string

const (
	ParityEven RangeParity = "even"
	ParityOdd  RangeParity = "odd"
	ParityBoth RangeParity = "both"
)

// Matches reports whether a house number satisfies the parity constraint.
func (p RangeParity) Matches(number int) bool {
	switch p {
	case ParityEven:
		return number%2 == 0
	case ParityOdd:
		return number%2 != 0
	default:
		return true
	}
}

// RateType defines how a tax rate computes its line amount.
type RateType string

const (
	RatePercentage RateType = "percentage"
	RateFixed      RateType = "fixed"
	RateTiered     RateType = "tiered"
)

// QueryStatus records the outcome of an external provider call.
type QueryStatus string

const (
	QuerySuccess     QueryStatus = "success"
	QueryError       QueryStatus = "error"
	QueryRateLimited QueryStatus = "rate_limited"
)

// ExemptionStatus is the lifecycle state of a tax exemption certificate.
type ExemptionStatus string

const (
	ExemptionActive  ExemptionStatus = "active"
	ExemptionExpired ExemptionStatus = "expired"
	ExemptionRevoked ExemptionStatus = "revoked"
)

// VerificationStatus tracks external certificate verification.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationRejected VerificationStatus = "rejected"
)

// CalculationStatus is the state of a tax calculation record.
type CalculationStatus string

const (
	CalculationPending    CalculationStatus = "pending"
	CalculationValidated  CalculationStatus = "validated"
	CalculationDisputed   CalculationStatus = "disputed"
	CalculationSuperseded CalculationStatus = "superseded"
)

// ResolutionMethod tags how the service address was resolved to jurisdictions.
type ResolutionMethod string

const (
	ResolutionExact      ResolutionMethod = "exact"
	ResolutionLearned    ResolutionMethod = "learned"
	ResolutionExternal   ResolutionMethod = "external"
	ResolutionUnresolved ResolutionMethod = "unresolved"
)

// CalculableType enumerates the billable entity kinds a calculation can apply to.
type CalculableType string

const (
	CalculableInvoiceLine    CalculableType = "invoice_line"
	CalculableQuoteLine      CalculableType = "quote_line"
	CalculableContractCharge CalculableType = "contract_charge"
	CalculableTicketCharge   CalculableType = "ticket_charge"
)

// ValidCalculableTypes is the closed set accepted on calculation requests.
var ValidCalculableTypes = map[CalculableType]bool{
	CalculableInvoiceLine:    true,
	CalculableQuoteLine:      true,
	CalculableContractCharge: true,
	CalculableTicketCharge:   true,
}

// PatternTypeDiscovered marks patterns learned from external lookups.
const PatternTypeDiscovered = "discovered"
