package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Jurisdiction is a taxing authority in the state → county → city → district
// hierarchy. Code is unique within a state. A state has no parent; other
// types link upward via ParentID. Orphaned rows are tolerated and treated as
// low-confidence data.
type Jurisdiction struct {
	ID        uuid.UUID        `db:"id" json:"id"`
	Code      string           `db:"code" json:"code"`
	Name      string           `db:"name" json:"name"`
	Type      JurisdictionType `db:"jurisdiction_type" json:"jurisdiction_type"`
	StateCode string           `db:"state_code" json:"state_code"`
	ParentID  *uuid.UUID       `db:"parent_id" json:"parent_id"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt time.Time        `db:"updated_at" json:"updated_at"`
}

// ValidateHierarchy checks an imported jurisdiction set for structural
// invariants: states carry no parent, and parent links are acyclic.
// Jurisdictions are indexed by id so the walk terminates without
// reference-counting concerns.
func ValidateHierarchy(jurisdictions []Jurisdiction) error {
	byID := make(map[uuid.UUID]*Jurisdiction, len(jurisdictions))
	for i := range jurisdictions {
		byID[jurisdictions[i].ID] = &jurisdictions[i]
	}
	for i := range jurisdictions {
		j := &jurisdictions[i]
		if j.Type == JurisdictionState && j.ParentID != nil {
			return ErrStateHasParent
		}
		seen := map[uuid.UUID]bool{j.ID: true}
		for cur := j; cur.ParentID != nil; {
			next, ok := byID[*cur.ParentID]
			if !ok {
				break // orphaned parent reference, tolerated
			}
			if seen[next.ID] {
				return ErrJurisdictionCycle
			}
			seen[next.ID] = true
			cur = next
		}
	}
	return nil
}

// UUIDSlice is a jsonb-backed set of jurisdiction ids.
type UUIDSlice []uuid.UUID

// AddressRange maps a street-number span to its governing jurisdictions.
// Rows are immutable once imported and replaced wholesale on re-import.
type AddressRange struct {
	ID              uuid.UUID   `db:"id" json:"id"`
	StateCode       string      `db:"state_code" json:"state_code"`
	CountyCode      string      `db:"county_code" json:"county_code"`
	PreDirectional  string      `db:"pre_directional" json:"pre_directional"`
	StreetName      string      `db:"street_name" json:"street_name"`
	StreetSuffix    string      `db:"street_suffix" json:"street_suffix"`
	PostDirectional string      `db:"post_directional" json:"post_directional"`
	AddressFrom     int         `db:"address_from" json:"address_from"`
	AddressTo       int         `db:"address_to" json:"address_to"`
	Parity          RangeParity `db:"parity" json:"parity"`
	Zip             string      `db:"zip" json:"zip"`
	ZipPlus4        string      `db:"zip_plus4" json:"zip_plus4"`
	StateJurID      *uuid.UUID  `db:"state_jurisdiction_id" json:"state_jurisdiction_id"`
	CountyJurID     *uuid.UUID  `db:"county_jurisdiction_id" json:"county_jurisdiction_id"`
	CityJurID       *uuid.UUID  `db:"city_jurisdiction_id" json:"city_jurisdiction_id"`
	TransitJurID    *uuid.UUID  `db:"transit_jurisdiction_id" json:"transit_jurisdiction_id"`
	SpecialJurIDs   UUIDSlice   `db:"special_jurisdiction_ids" json:"special_jurisdiction_ids"`
	SourceID        string      `db:"source_id" json:"source_id"`
	ImportedAt      time.Time   `db:"imported_at" json:"imported_at"`
}

// Width returns the size of the house-number span, used for the
// narrowest-range tie-break.
func (r *AddressRange) Width() int {
	return r.AddressTo - r.AddressFrom
}

// JurisdictionIDs collects every non-nil jurisdiction reference on the range.
func (r *AddressRange) JurisdictionIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, 4+len(r.SpecialJurIDs))
	for _, p := range []*uuid.UUID{r.StateJurID, r.CountyJurID, r.CityJurID, r.TransitJurID} {
		if p != nil {
			ids = append(ids, *p)
		}
	}
	ids = append(ids, r.SpecialJurIDs...)
	return ids
}

// LearnedPattern is a confidence-scored mapping from a discovered authority
// name to a jurisdiction, reinforced or weakened by repeated lookups.
type LearnedPattern struct {
	ID               uuid.UUID       `db:"id" json:"id"`
	AuthorityName    string          `db:"authority_name" json:"authority_name"`
	AuthorityID      uuid.UUID       `db:"authority_id" json:"authority_id"`
	PatternType      string          `db:"pattern_type" json:"pattern_type"`
	Confidence       decimal.Decimal `db:"confidence" json:"confidence"`
	PatternData      json.RawMessage `db:"pattern_data" json:"pattern_data"`
	ObservationCount int             `db:"observation_count" json:"observation_count"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

// ExternalQueryCacheEntry memoizes one third-party provider response.
// QueryHash is a sha-256 over the normalized query parameters, so
// semantically identical queries collide. An expired entry reads as a miss.
type ExternalQueryCacheEntry struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	Provider  string          `db:"provider" json:"provider"`
	QueryType string          `db:"query_type" json:"query_type"`
	QueryHash string          `db:"query_hash" json:"query_hash"`
	Response  json.RawMessage `db:"response" json:"response"`
	Status    QueryStatus     `db:"status" json:"status"`
	LatencyMS int64           `db:"latency_ms" json:"latency_ms"`
	CalledAt  time.Time       `db:"called_at" json:"called_at"`
	ExpiresAt time.Time       `db:"expires_at" json:"expires_at"`
}

// Expired reports whether the entry is past its TTL at the given instant.
func (e *ExternalQueryCacheEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// TaxRate is a time-bounded, prioritized rate record for one jurisdiction,
// tax category, and service type. The [EffectiveDate, ExpiryDate) window is
// half-open; a nil ExpiryDate means currently active.
type TaxRate struct {
	ID              uuid.UUID        `db:"id" json:"id"`
	JurisdictionID  uuid.UUID        `db:"jurisdiction_id" json:"jurisdiction_id"`
	TaxCategory     string           `db:"tax_category" json:"tax_category"`
	ServiceType     string           `db:"service_type" json:"service_type"`
	TaxType         string           `db:"tax_type" json:"tax_type"`
	TaxName         string           `db:"tax_name" json:"tax_name"`
	RateType        RateType         `db:"rate_type" json:"rate_type"`
	PercentageRate  decimal.Decimal  `db:"percentage_rate" json:"percentage_rate"`
	FixedAmount     decimal.Decimal  `db:"fixed_amount" json:"fixed_amount"`
	MinThreshold    *decimal.Decimal `db:"minimum_threshold" json:"minimum_threshold"`
	MaxAmount       *decimal.Decimal `db:"maximum_amount" json:"maximum_amount"`
	IsCompound      bool             `db:"is_compound" json:"is_compound"`
	IsRecoverable   bool             `db:"is_recoverable" json:"is_recoverable"`
	PerUnit         bool             `db:"per_unit" json:"per_unit"`
	Priority        int              `db:"priority" json:"priority"`
	EffectiveDate   time.Time        `db:"effective_date" json:"effective_date"`
	ExpiryDate      *time.Time       `db:"expiry_date" json:"expiry_date"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`
}

// ActiveAt reports whether asOf falls inside the rate's validity window.
func (r *TaxRate) ActiveAt(asOf time.Time) bool {
	if asOf.Before(r.EffectiveDate) {
		return false
	}
	return r.ExpiryDate == nil || asOf.Before(*r.ExpiryDate)
}

// StringSlice is a jsonb-backed set of strings.
type StringSlice []string

// Contains reports set membership.
func (s StringSlice) Contains(v string) bool {
	for _, item := range s {
		if item == v {
			return true
		}
	}
	return false
}

// ExemptionCondition is one structured predicate on a conditional exemption.
// Field names the line-item attribute; Op is one of eq, ne, gt, gte, lt,
// lte, in, between.
type ExemptionCondition struct {
	Field  string          `json:"field"`
	Op     string          `json:"op"`
	Value  json.RawMessage `json:"value"`
	Values json.RawMessage `json:"values,omitempty"`
}

// TaxExemption reduces the tax computed on matching line items. Any nil
// scope field is a wildcard. Blanket exemptions ignore the applicable_*
// restrictions; conditional exemptions apply proportionally.
type TaxExemption struct {
	ID                 uuid.UUID          `db:"id" json:"id"`
	TenantID           uuid.UUID          `db:"tenant_id" json:"tenant_id"`
	ClientID           *uuid.UUID         `db:"client_id" json:"client_id"`
	JurisdictionID     *uuid.UUID         `db:"jurisdiction_id" json:"jurisdiction_id"`
	TaxCategory        *string            `db:"tax_category" json:"tax_category"`
	ExemptionType      string             `db:"exemption_type" json:"exemption_type"`
	CertificateNumber  string             `db:"certificate_number" json:"certificate_number"`
	CertificateIssuer  string             `db:"certificate_issuer" json:"certificate_issuer"`
	CertificateS3Key   string             `db:"certificate_s3_key" json:"certificate_s3_key"`
	IsBlanket          bool               `db:"is_blanket" json:"is_blanket"`
	ApplicableTaxTypes StringSlice        `db:"applicable_tax_types" json:"applicable_tax_types"`
	ApplicableServices StringSlice        `db:"applicable_services" json:"applicable_services"`
	Conditions         json.RawMessage    `db:"conditions" json:"conditions"`
	ExemptionPct       decimal.Decimal    `db:"exemption_percentage" json:"exemption_percentage"`
	MaxExemptionAmount *decimal.Decimal   `db:"maximum_exemption_amount" json:"maximum_exemption_amount"`
	Status             ExemptionStatus    `db:"status" json:"status"`
	VerificationStatus VerificationStatus `db:"verification_status" json:"verification_status"`
	EffectiveDate      time.Time          `db:"effective_date" json:"effective_date"`
	ExpiryDate         *time.Time         `db:"expiry_date" json:"expiry_date"`
	CreatedAt          time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time          `db:"updated_at" json:"updated_at"`
}

// ActiveAt reports whether the exemption can apply on asOf.
func (e *TaxExemption) ActiveAt(asOf time.Time) bool {
	if e.Status != ExemptionActive {
		return false
	}
	if asOf.Before(e.EffectiveDate) {
		return false
	}
	return e.ExpiryDate == nil || asOf.Before(*e.ExpiryDate)
}

// ScopeSpecificity counts how many scope fields are pinned; used to resolve
// conflicts between blanket exemptions (most specific scope wins).
func (e *TaxExemption) ScopeSpecificity() int {
	n := 0
	if e.ClientID != nil {
		n++
	}
	if e.JurisdictionID != nil {
		n++
	}
	if e.TaxCategory != nil {
		n++
	}
	return n
}

// CalculableRef identifies the billable entity a calculation applies to.
// The kind is a closed enum rather than an open string to keep referential
// integrity checkable at the boundary.
type CalculableRef struct {
	Kind CalculableType `json:"kind"`
	ID   uuid.UUID      `json:"id"`
}

// Validate rejects unknown kinds and zero ids.
func (c CalculableRef) Validate() error {
	if !ValidCalculableTypes[c.Kind] || c.ID == uuid.Nil {
		return ErrInvalidCalculableType
	}
	return nil
}

// ServiceAddress is the raw service-location input to a calculation.
type ServiceAddress struct {
	Street    string `json:"street"`
	City      string `json:"city"`
	StateCode string `json:"state_code"`
	Zip       string `json:"zip"`
	ZipPlus4  string `json:"zip_plus4"`
}

// BreakdownLine is one per-jurisdiction, per-rate entry in a calculation's
// audit breakdown.
type BreakdownLine struct {
	JurisdictionCode string          `json:"jurisdiction_code"`
	TaxName          string          `json:"tax_name"`
	RateApplied      decimal.Decimal `json:"rate_applied"`
	TaxableBase      decimal.Decimal `json:"taxable_base"`
	TaxAmount        decimal.Decimal `json:"tax_amount"`
	IsCompound       bool            `json:"is_compound"`
	ExemptedAmount   decimal.Decimal `json:"exempted_amount"`
}

// AppliedExemption records one exemption application for audit.
type AppliedExemption struct {
	ExemptionID    uuid.UUID       `json:"exemption_id"`
	ExemptionType  string          `json:"exemption_type"`
	IsBlanket      bool            `json:"is_blanket"`
	AmountExempted decimal.Decimal `json:"amount_exempted"`
}

// StatusEvent is one immutable entry in a calculation's append-only history.
type StatusEvent struct {
	From       CalculationStatus `json:"from,omitempty"`
	To         CalculationStatus `json:"to"`
	Actor      string            `json:"actor"`
	Note       string            `json:"note,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// TaxCalculation is the immutable, auditable output of one calculation.
// Amendments always create a new linked record; the superseded record is
// never edited in place.
type TaxCalculation struct {
	ID                uuid.UUID         `db:"id" json:"id"`
	CalculationID     string            `db:"calculation_id" json:"calculation_id"`
	TenantID          uuid.UUID         `db:"tenant_id" json:"tenant_id"`
	CalculableType    CalculableType    `db:"calculable_type" json:"calculable_type"`
	CalculableID      uuid.UUID         `db:"calculable_id" json:"calculable_id"`
	ClientID          uuid.UUID         `db:"client_id" json:"client_id"`
	ServiceType       string            `db:"service_type" json:"service_type"`
	TaxCategory       string            `db:"tax_category" json:"tax_category"`
	BaseAmount        decimal.Decimal   `db:"base_amount" json:"base_amount"`
	Quantity          decimal.Decimal   `db:"quantity" json:"quantity"`
	AsOfDate          time.Time         `db:"as_of_date" json:"as_of_date"`
	Address           json.RawMessage   `db:"address" json:"address"`
	ResolutionMethod  ResolutionMethod  `db:"resolution_method" json:"resolution_method"`
	ResolutionScore   decimal.Decimal   `db:"resolution_confidence" json:"resolution_confidence"`
	ExternalCalls     int               `db:"external_calls" json:"external_calls"`
	JurisdictionIDs   UUIDSlice         `db:"jurisdiction_ids" json:"jurisdiction_ids"`
	Breakdown         json.RawMessage   `db:"tax_breakdown" json:"tax_breakdown"`
	AppliedExemptions json.RawMessage   `db:"applied_exemptions" json:"applied_exemptions"`
	TotalTax          decimal.Decimal   `db:"total_tax_amount" json:"total_tax_amount"`
	FinalAmount       decimal.Decimal   `db:"final_amount" json:"final_amount"`
	EffectiveRate     decimal.Decimal   `db:"effective_tax_rate" json:"effective_tax_rate"`
	NoRateFound       bool              `db:"no_rate_found" json:"no_rate_found"`
	NeedsReview       bool              `db:"needs_review" json:"needs_review"`
	Status            CalculationStatus `db:"status" json:"status"`
	StatusHistory     json.RawMessage   `db:"status_history" json:"status_history"`
	SupersedesID      *uuid.UUID        `db:"supersedes_id" json:"supersedes_id"`
	ValidatedBy       *uuid.UUID        `db:"validated_by" json:"validated_by"`
	ValidatedAt       *time.Time        `db:"validated_at" json:"validated_at"`
	ValidationNotes   string            `db:"validation_notes" json:"validation_notes"`
	CreatedAt         time.Time         `db:"created_at" json:"created_at"`
}

// Calculable returns the tagged billable-entity reference.
func (c *TaxCalculation) Calculable() CalculableRef {
	return CalculableRef{Kind: c.CalculableType, ID: c.CalculableID}
}

// CanTransition enforces the calculation status machine:
// pending → validated | disputed; disputed → pending (human re-run only);
// validated and superseded are terminal.
func (c *TaxCalculation) CanTransition(to CalculationStatus) bool {
	switch c.Status {
	case CalculationPending:
		return to == CalculationValidated || to == CalculationDisputed || to == CalculationSuperseded
	case CalculationDisputed:
		return to == CalculationPending || to == CalculationSuperseded
	default:
		return false
	}
}

// DecodeBreakdown unmarshals the stored breakdown lines.
func (c *TaxCalculation) DecodeBreakdown() ([]BreakdownLine, error) {
	var lines []BreakdownLine
	if len(c.Breakdown) == 0 {
		return lines, nil
	}
	if err := json.Unmarshal(c.Breakdown, &lines); err != nil {
		return nil, err
	}
	return lines, nil
}

// DecodeStatusHistory unmarshals the append-only status event log.
func (c *TaxCalculation) DecodeStatusHistory() ([]StatusEvent, error) {
	var events []StatusEvent
	if len(c.StatusHistory) == 0 {
		return events, nil
	}
	if err := json.Unmarshal(c.StatusHistory, &events); err != nil {
		return nil, err
	}
	return events, nil
}
