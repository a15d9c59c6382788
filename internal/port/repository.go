package port

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"taxatlas/internal/domain"
)

// JurisdictionRepository defines the contract for the jurisdiction directory.
type JurisdictionRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Jurisdiction, error)
	GetByCode(ctx context.Context, stateCode, code string) (*domain.Jurisdiction, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Jurisdiction, error)
	ListByState(ctx context.Context, stateCode string) ([]domain.Jurisdiction, error)
	StateByCode(ctx context.Context, stateCode string) (*domain.Jurisdiction, error)
}

// AddressRangeRepository defines the contract for the address range index.
// FindCandidates performs the hot-path range query; the backing store must
// index (state_code, zip, street_name, address_from, address_to).
type AddressRangeRepository interface {
	FindCandidates(ctx context.Context, stateCode, zip, streetName string, houseNumber int) ([]domain.AddressRange, error)
	ReplaceSource(ctx context.Context, sourceID string, ranges []domain.AddressRange) error
}

// PatternCriteria filters BestMatch queries on the learned-pattern cache.
type PatternCriteria struct {
	AuthorityName string
	PatternType   string
	MinConfidence decimal.Decimal
}

// PatternRepository defines the contract for learned jurisdiction patterns.
// AdjustConfidence must be an atomic read-modify-write; lost updates degrade
// resolver accuracy silently.
type PatternRepository interface {
	Create(ctx context.Context, p *domain.LearnedPattern) error
	GetByAuthority(ctx context.Context, authorityName string, authorityID uuid.UUID) (*domain.LearnedPattern, error)
	BestMatch(ctx context.Context, criteria PatternCriteria) (*domain.LearnedPattern, error)
	AdjustConfidence(ctx context.Context, authorityName string, authorityID uuid.UUID, outcome, alpha decimal.Decimal) (*domain.LearnedPattern, error)
}

// QueryCacheRepository defines the contract for the external lookup cache.
// Upsert is last-writer-wins on the (provider, query_type, query_hash) key.
type QueryCacheRepository interface {
	Get(ctx context.Context, provider, queryType, queryHash string) (*domain.ExternalQueryCacheEntry, error)
	Upsert(ctx context.Context, entry *domain.ExternalQueryCacheEntry) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// RateRepository defines the read-only contract for the rate catalog.
type RateRepository interface {
	ListActive(ctx context.Context, jurisdictionIDs []uuid.UUID, serviceType, taxCategory string, asOf time.Time) ([]domain.TaxRate, error)
	ListByJurisdiction(ctx context.Context, jurisdictionID uuid.UUID, asOf time.Time) ([]domain.TaxRate, error)
}

// ExemptionRepository defines the contract for tax exemption persistence.
// All query methods include tenantID for tenant isolation.
type ExemptionRepository interface {
	Create(ctx context.Context, e *domain.TaxExemption) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.TaxExemption, error)
	ListCandidates(ctx context.Context, tenantID uuid.UUID, clientID uuid.UUID, jurisdictionIDs []uuid.UUID, taxCategory string, asOf time.Time) ([]domain.TaxExemption, error)
	ListByClient(ctx context.Context, tenantID, clientID uuid.UUID, offset, limit int) ([]domain.TaxExemption, int, error)
	UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, status domain.ExemptionStatus) error
	ExpireOutdated(ctx context.Context, asOf time.Time) (int64, error)
}

// CalculationListFilter narrows List queries on calculations.
type CalculationListFilter struct {
	Status      domain.CalculationStatus
	ClientID    *uuid.UUID
	NeedsReview *bool
}

// CalculationRepository defines the contract for calculation persistence.
// Calculations are append-only: Create inserts, UpdateStatus mutates only
// the status fields and the append-only history, MarkSuperseded links an
// amendment. Row content is never rewritten.
type CalculationRepository interface {
	Create(ctx context.Context, calc *domain.TaxCalculation) error
	GetByCalculationID(ctx context.Context, tenantID uuid.UUID, calculationID string) (*domain.TaxCalculation, error)
	List(ctx context.Context, tenantID uuid.UUID, filter CalculationListFilter, offset, limit int) ([]domain.TaxCalculation, int, error)
	UpdateStatus(ctx context.Context, calc *domain.TaxCalculation) error
	MarkSuperseded(ctx context.Context, tenantID uuid.UUID, calculationID string, successorID string) error
}
