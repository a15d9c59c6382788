package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"taxatlas/internal/domain"
	"taxatlas/internal/port"
)

type rateRepo struct {
	db *sqlx.DB
}

// NewRateRepo creates a new PostgreSQL-backed RateRepository.
func NewRateRepo(db *sqlx.DB) port.RateRepository {
	return &rateRepo{db: db}
}

// ListActive returns rates whose half-open [effective_date, expiry_date)
// window contains asOf for the resolved jurisdiction set. Ordering beyond
// the rough priority sort is the catalog's concern.
func (r *rateRepo) ListActive(ctx context.Context, jurisdictionIDs []uuid.UUID, serviceType, taxCategory string, asOf time.Time) ([]domain.TaxRate, error) {
	if len(jurisdictionIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(
		`SELECT * FROM tax_rates
		 WHERE jurisdiction_id IN (?)
		   AND service_type = ? AND tax_category = ?
		   AND effective_date <= ?
		   AND (expiry_date IS NULL OR expiry_date > ?)
		 ORDER BY priority`,
		jurisdictionIDs, serviceType, taxCategory, asOf, asOf)
	if err != nil {
		return nil, fmt.Errorf("rateRepo.ListActive: %w", err)
	}
	var rates []domain.TaxRate
	if err := r.db.SelectContext(ctx, &rates, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("rateRepo.ListActive: %w", err)
	}
	return rates, nil
}

func (r *rateRepo) ListByJurisdiction(ctx context.Context, jurisdictionID uuid.UUID, asOf time.Time) ([]domain.TaxRate, error) {
	var rates []domain.TaxRate
	err := r.db.SelectContext(ctx, &rates,
		`SELECT * FROM tax_rates
		 WHERE jurisdiction_id = $1
		   AND effective_date <= $2
		   AND (expiry_date IS NULL OR expiry_date > $2)
		 ORDER BY priority, tax_name`,
		jurisdictionID, asOf)
	if err != nil {
		return nil, fmt.Errorf("rateRepo.ListByJurisdiction: %w", err)
	}
	return rates, nil
}
