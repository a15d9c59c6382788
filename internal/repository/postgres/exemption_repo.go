package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"taxatlas/internal/domain"
	"taxatlas/internal/port"
)

type exemptionRepo struct {
	db *sqlx.DB
}

// NewExemptionRepo creates a new PostgreSQL-backed ExemptionRepository.
func NewExemptionRepo(db *sqlx.DB) port.ExemptionRepository {
	return &exemptionRepo{db: db}
}

func (r *exemptionRepo) Create(ctx context.Context, e *domain.TaxExemption) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now

	_, err := r.db.NamedExecContext(ctx,
		`INSERT INTO tax_exemptions (
			id, tenant_id, client_id, jurisdiction_id, tax_category, exemption_type,
			certificate_number, certificate_issuer, certificate_s3_key, is_blanket,
			applicable_tax_types, applicable_services, conditions, exemption_percentage,
			maximum_exemption_amount, status, verification_status, effective_date,
			expiry_date, created_at, updated_at
		) VALUES (
			:id, :tenant_id, :client_id, :jurisdiction_id, :tax_category, :exemption_type,
			:certificate_number, :certificate_issuer, :certificate_s3_key, :is_blanket,
			:applicable_tax_types, :applicable_services, :conditions, :exemption_percentage,
			:maximum_exemption_amount, :status, :verification_status, :effective_date,
			:expiry_date, :created_at, :updated_at
		)`, e)
	if err != nil {
		return fmt.Errorf("exemptionRepo.Create: %w", err)
	}
	return nil
}

func (r *exemptionRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.TaxExemption, error) {
	var e domain.TaxExemption
	err := r.db.GetContext(ctx, &e,
		"SELECT * FROM tax_exemptions WHERE tenant_id = $1 AND id = $2", tenantID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("exemptionRepo.GetByID: %w", err)
	}
	return &e, nil
}

// ListCandidates pre-filters on scope (null = wildcard), status, and date
// window; the evaluator applies conditional gating in memory.
func (r *exemptionRepo) ListCandidates(ctx context.Context, tenantID uuid.UUID, clientID uuid.UUID, jurisdictionIDs []uuid.UUID, taxCategory string, asOf time.Time) ([]domain.TaxExemption, error) {
	query := `SELECT * FROM tax_exemptions
		 WHERE tenant_id = ?
		   AND status = 'active'
		   AND (client_id IS NULL OR client_id = ?)
		   AND (tax_category IS NULL OR tax_category = ?)
		   AND effective_date <= ?
		   AND (expiry_date IS NULL OR expiry_date > ?)`
	args := []interface{}{tenantID, clientID, taxCategory, asOf, asOf}
	if len(jurisdictionIDs) > 0 {
		query += " AND (jurisdiction_id IS NULL OR jurisdiction_id IN (?))"
		args = append(args, jurisdictionIDs)
	} else {
		query += " AND jurisdiction_id IS NULL"
	}

	query, inArgs, err := sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("exemptionRepo.ListCandidates: %w", err)
	}
	var exemptions []domain.TaxExemption
	if err := r.db.SelectContext(ctx, &exemptions, r.db.Rebind(query), inArgs...); err != nil {
		return nil, fmt.Errorf("exemptionRepo.ListCandidates: %w", err)
	}
	return exemptions, nil
}

func (r *exemptionRepo) ListByClient(ctx context.Context, tenantID, clientID uuid.UUID, offset, limit int) ([]domain.TaxExemption, int, error) {
	var total int
	err := r.db.GetContext(ctx, &total,
		"SELECT COUNT(*) FROM tax_exemptions WHERE tenant_id = $1 AND client_id = $2",
		tenantID, clientID)
	if err != nil {
		return nil, 0, fmt.Errorf("exemptionRepo.ListByClient count: %w", err)
	}

	var exemptions []domain.TaxExemption
	err = r.db.SelectContext(ctx, &exemptions,
		`SELECT * FROM tax_exemptions
		 WHERE tenant_id = $1 AND client_id = $2
		 ORDER BY created_at DESC LIMIT $3 OFFSET $4`,
		tenantID, clientID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("exemptionRepo.ListByClient: %w", err)
	}
	return exemptions, total, nil
}

func (r *exemptionRepo) UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, status domain.ExemptionStatus) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE tax_exemptions SET status = $1, updated_at = NOW()
		 WHERE tenant_id = $2 AND id = $3`,
		status, tenantID, id)
	if err != nil {
		return fmt.Errorf("exemptionRepo.UpdateStatus: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ExpireOutdated flips active exemptions past their expiry date; run
// periodically by the exemption service.
func (r *exemptionRepo) ExpireOutdated(ctx context.Context, asOf time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE tax_exemptions SET status = 'expired', updated_at = NOW()
		 WHERE status = 'active' AND expiry_date IS NOT NULL AND expiry_date <= $1`,
		asOf)
	if err != nil {
		return 0, fmt.Errorf("exemptionRepo.ExpireOutdated: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}
