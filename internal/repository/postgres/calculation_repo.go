package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"taxatlas/internal/domain"
	"taxatlas/internal/port"
)

type calculationRepo struct {
	db *sqlx.DB
}

// NewCalculationRepo creates a new PostgreSQL-backed CalculationRepository.
func NewCalculationRepo(db *sqlx.DB) port.CalculationRepository {
	return &calculationRepo{db: db}
}

func (r *calculationRepo) Create(ctx context.Context, calc *domain.TaxCalculation) error {
	_, err := r.db.NamedExecContext(ctx,
		`INSERT INTO tax_calculations (
			id, calculation_id, tenant_id, calculable_type, calculable_id, client_id,
			service_type, tax_category, base_amount, quantity, as_of_date, address,
			resolution_method, resolution_confidence, external_calls, jurisdiction_ids,
			tax_breakdown, applied_exemptions, total_tax_amount, final_amount,
			effective_tax_rate, no_rate_found, needs_review, status, status_history,
			supersedes_id, validated_by, validated_at, validation_notes, created_at
		) VALUES (
			:id, :calculation_id, :tenant_id, :calculable_type, :calculable_id, :client_id,
			:service_type, :tax_category, :base_amount, :quantity, :as_of_date, :address,
			:resolution_method, :resolution_confidence, :external_calls, :jurisdiction_ids,
			:tax_breakdown, :applied_exemptions, :total_tax_amount, :final_amount,
			:effective_tax_rate, :no_rate_found, :needs_review, :status, :status_history,
			:supersedes_id, :validated_by, :validated_at, :validation_notes, :created_at
		)`, calc)
	if err != nil {
		return fmt.Errorf("calculationRepo.Create: %w", err)
	}
	return nil
}

func (r *calculationRepo) GetByCalculationID(ctx context.Context, tenantID uuid.UUID, calculationID string) (*domain.TaxCalculation, error) {
	var calc domain.TaxCalculation
	err := r.db.GetContext(ctx, &calc,
		"SELECT * FROM tax_calculations WHERE tenant_id = $1 AND calculation_id = $2",
		tenantID, calculationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("calculationRepo.GetByCalculationID: %w", err)
	}
	return &calc, nil
}

func (r *calculationRepo) List(ctx context.Context, tenantID uuid.UUID, filter port.CalculationListFilter, offset, limit int) ([]domain.TaxCalculation, int, error) {
	where := "WHERE tenant_id = $1"
	args := []interface{}{tenantID}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.ClientID != nil {
		args = append(args, *filter.ClientID)
		where += fmt.Sprintf(" AND client_id = $%d", len(args))
	}
	if filter.NeedsReview != nil {
		args = append(args, *filter.NeedsReview)
		where += fmt.Sprintf(" AND needs_review = $%d", len(args))
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM tax_calculations "+where, args...); err != nil {
		return nil, 0, fmt.Errorf("calculationRepo.List count: %w", err)
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf("SELECT * FROM tax_calculations %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		where, len(args)-1, len(args))
	var calcs []domain.TaxCalculation
	if err := r.db.SelectContext(ctx, &calcs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("calculationRepo.List: %w", err)
	}
	return calcs, total, nil
}

// UpdateStatus persists only the workflow fields and the append-only
// history. The calculation's computed content is immutable.
func (r *calculationRepo) UpdateStatus(ctx context.Context, calc *domain.TaxCalculation) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE tax_calculations
		 SET status = $1, status_history = $2, needs_review = $3,
		     validated_by = $4, validated_at = $5, validation_notes = $6
		 WHERE tenant_id = $7 AND calculation_id = $8`,
		calc.Status, calc.StatusHistory, calc.NeedsReview,
		calc.ValidatedBy, calc.ValidatedAt, calc.ValidationNotes,
		calc.TenantID, calc.CalculationID)
	if err != nil {
		return fmt.Errorf("calculationRepo.UpdateStatus: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *calculationRepo) MarkSuperseded(ctx context.Context, tenantID uuid.UUID, calculationID string, successorID string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE tax_calculations
		 SET status = 'superseded',
		     status_history = status_history || jsonb_build_array(jsonb_build_object(
		         'from', status, 'to', 'superseded',
		         'actor', 'engine', 'note', 'superseded by ' || $1::text,
		         'occurred_at', NOW()
		     ))
		 WHERE tenant_id = $2 AND calculation_id = $3 AND status IN ('pending', 'disputed')`,
		successorID, tenantID, calculationID)
	if err != nil {
		return fmt.Errorf("calculationRepo.MarkSuperseded: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrInvalidStatusTransition
	}
	return nil
}
