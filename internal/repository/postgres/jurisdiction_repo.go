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

type jurisdictionRepo struct {
	db *sqlx.DB
}

// NewJurisdictionRepo creates a new PostgreSQL-backed JurisdictionRepository.
func NewJurisdictionRepo(db *sqlx.DB) port.JurisdictionRepository {
	return &jurisdictionRepo{db: db}
}

func (r *jurisdictionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Jurisdiction, error) {
	var jur domain.Jurisdiction
	err := r.db.GetContext(ctx, &jur, "SELECT * FROM jurisdictions WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("jurisdictionRepo.GetByID: %w", err)
	}
	return &jur, nil
}

func (r *jurisdictionRepo) GetByCode(ctx context.Context, stateCode, code string) (*domain.Jurisdiction, error) {
	var jur domain.Jurisdiction
	err := r.db.GetContext(ctx, &jur,
		"SELECT * FROM jurisdictions WHERE state_code = $1 AND code = $2", stateCode, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("jurisdictionRepo.GetByCode: %w", err)
	}
	return &jur, nil
}

func (r *jurisdictionRepo) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Jurisdiction, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In("SELECT * FROM jurisdictions WHERE id IN (?)", ids)
	if err != nil {
		return nil, fmt.Errorf("jurisdictionRepo.ListByIDs: %w", err)
	}
	var jurs []domain.Jurisdiction
	if err := r.db.SelectContext(ctx, &jurs, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("jurisdictionRepo.ListByIDs: %w", err)
	}
	return jurs, nil
}

func (r *jurisdictionRepo) ListByState(ctx context.Context, stateCode string) ([]domain.Jurisdiction, error) {
	var jurs []domain.Jurisdiction
	err := r.db.SelectContext(ctx, &jurs,
		"SELECT * FROM jurisdictions WHERE state_code = $1 ORDER BY jurisdiction_type, code", stateCode)
	if err != nil {
		return nil, fmt.Errorf("jurisdictionRepo.ListByState: %w", err)
	}
	return jurs, nil
}

func (r *jurisdictionRepo) StateByCode(ctx context.Context, stateCode string) (*domain.Jurisdiction, error) {
	var jur domain.Jurisdiction
	err := r.db.GetContext(ctx, &jur,
		"SELECT * FROM jurisdictions WHERE state_code = $1 AND jurisdiction_type = 'state'", stateCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("jurisdictionRepo.StateByCode: %w", err)
	}
	return &jur, nil
}
