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

type addressRangeRepo struct {
	db *sqlx.DB
}

// NewAddressRangeRepo creates a new PostgreSQL-backed AddressRangeRepository.
func NewAddressRangeRepo(db *sqlx.DB) port.AddressRangeRepository {
	return &addressRangeRepo{db: db}
}

// FindCandidates runs the hot-path range query. Parity and directional
// matching happen in the resolver; the index covers
// (state_code, zip, street_name, address_from, address_to).
func (r *addressRangeRepo) FindCandidates(ctx context.Context, stateCode, zip, streetName string, houseNumber int) ([]domain.AddressRange, error) {
	var ranges []domain.AddressRange
	err := r.db.SelectContext(ctx, &ranges,
		`SELECT * FROM address_ranges
		 WHERE state_code = $1 AND zip = $2 AND street_name = $3
		   AND address_from <= $4 AND address_to >= $4`,
		stateCode, zip, streetName, houseNumber)
	if err != nil {
		return nil, fmt.Errorf("addressRangeRepo.FindCandidates: %w", err)
	}
	return ranges, nil
}

// ReplaceSource atomically swaps all ranges imported from one data source.
// Rows are immutable; re-import is the only mutation path.
func (r *addressRangeRepo) ReplaceSource(ctx context.Context, sourceID string, ranges []domain.AddressRange) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("addressRangeRepo.ReplaceSource: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM address_ranges WHERE source_id = $1", sourceID); err != nil {
		return fmt.Errorf("addressRangeRepo.ReplaceSource: delete: %w", err)
	}

	now := time.Now().UTC()
	for i := range ranges {
		rg := &ranges[i]
		if rg.AddressFrom > rg.AddressTo {
			return domain.ErrInvalidAddressRange
		}
		if rg.ID == uuid.Nil {
			rg.ID = uuid.New()
		}
		rg.SourceID = sourceID
		rg.ImportedAt = now
		_, err := tx.NamedExecContext(ctx,
			`INSERT INTO address_ranges (
				id, state_code, county_code, pre_directional, street_name, street_suffix,
				post_directional, address_from, address_to, parity, zip, zip_plus4,
				state_jurisdiction_id, county_jurisdiction_id, city_jurisdiction_id,
				transit_jurisdiction_id, special_jurisdiction_ids, source_id, imported_at
			) VALUES (
				:id, :state_code, :county_code, :pre_directional, :street_name, :street_suffix,
				:post_directional, :address_from, :address_to, :parity, :zip, :zip_plus4,
				:state_jurisdiction_id, :county_jurisdiction_id, :city_jurisdiction_id,
				:transit_jurisdiction_id, :special_jurisdiction_ids, :source_id, :imported_at
			)`, rg)
		if err != nil {
			return fmt.Errorf("addressRangeRepo.ReplaceSource: insert: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("addressRangeRepo.ReplaceSource: commit: %w", err)
	}
	return nil
}
