package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"taxatlas/internal/domain"
	"taxatlas/internal/port"
)

type patternRepo struct {
	db *sqlx.DB
}

// NewPatternRepo creates a new PostgreSQL-backed PatternRepository.
func NewPatternRepo(db *sqlx.DB) port.PatternRepository {
	return &patternRepo{db: db}
}

func (r *patternRepo) Create(ctx context.Context, p *domain.LearnedPattern) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := r.db.NamedExecContext(ctx,
		`INSERT INTO learned_patterns (
			id, authority_name, authority_id, pattern_type, confidence,
			pattern_data, observation_count, created_at, updated_at
		) VALUES (
			:id, :authority_name, :authority_id, :pattern_type, :confidence,
			:pattern_data, :observation_count, :created_at, :updated_at
		)`, p)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return domain.ErrDuplicatePattern
		}
		return fmt.Errorf("patternRepo.Create: %w", err)
	}
	return nil
}

func (r *patternRepo) GetByAuthority(ctx context.Context, authorityName string, authorityID uuid.UUID) (*domain.LearnedPattern, error) {
	var p domain.LearnedPattern
	err := r.db.GetContext(ctx, &p,
		"SELECT * FROM learned_patterns WHERE authority_name = $1 AND authority_id = $2",
		authorityName, authorityID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("patternRepo.GetByAuthority: %w", err)
	}
	return &p, nil
}

func (r *patternRepo) BestMatch(ctx context.Context, criteria port.PatternCriteria) (*domain.LearnedPattern, error) {
	query := `SELECT * FROM learned_patterns
		 WHERE authority_name = $1 AND confidence >= $2`
	args := []interface{}{criteria.AuthorityName, criteria.MinConfidence}
	if criteria.PatternType != "" {
		query += " AND pattern_type = $3"
		args = append(args, criteria.PatternType)
	}
	query += " ORDER BY confidence DESC, observation_count DESC LIMIT 1"

	var p domain.LearnedPattern
	err := r.db.GetContext(ctx, &p, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("patternRepo.BestMatch: %w", err)
	}
	return &p, nil
}

// AdjustConfidence applies the EMA update in a single statement so
// concurrent updates never lose a write.
func (r *patternRepo) AdjustConfidence(ctx context.Context, authorityName string, authorityID uuid.UUID, outcome, alpha decimal.Decimal) (*domain.LearnedPattern, error) {
	var p domain.LearnedPattern
	err := r.db.GetContext(ctx, &p,
		`UPDATE learned_patterns
		 SET confidence = LEAST(1, GREATEST(0, confidence + $1 * ($2 - confidence))),
		     observation_count = observation_count + 1,
		     updated_at = NOW()
		 WHERE authority_name = $3 AND authority_id = $4
		 RETURNING *`,
		alpha, outcome, authorityName, authorityID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("patternRepo.AdjustConfidence: %w", err)
	}
	return &p, nil
}
