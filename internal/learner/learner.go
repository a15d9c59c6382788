// Package learner maintains the confidence-scored cache of jurisdiction
// authority patterns discovered from external lookups.
package learner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"taxatlas/internal/domain"
	"taxatlas/internal/port"
)

// DefaultAlpha is the exponential-moving-average step for confidence updates.
var DefaultAlpha = decimal.NewFromFloat(0.1)

// RetirementFloor marks a pattern as effectively retired. Rows below it are
// retained for audit but never returned by BestMatch.
var RetirementFloor = decimal.NewFromFloat(0.2)

// InitialConfidence is assigned to a newly discovered pattern.
var InitialConfidence = decimal.NewFromFloat(0.5)

// Learner adjusts and queries learned jurisdiction patterns.
type Learner struct {
	repo  port.PatternRepository
	alpha decimal.Decimal
}

// New creates a Learner with the given EMA alpha; a non-positive alpha
// falls back to DefaultAlpha.
func New(repo port.PatternRepository, alpha decimal.Decimal) *Learner {
	if alpha.Sign() <= 0 {
		alpha = DefaultAlpha
	}
	return &Learner{repo: repo, alpha: alpha}
}

// RecordOutcome nudges a pattern's confidence toward 1 (agreed) or 0
// (disagreed) via confidence' = confidence + alpha*(outcome - confidence).
// The update is atomic in the store. A missing pattern is created at the
// initial confidence before the adjustment is applied.
func (l *Learner) RecordOutcome(ctx context.Context, authorityName string, authorityID uuid.UUID, agreed bool) (*domain.LearnedPattern, error) {
	outcome := decimal.Zero
	if agreed {
		outcome = decimal.NewFromInt(1)
	}

	p, err := l.repo.AdjustConfidence(ctx, authorityName, authorityID, outcome, l.alpha)
	if errors.Is(err, domain.ErrNotFound) {
		if _, derr := l.Discover(ctx, authorityName, authorityID, nil); derr != nil {
			return nil, derr
		}
		p, err = l.repo.AdjustConfidence(ctx, authorityName, authorityID, outcome, l.alpha)
	}
	if err != nil {
		return nil, fmt.Errorf("adjusting confidence for %q: %w", authorityName, err)
	}
	return p, nil
}

// Discover persists a newly observed authority mapping at the initial
// confidence. A concurrent discovery of the same pair is reinforced
// instead of duplicated.
func (l *Learner) Discover(ctx context.Context, authorityName string, authorityID uuid.UUID, patternData json.RawMessage) (*domain.LearnedPattern, error) {
	if patternData == nil {
		patternData = json.RawMessage("{}")
	}
	p := &domain.LearnedPattern{
		AuthorityName:    authorityName,
		AuthorityID:      authorityID,
		PatternType:      domain.PatternTypeDiscovered,
		Confidence:       InitialConfidence,
		PatternData:      patternData,
		ObservationCount: 1,
	}
	err := l.repo.Create(ctx, p)
	if errors.Is(err, domain.ErrDuplicatePattern) {
		log.Printf("learner.Learner: pattern %q already known, reinforcing", authorityName)
		return l.RecordOutcome(ctx, authorityName, authorityID, true)
	}
	if err != nil {
		return nil, fmt.Errorf("creating pattern %q: %w", authorityName, err)
	}
	return p, nil
}

// BestMatch returns the highest-confidence pattern meeting the criteria, or
// ErrNotFound. The retirement floor applies even when the caller asks for a
// lower minimum.
func (l *Learner) BestMatch(ctx context.Context, criteria port.PatternCriteria) (*domain.LearnedPattern, error) {
	if criteria.MinConfidence.LessThan(RetirementFloor) {
		criteria.MinConfidence = RetirementFloor
	}
	return l.repo.BestMatch(ctx, criteria)
}
