// Package exemption determines which tax exemptions apply to a line item
// and how much they reduce the computed tax.
package exemption

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"taxatlas/internal/domain"
	"taxatlas/internal/port"
)

// Evaluator filters and applies tax exemptions.
type Evaluator struct {
	repo port.ExemptionRepository
}

// NewEvaluator creates an Evaluator over the exemption store.
func NewEvaluator(repo port.ExemptionRepository) *Evaluator {
	return &Evaluator{repo: repo}
}

// Input describes the line item an exemption check runs against.
type Input struct {
	TenantID        uuid.UUID
	ClientID        uuid.UUID
	JurisdictionIDs []uuid.UUID
	TaxCategory     string
	ServiceType     string
	AsOf            time.Time
	Facts           Facts
}

// Applicable returns the exemptions whose scope matches the line item. The
// store pre-filters on scope, status, and date window; conditional rows are
// additionally gated here by their applicable sets and condition predicates.
// TaxType gating of conditional exemptions happens later, per tax line.
func (e *Evaluator) Applicable(ctx context.Context, in Input) ([]domain.TaxExemption, error) {
	candidates, err := e.repo.ListCandidates(ctx, in.TenantID, in.ClientID, in.JurisdictionIDs, in.TaxCategory, in.AsOf)
	if err != nil {
		return nil, fmt.Errorf("exemption.Evaluator: listing candidates: %w", err)
	}

	applicable := candidates[:0]
	for i := range candidates {
		ex := candidates[i]
		if !ex.ActiveAt(in.AsOf) {
			continue
		}
		if !ex.IsBlanket {
			if len(ex.ApplicableServices) > 0 && !ex.ApplicableServices.Contains(in.ServiceType) {
				continue
			}
			ok, err := EvaluateConditions(ex.Conditions, in.Facts)
			if err != nil {
				log.Printf("exemption.Evaluator: exemption %s has malformed conditions, skipping: %v", ex.ID, err)
				continue
			}
			if !ok {
				continue
			}
		}
		applicable = append(applicable, ex)
	}
	return applicable, nil
}

// TaxLine is one computed per-jurisdiction tax amount before exemptions.
type TaxLine struct {
	JurisdictionID uuid.UUID
	TaxType        string
	Tax            decimal.Decimal
	Exempted       decimal.Decimal
}

// Apply reduces tax lines by the applicable exemptions. Blanket exemptions
// run first, most specific scope winning a conflict, and may fully zero a
// line; conditional exemptions then reduce the remainder proportionally,
// capped per-exemption and never driving a line below zero. Reapplying the
// same exemption to a line is a no-op, so the reduction is idempotent.
func Apply(exemptions []domain.TaxExemption, lines []TaxLine) ([]TaxLine, []domain.AppliedExemption) {
	var applied []domain.AppliedExemption

	blankets := make([]domain.TaxExemption, 0, len(exemptions))
	conditionals := make([]domain.TaxExemption, 0, len(exemptions))
	for _, ex := range exemptions {
		if ex.IsBlanket {
			blankets = append(blankets, ex)
		} else {
			conditionals = append(conditionals, ex)
		}
	}
	// Most specific scope first; on a tie the older certificate wins.
	sort.SliceStable(blankets, func(i, j int) bool {
		if blankets[i].ScopeSpecificity() != blankets[j].ScopeSpecificity() {
			return blankets[i].ScopeSpecificity() > blankets[j].ScopeSpecificity()
		}
		return blankets[i].CreatedAt.Before(blankets[j].CreatedAt)
	})

	seen := make(map[uuid.UUID]map[uuid.UUID]bool) // line jurisdiction → exemption ids applied

	markApplied := func(jur, ex uuid.UUID) bool {
		if seen[jur] == nil {
			seen[jur] = make(map[uuid.UUID]bool)
		}
		if seen[jur][ex] {
			return false
		}
		seen[jur][ex] = true
		return true
	}

	for li := range lines {
		line := &lines[li]
		blanketed := false
		for bi := range blankets {
			ex := &blankets[bi]
			if !scopeMatchesLine(ex, line) {
				continue
			}
			if blanketed {
				log.Printf("exemption: blanket exemption %s conflicts with a more specific one on jurisdiction %s, skipped", ex.ID, line.JurisdictionID)
				continue
			}
			if !markApplied(line.JurisdictionID, ex.ID) {
				continue
			}
			reduction := portionOf(line.Tax, ex.ExemptionPct)
			reduction = capTo(reduction, ex.MaxExemptionAmount)
			line.Tax = line.Tax.Sub(reduction)
			line.Exempted = line.Exempted.Add(reduction)
			applied = append(applied, domain.AppliedExemption{
				ExemptionID:    ex.ID,
				ExemptionType:  ex.ExemptionType,
				IsBlanket:      true,
				AmountExempted: reduction,
			})
			blanketed = true
			if line.Tax.Sign() <= 0 {
				line.Tax = decimal.Zero
				break // fully zeroed, short-circuit
			}
		}
		if line.Tax.Sign() <= 0 {
			continue
		}

		for ci := range conditionals {
			ex := &conditionals[ci]
			if !scopeMatchesLine(ex, line) {
				continue
			}
			if len(ex.ApplicableTaxTypes) > 0 && !ex.ApplicableTaxTypes.Contains(line.TaxType) {
				continue
			}
			if !markApplied(line.JurisdictionID, ex.ID) {
				continue
			}
			reduction := portionOf(line.Tax, ex.ExemptionPct)
			reduction = capTo(reduction, ex.MaxExemptionAmount)
			if reduction.GreaterThan(line.Tax) {
				reduction = line.Tax
			}
			line.Tax = line.Tax.Sub(reduction)
			line.Exempted = line.Exempted.Add(reduction)
			applied = append(applied, domain.AppliedExemption{
				ExemptionID:    ex.ID,
				ExemptionType:  ex.ExemptionType,
				IsBlanket:      false,
				AmountExempted: reduction,
			})
			if line.Tax.Sign() <= 0 {
				line.Tax = decimal.Zero
				break
			}
		}
	}
	return lines, applied
}

func scopeMatchesLine(ex *domain.TaxExemption, line *TaxLine) bool {
	return ex.JurisdictionID == nil || *ex.JurisdictionID == line.JurisdictionID
}

// portionOf returns pct percent of amount; a zero pct on a blanket
// certificate means a full exemption.
func portionOf(amount, pct decimal.Decimal) decimal.Decimal {
	if pct.Sign() <= 0 {
		return amount
	}
	return amount.Mul(pct).Div(decimal.NewFromInt(100))
}

func capTo(amount decimal.Decimal, max *decimal.Decimal) decimal.Decimal {
	if max != nil && amount.GreaterThan(*max) {
		return *max
	}
	return amount
}
