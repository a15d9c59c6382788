// Package engine orchestrates a full tax calculation: jurisdiction
// resolution, rate selection, exemption application, and assembly of the
// immutable audit record.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"taxatlas/internal/address"
	"taxatlas/internal/domain"
	"taxatlas/internal/exemption"
	"taxatlas/internal/port"
	"taxatlas/internal/rates"
)

// Input is the line item descriptor collaborators submit for calculation.
type Input struct {
	TenantID    uuid.UUID
	Calculable  domain.CalculableRef
	ClientID    uuid.UUID
	BaseAmount  decimal.Decimal
	Quantity    decimal.Decimal
	ServiceType string
	TaxCategory string
	Address     domain.ServiceAddress
	AsOf        time.Time
}

// validate applies the hard input checks: everything past here degrades
// gracefully instead of erroring.
func (in *Input) validate() error {
	if in.BaseAmount.Sign() < 0 {
		return domain.ErrInvalidAmount
	}
	if in.Quantity.Sign() <= 0 {
		return domain.ErrInvalidQuantity
	}
	return in.Calculable.Validate()
}

// Engine is the calculation orchestrator.
type Engine struct {
	resolver   *address.Resolver
	catalog    *rates.Catalog
	exemptions *exemption.Evaluator
	calcs      port.CalculationRepository
	dirs       port.JurisdictionRepository

	// confidenceFloor gates auto-approval: below it, a calculation is
	// flagged for manual review.
	confidenceFloor decimal.Decimal
	now             func() time.Time
}

// New wires the orchestrator. A non-positive confidenceFloor defaults
// to 0.6, matching the resolver's pattern floor.
func New(
	resolver *address.Resolver,
	catalog *rates.Catalog,
	exemptions *exemption.Evaluator,
	calcs port.CalculationRepository,
	dirs port.JurisdictionRepository,
	confidenceFloor decimal.Decimal,
) *Engine {
	if confidenceFloor.Sign() <= 0 {
		confidenceFloor = decimal.NewFromFloat(0.6)
	}
	return &Engine{
		resolver:        resolver,
		catalog:         catalog,
		exemptions:      exemptions,
		calcs:           calcs,
		dirs:            dirs,
		confidenceFloor: confidenceFloor,
		now:             time.Now,
	}
}

// Calculate resolves jurisdictions, selects rates, applies exemptions, and
// persists a new pending calculation. Unresolvable addresses and missing
// rates produce flagged zero-tax calculations, never errors; only malformed
// input fails.
func (e *Engine) Calculate(ctx context.Context, in Input) (*domain.TaxCalculation, error) {
	return e.calculate(ctx, in, nil)
}

// Recalculate re-runs a stored calculation (after a rate or data
// correction) as a new record linked to the old one, which is marked
// superseded. The audit lineage is never rewritten.
func (e *Engine) Recalculate(ctx context.Context, tenantID uuid.UUID, calculationID string) (*domain.TaxCalculation, error) {
	prev, err := e.calcs.GetByCalculationID(ctx, tenantID, calculationID)
	if err != nil {
		return nil, err
	}
	if !prev.CanTransition(domain.CalculationSuperseded) {
		return nil, domain.ErrInvalidStatusTransition
	}

	var addr domain.ServiceAddress
	if err := json.Unmarshal(prev.Address, &addr); err != nil {
		return nil, fmt.Errorf("engine.Engine: decoding stored address: %w", err)
	}
	in := Input{
		TenantID:    prev.TenantID,
		Calculable:  prev.Calculable(),
		ClientID:    prev.ClientID,
		BaseAmount:  prev.BaseAmount,
		Quantity:    prev.Quantity,
		ServiceType: prev.ServiceType,
		TaxCategory: prev.TaxCategory,
		Address:     addr,
		AsOf:        prev.AsOfDate,
	}

	next, err := e.calculate(ctx, in, &prev.CalculationID)
	if err != nil {
		return nil, err
	}
	if err := e.calcs.MarkSuperseded(ctx, tenantID, prev.CalculationID, next.CalculationID); err != nil {
		return nil, fmt.Errorf("engine.Engine: superseding %s: %w", prev.CalculationID, err)
	}
	return next, nil
}

func (e *Engine) calculate(ctx context.Context, in Input, supersedes *string) (*domain.TaxCalculation, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	asOf := in.AsOf
	if asOf.IsZero() {
		asOf = e.now().UTC()
	}

	resolution, err := e.resolver.Resolve(ctx, in.Address)
	if err != nil {
		return nil, err
	}

	selected, err := e.catalog.RatesFor(ctx, resolution.JurisdictionIDs, in.ServiceType, in.TaxCategory, asOf)
	if err != nil {
		return nil, err
	}

	taxLines, rateLines := e.computeLines(selected, in.BaseAmount, in.Quantity)

	applicable, err := e.exemptions.Applicable(ctx, exemption.Input{
		TenantID:        in.TenantID,
		ClientID:        in.ClientID,
		JurisdictionIDs: resolution.JurisdictionIDs,
		TaxCategory:     in.TaxCategory,
		ServiceType:     in.ServiceType,
		AsOf:            asOf,
		Facts: exemption.Facts{
			Amount:      in.BaseAmount,
			Quantity:    in.Quantity,
			ServiceType: in.ServiceType,
			TaxCategory: in.TaxCategory,
		},
	})
	if err != nil {
		return nil, err
	}
	taxLines, appliedExemptions := exemption.Apply(applicable, taxLines)

	calc, err := e.assemble(ctx, in, asOf, resolution, rateLines, taxLines, appliedExemptions, supersedes)
	if err != nil {
		return nil, err
	}
	if err := e.calcs.Create(ctx, calc); err != nil {
		return nil, fmt.Errorf("engine.Engine: persisting calculation: %w", err)
	}
	log.Printf("engine.Engine: calculation %s method=%s tax=%s review=%t",
		calc.CalculationID, calc.ResolutionMethod, calc.TotalTax, calc.NeedsReview)
	return calc, nil
}

// computeLines evaluates the ordered rate set: non-compound rates
// accumulate into the compound base, compound rates then tax base+tax.
func (e *Engine) computeLines(selected []domain.TaxRate, base, quantity decimal.Decimal) ([]exemption.TaxLine, []rates.Line) {
	var simpleAccum decimal.Decimal
	taxLines := make([]exemption.TaxLine, 0, len(selected))
	rateLines := make([]rates.Line, 0, len(selected))

	for i := range selected {
		rate := &selected[i]
		line := e.catalog.Compute(rate, base, quantity, simpleAccum)
		if !rate.IsCompound {
			simpleAccum = simpleAccum.Add(line.Tax)
		}
		rateLines = append(rateLines, line)
		taxLines = append(taxLines, exemption.TaxLine{
			JurisdictionID: rate.JurisdictionID,
			TaxType:        rate.TaxType,
			Tax:            line.Tax,
		})
	}
	return taxLines, rateLines
}

func (e *Engine) assemble(
	ctx context.Context,
	in Input,
	asOf time.Time,
	resolution *address.Resolution,
	rateLines []rates.Line,
	taxLines []exemption.TaxLine,
	appliedExemptions []domain.AppliedExemption,
	supersedes *string,
) (*domain.TaxCalculation, error) {
	codes := e.jurisdictionCodes(ctx, resolution.JurisdictionIDs)

	breakdown := make([]domain.BreakdownLine, 0, len(rateLines))
	totalTax := decimal.Zero
	tieredSkipped := false
	for i := range rateLines {
		rl := &rateLines[i]
		tl := &taxLines[i]
		lineTax := tl.Tax.Round(2)
		totalTax = totalTax.Add(lineTax)
		if rl.Tiered {
			tieredSkipped = true
		}
		breakdown = append(breakdown, domain.BreakdownLine{
			JurisdictionCode: codes[rl.Rate.JurisdictionID],
			TaxName:          rl.Rate.TaxName,
			RateApplied:      rl.Rate.PercentageRate,
			TaxableBase:      rl.TaxableBase.Round(2),
			TaxAmount:        lineTax,
			IsCompound:       rl.Rate.IsCompound,
			ExemptedAmount:   tl.Exempted.Round(2),
		})
	}

	finalAmount := in.BaseAmount.Add(totalTax)
	effectiveRate := decimal.Zero
	if in.BaseAmount.Sign() > 0 {
		effectiveRate = totalTax.Div(in.BaseAmount).Round(6)
	}

	noRate := len(rateLines) == 0 && resolution.Method != domain.ResolutionUnresolved
	needsReview := resolution.Method == domain.ResolutionUnresolved ||
		resolution.Confidence.LessThan(e.confidenceFloor) ||
		noRate || tieredSkipped

	addrJSON, err := json.Marshal(in.Address)
	if err != nil {
		return nil, fmt.Errorf("engine.Engine: encoding address: %w", err)
	}
	breakdownJSON, err := json.Marshal(breakdown)
	if err != nil {
		return nil, fmt.Errorf("engine.Engine: encoding breakdown: %w", err)
	}
	exemptionsJSON, err := json.Marshal(appliedExemptions)
	if err != nil {
		return nil, fmt.Errorf("engine.Engine: encoding exemptions: %w", err)
	}

	now := e.now().UTC()
	history, err := json.Marshal([]domain.StatusEvent{{
		To:         domain.CalculationPending,
		Actor:      "engine",
		Note:       initialNote(resolution.Method, noRate),
		OccurredAt: now,
	}})
	if err != nil {
		return nil, fmt.Errorf("engine.Engine: encoding status history: %w", err)
	}

	calc := &domain.TaxCalculation{
		ID:                uuid.New(),
		CalculationID:     "calc_" + uuid.NewString(),
		TenantID:          in.TenantID,
		CalculableType:    in.Calculable.Kind,
		CalculableID:      in.Calculable.ID,
		ClientID:          in.ClientID,
		ServiceType:       in.ServiceType,
		TaxCategory:       in.TaxCategory,
		BaseAmount:        in.BaseAmount,
		Quantity:          in.Quantity,
		AsOfDate:          asOf,
		Address:           addrJSON,
		ResolutionMethod:  resolution.Method,
		ResolutionScore:   resolution.Confidence,
		ExternalCalls:     resolution.ExternalCalls,
		JurisdictionIDs:   resolution.JurisdictionIDs,
		Breakdown:         breakdownJSON,
		AppliedExemptions: exemptionsJSON,
		TotalTax:          totalTax,
		FinalAmount:       finalAmount,
		EffectiveRate:     effectiveRate,
		NoRateFound:       noRate,
		NeedsReview:       needsReview,
		Status:            domain.CalculationPending,
		StatusHistory:     history,
		CreatedAt:         now,
	}
	if supersedes != nil {
		// Link to the superseded predecessor by row id lookup later; the
		// stable string id is what invoice lines reference.
		prev, err := e.calcs.GetByCalculationID(ctx, in.TenantID, *supersedes)
		if err == nil {
			calc.SupersedesID = &prev.ID
		}
	}
	return calc, nil
}

func (e *Engine) jurisdictionCodes(ctx context.Context, ids []uuid.UUID) map[uuid.UUID]string {
	codes := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return codes
	}
	jurs, err := e.dirs.ListByIDs(ctx, ids)
	if err != nil {
		log.Printf("engine.Engine: loading jurisdiction codes: %v", err)
		return codes
	}
	for _, j := range jurs {
		codes[j.ID] = j.Code
	}
	return codes
}

func initialNote(method domain.ResolutionMethod, noRate bool) string {
	switch {
	case method == domain.ResolutionUnresolved:
		return "address unresolved; state-only fallback"
	case noRate:
		return "no applicable rate found"
	default:
		return ""
	}
}
