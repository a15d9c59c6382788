package rates

import (
	"errors"
	"log"

	"github.com/shopspring/decimal"

	"taxatlas/internal/domain"
)

// Line is the computed tax for one rate applied to one line item.
type Line struct {
	Rate        *domain.TaxRate
	TaxableBase decimal.Decimal
	Tax         decimal.Decimal
	// Tiered marks a rate the catalog could not evaluate inline.
	Tiered bool
}

// TierStrategy evaluates tiered rates against an external break-point
// table. It is a plug: the engine core never owns tier data.
type TierStrategy interface {
	Compute(rate *domain.TaxRate, base, quantity decimal.Decimal) (decimal.Decimal, error)
}

// noTiers is the default strategy: tiered rows degrade to a zero flagged
// line rather than a wrong amount.
type noTiers struct{}

var errNoTierTable = errors.New("no tier break-point table configured")

func (noTiers) Compute(*domain.TaxRate, decimal.Decimal, decimal.Decimal) (decimal.Decimal, error) {
	return decimal.Zero, errNoTierTable
}

// Compute evaluates one rate. base is the line item's base amount;
// compoundAccum is the non-compound tax accumulated so far, added to the
// taxable base only for compound rates. Percentage rates are fractional
// (0.05 = 5%) and clamped to [minimum_threshold, maximum_amount] when set.
func (c *Catalog) Compute(rate *domain.TaxRate, base, quantity, compoundAccum decimal.Decimal) Line {
	taxable := base
	if rate.IsCompound {
		taxable = base.Add(compoundAccum)
	}

	line := Line{Rate: rate, TaxableBase: taxable}
	switch rate.RateType {
	case domain.RatePercentage:
		line.Tax = clamp(taxable.Mul(rate.PercentageRate), rate.MinThreshold, rate.MaxAmount)
	case domain.RateFixed:
		amount := rate.FixedAmount
		if rate.PerUnit {
			amount = amount.Mul(quantity)
		}
		line.Tax = clamp(amount, rate.MinThreshold, rate.MaxAmount)
	case domain.RateTiered:
		amount, err := c.strategy.Compute(rate, taxable, quantity)
		if err != nil {
			log.Printf("rates.Catalog: tiered rate %s not evaluated: %v", rate.ID, err)
			line.Tiered = true
			line.Tax = decimal.Zero
			break
		}
		line.Tax = clamp(amount, rate.MinThreshold, rate.MaxAmount)
	default:
		log.Printf("rates.Catalog: unknown rate type %q on rate %s", rate.RateType, rate.ID)
		line.Tax = decimal.Zero
	}
	return line
}

func clamp(amount decimal.Decimal, min, max *decimal.Decimal) decimal.Decimal {
	if min != nil && amount.LessThan(*min) {
		amount = *min
	}
	if max != nil && amount.GreaterThan(*max) {
		amount = *max
	}
	return amount
}
