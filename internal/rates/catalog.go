// Package rates is the pure read path over the time-versioned tax rate
// catalog: selection, ordering, and per-rate line computation.
package rates

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"taxatlas/internal/domain"
	"taxatlas/internal/port"
)

// Catalog selects and orders the rates applicable to a line item.
type Catalog struct {
	repo     port.RateRepository
	strategy TierStrategy
}

// NewCatalog creates a Catalog. A nil strategy disables tiered rates,
// which then produce zero flagged lines instead of silently wrong amounts.
func NewCatalog(repo port.RateRepository, strategy TierStrategy) *Catalog {
	if strategy == nil {
		strategy = noTiers{}
	}
	return &Catalog{repo: repo, strategy: strategy}
}

// RatesFor returns the active rates for the resolved jurisdictions, ordered
// for evaluation: non-compound rates by priority ascending first, compound
// rates last so they see the accumulated base. Equal-priority overlaps in
// the same jurisdiction are a data integrity issue; they are ordered
// deterministically (newest effective date, then id) and logged for review.
func (c *Catalog) RatesFor(ctx context.Context, jurisdictionIDs []uuid.UUID, serviceType, taxCategory string, asOf time.Time) ([]domain.TaxRate, error) {
	if len(jurisdictionIDs) == 0 {
		return nil, nil
	}
	rates, err := c.repo.ListActive(ctx, jurisdictionIDs, serviceType, taxCategory, asOf)
	if err != nil {
		return nil, fmt.Errorf("rates.Catalog: listing active rates: %w", err)
	}

	sort.SliceStable(rates, func(i, j int) bool {
		a, b := &rates[i], &rates[j]
		if a.IsCompound != b.IsCompound {
			return !a.IsCompound
		}
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if !a.EffectiveDate.Equal(b.EffectiveDate) {
			return a.EffectiveDate.After(b.EffectiveDate)
		}
		return a.ID.String() < b.ID.String()
	})

	c.flagOverlaps(rates)
	return rates, nil
}

// ListByJurisdiction exposes the active rate set for one jurisdiction, used
// by the read-only inspection endpoint.
func (c *Catalog) ListByJurisdiction(ctx context.Context, jurisdictionID uuid.UUID, asOf time.Time) ([]domain.TaxRate, error) {
	return c.repo.ListByJurisdiction(ctx, jurisdictionID, asOf)
}

// flagOverlaps logs equal-priority active rates within one (jurisdiction,
// category, service type) cell for data-quality review.
func (c *Catalog) flagOverlaps(rates []domain.TaxRate) {
	type cell struct {
		jur      uuid.UUID
		category string
		service  string
		priority int
	}
	seen := make(map[cell]uuid.UUID, len(rates))
	for i := range rates {
		r := &rates[i]
		k := cell{r.JurisdictionID, r.TaxCategory, r.ServiceType, r.Priority}
		if prev, ok := seen[k]; ok {
			log.Printf("rates.Catalog: invalid rate window: rates %s and %s overlap at priority %d for jurisdiction %s", prev, r.ID, r.Priority, r.JurisdictionID)
			continue
		}
		seen[k] = r.ID
	}
}
