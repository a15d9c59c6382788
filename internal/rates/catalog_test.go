package rates

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"taxatlas/internal/domain"
	"taxatlas/mocks"
)

func TestRatesFor_OrdersCompoundLast(t *testing.T) {
	repo := new(mocks.MockRateRepo)
	catalog := NewCatalog(repo, nil)
	jurID := uuid.New()
	asOf := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	compound := domain.TaxRate{ID: uuid.New(), JurisdictionID: jurID, IsCompound: true, Priority: 0}
	high := domain.TaxRate{ID: uuid.New(), JurisdictionID: jurID, Priority: 5}
	low := domain.TaxRate{ID: uuid.New(), JurisdictionID: jurID, Priority: 1}
	repo.On("ListActive", mock.Anything, []uuid.UUID{jurID}, "voip", "telecom", asOf).
		Return([]domain.TaxRate{compound, high, low}, nil)

	got, err := catalog.RatesFor(context.Background(), []uuid.UUID{jurID}, "voip", "telecom", asOf)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, low.ID, got[0].ID)
	assert.Equal(t, high.ID, got[1].ID)
	assert.Equal(t, compound.ID, got[2].ID)
}

func TestRatesFor_EqualPriorityPrefersNewestEffective(t *testing.T) {
	repo := new(mocks.MockRateRepo)
	catalog := NewCatalog(repo, nil)
	jurID := uuid.New()
	asOf := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	older := domain.TaxRate{
		ID: uuid.New(), JurisdictionID: jurID, Priority: 1,
		EffectiveDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	newer := domain.TaxRate{
		ID: uuid.New(), JurisdictionID: jurID, Priority: 1,
		EffectiveDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	repo.On("ListActive", mock.Anything, []uuid.UUID{jurID}, "voip", "telecom", asOf).
		Return([]domain.TaxRate{older, newer}, nil)

	got, err := catalog.RatesFor(context.Background(), []uuid.UUID{jurID}, "voip", "telecom", asOf)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, newer.ID, got[0].ID)
}

func TestRatesFor_EmptyJurisdictionsSkipsQuery(t *testing.T) {
	repo := new(mocks.MockRateRepo)
	catalog := NewCatalog(repo, nil)

	got, err := catalog.RatesFor(context.Background(), nil, "voip", "telecom", time.Now())
	require.NoError(t, err)
	assert.Empty(t, got)
	repo.AssertNotCalled(t, "ListActive")
}

func TestCompute_PercentageIsFractional(t *testing.T) {
	catalog := NewCatalog(new(mocks.MockRateRepo), nil)
	rate := &domain.TaxRate{
		RateType:       domain.RatePercentage,
		PercentageRate: decimal.NewFromFloat(0.05),
	}

	line := catalog.Compute(rate, decimal.NewFromInt(100), decimal.NewFromInt(1), decimal.Zero)
	assert.True(t, line.Tax.Equal(decimal.NewFromInt(5)), "got %s", line.Tax)
	assert.False(t, line.Tiered)
}

func TestCompute_CompoundIncludesAccumulatedTax(t *testing.T) {
	catalog := NewCatalog(new(mocks.MockRateRepo), nil)
	rate := &domain.TaxRate{
		RateType:       domain.RatePercentage,
		PercentageRate: decimal.NewFromFloat(0.02),
		IsCompound:     true,
	}

	// 2% of (100 base + 5 accumulated) = 2.10
	line := catalog.Compute(rate, decimal.NewFromInt(100), decimal.NewFromInt(1), decimal.NewFromInt(5))
	assert.True(t, line.TaxableBase.Equal(decimal.NewFromInt(105)))
	assert.True(t, line.Tax.Equal(decimal.NewFromFloat(2.10)), "got %s", line.Tax)
}

func TestCompute_FixedPerUnit(t *testing.T) {
	catalog := NewCatalog(new(mocks.MockRateRepo), nil)
	rate := &domain.TaxRate{
		RateType:    domain.RateFixed,
		FixedAmount: decimal.NewFromFloat(0.75),
		PerUnit:     true,
	}

	line := catalog.Compute(rate, decimal.NewFromInt(100), decimal.NewFromInt(4), decimal.Zero)
	assert.True(t, line.Tax.Equal(decimal.NewFromInt(3)), "got %s", line.Tax)
}

func TestCompute_FixedFlatIgnoresQuantity(t *testing.T) {
	catalog := NewCatalog(new(mocks.MockRateRepo), nil)
	rate := &domain.TaxRate{
		RateType:    domain.RateFixed,
		FixedAmount: decimal.NewFromFloat(1.25),
	}

	line := catalog.Compute(rate, decimal.NewFromInt(100), decimal.NewFromInt(10), decimal.Zero)
	assert.True(t, line.Tax.Equal(decimal.NewFromFloat(1.25)))
}

func TestCompute_ClampsToThresholdAndCap(t *testing.T) {
	catalog := NewCatalog(new(mocks.MockRateRepo), nil)
	min := decimal.NewFromInt(2)
	max := decimal.NewFromInt(4)
	rate := &domain.TaxRate{
		RateType:       domain.RatePercentage,
		PercentageRate: decimal.NewFromFloat(0.05),
		MinThreshold:   &min,
		MaxAmount:      &max,
	}

	below := catalog.Compute(rate, decimal.NewFromInt(10), decimal.NewFromInt(1), decimal.Zero)
	assert.True(t, below.Tax.Equal(min), "got %s", below.Tax)

	above := catalog.Compute(rate, decimal.NewFromInt(1000), decimal.NewFromInt(1), decimal.Zero)
	assert.True(t, above.Tax.Equal(max), "got %s", above.Tax)
}

func TestCompute_TieredWithoutStrategyFlagsLine(t *testing.T) {
	catalog := NewCatalog(new(mocks.MockRateRepo), nil)
	rate := &domain.TaxRate{ID: uuid.New(), RateType: domain.RateTiered}

	line := catalog.Compute(rate, decimal.NewFromInt(100), decimal.NewFromInt(1), decimal.Zero)
	assert.True(t, line.Tiered)
	assert.True(t, line.Tax.IsZero())
}
