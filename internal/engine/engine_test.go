package engine

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"taxatlas/internal/address"
	"taxatlas/internal/domain"
	"taxatlas/internal/exemption"
	"taxatlas/internal/learner"
	"taxatlas/internal/lookup"
	"taxatlas/internal/rates"
	"taxatlas/mocks"
)

type engineFixture struct {
	ranges        *mocks.MockAddressRangeRepo
	jurisdictions *mocks.MockJurisdictionRepo
	patterns      *mocks.MockPatternRepo
	cacheRepo     *mocks.MockQueryCacheRepo
	rateRepo      *mocks.MockRateRepo
	exemptions    *mocks.MockExemptionRepo
	calcs         *mocks.MockCalculationRepo
	engine        *Engine
	stateID       uuid.UUID
	cityID        uuid.UUID
}

var engineNow = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

func newEngineFixture() *engineFixture {
	f := &engineFixture{
		ranges:        new(mocks.MockAddressRangeRepo),
		jurisdictions: new(mocks.MockJurisdictionRepo),
		patterns:      new(mocks.MockPatternRepo),
		cacheRepo:     new(mocks.MockQueryCacheRepo),
		rateRepo:      new(mocks.MockRateRepo),
		exemptions:    new(mocks.MockExemptionRepo),
		calcs:         new(mocks.MockCalculationRepo),
		stateID:       uuid.New(),
		cityID:        uuid.New(),
	}
	resolver := address.NewResolver(
		f.ranges,
		f.jurisdictions,
		learner.New(f.patterns, decimal.Zero),
		lookup.New(f.cacheRepo, nil, time.Hour, 2),
		address.Config{},
	)
	f.engine = New(
		resolver,
		rates.NewCatalog(f.rateRepo, nil),
		exemption.NewEvaluator(f.exemptions),
		f.calcs,
		f.jurisdictions,
		decimal.Zero,
	)
	f.engine.now = func() time.Time { return engineNow }
	return f
}

var engineAddr = domain.ServiceAddress{
	Street:    "123 Main St",
	City:      "Springfield",
	StateCode: "IL",
	Zip:       "62704",
}

func engineInput(f *engineFixture) Input {
	return Input{
		TenantID:    uuid.New(),
		Calculable:  domain.CalculableRef{Kind: domain.CalculableInvoiceLine, ID: uuid.New()},
		ClientID:    uuid.New(),
		BaseAmount:  decimal.NewFromInt(100),
		Quantity:    decimal.NewFromInt(1),
		ServiceType: "voip",
		TaxCategory: "telecom",
		Address:     engineAddr,
		AsOf:        engineNow,
	}
}

// stubExactResolution wires the range index to hit both jurisdictions.
func (f *engineFixture) stubExactResolution() {
	rng := domain.AddressRange{
		ID:          uuid.New(),
		AddressFrom: 1, AddressTo: 999,
		Parity:     domain.ParityBoth,
		StateJurID: &f.stateID,
		CityJurID:  &f.cityID,
	}
	f.ranges.On("FindCandidates", mock.Anything, "IL", "62704", "MAIN", 123).
		Return([]domain.AddressRange{rng}, nil)
	f.jurisdictions.On("ListByIDs", mock.Anything, []uuid.UUID{f.stateID, f.cityID}).
		Return([]domain.Jurisdiction{
			{ID: f.stateID, Code: "IL"},
			{ID: f.cityID, Code: "SPR"},
		}, nil)
}

func (f *engineFixture) stubNoExemptions() {
	f.exemptions.On("ListCandidates", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]domain.TaxExemption{}, nil)
}

func (f *engineFixture) capturedCalc() **domain.TaxCalculation {
	var captured *domain.TaxCalculation
	f.calcs.On("Create", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			captured = args.Get(1).(*domain.TaxCalculation)
		}).Return(nil)
	return &captured
}

func TestCalculate_CompoundBreakdown(t *testing.T) {
	f := newEngineFixture()
	f.stubExactResolution()
	f.stubNoExemptions()
	captured := f.capturedCalc()

	simple := domain.TaxRate{
		ID: uuid.New(), JurisdictionID: f.stateID,
		TaxType: "sales", TaxName: "IL State Sales Tax",
		RateType: domain.RatePercentage, PercentageRate: decimal.NewFromFloat(0.05),
		Priority: 1,
	}
	compound := domain.TaxRate{
		ID: uuid.New(), JurisdictionID: f.cityID,
		TaxType: "utility", TaxName: "Springfield Utility Tax",
		RateType: domain.RatePercentage, PercentageRate: decimal.NewFromFloat(0.02),
		IsCompound: true, Priority: 1,
	}
	f.rateRepo.On("ListActive", mock.Anything, []uuid.UUID{f.stateID, f.cityID}, "voip", "telecom", engineNow).
		Return([]domain.TaxRate{compound, simple}, nil)

	calc, err := f.engine.Calculate(context.Background(), engineInput(f))
	require.NoError(t, err)
	require.NotNil(t, *captured)

	// 5% of 100 plus 2% of (100 + 5) is 5.00 + 2.10.
	assert.True(t, calc.TotalTax.Equal(decimal.NewFromFloat(7.10)), "got %s", calc.TotalTax)
	assert.True(t, calc.FinalAmount.Equal(decimal.NewFromFloat(107.10)), "got %s", calc.FinalAmount)
	assert.True(t, calc.EffectiveRate.Equal(decimal.NewFromFloat(0.071)), "got %s", calc.EffectiveRate)
	assert.Equal(t, domain.ResolutionExact, calc.ResolutionMethod)
	assert.False(t, calc.NeedsReview)
	assert.False(t, calc.NoRateFound)
	assert.Equal(t, domain.CalculationPending, calc.Status)
	assert.Regexp(t, `^calc_[0-9a-f-]{36}$`, calc.CalculationID)

	lines, err := calc.DecodeBreakdown()
	require.NoError(t, err)
	require.Len(t, lines, 2)

	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.TaxAmount)
	}
	assert.True(t, sum.Equal(calc.TotalTax), "breakdown sums to %s, total is %s", sum, calc.TotalTax)
	assert.Equal(t, "IL", lines[0].JurisdictionCode)
	assert.False(t, lines[0].IsCompound)
	assert.Equal(t, "SPR", lines[1].JurisdictionCode)
	assert.True(t, lines[1].IsCompound)
	assert.True(t, lines[1].TaxableBase.Equal(decimal.NewFromInt(105)))

	history, err := calc.DecodeStatusHistory()
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.CalculationPending, history[0].To)
	assert.Equal(t, "engine", history[0].Actor)
}

func TestCalculate_TaxGrowsWithBase(t *testing.T) {
	f := newEngineFixture()
	f.stubExactResolution()
	f.stubNoExemptions()
	f.capturedCalc()

	rate := domain.TaxRate{
		ID: uuid.New(), JurisdictionID: f.stateID,
		TaxType: "sales", RateType: domain.RatePercentage,
		PercentageRate: decimal.NewFromFloat(0.0725),
	}
	f.rateRepo.On("ListActive", mock.Anything, mock.Anything, "voip", "telecom", engineNow).
		Return([]domain.TaxRate{rate}, nil)

	small := engineInput(f)
	large := engineInput(f)
	large.BaseAmount = decimal.NewFromInt(500)

	calcSmall, err := f.engine.Calculate(context.Background(), small)
	require.NoError(t, err)
	calcLarge, err := f.engine.Calculate(context.Background(), large)
	require.NoError(t, err)

	assert.True(t, calcLarge.TotalTax.GreaterThan(calcSmall.TotalTax))
}

func TestCalculate_UnresolvedFlagsReview(t *testing.T) {
	f := newEngineFixture()
	f.stubNoExemptions()
	f.capturedCalc()

	f.ranges.On("FindCandidates", mock.Anything, "IL", "62704", "MAIN", 123).
		Return([]domain.AddressRange{}, nil)
	f.patterns.On("BestMatch", mock.Anything, mock.Anything).Return(nil, domain.ErrNotFound)
	f.cacheRepo.On("Get", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, domain.ErrNotFound)
	f.jurisdictions.On("StateByCode", mock.Anything, "IL").
		Return(&domain.Jurisdiction{ID: f.stateID, Code: "IL"}, nil)
	f.jurisdictions.On("ListByIDs", mock.Anything, []uuid.UUID{f.stateID}).
		Return([]domain.Jurisdiction{{ID: f.stateID, Code: "IL"}}, nil)
	f.rateRepo.On("ListActive", mock.Anything, []uuid.UUID{f.stateID}, "voip", "telecom", engineNow).
		Return([]domain.TaxRate{}, nil)

	calc, err := f.engine.Calculate(context.Background(), engineInput(f))
	require.NoError(t, err)

	assert.Equal(t, domain.ResolutionUnresolved, calc.ResolutionMethod)
	assert.True(t, calc.TotalTax.IsZero())
	assert.True(t, calc.NeedsReview)
	assert.False(t, calc.NoRateFound)
	assert.True(t, calc.FinalAmount.Equal(calc.BaseAmount))
}

func TestCalculate_NoRateFoundFlagsReview(t *testing.T) {
	f := newEngineFixture()
	f.stubExactResolution()
	f.stubNoExemptions()
	f.capturedCalc()

	f.rateRepo.On("ListActive", mock.Anything, mock.Anything, "voip", "telecom", engineNow).
		Return([]domain.TaxRate{}, nil)

	calc, err := f.engine.Calculate(context.Background(), engineInput(f))
	require.NoError(t, err)

	assert.True(t, calc.NoRateFound)
	assert.True(t, calc.NeedsReview)
	assert.True(t, calc.TotalTax.IsZero())
}

func TestCalculate_TieredRateFlagsReview(t *testing.T) {
	f := newEngineFixture()
	f.stubExactResolution()
	f.stubNoExemptions()
	f.capturedCalc()

	tiered := domain.TaxRate{
		ID: uuid.New(), JurisdictionID: f.stateID,
		TaxType: "e911", RateType: domain.RateTiered,
	}
	f.rateRepo.On("ListActive", mock.Anything, mock.Anything, "voip", "telecom", engineNow).
		Return([]domain.TaxRate{tiered}, nil)

	calc, err := f.engine.Calculate(context.Background(), engineInput(f))
	require.NoError(t, err)

	assert.True(t, calc.NeedsReview)
	assert.True(t, calc.TotalTax.IsZero())
}

func TestCalculate_BlanketExemptionZeroesTax(t *testing.T) {
	f := newEngineFixture()
	f.stubExactResolution()
	f.capturedCalc()

	rate := domain.TaxRate{
		ID: uuid.New(), JurisdictionID: f.stateID,
		TaxType: "sales", RateType: domain.RatePercentage,
		PercentageRate: decimal.NewFromFloat(0.05),
	}
	f.rateRepo.On("ListActive", mock.Anything, mock.Anything, "voip", "telecom", engineNow).
		Return([]domain.TaxRate{rate}, nil)

	blanket := domain.TaxExemption{
		ID:            uuid.New(),
		ExemptionType: "nonprofit",
		IsBlanket:     true,
		Status:        domain.ExemptionActive,
		EffectiveDate: engineNow.AddDate(-1, 0, 0),
	}
	f.exemptions.On("ListCandidates", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]domain.TaxExemption{blanket}, nil)

	calc, err := f.engine.Calculate(context.Background(), engineInput(f))
	require.NoError(t, err)

	assert.True(t, calc.TotalTax.IsZero())

	var applied []domain.AppliedExemption
	require.NoError(t, json.Unmarshal(calc.AppliedExemptions, &applied))
	require.Len(t, applied, 1)
	assert.Equal(t, blanket.ID, applied[0].ExemptionID)
	assert.True(t, applied[0].AmountExempted.Equal(decimal.NewFromInt(5)))
}

func TestCalculate_RejectsMalformedInput(t *testing.T) {
	f := newEngineFixture()

	in := engineInput(f)
	in.BaseAmount = decimal.NewFromInt(-1)
	_, err := f.engine.Calculate(context.Background(), in)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	in = engineInput(f)
	in.Quantity = decimal.Zero
	_, err = f.engine.Calculate(context.Background(), in)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	in = engineInput(f)
	in.Calculable.Kind = "subscription"
	_, err = f.engine.Calculate(context.Background(), in)
	assert.ErrorIs(t, err, domain.ErrInvalidCalculableType)
}

func TestRecalculate_LinksAndSupersedes(t *testing.T) {
	f := newEngineFixture()
	f.stubExactResolution()
	f.stubNoExemptions()
	captured := f.capturedCalc()

	tenantID := uuid.New()
	addrJSON, _ := json.Marshal(engineAddr)
	prev := &domain.TaxCalculation{
		ID:             uuid.New(),
		CalculationID:  "calc_" + uuid.NewString(),
		TenantID:       tenantID,
		CalculableType: domain.CalculableInvoiceLine,
		CalculableID:   uuid.New(),
		ClientID:       uuid.New(),
		ServiceType:    "voip",
		TaxCategory:    "telecom",
		BaseAmount:     decimal.NewFromInt(100),
		Quantity:       decimal.NewFromInt(1),
		AsOfDate:       engineNow,
		Address:        addrJSON,
		Status:         domain.CalculationPending,
	}
	f.calcs.On("GetByCalculationID", mock.Anything, tenantID, prev.CalculationID).Return(prev, nil)
	f.calcs.On("MarkSuperseded", mock.Anything, tenantID, prev.CalculationID, mock.Anything).Return(nil)

	rate := domain.TaxRate{
		ID: uuid.New(), JurisdictionID: f.stateID,
		TaxType: "sales", RateType: domain.RatePercentage,
		PercentageRate: decimal.NewFromFloat(0.05),
	}
	f.rateRepo.On("ListActive", mock.Anything, mock.Anything, "voip", "telecom", engineNow).
		Return([]domain.TaxRate{rate}, nil)

	next, err := f.engine.Recalculate(context.Background(), tenantID, prev.CalculationID)
	require.NoError(t, err)
	require.NotNil(t, *captured)

	assert.NotEqual(t, prev.CalculationID, next.CalculationID)
	require.NotNil(t, next.SupersedesID)
	assert.Equal(t, prev.ID, *next.SupersedesID)
	f.calcs.AssertCalled(t, "MarkSuperseded", mock.Anything, tenantID, prev.CalculationID, next.CalculationID)
}

func TestRecalculate_ValidatedIsTerminal(t *testing.T) {
	f := newEngineFixture()
	tenantID := uuid.New()
	prev := &domain.TaxCalculation{
		CalculationID: "calc_" + uuid.NewString(),
		TenantID:      tenantID,
		Status:        domain.CalculationValidated,
	}
	f.calcs.On("GetByCalculationID", mock.Anything, tenantID, prev.CalculationID).Return(prev, nil)

	_, err := f.engine.Recalculate(context.Background(), tenantID, prev.CalculationID)
	assert.ErrorIs(t, err, domain.ErrInvalidStatusTransition)
}
