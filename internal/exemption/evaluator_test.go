package exemption

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

	"taxatlas/internal/domain"
	"taxatlas/mocks"
)

func activeExemption(opts func(*domain.TaxExemption)) domain.TaxExemption {
	ex := domain.TaxExemption{
		ID:            uuid.New(),
		TenantID:      uuid.New(),
		ExemptionType: "nonprofit",
		Status:        domain.ExemptionActive,
		EffectiveDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if opts != nil {
		opts(&ex)
	}
	return ex
}

func TestApplicable_FiltersInactiveAndScoped(t *testing.T) {
	repo := new(mocks.MockExemptionRepo)
	ev := NewEvaluator(repo)
	asOf := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	active := activeExemption(func(ex *domain.TaxExemption) { ex.IsBlanket = true })
	expired := activeExemption(func(ex *domain.TaxExemption) {
		exp := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
		ex.ExpiryDate = &exp
	})
	wrongService := activeExemption(func(ex *domain.TaxExemption) {
		ex.ApplicableServices = domain.StringSlice{"broadband"}
	})
	conditionMiss := activeExemption(func(ex *domain.TaxExemption) {
		ex.Conditions = json.RawMessage(`[{"field":"amount","op":"gt","value":1000}]`)
	})
	malformed := activeExemption(func(ex *domain.TaxExemption) {
		ex.Conditions = json.RawMessage(`[{"field":"amount","op":"like","value":1}]`)
	})

	repo.On("ListCandidates", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, asOf).
		Return([]domain.TaxExemption{active, expired, wrongService, conditionMiss, malformed}, nil)

	got, err := ev.Applicable(context.Background(), Input{
		TenantID:    uuid.New(),
		ClientID:    uuid.New(),
		ServiceType: "voip",
		AsOf:        asOf,
		Facts:       Facts{Amount: decimal.NewFromInt(100), ServiceType: "voip"},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, active.ID, got[0].ID)
}

func TestApply_BlanketZeroPctFullyExempts(t *testing.T) {
	ex := activeExemption(func(ex *domain.TaxExemption) { ex.IsBlanket = true })
	jur := uuid.New()
	lines := []TaxLine{{JurisdictionID: jur, TaxType: "sales", Tax: decimal.NewFromFloat(7.25)}}

	out, applied := Apply([]domain.TaxExemption{ex}, lines)
	require.Len(t, applied, 1)
	assert.True(t, out[0].Tax.IsZero())
	assert.True(t, out[0].Exempted.Equal(decimal.NewFromFloat(7.25)))
	assert.True(t, applied[0].IsBlanket)
	assert.True(t, applied[0].AmountExempted.Equal(decimal.NewFromFloat(7.25)))
}

func TestApply_ProportionalPercentage(t *testing.T) {
	ex := activeExemption(func(ex *domain.TaxExemption) {
		ex.ExemptionPct = decimal.NewFromInt(50)
	})
	jur := uuid.New()
	lines := []TaxLine{{JurisdictionID: jur, TaxType: "sales", Tax: decimal.NewFromInt(10)}}

	out, applied := Apply([]domain.TaxExemption{ex}, lines)
	require.Len(t, applied, 1)
	assert.True(t, out[0].Tax.Equal(decimal.NewFromInt(5)), "got %s", out[0].Tax)
	assert.True(t, out[0].Exempted.Equal(decimal.NewFromInt(5)))
}

func TestApply_MaxExemptionAmountCaps(t *testing.T) {
	cap := decimal.NewFromInt(2)
	ex := activeExemption(func(ex *domain.TaxExemption) {
		ex.ExemptionPct = decimal.NewFromInt(50)
		ex.MaxExemptionAmount = &cap
	})
	jur := uuid.New()
	lines := []TaxLine{{JurisdictionID: jur, TaxType: "sales", Tax: decimal.NewFromInt(10)}}

	out, applied := Apply([]domain.TaxExemption{ex}, lines)
	require.Len(t, applied, 1)
	assert.True(t, out[0].Tax.Equal(decimal.NewFromInt(8)), "got %s", out[0].Tax)
	assert.True(t, applied[0].AmountExempted.Equal(cap))
}

func TestApply_SameExemptionNotAppliedTwice(t *testing.T) {
	ex := activeExemption(func(ex *domain.TaxExemption) {
		ex.ExemptionPct = decimal.NewFromInt(50)
	})
	jur := uuid.New()
	lines := []TaxLine{{JurisdictionID: jur, TaxType: "sales", Tax: decimal.NewFromInt(10)}}

	// The same exemption presented twice must only reduce once.
	out, applied := Apply([]domain.TaxExemption{ex, ex}, lines)
	require.Len(t, applied, 1)
	assert.True(t, out[0].Tax.Equal(decimal.NewFromInt(5)), "got %s", out[0].Tax)
}

func TestApply_MostSpecificBlanketWins(t *testing.T) {
	jur := uuid.New()
	broad := activeExemption(func(ex *domain.TaxExemption) {
		ex.IsBlanket = true
		ex.ExemptionPct = decimal.NewFromInt(100)
	})
	narrow := activeExemption(func(ex *domain.TaxExemption) {
		ex.IsBlanket = true
		ex.JurisdictionID = &jur
		ex.ExemptionPct = decimal.NewFromInt(25)
	})
	lines := []TaxLine{{JurisdictionID: jur, TaxType: "sales", Tax: decimal.NewFromInt(100)}}

	out, applied := Apply([]domain.TaxExemption{broad, narrow}, lines)
	require.Len(t, applied, 1)
	assert.Equal(t, narrow.ID, applied[0].ExemptionID)
	assert.True(t, out[0].Tax.Equal(decimal.NewFromInt(75)), "got %s", out[0].Tax)
}

func TestApply_ConditionalTaxTypeGate(t *testing.T) {
	ex := activeExemption(func(ex *domain.TaxExemption) {
		ex.ExemptionPct = decimal.NewFromInt(100)
		ex.ApplicableTaxTypes = domain.StringSlice{"sales"}
	})
	salesJur, exciseJur := uuid.New(), uuid.New()
	lines := []TaxLine{
		{JurisdictionID: salesJur, TaxType: "sales", Tax: decimal.NewFromInt(10)},
		{JurisdictionID: exciseJur, TaxType: "excise", Tax: decimal.NewFromInt(10)},
	}

	out, applied := Apply([]domain.TaxExemption{ex}, lines)
	require.Len(t, applied, 1)
	assert.True(t, out[0].Tax.IsZero())
	assert.True(t, out[1].Tax.Equal(decimal.NewFromInt(10)))
}

func TestApply_NeverDrivesLineBelowZero(t *testing.T) {
	big := decimal.NewFromInt(500)
	first := activeExemption(func(ex *domain.TaxExemption) {
		ex.ExemptionPct = decimal.NewFromInt(90)
	})
	second := activeExemption(func(ex *domain.TaxExemption) {
		ex.ExemptionPct = decimal.NewFromInt(90)
		ex.MaxExemptionAmount = &big
	})
	jur := uuid.New()
	lines := []TaxLine{{JurisdictionID: jur, TaxType: "sales", Tax: decimal.NewFromInt(10)}}

	out, _ := Apply([]domain.TaxExemption{first, second}, lines)
	assert.False(t, out[0].Tax.IsNegative())
}

func TestApply_ScopedExemptionSkipsOtherJurisdictions(t *testing.T) {
	scoped := uuid.New()
	other := uuid.New()
	ex := activeExemption(func(e *domain.TaxExemption) {
		e.IsBlanket = true
		e.JurisdictionID = &scoped
	})
	lines := []TaxLine{
		{JurisdictionID: scoped, TaxType: "sales", Tax: decimal.NewFromInt(4)},
		{JurisdictionID: other, TaxType: "sales", Tax: decimal.NewFromInt(6)},
	}

	out, applied := Apply([]domain.TaxExemption{ex}, lines)
	require.Len(t, applied, 1)
	assert.True(t, out[0].Tax.IsZero())
	assert.True(t, out[1].Tax.Equal(decimal.NewFromInt(6)))
}
