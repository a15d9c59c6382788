package service

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
	"taxatlas/internal/engine"
	"taxatlas/internal/exemption"
	"taxatlas/internal/learner"
	"taxatlas/internal/lookup"
	"taxatlas/internal/rates"
	"taxatlas/mocks"
)

func pendingCalculation(tenantID uuid.UUID) *domain.TaxCalculation {
	history, _ := json.Marshal([]domain.StatusEvent{{
		To:         domain.CalculationPending,
		Actor:      "engine",
		OccurredAt: time.Now().UTC(),
	}})
	return &domain.TaxCalculation{
		ID:            uuid.New(),
		CalculationID: "calc_" + uuid.NewString(),
		TenantID:      tenantID,
		Status:        domain.CalculationPending,
		StatusHistory: history,
		NeedsReview:   true,
	}
}

func TestValidate_AppendsHistoryAndClearsReview(t *testing.T) {
	repo := new(mocks.MockCalculationRepo)
	svc := NewCalculationService(nil, repo, nil, "")

	tenantID := uuid.New()
	userID := uuid.New()
	calc := pendingCalculation(tenantID)
	repo.On("GetByCalculationID", mock.Anything, tenantID, calc.CalculationID).Return(calc, nil)
	repo.On("UpdateStatus", mock.Anything, calc).Return(nil)

	got, err := svc.Validate(context.Background(), tenantID, calc.CalculationID, ReviewInput{
		UserID: userID,
		Notes:  "checked against rate sheet",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.CalculationValidated, got.Status)
	assert.False(t, got.NeedsReview)
	require.NotNil(t, got.ValidatedBy)
	assert.Equal(t, userID, *got.ValidatedBy)
	assert.NotNil(t, got.ValidatedAt)
	assert.Equal(t, "checked against rate sheet", got.ValidationNotes)

	events, err := got.DecodeStatusHistory()
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.CalculationPending, events[1].From)
	assert.Equal(t, domain.CalculationValidated, events[1].To)
	assert.Equal(t, userID.String(), events[1].Actor)
	repo.AssertExpectations(t)
}

func TestDispute_ThenValidateIsRejected(t *testing.T) {
	repo := new(mocks.MockCalculationRepo)
	svc := NewCalculationService(nil, repo, nil, "")

	tenantID := uuid.New()
	calc := pendingCalculation(tenantID)
	repo.On("GetByCalculationID", mock.Anything, tenantID, calc.CalculationID).Return(calc, nil)
	repo.On("UpdateStatus", mock.Anything, calc).Return(nil)

	_, err := svc.Dispute(context.Background(), tenantID, calc.CalculationID, ReviewInput{UserID: uuid.New()})
	require.NoError(t, err)
	assert.Equal(t, domain.CalculationDisputed, calc.Status)

	// A disputed calculation must be recalculated, not validated directly.
	_, err = svc.Validate(context.Background(), tenantID, calc.CalculationID, ReviewInput{UserID: uuid.New()})
	assert.ErrorIs(t, err, domain.ErrInvalidStatusTransition)
}

func TestValidate_TerminalStatusRejected(t *testing.T) {
	repo := new(mocks.MockCalculationRepo)
	svc := NewCalculationService(nil, repo, nil, "")

	tenantID := uuid.New()
	calc := pendingCalculation(tenantID)
	calc.Status = domain.CalculationSuperseded
	repo.On("GetByCalculationID", mock.Anything, tenantID, calc.CalculationID).Return(calc, nil)

	_, err := svc.Validate(context.Background(), tenantID, calc.CalculationID, ReviewInput{UserID: uuid.New()})
	assert.ErrorIs(t, err, domain.ErrInvalidStatusTransition)
	repo.AssertNotCalled(t, "UpdateStatus")
}

func TestCalculate_SendsReviewNotification(t *testing.T) {
	ranges := new(mocks.MockAddressRangeRepo)
	jurisdictions := new(mocks.MockJurisdictionRepo)
	patterns := new(mocks.MockPatternRepo)
	cacheRepo := new(mocks.MockQueryCacheRepo)
	rateRepo := new(mocks.MockRateRepo)
	exemptions := new(mocks.MockExemptionRepo)
	calcs := new(mocks.MockCalculationRepo)
	email := new(mocks.MockEmailSender)

	resolver := address.NewResolver(ranges, jurisdictions, learner.New(patterns, decimal.Zero), lookup.New(cacheRepo, nil, time.Hour, 2), address.Config{})
	eng := engine.New(resolver, rates.NewCatalog(rateRepo, nil), exemption.NewEvaluator(exemptions), calcs, jurisdictions, decimal.Zero)
	svc := NewCalculationService(eng, calcs, email, "tax-review@example.com")

	stateID := uuid.New()
	// Nothing matches the address, so the calculation lands in review.
	ranges.On("FindCandidates", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]domain.AddressRange{}, nil)
	patterns.On("BestMatch", mock.Anything, mock.Anything).Return(nil, domain.ErrNotFound)
	cacheRepo.On("Get", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, domain.ErrNotFound)
	jurisdictions.On("StateByCode", mock.Anything, "IL").
		Return(&domain.Jurisdiction{ID: stateID, Code: "IL"}, nil)
	jurisdictions.On("ListByIDs", mock.Anything, mock.Anything).
		Return([]domain.Jurisdiction{{ID: stateID, Code: "IL"}}, nil)
	rateRepo.On("ListActive", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]domain.TaxRate{}, nil)
	exemptions.On("ListCandidates", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]domain.TaxExemption{}, nil)
	calcs.On("Create", mock.Anything, mock.Anything).Return(nil)
	email.On("SendReviewNotification", mock.Anything, "tax-review@example.com", mock.Anything, "unresolved").
		Return(nil)

	calc, err := svc.Calculate(context.Background(), uuid.New(), CalculateInput{
		CalculableType: string(domain.CalculableInvoiceLine),
		CalculableID:   uuid.New(),
		ClientID:       uuid.New(),
		BaseAmount:     decimal.NewFromInt(100),
		Quantity:       decimal.NewFromInt(1),
		ServiceType:    "voip",
		TaxCategory:    "telecom",
		Address: domain.ServiceAddress{
			Street:    "9 Nowhere Ln",
			StateCode: "IL",
			Zip:       "60601",
		},
	})
	require.NoError(t, err)
	assert.True(t, calc.NeedsReview)
	email.AssertExpectations(t)
}
