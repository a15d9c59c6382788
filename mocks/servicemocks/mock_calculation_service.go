package servicemocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"taxatlas/internal/domain"
	"taxatlas/internal/port"
	"taxatlas/internal/service"
)

// MockCalculationService is a mock implementation of service.CalculationService.
type MockCalculationService struct {
	mock.Mock
}

func (m *MockCalculationService) Calculate(ctx context.Context, tenantID uuid.UUID, input service.CalculateInput) (*domain.TaxCalculation, error) {
	args := m.Called(ctx, tenantID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TaxCalculation), args.Error(1)
}

func (m *MockCalculationService) GetByID(ctx context.Context, tenantID uuid.UUID, calculationID string) (*domain.TaxCalculation, error) {
	args := m.Called(ctx, tenantID, calculationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TaxCalculation), args.Error(1)
}

func (m *MockCalculationService) List(ctx context.Context, tenantID uuid.UUID, filter port.CalculationListFilter, offset, limit int) ([]domain.TaxCalculation, int, error) {
	args := m.Called(ctx, tenantID, filter, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.TaxCalculation), args.Int(1), args.Error(2)
}

func (m *MockCalculationService) Validate(ctx context.Context, tenantID uuid.UUID, calculationID string, input service.ReviewInput) (*domain.TaxCalculation, error) {
	args := m.Called(ctx, tenantID, calculationID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TaxCalculation), args.Error(1)
}

func (m *MockCalculationService) Dispute(ctx context.Context, tenantID uuid.UUID, calculationID string, input service.ReviewInput) (*domain.TaxCalculation, error) {
	args := m.Called(ctx, tenantID, calculationID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TaxCalculation), args.Error(1)
}

func (m *MockCalculationService) Recalculate(ctx context.Context, tenantID uuid.UUID, calculationID string) (*domain.TaxCalculation, error) {
	args := m.Called(ctx, tenantID, calculationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TaxCalculation), args.Error(1)
}
