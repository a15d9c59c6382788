package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"taxatlas/internal/domain"
	"taxatlas/internal/port"
)

// MockCalculationRepo is a mock implementation of port.CalculationRepository.
type MockCalculationRepo struct {
	mock.Mock
}

func (m *MockCalculationRepo) Create(ctx context.Context, calc *domain.TaxCalculation) error {
	args := m.Called(ctx, calc)
	return args.Error(0)
}

func (m *MockCalculationRepo) GetByCalculationID(ctx context.Context, tenantID uuid.UUID, calculationID string) (*domain.TaxCalculation, error) {
	args := m.Called(ctx, tenantID, calculationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TaxCalculation), args.Error(1)
}

func (m *MockCalculationRepo) List(ctx context.Context, tenantID uuid.UUID, filter port.CalculationListFilter, offset, limit int) ([]domain.TaxCalculation, int, error) {
	args := m.Called(ctx, tenantID, filter, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.TaxCalculation), args.Int(1), args.Error(2)
}

func (m *MockCalculationRepo) UpdateStatus(ctx context.Context, calc *domain.TaxCalculation) error {
	args := m.Called(ctx, calc)
	return args.Error(0)
}

func (m *MockCalculationRepo) MarkSuperseded(ctx context.Context, tenantID uuid.UUID, calculationID string, successorID string) error {
	args := m.Called(ctx, tenantID, calculationID, successorID)
	return args.Error(0)
}
