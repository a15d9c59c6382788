package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"taxatlas/internal/domain"
)

// MockExemptionRepo is a mock implementation of port.ExemptionRepository.
type MockExemptionRepo struct {
	mock.Mock
}

func (m *MockExemptionRepo) Create(ctx context.Context, e *domain.TaxExemption) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *MockExemptionRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.TaxExemption, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TaxExemption), args.Error(1)
}

func (m *MockExemptionRepo) ListCandidates(ctx context.Context, tenantID uuid.UUID, clientID uuid.UUID, jurisdictionIDs []uuid.UUID, taxCategory string, asOf time.Time) ([]domain.TaxExemption, error) {
	args := m.Called(ctx, tenantID, clientID, jurisdictionIDs, taxCategory, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.TaxExemption), args.Error(1)
}

func (m *MockExemptionRepo) ListByClient(ctx context.Context, tenantID, clientID uuid.UUID, offset, limit int) ([]domain.TaxExemption, int, error) {
	args := m.Called(ctx, tenantID, clientID, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.TaxExemption), args.Int(1), args.Error(2)
}

func (m *MockExemptionRepo) UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, status domain.ExemptionStatus) error {
	args := m.Called(ctx, tenantID, id, status)
	return args.Error(0)
}

func (m *MockExemptionRepo) ExpireOutdated(ctx context.Context, asOf time.Time) (int64, error) {
	args := m.Called(ctx, asOf)
	return args.Get(0).(int64), args.Error(1)
}
