package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"taxatlas/internal/domain"
)

// MockRateRepo is a mock implementation of port.RateRepository.
type MockRateRepo struct {
	mock.Mock
}

func (m *MockRateRepo) ListActive(ctx context.Context, jurisdictionIDs []uuid.UUID, serviceType, taxCategory string, asOf time.Time) ([]domain.TaxRate, error) {
	args := m.Called(ctx, jurisdictionIDs, serviceType, taxCategory, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.TaxRate), args.Error(1)
}

func (m *MockRateRepo) ListByJurisdiction(ctx context.Context, jurisdictionID uuid.UUID, asOf time.Time) ([]domain.TaxRate, error) {
	args := m.Called(ctx, jurisdictionID, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.TaxRate), args.Error(1)
}
