package servicemocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"taxatlas/internal/domain"
	"taxatlas/internal/service"
)

// MockExemptionService is a mock implementation of service.ExemptionService.
type MockExemptionService struct {
	mock.Mock
}

func (m *MockExemptionService) Create(ctx context.Context, tenantID uuid.UUID, input service.CreateExemptionInput, cert *service.CertificateUpload) (*domain.TaxExemption, error) {
	args := m.Called(ctx, tenantID, input, cert)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TaxExemption), args.Error(1)
}

func (m *MockExemptionService) ListByClient(ctx context.Context, tenantID, clientID uuid.UUID, offset, limit int) ([]domain.TaxExemption, int, error) {
	args := m.Called(ctx, tenantID, clientID, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.TaxExemption), args.Int(1), args.Error(2)
}

func (m *MockExemptionService) Revoke(ctx context.Context, tenantID, id uuid.UUID) error {
	args := m.Called(ctx, tenantID, id)
	return args.Error(0)
}

func (m *MockExemptionService) ExpireOutdated(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}
