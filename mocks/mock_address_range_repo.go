package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"taxatlas/internal/domain"
)

// MockAddressRangeRepo is a mock implementation of port.AddressRangeRepository.
type MockAddressRangeRepo struct {
	mock.Mock
}

func (m *MockAddressRangeRepo) FindCandidates(ctx context.Context, stateCode, zip, streetName string, houseNumber int) ([]domain.AddressRange, error) {
	args := m.Called(ctx, stateCode, zip, streetName, houseNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.AddressRange), args.Error(1)
}

func (m *MockAddressRangeRepo) ReplaceSource(ctx context.Context, sourceID string, ranges []domain.AddressRange) error {
	args := m.Called(ctx, sourceID, ranges)
	return args.Error(0)
}
