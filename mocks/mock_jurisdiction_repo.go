package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"taxatlas/internal/domain"
)

// MockJurisdictionRepo is a mock implementation of port.JurisdictionRepository.
type MockJurisdictionRepo struct {
	mock.Mock
}

func (m *MockJurisdictionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Jurisdiction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Jurisdiction), args.Error(1)
}

func (m *MockJurisdictionRepo) GetByCode(ctx context.Context, stateCode, code string) (*domain.Jurisdiction, error) {
	args := m.Called(ctx, stateCode, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Jurisdiction), args.Error(1)
}

func (m *MockJurisdictionRepo) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Jurisdiction, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Jurisdiction), args.Error(1)
}

func (m *MockJurisdictionRepo) ListByState(ctx context.Context, stateCode string) ([]domain.Jurisdiction, error) {
	args := m.Called(ctx, stateCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Jurisdiction), args.Error(1)
}

func (m *MockJurisdictionRepo) StateByCode(ctx context.Context, stateCode string) (*domain.Jurisdiction, error) {
	args := m.Called(ctx, stateCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Jurisdiction), args.Error(1)
}
