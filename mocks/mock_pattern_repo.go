package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"taxatlas/internal/domain"
	"taxatlas/internal/port"
)

// MockPatternRepo is a mock implementation of port.PatternRepository.
type MockPatternRepo struct {
	mock.Mock
}

func (m *MockPatternRepo) Create(ctx context.Context, p *domain.LearnedPattern) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockPatternRepo) GetByAuthority(ctx context.Context, authorityName string, authorityID uuid.UUID) (*domain.LearnedPattern, error) {
	args := m.Called(ctx, authorityName, authorityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LearnedPattern), args.Error(1)
}

func (m *MockPatternRepo) BestMatch(ctx context.Context, criteria port.PatternCriteria) (*domain.LearnedPattern, error) {
	args := m.Called(ctx, criteria)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LearnedPattern), args.Error(1)
}

func (m *MockPatternRepo) AdjustConfidence(ctx context.Context, authorityName string, authorityID uuid.UUID, outcome, alpha decimal.Decimal) (*domain.LearnedPattern, error) {
	args := m.Called(ctx, authorityName, authorityID, outcome, alpha)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LearnedPattern), args.Error(1)
}
