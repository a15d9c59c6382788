package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"taxatlas/internal/domain"
)

// MockQueryCacheRepo is a mock implementation of port.QueryCacheRepository.
type MockQueryCacheRepo struct {
	mock.Mock
}

func (m *MockQueryCacheRepo) Get(ctx context.Context, provider, queryType, queryHash string) (*domain.ExternalQueryCacheEntry, error) {
	args := m.Called(ctx, provider, queryType, queryHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ExternalQueryCacheEntry), args.Error(1)
}

func (m *MockQueryCacheRepo) Upsert(ctx context.Context, entry *domain.ExternalQueryCacheEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockQueryCacheRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}
