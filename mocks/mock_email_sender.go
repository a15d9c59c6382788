package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockEmailSender is a mock implementation of port.EmailSender.
type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) SendReviewNotification(ctx context.Context, toEmail, calculationID, reason string) error {
	args := m.Called(ctx, toEmail, calculationID, reason)
	return args.Error(0)
}
