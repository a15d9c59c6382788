package noop

import (
	"context"
	"log"

	"taxatlas/internal/port"
)

type noopSender struct{}

// NewNoopSender creates a no-op EmailSender that logs notifications to stdout.
func NewNoopSender() port.EmailSender {
	return noopSender{}
}

func (noopSender) SendReviewNotification(_ context.Context, toEmail, calculationID, reason string) error {
	log.Printf("[NOOP EMAIL] Review notification to %s for %s: %s", toEmail, calculationID, reason)
	return nil
}
