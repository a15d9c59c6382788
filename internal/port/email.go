package port

import "context"

// EmailSender defines the contract for review-queue notifications.
type EmailSender interface {
	SendReviewNotification(ctx context.Context, toEmail, calculationID, reason string) error
}
