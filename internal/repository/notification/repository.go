package notification

import (
	"context"

	"heavenly-backend/internal/domain"
)

type CreateInput struct {
	Recipient   domain.Recipient
	OrderID     string
	Message     string
	StatusLabel string
}

type Repository interface {
	Create(ctx context.Context, in CreateInput) (*domain.Notification, error)
	// ListByRecipient returns notifications newest first along with the
	// total count for pagination.
	ListByRecipient(ctx context.Context, rec domain.Recipient, page, limit int) ([]domain.Notification, int, error)
	// MarkRead flags one notification as read; the recipient scoping stops
	// users marking each other's notifications.
	MarkRead(ctx context.Context, id string, rec domain.Recipient) (*domain.Notification, error)
	MarkAllRead(ctx context.Context, rec domain.Recipient) (int64, error)
}
