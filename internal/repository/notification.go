package repository

import (
	"context"

	"flock/internal/domain"
)

// NotificationRepository persists follow notifications.
type NotificationRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, n *domain.Notification) (int64, error)
	ListByUser(ctx context.Context, toID int64) ([]domain.Notification, error)
}
