package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"flock/internal/domain"
	"flock/internal/repository"
)

const createNotificationsTable = `
CREATE TABLE IF NOT EXISTS notifications (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	type TEXT NOT NULL,
	from_id INTEGER NOT NULL,
	to_id INTEGER NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notifications_to_id ON notifications (to_id);
`

type NotificationRepository struct {
	db *sql.DB
}

func NewNotificationRepository(db *sql.DB) repository.NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createNotificationsTable); err != nil {
		return fmt.Errorf("create notifications table: %w", err)
	}
	return nil
}

func (r *NotificationRepository) Create(ctx context.Context, n *domain.Notification) (int64, error) {
	n.CreatedAt = time.Now().UTC()

	res, err := r.db.ExecContext(ctx, `
INSERT INTO notifications (type, from_id, to_id, created_at)
VALUES (?, ?, ?, ?)`,
		n.Type,
		n.FromID,
		n.ToID,
		n.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert notification: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("notification last insert id: %w", err)
	}
	n.ID = id
	return id, nil
}

func (r *NotificationRepository) ListByUser(ctx context.Context, toID int64) ([]domain.Notification, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, type, from_id, to_id, created_at
FROM notifications
WHERE to_id = ?
ORDER BY created_at DESC, id DESC`,
		toID,
	)
	if err != nil {
		return nil, fmt.Errorf("list notifications for user %d: %w", toID, err)
	}
	defer rows.Close()

	notifications := []domain.Notification{}
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.Type, &n.FromID, &n.ToID, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list notifications for user %d: %w", toID, err)
	}
	return notifications, nil
}
