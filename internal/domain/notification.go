package domain

import "time"

// NotificationTypeFollow is the only notification kind emitted here.
const NotificationTypeFollow = "follow"

// Notification records a social event directed at a user.
type Notification struct {
	ID        int64
	Type      string
	FromID    int64
	ToID      int64
	CreatedAt time.Time
}
