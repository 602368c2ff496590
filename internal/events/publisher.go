package events

import "context"

// Publisher fans follow events out to interested consumers. Implementations
// are fire-and-forget from the graph service's perspective.
type Publisher interface {
	PublishFollow(ctx context.Context, fromID, toID int64) error
	Close() error
}
