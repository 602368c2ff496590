package repository

import (
	"context"
	"errors"

	"flock/internal/domain"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique constraint (username, email) is violated.
	ErrDuplicate = errors.New("duplicate record")
)

// RelationField names one of the two denormalized follow-graph sets on a user.
type RelationField string

const (
	RelationFollowers RelationField = "followers"
	RelationFollowing RelationField = "following"
)

// UserRepository defines persistence operations for User entities and their
// relationship sets. AddToSet and RemoveFromSet must behave as true set
// operations: adding an id twice is a no-op, as is removing an absent id.
type UserRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, user *domain.User) (int64, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdateFields(ctx context.Context, id int64, patch domain.UserPatch) error
	AddToSet(ctx context.Context, id int64, field RelationField, value int64) error
	RemoveFromSet(ctx context.Context, id int64, field RelationField, value int64) error
	SampleExcluding(ctx context.Context, excludeID int64, n int) ([]domain.User, error)
}
