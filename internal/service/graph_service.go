package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"flock/internal/domain"
	"flock/internal/events"
	"flock/internal/repository"
)

// suggestionPoolSize is the fixed random oversample drawn before filtering
// out already-followed users. It does not scale with the requested limit;
// heavy overlap with the following set can shorten the result.
const suggestionPoolSize = 10

// defaultSuggestionLimit caps the suggestion list when no limit is given.
const defaultSuggestionLimit = 4

// Transition reports which direction a FollowOrUnfollow call took.
type Transition string

const (
	TransitionFollowed   Transition = "followed"
	TransitionUnfollowed Transition = "unfollowed"
)

// GraphService owns follow-graph state transitions and suggestion sampling.
type GraphService interface {
	FollowOrUnfollow(ctx context.Context, actorID, targetID int64) (Transition, error)
	SuggestUsers(ctx context.Context, actorID int64, limit int) ([]domain.User, error)
	Notifications(ctx context.Context, userID int64) ([]domain.Notification, error)
}

type graphService struct {
	users         repository.UserRepository
	notifications repository.NotificationRepository
	publisher     events.Publisher
	logger        *logrus.Logger
}

// NewGraphService builds a graph service. publisher may be nil, in which case
// follow events are not fanned out beyond the notification record.
func NewGraphService(users repository.UserRepository, notifications repository.NotificationRepository, publisher events.Publisher, logger *logrus.Logger) GraphService {
	if logger == nil {
		logger = logrus.New()
	}
	return &graphService{
		users:         users,
		notifications: notifications,
		publisher:     publisher,
		logger:        logger,
	}
}

// FollowOrUnfollow toggles the relationship between actor and target. The two
// relationship sets live on two different user records and are written
// sequentially without a cross-record transaction; a crash between the writes
// leaves the graph asymmetric until the next toggle.
func (s *graphService) FollowOrUnfollow(ctx context.Context, actorID, targetID int64) (Transition, error) {
	if actorID == targetID {
		return "", fmt.Errorf("%w: cannot follow or unfollow yourself", ErrInvalidInput)
	}

	actor, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		return "", mapNotFound(err)
	}
	if _, err := s.users.GetByID(ctx, targetID); err != nil {
		return "", mapNotFound(err)
	}

	if actor.IsFollowing(targetID) {
		if err := s.users.RemoveFromSet(ctx, targetID, repository.RelationFollowers, actorID); err != nil {
			return "", err
		}
		if err := s.users.RemoveFromSet(ctx, actorID, repository.RelationFollowing, targetID); err != nil {
			return "", err
		}
		return TransitionUnfollowed, nil
	}

	if err := s.users.AddToSet(ctx, targetID, repository.RelationFollowers, actorID); err != nil {
		return "", err
	}
	if err := s.users.AddToSet(ctx, actorID, repository.RelationFollowing, targetID); err != nil {
		return "", err
	}

	// Side effects are best-effort: a failure here never rolls back the
	// relationship change.
	notification := &domain.Notification{
		Type:   domain.NotificationTypeFollow,
		FromID: actorID,
		ToID:   targetID,
	}
	if _, err := s.notifications.Create(ctx, notification); err != nil {
		s.logger.Warnf("record follow notification %d -> %d: %v", actorID, targetID, err)
	}
	if s.publisher != nil {
		if err := s.publisher.PublishFollow(ctx, actorID, targetID); err != nil {
			s.logger.Warnf("publish follow event %d -> %d: %v", actorID, targetID, err)
		}
	}

	return TransitionFollowed, nil
}

// SuggestUsers draws a fixed-size random pool excluding the actor, drops the
// users the actor already follows and truncates to limit. The shortfall when
// the pool overlaps the following set is part of the contract.
func (s *graphService) SuggestUsers(ctx context.Context, actorID int64, limit int) ([]domain.User, error) {
	if limit <= 0 {
		limit = defaultSuggestionLimit
	}

	actor, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		return nil, mapNotFound(err)
	}

	pool, err := s.users.SampleExcluding(ctx, actorID, suggestionPoolSize)
	if err != nil {
		return nil, err
	}

	suggested := make([]domain.User, 0, limit)
	for _, candidate := range pool {
		if candidate.ID == actorID || actor.IsFollowing(candidate.ID) {
			continue
		}
		candidate.PasswordHash = ""
		suggested = append(suggested, candidate)
		if len(suggested) == limit {
			break
		}
	}
	return suggested, nil
}

// Notifications lists follow notifications addressed to the given user,
// newest first.
func (s *graphService) Notifications(ctx context.Context, userID int64) ([]domain.Notification, error) {
	return s.notifications.ListByUser(ctx, userID)
}

func mapNotFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
