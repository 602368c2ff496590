package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"flock/internal/domain"
	"flock/internal/repository"
	"flock/internal/storage"
)

const minPasswordLength = 6

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// SignupInput carries the fields required to register an account.
type SignupInput struct {
	FullName string
	Username string
	Email    string
	Password string
}

// ProfileUpdate is a merge patch over the caller's own profile. Scalar fields
// apply only when non-empty; a password change needs CurrentPassword and
// NewPassword together; image blobs go to the media store.
type ProfileUpdate struct {
	FullName        string
	Username        string
	Email           string
	Bio             string
	Link            string
	CurrentPassword string
	NewPassword     string
	ProfileImage    []byte
	CoverImage      []byte
}

// AccountService describes account lifecycle operations. All returned users
// are public projections: the password hash is always blanked.
type AccountService interface {
	Signup(ctx context.Context, in SignupInput) (*domain.User, error)
	Login(ctx context.Context, username, password string) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	UpdateProfile(ctx context.Context, userID int64, update ProfileUpdate) (*domain.User, error)
}

type accountService struct {
	users  repository.UserRepository
	media  storage.MediaStore
	logger *logrus.Logger
}

func NewAccountService(users repository.UserRepository, media storage.MediaStore, logger *logrus.Logger) AccountService {
	if logger == nil {
		logger = logrus.New()
	}
	return &accountService{
		users:  users,
		media:  media,
		logger: logger,
	}
}

func (s *accountService) Signup(ctx context.Context, in SignupInput) (*domain.User, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)

	if in.Username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	if !emailPattern.MatchString(in.Email) {
		return nil, fmt.Errorf("%w: invalid email format", ErrInvalidInput)
	}
	if len(in.Password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}

	// Two independent existence checks; the unique constraints in the store
	// backstop the race between these checks and the insert below.
	if _, err := s.users.GetByUsername(ctx, in.Username); err == nil {
		return nil, fmt.Errorf("username %w", ErrConflict)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if _, err := s.users.GetByEmail(ctx, in.Email); err == nil {
		return nil, fmt.Errorf("email %w", ErrConflict)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: string(hash),
		FullName:     in.FullName,
		Followers:    []int64{},
		Following:    []int64{},
	}

	if _, err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("username or email %w", ErrConflict)
		}
		return nil, err
	}

	return sanitizeUser(user), nil
}

func (s *accountService) Login(ctx context.Context, username, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	// Compare against an empty hash when the user is absent so that a missing
	// username and a wrong password are indistinguishable to the caller.
	storedHash := ""
	if user != nil {
		storedHash = user.PasswordHash
	}
	if bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(password)) != nil || user == nil {
		return nil, ErrInvalidCredentials
	}

	return sanitizeUser(user), nil
}

func (s *accountService) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return sanitizeUser(user), nil
}

func (s *accountService) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return sanitizeUser(user), nil
}

func (s *accountService) UpdateProfile(ctx context.Context, userID int64, update ProfileUpdate) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if (update.CurrentPassword == "") != (update.NewPassword == "") {
		return nil, fmt.Errorf("%w: current and new password must be provided together", ErrInvalidInput)
	}

	patch := domain.UserPatch{
		FullName: strings.TrimSpace(update.FullName),
		Username: strings.TrimSpace(update.Username),
		Email:    strings.TrimSpace(update.Email),
		Bio:      update.Bio,
		Link:     update.Link,
	}

	if patch.Email != "" && !emailPattern.MatchString(patch.Email) {
		return nil, fmt.Errorf("%w: invalid email format", ErrInvalidInput)
	}

	if update.NewPassword != "" {
		if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(update.CurrentPassword)) != nil {
			return nil, ErrInvalidCredentials
		}
		if len(update.NewPassword) < minPasswordLength {
			return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(update.NewPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		patch.PasswordHash = string(hash)
	}

	patch.ProfileImage = s.replaceImage(ctx, update.ProfileImage, user.ProfileImage)
	patch.CoverImage = s.replaceImage(ctx, update.CoverImage, user.CoverImage)

	if err := s.users.UpdateFields(ctx, userID, patch); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("username or email %w", ErrConflict)
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	updated, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return sanitizeUser(updated), nil
}

// replaceImage uploads a new blob and deletes the previous asset. Media store
// failures are non-fatal to the rest of the profile update: they only log.
func (s *accountService) replaceImage(ctx context.Context, blob []byte, oldRef string) string {
	if len(blob) == 0 {
		return ""
	}
	if s.media == nil {
		s.logger.Warn("media store not configured, dropping image upload")
		return ""
	}

	ref, err := s.media.Upload(ctx, blob)
	if err != nil {
		s.logger.Warnf("upload image: %v", err)
		return ""
	}
	if oldRef != "" {
		if err := s.media.Delete(ctx, oldRef); err != nil {
			s.logger.Warnf("delete previous image %s: %v", oldRef, err)
		}
	}
	return ref
}

func sanitizeUser(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	clone := *user
	clone.PasswordHash = ""
	return &clone
}
