package sqlite_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flock/internal/domain"
	"flock/internal/repository"
	"flock/internal/repository/sqlite"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newUserRepo(t *testing.T) (repository.UserRepository, *sql.DB) {
	t.Helper()

	db := newTestDB(t)
	repo := sqlite.NewUserRepository(db)
	require.NoError(t, repo.Init(context.Background()))
	return repo, db
}

func mustCreateUser(t *testing.T, repo repository.UserRepository, username string) *domain.User {
	t.Helper()

	user := &domain.User{
		Username:     username,
		Email:        username + "@x.com",
		PasswordHash: "hashed-" + username,
		FullName:     "User " + username,
	}
	_, err := repo.Create(context.Background(), user)
	require.NoError(t, err)
	return user
}

func TestUserRepositoryCreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo, _ := newUserRepo(t)

	created := mustCreateUser(t, repo, "ana")
	require.NotZero(t, created.ID)

	byID, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "ana", byID.Username)
	assert.Equal(t, "ana@x.com", byID.Email)
	assert.Equal(t, "hashed-ana", byID.PasswordHash)
	assert.NotNil(t, byID.Followers)
	assert.NotNil(t, byID.Following)
	assert.Empty(t, byID.Followers)
	assert.Empty(t, byID.Following)

	byUsername, err := repo.GetByUsername(ctx, "ana")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byUsername.ID)

	byEmail, err := repo.GetByEmail(ctx, "ana@x.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)

	_, err = repo.GetByID(ctx, 9999)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = repo.GetByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUserRepositoryUniqueConstraints(t *testing.T) {
	ctx := context.Background()
	repo, _ := newUserRepo(t)

	mustCreateUser(t, repo, "ana")

	_, err := repo.Create(ctx, &domain.User{Username: "ana", Email: "other@x.com", PasswordHash: "h"})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	_, err = repo.Create(ctx, &domain.User{Username: "other", Email: "ana@x.com", PasswordHash: "h"})
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestUserRepositoryRelationSets(t *testing.T) {
	ctx := context.Background()
	repo, _ := newUserRepo(t)

	ana := mustCreateUser(t, repo, "ana")
	bob := mustCreateUser(t, repo, "bob")

	require.NoError(t, repo.AddToSet(ctx, bob.ID, repository.RelationFollowers, ana.ID))
	require.NoError(t, repo.AddToSet(ctx, ana.ID, repository.RelationFollowing, bob.ID))

	// double-apply must stay idempotent: relation lists are true sets
	require.NoError(t, repo.AddToSet(ctx, bob.ID, repository.RelationFollowers, ana.ID))

	bobState, err := repo.GetByID(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{ana.ID}, bobState.Followers)

	anaState, err := repo.GetByID(ctx, ana.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{bob.ID}, anaState.Following)

	require.NoError(t, repo.RemoveFromSet(ctx, bob.ID, repository.RelationFollowers, ana.ID))
	require.NoError(t, repo.RemoveFromSet(ctx, ana.ID, repository.RelationFollowing, bob.ID))

	bobState, err = repo.GetByID(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, bobState.Followers)

	anaState, err = repo.GetByID(ctx, ana.ID)
	require.NoError(t, err)
	assert.Empty(t, anaState.Following)

	// removing an absent edge is a no-op
	assert.NoError(t, repo.RemoveFromSet(ctx, bob.ID, repository.RelationFollowers, ana.ID))

	err = repo.AddToSet(ctx, bob.ID, repository.RelationField("bogus"), ana.ID)
	assert.Error(t, err)
}

func TestUserRepositoryUpdateFields(t *testing.T) {
	ctx := context.Background()
	repo, _ := newUserRepo(t)

	ana := mustCreateUser(t, repo, "ana")

	err := repo.UpdateFields(ctx, ana.ID, domain.UserPatch{Bio: "hello", Link: "https://ana.example"})
	require.NoError(t, err)

	updated, err := repo.GetByID(ctx, ana.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", updated.Bio)
	assert.Equal(t, "https://ana.example", updated.Link)
	assert.Equal(t, "ana", updated.Username)
	assert.Equal(t, "User ana", updated.FullName)
	assert.Equal(t, "hashed-ana", updated.PasswordHash)

	// empty patch is a no-op
	require.NoError(t, repo.UpdateFields(ctx, ana.ID, domain.UserPatch{}))

	err = repo.UpdateFields(ctx, 9999, domain.UserPatch{Bio: "x"})
	assert.ErrorIs(t, err, repository.ErrNotFound)

	mustCreateUser(t, repo, "bob")
	err = repo.UpdateFields(ctx, ana.ID, domain.UserPatch{Username: "bob"})
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestUserRepositorySampleExcluding(t *testing.T) {
	ctx := context.Background()
	repo, _ := newUserRepo(t)

	var ids []int64
	for i := 0; i < 6; i++ {
		user := mustCreateUser(t, repo, fmt.Sprintf("user%d", i))
		ids = append(ids, user.ID)
	}
	excluded := ids[0]

	sampled, err := repo.SampleExcluding(ctx, excluded, 10)
	require.NoError(t, err)
	assert.Len(t, sampled, 5)
	for _, user := range sampled {
		assert.NotEqual(t, excluded, user.ID)
	}

	sampled, err = repo.SampleExcluding(ctx, excluded, 2)
	require.NoError(t, err)
	assert.Len(t, sampled, 2)
}
